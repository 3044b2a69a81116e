package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/log"
)

// ClusterMember 是聚类信息中的一个成员文档。
type ClusterMember struct {
	FingerprintID   uint   `json:"fingerprintId"`
	Source          string `json:"source"`
	SourceID        uint   `json:"sourceId"`
	Slug            string `json:"slug"`
	TitleNormalized string `json:"titleNormalized"`
	WordCount       int    `json:"wordCount"`
	TagCount        int64  `json:"tagCount"`
}

// ClusterInfo 是人工审核时看到的聚类详情。
type ClusterInfo struct {
	ID                     uint             `json:"id"`
	ClusterType            string           `json:"clusterType"`
	ConfidenceScore        float64          `json:"confidenceScore"`
	ReviewStatus           string           `json:"reviewStatus"`
	CanonicalFingerprintID *uint            `json:"canonicalFingerprintId"`
	Notes                  string           `json:"notes"`
	CreatedAt              model.LocalTime  `json:"createdAt"`
	ReviewedAt             *model.LocalTime `json:"reviewedAt"`
	Members                []ClusterMember  `json:"members"`
	// MissingMembers 是成员关系仍在、但指纹已不存在的 id。
	MissingMembers []uint `json:"missingMembers,omitempty"`
}

// ReviewService 提供聚类查询与驳回等只涉及审核状态的操作。
type ReviewService interface {
	GetClusterInfo(ctx context.Context, clusterID uint) (*ClusterInfo, error)
	ListClusters(ctx context.Context, status string, limit int) ([]model.DuplicateCluster, error)
	RejectCluster(ctx context.Context, clusterID uint, notes string) error
	Stats(ctx context.Context) (map[string]int64, error)
}

type reviewService struct {
	clusters     repository.ClusterRepository
	fingerprints repository.FingerprintRepository
	tags         repository.TagRepository
	now          func() time.Time
}

// NewReviewService 创建一个新的 ReviewService 实例。
func NewReviewService(clusters repository.ClusterRepository, fingerprints repository.FingerprintRepository, tags repository.TagRepository) ReviewService {
	return &reviewService{
		clusters:     clusters,
		fingerprints: fingerprints,
		tags:         tags,
		now:          time.Now,
	}
}

func (s *reviewService) GetClusterInfo(ctx context.Context, clusterID uint) (*ClusterInfo, error) {
	cluster, err := s.clusters.FindByID(ctx, clusterID)
	if err != nil {
		return nil, persistenceErr(fmt.Sprintf("find cluster %d", clusterID), err)
	}
	memberIDs, err := s.clusters.FindMemberIDs(ctx, clusterID)
	if err != nil {
		return nil, persistenceErr(fmt.Sprintf("list members of cluster %d", clusterID), err)
	}
	fps, err := s.fingerprints.FindByIDs(ctx, memberIDs)
	if err != nil {
		return nil, persistenceErr("resolve member fingerprints", err)
	}

	info := &ClusterInfo{
		ID:                     cluster.ID,
		ClusterType:            cluster.ClusterType,
		ConfidenceScore:        cluster.ConfidenceScore,
		ReviewStatus:           cluster.ReviewStatus,
		CanonicalFingerprintID: cluster.CanonicalFingerprintID,
		Notes:                  cluster.Notes,
		CreatedAt:              model.LocalTime(cluster.CreatedAt),
		ReviewedAt:             model.NewLocalTime(cluster.ReviewedAt),
		Members:                make([]ClusterMember, 0, len(fps)),
	}

	found := make(map[uint]bool, len(fps))
	for _, fp := range fps {
		found[fp.ID] = true
		n, err := s.tags.CountTags(ctx, fp.Ref())
		if err != nil {
			return nil, persistenceErr("count tags", err)
		}
		info.Members = append(info.Members, ClusterMember{
			FingerprintID:   fp.ID,
			Source:          fp.Source,
			SourceID:        fp.SourceID,
			Slug:            fp.Slug,
			TitleNormalized: fp.TitleNormalized,
			WordCount:       fp.WordCount,
			TagCount:        n,
		})
	}
	for _, id := range memberIDs {
		if !found[id] {
			info.MissingMembers = append(info.MissingMembers, id)
		}
	}
	return info, nil
}

func (s *reviewService) ListClusters(ctx context.Context, status string, limit int) ([]model.DuplicateCluster, error) {
	switch status {
	case "", model.ReviewStatusPending, model.ReviewStatusMerged, model.ReviewStatusRejected:
	default:
		return nil, fmt.Errorf("%w: unknown review status %q", ErrValidation, status)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}
	clusters, err := s.clusters.List(ctx, status, limit)
	if err != nil {
		return nil, persistenceErr("list clusters", err)
	}
	return clusters, nil
}

// RejectCluster 将聚类标记为非重复。被驳回的聚类不会再被自动合并。
func (s *reviewService) RejectCluster(ctx context.Context, clusterID uint, notes string) error {
	cluster, err := s.clusters.FindByID(ctx, clusterID)
	if err != nil {
		return persistenceErr(fmt.Sprintf("find cluster %d", clusterID), err)
	}
	if cluster.ReviewStatus != model.ReviewStatusPending {
		return fmt.Errorf("%w: cluster %d is %s, not pending", ErrValidation, clusterID, cluster.ReviewStatus)
	}
	if err := s.clusters.MarkRejected(ctx, clusterID, notes, s.now()); err != nil {
		if errors.Is(err, repository.ErrClusterNotPending) {
			return fmt.Errorf("%w: cluster %d was reviewed concurrently", ErrValidation, clusterID)
		}
		return persistenceErr(fmt.Sprintf("reject cluster %d", clusterID), err)
	}
	log.Infow("[Review] 聚类已驳回", "cluster", clusterID, "notes", notes)
	return nil
}

func (s *reviewService) Stats(ctx context.Context) (map[string]int64, error) {
	counts, err := s.clusters.CountByStatus(ctx)
	if err != nil {
		return nil, persistenceErr("count clusters", err)
	}
	return counts, nil
}
