package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"corpus-dedup/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrClusterNotPending 表示聚类在更新时已不是 pending 状态（已被其他人处理）。
var ErrClusterNotPending = errors.New("cluster is no longer pending")

// ClusterDraft 是检测器产出的、尚未持久化的聚类。
type ClusterDraft struct {
	Type           string
	Confidence     float64
	FingerprintIDs []uint
}

// MemberKey 返回 "类型:排序后的 id 列表" 的 sha256，同一组成员的同类聚类只会存在一个。
func MemberKey(clusterType string, ids []uint) string {
	sorted := append([]uint(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	sum := sha256.Sum256([]byte(clusterType + ":" + strings.Join(parts, ",")))
	return hex.EncodeToString(sum[:])
}

// ClusterRepository 定义了 duplicate_clusters 与 cluster_documents 两张表的数据操作。
type ClusterRepository interface {
	CreateBatch(ctx context.Context, drafts []ClusterDraft) (created, existing int, err error)
	FindByID(ctx context.Context, id uint) (*model.DuplicateCluster, error)
	FindMemberIDs(ctx context.Context, clusterID uint) ([]uint, error)
	List(ctx context.Context, status string, limit int) ([]model.DuplicateCluster, error)
	FindPendingAbove(ctx context.Context, threshold float64) ([]model.DuplicateCluster, error)
	MarkMerged(ctx context.Context, id, canonicalID uint, notes string, at time.Time) error
	MarkRejected(ctx context.Context, id uint, notes string, at time.Time) error
	DeleteMembershipsForFingerprints(ctx context.Context, fingerprintIDs []uint) error
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type clusterRepository struct {
	db *gorm.DB
}

// NewClusterRepository 创建一个新的 ClusterRepository 实例。
func NewClusterRepository(db *gorm.DB) ClusterRepository {
	return &clusterRepository{db: db}
}

// CreateBatch 在一个事务中写入一批聚类及其全部成员。
// 成员集合已存在的聚类计入 existing，不会重复写入。
func (r *clusterRepository) CreateBatch(ctx context.Context, drafts []ClusterDraft) (int, int, error) {
	created, existing := 0, 0
	if len(drafts) == 0 {
		return 0, 0, nil
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, existing = 0, 0
		for _, d := range drafts {
			if len(d.FingerprintIDs) < 2 {
				return fmt.Errorf("聚类至少需要两个成员, 实际 %d", len(d.FingerprintIDs))
			}
			if d.Confidence < 0 || d.Confidence > 1 {
				return fmt.Errorf("置信度 %.3f 超出 [0,1]", d.Confidence)
			}
			cluster := model.DuplicateCluster{
				ClusterType:     d.Type,
				ConfidenceScore: d.Confidence,
				ReviewStatus:    model.ReviewStatusPending,
				MemberKey:       MemberKey(d.Type, d.FingerprintIDs),
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "member_key"}},
				DoNothing: true,
			}).Create(&cluster)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				existing++
				continue
			}

			members := make([]model.ClusterDocument, 0, len(d.FingerprintIDs))
			for _, fid := range d.FingerprintIDs {
				members = append(members, model.ClusterDocument{ClusterID: cluster.ID, FingerprintID: fid})
			}
			if err := tx.Create(&members).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return created, existing, nil
}

// FindByID 根据 id 查找聚类，不存在时返回 gorm.ErrRecordNotFound。
func (r *clusterRepository) FindByID(ctx context.Context, id uint) (*model.DuplicateCluster, error) {
	var cluster model.DuplicateCluster
	if err := r.db.WithContext(ctx).First(&cluster, id).Error; err != nil {
		return nil, err
	}
	return &cluster, nil
}

// FindMemberIDs 返回聚类的成员指纹 id，按 id 升序。
func (r *clusterRepository) FindMemberIDs(ctx context.Context, clusterID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.ClusterDocument{}).
		Where("cluster_id = ?", clusterID).Order("fingerprint_id asc").
		Pluck("fingerprint_id", &ids).Error
	return ids, err
}

// List 按状态列出聚类（status 为空表示全部），置信度高的在前。
func (r *clusterRepository) List(ctx context.Context, status string, limit int) ([]model.DuplicateCluster, error) {
	var clusters []model.DuplicateCluster
	q := r.db.WithContext(ctx).Order("confidence_score desc").Order("id asc")
	if status != "" {
		q = q.Where("review_status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&clusters).Error
	return clusters, err
}

// FindPendingAbove 返回置信度不低于 threshold 的 pending 聚类。
func (r *clusterRepository) FindPendingAbove(ctx context.Context, threshold float64) ([]model.DuplicateCluster, error) {
	var clusters []model.DuplicateCluster
	err := r.db.WithContext(ctx).
		Where("review_status = ? AND confidence_score >= ?", model.ReviewStatusPending, threshold).
		Order("confidence_score desc").Order("id asc").
		Find(&clusters).Error
	return clusters, err
}

// MarkMerged 将 pending 聚类标记为已合并。
func (r *clusterRepository) MarkMerged(ctx context.Context, id, canonicalID uint, notes string, at time.Time) error {
	return r.review(ctx, id, map[string]interface{}{
		"review_status":            model.ReviewStatusMerged,
		"canonical_fingerprint_id": canonicalID,
		"reviewed_at":              at,
		"notes":                    notes,
	})
}

// MarkRejected 将 pending 聚类标记为已驳回。
func (r *clusterRepository) MarkRejected(ctx context.Context, id uint, notes string, at time.Time) error {
	return r.review(ctx, id, map[string]interface{}{
		"review_status": model.ReviewStatusRejected,
		"reviewed_at":   at,
		"notes":         notes,
	})
}

func (r *clusterRepository) review(ctx context.Context, id uint, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.DuplicateCluster{}).
		Where("id = ? AND review_status = ?", id, model.ReviewStatusPending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrClusterNotPending
	}
	return nil
}

// DeleteMembershipsForFingerprints 删除指定指纹在所有聚类中的成员关系。
func (r *clusterRepository) DeleteMembershipsForFingerprints(ctx context.Context, fingerprintIDs []uint) error {
	if len(fingerprintIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("fingerprint_id IN ?", fingerprintIDs).Delete(&model.ClusterDocument{}).Error
}

// CountByStatus 统计各审核状态的聚类数量。
func (r *clusterRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		ReviewStatus string
		Total        int64
	}
	err := r.db.WithContext(ctx).Model(&model.DuplicateCluster{}).
		Select("review_status, count(*) as total").Group("review_status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.ReviewStatus] = row.Total
	}
	return counts, nil
}
