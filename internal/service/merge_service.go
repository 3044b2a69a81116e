package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/lock"
	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/tasks"

	"gorm.io/gorm"
)

// DocumentArchiver 在文档被合并删除之前保存其原始内容。
type DocumentArchiver interface {
	ArchiveDocument(ctx context.Context, clusterID uint, source string, doc *model.SourceDocument) error
}

// SearchIndex 从搜索索引中移除被合并删除的文档。
type SearchIndex interface {
	RemoveDocuments(ctx context.Context, refs []model.DocumentRef) error
}

// EventPublisher 向下游发布合并事件。
type EventPublisher interface {
	PublishMerge(ctx context.Context, event tasks.MergeEvent) error
}

// MergeDeps 是合并的可选外部依赖，nil 表示未启用。
type MergeDeps struct {
	Archiver  DocumentArchiver
	Index     SearchIndex
	Publisher EventPublisher
}

// MergeResult 记录一次合并的审计信息。
type MergeResult struct {
	ClusterID  uint     `json:"clusterId"`
	KeepID     uint     `json:"keepId"`
	RemovedIDs []uint   `json:"removedIds"`
	TagsBefore []string `json:"tagsBefore"`
	TagsAfter  []string `json:"tagsAfter"`
	TagsAdded  int      `json:"tagsAdded"`
}

// AutoMergeSummary 汇总一次自动合并批处理。
type AutoMergeSummary struct {
	Threshold  float64       `json:"threshold"`
	Considered int           `json:"considered"`
	Merged     int           `json:"merged"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	Results    []MergeResult `json:"results"`
	// Failures 以聚类 id 为键记录失败原因。
	Failures map[uint]string `json:"failures"`
}

// MergeService 将聚类合并为一篇规范文档。合并不可逆。
type MergeService interface {
	MergeCluster(ctx context.Context, clusterID, keepID uint, removeIDs []uint, notes string) (*MergeResult, error)
	AutoMergeHighConfidence(ctx context.Context, threshold float64) (*AutoMergeSummary, error)
}

type mergeService struct {
	db       *gorm.DB
	sources  *repository.SourceRegistry
	locker   lock.Locker
	deps     MergeDeps
	clusters repository.ClusterRepository
	prints   repository.FingerprintRepository
	now      func() time.Time
}

// NewMergeService 创建一个新的 MergeService 实例。
func NewMergeService(db *gorm.DB, sources *repository.SourceRegistry, locker lock.Locker, deps MergeDeps) MergeService {
	return &mergeService{
		db:       db,
		sources:  sources,
		locker:   locker,
		deps:     deps,
		clusters: repository.NewClusterRepository(db),
		prints:   repository.NewFingerprintRepository(db),
		now:      time.Now,
	}
}

// validateMergeRequest 检查 keep/remove 集合本身是否合法，不访问数据库。
func validateMergeRequest(keepID uint, removeIDs []uint) error {
	if keepID == 0 {
		return fmt.Errorf("%w: keep id is required", ErrValidation)
	}
	if len(removeIDs) == 0 {
		return fmt.Errorf("%w: at least one remove id is required", ErrValidation)
	}
	seen := make(map[uint]bool, len(removeIDs))
	for _, id := range removeIDs {
		if id == keepID {
			return fmt.Errorf("%w: fingerprint %d is both keep and remove", ErrValidation, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: fingerprint %d listed twice in remove", ErrValidation, id)
		}
		seen[id] = true
	}
	return nil
}

// resolve 一次性解析全部 id，任一缺失即整体失败。
func resolve(ctx context.Context, repo repository.FingerprintRepository, ids []uint) (map[uint]model.DocumentFingerprint, error) {
	rows, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, persistenceErr("resolve fingerprints", err)
	}
	byID := make(map[uint]model.DocumentFingerprint, len(rows))
	for _, fp := range rows {
		byID[fp.ID] = fp
	}
	var missing []uint
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: fingerprints %v do not exist", ErrNotFound, missing)
	}
	return byID, nil
}

func sourceLockKeys(fps map[uint]model.DocumentFingerprint) []string {
	set := make(map[string]struct{})
	for _, fp := range fps {
		set[fp.Source] = struct{}{}
	}
	keys := make([]string, 0, len(set))
	for s := range set {
		keys = append(keys, lock.SourceKey(s))
	}
	sort.Strings(keys)
	return keys
}

func (s *mergeService) MergeCluster(ctx context.Context, clusterID, keepID uint, removeIDs []uint, notes string) (*MergeResult, error) {
	if err := validateMergeRequest(keepID, removeIDs); err != nil {
		return nil, err
	}

	cluster, err := s.clusters.FindByID(ctx, clusterID)
	if err != nil {
		return nil, persistenceErr(fmt.Sprintf("find cluster %d", clusterID), err)
	}
	if cluster.ReviewStatus != model.ReviewStatusPending {
		return nil, fmt.Errorf("%w: cluster %d is %s, not pending", ErrValidation, clusterID, cluster.ReviewStatus)
	}

	ids := append([]uint{keepID}, removeIDs...)
	resolved, err := resolve(ctx, s.prints, ids)
	if err != nil {
		return nil, err
	}

	// 锁住所有涉及的语料库，避免与指纹刷新交错
	release, err := lock.AcquireAll(ctx, s.locker, sourceLockKeys(resolved))
	if err != nil {
		return nil, fmt.Errorf("lock sources for cluster %d: %w", clusterID, err)
	}
	defer release()

	if memberIDs, err := s.clusters.FindMemberIDs(ctx, clusterID); err == nil {
		members := make(map[uint]bool, len(memberIDs))
		for _, id := range memberIDs {
			members[id] = true
		}
		for _, id := range ids {
			if !members[id] {
				log.Warnw("[Merge] 指纹不是该聚类的成员", "cluster", clusterID, "fingerprint", id)
			}
		}
	}

	result := &MergeResult{ClusterID: clusterID, KeepID: keepID, RemovedIDs: append([]uint(nil), removeIDs...)}
	var removedRefs []model.DocumentRef
	reviewedAt := s.now()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fpRepo := repository.NewFingerprintRepository(tx)
		clusterRepo := repository.NewClusterRepository(tx)
		tagRepo := repository.NewTagRepository(tx)

		// 加锁后在事务内重新解析，期间被删除的 id 会让整个合并失败
		current, err := resolve(ctx, fpRepo, ids)
		if err != nil {
			return err
		}
		keep := current[keepID]

		result.TagsBefore, err = tagRepo.ListTags(ctx, keep.Ref())
		if err != nil {
			return err
		}

		removedRefs = removedRefs[:0]
		for _, rid := range removeIDs {
			target := current[rid]

			tags, err := tagRepo.ListTags(ctx, target.Ref())
			if err != nil {
				return err
			}
			for _, tag := range tags {
				if err := tagRepo.AddTag(ctx, keep.Ref(), tag); err != nil {
					return err
				}
			}

			provider, ok := s.sources.Open(tx, target.Source)
			if !ok {
				return fmt.Errorf("%w: fingerprint %d belongs to unconfigured source %q", ErrConfiguration, rid, target.Source)
			}
			doc, err := provider.Get(ctx, target.SourceID)
			if err != nil {
				return persistenceErr(fmt.Sprintf("load %s document %d", target.Source, target.SourceID), err)
			}
			if s.deps.Archiver != nil {
				if err := s.deps.Archiver.ArchiveDocument(ctx, clusterID, target.Source, doc); err != nil {
					return err
				}
			}
			if err := provider.Delete(ctx, target.SourceID); err != nil {
				return persistenceErr(fmt.Sprintf("delete %s document %d", target.Source, target.SourceID), err)
			}
			removedRefs = append(removedRefs, target.Ref())
		}

		if err := clusterRepo.DeleteMembershipsForFingerprints(ctx, removeIDs); err != nil {
			return err
		}
		if err := fpRepo.DeleteByIDs(ctx, removeIDs); err != nil {
			return err
		}

		result.TagsAfter, err = tagRepo.ListTags(ctx, keep.Ref())
		if err != nil {
			return err
		}
		result.TagsAdded = len(result.TagsAfter) - len(result.TagsBefore)

		if err := clusterRepo.MarkMerged(ctx, clusterID, keepID, notes, reviewedAt); err != nil {
			if errors.Is(err, repository.ErrClusterNotPending) {
				return fmt.Errorf("%w: cluster %d was reviewed concurrently", ErrValidation, clusterID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		log.Errorw("[Merge] 合并失败，已回滚", "cluster", clusterID, "keep", keepID, "remove", removeIDs, "error", err)
		return nil, persistenceErr(fmt.Sprintf("merge cluster %d", clusterID), err)
	}

	log.Infow("[Merge] 合并完成",
		"cluster", clusterID,
		"keep", keepID,
		"removed", removeIDs,
		"tagsBefore", len(result.TagsBefore),
		"tagsAfter", len(result.TagsAfter),
	)
	s.afterCommit(ctx, cluster, resolved[keepID], removeIDs, resolved, result, notes, reviewedAt, removedRefs)
	return result, nil
}

// afterCommit 清理搜索索引并发布事件。合并已提交，这里的失败只记录日志。
func (s *mergeService) afterCommit(ctx context.Context, cluster *model.DuplicateCluster, keep model.DocumentFingerprint, removeIDs []uint,
	resolved map[uint]model.DocumentFingerprint, result *MergeResult, notes string, at time.Time, removedRefs []model.DocumentRef) {
	if s.deps.Index != nil {
		if err := s.deps.Index.RemoveDocuments(ctx, removedRefs); err != nil {
			log.Warnw("[Merge] 清理搜索索引失败", "cluster", cluster.ID, "error", err)
		}
	}
	if s.deps.Publisher != nil {
		event := tasks.MergeEvent{
			ClusterID:   cluster.ID,
			ClusterType: cluster.ClusterType,
			Keep:        tasks.DocumentKey{FingerprintID: keep.ID, Source: keep.Source, SourceID: keep.SourceID},
			TagsAdded:   result.TagsAdded,
			Notes:       notes,
			MergedAt:    at,
		}
		for _, rid := range removeIDs {
			fp := resolved[rid]
			event.Removed = append(event.Removed, tasks.DocumentKey{FingerprintID: fp.ID, Source: fp.Source, SourceID: fp.SourceID})
		}
		if err := s.deps.Publisher.PublishMerge(ctx, event); err != nil {
			log.Warnw("[Merge] 发布合并事件失败", "cluster", cluster.ID, "error", err)
		}
	}
}

// PickCanonical 选择词数最多的指纹作为保留文档，词数相同时取 id 最小者。
func PickCanonical(fps []model.DocumentFingerprint) (keep model.DocumentFingerprint, remove []uint) {
	best := 0
	for i := 1; i < len(fps); i++ {
		if fps[i].WordCount > fps[best].WordCount ||
			(fps[i].WordCount == fps[best].WordCount && fps[i].ID < fps[best].ID) {
			best = i
		}
	}
	keep = fps[best]
	for i, fp := range fps {
		if i != best {
			remove = append(remove, fp.ID)
		}
	}
	sort.Slice(remove, func(i, j int) bool { return remove[i] < remove[j] })
	return keep, remove
}

func (s *mergeService) AutoMergeHighConfidence(ctx context.Context, threshold float64) (*AutoMergeSummary, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: confidence threshold %.3f outside [0,1]", ErrValidation, threshold)
	}

	candidates, err := s.clusters.FindPendingAbove(ctx, threshold)
	if err != nil {
		return nil, persistenceErr("list pending clusters", err)
	}
	summary := &AutoMergeSummary{Threshold: threshold, Failures: make(map[uint]string)}
	log.Infof("[AutoMerge] 置信度 >= %.2f 的待处理聚类共 %d 个", threshold, len(candidates))

	for _, c := range candidates {
		// 取消只在两个聚类之间生效
		if err := ctx.Err(); err != nil {
			log.Warnf("[AutoMerge] 已取消，停止于聚类 %d 之前: %v", c.ID, err)
			break
		}
		summary.Considered++

		memberIDs, err := s.clusters.FindMemberIDs(ctx, c.ID)
		if err != nil {
			summary.Failed++
			summary.Failures[c.ID] = err.Error()
			log.Errorw("[AutoMerge] 读取聚类成员失败", "cluster", c.ID, "error", err)
			continue
		}
		live, err := s.prints.FindByIDs(ctx, memberIDs)
		if err != nil {
			summary.Failed++
			summary.Failures[c.ID] = err.Error()
			log.Errorw("[AutoMerge] 读取成员指纹失败", "cluster", c.ID, "error", err)
			continue
		}
		if len(live) < 2 {
			summary.Skipped++
			log.Infow("[AutoMerge] 存活成员不足两个，跳过", "cluster", c.ID, "live", len(live))
			continue
		}

		keep, remove := PickCanonical(live)
		notes := fmt.Sprintf("auto-merged: confidence %.2f >= threshold %.2f", c.ConfidenceScore, threshold)
		res, err := s.MergeCluster(ctx, c.ID, keep.ID, remove, notes)
		if err != nil {
			summary.Failed++
			summary.Failures[c.ID] = err.Error()
			log.Errorw("[AutoMerge] 聚类合并失败，继续处理下一个", "cluster", c.ID, "error", err)
			continue
		}
		summary.Merged++
		summary.Results = append(summary.Results, *res)
	}

	log.Infow("[AutoMerge] 批处理完成",
		"considered", summary.Considered,
		"merged", summary.Merged,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
	)
	return summary, nil
}
