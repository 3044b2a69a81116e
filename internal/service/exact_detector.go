package service

import (
	"context"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/log"
)

// ExactConfidence 是精确匹配聚类的置信度。
const ExactConfidence = 1.0

// ExactDetector 按 normalized_content_md5 分组，同组两条及以上即成为一个聚类。
// 同一语料库内的重复也会被报告。
type ExactDetector struct {
	clusters   repository.ClusterRepository
	checkpoint int
}

// NewExactDetector 创建精确匹配检测器。
func NewExactDetector(clusters repository.ClusterRepository, checkpoint int) *ExactDetector {
	if checkpoint <= 0 {
		checkpoint = DefaultCheckpointInterval
	}
	return &ExactDetector{clusters: clusters, checkpoint: checkpoint}
}

func (d *ExactDetector) Layer() string { return LayerExact }

func (d *ExactDetector) Detect(ctx context.Context, snapshot []model.DocumentFingerprint) (DetectionStats, error) {
	stats := DetectionStats{Layer: LayerExact, Scanned: len(snapshot)}

	// 快照按 id 有序，组内成员以及组的先后顺序都保持稳定
	var order []string
	groups := make(map[string][]uint)
	for _, fp := range snapshot {
		if fp.NormalizedContentMD5 == "" {
			continue
		}
		if _, ok := groups[fp.NormalizedContentMD5]; !ok {
			order = append(order, fp.NormalizedContentMD5)
		}
		groups[fp.NormalizedContentMD5] = append(groups[fp.NormalizedContentMD5], fp.ID)
	}

	drafts := make([]repository.ClusterDraft, 0)
	for _, key := range order {
		if ids := groups[key]; len(ids) >= 2 {
			drafts = append(drafts, repository.ClusterDraft{
				Type:           model.ClusterTypeExact,
				Confidence:     ExactConfidence,
				FingerprintIDs: ids,
			})
		}
	}

	for start := 0; start < len(drafts); start += d.checkpoint {
		end := min(start+d.checkpoint, len(drafts))
		created, existing, err := d.clusters.CreateBatch(context.WithoutCancel(ctx), drafts[start:end])
		if err != nil {
			return stats, persistenceErr("persist exact clusters", err)
		}
		stats.Created += created
		stats.Existing += existing
		if err := ctx.Err(); err != nil {
			return stats, err
		}
	}

	log.Infow("[Detect] 精确匹配完成", "groups", len(drafts), "created", stats.Created, "existing", stats.Existing)
	return stats, nil
}
