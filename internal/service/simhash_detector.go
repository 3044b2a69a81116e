package service

import (
	"context"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/progress"
	"corpus-dedup/pkg/signature"
)

// simhash 近似重复的阈值。
const (
	SimhashMaxDistance      = 6
	SimhashStrictDistance   = 2
	SimhashConfidenceHigh   = 0.90
	SimhashConfidenceMedium = 0.70
)

// SimhashDetector 跨语料库比较 simhash 的汉明距离。
type SimhashDetector struct {
	greedy greedyClusterer
}

// NewSimhashDetector 创建近似重复检测器。
func NewSimhashDetector(clusters repository.ClusterRepository, checkpoint int, reporter progress.Reporter) *SimhashDetector {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	return &SimhashDetector{greedy: greedyClusterer{
		clusterType: model.ClusterTypeNearDuplicate,
		clusters:    clusters,
		checkpoint:  checkpoint,
		reporter:    reporter,
	}}
}

func (d *SimhashDetector) Layer() string { return LayerSimhash }

func simhashLink(seed, candidate *model.DocumentFingerprint) (float64, bool) {
	if seed.Source == candidate.Source {
		return 0, false
	}
	distance := signature.Hamming(seed.Simhash(), candidate.Simhash())
	switch {
	case distance <= SimhashStrictDistance:
		return SimhashConfidenceHigh, true
	case distance <= SimhashMaxDistance:
		return SimhashConfidenceMedium, true
	default:
		return 0, false
	}
}

func (d *SimhashDetector) Detect(ctx context.Context, snapshot []model.DocumentFingerprint) (DetectionStats, error) {
	// simhash 为 0 表示未计算，这些指纹完全不参与比较
	eligible := make([]model.DocumentFingerprint, 0, len(snapshot))
	for _, fp := range snapshot {
		if fp.Simhash64 != 0 {
			eligible = append(eligible, fp)
		}
	}
	stats, err := d.greedy.run(ctx, LayerSimhash, eligible, simhashLink)
	if err == nil {
		log.Infow("[Detect] simhash 近似重复完成",
			"scanned", stats.Scanned, "excluded", len(snapshot)-len(eligible),
			"created", stats.Created, "existing", stats.Existing)
	}
	return stats, err
}
