package service

import (
	"context"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/progress"
	"corpus-dedup/pkg/signature"
)

// 标题模糊匹配的阈值。
const (
	FuzzyMaxDistance    = 5
	FuzzyStrictDistance = 3
	FuzzyConfidenceHigh = 0.95
)

// FuzzyDetector 跨语料库比较规范化标题的编辑距离与 Soundex。
type FuzzyDetector struct {
	greedy greedyClusterer
}

// NewFuzzyDetector 创建标题模糊匹配检测器。
func NewFuzzyDetector(clusters repository.ClusterRepository, checkpoint int, reporter progress.Reporter) *FuzzyDetector {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	return &FuzzyDetector{greedy: greedyClusterer{
		clusterType: model.ClusterTypeFuzzy,
		clusters:    clusters,
		checkpoint:  checkpoint,
		reporter:    reporter,
	}}
}

func (d *FuzzyDetector) Layer() string { return LayerFuzzy }

// fuzzyLink 要求来源不同、编辑距离不超过 5，并且 Soundex 相同或编辑距离不超过 3。
// 满足该条件的连接都属于高置信度。
func fuzzyLink(seed, candidate *model.DocumentFingerprint) (float64, bool) {
	if seed.Source == candidate.Source {
		return 0, false
	}
	if seed.TitleNormalized == "" || candidate.TitleNormalized == "" {
		return 0, false
	}
	distance, ok := signature.LevenshteinWithin(seed.TitleNormalized, candidate.TitleNormalized, FuzzyMaxDistance)
	if !ok {
		return 0, false
	}
	soundexMatch := seed.TitleSoundex != "" && seed.TitleSoundex == candidate.TitleSoundex
	if !soundexMatch && distance > FuzzyStrictDistance {
		return 0, false
	}
	return FuzzyConfidenceHigh, true
}

func (d *FuzzyDetector) Detect(ctx context.Context, snapshot []model.DocumentFingerprint) (DetectionStats, error) {
	stats, err := d.greedy.run(ctx, LayerFuzzy, snapshot, fuzzyLink)
	if err == nil {
		log.Infow("[Detect] 标题模糊匹配完成", "scanned", stats.Scanned, "created", stats.Created, "existing", stats.Existing)
	}
	return stats, err
}
