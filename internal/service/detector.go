package service

import (
	"context"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/progress"
)

// 检测层名称，与命令行 --layer 参数一致。
const (
	LayerExact   = "exact"
	LayerFuzzy   = "fuzzy"
	LayerSimhash = "simhash"
)

// AllLayers 是默认运行的检测层，按此顺序执行。
var AllLayers = []string{LayerExact, LayerFuzzy, LayerSimhash}

// DefaultCheckpointInterval 是 O(n²) 扫描中两次提交之间处理的种子数。
const DefaultCheckpointInterval = 100

// DetectionStats 汇总一次检测的结果。
type DetectionStats struct {
	Layer    string `json:"layer"`
	Scanned  int    `json:"scanned"`
	Created  int    `json:"created"`
	Existing int    `json:"existing"`
}

// Detector 是一个只读扫描指纹快照并写入候选聚类的检测层。
type Detector interface {
	Layer() string
	Detect(ctx context.Context, snapshot []model.DocumentFingerprint) (DetectionStats, error)
}

// linkFunc 判断候选指纹是否与种子相连，返回该连接的置信度。
type linkFunc func(seed, candidate *model.DocumentFingerprint) (float64, bool)

// greedyClusterer 实现以种子为中心的贪心单链聚类：
// 按 id 顺序取每个未访问的种子，扫描其后所有未访问的指纹，
// 与种子相连者和种子组成一个聚类并全部标记为已访问。
type greedyClusterer struct {
	clusterType string
	clusters    repository.ClusterRepository
	checkpoint  int
	reporter    progress.Reporter
}

func (g *greedyClusterer) run(ctx context.Context, layer string, fps []model.DocumentFingerprint, link linkFunc) (DetectionStats, error) {
	stats := DetectionStats{Layer: layer, Scanned: len(fps)}
	interval := g.checkpoint
	if interval <= 0 {
		interval = DefaultCheckpointInterval
	}

	// visited 只属于本次调用，不同运行之间互不影响
	visited := make([]bool, len(fps))
	var pending []repository.ClusterDraft
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		// 检查点一旦开始就写完，取消只在检查点之间生效
		created, existing, err := g.clusters.CreateBatch(context.WithoutCancel(ctx), pending)
		if err != nil {
			return persistenceErr("checkpoint "+layer, err)
		}
		stats.Created += created
		stats.Existing += existing
		pending = pending[:0]
		return nil
	}

	g.reporter.Start(len(fps), "detect "+layer)
	defer g.reporter.Finish()

	seeds := 0
	for i := range fps {
		g.reporter.Add(1)
		if visited[i] {
			continue
		}
		visited[i] = true
		seeds++

		seed := &fps[i]
		members := []uint{seed.ID}
		confidence := 0.0
		for j := i + 1; j < len(fps); j++ {
			if visited[j] {
				continue
			}
			c, ok := link(seed, &fps[j])
			if !ok {
				continue
			}
			visited[j] = true
			members = append(members, fps[j].ID)
			if c > confidence {
				confidence = c
			}
		}
		if len(members) > 1 {
			pending = append(pending, repository.ClusterDraft{
				Type:           g.clusterType,
				Confidence:     confidence,
				FingerprintIDs: members,
			})
		}

		if seeds%interval == 0 {
			if err := flush(); err != nil {
				return stats, err
			}
			log.Debugf("[Detect] %s 检查点: seeds=%d created=%d", layer, seeds, stats.Created)
			if err := ctx.Err(); err != nil {
				log.Warnf("[Detect] %s 在检查点处停止 (seeds=%d): %v", layer, seeds, err)
				return stats, err
			}
		}
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}
