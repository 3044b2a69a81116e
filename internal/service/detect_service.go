package service

import (
	"context"
	"fmt"

	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/progress"

	"golang.org/x/sync/errgroup"
)

// DetectService 在同一份指纹快照上运行一个或多个检测层。
type DetectService interface {
	Run(ctx context.Context, layers []string) ([]DetectionStats, error)
}

type detectService struct {
	fingerprints repository.FingerprintRepository
	detectors    map[string]Detector
	parallel     bool
}

// DetectOptions 控制检测的提交粒度与并行方式。
type DetectOptions struct {
	CheckpointInterval int
	Parallel           bool
	Reporter           progress.Reporter
}

// NewDetectService 创建一个新的 DetectService 实例。
func NewDetectService(fingerprints repository.FingerprintRepository, clusters repository.ClusterRepository, opts DetectOptions) DetectService {
	reporter := opts.Reporter
	// 并行时多个进度条会互相覆盖，只保留日志
	if reporter == nil || opts.Parallel {
		reporter = progress.Nop{}
	}
	return &detectService{
		fingerprints: fingerprints,
		parallel:     opts.Parallel,
		detectors: map[string]Detector{
			LayerExact:   NewExactDetector(clusters, opts.CheckpointInterval),
			LayerFuzzy:   NewFuzzyDetector(clusters, opts.CheckpointInterval, reporter),
			LayerSimhash: NewSimhashDetector(clusters, opts.CheckpointInterval, reporter),
		},
	}
}

// ResolveLayers 校验并去重检测层名称；为空时返回全部检测层。
func ResolveLayers(layers []string) ([]string, error) {
	if len(layers) == 0 {
		return append([]string(nil), AllLayers...), nil
	}
	seen := make(map[string]bool, len(layers))
	out := make([]string, 0, len(layers))
	for _, l := range layers {
		switch l {
		case LayerExact, LayerFuzzy, LayerSimhash:
		default:
			return nil, fmt.Errorf("%w: unknown layer %q (want exact, fuzzy or simhash)", ErrValidation, l)
		}
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *detectService) Run(ctx context.Context, layers []string) ([]DetectionStats, error) {
	resolved, err := ResolveLayers(layers)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.fingerprints.FindAll(ctx)
	if err != nil {
		return nil, persistenceErr("load fingerprint snapshot", err)
	}
	log.Infof("[Detect] 载入指纹快照 %d 条, 检测层: %v", len(snapshot), resolved)

	results := make([]DetectionStats, len(resolved))
	if !s.parallel {
		for i, layer := range resolved {
			stats, err := s.detectors[layer].Detect(ctx, snapshot)
			results[i] = stats
			if err != nil {
				return results[:i+1], fmt.Errorf("detect %s: %w", layer, err)
			}
		}
		return results, nil
	}

	// 快照只读，各检测层可以并行；任一失败时其余层在下个检查点停止
	g, gctx := errgroup.WithContext(ctx)
	for i, layer := range resolved {
		i, layer := i, layer
		g.Go(func() error {
			stats, err := s.detectors[layer].Detect(gctx, snapshot)
			results[i] = stats
			if err != nil {
				return fmt.Errorf("detect %s: %w", layer, err)
			}
			return nil
		})
	}
	return results, g.Wait()
}
