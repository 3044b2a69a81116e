// Package pipeline 串联一次完整的去重流程：刷新指纹、检测重复、可选地自动合并。
package pipeline

import (
	"context"
	"fmt"
	"time"

	"corpus-dedup/internal/service"
	"corpus-dedup/pkg/log"
)

// Options 控制一次流程运行。
type Options struct {
	// Sources 为空表示刷新所有已配置的语料库。
	Sources []string
	Layers  []string
	// AutoMergeThreshold 为 nil 时跳过自动合并。
	AutoMergeThreshold *float64
}

// Report 汇总流程中每一步的结果。
type Report struct {
	Fingerprinted map[string]int
	Detection     []service.DetectionStats
	AutoMerge     *service.AutoMergeSummary
	Elapsed       time.Duration
}

// Processor 封装了流程所需的全部服务。
type Processor struct {
	fingerprints service.FingerprintService
	detect       service.DetectService
	merge        service.MergeService
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(fingerprints service.FingerprintService, detect service.DetectService, merge service.MergeService) *Processor {
	return &Processor{
		fingerprints: fingerprints,
		detect:       detect,
		merge:        merge,
	}
}

// Process 是流程的主函数，任一步失败即停止，已完成步骤的结果保留在 Report 中。
func (p *Processor) Process(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{Fingerprinted: make(map[string]int)}

	layers, err := service.ResolveLayers(opts.Layers)
	if err != nil {
		return report, err
	}

	// 1. 刷新指纹
	log.Infof("[Processor] 步骤1: 刷新指纹, 语料库: %v", opts.Sources)
	if len(opts.Sources) == 0 {
		counts, err := p.fingerprints.GenerateAll(ctx)
		for name, n := range counts {
			report.Fingerprinted[name] = n
		}
		if err != nil {
			return report, fmt.Errorf("刷新指纹失败: %w", err)
		}
	} else {
		for _, source := range opts.Sources {
			n, err := p.fingerprints.Generate(ctx, source)
			if err != nil {
				return report, fmt.Errorf("刷新语料库 %s 失败: %w", source, err)
			}
			report.Fingerprinted[source] = n
		}
	}

	// 2. 在新快照上检测
	log.Infof("[Processor] 步骤2: 运行检测层 %v", layers)
	report.Detection, err = p.detect.Run(ctx, layers)
	if err != nil {
		return report, fmt.Errorf("重复检测失败: %w", err)
	}

	// 3. 自动合并高置信度聚类
	if opts.AutoMergeThreshold != nil {
		log.Infof("[Processor] 步骤3: 自动合并, 阈值 %.2f", *opts.AutoMergeThreshold)
		report.AutoMerge, err = p.merge.AutoMergeHighConfidence(ctx, *opts.AutoMergeThreshold)
		if err != nil {
			return report, fmt.Errorf("自动合并失败: %w", err)
		}
	} else {
		log.Info("[Processor] 步骤3: 未设置自动合并阈值, 跳过")
	}

	report.Elapsed = time.Since(start)
	log.Infof("[Processor] 流程完成, 耗时 %s", report.Elapsed)
	return report, nil
}
