package main

import (
	"context"

	"corpus-dedup/internal/service"
	"corpus-dedup/pkg/lock"
	"corpus-dedup/pkg/log"
)

// jobLockedMerger 在每次合并期间持有任务文件锁，使 serve 发起的合并与批处理命令互斥。
// 锁被占用时立即返回 lock.ErrJobRunning，不排队等待。
type jobLockedMerger struct {
	dir  string
	next service.MergeService
}

func newJobLockedMerger(dir string, next service.MergeService) service.MergeService {
	return &jobLockedMerger{dir: dir, next: next}
}

func (m *jobLockedMerger) hold() (func(), error) {
	jl, err := lock.AcquireJobLock(m.dir)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := jl.Release(); err != nil {
			log.Warnf("释放任务锁失败: %v", err)
		}
	}, nil
}

func (m *jobLockedMerger) MergeCluster(ctx context.Context, clusterID, keepID uint, removeIDs []uint, notes string) (*service.MergeResult, error) {
	release, err := m.hold()
	if err != nil {
		return nil, err
	}
	defer release()
	return m.next.MergeCluster(ctx, clusterID, keepID, removeIDs, notes)
}

func (m *jobLockedMerger) AutoMergeHighConfidence(ctx context.Context, threshold float64) (*service.AutoMergeSummary, error) {
	release, err := m.hold()
	if err != nil {
		return nil, err
	}
	defer release()
	return m.next.AutoMergeHighConfidence(ctx, threshold)
}
