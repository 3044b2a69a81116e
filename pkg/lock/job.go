package lock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrJobRunning 表示另一个会修改数据的去重任务正在运行。
var ErrJobRunning = errors.New("another dedup job is already running")

// JobLock 是修改数据的命令（fingerprint、detect、merge apply/auto、run）持有的进程文件锁，
// serve 在处理每个合并请求期间持有。
type JobLock struct {
	lock *flock.Flock
}

// AcquireJobLock 在 dir 下对 dedup.lock 加非阻塞排他锁。
func AcquireJobLock(dir string) (*JobLock, error) {
	path := filepath.Join(dir, "dedup.lock")
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire job lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrJobRunning
	}
	return &JobLock{lock: fl}, nil
}

// Release 释放文件锁。
func (j *JobLock) Release() error {
	if j == nil || j.lock == nil {
		return nil
	}
	return j.lock.Unlock()
}
