// Package lock 提供按语料库划分的互斥锁，以及保证单写者的进程文件锁。
package lock

import (
	"context"
	"sync"
)

// Release 释放一把已获得的锁，重复调用无副作用。
type Release func()

// Locker 按 key 提供互斥。Acquire 阻塞直到获得锁或 ctx 结束。
type Locker interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// SourceKey 返回某个语料库的锁 key。
func SourceKey(source string) string {
	return "source:" + source
}

// LocalLocker 是进程内实现，Redis 未配置时以及测试中使用。
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewLocalLocker 创建一个进程内锁。
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire 实现 Locker。
func (l *LocalLocker) Acquire(ctx context.Context, key string) (Release, error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}

// AcquireAll 按给定顺序依次加锁；任一失败时释放已获得的锁。
// 调用方应传入排序后的 key，避免两个任务交叉等待。
func AcquireAll(ctx context.Context, l Locker, keys []string) (Release, error) {
	releases := make([]Release, 0, len(keys))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, key := range keys {
		rel, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, rel)
	}
	return releaseAll, nil
}
