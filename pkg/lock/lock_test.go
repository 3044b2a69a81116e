package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExcludesSameKey(t *testing.T) {
	l := NewLocalLocker()
	rel, err := l.Acquire(context.Background(), SourceKey("library"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, SourceKey("library"))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	// 不同的语料库互不影响
	other, err := l.Acquire(context.Background(), SourceKey("anarchist"))
	require.NoError(t, err)
	other()

	rel()
	rel() // 重复释放无副作用
	again, err := l.Acquire(context.Background(), SourceKey("library"))
	require.NoError(t, err)
	again()
}

func TestAcquireAllReleasesOnFailure(t *testing.T) {
	l := NewLocalLocker()
	held, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = AcquireAll(ctx, l, []string{"a", "b"})
	require.Error(t, err)

	// "a" 必须已经被释放
	relA, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	relA()
	held()
}

func TestJobLockIsExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireJobLock(dir)
	require.NoError(t, err)

	_, err = AcquireJobLock(dir)
	assert.ErrorIs(t, err, ErrJobRunning)

	require.NoError(t, first.Release())
	second, err := AcquireJobLock(dir)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}
