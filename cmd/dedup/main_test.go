package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"corpus-dedup/internal/service"
	"corpus-dedup/pkg/lock"
	"corpus-dedup/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
log:
  level: error
sources:
  - name: library
    table: library_documents
jwt:
  secret: "cli-test-secret"
  token_expire_hours: 2
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o644))
	return path
}

// writeConfigWithLockDir 写出一个任务锁目录指向 dir 的配置文件。
func writeConfigWithLockDir(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := testConfig + "lock_dir: \"" + filepath.ToSlash(dir) + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommandListsSubcommands(t *testing.T) {
	cmd := newRootCommand()
	names := map[string]bool{}
	for _, c := range cmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"fingerprint", "detect", "merge", "cluster", "run", "serve", "token"} {
		assert.True(t, names[want], want)
	}
}

func TestTokenIssue(t *testing.T) {
	out, err := execute(t, "--config", writeConfig(t), "token", "issue", "alice", "--role", token.RoleViewer)
	require.NoError(t, err)

	claims, err := token.NewJWTManager("cli-test-secret", 2).VerifyToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Reviewer)
	assert.Equal(t, token.RoleViewer, claims.Role)
}

func TestTokenIssue_UnknownRole(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "token", "issue", "alice", "--role", "admin")
	assert.Error(t, err)
}

func TestMissingConfigFails(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "absent.yaml"), "token", "issue", "alice")
	assert.Error(t, err)
}

func TestFingerprintRequiresSource(t *testing.T) {
	_, err := execute(t, "--config", writeConfig(t), "fingerprint")
	assert.Error(t, err)
}

func TestParseClusterID(t *testing.T) {
	id, err := parseClusterID("42")
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"0", "-1", "abc"} {
		_, err := parseClusterID(bad)
		assert.ErrorIs(t, err, service.ErrValidation, bad)
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Layer", "Created"}, [][]string{{"exact", "3"}, {"fuzzy"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "Layer")
	assert.Contains(t, out, "exact")
	assert.Contains(t, out, "fuzzy")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestMergeApplyRefusedWhileJobRunning(t *testing.T) {
	dir := t.TempDir()
	held, err := lock.AcquireJobLock(dir)
	require.NoError(t, err)
	defer func() { _ = held.Release() }()

	_, err = execute(t, "--config", writeConfigWithLockDir(t, dir), "merge", "apply", "7", "--keep", "1", "--remove", "2")
	assert.ErrorIs(t, err, lock.ErrJobRunning)
}

type countingMerger struct {
	merges int
	autos  int
}

func (m *countingMerger) MergeCluster(_ context.Context, clusterID, keepID uint, removeIDs []uint, _ string) (*service.MergeResult, error) {
	m.merges++
	return &service.MergeResult{ClusterID: clusterID, KeepID: keepID, RemovedIDs: removeIDs}, nil
}

func (m *countingMerger) AutoMergeHighConfidence(_ context.Context, threshold float64) (*service.AutoMergeSummary, error) {
	m.autos++
	return &service.AutoMergeSummary{Threshold: threshold}, nil
}

func TestJobLockedMerger(t *testing.T) {
	dir := t.TempDir()
	next := &countingMerger{}
	merger := newJobLockedMerger(dir, next)
	ctx := context.Background()

	held, err := lock.AcquireJobLock(dir)
	require.NoError(t, err)
	_, err = merger.MergeCluster(ctx, 1, 10, []uint{20}, "")
	assert.ErrorIs(t, err, lock.ErrJobRunning)
	_, err = merger.AutoMergeHighConfidence(ctx, 0.95)
	assert.ErrorIs(t, err, lock.ErrJobRunning)
	assert.Zero(t, next.merges+next.autos)
	require.NoError(t, held.Release())

	result, err := merger.MergeCluster(ctx, 1, 10, []uint{20}, "")
	require.NoError(t, err)
	assert.Equal(t, uint(10), result.KeepID)
	_, err = merger.AutoMergeHighConfidence(ctx, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 1, next.merges)
	assert.Equal(t, 1, next.autos)

	// 每次调用结束后锁已释放，批处理命令可以再次拿到
	again, err := lock.AcquireJobLock(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
