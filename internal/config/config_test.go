package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	path := writeYAML(t, `
sources:
  - name: library
    table: library_documents
  - name: anarchist
    table: anarchist_documents
merge:
  lock_ttl: 90s
`)
	t.Setenv("DEDUP_DETECT_CHECKPOINT_INTERVAL", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"library", "anarchist"}, cfg.SourceNames())
	assert.Equal(t, 1000, cfg.Fingerprint.BatchSize)
	assert.Equal(t, 7, cfg.Detect.CheckpointInterval)
	assert.Equal(t, 90*time.Second, cfg.Merge.LockTTL)
	assert.True(t, cfg.Merge.Archive)
	assert.Equal(t, "dedup-merges", cfg.Kafka.Topic)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		sources []SourceConfig
	}{
		{"no sources", nil},
		{"missing table", []SourceConfig{{Name: "library"}}},
		{"duplicate name", []SourceConfig{{Name: "a", Table: "t1"}, {Name: "a", Table: "t2"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, Config{Sources: tc.sources}.Validate())
		})
	}
	assert.NoError(t, Config{Sources: []SourceConfig{{Name: "a", Table: "t"}}}.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
