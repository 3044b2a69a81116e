package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"corpus-dedup/internal/config"
	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/database"
	"corpus-dedup/pkg/tasks"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testSources = []config.SourceConfig{
	{Name: "library", Table: "library_documents"},
	{Name: "anarchist", Table: "anarchist_documents"},
}

// newTestDB 打开一个内存 sqlite 并建好全部表。
// 内存库与连接绑定，因此只允许一个连接。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db, testSources))
	return db
}

func tableOf(source string) string {
	for _, s := range testSources {
		if s.Name == source {
			return s.Table
		}
	}
	return ""
}

func seedDocument(t *testing.T, db *gorm.DB, source string, doc model.SourceDocument) model.SourceDocument {
	t.Helper()
	require.NoError(t, db.Table(tableOf(source)).Create(&doc).Error)
	return doc
}

func seedFingerprint(t *testing.T, db *gorm.DB, fp model.DocumentFingerprint) model.DocumentFingerprint {
	t.Helper()
	require.NoError(t, db.Create(&fp).Error)
	return fp
}

func seedTags(t *testing.T, db *gorm.DB, ref model.DocumentRef, tags ...string) {
	t.Helper()
	repo := repository.NewTagRepository(db)
	for _, tag := range tags {
		require.NoError(t, repo.AddTag(context.Background(), ref, tag))
	}
}

func seedCluster(t *testing.T, db *gorm.DB, clusterType string, confidence float64, ids ...uint) uint {
	t.Helper()
	repo := repository.NewClusterRepository(db)
	created, _, err := repo.CreateBatch(context.Background(), []repository.ClusterDraft{
		{Type: clusterType, Confidence: confidence, FingerprintIDs: ids},
	})
	require.NoError(t, err)
	require.Equal(t, 1, created)

	var cluster model.DuplicateCluster
	require.NoError(t, db.Where("member_key = ?", repository.MemberKey(clusterType, ids)).First(&cluster).Error)
	return cluster.ID
}

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Table(table).Count(&n).Error)
	return n
}

type fakeArchiver struct {
	mu       sync.Mutex
	archived []string
	err      error
}

func (f *fakeArchiver) ArchiveDocument(_ context.Context, _ uint, source string, doc *model.SourceDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.archived = append(f.archived, source+":"+doc.Slug)
	return nil
}

type fakeIndex struct {
	removed []model.DocumentRef
	err     error
}

func (f *fakeIndex) RemoveDocuments(_ context.Context, refs []model.DocumentRef) error {
	f.removed = append(f.removed, refs...)
	return f.err
}

type fakePublisher struct {
	events []tasks.MergeEvent
}

func (f *fakePublisher) PublishMerge(_ context.Context, event tasks.MergeEvent) error {
	f.events = append(f.events, event)
	return errors.New("broker unavailable")
}
