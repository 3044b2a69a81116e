package service

import (
	"context"
	"testing"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/lock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestReviewService(db *gorm.DB) ReviewService {
	return NewReviewService(
		repository.NewClusterRepository(db),
		repository.NewFingerprintRepository(db),
		repository.NewTagRepository(db),
	)
}

func TestGetClusterInfo(t *testing.T) {
	f := newMergeFixture(t)
	svc := newTestReviewService(f.db)

	info, err := svc.GetClusterInfo(context.Background(), f.clusterID)
	require.NoError(t, err)

	assert.Equal(t, f.clusterID, info.ID)
	assert.Equal(t, model.ClusterTypeFuzzy, info.ClusterType)
	assert.Equal(t, 0.95, info.ConfidenceScore)
	assert.Equal(t, model.ReviewStatusPending, info.ReviewStatus)
	assert.Nil(t, info.ReviewedAt)
	assert.Empty(t, info.MissingMembers)
	require.Len(t, info.Members, 2)

	tagCounts := map[string]int64{}
	for _, m := range info.Members {
		tagCounts[m.Source] = m.TagCount
	}
	assert.Equal(t, map[string]int64{"library": 5, "anarchist": 3}, tagCounts)
}

func TestGetClusterInfo_AfterMergeShowsCanonical(t *testing.T) {
	f := newMergeFixture(t)
	ctx := context.Background()
	_, err := f.svc.MergeCluster(ctx, f.clusterID, f.keep.ID, []uint{f.remove.ID}, "")
	require.NoError(t, err)

	info, err := newTestReviewService(f.db).GetClusterInfo(ctx, f.clusterID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewStatusMerged, info.ReviewStatus)
	require.NotNil(t, info.CanonicalFingerprintID)
	assert.Equal(t, f.keep.ID, *info.CanonicalFingerprintID)
	assert.NotNil(t, info.ReviewedAt)
	require.Len(t, info.Members, 1)
	assert.Equal(t, int64(7), info.Members[0].TagCount)
}

func TestGetClusterInfo_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := newTestReviewService(db).GetClusterInfo(context.Background(), 12)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectCluster(t *testing.T) {
	f := newMergeFixture(t)
	ctx := context.Background()
	svc := newTestReviewService(f.db)

	require.NoError(t, svc.RejectCluster(ctx, f.clusterID, "different translations"))

	info, err := svc.GetClusterInfo(ctx, f.clusterID)
	require.NoError(t, err)
	assert.Equal(t, model.ReviewStatusRejected, info.ReviewStatus)
	assert.Equal(t, "different translations", info.Notes)
	assert.Nil(t, info.CanonicalFingerprintID)

	assert.ErrorIs(t, svc.RejectCluster(ctx, f.clusterID, ""), ErrValidation)

	// 被驳回的聚类不参与自动合并，也不能再手动合并
	merger := NewMergeService(f.db, repository.NewSourceRegistry(testSources), lock.NewLocalLocker(), MergeDeps{})
	summary, err := merger.AutoMergeHighConfidence(ctx, 0.0)
	require.NoError(t, err)
	assert.Zero(t, summary.Considered)
	_, err = f.svc.MergeCluster(ctx, f.clusterID, f.keep.ID, []uint{f.remove.ID}, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestListClusters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedCluster(t, db, model.ClusterTypeExact, 1.0, 1, 2)
	second := seedCluster(t, db, model.ClusterTypeNearDuplicate, 0.7, 3, 4)
	svc := newTestReviewService(db)
	require.NoError(t, svc.RejectCluster(ctx, second, ""))

	all, err := svc.ListClusters(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1.0, all[0].ConfidenceScore)

	rejected, err := svc.ListClusters(ctx, model.ReviewStatusRejected, 10)
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, second, rejected[0].ID)

	_, err = svc.ListClusters(ctx, "archived", 0)
	assert.ErrorIs(t, err, ErrValidation)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats[model.ReviewStatusPending])
	assert.Equal(t, int64(1), stats[model.ReviewStatusRejected])
}
