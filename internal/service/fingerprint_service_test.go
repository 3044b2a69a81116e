package service

import (
	"context"
	"testing"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/lock"
	"corpus-dedup/pkg/signature"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestFingerprintService(db *gorm.DB, batchSize int) FingerprintService {
	return NewFingerprintService(db, repository.NewSourceRegistry(testSources), lock.NewLocalLocker(), batchSize, nil)
}

func TestBuildFingerprint(t *testing.T) {
	doc := &model.SourceDocument{
		ID:      7,
		Title:   "  The Conquest   of Bread ",
		Author:  "Peter Kropotkin",
		Content: "The   Conquest of Bread\nby Peter Kropotkin",
		Slug:    "conquest-of-bread",
	}

	fp := BuildFingerprint("library", doc)

	assert.Equal(t, "library", fp.Source)
	assert.Equal(t, uint(7), fp.SourceID)
	assert.Equal(t, "conquest-of-bread", fp.Slug)
	assert.Equal(t, "the conquest of bread", fp.TitleNormalized)
	assert.Equal(t, signature.Soundex("the conquest of bread"), fp.TitleSoundex)
	assert.Equal(t, "P362", fp.AuthorSoundex)
	assert.Equal(t, signature.MD5Hex(doc.Content), fp.ContentMD5)
	assert.Equal(t, signature.MD5Hex("the conquest of bread by peter kropotkin"), fp.NormalizedContentMD5)
	assert.Len(t, fp.ContentSHA256, 64)
	assert.Equal(t, 7, fp.WordCount)
	assert.NotZero(t, fp.Simhash64)
}

func TestBuildFingerprint_WhitespaceOnlyDifferences(t *testing.T) {
	a := BuildFingerprint("library", &model.SourceDocument{ID: 1, Content: "Mutual Aid:\n\nA Factor of Evolution"})
	b := BuildFingerprint("anarchist", &model.SourceDocument{ID: 1, Content: "mutual aid: a   factor of evolution"})

	assert.NotEqual(t, a.ContentMD5, b.ContentMD5)
	assert.Equal(t, a.NormalizedContentMD5, b.NormalizedContentMD5)
	assert.Equal(t, a.Simhash64, b.Simhash64)
}

func TestGenerate_WritesOneRowPerDocument(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedDocument(t, db, "library", model.SourceDocument{Title: "The Conquest of Bread", Content: "bread for all", Slug: "bread"})
	seedDocument(t, db, "library", model.SourceDocument{Title: "Mutual Aid", Content: "a factor of evolution", Slug: "aid"})
	seedDocument(t, db, "anarchist", model.SourceDocument{Title: "Fields, Factories and Workshops", Content: "industry", Slug: "fields"})

	svc := newTestFingerprintService(db, 1)
	n, err := svc.Generate(ctx, "library")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	counts, err := repository.NewFingerprintRepository(db).CountBySource(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), counts["library"])
	assert.Zero(t, counts["anarchist"])
}

func TestGenerate_RefreshKeepsIDsAndDropsStaleRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	kept := seedDocument(t, db, "library", model.SourceDocument{Title: "God and the State", Content: "first edition", Slug: "god"})
	gone := seedDocument(t, db, "library", model.SourceDocument{Title: "What Is Property", Content: "property is theft", Slug: "property"})
	other := seedDocument(t, db, "anarchist", model.SourceDocument{Title: "What Is Property?", Content: "property is theft", Slug: "property"})

	svc := newTestFingerprintService(db, 1000)
	_, err := svc.GenerateAll(ctx)
	require.NoError(t, err)

	fpRepo := repository.NewFingerprintRepository(db)
	before, err := fpRepo.FindBySource(ctx, "library")
	require.NoError(t, err)
	require.Len(t, before, 2)
	anarchist, err := fpRepo.FindBySource(ctx, "anarchist")
	require.NoError(t, err)
	require.Len(t, anarchist, 1)
	assert.Equal(t, other.ID, anarchist[0].SourceID)

	var keptFP, goneFP model.DocumentFingerprint
	for _, fp := range before {
		switch fp.SourceID {
		case kept.ID:
			keptFP = fp
		case gone.ID:
			goneFP = fp
		}
	}
	clusterID := seedCluster(t, db, model.ClusterTypeExact, 1.0, goneFP.ID, anarchist[0].ID)

	// 语料库中删除一篇、修改一篇后重新生成
	require.NoError(t, db.Table("library_documents").Where("id = ?", gone.ID).Delete(&model.SourceDocument{}).Error)
	require.NoError(t, db.Table("library_documents").Where("id = ?", kept.ID).Update("content", "second edition, revised").Error)

	n, err := svc.Generate(ctx, "library")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	after, err := fpRepo.FindBySource(ctx, "library")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, keptFP.ID, after[0].ID)
	assert.Equal(t, signature.MD5Hex("second edition, revised"), after[0].ContentMD5)
	assert.Equal(t, 3, after[0].WordCount)

	members, err := repository.NewClusterRepository(db).FindMemberIDs(ctx, clusterID)
	require.NoError(t, err)
	assert.Equal(t, []uint{anarchist[0].ID}, members)
}

func TestGenerate_UnknownSource(t *testing.T) {
	db := newTestDB(t)

	_, err := newTestFingerprintService(db, 10).Generate(context.Background(), "gutenberg")

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestGenerate_EmptySourceClearsFingerprints(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	doc := seedDocument(t, db, "anarchist", model.SourceDocument{Title: "Anarchy", Content: "errico malatesta"})
	svc := newTestFingerprintService(db, 10)
	_, err := svc.Generate(ctx, "anarchist")
	require.NoError(t, err)

	require.NoError(t, db.Table("anarchist_documents").Where("id = ?", doc.ID).Delete(&model.SourceDocument{}).Error)
	n, err := svc.Generate(ctx, "anarchist")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, countRows(t, db, "document_fingerprints"))
}
