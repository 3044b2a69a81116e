package repository

import (
	"context"

	"corpus-dedup/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository 是标签子系统 document_tags 表的读取与追加接口。
type TagRepository interface {
	ListTags(ctx context.Context, ref model.DocumentRef) ([]string, error)
	// AddTag 是幂等的：标签已存在时不做任何事。
	AddTag(ctx context.Context, ref model.DocumentRef, tagID string) error
	CountTags(ctx context.Context, ref model.DocumentRef) (int64, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository 创建一个新的 TagRepository 实例。
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// ListTags 返回文档的全部标签，按 tag_id 排序。
func (r *tagRepository) ListTags(ctx context.Context, ref model.DocumentRef) ([]string, error) {
	var tags []string
	err := r.db.WithContext(ctx).Model(&model.DocumentTag{}).
		Where("source = ? AND source_id = ?", ref.Source, ref.SourceID).
		Order("tag_id asc").Pluck("tag_id", &tags).Error
	return tags, err
}

func (r *tagRepository) AddTag(ctx context.Context, ref model.DocumentRef, tagID string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&model.DocumentTag{
		Source:   ref.Source,
		SourceID: ref.SourceID,
		TagID:    tagID,
	}).Error
}

// CountTags 返回文档的标签数量。
func (r *tagRepository) CountTags(ctx context.Context, ref model.DocumentRef) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.DocumentTag{}).
		Where("source = ? AND source_id = ?", ref.Source, ref.SourceID).Count(&n).Error
	return n, err
}
