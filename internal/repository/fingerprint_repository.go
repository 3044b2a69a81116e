// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"

	"corpus-dedup/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 刷新时会被覆盖的列，(source, source_id) 冲突时更新这些列。
var fingerprintUpsertColumns = []string{
	"slug", "content_md5", "content_sha256", "normalized_content_md5",
	"title_normalized", "title_soundex", "author_soundex",
	"simhash_64", "word_count", "updated_at",
}

// FingerprintRepository 定义了 document_fingerprints 表的数据操作。
type FingerprintRepository interface {
	FindAll(ctx context.Context) ([]model.DocumentFingerprint, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.DocumentFingerprint, error)
	FindBySource(ctx context.Context, source string) ([]model.DocumentFingerprint, error)
	Upsert(ctx context.Context, rows []*model.DocumentFingerprint, batchSize int) error
	DeleteByIDs(ctx context.Context, ids []uint) error
	CountBySource(ctx context.Context) (map[string]int64, error)
}

type fingerprintRepository struct {
	db *gorm.DB
}

// NewFingerprintRepository 创建一个新的 FingerprintRepository 实例；传入事务句柄时所有操作都在该事务中执行。
func NewFingerprintRepository(db *gorm.DB) FingerprintRepository {
	return &fingerprintRepository{db: db}
}

// FindAll 按 id 升序返回全部指纹，作为一次检测的快照。
func (r *fingerprintRepository) FindAll(ctx context.Context) ([]model.DocumentFingerprint, error) {
	var rows []model.DocumentFingerprint
	err := r.db.WithContext(ctx).Order("id asc").Find(&rows).Error
	return rows, err
}

// FindByIDs 按 id 批量查询，结果按 id 升序。
func (r *fingerprintRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.DocumentFingerprint, error) {
	var rows []model.DocumentFingerprint
	if len(ids) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id asc").Find(&rows).Error
	return rows, err
}

// FindBySource 返回某个语料库的全部指纹。
func (r *fingerprintRepository) FindBySource(ctx context.Context, source string) ([]model.DocumentFingerprint, error) {
	var rows []model.DocumentFingerprint
	err := r.db.WithContext(ctx).Where("source = ?", source).Order("id asc").Find(&rows).Error
	return rows, err
}

// Upsert 按 (source, source_id) 分批插入或更新指纹。
func (r *fingerprintRepository) Upsert(ctx context.Context, rows []*model.DocumentFingerprint, batchSize int) error {
	if len(rows) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}, {Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns(fingerprintUpsertColumns),
	}).CreateInBatches(rows, batchSize).Error
}

// DeleteByIDs 删除指定的指纹行。
func (r *fingerprintRepository) DeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&model.DocumentFingerprint{}).Error
}

// CountBySource 统计每个语料库的指纹数量。
func (r *fingerprintRepository) CountBySource(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Source string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&model.DocumentFingerprint{}).
		Select("source, count(*) as total").Group("source").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Source] = row.Total
	}
	return counts, nil
}
