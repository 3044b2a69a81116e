package repository

import (
	"context"

	"corpus-dedup/internal/config"
	"corpus-dedup/internal/model"

	"gorm.io/gorm"
)

// SourceRepository 是单个语料库文档表的访问接口。
type SourceRepository interface {
	Name() string
	List(ctx context.Context) ([]model.SourceDocument, error)
	Get(ctx context.Context, id uint) (*model.SourceDocument, error)
	Delete(ctx context.Context, id uint) error
	Count(ctx context.Context) (int64, error)
}

type sourceRepository struct {
	db    *gorm.DB
	name  string
	table string
}

// NewSourceRepository 创建指定语料库表的 SourceRepository。
func NewSourceRepository(db *gorm.DB, name, table string) SourceRepository {
	return &sourceRepository{db: db, name: name, table: table}
}

func (r *sourceRepository) Name() string {
	return r.name
}

// List 按 id 升序返回语料库的全部文档。
func (r *sourceRepository) List(ctx context.Context) ([]model.SourceDocument, error) {
	var docs []model.SourceDocument
	err := r.db.WithContext(ctx).Table(r.table).Order("id asc").Find(&docs).Error
	return docs, err
}

// Get 查找单篇文档，不存在时返回 gorm.ErrRecordNotFound。
func (r *sourceRepository) Get(ctx context.Context, id uint) (*model.SourceDocument, error) {
	var doc model.SourceDocument
	if err := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete 删除单篇文档，行不存在时返回 gorm.ErrRecordNotFound。
func (r *sourceRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Table(r.table).Where("id = ?", id).Delete(&model.SourceDocument{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Count 返回语料库的文档总数。
func (r *sourceRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table(r.table).Count(&n).Error
	return n, err
}

// SourceRegistry 记录已配置的语料库及其表名。
type SourceRegistry struct {
	order  []string
	tables map[string]string
}

// NewSourceRegistry 根据配置构建注册表，保持配置中的顺序。
func NewSourceRegistry(sources []config.SourceConfig) *SourceRegistry {
	reg := &SourceRegistry{tables: make(map[string]string, len(sources))}
	for _, s := range sources {
		reg.order = append(reg.order, s.Name)
		reg.tables[s.Name] = s.Table
	}
	return reg
}

// Names 返回所有语料库名称。
func (r *SourceRegistry) Names() []string {
	return append([]string(nil), r.order...)
}

// Has 判断语料库是否已配置。
func (r *SourceRegistry) Has(name string) bool {
	_, ok := r.tables[name]
	return ok
}

// Open 返回绑定到 db（可以是事务）的语料库仓库。
func (r *SourceRegistry) Open(db *gorm.DB, name string) (SourceRepository, bool) {
	table, ok := r.tables[name]
	if !ok {
		return nil, false
	}
	return NewSourceRepository(db, name, table), true
}
