// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// DocumentFingerprint 对应 document_fingerprints 表。
// 每行是某个语料库中一篇文档的可比较签名，(source, source_id) 唯一。
type DocumentFingerprint struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Source   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_fingerprint_source_doc,priority:1" json:"source"`
	SourceID uint   `gorm:"not null;uniqueIndex:idx_fingerprint_source_doc,priority:2;column:source_id" json:"sourceId"`
	Slug     string `gorm:"type:varchar(255)" json:"slug"`

	ContentMD5           string `gorm:"type:char(32);column:content_md5" json:"contentMd5"`
	ContentSHA256        string `gorm:"type:char(64);column:content_sha256" json:"contentSha256"`
	NormalizedContentMD5 string `gorm:"type:char(32);index;column:normalized_content_md5" json:"normalizedContentMd5"`

	TitleNormalized string `gorm:"type:varchar(512);column:title_normalized" json:"titleNormalized"`
	TitleSoundex    string `gorm:"type:varchar(8);column:title_soundex" json:"titleSoundex"`
	AuthorSoundex   string `gorm:"type:varchar(8);column:author_soundex" json:"authorSoundex"`

	// Simhash64 按 uint64 解释；数据库驱动不支持最高位为 1 的 uint64，因此以 int64 存储。0 表示未计算。
	Simhash64 int64 `gorm:"not null;default:0;column:simhash_64" json:"simhash64"`
	WordCount int   `gorm:"not null;default:0;column:word_count" json:"wordCount"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentFingerprint) TableName() string {
	return "document_fingerprints"
}

// Simhash 返回无符号形式的 simhash。
func (f DocumentFingerprint) Simhash() uint64 {
	return uint64(f.Simhash64)
}

// Ref 返回该指纹指向的语料库文档。
func (f DocumentFingerprint) Ref() DocumentRef {
	return DocumentRef{Source: f.Source, SourceID: f.SourceID}
}

// DocumentRef 唯一标识某个语料库中的一篇文档。
type DocumentRef struct {
	Source   string `json:"source"`
	SourceID uint   `json:"sourceId"`
}
