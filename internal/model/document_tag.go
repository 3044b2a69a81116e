package model

// DocumentTag 对应 document_tags 表，由标签子系统维护。
// 去重模块只通过 TagRepository 读取和追加，从不删除。
type DocumentTag struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Source   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_document_tag,priority:1" json:"source"`
	SourceID uint   `gorm:"not null;uniqueIndex:idx_document_tag,priority:2;column:source_id" json:"sourceId"`
	TagID    string `gorm:"type:varchar(255);not null;uniqueIndex:idx_document_tag,priority:3" json:"tagId"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DocumentTag) TableName() string {
	return "document_tags"
}
