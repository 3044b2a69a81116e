package model

// SourceDocument 是各语料库文档表的公共列。
// 每个语料库有自己的表，读写时通过 db.Table(name) 指定，因此这里不定义 TableName。
type SourceDocument struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title   string `gorm:"type:varchar(512)" json:"title"`
	Author  string `gorm:"type:varchar(255)" json:"author"`
	Content string `gorm:"type:longtext" json:"content"`
	Slug    string `gorm:"type:varchar(255)" json:"slug"`
}
