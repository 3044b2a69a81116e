package model

import "time"

// 聚类类型，对应三种检测层。
const (
	ClusterTypeExact         = "exact_match"
	ClusterTypeFuzzy         = "fuzzy_match"
	ClusterTypeNearDuplicate = "near_duplicate"
)

// 审核状态。
const (
	ReviewStatusPending  = "pending"
	ReviewStatusMerged   = "merged"
	ReviewStatusRejected = "rejected"
)

// DuplicateCluster 对应 duplicate_clusters 表，是一组被认为属于同一作品的指纹。
type DuplicateCluster struct {
	ID              uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	ClusterType     string  `gorm:"type:varchar(32);not null;index" json:"clusterType"`
	ConfidenceScore float64 `gorm:"not null" json:"confidenceScore"`
	ReviewStatus    string  `gorm:"type:varchar(16);not null;index" json:"reviewStatus"`
	// CanonicalFingerprintID 在合并之前为 NULL。
	CanonicalFingerprintID *uint `gorm:"column:canonical_fingerprint_id" json:"canonicalFingerprintId"`
	// MemberKey 是类型加上排序后成员 ID 的 sha256，重复检测时用来识别已存在的聚类。
	MemberKey  string     `gorm:"type:char(64);not null;uniqueIndex" json:"-"`
	Notes      string     `gorm:"type:text" json:"notes"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	ReviewedAt *time.Time `gorm:"default:null" json:"reviewedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (DuplicateCluster) TableName() string {
	return "duplicate_clusters"
}

// ClusterDocument 对应 cluster_documents 表，记录聚类成员关系。
type ClusterDocument struct {
	ClusterID     uint `gorm:"primaryKey;autoIncrement:false" json:"clusterId"`
	FingerprintID uint `gorm:"primaryKey;autoIncrement:false;index" json:"fingerprintId"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ClusterDocument) TableName() string {
	return "cluster_documents"
}
