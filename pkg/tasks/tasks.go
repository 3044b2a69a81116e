// Package tasks defines the messages published to Kafka after a merge.
package tasks

import "time"

// MergeEvent 描述一次已提交的合并，下游（搜索、推荐）据此更新自己的数据。
type MergeEvent struct {
	ClusterID   uint          `json:"cluster_id"`
	ClusterType string        `json:"cluster_type"`
	Keep        DocumentKey   `json:"keep"`
	Removed     []DocumentKey `json:"removed"`
	TagsAdded   int           `json:"tags_added"`
	Notes       string        `json:"notes"`
	MergedAt    time.Time     `json:"merged_at"`
}

// DocumentKey 指向某个语料库中的一篇文档及其指纹。
type DocumentKey struct {
	FingerprintID uint   `json:"fingerprint_id"`
	Source        string `json:"source"`
	SourceID      uint   `json:"source_id"`
}
