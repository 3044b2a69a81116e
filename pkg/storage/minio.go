// Package storage 提供与对象存储（MinIO）的交互，用于归档被合并删除的文档。
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"corpus-dedup/internal/config"
	"corpus-dedup/internal/model"
	"corpus-dedup/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchivedDocument 是写入对象存储的文档快照。
type ArchivedDocument struct {
	ClusterID  uint                 `json:"cluster_id"`
	Source     string               `json:"source"`
	Document   model.SourceDocument `json:"document"`
	ArchivedAt time.Time            `json:"archived_at"`
}

// Archiver 在合并删除文档前把原始行保存到 MinIO。
type Archiver struct {
	client *minio.Client
	bucket string
}

// NewArchiver 初始化 MinIO 客户端并确保存储桶存在。
func NewArchiver(ctx context.Context, cfg config.MinIOConfig) (*Archiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}
	log.Infof("MinIO 归档存储桶 '%s' 就绪", cfg.BucketName)
	return &Archiver{client: client, bucket: cfg.BucketName}, nil
}

// ObjectName 返回某篇被合并文档的归档对象名。
func ObjectName(clusterID uint, source string, sourceID uint) string {
	return fmt.Sprintf("merged/%d/%s/%d.json", clusterID, source, sourceID)
}

// ArchiveDocument 将文档以 JSON 形式写入 merged/<cluster>/<source>/<id>.json。
func (a *Archiver) ArchiveDocument(ctx context.Context, clusterID uint, source string, doc *model.SourceDocument) error {
	payload, err := json.Marshal(ArchivedDocument{
		ClusterID:  clusterID,
		Source:     source,
		Document:   *doc,
		ArchivedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	objectName := ObjectName(clusterID, source, doc.ID)
	_, err = a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("归档文档 %s 失败: %w", objectName, err)
	}
	return nil
}
