// Package database 负责初始化 MySQL 与 Redis 连接。
package database

import (
	"fmt"
	"time"

	"corpus-dedup/internal/config"
	"corpus-dedup/internal/model"
	"corpus-dedup/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenMySQL 打开 MySQL 连接并配置连接池。
func OpenMySQL(cfg config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL database connected successfully")
	return db, nil
}

// AutoMigrate 创建指纹、聚类和标签表，并为每个配置的语料库创建文档表（已存在则只补齐列）。
func AutoMigrate(db *gorm.DB, sources []config.SourceConfig) error {
	if err := db.AutoMigrate(
		&model.DocumentFingerprint{},
		&model.DuplicateCluster{},
		&model.ClusterDocument{},
		&model.DocumentTag{},
	); err != nil {
		return fmt.Errorf("迁移去重表失败: %w", err)
	}
	for _, s := range sources {
		if err := db.Table(s.Table).AutoMigrate(&model.SourceDocument{}); err != nil {
			return fmt.Errorf("迁移语料库表 %s 失败: %w", s.Table, err)
		}
	}
	return nil
}
