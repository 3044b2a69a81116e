// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Log           LogConfig           `mapstructure:"log"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Sources       []SourceConfig      `mapstructure:"sources"`
	Fingerprint   FingerprintConfig   `mapstructure:"fingerprint"`
	Detect        DetectConfig        `mapstructure:"detect"`
	Merge         MergeConfig         `mapstructure:"merge"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Server        ServerConfig        `mapstructure:"server"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	LockDir       string              `mapstructure:"lock_dir"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	AutoMigrate  bool   `mapstructure:"auto_migrate"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时使用进程内锁。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SourceConfig 描述一个语料库：名称及其文档表。
type SourceConfig struct {
	Name  string `mapstructure:"name"`
	Table string `mapstructure:"table"`
}

// FingerprintConfig 存储指纹生成相关的配置。
type FingerprintConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// DetectConfig 存储重复检测相关的配置。
type DetectConfig struct {
	CheckpointInterval int  `mapstructure:"checkpoint_interval"`
	Parallel           bool `mapstructure:"parallel"`
}

// MergeConfig 存储合并相关的配置。
type MergeConfig struct {
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	Archive bool          `mapstructure:"archive"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，用于归档被合并删除的文档。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。Addresses 为空时不清理索引。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布合并事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// ServerConfig 存储人工审核 API 的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// JWTConfig 存储审核人员 token 的配置。
type JWTConfig struct {
	Secret           string `mapstructure:"secret"`
	TokenExpireHours int    `mapstructure:"token_expire_hours"`
}

// SourceNames 按配置顺序返回所有语料库名称。
func (c Config) SourceNames() []string {
	names := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		names = append(names, s.Name)
	}
	return names
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("database.mysql.max_open_conns", 20)
	v.SetDefault("database.mysql.max_idle_conns", 5)
	v.SetDefault("database.mysql.auto_migrate", true)
	v.SetDefault("fingerprint.batch_size", 1000)
	v.SetDefault("detect.checkpoint_interval", 100)
	v.SetDefault("detect.parallel", false)
	v.SetDefault("merge.lock_ttl", "10m")
	v.SetDefault("merge.archive", true)
	v.SetDefault("kafka.topic", "dedup-merges")
	v.SetDefault("elasticsearch.index_name", "documents")
	v.SetDefault("server.port", "8090")
	v.SetDefault("server.mode", "release")
	v.SetDefault("jwt.token_expire_hours", 24)
	v.SetDefault("lock_dir", ".")
}

// Load 从指定路径读取 YAML 文件，并允许使用 DEDUP_ 前缀的环境变量覆盖。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("DEDUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate 检查语料库配置是否完整且没有重名。
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("配置中至少需要一个 sources 条目")
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for _, s := range c.Sources {
		if s.Name == "" || s.Table == "" {
			return fmt.Errorf("source 配置缺少 name 或 table: %+v", s)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("source 名称重复: %s", s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
