package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"corpus-dedup/internal/config"
	"corpus-dedup/internal/repository"
	"corpus-dedup/internal/service"
	"corpus-dedup/pkg/database"
	"corpus-dedup/pkg/es"
	"corpus-dedup/pkg/kafka"
	"corpus-dedup/pkg/lock"
	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/progress"
	"corpus-dedup/pkg/storage"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	closers []func()
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig 加载配置并初始化日志，只执行一次。
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := strings.TrimSpace(*c.configFlag)
		cfg, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
		c.config = &cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) onClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// close 逆序释放命令期间打开的资源。
func (c *commandContext) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
	log.Sync()
}

// signalContext 在收到 SIGINT/SIGTERM 时取消，检测在下一个检查点停止，自动合并在两个聚类之间停止。
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// jobLock 为修改数据的批处理命令加进程文件锁。
func (c *commandContext) jobLock() error {
	jl, err := lock.AcquireJobLock(c.config.LockDir)
	if err != nil {
		return err
	}
	c.onClose(func() {
		if err := jl.Release(); err != nil {
			log.Warnf("释放任务锁失败: %v", err)
		}
	})
	return nil
}

// appOptions 描述命令需要的依赖。
type appOptions struct {
	// exclusive 表示命令会批量修改数据，需要持有任务锁。
	exclusive bool
	// sideEffects 表示命令可能合并文档，需要归档、索引与事件发布。
	sideEffects bool
}

// withApp 打开依赖并执行 fn，结束后释放全部资源。
func (c *commandContext) withApp(cmd *cobra.Command, opts appOptions, fn func(ctx context.Context, a *app) error) error {
	defer c.close()
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if opts.exclusive {
		if err := c.jobLock(); err != nil {
			return err
		}
	}
	a, err := c.openApp(ctx, opts.sideEffects)
	if err != nil {
		return err
	}
	return fn(ctx, a)
}

// app 是一次命令执行所需的全部依赖。
type app struct {
	cfg     *config.Config
	db      *gorm.DB
	sources *repository.SourceRegistry
	locker  lock.Locker
	deps    service.MergeDeps
}

// openApp 连接数据库与锁服务；withSideEffects 为 true 时还会初始化归档、索引与事件发布。
func (c *commandContext) openApp(ctx context.Context, withSideEffects bool) (*app, error) {
	cfg := c.config
	db, err := database.OpenMySQL(cfg.Database.MySQL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", service.ErrPersistence, err)
	}
	if sqlDB, err := db.DB(); err == nil {
		c.onClose(func() { _ = sqlDB.Close() })
	}
	if cfg.Database.MySQL.AutoMigrate {
		if err := database.AutoMigrate(db, cfg.Sources); err != nil {
			return nil, fmt.Errorf("%w: %w", service.ErrPersistence, err)
		}
	}

	a := &app{
		cfg:     cfg,
		db:      db,
		sources: repository.NewSourceRegistry(cfg.Sources),
	}

	if cfg.Database.Redis.Addr != "" {
		rdb, err := database.OpenRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		c.onClose(func() { _ = rdb.Close() })
		a.locker = lock.NewRedisLocker(rdb, cfg.Merge.LockTTL)
	} else {
		log.Warnf("未配置 Redis，语料库锁只在本进程内生效")
		a.locker = lock.NewLocalLocker()
	}

	if !withSideEffects {
		return a, nil
	}
	if cfg.Merge.Archive && cfg.MinIO.Endpoint != "" {
		archiver, err := storage.NewArchiver(ctx, cfg.MinIO)
		if err != nil {
			return nil, err
		}
		a.deps.Archiver = archiver
	}
	if cfg.Elasticsearch.Addresses != "" {
		index, err := es.NewIndex(cfg.Elasticsearch)
		if err != nil {
			return nil, fmt.Errorf("初始化 Elasticsearch 失败: %w", err)
		}
		a.deps.Index = index
	}
	if cfg.Kafka.Brokers != "" {
		publisher := kafka.NewPublisher(cfg.Kafka)
		c.onClose(func() { _ = publisher.Close() })
		a.deps.Publisher = publisher
	}
	return a, nil
}

func (a *app) fingerprintService() service.FingerprintService {
	return service.NewFingerprintService(a.db, a.sources, a.locker, a.cfg.Fingerprint.BatchSize, progress.NewReporter())
}

func (a *app) detectService() service.DetectService {
	return service.NewDetectService(
		repository.NewFingerprintRepository(a.db),
		repository.NewClusterRepository(a.db),
		service.DetectOptions{
			CheckpointInterval: a.cfg.Detect.CheckpointInterval,
			Parallel:           a.cfg.Detect.Parallel,
			Reporter:           progress.NewReporter(),
		},
	)
}

func (a *app) mergeService() service.MergeService {
	return service.NewMergeService(a.db, a.sources, a.locker, a.deps)
}

func (a *app) reviewService() service.ReviewService {
	return service.NewReviewService(
		repository.NewClusterRepository(a.db),
		repository.NewFingerprintRepository(a.db),
		repository.NewTagRepository(a.db),
	)
}
