package service

import (
	"context"
	"errors"
	"fmt"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/repository"
	"corpus-dedup/pkg/lock"
	"corpus-dedup/pkg/log"
	"corpus-dedup/pkg/progress"
	"corpus-dedup/pkg/signature"

	"gorm.io/gorm"
)

// FingerprintService 为语料库计算并刷新文档指纹。
type FingerprintService interface {
	// Generate 全量刷新一个语料库的指纹，返回写入的行数。
	Generate(ctx context.Context, source string) (int, error)
	// GenerateAll 依次刷新所有已配置的语料库。
	GenerateAll(ctx context.Context) (map[string]int, error)
}

type fingerprintService struct {
	db        *gorm.DB
	sources   *repository.SourceRegistry
	locker    lock.Locker
	batchSize int
	reporter  progress.Reporter
}

// NewFingerprintService 创建一个新的 FingerprintService 实例。
func NewFingerprintService(db *gorm.DB, sources *repository.SourceRegistry, locker lock.Locker, batchSize int, reporter progress.Reporter) FingerprintService {
	if reporter == nil {
		reporter = progress.Nop{}
	}
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &fingerprintService{
		db:        db,
		sources:   sources,
		locker:    locker,
		batchSize: batchSize,
		reporter:  reporter,
	}
}

// BuildFingerprint 计算一篇文档的全部签名。
func BuildFingerprint(source string, doc *model.SourceDocument) *model.DocumentFingerprint {
	normalized := signature.NormalizeContent(doc.Content)
	return &model.DocumentFingerprint{
		Source:               source,
		SourceID:             doc.ID,
		Slug:                 doc.Slug,
		ContentMD5:           signature.MD5Hex(doc.Content),
		ContentSHA256:        signature.SHA256Hex(doc.Content),
		NormalizedContentMD5: signature.MD5Hex(normalized),
		TitleNormalized:      signature.NormalizeTitle(doc.Title),
		TitleSoundex:         signature.Soundex(signature.NormalizeTitle(doc.Title)),
		AuthorSoundex:        signature.Soundex(doc.Author),
		Simhash64:            int64(signature.Simhash64(normalized)),
		WordCount:            signature.WordCount(doc.Content),
	}
}

func (s *fingerprintService) Generate(ctx context.Context, source string) (int, error) {
	provider, ok := s.sources.Open(s.db, source)
	if !ok {
		return 0, fmt.Errorf("%w: unknown source %q", ErrConfiguration, source)
	}

	// 刷新期间持有该语料库的排他锁，合并不会同时删除它的指纹
	release, err := s.locker.Acquire(ctx, lock.SourceKey(source))
	if err != nil {
		return 0, fmt.Errorf("lock source %s: %w", source, err)
	}
	defer release()

	log.Infof("[Fingerprint] 开始刷新语料库 %s", source)
	docs, err := provider.List(ctx)
	if err != nil {
		return 0, persistenceErr("list "+source, err)
	}

	s.reporter.Start(len(docs), "fingerprint "+source)
	rows := make([]*model.DocumentFingerprint, 0, len(docs))
	live := make(map[uint]struct{}, len(docs))
	skipped := 0
	for i := range docs {
		doc := &docs[i]
		s.reporter.Add(1)
		if doc.ID == 0 {
			log.Warnf("[Fingerprint] %s 中存在 id 为空的文档 (slug=%q)，跳过", source, doc.Slug)
			skipped++
			continue
		}
		if _, dup := live[doc.ID]; dup {
			log.Warnf("[Fingerprint] %s 中文档 id=%d 重复出现，跳过", source, doc.ID)
			skipped++
			continue
		}
		live[doc.ID] = struct{}{}
		rows = append(rows, BuildFingerprint(source, doc))
	}
	s.reporter.Finish()

	var removed int
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fpRepo := repository.NewFingerprintRepository(tx)
		clusterRepo := repository.NewClusterRepository(tx)

		existing, err := fpRepo.FindBySource(ctx, source)
		if err != nil {
			return err
		}
		stale := make([]uint, 0)
		for _, fp := range existing {
			if _, ok := live[fp.SourceID]; !ok {
				stale = append(stale, fp.ID)
			}
		}
		if err := clusterRepo.DeleteMembershipsForFingerprints(ctx, stale); err != nil {
			return err
		}
		if err := fpRepo.DeleteByIDs(ctx, stale); err != nil {
			return err
		}
		removed = len(stale)
		return fpRepo.Upsert(ctx, rows, s.batchSize)
	})
	if err != nil {
		return 0, persistenceErr("refresh fingerprints for "+source, err)
	}

	log.Infow("[Fingerprint] 语料库刷新完成",
		"source", source,
		"documents", len(docs),
		"written", len(rows),
		"removed", removed,
		"skipped", skipped,
	)
	return len(rows), nil
}

func (s *fingerprintService) GenerateAll(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	var errs []error
	for _, name := range s.sources.Names() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := s.Generate(ctx, name)
		if err != nil {
			log.Errorw("[Fingerprint] 刷新语料库失败", "source", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		counts[name] = n
	}
	return counts, errors.Join(errs...)
}
