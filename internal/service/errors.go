// Package service 包含了去重的业务逻辑：指纹生成、重复检测与合并。
package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// 错误分类，调用方使用 errors.Is 判断。
var (
	// ErrConfiguration 表示请求了未配置的语料库等配置问题。
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound 表示聚类、指纹或语料库文档不存在。
	ErrNotFound = errors.New("not found")
	// ErrValidation 表示请求参数不合法，例如 keep 与 remove 重叠。
	ErrValidation = errors.New("validation error")
	// ErrPersistence 表示底层存储失败。
	ErrPersistence = errors.New("persistence error")
)

// persistenceErr 将存储层错误归类；记录不存在的错误归为 ErrNotFound。
func persistenceErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s: %w", ErrNotFound, op, err)
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration) || errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
