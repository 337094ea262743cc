// Package persistence 价格水平的持久化后端（文本文件 / Badger / SQLite）
package persistence

import (
	"errors"
	"fmt"
	"strings"
)

// Backend 价格水平存储后端
type Backend interface {
	// Load 读取全部水平；数据不存在时返回 ErrNotExists
	Load() ([]float64, error)
	// Save 覆盖写入全部水平
	Save(levels []float64) error
	Close() error
}

// ErrNotExists 表示数据不存在（首次运行）
var ErrNotExists = errors.New("persistence data not exists")

// CorruptError 数据存在但无法解析
type CorruptError struct {
	Source string
	Line   int
	Text   string
	Err    error
}

func (e *CorruptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("corrupt level data in %s at line %d (%q): %v", e.Source, e.Line, e.Text, e.Err)
	}
	return fmt.Sprintf("corrupt level data in %s (%q): %v", e.Source, e.Text, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// IsCorrupt 判断错误是否为数据损坏
func IsCorrupt(err error) bool {
	var ce *CorruptError
	return errors.As(err, &ce)
}

// Kind 后端类型
type Kind string

const (
	KindText   Kind = "text"
	KindBadger Kind = "badger"
	KindSQLite Kind = "sqlite"
)

// Options 打开后端的参数
type Options struct {
	Kind          Kind
	Path          string
	EncryptionKey string // 仅 badger 使用，32 字节 hex/base64
}

// Open 按类型打开后端
func Open(opts Options) (Backend, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, errors.New("persistence: path is required")
	}
	switch opts.Kind {
	case KindText, "":
		return NewTextFile(opts.Path), nil
	case KindBadger:
		key, err := ParseKey(opts.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("persistence: encryption key: %w", err)
		}
		return OpenBadger(opts.Path, key)
	case KindSQLite:
		return OpenSQLite(opts.Path)
	default:
		return nil, fmt.Errorf("persistence: unknown backend %q", opts.Kind)
	}
}
