// Package levels 用户维护的价格水平集合。
//
// 并发策略：集合由读写锁保护。监控循环只通过 Snapshot 读取副本，
// 菜单和 HTTP 接口在写锁下修改，因此两者可以同时工作。
package levels

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/internal/metrics"
	"github.com/betbot/levelalarm/pkg/persistence"
)

var log = logrus.WithField("module", "levels")

var (
	// ErrNotFound 要删除的水平不在集合中
	ErrNotFound = errors.New("level not found")
	// ErrDuplicate 水平已存在
	ErrDuplicate = errors.New("level already exists")
	// ErrInvalid 非法价格（负数 / NaN / Inf）
	ErrInvalid = errors.New("invalid level")
)

// Store 价格水平集合（按值去重，保留插入顺序）
type Store struct {
	mu      sync.RWMutex
	levels  []float64
	backend persistence.Backend
	dirty   bool
	// gen 每次修改加一；Save 只有在写入期间没有新修改时才清除 dirty
	gen uint64

	// saveMu 串行化 Save，避免并发写同一个后端
	saveMu sync.Mutex
}

// NewStore 创建集合；backend 可以为 nil（仅内存）
func NewStore(backend persistence.Backend) *Store {
	return &Store{backend: backend}
}

// Load 从后端加载，替换当前集合。
// 数据不存在 → 空集合，返回 nil；数据损坏 → 集合保持不变并返回错误。
func (s *Store) Load() error {
	if s.backend == nil {
		return nil
	}
	loaded, err := s.backend.Load()
	if err != nil {
		if errors.Is(err, persistence.ErrNotExists) {
			s.mu.Lock()
			s.levels = nil
			s.dirty = false
			s.gen++
			s.mu.Unlock()
			log.Info("未找到已保存的价格水平，使用空集合")
			return nil
		}
		return fmt.Errorf("load levels: %w", err)
	}

	uniq := make([]float64, 0, len(loaded))
	seen := make(map[float64]struct{}, len(loaded))
	for _, v := range loaded {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		uniq = append(uniq, v)
	}

	s.mu.Lock()
	s.levels = uniq
	s.dirty = false
	s.gen++
	s.mu.Unlock()
	metrics.LevelLoads.Add(1)
	log.Infof("已加载 %d 个价格水平", len(uniq))
	return nil
}

// Save 写入后端
func (s *Store) Save() error {
	if s.backend == nil {
		return nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snap := make([]float64, len(s.levels))
	copy(snap, s.levels)
	gen := s.gen
	s.mu.RUnlock()

	if err := s.backend.Save(snap); err != nil {
		return fmt.Errorf("save levels: %w", err)
	}
	s.mu.Lock()
	if s.gen == gen {
		s.dirty = false
	}
	s.mu.Unlock()
	metrics.LevelSaves.Add(1)
	log.Infof("已保存 %d 个价格水平", len(snap))
	return nil
}

// Dirty 是否有未保存的修改
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Add 添加一个水平
func (s *Store) Add(v float64) error {
	if !domain.ValidPrice(v) {
		return fmt.Errorf("%w: %v", ErrInvalid, v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexLocked(v) >= 0 {
		return ErrDuplicate
	}
	s.levels = append(s.levels, v)
	s.markLocked()
	return nil
}

// Remove 删除一个水平
func (s *Store) Remove(v float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(v)
	if i < 0 {
		return ErrNotFound
	}
	s.levels = append(s.levels[:i], s.levels[i+1:]...)
	s.markLocked()
	return nil
}

// Clear 删除全部水平
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.levels) > 0 {
		s.markLocked()
	}
	s.levels = nil
}

func (s *Store) contains(v float64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(v) >= 0
}

// Len 数量
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.levels)
}

// Snapshot 按插入顺序返回副本
func (s *Store) Snapshot() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.levels))
	copy(out, s.levels)
	return out
}

// Sorted 按价格降序返回副本（用于显示）
func (s *Store) Sorted() []float64 {
	out := s.Snapshot()
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// Close 关闭后端
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) markLocked() {
	s.dirty = true
	s.gen++
}

func (s *Store) indexLocked(v float64) int {
	for i, l := range s.levels {
		if l == v {
			return i
		}
	}
	return -1
}
