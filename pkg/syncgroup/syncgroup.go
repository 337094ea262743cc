// Package syncgroup 管理后台 goroutine（HTTP 服务、行情推送）的生命周期。
package syncgroup

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/betbot/levelalarm/pkg/logger"
)

// SyncGroup 在 sync.WaitGroup 之上记录每个 goroutine 的名字和返回的错误
type SyncGroup struct {
	wg sync.WaitGroup

	mu      sync.Mutex
	running map[string]int
	errs    []error
}

// NewSyncGroup 创建新的 SyncGroup
func NewSyncGroup() *SyncGroup {
	return &SyncGroup{running: make(map[string]int)}
}

// Go 启动一个命名 goroutine；fn 返回的错误会被记录并在 Wait 时返回
func (g *SyncGroup) Go(name string, fn func() error) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	g.running[name]++
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		err := fn()

		g.mu.Lock()
		defer g.mu.Unlock()
		if g.running[name]--; g.running[name] <= 0 {
			delete(g.running, name)
		}
		if err != nil {
			logger.Warnf("%s 退出: %v", name, err)
			g.errs = append(g.errs, fmt.Errorf("%s: %w", name, err))
		}
	}()
}

// Running 仍在运行的 goroutine 数
func (g *SyncGroup) Running() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.running {
		n += c
	}
	return n
}

// Wait 等待全部完成
func (g *SyncGroup) Wait() error {
	g.wg.Wait()
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Join(g.errs...)
}

// WaitContext 等待全部完成或 ctx 结束
func (g *SyncGroup) WaitContext(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("等待 %d 个 goroutine 超时: %w", g.Running(), ctx.Err())
	}
}
