// Package shutdown 退出前按顺序执行清理回调（保存价格水平、关闭存储后端、停止 HTTP 服务）。
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/betbot/levelalarm/pkg/logger"
)

// Handler 关闭处理函数
type Handler func(ctx context.Context) error

type entry struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器。回调按注册的逆序依次执行（后打开的资源先关闭）。
type Manager struct {
	mu        sync.Mutex
	callbacks []entry
	done      bool
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调
func (m *Manager) OnShutdown(name string, handler Handler) {
	if handler == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, entry{name: name, fn: handler})
}

// Shutdown 执行所有回调，只执行一次。ctx 应带超时；超时后剩余回调不再执行。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	callbacks := m.callbacks
	m.mu.Unlock()

	if len(callbacks) == 0 {
		logger.Info("没有注册的关闭回调")
		return nil
	}

	logger.Infof("开始优雅关闭，共 %d 个回调", len(callbacks))

	var errs []error
	for i := len(callbacks) - 1; i >= 0; i-- {
		cb := callbacks[i]
		if err := ctx.Err(); err != nil {
			logger.Warnf("关闭超时，跳过 %s: %v", cb.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", cb.name, err))
			continue
		}
		if err := cb.fn(ctx); err != nil {
			logger.Errorf("关闭 %s 失败: %v", cb.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", cb.name, err))
			continue
		}
		logger.Debugf("已关闭 %s", cb.name)
	}
	if len(errs) == 0 {
		logger.Info("所有关闭回调已完成")
	}
	return errors.Join(errs...)
}
