// Package sigchan 不携带数据的通知 channel。
//
// 控制台用它把“按回车停止监控”传给监控循环：输入 goroutine Emit，监控循环 select C()。
package sigchan

// Chan 非阻塞信号
type Chan struct {
	c chan struct{}
}

// New 创建信号 channel；bufferSize < 1 时按 1 处理，保证 Emit 不丢第一个信号
func New(bufferSize int) *Chan {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Chan{c: make(chan struct{}, bufferSize)}
}

// Emit 发送信号，缓冲已满时丢弃
func (c *Chan) Emit() {
	select {
	case c.c <- struct{}{}:
	default:
	}
}

// Drain 清除未消费的信号，开始新一轮等待前调用
func (c *Chan) Drain() int {
	n := 0
	for {
		select {
		case <-c.c:
			n++
		default:
			return n
		}
	}
}

// C 用于 select
func (c *Chan) C() <-chan struct{} {
	return c.c
}
