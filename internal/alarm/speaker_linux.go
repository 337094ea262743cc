//go:build linux

package alarm

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

// linux/kd.h
const (
	kiocsound = 0x4B2F
	clockTick = 1193180
)

// Speaker 通过 KIOCSOUND 驱动 PC 扬声器（需要访问控制台设备的权限）
type Speaker struct {
	fd int
}

// OpenSpeaker 打开控制台设备
func OpenSpeaker() (*Speaker, error) {
	var lastErr error
	for _, dev := range []string{"/dev/tty0", "/dev/console", "/dev/vc/0"} {
		fd, err := unix.Open(dev, unix.O_WRONLY|unix.O_CLOEXEC, 0)
		if err != nil {
			lastErr = err
			continue
		}
		// 探测设备是否支持 KIOCSOUND
		if err := unix.IoctlSetInt(fd, kiocsound, 0); err != nil {
			_ = unix.Close(fd)
			lastErr = err
			continue
		}
		return &Speaker{fd: fd}, nil
	}
	return nil, fmt.Errorf("open console speaker: %w", lastErr)
}

func (s *Speaker) Beep(ctx context.Context, t Tone) error {
	if t.Frequency <= 0 {
		return sleep(ctx, t.Duration)
	}
	if err := unix.IoctlSetInt(s.fd, kiocsound, clockTick/t.Frequency); err != nil {
		return fmt.Errorf("KIOCSOUND: %w", err)
	}
	err := sleep(ctx, t.Duration)
	if err2 := unix.IoctlSetInt(s.fd, kiocsound, 0); err2 != nil && err == nil {
		err = err2
	}
	return err
}

func (s *Speaker) Close() error { return unix.Close(s.fd) }

// Detect 优先使用 PC 扬声器，失败时回退到 BEL
func Detect(w io.Writer) Beeper {
	sp, err := OpenSpeaker()
	if err != nil {
		log.Debugf("PC 扬声器不可用，使用 BEL: %v", err)
		return NewBell(w)
	}
	return sp
}
