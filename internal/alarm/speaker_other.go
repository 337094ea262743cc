//go:build !linux

package alarm

import "io"

// Detect 非 Linux 平台只支持 BEL
func Detect(w io.Writer) Beeper {
	return NewBell(w)
}
