package sigchan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEmitNonBlocking(t *testing.T) {
	c := New(1)
	c.Emit()
	c.Emit() // 缓冲已满，不阻塞

	select {
	case <-c.C():
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}

	select {
	case <-c.C():
		t.Fatal("second signal should have been dropped")
	default:
	}
}

func TestDrain(t *testing.T) {
	c := New(0)
	c.Emit()
	assert.Equal(t, 1, c.Drain())
	assert.Equal(t, 0, c.Drain())
}
