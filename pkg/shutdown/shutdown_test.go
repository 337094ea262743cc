package shutdown

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdown_ReverseOrderOnce(t *testing.T) {
	var order []string
	m := NewManager()
	m.OnShutdown("store", func(context.Context) error { order = append(order, "store"); return nil })
	m.OnShutdown("levels", func(context.Context) error { order = append(order, "levels"); return nil })

	assert.NoError(t, m.Shutdown(context.Background()))
	assert.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"levels", "store"}, order)
}

func TestShutdown_CollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	ran := false
	m := NewManager()
	m.OnShutdown("after", func(context.Context) error { ran = true; return nil })
	m.OnShutdown("fails", func(context.Context) error { return boom })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran)
}

func TestShutdown_ExpiredContextSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	m := NewManager()
	m.OnShutdown("x", func(context.Context) error { ran = true; return nil })

	assert.ErrorIs(t, m.Shutdown(ctx), context.Canceled)
	assert.False(t, ran)
}
