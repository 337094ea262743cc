package syncgroup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncGroup_WaitCollectsErrors(t *testing.T) {
	boom := errors.New("boom")
	g := NewSyncGroup()
	g.Go("ok", func() error { return nil })
	g.Go("bad", func() error { return boom })

	err := g.Wait()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, 0, g.Running())
}

func TestSyncGroup_WaitContextTimeout(t *testing.T) {
	release := make(chan struct{})
	g := NewSyncGroup()
	g.Go("blocked", func() error { <-release; return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, g.WaitContext(ctx), context.DeadlineExceeded)
	assert.Equal(t, 1, g.Running())

	close(release)
	assert.NoError(t, g.Wait())
}
