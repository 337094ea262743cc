package levels

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/levelalarm/pkg/persistence"
)

func TestStore_AddRemoveClear(t *testing.T) {
	s := NewStore(nil)

	require.NoError(t, s.Add(9700))
	require.NoError(t, s.Add(9690))
	assert.ErrorIs(t, s.Add(9700), ErrDuplicate)
	assert.ErrorIs(t, s.Add(-1), ErrInvalid)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Dirty())

	assert.ErrorIs(t, s.Remove(1), ErrNotFound)
	require.NoError(t, s.Remove(9700))
	assert.False(t, s.contains(9700))
	assert.Equal(t, []float64{9690}, s.Snapshot())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestStore_SortedAndSnapshotAreCopies(t *testing.T) {
	s := NewStore(nil)
	for _, v := range []float64{2, 3, 1} {
		require.NoError(t, s.Add(v))
	}

	assert.Equal(t, []float64{3, 2, 1}, s.Sorted())

	snap := s.Snapshot()
	snap[0] = 100
	assert.Equal(t, []float64{2, 3, 1}, s.Snapshot())
}

func TestStore_LoadSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.txt")
	s := NewStore(persistence.NewTextFile(path))

	require.NoError(t, s.Load())
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Add(9700))
	require.NoError(t, s.Add(9650.25))
	require.NoError(t, s.Save())
	assert.False(t, s.Dirty())

	reloaded := NewStore(persistence.NewTextFile(path))
	require.NoError(t, reloaded.Load())
	assert.ElementsMatch(t, []float64{9700, 9650.25}, reloaded.Snapshot())
}

func TestStore_LoadDeduplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.txt")
	require.NoError(t, os.WriteFile(path, []byte("100\n100\n200\n"), 0o644))

	s := NewStore(persistence.NewTextFile(path))
	require.NoError(t, s.Load())
	assert.Equal(t, []float64{100, 200}, s.Snapshot())
}

func TestStore_LoadCorruptKeepsCurrentSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.txt")
	require.NoError(t, os.WriteFile(path, []byte("100\nnot-a-number\n"), 0o644))

	s := NewStore(persistence.NewTextFile(path))
	require.NoError(t, s.Add(5))

	err := s.Load()
	require.Error(t, err)
	assert.True(t, persistence.IsCorrupt(err))
	assert.Equal(t, []float64{5}, s.Snapshot())
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := NewStore(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Add(float64(i*1000 + j))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, s.Len())
}

// gatedBackend 的 Save 在 release 关闭前阻塞，用来构造“保存期间被修改”的时序
type gatedBackend struct {
	mu      sync.Mutex
	saved   [][]float64
	entered chan struct{}
	release chan struct{}
	gate    bool
}

func (b *gatedBackend) Load() ([]float64, error) { return nil, persistence.ErrNotExists }

func (b *gatedBackend) Save(levels []float64) error {
	b.mu.Lock()
	gate := b.gate
	b.gate = false
	b.mu.Unlock()
	if gate {
		close(b.entered)
		<-b.release
	}
	b.mu.Lock()
	b.saved = append(b.saved, append([]float64(nil), levels...))
	b.mu.Unlock()
	return nil
}

func (b *gatedBackend) Close() error { return nil }

func (b *gatedBackend) last() []float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.saved[len(b.saved)-1]
}

func TestStore_SaveKeepsDirtyWhenModifiedDuringWrite(t *testing.T) {
	b := &gatedBackend{entered: make(chan struct{}), release: make(chan struct{}), gate: true}
	s := NewStore(b)
	require.NoError(t, s.Add(100))

	done := make(chan error, 1)
	go func() { done <- s.Save() }()

	<-b.entered
	require.NoError(t, s.Add(200))
	close(b.release)
	require.NoError(t, <-done)

	assert.Equal(t, []float64{100}, b.last())
	assert.True(t, s.Dirty(), "写入期间新增的水平不能被标记为已保存")

	require.NoError(t, s.Save())
	assert.False(t, s.Dirty())
	assert.Equal(t, []float64{100, 200}, b.last())
}

func TestStore_ConcurrentSavesToTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.txt")
	s := NewStore(persistence.NewTextFile(path))

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Add(float64(1000 + i))
			errs <- s.Save()
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	require.NoError(t, s.Save())
	assert.False(t, s.Dirty())

	reloaded := NewStore(persistence.NewTextFile(path))
	require.NoError(t, reloaded.Load())
	assert.ElementsMatch(t, s.Snapshot(), reloaded.Snapshot())
	assert.Equal(t, 16, reloaded.Len())
}
