package persistence

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openAll(t *testing.T) map[Kind]Backend {
	t.Helper()
	dir := t.TempDir()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	backends := map[Kind]Backend{}
	for _, opts := range []Options{
		{Kind: KindText, Path: filepath.Join(dir, "levels.txt")},
		{Kind: KindBadger, Path: filepath.Join(dir, "badger"), EncryptionKey: hex.EncodeToString(key)},
		{Kind: KindSQLite, Path: filepath.Join(dir, "levels.db")},
	} {
		b, err := Open(opts)
		require.NoError(t, err, "open %s", opts.Kind)
		t.Cleanup(func() { _ = b.Close() })
		backends[opts.Kind] = b
	}
	return backends
}

func TestBackends_RoundTrip(t *testing.T) {
	levels := []float64{9700, 9690.5, 0.00012345, 123456789.125, 0}

	for kind, b := range openAll(t) {
		t.Run(string(kind), func(t *testing.T) {
			_, err := b.Load()
			require.ErrorIs(t, err, ErrNotExists)

			require.NoError(t, b.Save(levels))
			got, err := b.Load()
			require.NoError(t, err)
			assert.Equal(t, levels, got)

			// 覆盖写入
			require.NoError(t, b.Save([]float64{1, 2}))
			got, err = b.Load()
			require.NoError(t, err)
			assert.Equal(t, []float64{1, 2}, got)
		})
	}
}

func TestTextFile_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.txt")
	f := NewTextFile(path)
	require.NoError(t, f.Save([]float64{35000, 9688.69}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "35000\n9688.69\n", string(b))
}

func TestTextFile_LegacyTrailingSpaceAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.txt")
	require.NoError(t, os.WriteFile(path, []byte("9700.0 \n9690.0 \n\n"), 0o644))

	got, err := NewTextFile(path).Load()
	require.NoError(t, err)
	assert.Equal(t, []float64{9700, 9690}, got)
}

func TestTextFile_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.txt")
	require.NoError(t, os.WriteFile(path, []byte("9700\nabc\n9600\n"), 0o644))

	got, err := NewTextFile(path).Load()
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, IsCorrupt(err))

	var ce *CorruptError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 2, ce.Line)
	assert.Equal(t, "abc", ce.Text)
}

func TestTextFile_RejectsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "levels.txt")
	require.NoError(t, os.WriteFile(path, []byte("-5\n"), 0o644))

	_, err := NewTextFile(path).Load()
	assert.True(t, IsCorrupt(err))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Options{Kind: KindText})
	assert.Error(t, err)

	_, err = Open(Options{Kind: "redis", Path: "x"})
	assert.Error(t, err)

	_, err = Open(Options{Kind: KindBadger, Path: t.TempDir(), EncryptionKey: "short"})
	assert.Error(t, err)
}

func TestParseKey(t *testing.T) {
	k, err := ParseKey("")
	require.NoError(t, err)
	assert.Nil(t, k)

	raw := make([]byte, 32)
	k, err = ParseKey("0x" + hex.EncodeToString(raw))
	require.NoError(t, err)
	assert.Len(t, k, 32)

	_, err = ParseKey(hex.EncodeToString(raw[:16]))
	assert.Error(t, err)
}

func TestTextFile_ConcurrentSaves(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "levels.txt")
	f := NewTextFile(path)

	var wg sync.WaitGroup
	errs := make([]error, 50)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = f.Save([]float64{float64(i), float64(i) + 0.5})
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		assert.NoError(t, err, "save #%d", i)
	}

	got, err := f.Load()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, got[0]+0.5, got[1])

	// 不留下临时文件
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBadger_SaveReplacesAtomically(t *testing.T) {
	b, err := OpenBadger(filepath.Join(t.TempDir(), "badger"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Save([]float64{1, 2, 3}))
	// 与旧集合有重叠且顺序不同
	require.NoError(t, b.Save([]float64{3, 1}))
	got, err := b.Load()
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1}, got)

	// 并发读取不会看到被清空的中间状态
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = b.Save([]float64{float64(i), float64(i) + 1})
		}
	}()
	for i := 0; i < 200; i++ {
		got, err := b.Load()
		require.NoError(t, err)
		assert.Len(t, got, 2)
	}
	close(stop)
	wg.Wait()
}
