package persistence

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/betbot/levelalarm/internal/domain"
)

// levelPrefix 每个水平一个 key：level/<price>，value 为 8 字节序号（保留插入顺序）
var levelPrefix = []byte("level/")

// Badger 基于 Badger KV 的后端，可选静态加密
type Badger struct {
	db   *badger.DB
	path string
}

// OpenBadger 打开（或创建）Badger 目录。encryptionKey 为空时不加密。
func OpenBadger(path string, encryptionKey []byte) (*Badger, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("badger: path is required")
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if len(encryptionKey) > 0 {
		// 加密模式下 Badger 要求开启 index cache
		opts = opts.
			WithEncryptionKey(encryptionKey).
			WithIndexCacheSize(16 << 20)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open %s: %w", path, err)
	}
	return &Badger{db: db, path: path}, nil
}

// Load 按保存时的顺序读取
func (s *Badger) Load() ([]float64, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("badger: not opened")
	}
	type entry struct {
		seq   uint64
		value float64
	}
	var entries []entry
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(levelPrefix); it.ValidForPrefix(levelPrefix); it.Next() {
			item := it.Item()
			text := string(item.Key()[len(levelPrefix):])
			v, err := domain.ParsePrice(text)
			if err != nil {
				return &CorruptError{Source: s.path, Text: text, Err: err}
			}
			var seq uint64
			if err := item.Value(func(val []byte) error {
				if len(val) != 8 {
					return &CorruptError{Source: s.path, Text: text, Err: fmt.Errorf("sequence length %d", len(val))}
				}
				seq = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}
			entries = append(entries, entry{seq: seq, value: v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotExists
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	levels := make([]float64, len(entries))
	for i, e := range entries {
		levels[i] = e.value
	}
	return levels, nil
}

// Save 在同一个事务里删除旧水平并写入新水平，失败时旧数据保持不变
func (s *Badger) Save(levels []float64) error {
	if s == nil || s.db == nil {
		return errors.New("badger: not opened")
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		var stale [][]byte
		for it.Seek(levelPrefix); it.ValidForPrefix(levelPrefix); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		for i, v := range levels {
			key := append(append([]byte{}, levelPrefix...), domain.FormatPrice(v)...)
			seq := make([]byte, 8)
			binary.BigEndian.PutUint64(seq, uint64(i))
			if err := txn.Set(key, seq); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("badger: save levels: %w", err)
	}
	return nil
}

// Close 关闭数据库
func (s *Badger) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ParseKey 解析 32 字节密钥（hex 或 base64）。输入为空返回 nil。
func ParseKey(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	rawHex := strings.TrimPrefix(raw, "0x")
	if b, err := hex.DecodeString(rawHex); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(raw); err == nil {
		if len(b) != 32 {
			return nil, fmt.Errorf("decoded key length must be 32, got %d", len(b))
		}
		return b, nil
	}
	return nil, errors.New("key must be base64(32 bytes) or hex(32 bytes)")
}
