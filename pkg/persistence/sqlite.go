package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/betbot/levelalarm/internal/domain"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS levels (
	seq   INTEGER PRIMARY KEY,
	value REAL NOT NULL UNIQUE
)`

// SQLite 基于 modernc.org/sqlite 的后端
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite 打开数据库并建表
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite：单连接更稳定
	db.SetMaxIdleConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return &SQLite{db: db, path: path}, nil
}

// Load 按 seq 顺序读取
func (s *SQLite) Load() ([]float64, error) {
	rows, err := s.db.Query(`SELECT value FROM levels ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	levels := make([]float64, 0)
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, &CorruptError{Source: s.path, Err: err}
		}
		if !domain.ValidPrice(v) {
			return nil, &CorruptError{Source: s.path, Text: domain.FormatPrice(v), Err: errors.New("invalid price")}
		}
		levels = append(levels, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(levels) == 0 {
		return nil, ErrNotExists
	}
	return levels, nil
}

// Save 在一个事务中清空并重写
func (s *SQLite) Save(levels []float64) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM levels`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO levels (seq, value) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, v := range levels {
		if _, err = stmt.Exec(i, v); err != nil {
			return fmt.Errorf("insert level %s: %w", domain.FormatPrice(v), err)
		}
	}
	return tx.Commit()
}

// Close 关闭连接
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
