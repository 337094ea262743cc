package persistence

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/betbot/levelalarm/internal/domain"
	"github.com/betbot/levelalarm/pkg/logger"
)

// TextFile 纯文本文件：每行一个浮点数，无表头
type TextFile struct {
	path string
}

// NewTextFile 创建文本文件后端
func NewTextFile(path string) *TextFile {
	return &TextFile{path: path}
}

// Path 文件路径
func (f *TextFile) Path() string { return f.path }

// Load 读取文件。文件不存在返回 ErrNotExists；任意一行解析失败则整体作废并返回 *CorruptError。
// 空白行被忽略。
func (f *TextFile) Load() ([]float64, error) {
	logger.Debugf("[persistence] Load: path=%s", f.path)
	b, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotExists
		}
		return nil, err
	}
	return DecodeLines(f.path, b)
}

// Save 截断并重写整个文件。每次写入使用独立的临时文件再 rename，
// 并发 Save 之间不会互相覆盖临时文件。
func (f *TextFile) Save(levels []float64) error {
	logger.Debugf("[persistence] Save: path=%s count=%d", f.path, len(levels))
	dir := filepath.Dir(f.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(EncodeLines(levels)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.path)
}

// Close 文本文件无需关闭
func (f *TextFile) Close() error { return nil }

// EncodeLines 每个水平一行
func EncodeLines(levels []float64) []byte {
	var buf bytes.Buffer
	for _, v := range levels {
		buf.WriteString(domain.FormatPrice(v))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// DecodeLines 解析 EncodeLines 的输出（也兼容每行带尾随空格的旧文件）
func DecodeLines(source string, b []byte) ([]float64, error) {
	levels := make([]float64, 0)
	sc := bufio.NewScanner(bytes.NewReader(b))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		v, err := domain.ParsePrice(text)
		if err != nil {
			return nil, &CorruptError{Source: source, Line: line, Text: text, Err: err}
		}
		levels = append(levels, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return levels, nil
}
