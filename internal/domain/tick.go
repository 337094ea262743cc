package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Tick 交易所返回的一次价格采样（不持久化）
type Tick struct {
	Symbol     string    `json:"symbol"`
	ObservedAt time.Time `json:"observed_at"`
	Price      float64   `json:"price"`
}

// String 便于日志输出
func (t Tick) String() string {
	return fmt.Sprintf("%s@%s=%s", t.Symbol, t.ObservedAt.Format(time.RFC3339), FormatPrice(t.Price))
}

// ValidPrice 价格必须是非负的有限数
func ValidPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// ParsePrice 解析用户输入或文件中的价格
func ParsePrice(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if !ValidPrice(v) {
		return 0, fmt.Errorf("invalid price %q: must be a finite non-negative number", s)
	}
	return v, nil
}

// FormatPrice 最短可还原的十进制表示（写文件、日志使用同一格式）
func FormatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
