// Package crossing 判断两次价格采样之间穿越（或触碰）了哪些价格水平。
//
// Detect 是纯函数：不打印、不发声，只返回按价格降序排列的渲染列表和警报事件，
// 由调用方按顺序消费。
package crossing

import "sort"

// Mark 渲染项的类别
type Mark int

const (
	LevelMark Mark = iota
	PreviousMark
	CurrentMark
)

func (m Mark) String() string {
	switch m {
	case LevelMark:
		return "level"
	case PreviousMark:
		return "previous"
	case CurrentMark:
		return "current"
	default:
		return "unknown"
	}
}

// Intent 显示意图（对应 蓝/绿/红 三种颜色）
type Intent int

const (
	Neutral Intent = iota
	Up
	Down
)

func (i Intent) String() string {
	switch i {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "neutral"
	}
}

// Direction 警报方向
type Direction int

const (
	DirectionDown Direction = iota
	DirectionUp
)

func (d Direction) String() string {
	if d == DirectionUp {
		return "up"
	}
	return "down"
}

// Item 渲染列表中的一项
type Item struct {
	Mark   Mark
	Value  float64
	Intent Intent
	// Alarm 仅对 LevelMark 有意义：该水平在本次采样中被穿越或触碰
	Alarm bool
}

// Alarm 一次警报事件
type Alarm struct {
	Level     float64
	Direction Direction
}

// Result 一次检测的输出
type Result struct {
	Previous  float64
	Current   float64
	Direction Direction
	Items     []Item  // 按价格降序（稳定排序）
	Alarms    []Alarm // 与 Items 中扫描到的顺序一致
}

// Crossed 水平 v 是否位于 (min(p,c), max(p,c)) 之间，或等于任一端点
func Crossed(v, p, c float64) bool {
	lo, hi := p, c
	if lo > hi {
		lo, hi = hi, lo
	}
	return (lo < v && v < hi) || v == p || v == c
}

// DirectionOf 当前价严格高于前一价时为 up，其余（包括相等）为 down
func DirectionOf(p, c float64) Direction {
	if c > p {
		return DirectionUp
	}
	return DirectionDown
}

// IntentOf 当前价的显示意图
func IntentOf(p, c float64) Intent {
	switch {
	case c > p:
		return Up
	case c < p:
		return Down
	default:
		return Neutral
	}
}

// Detect 构建渲染列表并在一次降序扫描中产生警报。
// levels 的顺序决定相同价格时的输出顺序：水平在前，前一价、当前价依次在后。
func Detect(previous, current float64, levels []float64) Result {
	items := make([]Item, 0, len(levels)+2)
	for _, v := range levels {
		items = append(items, Item{Mark: LevelMark, Value: v, Intent: Neutral})
	}
	items = append(items,
		Item{Mark: PreviousMark, Value: previous, Intent: Neutral},
		Item{Mark: CurrentMark, Value: current, Intent: IntentOf(previous, current)},
	)

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Value > items[j].Value
	})

	dir := DirectionOf(previous, current)
	res := Result{
		Previous:  previous,
		Current:   current,
		Direction: dir,
		Items:     items,
	}
	for i := range res.Items {
		it := &res.Items[i]
		if it.Mark != LevelMark || !Crossed(it.Value, previous, current) {
			continue
		}
		it.Alarm = true
		res.Alarms = append(res.Alarms, Alarm{Level: it.Value, Direction: dir})
	}
	return res
}
