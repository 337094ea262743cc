package monitor

// State 监控状态：前一价与当前价。零值表示尚未观察到价格。
type State struct {
	Previous float64 `json:"previous"`
	Current  float64 `json:"current"`
}

// Advance 用新采样推进状态：
//  1. Previous ← Current
//  2. Current ← price
//  3. 若 Previous 为 0（首次采样），Previous ← Current，避免 0→price 的误报
func Advance(st State, price float64) State {
	st.Previous = st.Current
	st.Current = price
	if st.Previous == 0 {
		st.Previous = st.Current
	}
	return st
}
