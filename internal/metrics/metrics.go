// Package metrics 进程内计数器（expvar），通过 /debug/vars 暴露。
package metrics

import "expvar"

var (
	Ticks       = expvar.NewInt("monitor_ticks")
	Alarms      = expvar.NewInt("monitor_alarms")
	PriceErrors = expvar.NewInt("monitor_price_errors")
	LevelLoads  = expvar.NewInt("levels_loads")
	LevelSaves  = expvar.NewInt("levels_saves")
)
