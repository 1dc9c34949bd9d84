package metrics

import (
	"runtime"
	"time"
)

// CollectSystem samples runtime memory, goroutine and GC figures into the
// system gauges.
func CollectSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	UpdateSystemMemoryUsage(ms.Alloc)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if ms.NumGC > 0 {
		pause := ms.PauseNs[(ms.NumGC+255)%256]
		RecordSystemGCPauseTime(float64(pause) / float64(time.Millisecond))
	}
}
