package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/validaoxyz/slot-timeline/internal/logger"
	api "go.opentelemetry.io/otel/metric"
)

var (
	STGoHeapInuseMB           api.Float64ObservableGauge
	STGoSysMB                 api.Float64ObservableGauge
	STGoNumGoroutines         api.Int64ObservableGauge
	STHeapBytesPerRecordGauge api.Float64ObservableGauge
)

// heap per cached record above this multiple of the lowest seen is reported
const heapGrowthFactor = 3

func initMemoryMetrics(meter api.Meter) error {
	var err error

	STGoHeapInuseMB, err = meter.Float64ObservableGauge(
		"st_go_heap_inuse_mb",
		api.WithDescription("Heap memory in use in MB"),
	)
	if err != nil {
		return err
	}

	STGoSysMB, err = meter.Float64ObservableGauge(
		"st_go_sys_mb",
		api.WithDescription("Total memory obtained from OS in MB"),
	)
	if err != nil {
		return err
	}

	STGoNumGoroutines, err = meter.Int64ObservableGauge(
		"st_go_num_goroutines",
		api.WithDescription("Number of goroutines"),
	)
	if err != nil {
		return err
	}

	STHeapBytesPerRecordGauge, err = meter.Float64ObservableGauge(
		"st_heap_bytes_per_record",
		api.WithDescription("Heap in use divided by the records held in the reparse cache"),
		api.WithUnit("By"),
	)
	return err
}

// called from the registered callback with metricsMutex held
func collectMemoryStats(o api.Observer, records int64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	o.ObserveFloat64(STGoHeapInuseMB, float64(m.HeapInuse)/(1024*1024))
	o.ObserveFloat64(STGoSysMB, float64(m.Sys)/(1024*1024))
	o.ObserveInt64(STGoNumGoroutines, int64(runtime.NumGoroutine()))
	if records > 0 {
		o.ObserveFloat64(STHeapBytesPerRecordGauge, float64(m.HeapInuse)/float64(records))
	}
}

// heapWatch follows heap use relative to the size of the reparse cache. The
// cache is the only thing expected to grow, so heap per record should stay flat
// across re-parses.
type heapWatch struct {
	lowest float64
}

// sample returns heap bytes per record and whether it grew past
// heapGrowthFactor times the lowest value seen. Samples without records are
// ignored.
func (w *heapWatch) sample(heapInuse uint64, records int64) (float64, bool) {
	if records <= 0 {
		return 0, false
	}
	per := float64(heapInuse) / float64(records)
	if w.lowest == 0 || per < w.lowest {
		w.lowest = per
		return per, false
	}
	return per, per > w.lowest*heapGrowthFactor
}

func cachedRecords() int64 {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	n, _ := currentValues[STCachedRecordsGauge].(int64)
	return n
}

// StartMemoryMonitoring warns when heap use outgrows the cached records.
func StartMemoryMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var w heapWatch
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)

			records := cachedRecords()
			per, grew := w.sample(m.HeapInuse, records)
			if grew {
				logger.WarningComponent("system", "Heap per cached record grew to %.0fB (lowest %.0fB): HeapInuse=%.2fMB, records=%d",
					per, w.lowest, float64(m.HeapInuse)/(1024*1024), records)
			}
		}
	}
}
