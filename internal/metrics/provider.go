package metrics

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	api "go.opentelemetry.io/otel/metric"
)

var (
	meter metric.Meter
)

func getAllObservables() []api.Observable {
	return []api.Observable{
		// timeline gauges
		STSlotsGauge,
		STEmptySlotsGauge,
		STEventsGauge,
		STPhaseDurationAvgGauge,
		STQuorumMissingGauge,
		STLastParseTimeGauge,
		STCachedFilesGauge,
		STCachedRecordsGauge,

		// memory metrics
		STGoHeapInuseMB,
		STGoSysMB,
		STGoNumGoroutines,
		STHeapBytesPerRecordGauge,
	}
}

func getCommonLabels() []attribute.KeyValue {
	metricsMutex.RLock()
	defer metricsMutex.RUnlock()
	return commonLabelsLocked()
}

// callers must hold metricsMutex
func commonLabelsLocked() []attribute.KeyValue {
	if nodeIdentity.Alias == "" {
		return nil
	}
	return []attribute.KeyValue{attribute.String("alias", nodeIdentity.Alias)}
}
