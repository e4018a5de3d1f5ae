package metrics

import (
	"context"

	"github.com/rotisserie/eris"
	api "go.opentelemetry.io/otel/metric"
)

// registers all observable instruments with a single callback
func RegisterCallbacks() error {
	callback, err := meter.RegisterCallback(
		func(_ context.Context, o api.Observer) error {
			metricsMutex.RLock()
			defer metricsMutex.RUnlock()

			commonLabels := commonLabelsLocked()

			for instrument, value := range currentValues {
				switch v := value.(type) {
				case float64:
					o.ObserveFloat64(instrument.(api.Float64Observable), v, api.WithAttributes(commonLabels...))
				case int64:
					o.ObserveInt64(instrument.(api.Int64Observable), v, api.WithAttributes(commonLabels...))
				}
			}

			for instrument, values := range labeledValues {
				for _, v := range values {
					allLabels := append(append(v.labels[:0:0], v.labels...), commonLabels...)
					switch obs := instrument.(type) {
					case api.Float64Observable:
						o.ObserveFloat64(obs, v.value, api.WithAttributes(allLabels...))
					case api.Int64Observable:
						o.ObserveInt64(obs, int64(v.value), api.WithAttributes(allLabels...))
					}
				}
			}

			records, _ := currentValues[STCachedRecordsGauge].(int64)
			collectMemoryStats(o, records)
			return nil
		},
		getAllObservables()...,
	)
	if err != nil {
		return eris.Wrap(err, "failed to register callbacks")
	}

	callbacks = append(callbacks, callback)
	return nil
}

// UnregisterCallbacks drops every registered callback
func UnregisterCallbacks() {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	for _, c := range callbacks {
		_ = c.Unregister()
	}
	callbacks = nil
}
