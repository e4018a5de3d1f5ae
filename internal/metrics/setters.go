package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"
)

// CommitteeValues is the per-committee state of one published snapshot.
type CommitteeValues struct {
	Committee  string
	Slots      int64
	EmptySlots int64
	// phase -> mean duration in ms
	PhaseAvgMs map[string]float64
	// phase -> non-empty slots lacking that phase
	Missing map[string]int64
}

func RecordLines(result string, n int64) {
	if STLinesProcessedCounter == nil || n == 0 {
		return
	}
	labels := append([]attribute.KeyValue{attribute.String("result", result)}, getCommonLabels()...)
	STLinesProcessedCounter.Add(context.Background(), n, api.WithAttributes(labels...))
}

func IncrementFilesParsed(n int64) {
	if STFilesParsedCounter == nil || n == 0 {
		return
	}
	STFilesParsedCounter.Add(context.Background(), n, api.WithAttributes(getCommonLabels()...))
}

func IncrementParseErrors() {
	if STParseErrorsCounter == nil {
		return
	}
	STParseErrorsCounter.Add(context.Background(), 1, api.WithAttributes(getCommonLabels()...))
}

func IncrementSnapshotsPublished() {
	if STSnapshotsPublishedCounter == nil {
		return
	}
	STSnapshotsPublishedCounter.Add(context.Background(), 1, api.WithAttributes(getCommonLabels()...))
}

func RecordParseDuration(duration time.Duration) {
	if STParseDurationHistogram == nil {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	STParseDurationHistogram.Record(context.Background(), ms, api.WithAttributes(getCommonLabels()...))
}

// SetCache publishes the size of the reparse cache in files and records.
func SetCache(files int, records int64) {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	currentValues[STCachedFilesGauge] = int64(files)
	currentValues[STCachedRecordsGauge] = records
}

// SetTimeline replaces every snapshot gauge at once, so committees or phases
// that disappeared from the snapshot stop being reported.
func SetTimeline(committees []CommitteeValues, eventsByKind map[string]int64, parsedAt time.Time) {
	slots := make(map[string]labeledValue)
	empty := make(map[string]labeledValue)
	avg := make(map[string]labeledValue)
	missing := make(map[string]labeledValue)
	events := make(map[string]labeledValue)

	for _, c := range committees {
		committee := attribute.String("committee", c.Committee)
		slots[c.Committee] = labeledValue{value: float64(c.Slots), labels: []attribute.KeyValue{committee}}
		empty[c.Committee] = labeledValue{value: float64(c.EmptySlots), labels: []attribute.KeyValue{committee}}

		for phase, ms := range c.PhaseAvgMs {
			avg[c.Committee+"/"+phase] = labeledValue{
				value:  ms,
				labels: []attribute.KeyValue{committee, attribute.String("phase", phase)},
			}
		}
		for phase, n := range c.Missing {
			missing[c.Committee+"/"+phase] = labeledValue{
				value:  float64(n),
				labels: []attribute.KeyValue{committee, attribute.String("phase", phase)},
			}
		}
	}
	for kind, n := range eventsByKind {
		events[kind] = labeledValue{value: float64(n), labels: []attribute.KeyValue{attribute.String("kind", kind)}}
	}

	metricsMutex.Lock()
	defer metricsMutex.Unlock()
	labeledValues[STSlotsGauge] = slots
	labeledValues[STEmptySlotsGauge] = empty
	labeledValues[STPhaseDurationAvgGauge] = avg
	labeledValues[STQuorumMissingGauge] = missing
	labeledValues[STEventsGauge] = events
	currentValues[STLastParseTimeGauge] = parsedAt.Unix()
}
