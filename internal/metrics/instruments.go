package metrics

import (
	"github.com/rotisserie/eris"
	api "go.opentelemetry.io/otel/metric"
)

// metric instruments for slot-timeline
var (
	// counters, parsing
	STLinesProcessedCounter     api.Int64Counter
	STFilesParsedCounter        api.Int64Counter
	STParseErrorsCounter        api.Int64Counter
	STSnapshotsPublishedCounter api.Int64Counter

	// histograms
	STParseDurationHistogram api.Float64Histogram

	// observable gauges, timeline
	STSlotsGauge            api.Int64ObservableGauge
	STEmptySlotsGauge       api.Int64ObservableGauge
	STEventsGauge           api.Int64ObservableGauge
	STPhaseDurationAvgGauge api.Float64ObservableGauge
	STQuorumMissingGauge    api.Int64ObservableGauge
	STLastParseTimeGauge    api.Int64ObservableGauge
	STCachedFilesGauge      api.Int64ObservableGauge
	STCachedRecordsGauge    api.Int64ObservableGauge
)

func createInstruments() error {
	var err error

	parseDurationBuckets := []float64{
		1, 2, 5, 10, 20, 50, 100, 200, 500,
		1000, 2000, 5000, 10000, 30000, 60000,
	}

	STParseDurationHistogram, err = meter.Float64Histogram(
		"st_parse_duration_milliseconds",
		api.WithDescription("Distribution of full re-parse durations in milliseconds"),
		api.WithUnit("ms"),
		api.WithExplicitBucketBoundaries(parseDurationBuckets...),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create parse duration histogram")
	}

	STLinesProcessedCounter, err = meter.Int64Counter(
		"st_lines_processed_total",
		api.WithDescription("Log lines read, by classification result"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create lines processed counter")
	}

	STFilesParsedCounter, err = meter.Int64Counter(
		"st_files_parsed_total",
		api.WithDescription("Log files read from disk (cache hits excluded)"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create files parsed counter")
	}

	STParseErrorsCounter, err = meter.Int64Counter(
		"st_parse_errors_total",
		api.WithDescription("Re-parses that failed and left the previous snapshot in place"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create parse errors counter")
	}

	STSnapshotsPublishedCounter, err = meter.Int64Counter(
		"st_snapshots_published_total",
		api.WithDescription("Snapshots published to readers"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create snapshots published counter")
	}

	STSlotsGauge, err = meter.Int64ObservableGauge(
		"st_slots",
		api.WithDescription("Slots in the current snapshot per committee"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create slots gauge")
	}

	STEmptySlotsGauge, err = meter.Int64ObservableGauge(
		"st_empty_slots",
		api.WithDescription("Skipped slots in the current snapshot per committee"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create empty slots gauge")
	}

	STEventsGauge, err = meter.Int64ObservableGauge(
		"st_events",
		api.WithDescription("Events in the current snapshot per kind"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create events gauge")
	}

	STPhaseDurationAvgGauge, err = meter.Float64ObservableGauge(
		"st_phase_duration_avg_milliseconds",
		api.WithDescription("Mean phase duration per committee and phase"),
		api.WithUnit("ms"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create phase duration gauge")
	}

	STQuorumMissingGauge, err = meter.Int64ObservableGauge(
		"st_quorum_missing",
		api.WithDescription("Non-empty slots without a phase interval, per committee and phase"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create quorum missing gauge")
	}

	STLastParseTimeGauge, err = meter.Int64ObservableGauge(
		"st_last_parse_time",
		api.WithDescription("Unix time of the last published snapshot"),
		api.WithUnit("s"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create last parse time gauge")
	}

	STCachedFilesGauge, err = meter.Int64ObservableGauge(
		"st_cached_files",
		api.WithDescription("Per-file extraction results held in the reparse cache"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create cached files gauge")
	}

	STCachedRecordsGauge, err = meter.Int64ObservableGauge(
		"st_cached_records",
		api.WithDescription("Extracted records held in the reparse cache"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to create cached records gauge")
	}

	if err := initMemoryMetrics(meter); err != nil {
		return eris.Wrap(err, "failed to create memory metrics")
	}

	return nil
}
