package exporter

import (
	"context"
	"time"

	"github.com/validaoxyz/slot-timeline/internal/config"
	"github.com/validaoxyz/slot-timeline/internal/logger"
	"github.com/validaoxyz/slot-timeline/internal/metrics"
	"github.com/validaoxyz/slot-timeline/internal/model"
	"github.com/validaoxyz/slot-timeline/internal/snapshot"
	"github.com/validaoxyz/slot-timeline/internal/source"
	"github.com/validaoxyz/slot-timeline/internal/timeline"
	"github.com/validaoxyz/slot-timeline/internal/utils"
)

// Parse reconstructs the timeline once and writes it to cfg.SnapshotOut when set.
func Parse(ctx context.Context, cfg config.Config) (*model.ConsensusData, error) {
	src := &source.LogSource{
		Dir: cfg.LogsDir,
		Options: timeline.Options{
			Workers:   cfg.Workers,
			MaxLineKB: cfg.LineBufferKB,
		},
	}

	data, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	logSummary(timeline.Summarize(data))

	if cfg.SnapshotOut != "" {
		if err := snapshot.WriteFile(cfg.SnapshotOut, data); err != nil {
			return nil, err
		}
		logger.InfoComponent("exporter", "Wrote snapshot to %s", cfg.SnapshotOut)
	}
	return data, nil
}

// Start runs the live re-parse loop until ctx is done.
func Start(ctx context.Context, cfg config.Config, live *Live) {
	logger.InfoComponent("system", "Starting slot timeline exporter on %s...", cfg.LogsDir)
	if latest, err := utils.GetLatestFile(cfg.LogsDir); err != nil {
		logger.WarningComponent("exporter", "Cannot read logs directory yet: %v", err)
	} else if latest != "" {
		logger.InfoComponent("exporter", "Most recently written log: %s", latest)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reparseErrCh := make(chan error, 1)

	go live.Run(loopCtx, cfg.ReparseInterval, reparseErrCh)
	go metrics.StartMemoryMonitoring(loopCtx, 30*time.Second)

	logger.InfoComponent("system", "Exporter is now running")

	for {
		select {
		case err := <-reparseErrCh:
			logger.ErrorComponent("exporter", "Re-parse failed, keeping previous snapshot: %v", err)
		case <-ctx.Done():
			logger.InfoComponent("system", "Shutting down exporter...")
			return
		}
		// small sleep to prevent tight loop in case of repeated errors
		time.Sleep(100 * time.Millisecond)
	}
}

func logSummary(s timeline.Summary) {
	for _, c := range s.Committees {
		logger.InfoComponent("timeline", "%s: %d slots (%d empty), collate %.1fms, notarize %.1fms, finalize %.1fms avg",
			c.Committee, c.Slots, c.EmptySlots,
			c.PhaseAvgMs(model.LabelCollate), c.PhaseAvgMs(model.LabelNotarize), c.PhaseAvgMs(model.LabelFinalize))
		if n := c.Missing[model.LabelFinalize]; n > 0 {
			logger.DebugComponent("quorum", "%s: %d non-empty slots never reached finalize quorum", c.Committee, n)
		}
	}
	logger.InfoComponent("timeline", "%d events total", s.Events)
}

// converts a summary to the gauge values published for a snapshot
func timelineValues(s timeline.Summary) ([]metrics.CommitteeValues, map[string]int64) {
	committees := make([]metrics.CommitteeValues, 0, len(s.Committees))
	for _, c := range s.Committees {
		v := metrics.CommitteeValues{
			Committee:  c.Committee,
			Slots:      int64(c.Slots),
			EmptySlots: int64(c.EmptySlots),
			PhaseAvgMs: make(map[string]float64),
			Missing:    make(map[string]int64),
		}
		for label := range c.PhaseCount {
			v.PhaseAvgMs[string(label)] = c.PhaseAvgMs(label)
		}
		for label, n := range c.Missing {
			v.Missing[string(label)] = int64(n)
		}
		committees = append(committees, v)
	}

	kinds := make(map[string]int64, len(s.EventsByKind))
	for k, n := range s.EventsByKind {
		kinds[string(k)] = int64(n)
	}
	return committees, kinds
}
