package exporter

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"

	"github.com/validaoxyz/slot-timeline/internal/cache"
	"github.com/validaoxyz/slot-timeline/internal/config"
	"github.com/validaoxyz/slot-timeline/internal/logger"
	"github.com/validaoxyz/slot-timeline/internal/logparse"
	"github.com/validaoxyz/slot-timeline/internal/metrics"
	"github.com/validaoxyz/slot-timeline/internal/model"
	"github.com/validaoxyz/slot-timeline/internal/snapshot"
	"github.com/validaoxyz/slot-timeline/internal/timeline"
	"github.com/validaoxyz/slot-timeline/internal/utils"
)

// cached extraction of one file, valid while the file is unchanged on disk
type fileEntry struct {
	stamp utils.FileStamp
	batch *logparse.Batch
}

// Live keeps a published snapshot of a logs directory up to date. Files that
// did not change since the previous pass reuse their cached batch; the merge
// and inference always run over every file.
type Live struct {
	dir      string
	workers  int
	out      string
	parser   *logparse.Parser
	files    *cache.LRU[string, fileEntry]
	current  atomic.Pointer[model.ConsensusData]
	interval time.Duration
}

func NewLive(cfg config.Config) *Live {
	return &Live{
		dir:      cfg.LogsDir,
		workers:  cfg.Workers,
		out:      cfg.SnapshotOut,
		parser:   logparse.NewParser(cfg.LineBufferKB),
		files:    cache.NewLRU[string, fileEntry](cfg.FileCacheSize, cfg.FileCacheTTL),
		interval: cfg.ReparseInterval,
	}
}

// Snapshot returns the last published snapshot, nil before the first one.
func (l *Live) Snapshot() *model.ConsensusData {
	return l.current.Load()
}

// Reparse rebuilds the snapshot and publishes it. On error the previous
// snapshot stays in place.
func (l *Live) Reparse(ctx context.Context) error {
	start := time.Now()

	paths, err := utils.ListLogFiles(l.dir)
	if err != nil {
		return err
	}

	var fresh atomic.Int64
	batches, err := timeline.ExtractAll(ctx, paths, l.workers, func(path string) (*logparse.Batch, error) {
		b, parsed, err := l.batch(path)
		if parsed {
			fresh.Add(1)
			recordLines(b.Stats)
		}
		return b, err
	})
	metrics.IncrementFilesParsed(fresh.Load())
	if err != nil {
		return eris.Wrapf(err, "re-parse %s", l.dir)
	}

	l.prune(paths)

	var records int64
	for _, b := range batches {
		records += b.Stats.Records
	}

	res, err := timeline.Assemble(batches)
	if err != nil {
		return err
	}

	if l.out != "" {
		if err := snapshot.WriteFile(l.out, res.Data); err != nil {
			return err
		}
	}

	l.publish(res.Data, records, time.Since(start))
	logger.DebugComponent("exporter", "Published snapshot: %d files (%d re-read) in %v", len(paths), fresh.Load(), time.Since(start))
	return nil
}

// drops cache entries of files no longer listed or unused past the ttl
func (l *Live) prune(paths []string) {
	l.files.CleanupExpired()

	listed := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		listed[p] = struct{}{}
	}
	for _, p := range l.files.Keys() {
		if _, ok := listed[p]; !ok {
			l.files.Delete(p)
		}
	}
}

// returns the batch of path, re-reading it only when its stamp changed
func (l *Live) batch(path string) (*logparse.Batch, bool, error) {
	stamp, err := utils.StatFile(path)
	if err != nil {
		return nil, false, err
	}
	if e, ok := l.files.Get(path); ok && e.stamp.Same(stamp) {
		return e.batch, false, nil
	}

	b, err := l.parser.ParseFile(path)
	if err != nil {
		l.files.Delete(path)
		return nil, false, err
	}
	l.files.Set(path, fileEntry{stamp: stamp, batch: b})
	return b, true, nil
}

func (l *Live) publish(d *model.ConsensusData, records int64, took time.Duration) {
	l.current.Store(d)

	committees, kinds := timelineValues(timeline.Summarize(d))
	metrics.SetTimeline(committees, kinds, time.Now())
	metrics.SetCache(l.files.Len(), records)
	metrics.RecordParseDuration(took)
	metrics.IncrementSnapshotsPublished()
}

// Run re-parses every interval until ctx is done, starting immediately.
// Failures go to errCh without blocking.
func (l *Live) Run(ctx context.Context, interval time.Duration, errCh chan<- error) {
	if interval <= 0 {
		interval = l.interval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := l.Reparse(ctx); err != nil && ctx.Err() == nil {
			metrics.IncrementParseErrors()
			select {
			case errCh <- err:
			default:
				logger.ErrorComponent("exporter", "Re-parse failed: %v", err)
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func recordLines(s logparse.Stats) {
	accepted := s.Lines - s.Skipped - s.Unclassified - s.Unattributed
	metrics.RecordLines("accepted", accepted)
	metrics.RecordLines("skipped", s.Skipped)
	metrics.RecordLines("unclassified", s.Unclassified)
	metrics.RecordLines("unattributed", s.Unattributed)
}
