package timeline

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/validaoxyz/slot-timeline/internal/logger"
	"github.com/validaoxyz/slot-timeline/internal/logparse"
	"github.com/validaoxyz/slot-timeline/internal/model"
)

// Options controls ParseFiles.
type Options struct {
	// Workers bounds parallel extraction; <= 0 means runtime.NumCPU().
	Workers int
	// MaxLineKB bounds the longest accepted log line.
	MaxLineKB int
}

// Result is a built snapshot together with the statistics of its inputs.
type Result struct {
	Data     *model.ConsensusData
	Stats    logparse.Stats
	Files    int
	Duration time.Duration
}

// BatchFunc produces the batch of a single input path.
type BatchFunc func(path string) (*logparse.Batch, error)

// ExtractAll runs extract over paths with at most workers in flight. Batches
// are returned in path order. The first error cancels the remaining work.
func ExtractAll(ctx context.Context, paths []string, workers int, extract BatchFunc) ([]*logparse.Batch, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	batches := make([]*logparse.Batch, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := extract(path)
			if err != nil {
				return err
			}
			batches[i] = b
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return batches, nil
}

// Assemble merges batches sequentially, in the given order, and builds the
// snapshot.
func Assemble(batches []*logparse.Batch) (*Result, error) {
	start := time.Now()
	b := NewBuilder()
	for _, batch := range batches {
		if err := b.Apply(batch); err != nil {
			return nil, err
		}
	}
	data, err := b.Build()
	if err != nil {
		return nil, err
	}
	return &Result{
		Data:     data,
		Stats:    b.Stats(),
		Files:    len(batches),
		Duration: time.Since(start),
	}, nil
}

// ParseFiles extracts every file in parallel, each with its own identity
// registry, then merges them in path order and runs the inference pass.
func ParseFiles(ctx context.Context, paths []string, opts Options) (*Result, error) {
	start := time.Now()
	parser := logparse.NewParser(opts.MaxLineKB)

	logger.DebugComponent("parser", "Parsing %d files with %d workers", len(paths), opts.Workers)

	batches, err := ExtractAll(ctx, paths, opts.Workers, parser.ParseFile)
	if err != nil {
		return nil, err
	}

	res, err := Assemble(batches)
	if err != nil {
		return nil, err
	}
	res.Duration = time.Since(start)
	return res, nil
}
