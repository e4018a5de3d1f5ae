// Package source provides the ways a consensus timeline snapshot can be produced.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/validaoxyz/slot-timeline/internal/logger"
	"github.com/validaoxyz/slot-timeline/internal/model"
	"github.com/validaoxyz/slot-timeline/internal/timeline"
	"github.com/validaoxyz/slot-timeline/internal/utils"
)

// Source produces a ConsensusData snapshot.
type Source interface {
	Load(ctx context.Context) (*model.ConsensusData, error)
}

// LogSource reconstructs a snapshot from validator log files.
type LogSource struct {
	// Dir is walked for log files when Paths is empty.
	Dir     string
	Paths   []string
	Options timeline.Options
}

func (s *LogSource) files() ([]string, error) {
	if len(s.Paths) > 0 {
		return s.Paths, nil
	}
	if s.Dir == "" {
		return nil, eris.New("log source needs a directory or explicit paths")
	}
	return utils.ListLogFiles(s.Dir)
}

func (s *LogSource) Load(ctx context.Context) (*model.ConsensusData, error) {
	paths, err := s.files()
	if err != nil {
		return nil, err
	}

	res, err := timeline.ParseFiles(ctx, paths, s.Options)
	if err != nil {
		return nil, err
	}

	logger.InfoComponent("parser", "Parsed %d files (%d lines, %d records, %d unattributed) in %v",
		res.Files, res.Stats.Lines, res.Stats.Records, res.Stats.Unattributed, res.Duration)
	return res.Data, nil
}
