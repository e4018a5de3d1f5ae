package timeline

import (
	"github.com/validaoxyz/slot-timeline/internal/model"
)

// CommitteeSummary aggregates one committee of a snapshot.
type CommitteeSummary struct {
	Committee  string
	Slots      int
	EmptySlots int
	// phase label -> number of phase events and their summed duration
	PhaseCount   map[model.Label]int
	PhaseTotalMs map[model.Label]float64
	// non-empty slots whose phase chain stopped before the given phase
	Missing map[model.Label]int
}

// PhaseAvgMs returns the mean duration of a phase, 0 when never observed.
func (c CommitteeSummary) PhaseAvgMs(label model.Label) float64 {
	n := c.PhaseCount[label]
	if n == 0 {
		return 0
	}
	return c.PhaseTotalMs[label] / float64(n)
}

// Summary is the aggregate view of a snapshot used for metrics and logs.
type Summary struct {
	Committees   []CommitteeSummary
	EventsByKind map[model.Kind]int
	Events       int
}

var summaryPhases = []model.Label{model.LabelCollate, model.LabelNotarize, model.LabelFinalize}

// Summarize aggregates a snapshot per committee.
func Summarize(d *model.ConsensusData) Summary {
	s := Summary{EventsByKind: make(map[model.Kind]int)}
	byCommittee := make(map[string]*CommitteeSummary)
	phases := make(map[model.SlotKey]map[model.Label]bool)

	for _, c := range d.Committees() {
		byCommittee[c] = &CommitteeSummary{
			Committee:    c,
			PhaseCount:   make(map[model.Label]int),
			PhaseTotalMs: make(map[model.Label]float64),
			Missing:      make(map[model.Label]int),
		}
	}

	for _, e := range d.Events() {
		s.Events++
		s.EventsByKind[e.Kind]++
		if e.Kind != model.KindPhase {
			continue
		}
		cs, ok := byCommittee[e.Committee]
		if !ok {
			continue
		}
		cs.PhaseCount[e.Label]++
		cs.PhaseTotalMs[e.Label] += e.Duration()

		key := model.SlotKey{Committee: e.Committee, Slot: e.Slot}
		if phases[key] == nil {
			phases[key] = make(map[model.Label]bool)
		}
		phases[key][e.Label] = true
	}

	for _, slot := range d.Slots() {
		cs := byCommittee[slot.Committee]
		cs.Slots++
		if slot.IsEmpty {
			cs.EmptySlots++
			continue
		}
		seen := phases[slot.Key()]
		for _, p := range summaryPhases {
			if !seen[p] {
				cs.Missing[p]++
			}
		}
	}

	for _, c := range d.Committees() {
		s.Committees = append(s.Committees, *byCommittee[c])
	}
	return s
}
