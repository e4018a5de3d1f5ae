package timeline

import (
	"github.com/rotisserie/eris"

	"github.com/validaoxyz/slot-timeline/internal/logger"
	"github.com/validaoxyz/slot-timeline/internal/logparse"
	"github.com/validaoxyz/slot-timeline/internal/model"
)

// ErrBuilderConsumed is returned by a Builder after Build has run.
var ErrBuilderConsumed = eris.New("timeline builder already consumed")

// maps StatsTargetReached target names to local event labels
var targetLabels = map[string]model.Label{
	"CandidateReceived": model.LabelCandidateReceived,
	"CollateStarted":    model.LabelCollateStarted,
	"CollateFinished":   model.LabelCollateFinished,
	"ValidateStarted":   model.LabelValidateStarted,
	"ValidateFinished":  model.LabelValidateFinished,
	"NotarObserved":     model.LabelNotarizeObserved,
	"FinalObserved":     model.LabelFinalizeObserved,
}

// collation markers of a slot; the last recorded marker of each kind wins
type collation struct {
	started, finished     bool
	startedAt, finishedAt float64
}

// Builder accumulates batches into a timeline. It is consumed by Build and is
// not safe for concurrent use.
type Builder struct {
	slots   *SlotRegistry
	votes   *VoteLedger
	leaders *LeaderWindowTracker
	markers map[model.SlotKey]*collation
	totals  map[string]int64
	events  []model.Event

	stats    logparse.Stats
	batches  int
	consumed bool
}

func NewBuilder() *Builder {
	return &Builder{
		slots:   NewSlotRegistry(),
		votes:   NewVoteLedger(),
		leaders: NewLeaderWindowTracker(),
		markers: make(map[model.SlotKey]*collation),
		totals:  make(map[string]int64),
	}
}

// Apply merges one stream's batch, record by record, in order.
func (b *Builder) Apply(batch *logparse.Batch) error {
	if b.consumed {
		return ErrBuilderConsumed
	}
	if batch == nil {
		return nil
	}

	for i := range batch.Records {
		b.apply(&batch.Records[i])
	}
	b.stats.Add(batch.Stats)
	b.batches++

	logger.DebugComponent("timeline", "Merged %s: %d records, %d lines", batch.Source, len(batch.Records), batch.Stats.Lines)
	return nil
}

func (b *Builder) apply(r *logparse.Record) {
	key := model.SlotKey{Committee: r.Committee, Slot: r.Slot}

	switch r.Kind {
	case logparse.RecordIdentity:
		b.totals[r.Committee] = r.TotalWeight

	case logparse.RecordTarget:
		b.applyTarget(key, r)

	case logparse.RecordSkip:
		b.events = append(b.events, model.Event{
			Committee: r.Committee,
			Slot:      r.Slot,
			Label:     model.LabelSkipObserved,
			Kind:      model.KindLocal,
			StartMs:   r.TimeMs,
			Validator: r.Validator,
		})
		b.slots.MarkEmpty(key, r.TimeMs)

	case logparse.RecordVote:
		b.votes.Add(model.VoteKey{Committee: r.Committee, Slot: r.Slot, Kind: r.VoteKind}, model.Vote{
			Kind:      r.VoteKind,
			TimeMs:    r.TimeMs,
			Validator: r.Validator,
			Weight:    r.Weight,
		})

	case logparse.RecordLeaderWindow:
		b.leaders.Assign(r.Committee, r.Slot, r.EndSlot, r.Validator)
	}
}

func (b *Builder) applyTarget(key model.SlotKey, r *logparse.Record) {
	slot := b.slots.Touch(key, r.TimeMs)

	switch r.Target {
	case "CollateStarted":
		slot.Collator = r.Validator
		m := b.marker(key)
		m.started, m.startedAt = true, r.TimeMs
	case "CollateFinished":
		m := b.marker(key)
		m.finished, m.finishedAt = true, r.TimeMs
	case "FinalObserved":
		if leader, ok := b.leaders.Leader(r.Committee, r.Slot+1); ok && leader == r.Validator {
			b.events = append(b.events, model.Event{
				Committee: r.Committee,
				Slot:      r.Slot,
				Label:     model.LabelFinalizeObservedNextLeader,
				Kind:      model.KindObserved,
				StartMs:   r.TimeMs,
			})
		}
	}

	label, ok := targetLabels[r.Target]
	if !ok {
		return
	}
	b.events = append(b.events, model.Event{
		Committee: r.Committee,
		Slot:      r.Slot,
		Label:     label,
		Kind:      model.KindLocal,
		StartMs:   r.TimeMs,
		Validator: r.Validator,
	})
}

func (b *Builder) marker(key model.SlotKey) *collation {
	c, ok := b.markers[key]
	if !ok {
		c = &collation{}
		b.markers[key] = c
	}
	return c
}

// Stats returns the line statistics of every batch applied so far.
func (b *Builder) Stats() logparse.Stats {
	return b.stats
}

// Build runs the inference pass over the fully merged state and returns the
// snapshot. The builder cannot be used afterwards.
func (b *Builder) Build() (*model.ConsensusData, error) {
	if b.consumed {
		return nil, ErrBuilderConsumed
	}
	b.consumed = true

	keys := b.slots.Keys()
	slots := make([]model.Slot, 0, len(keys))
	events := b.events

	for _, key := range keys {
		slot, _ := b.slots.Get(key)
		slots = append(slots, *slot)
		events = append(events, b.infer(slot)...)
	}

	logger.InfoComponent("timeline", "Built timeline from %d streams: %d slots, %d events, %d votes",
		b.batches, len(slots), len(events), b.votes.Len())

	data := model.NewConsensusData(slots, events)
	b.events = nil
	b.markers = nil
	return data, nil
}

// derived events for a single slot, in causal order collate -> notarize -> finalize
func (b *Builder) infer(slot *model.Slot) []model.Event {
	key := slot.Key()
	out := []model.Event{{
		Committee: key.Committee,
		Slot:      key.Slot,
		Label:     model.LabelSlotStartEstimate,
		Kind:      model.KindEstimate,
		StartMs:   slot.StartEstimateMs,
	}}

	c := b.markers[key]
	if c == nil || !c.started || !c.finished {
		return out
	}
	out = append(out, model.PhaseEvent(key.Committee, key.Slot, model.LabelCollate, c.startedAt, c.finishedAt))

	total, ok := b.totals[key.Committee]
	if !ok {
		logger.DebugComponent("quorum", "No total weight registered for committee %s, skipping quorum for slot %d", key.Committee, key.Slot)
		return out
	}

	notarize := b.votes.Votes(model.VoteKey{Committee: key.Committee, Slot: key.Slot, Kind: VoteKindNotarize})
	evs, notarizedAt, ok := EvaluateQuorum(key, notarize, total, model.LabelNotarize, c.finishedAt)
	if !ok {
		return out
	}
	out = append(out, evs...)

	finalize := b.votes.Votes(model.VoteKey{Committee: key.Committee, Slot: key.Slot, Kind: VoteKindFinalize})
	evs, _, _ = EvaluateQuorum(key, finalize, total, model.LabelFinalize, notarizedAt)
	return append(out, evs...)
}
