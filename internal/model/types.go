// Package model holds the reconstructed consensus timeline types shared by the parser,
// the timeline assembler and snapshot consumers.
package model

// identifies a validator; log-derived ids are the decimal validator index
type ValidatorID string

// Kind classifies an Event.
type Kind string

const (
	KindLocal    Kind = "local"
	KindObserved Kind = "observed"
	KindPhase    Kind = "phase"
	KindReached  Kind = "reached"
	KindEstimate Kind = "estimate"
)

// Label is the stable enumerated name of an Event. Rendering layers derive
// presentation attributes from Label and Kind only.
type Label string

const (
	LabelCandidateReceived          Label = "candidate_received"
	LabelCollateStarted             Label = "collate_started"
	LabelCollateFinished            Label = "collate_finished"
	LabelValidateStarted            Label = "validate_started"
	LabelValidateFinished           Label = "validate_finished"
	LabelNotarizeObserved           Label = "notarize_observed"
	LabelFinalizeObserved           Label = "finalize_observed"
	LabelFinalizeObservedNextLeader Label = "finalize_observed_by_next_leader"
	LabelSkipObserved               Label = "skip_observed"
	LabelSkipReached                Label = "skip_reached"
	LabelSlotStartEstimate          Label = "slot_start_est"
	LabelCollate                    Label = "collate"
	LabelNotarize                   Label = "notarize"
	LabelNotarizeReached            Label = "notarize_reached"
	LabelFinalize                   Label = "finalize"
	LabelFinalizeReached            Label = "finalize_reached"
)

// returns the "<label>_reached" companion of a phase label
func (l Label) Reached() Label {
	return l + "_reached"
}

// SlotKey identifies a slot within a committee.
type SlotKey struct {
	Committee string
	Slot      uint64
}

// VoteKey identifies the votes of one kind cast for a slot.
type VoteKey struct {
	Committee string
	Slot      uint64
	Kind      string
}

// Slot is the reconstructed state of one (committee, slot).
type Slot struct {
	Committee       string      `msgpack:"committee" json:"committee"`
	Number          uint64      `msgpack:"slot" json:"slot"`
	IsEmpty         bool        `msgpack:"is_empty" json:"is_empty"`
	StartEstimateMs float64     `msgpack:"start_estimate_ms" json:"start_estimate_ms"`
	BlockID         string      `msgpack:"block_id,omitempty" json:"block_id,omitempty"`
	Collator        ValidatorID `msgpack:"collator,omitempty" json:"collator,omitempty"`
}

func (s Slot) Key() SlotKey {
	return SlotKey{Committee: s.Committee, Slot: s.Number}
}

// Vote is a single weighted vote broadcast by a validator.
type Vote struct {
	Kind      string
	TimeMs    float64
	Validator ValidatorID
	Weight    int64
}

// Event is either a raw observation (local/observed), a derived interval (phase)
// or a derived instant (reached/estimate).
type Event struct {
	Committee string      `msgpack:"committee" json:"committee"`
	Slot      uint64      `msgpack:"slot" json:"slot"`
	Label     Label       `msgpack:"label" json:"label"`
	Kind      Kind        `msgpack:"kind" json:"kind"`
	StartMs   float64     `msgpack:"t_ms" json:"t_ms"`
	EndMs     *float64    `msgpack:"t1_ms,omitempty" json:"t1_ms,omitempty"`
	Validator ValidatorID `msgpack:"validator,omitempty" json:"validator,omitempty"`
}

func (e Event) HasValidator() bool {
	return e.Validator != ""
}

// Duration returns the interval length of a phase event, 0 for instants.
func (e Event) Duration() float64 {
	if e.EndMs == nil {
		return 0
	}
	return *e.EndMs - e.StartMs
}

// PhaseEvent builds a phase interval [start, end].
func PhaseEvent(committee string, slot uint64, label Label, start, end float64) Event {
	return Event{
		Committee: committee,
		Slot:      slot,
		Label:     label,
		Kind:      KindPhase,
		StartMs:   start,
		EndMs:     &end,
	}
}
