package model

import (
	"cmp"
	"slices"
)

// ConsensusData is an immutable snapshot of a reconstructed timeline. The event
// list keeps emission order, which is not chronological; use SortByTime when
// order matters.
type ConsensusData struct {
	slots  []Slot
	events []Event
}

// NewConsensusData copies slots and events into a new snapshot.
func NewConsensusData(slots []Slot, events []Event) *ConsensusData {
	return &ConsensusData{
		slots:  cloneSlots(slots),
		events: cloneEvents(events),
	}
}

// returns a copy of the slot list
func (d *ConsensusData) Slots() []Slot {
	return cloneSlots(d.slots)
}

// returns a copy of the event list in emission order
func (d *ConsensusData) Events() []Event {
	return cloneEvents(d.events)
}

func (d *ConsensusData) Len() (slots, events int) {
	return len(d.slots), len(d.events)
}

// Slot looks up a single slot.
func (d *ConsensusData) Slot(committee string, number uint64) (Slot, bool) {
	for _, s := range d.slots {
		if s.Committee == committee && s.Number == number {
			return s, true
		}
	}
	return Slot{}, false
}

// Committees returns the sorted set of committee ids present in the snapshot.
func (d *ConsensusData) Committees() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range d.slots {
		if _, ok := seen[s.Committee]; ok {
			continue
		}
		seen[s.Committee] = struct{}{}
		out = append(out, s.Committee)
	}
	slices.Sort(out)
	return out
}

// FilterSlots returns the slots of a committee in [from, to], optionally hiding empty ones.
func (d *ConsensusData) FilterSlots(committee string, from, to uint64, showEmpty bool) []Slot {
	var out []Slot
	for _, s := range d.slots {
		if s.Committee != committee || s.Number < from || s.Number > to {
			continue
		}
		if s.IsEmpty && !showEmpty {
			continue
		}
		out = append(out, s)
	}
	return out
}

// EventQuery selects events; zero-valued fields match everything.
type EventQuery struct {
	Committee    string
	Slot         *uint64
	Slots        map[uint64]struct{}
	Labels       map[Label]struct{}
	Kinds        map[Kind]struct{}
	HasValidator *bool
}

func (q EventQuery) matches(e Event) bool {
	if q.Committee != "" && e.Committee != q.Committee {
		return false
	}
	if q.Slot != nil && e.Slot != *q.Slot {
		return false
	}
	if len(q.Slots) > 0 {
		if _, ok := q.Slots[e.Slot]; !ok {
			return false
		}
	}
	if len(q.Labels) > 0 {
		if _, ok := q.Labels[e.Label]; !ok {
			return false
		}
	}
	if len(q.Kinds) > 0 {
		if _, ok := q.Kinds[e.Kind]; !ok {
			return false
		}
	}
	if q.HasValidator != nil && e.HasValidator() != *q.HasValidator {
		return false
	}
	return true
}

// FilterEvents returns the events matching q, in emission order.
func (d *ConsensusData) FilterEvents(q EventQuery) []Event {
	var out []Event
	for _, e := range d.events {
		if q.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// GroupEventsByLabel buckets events by label, preserving order within a bucket.
func GroupEventsByLabel(events []Event) map[Label][]Event {
	out := make(map[Label][]Event)
	for _, e := range events {
		out[e.Label] = append(out[e.Label], e)
	}
	return out
}

// SortByTime returns a chronologically sorted copy, ties kept in input order.
func SortByTime(events []Event) []Event {
	out := cloneEvents(events)
	slices.SortStableFunc(out, func(a, b Event) int {
		return cmp.Compare(a.StartMs, b.StartMs)
	})
	return out
}

func cloneSlots(in []Slot) []Slot {
	if in == nil {
		return nil
	}
	return slices.Clone(in)
}

// deep copies EndMs so callers cannot reach into the snapshot
func cloneEvents(in []Event) []Event {
	if in == nil {
		return nil
	}
	out := make([]Event, len(in))
	for i, e := range in {
		if e.EndMs != nil {
			end := *e.EndMs
			e.EndMs = &end
		}
		out[i] = e
	}
	return out
}

// Set is a small helper for building EventQuery filters.
func Set[T comparable](items ...T) map[T]struct{} {
	out := make(map[T]struct{}, len(items))
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}
