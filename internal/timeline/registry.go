// Package timeline merges extracted log records into per-(committee, slot)
// timelines and derives quorum phases from them.
package timeline

import (
	"cmp"
	"slices"

	"github.com/validaoxyz/slot-timeline/internal/model"
)

// SlotRegistry owns the (committee, slot) -> Slot map.
type SlotRegistry struct {
	slots map[model.SlotKey]*model.Slot
}

func NewSlotRegistry() *SlotRegistry {
	return &SlotRegistry{slots: make(map[model.SlotKey]*model.Slot)}
}

func (r *SlotRegistry) Get(key model.SlotKey) (*model.Slot, bool) {
	s, ok := r.slots[key]
	return s, ok
}

func (r *SlotRegistry) Len() int {
	return len(r.slots)
}

// Touch records that a non-skip line at t advanced the slot, creating it
// non-empty if needed and keeping the start estimate at the running minimum.
func (r *SlotRegistry) Touch(key model.SlotKey, t float64) *model.Slot {
	s, ok := r.slots[key]
	if !ok {
		s = &model.Slot{
			Committee:       key.Committee,
			Number:          key.Slot,
			StartEstimateMs: t,
		}
		r.slots[key] = s
	}
	s.StartEstimateMs = min(s.StartEstimateMs, t)
	return s
}

// MarkEmpty records a skip certificate. A new slot starts at t; an existing
// slot keeps its start estimate. Emptiness is never reverted.
func (r *SlotRegistry) MarkEmpty(key model.SlotKey, t float64) *model.Slot {
	s, ok := r.slots[key]
	if !ok {
		s = &model.Slot{
			Committee:       key.Committee,
			Number:          key.Slot,
			StartEstimateMs: t,
		}
		r.slots[key] = s
	}
	s.IsEmpty = true
	return s
}

// Keys returns all slot keys ordered by committee, then slot number.
func (r *SlotRegistry) Keys() []model.SlotKey {
	keys := make([]model.SlotKey, 0, len(r.slots))
	for k := range r.slots {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b model.SlotKey) int {
		if c := cmp.Compare(a.Committee, b.Committee); c != 0 {
			return c
		}
		return cmp.Compare(a.Slot, b.Slot)
	})
	return keys
}
