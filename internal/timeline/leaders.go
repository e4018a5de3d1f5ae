package timeline

import (
	"github.com/validaoxyz/slot-timeline/internal/model"
)

type leaderWindow struct {
	start, end uint64
	validator  model.ValidatorID
}

// LeaderWindowTracker maps slots to the validator leading them. A later
// announcement always overwrites an earlier one for the slots it covers.
// Windows are kept as ranges, so their width costs nothing.
type LeaderWindowTracker struct {
	// per committee, in assignment order
	windows map[string][]leaderWindow
}

func NewLeaderWindowTracker() *LeaderWindowTracker {
	return &LeaderWindowTracker{windows: make(map[string][]leaderWindow)}
}

// Assign makes v the leader of every slot in [start, end).
func (t *LeaderWindowTracker) Assign(committee string, start, end uint64, v model.ValidatorID) {
	if start >= end {
		return
	}
	t.windows[committee] = append(t.windows[committee], leaderWindow{start: start, end: end, validator: v})
}

// Leader returns the validator of the latest window covering slot.
func (t *LeaderWindowTracker) Leader(committee string, slot uint64) (model.ValidatorID, bool) {
	ws := t.windows[committee]
	for i := len(ws) - 1; i >= 0; i-- {
		if ws[i].start <= slot && slot < ws[i].end {
			return ws[i].validator, true
		}
	}
	return "", false
}

// Len returns the number of non-empty windows assigned.
func (t *LeaderWindowTracker) Len() int {
	n := 0
	for _, ws := range t.windows {
		n += len(ws)
	}
	return n
}
