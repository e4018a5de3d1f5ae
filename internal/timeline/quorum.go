package timeline

import (
	"cmp"
	"slices"

	"github.com/validaoxyz/slot-timeline/internal/model"
)

// vote kind tokens as they appear in BroadcastVote lines
const (
	VoteKindNotarize = "NotarizeVote"
	VoteKindFinalize = "FinalizeVote"
)

// Threshold is the BFT supermajority for a committee of total weight n:
// floor(2n/3) + 1, computed without overflowing for any n.
func Threshold(total int64) int64 {
	return total/3*2 + total%3*2/3 + 1
}

// Crossing returns the timestamp of the first vote, in time order, whose
// weight brings the running total to the threshold.
func Crossing(votes []model.Vote, total int64) (float64, bool) {
	sorted := slices.Clone(votes)
	slices.SortStableFunc(sorted, func(a, b model.Vote) int {
		return cmp.Compare(a.TimeMs, b.TimeMs)
	})

	threshold := Threshold(total)
	var acc int64
	for _, v := range sorted {
		// acc stays below threshold, so the subtraction cannot overflow
		if v.Weight >= threshold-acc {
			return v.TimeMs, true
		}
		acc += v.Weight
	}
	return 0, false
}

// EvaluateQuorum emits "<label>_reached" at the crossing and the phase
// [phaseStart, crossing]. Nothing is emitted when the threshold is never met.
func EvaluateQuorum(key model.SlotKey, votes []model.Vote, total int64, label model.Label, phaseStart float64) ([]model.Event, float64, bool) {
	at, ok := Crossing(votes, total)
	if !ok {
		return nil, 0, false
	}

	events := []model.Event{
		{
			Committee: key.Committee,
			Slot:      key.Slot,
			Label:     label.Reached(),
			Kind:      model.KindReached,
			StartMs:   at,
		},
		model.PhaseEvent(key.Committee, key.Slot, label, phaseStart, at),
	}
	return events, at, true
}
