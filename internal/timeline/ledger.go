package timeline

import (
	"slices"

	"github.com/validaoxyz/slot-timeline/internal/model"
)

// VoteLedger collects weighted votes per (committee, slot, vote kind).
// Insertion order carries no meaning; votes are evaluated by timestamp.
type VoteLedger struct {
	votes map[model.VoteKey][]model.Vote
	count int
}

func NewVoteLedger() *VoteLedger {
	return &VoteLedger{votes: make(map[model.VoteKey][]model.Vote)}
}

func (l *VoteLedger) Add(key model.VoteKey, v model.Vote) {
	l.votes[key] = append(l.votes[key], v)
	l.count++
}

// returns a copy of the votes recorded under key
func (l *VoteLedger) Votes(key model.VoteKey) []model.Vote {
	return slices.Clone(l.votes[key])
}

// total number of votes across all keys
func (l *VoteLedger) Len() int {
	return l.count
}
