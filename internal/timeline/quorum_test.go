package timeline

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/validaoxyz/slot-timeline/internal/model"
)

func TestThreshold(t *testing.T) {
	tests := []struct {
		total, want int64
	}{
		{10, 7},
		{9, 7},
		{1, 1},
		{3, 3},
		{4, 3},
		{100, 67},
		{6_000_000_000_000_000_000, 4_000_000_000_000_000_001},
		{math.MaxInt64, 6_148_914_691_236_517_205},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Threshold(tt.total), "total=%d", tt.total)
	}
}

func TestCrossing(t *testing.T) {
	votes := []model.Vote{
		{TimeMs: 200, Weight: 3, Validator: "c"},
		{TimeMs: 100, Weight: 3, Validator: "a"},
		{TimeMs: 150, Weight: 2, Validator: "b"},
	}

	at, ok := Crossing(votes, 10)
	require.True(t, ok)
	assert.Equal(t, 200.0, at)

	// input left untouched
	assert.Equal(t, 200.0, votes[0].TimeMs)

	_, ok = Crossing(votes, 20)
	assert.False(t, ok)

	_, ok = Crossing(nil, 10)
	assert.False(t, ok)
}

func TestCrossingLargeWeights(t *testing.T) {
	_, ok := Crossing([]model.Vote{{TimeMs: 10, Weight: 1}}, 6_000_000_000_000_000_000)
	assert.False(t, ok)

	votes := []model.Vote{
		{TimeMs: 10, Weight: 1},
		{TimeMs: 20, Weight: math.MaxInt64},
	}
	at, ok := Crossing(votes, math.MaxInt64)
	require.True(t, ok)
	assert.Equal(t, 20.0, at)
}

func TestCrossingMonotonicInTotal(t *testing.T) {
	votes := []model.Vote{
		{TimeMs: 10, Weight: 1},
		{TimeMs: 20, Weight: 2},
		{TimeMs: 30, Weight: 1},
		{TimeMs: 40, Weight: 3},
		{TimeMs: 50, Weight: 2},
	}

	prev := 0.0
	for total := int64(1); total <= 20; total++ {
		at, ok := Crossing(votes, total)
		if !ok {
			// once unreachable, larger totals stay unreachable
			for bigger := total; bigger <= 20; bigger++ {
				_, ok := Crossing(votes, bigger)
				assert.False(t, ok, "total=%d", bigger)
			}
			break
		}
		assert.GreaterOrEqual(t, at, prev, "total=%d", total)
		prev = at
	}
}

func TestEvaluateQuorum(t *testing.T) {
	key := model.SlotKey{Committee: "mc.0", Slot: 5}
	votes := []model.Vote{
		{TimeMs: 100, Weight: 3},
		{TimeMs: 150, Weight: 2},
		{TimeMs: 200, Weight: 3},
	}

	events, at, ok := EvaluateQuorum(key, votes, 10, model.LabelNotarize, 50)
	require.True(t, ok)
	assert.Equal(t, 200.0, at)
	assert.ElementsMatch(t, []model.Event{
		{Committee: "mc.0", Slot: 5, Label: model.LabelNotarizeReached, Kind: model.KindReached, StartMs: 200},
		model.PhaseEvent("mc.0", 5, model.LabelNotarize, 50, 200),
	}, events)

	events, _, ok = EvaluateQuorum(key, votes[:2], 10, model.LabelNotarize, 50)
	assert.False(t, ok)
	assert.Empty(t, events)
}
