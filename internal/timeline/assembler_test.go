package timeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/validaoxyz/slot-timeline/internal/logparse"
	"github.com/validaoxyz/slot-timeline/internal/model"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms float64) float64 {
	return float64(base.UnixMilli()) + ms
}

// log line of committee "<name>.<index>" at base+ms
func line(ms float64, committee, body string) string {
	ts := base.Add(time.Duration(ms * float64(time.Millisecond))).Format("2006-01-02 15:04:05.000000")
	i := strings.LastIndex(committee, ".")
	return fmt.Sprintf("[%s][valgroup(%s).%s] %s", ts, committee[:i], committee[i+1:], body)
}

func identity(ms float64, committee string, v, weight, total int) string {
	return line(ms, committee, fmt.Sprintf("We are validator %d with weight %d out of %d", v, weight, total))
}

func target(ms float64, committee, name string, slot int) string {
	return line(ms, committee, fmt.Sprintf("StatsTargetReached target=%s, slot=%d, timestamp=0.0", name, slot))
}

func vote(ms float64, committee, kind string, slot int) string {
	return line(ms, committee, fmt.Sprintf("Published event BroadcastVote id={%d, 0x01} vote=%s", slot, kind))
}

func skip(ms float64, committee string, slot int) string {
	return line(ms, committee, fmt.Sprintf("Obtained certificate for SkipVote slot=%d", slot))
}

func window(ms float64, committee string, start, end int) string {
	return line(ms, committee, fmt.Sprintf("Published event OurLeaderWindowStarted start_slot=%d, end_slot=%d", start, end))
}

func stream(t *testing.T, name string, lines ...string) *logparse.Batch {
	t.Helper()
	b, err := logparse.NewParser(0).ParseReader(name, strings.NewReader(strings.Join(lines, "\n")))
	require.NoError(t, err)
	return b
}

func build(t *testing.T, batches ...*logparse.Batch) *model.ConsensusData {
	t.Helper()
	res, err := Assemble(batches)
	require.NoError(t, err)
	return res.Data
}

func TestCollatePhase(t *testing.T) {
	d := build(t, stream(t, "a.log",
		identity(0, "mc.0", 2, 1, 4),
		target(0, "mc.0", "CollateStarted", 5),
		target(50, "mc.0", "CollateFinished", 5),
	))

	slot, ok := d.Slot("mc.0", 5)
	require.True(t, ok)
	assert.Equal(t, model.ValidatorID("2"), slot.Collator)
	assert.False(t, slot.IsEmpty)
	assert.Equal(t, at(0), slot.StartEstimateMs)

	assert.ElementsMatch(t, []model.Event{
		{Committee: "mc.0", Slot: 5, Label: model.LabelCollateStarted, Kind: model.KindLocal, StartMs: at(0), Validator: "2"},
		{Committee: "mc.0", Slot: 5, Label: model.LabelCollateFinished, Kind: model.KindLocal, StartMs: at(50), Validator: "2"},
		{Committee: "mc.0", Slot: 5, Label: model.LabelSlotStartEstimate, Kind: model.KindEstimate, StartMs: at(0)},
		model.PhaseEvent("mc.0", 5, model.LabelCollate, at(0), at(50)),
	}, d.Events())
}

func TestSkipOnlySlot(t *testing.T) {
	d := build(t, stream(t, "a.log",
		identity(0, "mc.0", 1, 1, 1),
		skip(30, "mc.0", 7),
	))

	slot, ok := d.Slot("mc.0", 7)
	require.True(t, ok)
	assert.True(t, slot.IsEmpty)
	assert.Equal(t, at(30), slot.StartEstimateMs)

	assert.ElementsMatch(t, []model.Event{
		{Committee: "mc.0", Slot: 7, Label: model.LabelSkipObserved, Kind: model.KindLocal, StartMs: at(30), Validator: "1"},
		{Committee: "mc.0", Slot: 7, Label: model.LabelSlotStartEstimate, Kind: model.KindEstimate, StartMs: at(30)},
	}, d.Events())
	assert.Empty(t, d.FilterEvents(model.EventQuery{Kinds: model.Set(model.KindPhase)}))
}

func TestFinalObservedByNextLeader(t *testing.T) {
	d := build(t, stream(t, "v.log",
		identity(0, "mc.0", 9, 1, 3),
		window(5, "mc.0", 6, 7),
		target(40, "mc.0", "FinalObserved", 5),
		target(45, "mc.0", "FinalObserved", 6),
	))

	assert.ElementsMatch(t, []model.Event{
		{Committee: "mc.0", Slot: 5, Label: model.LabelFinalizeObservedNextLeader, Kind: model.KindObserved, StartMs: at(40)},
		{Committee: "mc.0", Slot: 5, Label: model.LabelFinalizeObserved, Kind: model.KindLocal, StartMs: at(40), Validator: "9"},
		{Committee: "mc.0", Slot: 5, Label: model.LabelSlotStartEstimate, Kind: model.KindEstimate, StartMs: at(40)},
		{Committee: "mc.0", Slot: 6, Label: model.LabelFinalizeObserved, Kind: model.KindLocal, StartMs: at(45), Validator: "9"},
		{Committee: "mc.0", Slot: 6, Label: model.LabelSlotStartEstimate, Kind: model.KindEstimate, StartMs: at(45)},
	}, d.Events())
}

func TestLastLeaderAnnouncementWins(t *testing.T) {
	d := build(t,
		stream(t, "a.log",
			identity(0, "mc.0", 1, 1, 2),
			window(1, "mc.0", 0, 10),
		),
		stream(t, "b.log",
			identity(0, "mc.0", 2, 1, 2),
			window(2, "mc.0", 4, 6),
			target(10, "mc.0", "FinalObserved", 4),
		),
		stream(t, "c.log",
			identity(0, "mc.0", 1, 1, 2),
			target(11, "mc.0", "FinalObserved", 4),
		),
	)

	next := d.FilterEvents(model.EventQuery{Labels: model.Set(model.LabelFinalizeObservedNextLeader)})
	require.Len(t, next, 1)
	assert.Equal(t, at(10), next[0].StartMs)
	assert.False(t, next[0].HasValidator())
}

func fullChain(t *testing.T) []*logparse.Batch {
	return []*logparse.Batch{
		stream(t, "a.log",
			identity(0, "mc.0", 1, 4, 10),
			target(0, "mc.0", "CollateStarted", 5),
			target(50, "mc.0", "CollateFinished", 5),
			vote(100, "mc.0", VoteKindNotarize, 5),
			vote(300, "mc.0", VoteKindFinalize, 5),
		),
		stream(t, "b.log",
			identity(0, "mc.0", 2, 4, 10),
			target(60, "mc.0", "CandidateReceived", 5),
			vote(120, "mc.0", VoteKindNotarize, 5),
			target(130, "mc.0", "NotarObserved", 5),
			vote(310, "mc.0", VoteKindFinalize, 5),
		),
		stream(t, "c.log",
			identity(0, "mc.0", 3, 2, 10),
			vote(90, "mc.0", VoteKindNotarize, 5),
			target(400, "mc.0", "FinalObserved", 5),
		),
	}
}

func TestQuorumChain(t *testing.T) {
	d := build(t, fullChain(t)...)

	derived := d.FilterEvents(model.EventQuery{
		Slot:  ptr[uint64](5),
		Kinds: model.Set(model.KindPhase, model.KindReached),
	})
	// notarize: 2@90, 4@100 -> 6, 4@120 -> 10 >= 7
	// finalize: 4@300, 4@310 -> 8 >= 7
	assert.ElementsMatch(t, []model.Event{
		model.PhaseEvent("mc.0", 5, model.LabelCollate, at(0), at(50)),
		{Committee: "mc.0", Slot: 5, Label: model.LabelNotarizeReached, Kind: model.KindReached, StartMs: at(120)},
		model.PhaseEvent("mc.0", 5, model.LabelNotarize, at(50), at(120)),
		{Committee: "mc.0", Slot: 5, Label: model.LabelFinalizeReached, Kind: model.KindReached, StartMs: at(310)},
		model.PhaseEvent("mc.0", 5, model.LabelFinalize, at(120), at(310)),
	}, derived)

	slots, events := d.Len()
	assert.Equal(t, 1, slots)
	// 5 local + 1 estimate + 5 derived
	assert.Equal(t, 11, events)
}

func TestNotarizeRequiresCollation(t *testing.T) {
	d := build(t,
		stream(t, "a.log",
			identity(0, "mc.0", 1, 5, 6),
			target(0, "mc.0", "CollateStarted", 5),
			vote(100, "mc.0", VoteKindNotarize, 5),
			vote(200, "mc.0", VoteKindFinalize, 5),
		),
	)
	assert.Empty(t, d.FilterEvents(model.EventQuery{Kinds: model.Set(model.KindPhase, model.KindReached)}))
}

func TestFinalizeRequiresNotarize(t *testing.T) {
	d := build(t,
		stream(t, "a.log",
			identity(0, "mc.0", 1, 2, 6),
			target(0, "mc.0", "CollateStarted", 5),
			target(10, "mc.0", "CollateFinished", 5),
			vote(100, "mc.0", VoteKindNotarize, 5),
		),
		stream(t, "b.log",
			identity(0, "mc.0", 2, 4, 6),
			vote(200, "mc.0", VoteKindFinalize, 5),
		),
		stream(t, "c.log",
			identity(0, "mc.0", 3, 2, 6),
			vote(210, "mc.0", VoteKindFinalize, 5),
		),
	)

	phases := model.GroupEventsByLabel(d.FilterEvents(model.EventQuery{Kinds: model.Set(model.KindPhase)}))
	assert.Len(t, phases[model.LabelCollate], 1)
	assert.Empty(t, phases[model.LabelNotarize])
	assert.Empty(t, phases[model.LabelFinalize])
}

func TestPhaseChainInvariant(t *testing.T) {
	d := build(t, fullChain(t)...)

	has := make(map[model.SlotKey]map[model.Label]bool)
	for _, e := range d.FilterEvents(model.EventQuery{Kinds: model.Set(model.KindPhase)}) {
		k := model.SlotKey{Committee: e.Committee, Slot: e.Slot}
		if has[k] == nil {
			has[k] = make(map[model.Label]bool)
		}
		has[k][e.Label] = true
	}
	for k, labels := range has {
		if labels[model.LabelFinalize] {
			assert.True(t, labels[model.LabelNotarize], "%v", k)
		}
		if labels[model.LabelNotarize] {
			assert.True(t, labels[model.LabelCollate], "%v", k)
		}
	}
}

func TestStartEstimateIsMinimum(t *testing.T) {
	d := build(t,
		stream(t, "a.log",
			identity(0, "mc.0", 1, 1, 2),
			target(80, "mc.0", "ValidateStarted", 3),
			skip(20, "mc.0", 3),
		),
		stream(t, "b.log",
			identity(0, "mc.0", 2, 1, 2),
			target(40, "mc.0", "ValidateFinished", 3),
			target(90, "mc.0", "CollateFinished", 3),
		),
	)

	slot, ok := d.Slot("mc.0", 3)
	require.True(t, ok)
	assert.Equal(t, at(40), slot.StartEstimateMs)
	assert.True(t, slot.IsEmpty)
}

func TestMissingTotalSkipsQuorum(t *testing.T) {
	b := stream(t, "a.log",
		identity(0, "mc.0", 1, 5, 5),
		target(0, "mc.0", "CollateStarted", 1),
		target(10, "mc.0", "CollateFinished", 1),
		vote(20, "mc.0", VoteKindNotarize, 1),
	)
	// keep the attributed records, drop the identity registration
	b.Records = b.Records[1:]

	d := build(t, b)
	assert.Len(t, d.FilterEvents(model.EventQuery{Labels: model.Set(model.LabelCollate)}), 1)
	assert.Empty(t, d.FilterEvents(model.EventQuery{Labels: model.Set(model.LabelNotarize, model.LabelNotarizeReached)}))
}

func TestUnknownTargetTouchesSlot(t *testing.T) {
	d := build(t, stream(t, "a.log",
		identity(0, "mc.0", 1, 1, 1),
		target(5, "mc.0", "SomethingNew", 2),
	))
	_, ok := d.Slot("mc.0", 2)
	assert.True(t, ok)
	assert.Empty(t, d.FilterEvents(model.EventQuery{Kinds: model.Set(model.KindLocal)}))
}

func TestBuilderConsumed(t *testing.T) {
	b := NewBuilder()
	require.NoError(t, b.Apply(stream(t, "a.log", identity(0, "mc.0", 1, 1, 1))))
	_, err := b.Build()
	require.NoError(t, err)

	_, err = b.Build()
	assert.ErrorIs(t, err, ErrBuilderConsumed)
	assert.ErrorIs(t, b.Apply(&logparse.Batch{}), ErrBuilderConsumed)
}

func TestParseFilesParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]string{
		"a.log": {
			identity(0, "mc.0", 1, 4, 10),
			window(1, "mc.0", 6, 8),
			target(0, "mc.0", "CollateStarted", 5),
			target(50, "mc.0", "CollateFinished", 5),
			vote(100, "mc.0", VoteKindNotarize, 5),
			vote(300, "mc.0", VoteKindFinalize, 5),
			target(400, "mc.0", "FinalObserved", 5),
		},
		"b.log": {
			identity(0, "mc.0", 2, 4, 10),
			identity(0, "shard.1", 7, 1, 1),
			vote(120, "mc.0", VoteKindNotarize, 5),
			vote(310, "mc.0", VoteKindFinalize, 5),
			skip(130, "shard.1", 2),
		},
		"c.log": {
			identity(0, "mc.0", 3, 2, 10),
			vote(90, "mc.0", VoteKindNotarize, 5),
			target(20, "mc.0", "CandidateReceived", 6),
		},
	}

	var paths []string
	for _, name := range []string{"a.log", "b.log", "c.log"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(files[name], "\n")+"\n"), 0o644))
		paths = append(paths, path)
	}

	seq, err := ParseFiles(context.Background(), paths, Options{Workers: 1})
	require.NoError(t, err)
	par, err := ParseFiles(context.Background(), paths, Options{Workers: 3})
	require.NoError(t, err)

	assert.Equal(t, seq.Data.Slots(), par.Data.Slots())
	assert.ElementsMatch(t, seq.Data.Events(), par.Data.Events())
	assert.Equal(t, seq.Stats, par.Stats)
	assert.Equal(t, 3, par.Files)

	assert.Equal(t, []string{"mc.0", "shard.1"}, par.Data.Committees())
	assert.Len(t, par.Data.FilterEvents(model.EventQuery{Labels: model.Set(model.LabelFinalizeObservedNextLeader)}), 1)
}

func TestParseFilesMalformed(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.log")
	bad := filepath.Join(dir, "b.log")
	require.NoError(t, os.WriteFile(good, []byte(identity(0, "mc.0", 1, 1, 1)+"\n"), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(strings.Join([]string{
		identity(0, "mc.0", 2, 1, 1),
		line(1, "mc.0", "Obtained certificate for SkipVote"),
	}, "\n")), 0o644))

	res, err := ParseFiles(context.Background(), []string{good, bad}, Options{Workers: 2})
	assert.Nil(t, res)

	var mle *logparse.MalformedLineError
	require.ErrorAs(t, err, &mle)
	assert.Equal(t, bad, mle.File)
	assert.Equal(t, 2, mle.Line)
}

func TestSummarize(t *testing.T) {
	batches := fullChain(t)
	batches = append(batches, stream(t, "d.log",
		identity(0, "mc.0", 4, 0, 10),
		skip(500, "mc.0", 6),
		target(510, "mc.0", "CandidateReceived", 7),
	))
	s := Summarize(build(t, batches...))

	require.Len(t, s.Committees, 1)
	c := s.Committees[0]
	assert.Equal(t, "mc.0", c.Committee)
	assert.Equal(t, 3, c.Slots)
	assert.Equal(t, 1, c.EmptySlots)
	assert.Equal(t, 50.0, c.PhaseAvgMs(model.LabelCollate))
	assert.Equal(t, 70.0, c.PhaseAvgMs(model.LabelNotarize))
	assert.Equal(t, 190.0, c.PhaseAvgMs(model.LabelFinalize))
	// slot 7 was seen but never collated
	assert.Equal(t, 1, c.Missing[model.LabelCollate])
	assert.Equal(t, 1, c.Missing[model.LabelFinalize])
	assert.Equal(t, 5, s.EventsByKind[model.KindReached]+s.EventsByKind[model.KindPhase])
}

func ptr[T any](v T) *T {
	return &v
}

func TestHugeCommitteeTotalNeedsRealQuorum(t *testing.T) {
	d := build(t, stream(t, "a.log",
		line(0, "mc.0", "We are validator 1 with weight 1 out of 6000000000000000000"),
		target(0, "mc.0", "CollateStarted", 5),
		target(10, "mc.0", "CollateFinished", 5),
		vote(20, "mc.0", VoteKindNotarize, 5),
	))

	assert.Empty(t, d.FilterEvents(model.EventQuery{Kinds: model.Set(model.KindReached)}))
}

func TestWideLeaderWindow(t *testing.T) {
	b := stream(t, "v.log",
		identity(0, "mc.0", 9, 1, 3),
		window(5, "mc.0", 0, 1_000_000_000_000_000_000),
		target(40, "mc.0", "FinalObserved", 5),
	)

	done := make(chan *model.ConsensusData, 1)
	go func() {
		res, err := Assemble([]*logparse.Batch{b})
		if err != nil {
			done <- nil
			return
		}
		done <- res.Data
	}()

	select {
	case d := <-done:
		require.NotNil(t, d)
		assert.Len(t, d.FilterEvents(model.EventQuery{Labels: model.Set(model.LabelFinalizeObservedNextLeader)}), 1)
	case <-time.After(5 * time.Second):
		t.Fatal("assembling a wide leader window did not finish")
	}
}
