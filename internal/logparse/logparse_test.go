package logparse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/validaoxyz/slot-timeline/internal/model"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms float64) float64 {
	return float64(base.UnixMilli()) + ms
}

// builds a log line for committee "<name>.<index>"
func line(ms float64, committee, body string) string {
	ts := base.Add(time.Duration(ms * float64(time.Millisecond))).Format(timestampLayout)
	i := strings.LastIndex(committee, ".")
	return fmt.Sprintf("[%s][valgroup(%s).%s] %s", ts, committee[:i], committee[i+1:], body)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		line string
		want float64
		ok   bool
	}{
		{"whole millis", "[2025-01-01 00:00:01.250000] x", at(1250), true},
		{"sub millisecond kept", "[2025-01-01 00:00:00.000500] x", at(0.5), true},
		{"no brackets", "2025-01-01 00:00:00.000000 x", 0, false},
		{"millisecond precision only", "[2025-01-01 00:00:00.000] x", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommittee(t *testing.T) {
	c, ok := ParseCommittee("[..][valgroup(mc).0] hello")
	require.True(t, ok)
	assert.Equal(t, "mc.0", c)

	c, ok = ParseCommittee("valgroup(shard:3).12 vote")
	require.True(t, ok)
	assert.Equal(t, "shard:3.12", c)

	_, ok = ParseCommittee("group(mc).0")
	assert.False(t, ok)
}

func TestParseIdentity(t *testing.T) {
	id, ok, err := ParseIdentity("We are validator 3 with weight 2 out of 10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Identity{Validator: "3", Weight: 2, TotalWeight: 10}, id)

	_, ok, err = ParseIdentity("unrelated line")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = ParseIdentity("We are validator 3 with weight 2")
	assert.True(t, ok)
	var mle *MalformedLineError
	require.ErrorAs(t, err, &mle)
	assert.Equal(t, CategoryIdentity, mle.Category)
	assert.Equal(t, "total_weight", mle.Field)
}

func extractAll(t *testing.T, lines ...string) (*Batch, error) {
	t.Helper()
	return NewParser(0).ParseReader("node.log", strings.NewReader(strings.Join(lines, "\n")))
}

func TestExtractRecords(t *testing.T) {
	b, err := extractAll(t,
		line(0, "mc.0", "We are validator 3 with weight 2 out of 10"),
		line(10, "mc.0", "StatsTargetReached target=CollateStarted, slot=5, timestamp=1735689600.01"),
		line(20, "mc.0", "Obtained certificate for SkipVote slot=7"),
		line(30, "mc.0", "Published event BroadcastVote id={5, 0xabc} vote=NotarizeVote"),
		line(31, "mc.0", "Published event BroadcastVote id={7, 0xabc} vote=SkipVote"),
		line(40, "mc.0", "Published event OurLeaderWindowStarted start_slot=6, end_slot=8"),
	)
	require.NoError(t, err)

	want := []Record{
		{Kind: RecordIdentity, Committee: "mc.0", TimeMs: at(0), Validator: "3", Weight: 2, TotalWeight: 10},
		{Kind: RecordTarget, Committee: "mc.0", TimeMs: at(10), Validator: "3", Slot: 5, Target: "CollateStarted"},
		{Kind: RecordSkip, Committee: "mc.0", TimeMs: at(20), Validator: "3", Slot: 7},
		{Kind: RecordVote, Committee: "mc.0", TimeMs: at(30), Validator: "3", Slot: 5, VoteKind: "NotarizeVote", Weight: 2},
		{Kind: RecordLeaderWindow, Committee: "mc.0", TimeMs: at(40), Validator: "3", Slot: 6, EndSlot: 8},
	}
	assert.Equal(t, want, b.Records)
	assert.Equal(t, Stats{Lines: 6, Records: 5}, b.Stats)
	assert.Equal(t, "node.log", b.Source)
}

func TestExtractSkippedLines(t *testing.T) {
	b, err := extractAll(t,
		"no timestamp here valgroup(mc).0 StatsTargetReached",
		"[2025-01-01 00:00:00.000000] no committee StatsTargetReached",
		line(0, "mc.0", "something unrelated"),
		"   ",
	)
	require.NoError(t, err)
	assert.Empty(t, b.Records)
	assert.Equal(t, Stats{Lines: 4, Skipped: 3, Unclassified: 1}, b.Stats)
}

func TestExtractUnattributed(t *testing.T) {
	b, err := extractAll(t,
		line(0, "mc.0", "StatsTargetReached target=CollateStarted, slot=5, timestamp=1"),
		line(5, "shard.1", "We are validator 4 with weight 1 out of 3"),
		line(10, "mc.0", "Published event BroadcastVote id={5} vote=NotarizeVote"),
		line(15, "shard.1", "Obtained certificate for SkipVote slot=9"),
	)
	require.NoError(t, err)

	// identity of shard.1 does not attribute mc.0 lines
	require.Len(t, b.Records, 2)
	assert.Equal(t, RecordIdentity, b.Records[0].Kind)
	assert.Equal(t, RecordSkip, b.Records[1].Kind)
	assert.Equal(t, model.ValidatorID("4"), b.Records[1].Validator)
	assert.Equal(t, int64(2), b.Stats.Unattributed)
}

func TestMalformedLineAbortsStream(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		category Category
		field    string
	}{
		{"target without slot", "StatsTargetReached target=CollateStarted, timestamp=1", CategoryTargetReached, "target/slot/timestamp"},
		{"skip without slot", "Obtained certificate for SkipVote", CategorySkipVote, "slot"},
		{"vote without slot", "Published event BroadcastVote vote=NotarizeVote", CategoryVote, "slot"},
		{"vote without kind", "Published event BroadcastVote id={5}", CategoryVote, "vote"},
		{"window without end", "Published event OurLeaderWindowStarted start_slot=1", CategoryLeaderWindow, "end_slot"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := extractAll(t,
				line(0, "mc.0", "We are validator 1 with weight 1 out of 1"),
				line(1, "mc.0", tt.body),
				line(2, "mc.0", "StatsTargetReached target=CollateStarted, slot=5, timestamp=1"),
			)
			assert.Nil(t, b)

			var mle *MalformedLineError
			require.True(t, errors.As(err, &mle))
			assert.Equal(t, "node.log", mle.File)
			assert.Equal(t, 2, mle.Line)
			assert.Equal(t, tt.category, mle.Category)
			assert.Equal(t, tt.field, mle.Field)
			assert.Contains(t, mle.Text, tt.body)
			assert.Contains(t, err.Error(), "node.log:2")
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "validator.log")
	content := strings.Join([]string{
		line(0, "mc.0", "We are validator 1 with weight 5 out of 9"),
		line(1, "mc.0", "StatsTargetReached target=FinalObserved, slot=2, timestamp=1"),
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	b, err := NewParser(64).ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, b.Source)
	assert.Len(t, b.Records, 2)

	_, err = NewParser(64).ParseFile(filepath.Join(dir, "missing.log"))
	assert.Error(t, err)
}

func TestParseReaderLineTooLong(t *testing.T) {
	long := line(0, "mc.0", strings.Repeat("x", 4096))
	_, err := NewParser(1).ParseReader("big.log", strings.NewReader(long))
	assert.Error(t, err)
}
