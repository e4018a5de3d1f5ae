package logparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/validaoxyz/slot-timeline/internal/model"
)

// Category is the kind of line that produced a record.
type Category string

const (
	CategoryNone          Category = ""
	CategoryIdentity      Category = "identity"
	CategoryTargetReached Category = "target_reached"
	CategorySkipVote      Category = "skip_certificate"
	CategoryPublished     Category = "published_event"
	CategoryVote          Category = "vote_broadcast"
	CategoryLeaderWindow  Category = "leader_window"
)

// line keywords as emitted by the validator
const (
	targetReachedMarker = "StatsTargetReached"
	skipVoteMarker      = "Obtained certificate for SkipVote"
	publishedMarker     = "Published event"
	broadcastVoteMarker = "BroadcastVote"
	skipVoteToken       = "SkipVote"
	leaderWindowMarker  = "OurLeaderWindowStarted"
)

var (
	targetRe    = regexp.MustCompile(`target=(\w+),\s*slot=(\d+),\s*timestamp=([\d.]+)`)
	slotRe      = regexp.MustCompile(`slot=(\d+)`)
	voteSlotRe  = regexp.MustCompile(`id=\{(\d+)`)
	voteKindRe  = regexp.MustCompile(`vote=(\w+)`)
	startSlotRe = regexp.MustCompile(`start_slot=(\d+)`)
	endSlotRe   = regexp.MustCompile(`end_slot=(\d+)`)
)

// RecordKind tags the variant held by a Record.
type RecordKind uint8

const (
	RecordIdentity RecordKind = iota + 1
	RecordTarget
	RecordSkip
	RecordVote
	RecordLeaderWindow
)

// Record is one extracted state mutation. Which fields are meaningful depends
// on Kind:
//
//	RecordIdentity:     Committee, Validator, Weight, TotalWeight
//	RecordTarget:       Committee, TimeMs, Validator, Slot, Target
//	RecordSkip:         Committee, TimeMs, Validator, Slot
//	RecordVote:         Committee, TimeMs, Validator, Slot, VoteKind, Weight
//	RecordLeaderWindow: Committee, Validator, Slot (inclusive), EndSlot (exclusive)
type Record struct {
	Kind        RecordKind
	Committee   string
	TimeMs      float64
	Validator   model.ValidatorID
	Slot        uint64
	EndSlot     uint64
	Target      string
	VoteKind    string
	Weight      int64
	TotalWeight int64
}

// Stats counts how lines of a stream were handled.
type Stats struct {
	Lines        int64
	Skipped      int64 // no timestamp or committee id
	Unclassified int64 // no category keyword
	Unattributed int64 // categorized but no identity registered for the committee
	Records      int64
}

func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Skipped += o.Skipped
	s.Unclassified += o.Unclassified
	s.Unattributed += o.Unattributed
	s.Records += o.Records
}

// Batch is the private, ordered output of one stream.
type Batch struct {
	Source  string
	Records []Record
	Stats   Stats
}

func (b *Batch) append(r Record) {
	b.Records = append(b.Records, r)
	b.Stats.Records++
}

// Extractor classifies lines of a single stream. It owns that stream's
// identity registry and must not be shared between streams.
type Extractor struct {
	source     string
	lineNo     int
	identities IdentityRegistry
}

func NewExtractor(source string) *Extractor {
	return &Extractor{
		source:     source,
		identities: make(IdentityRegistry),
	}
}

// Identity returns the identity registered for a committee so far.
func (x *Extractor) Identity(committee string) (Identity, bool) {
	id, ok := x.identities[committee]
	return id, ok
}

func classify(line string) Category {
	switch {
	case strings.Contains(line, targetReachedMarker):
		return CategoryTargetReached
	case strings.Contains(line, skipVoteMarker):
		return CategorySkipVote
	case strings.Contains(line, publishedMarker):
		return CategoryPublished
	}
	return CategoryNone
}

// Extract processes the next line of the stream, appending any records to b.
// The returned error is always a *MalformedLineError.
func (x *Extractor) Extract(line string, b *Batch) error {
	x.lineNo++
	b.Stats.Lines++

	ts, ok := ParseTimestamp(line)
	if !ok {
		b.Stats.Skipped++
		return nil
	}
	committee, ok := ParseCommittee(line)
	if !ok {
		b.Stats.Skipped++
		return nil
	}

	id, isIdentity, err := ParseIdentity(line)
	if err != nil {
		return x.locate(err, line)
	}
	if isIdentity {
		x.identities[committee] = id
		b.append(Record{
			Kind:        RecordIdentity,
			Committee:   committee,
			TimeMs:      ts,
			Validator:   id.Validator,
			Weight:      id.Weight,
			TotalWeight: id.TotalWeight,
		})
	}

	category := classify(line)
	if category == CategoryNone {
		if !isIdentity {
			b.Stats.Unclassified++
		}
		return nil
	}

	self, ok := x.identities[committee]
	if !ok {
		b.Stats.Unattributed++
		return nil
	}

	base := Record{Committee: committee, TimeMs: ts, Validator: self.Validator}
	switch category {
	case CategoryTargetReached:
		err = extractTarget(line, base, b)
	case CategorySkipVote:
		err = extractSkip(line, base, b)
	case CategoryPublished:
		err = extractPublished(line, base, self, b)
	}
	if err != nil {
		return x.locate(err, line)
	}
	return nil
}

func (x *Extractor) locate(err error, line string) error {
	if mle, ok := err.(*MalformedLineError); ok {
		mle.File = x.source
		mle.Line = x.lineNo
		mle.Text = strings.TrimSpace(line)
		return mle
	}
	return err
}

func extractTarget(line string, r Record, b *Batch) error {
	m := targetRe.FindStringSubmatch(line)
	if m == nil {
		return missingField(CategoryTargetReached, "target/slot/timestamp")
	}
	slot, err := strconv.ParseUint(m[2], 10, 63)
	if err != nil {
		return invalidField(CategoryTargetReached, "slot", err)
	}

	r.Kind = RecordTarget
	r.Target = m[1]
	r.Slot = slot
	b.append(r)
	return nil
}

func extractSkip(line string, r Record, b *Batch) error {
	slot, err := captureInt(line, slotRe, CategorySkipVote, "slot")
	if err != nil {
		return err
	}

	r.Kind = RecordSkip
	r.Slot = slot
	b.append(r)
	return nil
}

func extractPublished(line string, r Record, self Identity, b *Batch) error {
	switch {
	case strings.Contains(line, broadcastVoteMarker) && !strings.Contains(line, skipVoteToken):
		slot, err := captureInt(line, voteSlotRe, CategoryVote, "slot")
		if err != nil {
			return err
		}
		kind, err := captureWord(line, voteKindRe, CategoryVote, "vote")
		if err != nil {
			return err
		}
		r.Kind = RecordVote
		r.Slot = slot
		r.VoteKind = kind
		r.Weight = self.Weight
		b.append(r)

	case strings.Contains(line, leaderWindowMarker):
		start, err := captureInt(line, startSlotRe, CategoryLeaderWindow, "start_slot")
		if err != nil {
			return err
		}
		end, err := captureInt(line, endSlotRe, CategoryLeaderWindow, "end_slot")
		if err != nil {
			return err
		}
		r.Kind = RecordLeaderWindow
		r.Slot = start
		r.EndSlot = end
		b.append(r)
	}
	return nil
}
