// Package logparse turns validator log streams into ordered batches of records
// for the timeline assembler.
package logparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/validaoxyz/slot-timeline/internal/model"
)

const timestampLayout = "2006-01-02 15:04:05.000000"

var (
	timestampRe = regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{6})\]`)
	committeeRe = regexp.MustCompile(`valgroup\(([^)]+)\)\.(\d+)`)

	validatorRe   = regexp.MustCompile(`We are validator (\d+)`)
	ownWeightRe   = regexp.MustCompile(`with weight (\d+)`)
	totalWeightRe = regexp.MustCompile(`out of (\d+)`)
)

const identityMarker = "We are validator"

// Identity is what a validator process announces about itself in one committee.
type Identity struct {
	Validator   model.ValidatorID
	Weight      int64
	TotalWeight int64
}

// IdentityRegistry maps committee id to the local identity. It is private to a
// single stream.
type IdentityRegistry map[string]Identity

// ParseTimestamp extracts the bracketed UTC timestamp as epoch milliseconds,
// keeping sub-millisecond precision.
func ParseTimestamp(line string) (float64, bool) {
	m := timestampRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	t, err := time.ParseInLocation(timestampLayout, m[1], time.UTC)
	if err != nil {
		return 0, false
	}
	return float64(t.UnixMicro()) / 1000, true
}

// ParseCommittee extracts "valgroup(<name>).<index>" as "<name>.<index>".
func ParseCommittee(line string) (string, bool) {
	m := committeeRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1] + "." + m[2], true
}

// ParseIdentity reads a "We are validator" registration line. ok is false for
// any other line; a registration missing a field returns a *MalformedLineError.
func ParseIdentity(line string) (id Identity, ok bool, err error) {
	if !strings.Contains(line, identityMarker) {
		return Identity{}, false, nil
	}

	v, err := captureInt(line, validatorRe, CategoryIdentity, "validator")
	if err != nil {
		return Identity{}, true, err
	}
	w, err := captureInt(line, ownWeightRe, CategoryIdentity, "weight")
	if err != nil {
		return Identity{}, true, err
	}
	total, err := captureInt(line, totalWeightRe, CategoryIdentity, "total_weight")
	if err != nil {
		return Identity{}, true, err
	}

	return Identity{
		Validator:   validatorID(v),
		Weight:      int64(w),
		TotalWeight: int64(total),
	}, true, nil
}

func validatorID(v uint64) model.ValidatorID {
	return model.ValidatorID(strconv.FormatUint(v, 10))
}

// captures the first group of re as an unsigned integer
func captureInt(line string, re *regexp.Regexp, category Category, field string) (uint64, error) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, missingField(category, field)
	}
	n, err := strconv.ParseUint(m[1], 10, 63)
	if err != nil {
		return 0, invalidField(category, field, err)
	}
	return n, nil
}

func captureWord(line string, re *regexp.Regexp, category Category, field string) (string, error) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return "", missingField(category, field)
	}
	return m[1], nil
}
