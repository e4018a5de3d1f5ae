package source

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/validaoxyz/slot-timeline/internal/model"
)

// SyntheticSource generates a plausible snapshot without any logs, in the same
// shape a LogSource produces. Useful for exercising rendering layers.
type SyntheticSource struct {
	Groups        int
	Slots         int
	Validators    int
	Start         time.Time
	CollateGapMs  int
	PhaseMs       int
	FinalizeLagMs int
	// every EmptyEvery-th slot (starting at 0) is skipped
	EmptyEvery int
	Seed       uint64
}

// NewSyntheticSource returns a generator with the default layout:
// 2 committees, 120 slots, 12 validators.
func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{
		Groups:        2,
		Slots:         120,
		Validators:    12,
		Start:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		CollateGapMs:  100,
		PhaseMs:       50,
		FinalizeLagMs: 200,
		EmptyEvery:    11,
		Seed:          1,
	}
}

func (s *SyntheticSource) Load(ctx context.Context) (*model.ConsensusData, error) {
	rng := rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))

	var slots []model.Slot
	var events []model.Event

	for g := 0; g < s.Groups; g++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		committee := "mc"
		if g > 0 {
			committee = fmt.Sprintf("shard:%d", g)
		}
		validators := make([]model.ValidatorID, s.Validators)
		for i := range validators {
			validators[i] = model.ValidatorID(fmt.Sprintf("%s:v%02d", committee, i))
		}
		groupStart := float64(s.Start.UnixMilli()) + float64(5000*g)

		for n := 0; n < s.Slots; n++ {
			empty := s.EmptyEvery > 0 && n%s.EmptyEvery == 0
			jitter := float64((n*37+g*13)%51 - 25)
			collateStart := groupStart + float64(n*s.CollateGapMs)
			slotStart := collateStart + jitter

			slot := model.Slot{
				Committee:       committee,
				Number:          uint64(n),
				IsEmpty:         empty,
				StartEstimateMs: slotStart,
			}
			if !empty && len(validators) > 0 {
				slot.BlockID = fmt.Sprintf("%s-B%06d", committee, n)
				slot.Collator = validators[n%len(validators)]
			}
			slots = append(slots, slot)

			events = append(events, model.Event{
				Committee: committee,
				Slot:      uint64(n),
				Label:     model.LabelSlotStartEstimate,
				Kind:      model.KindEstimate,
				StartMs:   slotStart,
			})

			if empty {
				events = s.emptySlot(events, committee, uint64(n), validators, collateStart)
			} else {
				events = s.fullSlot(events, rng, committee, uint64(n), validators, collateStart)
			}
		}
	}

	return model.NewConsensusData(slots, events), nil
}

func (s *SyntheticSource) emptySlot(events []model.Event, committee string, slot uint64, validators []model.ValidatorID, collateStart float64) []model.Event {
	skipAt := collateStart + float64(2*s.PhaseMs)

	events = append(events,
		model.Event{Committee: committee, Slot: slot, Label: model.LabelSkipReached, Kind: model.KindReached, StartMs: skipAt},
		model.Event{Committee: committee, Slot: slot, Label: model.LabelFinalizeObservedNextLeader, Kind: model.KindObserved, StartMs: skipAt + float64(s.PhaseMs)},
	)
	for i, v := range validators {
		lag := float64(5 + (i*7+int(slot)*3)%80)
		events = append(events, model.Event{
			Committee: committee,
			Slot:      slot,
			Label:     model.LabelSkipObserved,
			Kind:      model.KindObserved,
			StartMs:   skipAt + lag,
			Validator: v,
		})
	}
	return events
}

func (s *SyntheticSource) fullSlot(events []model.Event, rng *rand.Rand, committee string, slot uint64, validators []model.ValidatorID, collateStart float64) []model.Event {
	phase := float64(s.PhaseMs)
	collateEnd := collateStart + phase
	notarizedAt := collateEnd + phase
	finalizedAt := notarizedAt + phase
	n := int(slot)

	events = append(events,
		model.PhaseEvent(committee, slot, model.LabelCollate, collateStart, collateEnd),
		model.PhaseEvent(committee, slot, model.LabelNotarize, collateEnd, notarizedAt),
		model.PhaseEvent(committee, slot, model.LabelFinalize, notarizedAt, finalizedAt),
		model.Event{Committee: committee, Slot: slot, Label: model.LabelNotarizeReached, Kind: model.KindReached, StartMs: notarizedAt},
		model.Event{Committee: committee, Slot: slot, Label: model.LabelFinalizeReached, Kind: model.KindReached, StartMs: finalizedAt},
		model.Event{Committee: committee, Slot: slot, Label: model.LabelFinalizeObservedNextLeader, Kind: model.KindObserved, StartMs: collateStart + float64(s.FinalizeLagMs)},
	)

	local := func(v model.ValidatorID, label model.Label, at float64) model.Event {
		return model.Event{Committee: committee, Slot: slot, Label: label, Kind: model.KindLocal, StartMs: at, Validator: v}
	}

	for i, v := range validators {
		received := collateEnd + float64(10+(i%5)*7+(n*11+i*3)%20)
		validated := received + float64(15+(i*5+n)%25)
		notarizeSeen := notarizedAt + float64(20+(i%4)*9+(n*7+i*13)%60)
		finalizeSeen := finalizedAt + float64(30+(i%6)*8+(n*5+i*17)%80)

		if n%len(validators) == i {
			events = append(events,
				local(v, model.LabelCollateStarted, collateStart),
				local(v, model.LabelCollateFinished, collateEnd),
			)
		}
		events = append(events,
			local(v, model.LabelCandidateReceived, received-float64(1+rng.IntN(50))),
			local(v, model.LabelValidateStarted, received),
			local(v, model.LabelValidateFinished, validated),
			local(v, model.LabelNotarizeObserved, notarizeSeen),
			local(v, model.LabelFinalizeObserved, finalizeSeen),
		)
	}
	return events
}
