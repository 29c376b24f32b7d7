package entities

import (
	"sort"
	"time"
)

type EntityKind string

const (
	EntityKindResearch EntityKind = "research"
	EntityKindVote     EntityKind = "vote"
)

func (k EntityKind) Valid() bool {
	return k == EntityKindResearch || k == EntityKindVote
}

type DistributionState string

const (
	DistributionNotApplicable DistributionState = "NOT_APPLICABLE"
	DistributionPending       DistributionState = "PENDING"
	DistributionDistributed   DistributionState = "DISTRIBUTED"
)

// Draw is the persisted winner set of one entity. It is written in the same
// unit as the payouts so a rerun pays the same subjects.
type Draw struct {
	DrawID       string
	EntityID     string
	EntityKind   EntityKind
	RewardAmount int64
	Winners      []string
	DrawnAt      time.Time
}

type Payout struct {
	SubjectID        string
	EntryID          string
	Amount           int64
	ResultingBalance int64
}

type Result struct {
	EntityID           string
	EntityKind         EntityKind
	State              DistributionState
	Winners            []string
	Payouts            []Payout
	AlreadyDistributed bool
}

type Participant struct {
	SubjectID string
	Valid     bool
}

// RandomSource yields uniform integers in [0, n).
type RandomSource interface {
	IntN(n int) int
}

// EligibleSubjects returns the distinct valid participants in a stable order.
func EligibleSubjects(participants []Participant) []string {
	seen := make(map[string]struct{}, len(participants))
	out := make([]string, 0, len(participants))
	for _, p := range participants {
		if !p.Valid || p.SubjectID == "" {
			continue
		}
		if _, dup := seen[p.SubjectID]; dup {
			continue
		}
		seen[p.SubjectID] = struct{}{}
		out = append(out, p.SubjectID)
	}
	sort.Strings(out)
	return out
}

// PickWinners shuffles a copy of eligible with Fisher-Yates and returns the
// first min(count, len(eligible)) subjects.
func PickWinners(eligible []string, count int, rng RandomSource) []string {
	pool := append([]string(nil), eligible...)
	for i := len(pool) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	if count < len(pool) {
		pool = pool[:count]
	}
	return pool
}
