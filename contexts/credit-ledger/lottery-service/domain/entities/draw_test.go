package entities

import (
	"math/rand/v2"
	"sort"
	"testing"
)

func TestEligibleSubjectsDropsInvalidAndDuplicates(t *testing.T) {
	got := EligibleSubjects([]Participant{
		{SubjectID: "c", Valid: true},
		{SubjectID: "a", Valid: true},
		{SubjectID: "b", Valid: false},
		{SubjectID: "a", Valid: true},
		{SubjectID: "", Valid: true},
	})
	want := []string{"a", "c"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestPickWinnersIsDistinctAndBounded(t *testing.T) {
	eligible := []string{"a", "b", "c", "d", "e", "f"}
	rng := rand.New(rand.NewPCG(1, 2))

	winners := PickWinners(eligible, 3, rng)
	if len(winners) != 3 {
		t.Fatalf("expected 3 winners, got %v", winners)
	}
	seen := map[string]bool{}
	for _, w := range winners {
		if seen[w] {
			t.Fatalf("duplicate winner %q in %v", w, winners)
		}
		seen[w] = true
	}
	if eligible[0] != "a" || eligible[5] != "f" {
		t.Fatalf("input slice must not be reordered: %v", eligible)
	}
}

func TestPickWinnersPaysEveryoneWhenCountExceedsPool(t *testing.T) {
	winners := PickWinners([]string{"x", "y"}, 5, rand.New(rand.NewPCG(7, 7)))
	sort.Strings(winners)
	if len(winners) != 2 || winners[0] != "x" || winners[1] != "y" {
		t.Fatalf("expected every eligible subject once, got %v", winners)
	}
}

func TestPickWinnersIsRoughlyUniform(t *testing.T) {
	eligible := []string{"a", "b", "c", "d"}
	rng := rand.New(rand.NewPCG(42, 99))
	counts := map[string]int{}
	const rounds = 8000
	for i := 0; i < rounds; i++ {
		counts[PickWinners(eligible, 1, rng)[0]]++
	}
	for _, subject := range eligible {
		share := float64(counts[subject]) / rounds
		if share < 0.2 || share > 0.3 {
			t.Fatalf("subject %s won %.3f of draws, expected about 0.25", subject, share)
		}
	}
}
