// Package battle holds the blind-battle protocol: label assignment, tracking
// of in-flight persistence and reconciliation of feedback against labels.
package battle

import (
	"math/rand/v2"
	"sort"
	"strings"

	"ragrace/internal/domain"
)

// Shuffler permutes n elements through swap, like rand.Shuffle.
type Shuffler func(n int, swap func(i, j int))

// DefaultShuffler uses the runtime-seeded global generator.
var DefaultShuffler Shuffler = rand.Shuffle

// Assign shuffles providers and pairs them with labels A..D. Duplicates are
// dropped first and anything past the fourth provider gets no label.
func Assign(providers []string, shuffle Shuffler) []domain.BattleAssignment {
	if shuffle == nil {
		shuffle = DefaultShuffler
	}
	pool := DedupeProviders(providers)
	shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	n := len(pool)
	if n > len(domain.BattleLabels) {
		n = len(domain.BattleLabels)
	}
	out := make([]domain.BattleAssignment, n)
	for i := 0; i < n; i++ {
		out[i] = domain.BattleAssignment{Label: domain.BattleLabels[i], Provider: pool[i]}
	}
	return out
}

// DedupeProviders trims names and removes blanks and repeats, keeping
// first-seen order.
func DedupeProviders(providers []string) []string {
	seen := make(map[string]bool, len(providers))
	out := make([]string, 0, len(providers))
	for _, p := range providers {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// SortAssignments orders assignments by label.
func SortAssignments(assignments []domain.BattleAssignment) []domain.BattleAssignment {
	out := make([]domain.BattleAssignment, len(assignments))
	copy(out, assignments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}

// Metadata builds the stored answer key for a set of assignments.
func Metadata(assignments []domain.BattleAssignment, configs map[string]map[string]any) domain.BattleMetadata {
	md := domain.BattleMetadata{
		Configs:        configs,
		ProviderLabels: make(map[string]string, len(assignments)),
		LabelProviders: make(map[string]string, len(assignments)),
		Assignments:    assignments,
		BattleMode:     true,
	}
	if md.Configs == nil {
		md.Configs = map[string]map[string]any{}
	}
	for _, a := range assignments {
		md.ProviderLabels[a.Provider] = a.Label
		md.LabelProviders[a.Label] = a.Provider
	}
	return md
}
