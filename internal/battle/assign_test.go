package battle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragrace/internal/battle"
	"ragrace/internal/domain"
)

func identity(int, func(i, j int)) {}

func reverse(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func TestAssign_Bijection(t *testing.T) {
	for n := 1; n <= 6; n++ {
		providers := []string{"p1", "p2", "p3", "p4", "p5", "p6"}[:n]

		assignments := battle.Assign(providers, nil)

		want := n
		if want > 4 {
			want = 4
		}
		require.Len(t, assignments, want)
		labels := map[string]bool{}
		used := map[string]bool{}
		for i, a := range assignments {
			assert.Equal(t, domain.BattleLabels[i], a.Label)
			assert.Contains(t, providers, a.Provider)
			labels[a.Label] = true
			used[a.Provider] = true
		}
		assert.Len(t, labels, want)
		assert.Len(t, used, want)
	}
}

func TestAssign_UsesShuffler(t *testing.T) {
	assignments := battle.Assign([]string{"llamaindex", "reducto"}, reverse)

	assert.Equal(t, []domain.BattleAssignment{
		{Label: "A", Provider: "reducto"},
		{Label: "B", Provider: "llamaindex"},
	}, assignments)
}

func TestAssign_DropsDuplicates(t *testing.T) {
	assignments := battle.Assign([]string{"reducto", "reducto", "", "extendai"}, identity)

	assert.Equal(t, []domain.BattleAssignment{
		{Label: "A", Provider: "reducto"},
		{Label: "B", Provider: "extendai"},
	}, assignments)
}

func TestAssign_DefaultShufflerCoversBothOrders(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200 && len(seen) < 2; i++ {
		a := battle.Assign([]string{"llamaindex", "reducto"}, nil)
		seen[a[0].Provider] = true
	}
	assert.Len(t, seen, 2)
}

func TestMetadata(t *testing.T) {
	assignments := []domain.BattleAssignment{{Label: "A", Provider: "reducto"}, {Label: "B", Provider: "llamaindex"}}

	md := battle.Metadata(assignments, nil)

	assert.True(t, md.BattleMode)
	assert.Equal(t, "A", md.ProviderLabels["reducto"])
	assert.Equal(t, "llamaindex", md.LabelProviders["B"])
	assert.NotNil(t, md.Configs)
}
