package battle

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ragrace/internal/domain"
)

// storedMetadata mirrors the loosely typed shapes a stored answer key may take.
type storedMetadata struct {
	Assignments    []map[string]any  `json:"assignments"`
	LabelProviders map[string]string `json:"label_providers"`
	ProviderLabels map[string]string `json:"provider_labels"`
}

// Assignments reconstructs a battle's label mapping from its stored record,
// trying the assignment list, then the label→provider map, then the
// provider→label map, then the labels on the stored provider runs. The result
// is sorted by label.
func Assignments(record *domain.BattleRecord) []domain.BattleAssignment {
	var md storedMetadata
	if len(record.Metadata) > 0 {
		_ = json.Unmarshal(record.Metadata, &md)
	}

	var out []domain.BattleAssignment
	for _, a := range md.Assignments {
		label, _ := a["label"].(string)
		provider, _ := a["provider"].(string)
		if label != "" && provider != "" {
			out = append(out, domain.BattleAssignment{Label: label, Provider: provider})
		}
	}
	if len(out) == 0 {
		for label, provider := range md.LabelProviders {
			if label != "" && provider != "" {
				out = append(out, domain.BattleAssignment{Label: label, Provider: provider})
			}
		}
	}
	if len(out) == 0 {
		for provider, label := range md.ProviderLabels {
			if label != "" && provider != "" {
				out = append(out, domain.BattleAssignment{Label: label, Provider: provider})
			}
		}
	}
	if len(out) == 0 {
		for _, run := range record.Runs {
			if run.Label != "" {
				out = append(out, domain.BattleAssignment{Label: run.Label, Provider: run.Provider})
			}
		}
	}
	return SortAssignments(out)
}

// Choice is the feedback request in either of its two shapes. When Labels is
// set, Preference is ignored.
type Choice struct {
	Labels     *[]string
	Preference domain.BattlePreference
}

// ResolveLabels turns a Choice into the preferred label set for a battle.
// Labels are validated against the battle, deduplicated and returned in
// label order.
func ResolveLabels(choice Choice, assignments []domain.BattleAssignment) ([]string, error) {
	sorted := SortAssignments(assignments)
	valid := make(map[string]bool, len(sorted))
	all := make([]string, 0, len(sorted))
	for _, a := range sorted {
		valid[a.Label] = true
		all = append(all, a.Label)
	}

	if choice.Labels != nil {
		seen := map[string]bool{}
		out := []string{}
		for _, raw := range *choice.Labels {
			label := strings.ToUpper(strings.TrimSpace(raw))
			if !valid[label] {
				return nil, fmt.Errorf("%w: %q", domain.ErrInvalidLabel, raw)
			}
			if !seen[label] {
				seen[label] = true
				out = append(out, label)
			}
		}
		sort.Strings(out)
		return out, nil
	}

	switch choice.Preference {
	case "":
		return nil, domain.ErrMissingPreference
	case domain.PreferenceABetter:
		if len(all) < 1 {
			return nil, fmt.Errorf("%w: battle has no sides", domain.ErrInvalidLabel)
		}
		return []string{all[0]}, nil
	case domain.PreferenceBBetter:
		if len(all) < 2 {
			return nil, domain.ErrMissingSecondSide
		}
		return []string{all[1]}, nil
	case domain.PreferenceBothGood:
		return all, nil
	case domain.PreferenceBothBad:
		return []string{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidPreference, choice.Preference)
	}
}

// Winner summarizes preferred labels for history views: the single preferred
// provider, a tie when several were preferred, or none.
func Winner(preferred []string, assignments []domain.BattleAssignment) string {
	switch len(preferred) {
	case 0:
		return domain.WinnerNone
	case 1:
		for _, a := range assignments {
			if a.Label == preferred[0] {
				return a.Provider
			}
		}
		return domain.WinnerNone
	default:
		return domain.WinnerTie
	}
}
