// Package resolver groups probable duplicate individuals within one source
// and picks merge survivors. Matching is deliberately conservative: a pair
// must agree on both name similarity and birth-year compatibility before it
// is even suggested, and merging is always an explicit caller action.
package resolver

import (
	"fmt"
	"sort"

	"github.com/averyholt/descentbackend/models"
)

// DuplicateGroup is one cluster of individuals the matcher believes denote
// the same person, with any evidence against the match surfaced as warnings.
type DuplicateGroup struct {
	Members  []*models.Individual `json:"members"`
	Warnings []string             `json:"warnings,omitempty"`
}

// Matches reports whether two individuals plausibly denote the same person.
func Matches(a, b *models.Individual) bool {
	if !NamesSimilar(a.Name, b.Name) {
		return false
	}
	return YearsCompatible(ExtractYear(a.Birth), ExtractYear(b.Birth))
}

// GroupDuplicates clusters the given individuals into duplicate groups.
// Matching is transitive: if A matches B and B matches C, all three land in
// one group even when A and C would not match directly. Singletons are
// omitted. Callers pass individuals from a single source; cross-source
// matching is not meaningful because content keys already namespace by source.
func GroupDuplicates(individuals []*models.Individual) []DuplicateGroup {
	n := len(individuals)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		parent[find(i)] = find(j)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if Matches(individuals[i], individuals[j]) {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int][]*models.Individual)
	for i, ind := range individuals {
		root := find(i)
		byRoot[root] = append(byRoot[root], ind)
	}

	roots := make([]int, 0, len(byRoot))
	for root, members := range byRoot {
		if len(members) > 1 {
			roots = append(roots, root)
		}
	}
	sort.Ints(roots)

	groups := make([]DuplicateGroup, 0, len(roots))
	for _, root := range roots {
		members := byRoot[root]
		sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
		groups = append(groups, DuplicateGroup{
			Members:  members,
			Warnings: groupWarnings(members),
		})
	}
	return groups
}

// groupWarnings collects evidence against the group being one person.
func groupWarnings(members []*models.Individual) []string {
	var warnings []string

	var sex *string
	for _, m := range members {
		if m.Sex == nil || *m.Sex == "" {
			continue
		}
		if sex == nil {
			sex = m.Sex
			continue
		}
		if *sex != *m.Sex {
			warnings = append(warnings, "members disagree on sex")
			break
		}
	}

	gens := map[int]bool{}
	for _, m := range members {
		gens[m.Gen] = true
	}
	if len(gens) > 1 {
		warnings = append(warnings, "members sit at different generations")
	}

	for _, m := range members {
		if m.ManuallyEdited {
			warnings = append(warnings, fmt.Sprintf("individual %d was manually edited", m.ID))
		}
	}
	return warnings
}

// ChooseSurvivor picks the group member that keeps its identity through a
// merge: the one carrying the most populated fields, ties broken by lowest ID
// so repeated runs choose the same survivor.
func ChooseSurvivor(members []*models.Individual) *models.Individual {
	var best *models.Individual
	bestCount := -1
	for _, m := range members {
		c := m.PopulatedFieldCount()
		if c > bestCount || (c == bestCount && best != nil && m.ID < best.ID) {
			best = m
			bestCount = c
		}
	}
	return best
}
