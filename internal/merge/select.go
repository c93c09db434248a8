package merge

import "sort"

// SelectSurvivor orders a group's members by descending usage count,
// breaking ties by ascending display name, and returns the first as the
// survivor and the rest as victims. Usage is the name other rows already
// agree on; the lexicographic tie-break keeps repeated runs over
// unchanged data picking the same survivor.
func SelectSurvivor(group Group, usage map[string]int) (Member, []Member) {
	ranked := make([]Member, len(group.Members))
	copy(ranked, group.Members)

	sort.SliceStable(ranked, func(i, j int) bool {
		ui, uj := usage[ranked[i].Name], usage[ranked[j].Name]
		if ui != uj {
			return ui > uj
		}
		return ranked[i].Name < ranked[j].Name
	})

	return ranked[0], ranked[1:]
}
