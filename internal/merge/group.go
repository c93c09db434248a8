package merge

import (
	"sort"

	"github.com/kittipats/sheetsync/internal/domain"
	"github.com/kittipats/sheetsync/internal/normalize"
	"github.com/kittipats/sheetsync/internal/rowstore"
)

// Member is one department inside a duplicate group, with its live row
// handle.
type Member struct {
	ID   string
	Name string
	Row  rowstore.Row
}

// Group holds the departments sharing one normalized key.
type Group struct {
	Key     string
	Members []Member
}

// GroupDuplicates partitions departments by normalized name key and
// returns only the groups that are real merge candidates: at least two
// members with *distinct* display names. A key shared by byte-identical
// names is a collision, not a duplicate; acting on it would run a
// pointless self-referential rewrite. Rows without a name are skipped.
// Groups come back sorted by key so runs are deterministic.
func GroupDuplicates(departments []rowstore.Row) []Group {
	byKey := make(map[string][]Member)
	for _, dept := range departments {
		name := dept.Get(domain.FieldName)
		if name == "" {
			continue
		}
		key := normalize.Key(name)
		byKey[key] = append(byKey[key], Member{
			ID:   dept.Get(domain.FieldID),
			Name: name,
			Row:  dept,
		})
	}

	var groups []Group
	for key, members := range byKey {
		if len(members) < 2 {
			continue
		}
		distinct := make(map[string]bool, len(members))
		for _, m := range members {
			distinct[m.Name] = true
		}
		if len(distinct) < 2 {
			continue
		}
		groups = append(groups, Group{Key: key, Members: members})
	}

	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Key < groups[j].Key
	})
	return groups
}
