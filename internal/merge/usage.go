package merge

import (
	"github.com/kittipats/sheetsync/internal/domain"
	"github.com/kittipats/sheetsync/internal/rowstore"
)

// CountUsage computes, per department name, how many rows reference the
// department: projects by agency name, users by department id resolved
// through the departments' id-to-name map. Counts must come from a fresh
// snapshot taken in the same run; stale counts bias survivor selection.
// Empty or unresolvable references are ignored, not errors.
func CountUsage(departments, projects, users []rowstore.Row) map[string]int {
	idToName := make(map[string]string, len(departments))
	usage := make(map[string]int, len(departments))

	for _, dept := range departments {
		name := dept.Get(domain.FieldName)
		if name == "" {
			continue
		}
		usage[name] = 0
		if id := dept.Get(domain.FieldID); id != "" {
			idToName[id] = name
		}
	}

	for _, project := range projects {
		if agency := project.Get(domain.FieldAgency); agency != "" {
			usage[agency]++
		}
	}

	for _, user := range users {
		deptID := user.Get(domain.FieldDepartmentID)
		if deptID == "" {
			continue
		}
		if name, ok := idToName[deptID]; ok {
			usage[name]++
		}
	}

	return usage
}
