package merge

import "testing"

func TestSelectSurvivorByUsage(t *testing.T) {
	group := Group{
		Key: "ก",
		Members: []Member{
			{ID: "d1", Name: "กอง"},
			{ID: "d2", Name: "ก."},
		},
	}
	usage := map[string]int{"ก.": 5, "กอง": 2}

	survivor, victims := SelectSurvivor(group, usage)
	if survivor.Name != "ก." {
		t.Errorf("expected highest-usage name to survive, got %q", survivor.Name)
	}
	if len(victims) != 1 || victims[0].Name != "กอง" {
		t.Errorf("unexpected victims: %v", victims)
	}
}

func TestSelectSurvivorTieBreaksLexicographically(t *testing.T) {
	group := Group{
		Key: "dept",
		Members: []Member{
			{ID: "d1", Name: "B Dept"},
			{ID: "d2", Name: "A Dept"},
		},
	}
	usage := map[string]int{"B Dept": 3, "A Dept": 3}

	for i := 0; i < 10; i++ {
		survivor, _ := SelectSurvivor(group, usage)
		if survivor.Name != "A Dept" {
			t.Fatalf("run %d: expected deterministic tie-break to A Dept, got %q", i, survivor.Name)
		}
	}
}

func TestSelectSurvivorDoesNotMutateGroup(t *testing.T) {
	group := Group{
		Key: "x",
		Members: []Member{
			{ID: "d1", Name: "zz"},
			{ID: "d2", Name: "aa"},
		},
	}
	SelectSurvivor(group, map[string]int{})
	if group.Members[0].Name != "zz" {
		t.Error("expected the group's member order to be untouched")
	}
}
