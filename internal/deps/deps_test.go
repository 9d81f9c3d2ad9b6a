package deps

import "testing"

func TestCheckBinaries(t *testing.T) {
	statuses := CheckBinaries([]Requirement{
		{Name: "Shell", Command: "sh", Description: "always present on unix"},
		{Name: "Missing", Command: "definitely-not-a-real-binary-2931"},
		{Name: "Unset", Command: ""},
	})
	if len(statuses) != 3 {
		t.Fatalf("got %d statuses, want 3", len(statuses))
	}
	if !statuses[0].Available {
		t.Errorf("sh should be available: %+v", statuses[0])
	}
	if statuses[1].Available || statuses[1].Detail == "" {
		t.Errorf("missing binary should be unavailable with detail: %+v", statuses[1])
	}
	if statuses[2].Available || statuses[2].Detail != "command not configured" {
		t.Errorf("unset command: %+v", statuses[2])
	}
}
