package sheet

import (
	"math/rand"
	"testing"
	"time"
)

func TestGeneratorProducesWellFormedRows(t *testing.T) {
	fixed := time.Date(2024, 5, 21, 8, 30, 0, 0, time.UTC)
	g := NewGeneratorWith(rand.New(rand.NewSource(42)), func() time.Time { return fixed })

	ids := make(map[string]bool)
	for i := 0; i < 200; i++ {
		r := g.Next()
		if r.ID == "" || ids[r.ID] {
			t.Fatalf("bad or repeated id %q", r.ID)
		}
		ids[r.ID] = true
		if r.Timestamp != "2024-05-21 08:30:00" {
			t.Fatalf("unexpected timestamp %q", r.Timestamp)
		}
		if !r.Status.Valid() {
			t.Fatalf("invalid status %q", r.Status)
		}
		if r.Value < 100 || r.Value > 5099 {
			t.Fatalf("value out of range: %v", r.Value)
		}
		if r.User == "" || r.Source == "" {
			t.Fatalf("missing user or source: %+v", r)
		}
	}
}

func TestStatusValid(t *testing.T) {
	if Status("archived").Valid() {
		t.Fatalf("unknown status reported valid")
	}
	for _, s := range Statuses {
		if !s.Valid() {
			t.Fatalf("%q should be valid", s)
		}
	}
}
