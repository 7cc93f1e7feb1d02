package analytics

import (
	"encoding/json"
	"strings"
	"testing"

	"sheettrack/internal/sheet"
)

func TestCompute(t *testing.T) {
	log := append(sheet.Seed(),
		sheet.Record{ID: "4", Status: sheet.StatusPending, Value: 400},
		sheet.Record{ID: "5", Status: sheet.StatusPending, Value: 50.5},
	)

	stats := Compute(log, 3)

	if stats.TotalRecords != 5 {
		t.Errorf("Expected 5 total records, got %d", stats.TotalRecords)
	}
	if stats.NewRecords != 2 {
		t.Errorf("Expected 2 new records, got %d", stats.NewRecords)
	}
	if stats.Watermark != 3 {
		t.Errorf("Expected watermark 3, got %d", stats.Watermark)
	}
	if stats.ValueSum != 4600.5 {
		t.Errorf("Expected value sum 4600.5, got %v", stats.ValueSum)
	}

	expected := map[sheet.Status]int{
		sheet.StatusActive:    1,
		sheet.StatusCompleted: 1,
		sheet.StatusPending:   3,
	}
	for status, n := range expected {
		if stats.ByStatus[status] != n {
			t.Errorf("Expected %d %s, got %d", n, status, stats.ByStatus[status])
		}
	}

	if len(stats.Chart) != 3 {
		t.Fatalf("Expected 3 chart bars, got %d", len(stats.Chart))
	}
	if stats.Chart[0].Status != sheet.StatusActive || stats.Chart[2].Status != sheet.StatusPending {
		t.Errorf("Chart not sorted by status: %+v", stats.Chart)
	}
	if stats.Chart[2].Percent != 100 || stats.Chart[0].Percent != 33 {
		t.Errorf("Unexpected bar heights: %+v", stats.Chart)
	}
	if stats.Chart[1].Color != "#10b981" {
		t.Errorf("Unexpected completed color %s", stats.Chart[1].Color)
	}
}

func TestComputeEmpty(t *testing.T) {
	stats := Compute(nil, 0)
	if stats.TotalRecords != 0 || stats.NewRecords != 0 || len(stats.Chart) != 0 {
		t.Errorf("Unexpected stats for empty log: %+v", stats)
	}
	if strings.Contains(stats.Summary(), "Status breakdown") {
		t.Errorf("Empty log should not render a breakdown")
	}
}

func TestFormatMoney(t *testing.T) {
	cases := map[float64]string{
		0:       "$0",
		850:     "$850",
		4150:    "$4,150",
		1234567: "$1,234,567",
		-2500:   "-$2,500",
		999.6:   "$1,000",
		-0.4:    "$0",
	}
	for in, want := range cases {
		if got := FormatMoney(in); got != want {
			t.Errorf("FormatMoney(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSummaryAndJSON(t *testing.T) {
	stats := Compute(sheet.Seed(), 3)
	summary := stats.Summary()
	for _, want := range []string{"Total entries: 3", "New entries detected: 0", "Gross volume: $4,150", "- pending: 1"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}

	js, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(js), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["total_records"].(float64) != 3 {
		t.Errorf("Unexpected total_records: %v", decoded["total_records"])
	}
}
