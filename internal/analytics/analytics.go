package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"sheettrack/internal/sheet"
)

// StatusCount is one bar of the status chart.
type StatusCount struct {
	Status sheet.Status `json:"status"`
	Count  int          `json:"count"`
	Color  string       `json:"color"`
	// Percent of the tallest bar, for rendering.
	Percent int `json:"percent"`
}

// Stats is everything the dashboard shows above the tables.
type Stats struct {
	TotalRecords int                  `json:"total_records"`
	NewRecords   int                  `json:"new_records"`
	Watermark    int                  `json:"watermark"`
	ValueSum     float64              `json:"value_sum"`
	ByStatus     map[sheet.Status]int `json:"by_status"`
	Chart        []StatusCount        `json:"chart"`
}

// Compute derives the stats for a log and its watermark. Statuses only
// appear in the chart when at least one row carries them.
func Compute(log []sheet.Record, watermark int) Stats {
	stats := Stats{
		TotalRecords: len(log),
		NewRecords:   len(sheet.NewRecords(log, watermark)),
		Watermark:    watermark,
		ByStatus:     make(map[sheet.Status]int),
	}
	for _, r := range log {
		stats.ValueSum += r.Value
		stats.ByStatus[r.Status]++
	}

	tallest := 0
	for status, n := range stats.ByStatus {
		stats.Chart = append(stats.Chart, StatusCount{Status: status, Count: n, Color: StatusColor(status)})
		if n > tallest {
			tallest = n
		}
	}
	sort.Slice(stats.Chart, func(i, j int) bool { return stats.Chart[i].Status < stats.Chart[j].Status })
	for i := range stats.Chart {
		stats.Chart[i].Percent = stats.Chart[i].Count * 100 / tallest
	}
	return stats
}

// StatusColor is the bar color for a status.
func StatusColor(s sheet.Status) string {
	switch s {
	case sheet.StatusCompleted:
		return "#10b981"
	case sheet.StatusPending:
		return "#f59e0b"
	default:
		return "#3b82f6"
	}
}

// FormatMoney renders a value sum as whole dollars with thousands separators.
func FormatMoney(v float64) string {
	n := int64(math.Round(v))
	if n < 0 {
		return "-$" + humanize.Comma(-n)
	}
	return "$" + humanize.Comma(n)
}

// Summary renders the stats as plain text for chat and tool replies.
func (s Stats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total entries: %d\n", s.TotalRecords)
	fmt.Fprintf(&b, "New entries detected: %d\n", s.NewRecords)
	fmt.Fprintf(&b, "Processed index: %d\n", s.Watermark)
	fmt.Fprintf(&b, "Gross volume: %s\n", FormatMoney(s.ValueSum))
	if len(s.Chart) > 0 {
		b.WriteString("Status breakdown:\n")
		for _, c := range s.Chart {
			fmt.Fprintf(&b, "- %s: %d\n", c.Status, c.Count)
		}
	}
	return b.String()
}

// ToJSON renders the stats as indented JSON.
func (s Stats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
