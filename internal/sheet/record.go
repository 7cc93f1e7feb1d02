package sheet

type Status string

const (
	StatusActive    Status = "active"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Statuses lists the known statuses in display order.
var Statuses = []Status{StatusActive, StatusPending, StatusCompleted}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusCompleted:
		return true
	}
	return false
}

// Record is a single sheet row. Records are never modified after they are
// appended to a log.
type Record struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	User      string  `json:"user"`
	Source    string  `json:"source"`
	Status    Status  `json:"status"`
	Value     float64 `json:"value"`
}

// Seed returns the rows a fresh tracker starts with.
func Seed() []Record {
	return []Record{
		{ID: "1", Timestamp: "2024-05-20 09:00:01", User: "Alice Chen", Source: "Web Form", Status: StatusCompleted, Value: 1200},
		{ID: "2", Timestamp: "2024-05-20 10:15:42", User: "Bob Smith", Source: "Referral", Status: StatusPending, Value: 850},
		{ID: "3", Timestamp: "2024-05-20 11:30:15", User: "Charlie Day", Source: "Direct", Status: StatusActive, Value: 2100},
	}
}

// DuplicateIDs returns ids that occur more than once, in order of their
// second occurrence.
func DuplicateIDs(log []Record) []string {
	seen := make(map[string]int, len(log))
	var dups []string
	for _, r := range log {
		seen[r.ID]++
		if seen[r.ID] == 2 {
			dups = append(dups, r.ID)
		}
	}
	return dups
}
