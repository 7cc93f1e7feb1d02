package sheet

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	mockUsers   = []string{"Diana Ross", "Evan Wright", "Fiona May", "George Costanza", "Homer Simpson"}
	mockSources = []string{"Instagram Ads", "Email Campaign", "API Connection", "Slack Hook"}
)

const TimestampLayout = "2006-01-02 15:04:05"

// Generator produces synthetic test rows in place of a real spreadsheet feed.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
	id  func() string
}

func NewGenerator() *Generator {
	return NewGeneratorWith(rand.New(rand.NewSource(time.Now().UnixNano())), time.Now)
}

func NewGeneratorWith(rnd *rand.Rand, now func() time.Time) *Generator {
	return &Generator{
		rnd: rnd,
		now: now,
		id:  func() string { return uuid.NewString() },
	}
}

func (g *Generator) Next() Record {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Record{
		ID:        g.id(),
		Timestamp: g.now().UTC().Format(TimestampLayout),
		User:      mockUsers[g.rnd.Intn(len(mockUsers))],
		Source:    mockSources[g.rnd.Intn(len(mockSources))],
		Status:    Statuses[g.rnd.Intn(len(Statuses))],
		Value:     float64(g.rnd.Intn(5000) + 100),
	}
}
