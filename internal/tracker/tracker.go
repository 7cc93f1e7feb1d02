// Package tracker owns the record log and its watermark, and runs the
// refresh state machine that hands newly seen rows to a summarizer.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"sheettrack/internal/llm"
	"sheettrack/internal/sheet"
	"sheettrack/internal/storage"
)

const (
	NoNewDataMessage    = "No new data was detected during this run."
	SummaryErrorMessage = "Error connecting to AI service."

	DefaultSummaryTimeout = 30 * time.Second
)

// ErrRefreshInProgress is returned when a refresh is requested while another
// one has not finished yet.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Summarizer turns a batch of new rows into a short text.
type Summarizer interface {
	Summarize(ctx context.Context, rows []sheet.Record) (llm.Summary, error)
}

// Persister stores the log and watermark after every mutation.
type Persister interface {
	Save(st sheet.State) error
}

// Observer is told about every finished run.
type Observer interface {
	RunFinished(ctx context.Context, run storage.Run)
}

type Options struct {
	Summarizer     Summarizer
	Persister      Persister
	Journal        storage.Journal
	Observers      []Observer
	SummaryTimeout time.Duration
	Now            func() time.Time
}

// Tracker is safe for concurrent use. At most one refresh runs at a time.
type Tracker struct {
	summarizer Summarizer
	persister  Persister
	journal    storage.Journal
	observers  []Observer
	timeout    time.Duration
	now        func() time.Time

	refresh *semaphore.Weighted

	mu         sync.RWMutex
	state      sheet.State
	version    uint64
	insight    string
	lastRun    *storage.Run
	refreshing bool

	// saveMu orders writes to the persister; saved is the newest state
	// version written, and older versions are dropped.
	saveMu sync.Mutex
	saved  uint64
}

// New starts a tracker from a restored state.
func New(initial sheet.State, opts Options) *Tracker {
	t := &Tracker{
		summarizer: opts.Summarizer,
		persister:  opts.Persister,
		journal:    opts.Journal,
		observers:  opts.Observers,
		timeout:    opts.SummaryTimeout,
		now:        opts.Now,
		refresh:    semaphore.NewWeighted(1),
		state:      initial.Clone().Normalize(),
	}
	if t.timeout <= 0 {
		t.timeout = DefaultSummaryTimeout
	}
	if t.now == nil {
		t.now = time.Now
	}
	if dups := sheet.DuplicateIDs(t.state.Log); len(dups) > 0 {
		log.Printf("⚠️ record log contains duplicate ids: %v", dups)
	}
	recordGauges(t.state)
	return t
}

// AddRecord appends r to the log and persists it. It never touches the
// watermark and is allowed while a refresh is running.
func (t *Tracker) AddRecord(r sheet.Record) (sheet.State, error) {
	t.mu.Lock()
	t.state = t.state.Append(r)
	t.version++
	st, version := t.state.Clone(), t.version
	t.mu.Unlock()

	recordsAdded.Inc()
	recordGauges(st)
	if err := t.save(st, version); err != nil {
		return st, err
	}
	return st, nil
}

// Pending is a refresh whose summary may still be in flight.
type Pending struct {
	// Rows is the new set fixed for this run.
	Rows []sheet.Record
	done chan struct{}
	run  storage.Run
}

// Done is closed once the run has finished.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the run finishes or ctx is done.
func (p *Pending) Wait(ctx context.Context) (storage.Run, error) {
	select {
	case <-p.done:
		return p.run, nil
	case <-ctx.Done():
		return storage.Run{}, ctx.Err()
	}
}

// Start begins a refresh. The new set is captured and the watermark advanced
// and persisted before Start returns; only the summary runs in the
// background. ctx must outlive the request that triggered the refresh; it
// bounds the summary call together with the tracker's own timeout.
func (t *Tracker) Start(ctx context.Context) (*Pending, error) {
	if !t.refresh.TryAcquire(1) {
		return nil, ErrRefreshInProgress
	}

	started := t.now()
	t.mu.Lock()
	rows := t.state.New()
	before := t.state.Watermark
	t.state = t.state.Advance()
	t.version++
	st, version := t.state.Clone(), t.version
	t.refreshing = true
	t.mu.Unlock()

	log.Printf("🔄 Refresh started: %d new rows, watermark %d -> %d", len(rows), before, st.Watermark)
	recordGauges(st)
	if err := t.save(st, version); err != nil {
		log.Printf("❌ failed to persist watermark: %v", err)
	}

	p := &Pending{Rows: rows, done: make(chan struct{})}
	run := storage.Run{
		StartedAt:       started,
		NewRecords:      len(rows),
		WatermarkBefore: before,
		WatermarkAfter:  st.Watermark,
	}
	go t.finish(ctx, p, run)
	return p, nil
}

// Refresh runs a full refresh and waits for its summary.
func (t *Tracker) Refresh(ctx context.Context) (storage.Run, error) {
	p, err := t.Start(ctx)
	if err != nil {
		return storage.Run{}, err
	}
	return p.Wait(ctx)
}

func (t *Tracker) finish(ctx context.Context, p *Pending, run storage.Run) {
	run.Insight, run.Model, run.Failed = t.summarize(ctx, p.Rows)
	run.FinishedAt = t.now()

	t.mu.Lock()
	t.insight = run.Insight
	t.lastRun = &run
	t.refreshing = false
	t.mu.Unlock()
	t.refresh.Release(1)

	observeRun(run)
	if t.journal != nil {
		if err := t.journal.AppendRun(run); err != nil {
			log.Printf("❌ failed to record run: %v", err)
		}
	}
	for _, o := range t.observers {
		o.RunFinished(ctx, run)
	}
	log.Printf("✅ Refresh finished: %d rows summarized (failed=%v)", run.NewRecords, run.Failed)

	p.run = run
	close(p.done)
}

func (t *Tracker) summarize(ctx context.Context, rows []sheet.Record) (text, model string, failed bool) {
	if len(rows) == 0 {
		return NoNewDataMessage, "", false
	}
	if t.summarizer == nil {
		log.Printf("❌ no summarizer configured")
		return SummaryErrorMessage, "", true
	}

	sctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	summary, err := t.callSummarizer(sctx, rows)
	if err != nil {
		log.Printf("❌ summarizer failed: %v", err)
		return SummaryErrorMessage, "", true
	}
	return summary.Text, summary.Model, false
}

func (t *Tracker) callSummarizer(ctx context.Context, rows []sheet.Record) (summary llm.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("summarizer panic: %v", r)
		}
	}()
	return t.summarizer.Summarize(ctx, rows)
}

// save writes st unless a newer version already reached the persister, so
// a slow write of an earlier state cannot roll back the stored watermark.
func (t *Tracker) save(st sheet.State, version uint64) error {
	if t.persister == nil {
		return nil
	}
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	if version <= t.saved {
		return nil
	}
	if err := t.persister.Save(st); err != nil {
		persistErrors.Inc()
		return fmt.Errorf("persist state: %w", err)
	}
	t.saved = version
	return nil
}

// View is a consistent read of the tracker.
type View struct {
	Log        []sheet.Record
	New        []sheet.Record
	Watermark  int
	Insight    string
	Refreshing bool
	LastRun    *storage.Run
}

func (t *Tracker) Snapshot() View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v := View{
		Log:        t.state.Clone().Log,
		New:        t.state.New(),
		Watermark:  t.state.Watermark,
		Insight:    t.insight,
		Refreshing: t.refreshing,
	}
	if t.lastRun != nil {
		r := *t.lastRun
		v.LastRun = &r
	}
	return v
}

// State returns a copy of the log and watermark.
func (t *Tracker) State() sheet.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state.Clone()
}
