package tracker

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"sheettrack/internal/llm"
	"sheettrack/internal/sheet"
	"sheettrack/internal/storage"
)

type fakeSummarizer struct {
	mu    sync.Mutex
	calls [][]sheet.Record
	text  string
	err   error
	// when set, Summarize blocks until release is closed
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSummarizer) Summarize(ctx context.Context, rows []sheet.Record) (llm.Summary, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rows)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return llm.Summary{}, ctx.Err()
		}
	}
	return llm.Summary{Text: f.text, Model: "fake"}, f.err
}

func (f *fakeSummarizer) Calls() [][]sheet.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]sheet.Record(nil), f.calls...)
}

type memPersister struct {
	mu     sync.Mutex
	states []sheet.State
	err    error
}

func (m *memPersister) Save(st sheet.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, st.Clone())
	return m.err
}

func (m *memPersister) Last() sheet.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[len(m.states)-1]
}

type memJournal struct {
	mu   sync.Mutex
	runs []storage.Run
}

func (j *memJournal) AppendRun(r storage.Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, r)
	return nil
}

func (j *memJournal) LoadRuns() ([]storage.Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]storage.Run(nil), j.runs...), nil
}

func row(id string) sheet.Record {
	return sheet.Record{ID: id, Timestamp: "2024-05-21 10:00:00", User: "Fiona May", Source: "Slack Hook", Status: sheet.StatusPending, Value: 300}
}

func TestRefreshScenario(t *testing.T) {
	sum := &fakeSummarizer{text: "- two pending rows"}
	per := &memPersister{}
	tr := New(sheet.NewState(), Options{Summarizer: sum, Persister: per})

	if _, err := tr.AddRecord(row("a")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := tr.AddRecord(row("b")); err != nil {
		t.Fatalf("add: %v", err)
	}
	v := tr.Snapshot()
	if len(v.New) != 2 || v.New[0].ID != "a" || v.New[1].ID != "b" {
		t.Fatalf("unexpected new rows: %+v", v.New)
	}
	if v.Watermark != 3 {
		t.Fatalf("adding rows moved the watermark to %d", v.Watermark)
	}

	run, err := tr.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if run.WatermarkBefore != 3 || run.WatermarkAfter != 5 || run.NewRecords != 2 {
		t.Fatalf("unexpected run: %+v", run)
	}
	calls := sum.Calls()
	if len(calls) != 1 || !reflect.DeepEqual(calls[0], []sheet.Record{row("a"), row("b")}) {
		t.Fatalf("summarizer got %+v", calls)
	}

	v = tr.Snapshot()
	if v.Watermark != 5 || len(v.New) != 0 || v.Insight != "- two pending rows" || v.Refreshing {
		t.Fatalf("unexpected view after refresh: %+v", v)
	}
	if got := per.Last(); got.Watermark != 5 || len(got.Log) != 5 {
		t.Fatalf("persisted state %+v", got)
	}
}

func TestRefreshWithNothingNewSkipsSummarizer(t *testing.T) {
	sum := &fakeSummarizer{text: "unused"}
	tr := New(sheet.NewState(), Options{Summarizer: sum})

	run, err := tr.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if run.Insight != NoNewDataMessage || tr.Snapshot().Insight != NoNewDataMessage {
		t.Fatalf("want no-new-data insight, got %q", run.Insight)
	}
	if len(sum.Calls()) != 0 {
		t.Fatalf("summarizer should not be called")
	}
}

func TestSecondRefreshHasEmptySet(t *testing.T) {
	sum := &fakeSummarizer{text: "ok"}
	tr := New(sheet.NewState(), Options{Summarizer: sum})
	_, _ = tr.AddRecord(row("a"))

	if _, err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("first: %v", err)
	}
	run, err := tr.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if run.NewRecords != 0 || run.Insight != NoNewDataMessage {
		t.Fatalf("second run should be empty: %+v", run)
	}
	if len(sum.Calls()) != 1 {
		t.Fatalf("want 1 summarizer call, got %d", len(sum.Calls()))
	}
}

func TestSummarizerFailureKeepsWatermark(t *testing.T) {
	sum := &fakeSummarizer{err: errors.New("connection reset")}
	j := &memJournal{}
	tr := New(sheet.NewState(), Options{Summarizer: sum, Journal: j})
	_, _ = tr.AddRecord(row("a"))

	run, err := tr.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh should absorb summarizer errors: %v", err)
	}
	if run.Insight != SummaryErrorMessage || !run.Failed {
		t.Fatalf("unexpected run: %+v", run)
	}
	if v := tr.Snapshot(); v.Watermark != 4 || v.Refreshing {
		t.Fatalf("watermark rolled back or still refreshing: %+v", v)
	}
	runs, _ := j.LoadRuns()
	if len(runs) != 1 || !runs[0].Failed {
		t.Fatalf("journal: %+v", runs)
	}
}

func TestSummarizerTimeout(t *testing.T) {
	sum := &fakeSummarizer{release: make(chan struct{})}
	tr := New(sheet.NewState(), Options{Summarizer: sum, SummaryTimeout: 20 * time.Millisecond})
	_, _ = tr.AddRecord(row("a"))

	run, err := tr.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if run.Insight != SummaryErrorMessage {
		t.Fatalf("want error insight on timeout, got %q", run.Insight)
	}
	if tr.Snapshot().Refreshing {
		t.Fatalf("tracker stuck in refreshing")
	}
}

type panicSummarizer struct{}

func (panicSummarizer) Summarize(context.Context, []sheet.Record) (llm.Summary, error) {
	panic("bad response")
}

func TestSummarizerPanicIsAbsorbed(t *testing.T) {
	tr := New(sheet.NewState(), Options{Summarizer: panicSummarizer{}})
	_, _ = tr.AddRecord(row("a"))
	run, err := tr.Refresh(context.Background())
	if err != nil || run.Insight != SummaryErrorMessage {
		t.Fatalf("unexpected: %+v %v", run, err)
	}
}

func TestOverlappingRefreshAndMidRunInjection(t *testing.T) {
	sum := &fakeSummarizer{text: "done", entered: make(chan struct{}, 1), release: make(chan struct{})}
	tr := New(sheet.NewState(), Options{Summarizer: sum})
	_, _ = tr.AddRecord(row("a"))

	p, err := tr.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-sum.entered

	if !tr.Snapshot().Refreshing {
		t.Fatalf("tracker should report refreshing")
	}
	if _, err := tr.Start(context.Background()); !errors.Is(err, ErrRefreshInProgress) {
		t.Fatalf("want ErrRefreshInProgress, got %v", err)
	}

	// injected while the summary is in flight
	if _, err := tr.AddRecord(row("late")); err != nil {
		t.Fatalf("add during refresh: %v", err)
	}
	close(sum.release)

	run, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if run.NewRecords != 1 || run.WatermarkAfter != 4 {
		t.Fatalf("unexpected run: %+v", run)
	}
	calls := sum.Calls()
	if len(calls) != 1 || len(calls[0]) != 1 || calls[0][0].ID != "a" {
		t.Fatalf("late row leaked into the in-flight summary: %+v", calls)
	}

	v := tr.Snapshot()
	if len(v.New) != 1 || v.New[0].ID != "late" {
		t.Fatalf("late row should be new after the run: %+v", v.New)
	}
	if _, err := tr.Start(context.Background()); err != nil {
		t.Fatalf("guard not released: %v", err)
	}
}

func TestWatermarkNeverDecreases(t *testing.T) {
	tr := New(sheet.NewState(), Options{Summarizer: &fakeSummarizer{text: "x"}})
	last := tr.State().Watermark
	for i := 0; i < 20; i++ {
		if i%3 == 0 {
			if _, err := tr.Refresh(context.Background()); err != nil {
				t.Fatalf("refresh: %v", err)
			}
		} else {
			_, _ = tr.AddRecord(row(string(rune('a' + i))))
		}
		wm := tr.State().Watermark
		if wm < last {
			t.Fatalf("watermark decreased from %d to %d", last, wm)
		}
		last = wm
	}
}

// gatedPersister holds the first save that matches block until release is
// closed.
type gatedPersister struct {
	memPersister
	block   func(sheet.State) bool
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedPersister) Save(st sheet.State) error {
	gated := false
	if g.block(st) {
		g.once.Do(func() { gated = true })
	}
	if gated {
		close(g.entered)
		<-g.release
	}
	return g.memPersister.Save(st)
}

func TestSlowAddSaveDoesNotRollBackWatermark(t *testing.T) {
	per := &gatedPersister{
		block:   func(st sheet.State) bool { return len(st.Log) == 5 && st.Watermark == 3 },
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	tr := New(sheet.NewState(), Options{Summarizer: &fakeSummarizer{text: "ok"}, Persister: per})

	if _, err := tr.AddRecord(row("a")); err != nil {
		t.Fatalf("add: %v", err)
	}
	added := make(chan error, 1)
	go func() {
		_, err := tr.AddRecord(row("b"))
		added <- err
	}()
	<-per.entered

	refreshed := make(chan storage.Run, 1)
	go func() {
		run, err := tr.Refresh(context.Background())
		if err != nil {
			t.Errorf("refresh: %v", err)
		}
		refreshed <- run
	}()

	deadline := time.Now().Add(2 * time.Second)
	for tr.State().Watermark != 5 {
		if time.Now().After(deadline) {
			t.Fatalf("refresh never advanced the watermark")
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(per.release)

	if err := <-added; err != nil {
		t.Fatalf("add: %v", err)
	}
	run := <-refreshed
	if run.NewRecords != 2 {
		t.Fatalf("refresh saw %d new rows, want 2", run.NewRecords)
	}
	if got := per.Last(); got.Watermark != 5 || len(got.Log) != 5 {
		t.Fatalf("persisted watermark %d with %d rows, want 5 and 5", got.Watermark, len(got.Log))
	}
}

func TestSaveDropsOlderVersions(t *testing.T) {
	per := &memPersister{}
	tr := New(sheet.NewState(), Options{Persister: per})

	newer := sheet.State{Log: append(sheet.Seed(), row("a")), Watermark: 4}
	older := sheet.State{Log: append(sheet.Seed(), row("a")), Watermark: 3}
	if err := tr.save(newer, 2); err != nil {
		t.Fatalf("save newer: %v", err)
	}
	if err := tr.save(older, 1); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if len(per.states) != 1 || per.Last().Watermark != 4 {
		t.Fatalf("older state reached the persister: %+v", per.states)
	}
}

func TestPersistFailureDoesNotAbortRefresh(t *testing.T) {
	per := &memPersister{err: errors.New("read-only fs")}
	tr := New(sheet.NewState(), Options{Summarizer: &fakeSummarizer{text: "ok"}, Persister: per})
	if _, err := tr.AddRecord(row("a")); err == nil {
		t.Fatalf("expected persist error from AddRecord")
	}
	if len(tr.Snapshot().New) != 1 {
		t.Fatalf("row should still be in memory")
	}
	run, err := tr.Refresh(context.Background())
	if err != nil || run.Insight != "ok" {
		t.Fatalf("unexpected: %+v %v", run, err)
	}
}

type recordingObserver struct {
	mu   sync.Mutex
	runs []storage.Run
}

func (o *recordingObserver) RunFinished(_ context.Context, run storage.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs = append(o.runs, run)
}

func TestObserversAndClock(t *testing.T) {
	clock := time.Date(2024, 5, 21, 12, 0, 0, 0, time.UTC)
	obs := &recordingObserver{}
	tr := New(sheet.NewState(), Options{
		Summarizer: &fakeSummarizer{text: "ok"},
		Observers:  []Observer{obs},
		Now:        func() time.Time { return clock },
	})
	_, _ = tr.AddRecord(row("a"))
	if _, err := tr.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.runs) != 1 || !obs.runs[0].StartedAt.Equal(clock) || obs.runs[0].Model != "fake" {
		t.Fatalf("observer runs: %+v", obs.runs)
	}
	if v := tr.Snapshot(); v.LastRun == nil || v.LastRun.NewRecords != 1 {
		t.Fatalf("last run not exposed: %+v", v.LastRun)
	}
}
