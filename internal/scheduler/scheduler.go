package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the tracker on a cron schedule
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	cancel  context.CancelFunc
	spec    string
	runFunc func(ctx context.Context) error
}

// New creates a scheduler for a standard 5-field cron spec or descriptor
// such as "@every 15m". An empty spec disables scheduling.
func New(spec string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		ctx:    ctx,
		cancel: cancel,
		spec:   spec,
	}
}

// SetRunFunction sets the function invoked on every tick
func (s *Scheduler) SetRunFunction(f func(ctx context.Context) error) {
	s.runFunc = f
}

// Start registers the job and starts the cron loop
func (s *Scheduler) Start() error {
	if s.spec == "" {
		log.Println("📅 No schedule configured, tracker runs only on demand")
		return nil
	}
	if s.runFunc == nil {
		return errors.New("run function not set")
	}

	if _, err := s.cron.AddFunc(s.spec, s.tick); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	log.Printf("📅 Scheduler started - tracker runs on %q (UTC)", s.spec)
	return nil
}

func (s *Scheduler) tick() {
	log.Printf("🕘 Scheduled tracker run triggered")
	if err := s.runFunc(s.ctx); err != nil {
		log.Printf("❌ Scheduled tracker run failed: %v", err)
	}
}

// Stop stops the scheduler and waits for a running job
func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Println("📅 Scheduler stopped")
}

// IsRunning reports whether a job is registered
func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
