// Package schedule starts a trading session on a cron spec and tears it down
// at the end of the trading day.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Specs carry a leading seconds field: "0 0 9 * * 1-5" is 09:00 on weekdays.
var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Parse validates a spec with a seconds field.
func Parse(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// RunFunc runs one session and returns when ctx is cancelled or the session
// ends on its own.
type RunFunc func(ctx context.Context)

// Scheduler keeps at most one session running.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	run  RunFunc
	log  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	runs   int
}

type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option { return func(s *Scheduler) { s.log = l } }

func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		s.cron = cron.New(cron.WithParser(parser), cron.WithLocation(loc))
	}
}

// New returns a scheduler whose sessions derive from ctx.
func New(ctx context.Context, run RunFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron: cron.New(cron.WithParser(parser)),
		ctx:  ctx,
		run:  run,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds the daily start and stop triggers.
func (s *Scheduler) Register(start, stop string) error {
	if _, err := s.cron.AddFunc(start, s.StartSession); err != nil {
		return fmt.Errorf("register start %q: %w", start, err)
	}
	if _, err := s.cron.AddFunc(stop, s.StopSession); err != nil {
		return fmt.Errorf("register stop %q: %w", stop, err)
	}
	return nil
}

// Next reports when the next trigger fires. It is zero until Start.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next.IsZero() || e.Next.Before(next) {
			next = e.Next
		}
	}
	return next
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", slog.Int("triggers", len(s.cron.Entries())))
}

// Stop halts the triggers and ends a running session.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.StopSession()
	s.log.Info("scheduler stopped")
}

// StartSession launches a session unless one is already running.
func (s *Scheduler) StartSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		s.log.Info("session already running, start trigger ignored")
		return
	}
	if s.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	s.runs++
	s.log.Info("session starting", slog.Int("run", s.runs))

	go func() {
		defer close(done)
		defer cancel()
		s.run(ctx)

		s.mu.Lock()
		if s.done == done {
			s.cancel, s.done = nil, nil
		}
		s.mu.Unlock()
	}()
}

// StopSession cancels the running session and waits for it to return.
func (s *Scheduler) StopSession() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if done == nil {
		return
	}
	s.log.Info("end of trading day, stopping session")
	cancel()
	<-done
}

// Running reports whether a session is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done != nil
}

// Runs is the number of sessions started so far.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}
