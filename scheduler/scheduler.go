// Package scheduler triggers reconciliation cycles on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/equitytrack/reconcile"
)

// DefaultInterval is the tick period used when none is given.
const DefaultInterval = time.Second

// ErrInvalidPath is returned for an empty destination.
var ErrInvalidPath = errors.New("invalid destination path")

// Cycler runs one reconciliation cycle.
type Cycler interface {
	RunCycle(ctx context.Context, dest string) (reconcile.Report, error)
}

// Scheduler runs a Cycler once per interval against the configured
// destination. It stays idle until a destination is set.
type Scheduler struct {
	cycler   Cycler
	interval time.Duration
	log      logrus.FieldLogger

	mu      sync.Mutex
	dest    string
	started bool
	stopped bool

	// ctx lives until Stop; the ticker and its cycles run under it.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func New(c Cycler, interval time.Duration, log logrus.FieldLogger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cycler:   c,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Destination returns the configured destination, empty if none.
func (s *Scheduler) Destination() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dest
}

// SetDestination points the scheduler at path, starts the ticker on first
// use, and runs one cycle right away so the ledger does not wait a full
// interval for its first write. ctx bounds only that immediate cycle; the
// ticker keeps running, failed cycles included, until Stop.
func (s *Scheduler) SetDestination(ctx context.Context, path string) (reconcile.Report, error) {
	if path == "" {
		s.log.Warn("invalid destination path provided")
		return reconcile.Report{}, ErrInvalidPath
	}

	s.mu.Lock()
	s.dest = path
	if !s.started && !s.stopped {
		s.started = true
		go s.loop()
	}
	s.mu.Unlock()

	s.log.WithField("destination", path).Info("destination configured")
	return s.Tick(ctx)
}

// Tick runs one cycle against the current destination.
func (s *Scheduler) Tick(ctx context.Context) (reconcile.Report, error) {
	dest := s.Destination()

	rep, err := s.cycler.RunCycle(ctx, dest)
	switch {
	case errors.Is(err, reconcile.ErrNotConfigured):
		s.log.Debug("no destination configured, tick skipped")
	case err != nil:
		s.log.WithError(err).WithField("destination", dest).Error("reconciliation cycle failed")
	}
	return rep, err
}

func (s *Scheduler) loop() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Tick(s.ctx)
		}
	}
}

// Stop halts the ticker and waits for an in-flight tick to finish. It is
// safe to call more than once, and before the scheduler ever started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.cancel()
	s.mu.Unlock()

	if started {
		<-s.done
	}
}

// Run sets the destination and blocks until ctx is done, then stops.
func (s *Scheduler) Run(ctx context.Context, path string) error {
	if _, err := s.SetDestination(ctx, path); errors.Is(err, ErrInvalidPath) {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}
