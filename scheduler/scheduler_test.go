package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/equitytrack/ledger"
	"github.com/rustyeddy/equitytrack/logging"
	"github.com/rustyeddy/equitytrack/reconcile"
	"github.com/rustyeddy/equitytrack/source"
)

type fakeCycler struct {
	mu    sync.Mutex
	dests []string
	fail  int // fail this many calls first
}

func (f *fakeCycler) RunCycle(ctx context.Context, dest string) (reconcile.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dest == "" {
		return reconcile.Report{Skipped: true}, reconcile.ErrNotConfigured
	}
	f.dests = append(f.dests, dest)
	if f.fail > 0 {
		f.fail--
		return reconcile.Report{}, errors.New("disk on fire")
	}
	return reconcile.Report{Destination: dest}, nil
}

func (f *fakeCycler) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dests)
}

func TestSetDestinationRejectsEmpty(t *testing.T) {
	c := &fakeCycler{}
	s := New(c, time.Hour, logging.Discard())
	t.Cleanup(s.Stop)

	_, err := s.SetDestination(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.Equal(t, 0, c.calls())
	assert.Equal(t, "", s.Destination())
}

func TestSetDestinationRunsImmediately(t *testing.T) {
	c := &fakeCycler{}
	s := New(c, time.Hour, logging.Discard())
	t.Cleanup(s.Stop)

	rep, err := s.SetDestination(context.Background(), "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "a.csv", rep.Destination)
	assert.Equal(t, 1, c.calls())
}

func TestTickWithoutDestinationIsSkipped(t *testing.T) {
	c := &fakeCycler{}
	s := New(c, time.Hour, logging.Discard())

	rep, err := s.Tick(context.Background())
	assert.ErrorIs(t, err, reconcile.ErrNotConfigured)
	assert.True(t, rep.Skipped)
	assert.Equal(t, 0, c.calls())
}

func TestTickerKeepsRunningAfterFailures(t *testing.T) {
	c := &fakeCycler{fail: 2}
	s := New(c, 5*time.Millisecond, logging.Discard())
	t.Cleanup(s.Stop)

	_, err := s.SetDestination(context.Background(), "a.csv")
	assert.Error(t, err)

	assert.Eventually(t, func() bool { return c.calls() >= 5 }, 2*time.Second, 5*time.Millisecond)
}

func TestDestinationChangeIsPickedUp(t *testing.T) {
	c := &fakeCycler{}
	s := New(c, 5*time.Millisecond, logging.Discard())
	t.Cleanup(s.Stop)

	_, err := s.SetDestination(context.Background(), "a.csv")
	require.NoError(t, err)
	_, err = s.SetDestination(context.Background(), "b.csv")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return len(c.dests) > 2 && c.dests[len(c.dests)-1] == "b.csv"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestTickerOutlivesConfiguringContext(t *testing.T) {
	c := &fakeCycler{}
	s := New(c, 10*time.Millisecond, logging.Discard())
	t.Cleanup(s.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.SetDestination(ctx, "a.csv")
	require.NoError(t, err)
	cancel()

	_, err = s.SetDestination(context.Background(), "b.csv")
	require.NoError(t, err)
	n := c.calls()

	assert.Eventually(t, func() bool { return c.calls() >= n+3 }, 2*time.Second, 5*time.Millisecond)
}

func TestStopHaltsTicks(t *testing.T) {
	c := &fakeCycler{}
	s := New(c, 5*time.Millisecond, logging.Discard())

	_, err := s.SetDestination(context.Background(), "a.csv")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return c.calls() >= 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	n := c.calls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, c.calls())
}

func TestStopBeforeStart(t *testing.T) {
	s := New(&fakeCycler{}, 0, nil)
	assert.Equal(t, DefaultInterval, s.interval)
	s.Stop()
}

func TestRunStopsOnCancel(t *testing.T) {
	c := &fakeCycler{}
	s := New(c, 5*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, "a.csv") }()

	assert.Eventually(t, func() bool { return c.calls() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunRejectsEmptyPath(t *testing.T) {
	s := New(&fakeCycler{}, time.Hour, logging.Discard())
	assert.ErrorIs(t, s.Run(context.Background(), ""), ErrInvalidPath)
}

func TestFirstWriteHappensOnConfigure(t *testing.T) {
	reg := ledger.NewRegistry()
	t.Cleanup(func() { _ = reg.Close() })

	src := source.NewStatic(source.Account{ID: "ACC1", Equity: decimal.NewFromInt(1000), Persistable: true})
	r := reconcile.New(src, reg, reconcile.WithLogger(logging.Discard()))
	s := New(r, time.Hour, logging.Discard())
	t.Cleanup(s.Stop)

	dest := filepath.Join(t.TempDir(), "account_info.csv")
	_, err := s.SetDestination(context.Background(), dest)
	require.NoError(t, err)

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t,
		"No,AccountName,AccountNumber,InitialBalance,CurrentEquity,MaxEquity\n1,ACC1,ACC1,1000,1000,1000\n",
		string(b))
}
