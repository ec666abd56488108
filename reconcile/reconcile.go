// Package reconcile merges live account snapshots into a ledger.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/equitytrack/id"
	"github.com/rustyeddy/equitytrack/ledger"
	"github.com/rustyeddy/equitytrack/source"
)

// BacktestAccount is never recorded.
const BacktestAccount = "Backtest"

var (
	// ErrNotConfigured means no destination is set. The cycle is skipped.
	ErrNotConfigured = errors.New("destination not configured")
	// ErrSourceUnavailable wraps failures listing live accounts.
	ErrSourceUnavailable = errors.New("account source unavailable")
)

// Report summarises one cycle.
type Report struct {
	CycleID     string
	Destination string
	Skipped     bool
	Seen        int // persistable accounts in the snapshot
	Appended    []ledger.AccountRecord
	Updated     []string
	Malformed   []*ledger.MalformedRecordError
	Failed      map[string]error // per-account update failures
}

// StoreProvider resolves the store behind a destination.
type StoreProvider interface {
	Get(dest string) (ledger.Store, error)
}

// Reconciler runs reconciliation cycles. It is safe for concurrent use;
// overlapping cycles are serialized by the store's write section.
type Reconciler struct {
	source  source.Source
	stores  StoreProvider
	exclude map[string]bool
	log     logrus.FieldLogger
}

type Option func(*Reconciler)

// WithExclude adds account ids that are never recorded, on top of Backtest.
func WithExclude(ids ...string) Option {
	return func(r *Reconciler) {
		for _, acct := range ids {
			r.exclude[acct] = true
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Reconciler) { r.log = log }
}

func New(src source.Source, stores StoreProvider, opts ...Option) *Reconciler {
	r := &Reconciler{
		source:  src,
		stores:  stores,
		exclude: map[string]bool{BacktestAccount: true},
		log:     logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunCycle synchronizes the live accounts into the ledger at dest. New
// accounts are appended inside one write section; existing ones are updated
// afterwards, one section per account. Work committed before a failure
// stays committed and the next cycle picks up from there.
func (r *Reconciler) RunCycle(ctx context.Context, dest string) (Report, error) {
	rep := Report{CycleID: id.New(), Destination: dest}
	if dest == "" {
		rep.Skipped = true
		return rep, ErrNotConfigured
	}
	log := r.log.WithFields(logrus.Fields{"cycle": rep.CycleID, "destination": dest})

	store, err := r.stores.Get(dest)
	if err != nil {
		return rep, r.fail(log, "open ledger", err)
	}

	live, err := r.source.ListAccounts(ctx)
	if err != nil {
		return rep, r.fail(log, "list accounts", fmt.Errorf("%w: %w", ErrSourceUnavailable, err))
	}
	accts := r.persistable(live)
	rep.Seen = len(accts)

	var existing []source.Account
	err = store.Section(func(tx ledger.Tx) error {
		known, err := tx.KnownIDs()
		if err != nil {
			return err
		}
		var fresh []source.Account
		fresh, existing = Partition(accts, known)
		for _, a := range fresh {
			rec, err := tx.Append(a.ID, a.Equity)
			if err != nil {
				return err
			}
			rep.Appended = append(rep.Appended, rec)
			log.WithFields(logrus.Fields{"account": a.ID, "seq": rec.Seq, "equity": a.Equity}).Info("account added to ledger")
		}
		return nil
	})
	if err != nil {
		return rep, r.fail(log, "append accounts", err)
	}

	for _, a := range existing {
		r.update(log, store, a, &rep)
	}

	log.WithFields(logrus.Fields{
		"seen":      rep.Seen,
		"appended":  len(rep.Appended),
		"updated":   len(rep.Updated),
		"malformed": len(rep.Malformed),
		"failed":    len(rep.Failed),
	}).Debug("cycle complete")

	if len(rep.Failed) > 0 {
		errs := make([]error, 0, len(rep.Failed))
		for _, err := range rep.Failed {
			errs = append(errs, err)
		}
		return rep, errors.Join(errs...)
	}
	return rep, nil
}

func (r *Reconciler) update(log logrus.FieldLogger, store ledger.Store, a source.Account, rep *Report) {
	alog := log.WithField("account", a.ID)

	out, err := store.UpdateRecord(a.ID, a.Equity)
	if err != nil {
		if rep.Failed == nil {
			rep.Failed = map[string]error{}
		}
		rep.Failed[a.ID] = fmt.Errorf("update %s: %w", a.ID, err)
		alog.WithError(err).Error("update failed")
		return
	}

	switch out.Outcome {
	case ledger.Updated:
		rep.Updated = append(rep.Updated, a.ID)
		alog.WithFields(logrus.Fields{"equity": out.Row.CurrentEquity, "max_equity": out.Row.MaxEquity}).Debug("account updated")
	case ledger.Malformed:
		rep.Updated = append(rep.Updated, a.ID)
		rep.Malformed = append(rep.Malformed, out.Malformed)
		alog.WithError(out.Malformed).Warn("malformed record, high-water mark left untouched")
	case ledger.NotFound:
		alog.Warn("account vanished from ledger before update")
	}
}

func (r *Reconciler) fail(log logrus.FieldLogger, op string, err error) error {
	log.WithError(err).Errorf("cycle aborted: %s", op)
	return fmt.Errorf("%s: %w", op, err)
}

// persistable drops excluded and non-persistable accounts and keeps the
// first occurrence of any id listed twice.
func (r *Reconciler) persistable(live []source.Account) []source.Account {
	seen := make(map[string]bool, len(live))
	out := make([]source.Account, 0, len(live))
	for _, a := range live {
		if !a.Persistable || a.ID == "" || r.exclude[a.ID] || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

// Partition splits accounts into those absent from known and those present,
// preserving order.
func Partition(accts []source.Account, known ledger.IDSet) (fresh, existing []source.Account) {
	for _, a := range accts {
		if known.Has(a.ID) {
			existing = append(existing, a)
		} else {
			fresh = append(fresh, a)
		}
	}
	return fresh, existing
}
