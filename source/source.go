// Package source supplies live account snapshots to the reconciler.
package source

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
)

// Account is one live account as seen by a provider.
type Account struct {
	ID          string          `json:"id" yaml:"id"`
	Equity      decimal.Decimal `json:"equity" yaml:"equity"`
	Persistable bool            `json:"persistable" yaml:"persistable"`
}

// Source lists the live accounts. It is called once per cycle.
type Source interface {
	ListAccounts(ctx context.Context) ([]Account, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context) ([]Account, error)

func (f Func) ListAccounts(ctx context.Context) ([]Account, error) { return f(ctx) }

// Static serves a fixed, replaceable list of accounts.
type Static struct {
	mu       sync.RWMutex
	accounts []Account
}

func NewStatic(accts ...Account) *Static {
	s := &Static{}
	s.Set(accts...)
	return s
}

// Set replaces the served accounts.
func (s *Static) Set(accts ...Account) {
	cp := make([]Account, len(accts))
	copy(cp, accts)

	s.mu.Lock()
	s.accounts = cp
	s.mu.Unlock()
}

func (s *Static) ListAccounts(ctx context.Context) ([]Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Account, len(s.accounts))
	copy(out, s.accounts)
	return out, nil
}

// Multi concatenates the accounts of several sources in order. Any failing
// source fails the whole listing.
type Multi []Source

func (m Multi) ListAccounts(ctx context.Context) ([]Account, error) {
	var (
		out  []Account
		errs []error
	)
	for _, s := range m {
		accts, err := s.ListAccounts(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, accts...)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
