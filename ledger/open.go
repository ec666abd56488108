// ledger/open.go
package ledger

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"
)

// Open returns the store for dest. Destinations ending in .db, .sqlite or
// .sqlite3 use SQLite; anything else is a CSV text ledger.
func Open(dest string) (Store, error) {
	switch strings.ToLower(filepath.Ext(dest)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLite(dest)
	default:
		return NewCSV(dest), nil
	}
}

// Registry hands out one Store per destination so every caller writing to
// the same place goes through the same write section.
type Registry struct {
	open func(string) (Store, error)

	mu     sync.Mutex
	stores map[string]Store
}

func NewRegistry() *Registry {
	return NewRegistryWith(Open)
}

// NewRegistryWith uses open to create stores on first use.
func NewRegistryWith(open func(string) (Store, error)) *Registry {
	return &Registry{open: open, stores: map[string]Store{}}
}

func (r *Registry) Get(dest string) (Store, error) {
	key := filepath.Clean(dest)

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.stores[key]; ok {
		return s, nil
	}
	s, err := r.open(dest)
	if err != nil {
		return nil, err
	}
	r.stores[key] = s
	return s, nil
}

func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, s := range r.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.stores, key)
	}
	return errors.Join(errs...)
}
