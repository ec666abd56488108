// ledger/csv.go
package ledger

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// CSVStore keeps the ledger as a flat comma separated text file.
type CSVStore struct {
	path string

	mu  sync.Mutex
	seq int64 // highest sequence number seen or assigned
}

var _ Store = (*CSVStore)(nil)

func NewCSV(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) LoadKnownIDs() (IDSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return nil, err
	}
	return idsOf(rows), nil
}

func (s *CSVStore) AppendRecord(accountID string, equity decimal.Decimal) (rec AccountRecord, err error) {
	err = s.Section(func(tx Tx) error {
		rec, err = tx.Append(accountID, equity)
		return err
	})
	return rec, err
}

func (s *CSVStore) Rows() ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *CSVStore) Section(fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&csvTx{s: s})
}

// UpdateRecord re-reads the whole file, edits the matching line and writes
// the file back through a temporary file and rename.
func (s *CSVStore) UpdateRecord(accountID string, equity decimal.Decimal) (UpdateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return UpdateOutcome{}, err
	}

	idx := -1
	for i := range rows {
		if rows[i].Key() == accountID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return UpdateOutcome{Outcome: NotFound}, nil
	}

	out := UpdateOutcome{Outcome: Updated}
	if m := rows[idx].applyEquity(equity); m != nil {
		out.Outcome = Malformed
		out.Malformed = m
	}
	if err := s.rewrite(rows); err != nil {
		return UpdateOutcome{}, err
	}
	out.Row = rows[idx]
	return out, nil
}

type csvTx struct {
	s     *CSVStore
	known IDSet
}

func (t *csvTx) KnownIDs() (IDSet, error) {
	if err := t.scan(); err != nil {
		return nil, err
	}
	out := make(IDSet, len(t.known))
	for id := range t.known {
		out.add(id)
	}
	return out, nil
}

func (t *csvTx) Append(accountID string, equity decimal.Decimal) (AccountRecord, error) {
	if t.known == nil {
		if err := t.scan(); err != nil {
			return AccountRecord{}, err
		}
	}
	if t.known.Has(accountID) {
		return AccountRecord{}, fmt.Errorf("%w: %s", ErrDuplicateAccount, accountID)
	}
	rec, err := t.s.append(accountID, equity)
	if err != nil {
		return AccountRecord{}, err
	}
	t.known.add(accountID)
	return rec, nil
}

func (t *csvTx) scan() error {
	rows, err := t.s.read()
	if err != nil {
		return err
	}
	t.known = idsOf(rows)
	return nil
}

// read loads every row and raises the sequence counter to the highest
// number found. A missing or blank file has no rows. Caller holds mu.
func (s *CSVStore) read() ([]Row, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, ioErr("read", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	// Rows may be short or long after hand edits; missing columns read as "".
	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows []Row
	err = gocsv.UnmarshalCSV(r, &rows)
	if err != nil && !errors.Is(err, gocsv.ErrEmptyCSVFile) {
		return nil, ioErr("parse", s.path, err)
	}

	for _, row := range rows {
		if n, ok := row.Seq(); ok && n > s.seq {
			s.seq = n
		}
	}
	return rows, nil
}

// append writes one new line, preceded by the header when the file is empty.
// Caller holds mu.
func (s *CSVStore) append(accountID string, equity decimal.Decimal) (AccountRecord, error) {
	empty, missingEOL, err := s.tail()
	if err != nil {
		return AccountRecord{}, err
	}

	flags := os.O_APPEND | os.O_CREATE | os.O_WRONLY
	if empty {
		flags = os.O_CREATE | os.O_TRUNC | os.O_WRONLY
	}
	f, err := os.OpenFile(s.path, flags, 0644)
	if err != nil {
		return AccountRecord{}, ioErr("open", s.path, err)
	}
	defer f.Close()

	rec := NewRecord(s.seq+1, accountID, equity)
	rows := []Row{rec.Row()}

	if empty {
		err = gocsv.Marshal(&rows, f)
	} else {
		if missingEOL {
			if _, err := f.WriteString("\n"); err != nil {
				return AccountRecord{}, ioErr("write", s.path, err)
			}
		}
		err = gocsv.MarshalWithoutHeaders(&rows, f)
	}
	if err != nil {
		return AccountRecord{}, ioErr("write", s.path, err)
	}
	if err := f.Close(); err != nil {
		return AccountRecord{}, ioErr("close", s.path, err)
	}

	s.seq = rec.Seq
	return rec, nil
}

// tail reports whether the file is absent or holds only whitespace, the
// same rule read uses, and whether its last line lacks a newline.
func (s *CSVStore) tail() (empty, missingEOL bool, err error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return true, false, nil
	}
	if err != nil {
		return false, false, ioErr("read", s.path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return true, false, nil
	}
	return false, data[len(data)-1] != '\n', nil
}

// rewrite replaces the file with header plus rows. Caller holds mu.
func (s *CSVStore) rewrite(rows []Row) error {
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, base+".*.tmp")
	if err != nil {
		return ioErr("create temp", s.path, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if info, err := os.Stat(s.path); err == nil {
		_ = tmp.Chmod(info.Mode().Perm())
	}

	if err := gocsv.Marshal(&rows, tmp); err != nil {
		return ioErr("write", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		return ioErr("sync", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return ioErr("close", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return ioErr("rename", s.path, err)
	}
	return nil
}

func idsOf(rows []Row) IDSet {
	ids := make(IDSet, len(rows))
	for _, r := range rows {
		ids.add(r.Key())
	}
	return ids
}
