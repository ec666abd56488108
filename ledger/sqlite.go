// ledger/sqlite.go
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLiteStore keeps the ledger in a single SQLite table.
type SQLiteStore struct {
	path string
	db   *sql.DB

	mu  sync.Mutex
	seq int64
}

var _ Store = (*SQLiteStore)(nil)

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, ioErr("open", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, ioErr("create schema", path, err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) LoadKnownIDs() (IDSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.knownIDs()
}

func (s *SQLiteStore) AppendRecord(accountID string, equity decimal.Decimal) (rec AccountRecord, err error) {
	err = s.Section(func(tx Tx) error {
		rec, err = tx.Append(accountID, equity)
		return err
	})
	return rec, err
}

func (s *SQLiteStore) Section(fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&sqliteTx{s: s})
}

func (s *SQLiteStore) Rows() ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT seq, account_name, account_number, initial_balance, current_equity, max_equity
		FROM accounts
		ORDER BY seq ASC`)
	if err != nil {
		return nil, ioErr("query", s.path, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r   Row
			seq int64
		)
		if err := rows.Scan(&seq, &r.AccountName, &r.AccountNumber, &r.InitialBalance, &r.CurrentEquity, &r.MaxEquity); err != nil {
			return nil, ioErr("scan", s.path, err)
		}
		r.No = strconv.FormatInt(seq, 10)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("query", s.path, err)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateRecord(accountID string, equity decimal.Decimal) (UpdateOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return UpdateOutcome{}, ioErr("begin", s.path, err)
	}
	defer tx.Rollback()

	var (
		r   Row
		seq int64
	)
	err = tx.QueryRow(`
		SELECT seq, account_name, account_number, initial_balance, current_equity, max_equity
		FROM accounts
		WHERE account_name = ?`, accountID).Scan(
		&seq, &r.AccountName, &r.AccountNumber, &r.InitialBalance, &r.CurrentEquity, &r.MaxEquity,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return UpdateOutcome{Outcome: NotFound}, nil
	}
	if err != nil {
		return UpdateOutcome{}, ioErr("select", s.path, err)
	}
	r.No = strconv.FormatInt(seq, 10)

	out := UpdateOutcome{Outcome: Updated}
	if m := r.applyEquity(equity); m != nil {
		out.Outcome = Malformed
		out.Malformed = m
	}

	if _, err := tx.Exec(`
		UPDATE accounts SET current_equity = ?, max_equity = ?
		WHERE account_name = ?`, r.CurrentEquity, r.MaxEquity, accountID); err != nil {
		return UpdateOutcome{}, ioErr("update", s.path, err)
	}
	if err := tx.Commit(); err != nil {
		return UpdateOutcome{}, ioErr("commit", s.path, err)
	}

	out.Row = r
	return out, nil
}

// knownIDs also raises the sequence counter to the stored maximum.
// Caller holds mu.
func (s *SQLiteStore) knownIDs() (IDSet, error) {
	var maxSeq int64
	if err := s.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM accounts`).Scan(&maxSeq); err != nil {
		return nil, ioErr("query", s.path, err)
	}
	if maxSeq > s.seq {
		s.seq = maxSeq
	}

	rows, err := s.db.Query(`SELECT account_name FROM accounts`)
	if err != nil {
		return nil, ioErr("query", s.path, err)
	}
	defer rows.Close()

	ids := IDSet{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, ioErr("scan", s.path, err)
		}
		ids.add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("query", s.path, err)
	}
	return ids, nil
}

type sqliteTx struct {
	s     *SQLiteStore
	known IDSet
}

func (t *sqliteTx) KnownIDs() (IDSet, error) {
	ids, err := t.s.knownIDs()
	if err != nil {
		return nil, err
	}
	t.known = make(IDSet, len(ids))
	for id := range ids {
		t.known.add(id)
	}
	return ids, nil
}

func (t *sqliteTx) Append(accountID string, equity decimal.Decimal) (AccountRecord, error) {
	if t.known == nil {
		if _, err := t.KnownIDs(); err != nil {
			return AccountRecord{}, err
		}
	}
	if t.known.Has(accountID) {
		return AccountRecord{}, fmt.Errorf("%w: %s", ErrDuplicateAccount, accountID)
	}

	rec := NewRecord(t.s.seq+1, accountID, equity)
	r := rec.Row()
	if _, err := t.s.db.Exec(`
		INSERT INTO accounts
		(seq, account_name, account_number, initial_balance, current_equity, max_equity)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Seq, r.AccountName, r.AccountNumber, r.InitialBalance, r.CurrentEquity, r.MaxEquity,
	); err != nil {
		return AccountRecord{}, ioErr("insert", t.s.path, err)
	}

	t.s.seq = rec.Seq
	t.known.add(accountID)
	return rec, nil
}
