// ledger/ledger.go
package ledger

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// Header is the first line of every textual ledger.
var Header = []string{"No", "AccountName", "AccountNumber", "InitialBalance", "CurrentEquity", "MaxEquity"}

var (
	// ErrIO wraps every failure reading or writing a ledger destination.
	ErrIO = errors.New("ledger i/o failure")
	// ErrMalformedRecord marks a persisted numeric field that does not parse.
	ErrMalformedRecord = errors.New("malformed ledger record")
	// ErrDuplicateAccount is returned when appending an id already present.
	ErrDuplicateAccount = errors.New("account already in ledger")
)

// AccountRecord is one tracked account.
type AccountRecord struct {
	Seq            int64
	AccountID      string
	InitialBalance decimal.Decimal
	CurrentEquity  decimal.Decimal
	MaxEquity      decimal.Decimal
}

// NewRecord bootstraps the record of an account seen for the first time.
func NewRecord(seq int64, accountID string, equity decimal.Decimal) AccountRecord {
	return AccountRecord{
		Seq:            seq,
		AccountID:      accountID,
		InitialBalance: equity,
		CurrentEquity:  equity,
		MaxEquity:      equity,
	}
}

// Row returns the textual form of r. The id fills both name columns.
func (r AccountRecord) Row() Row {
	return Row{
		No:             strconv.FormatInt(r.Seq, 10),
		AccountName:    r.AccountID,
		AccountNumber:  r.AccountID,
		InitialBalance: r.InitialBalance.String(),
		CurrentEquity:  r.CurrentEquity.String(),
		MaxEquity:      r.MaxEquity.String(),
	}
}

// Row is a ledger line exactly as persisted. Fields stay text so a record
// with an unparseable column survives a rewrite untouched.
type Row struct {
	No             string `csv:"No"`
	AccountName    string `csv:"AccountName"`
	AccountNumber  string `csv:"AccountNumber"`
	InitialBalance string `csv:"InitialBalance"`
	CurrentEquity  string `csv:"CurrentEquity"`
	MaxEquity      string `csv:"MaxEquity"`
}

// Key is the column records are looked up by.
func (r Row) Key() string { return r.AccountName }

// Seq parses the sequence column. Unparseable values report ok=false.
func (r Row) Seq() (int64, bool) {
	n, err := strconv.ParseInt(r.No, 10, 64)
	return n, err == nil
}

// Record parses every column of r.
func (r Row) Record() (AccountRecord, error) {
	seq, ok := r.Seq()
	if !ok {
		return AccountRecord{}, &MalformedRecordError{AccountID: r.Key(), Field: "No", Value: r.No}
	}
	rec := AccountRecord{Seq: seq, AccountID: r.Key()}
	fields := []struct {
		name string
		text string
		dst  *decimal.Decimal
	}{
		{"InitialBalance", r.InitialBalance, &rec.InitialBalance},
		{"CurrentEquity", r.CurrentEquity, &rec.CurrentEquity},
		{"MaxEquity", r.MaxEquity, &rec.MaxEquity},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.text)
		if err != nil {
			return AccountRecord{}, &MalformedRecordError{AccountID: r.Key(), Field: f.name, Value: f.text}
		}
		*f.dst = v
	}
	return rec, nil
}

// applyEquity sets the current equity and advances the high-water mark. When
// the stored max does not parse it is left as is and the condition returned.
func (r *Row) applyEquity(equity decimal.Decimal) *MalformedRecordError {
	r.CurrentEquity = equity.String()

	hwm, err := decimal.NewFromString(r.MaxEquity)
	if err != nil {
		return &MalformedRecordError{AccountID: r.Key(), Field: "MaxEquity", Value: r.MaxEquity}
	}
	if equity.GreaterThan(hwm) {
		r.MaxEquity = equity.String()
	}
	return nil
}

// MalformedRecordError describes a persisted field that failed to parse.
type MalformedRecordError struct {
	AccountID string
	Field     string
	Value     string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("account %s: %s %q is not a number", e.AccountID, e.Field, e.Value)
}

func (e *MalformedRecordError) Unwrap() error { return ErrMalformedRecord }

// Outcome classifies the result of an update.
type Outcome int

const (
	Updated Outcome = iota
	NotFound
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Updated:
		return "updated"
	case NotFound:
		return "not-found"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// UpdateOutcome reports what UpdateRecord did.
type UpdateOutcome struct {
	Outcome Outcome
	Row     Row
	// Malformed is set when Outcome is Malformed. CurrentEquity was still
	// written in that case.
	Malformed *MalformedRecordError
}

// IDSet is a set of account ids.
type IDSet map[string]struct{}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) add(id string) { s[id] = struct{}{} }

// Tx is the view of a store available while its write section is held.
type Tx interface {
	KnownIDs() (IDSet, error)
	Append(accountID string, equity decimal.Decimal) (AccountRecord, error)
}

// Store is durable keyed storage of account records. Every method is
// serialized through one write section per store.
type Store interface {
	// LoadKnownIDs returns the ids present. A destination that does not
	// exist yet yields an empty set.
	LoadKnownIDs() (IDSet, error)
	// AppendRecord appends a bootstrapped record with the next sequence number.
	AppendRecord(accountID string, equity decimal.Decimal) (AccountRecord, error)
	// UpdateRecord rewrites the current equity and high-water mark of accountID.
	UpdateRecord(accountID string, equity decimal.Decimal) (UpdateOutcome, error)
	// Section runs fn while holding the write section.
	Section(fn func(tx Tx) error) error
	// Rows returns every record line in ledger order.
	Rows() ([]Row, error)
	Path() string
	Close() error
}

func ioErr(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
