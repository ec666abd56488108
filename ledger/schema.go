// ledger/schema.go
package ledger

// Schema mirrors the textual ledger columns. Amounts are stored as text so
// malformed values round-trip the same way they do in the CSV backend.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	seq INTEGER NOT NULL UNIQUE,
	account_name TEXT PRIMARY KEY,
	account_number TEXT NOT NULL,
	initial_balance TEXT NOT NULL,
	current_equity TEXT NOT NULL,
	max_equity TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_seq ON accounts(seq);
`
