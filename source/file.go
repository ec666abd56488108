package source

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File reads accounts from a YAML document on every call, so an external
// process can keep it current:
//
//	accounts:
//	  - id: Sim101
//	    equity: "100000"
//	    persistable: true
type File struct {
	Path string
}

type fileDoc struct {
	Accounts []fileAccount `yaml:"accounts"`
}

// fileAccount lets persistable default to true when omitted.
type fileAccount struct {
	ID          string `yaml:"id"`
	Equity      string `yaml:"equity"`
	Persistable *bool  `yaml:"persistable"`
}

func (f File) ListAccounts(ctx context.Context) ([]Account, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse accounts file %s: %w", f.Path, err)
	}

	out := make([]Account, 0, len(doc.Accounts))
	for i, a := range doc.Accounts {
		if a.ID == "" {
			return nil, fmt.Errorf("accounts file %s: entry %d has no id", f.Path, i)
		}
		eq, err := parseAmount(a.Equity)
		if err != nil {
			return nil, fmt.Errorf("accounts file %s: account %s: %w", f.Path, a.ID, err)
		}
		persist := true
		if a.Persistable != nil {
			persist = *a.Persistable
		}
		out = append(out, Account{ID: a.ID, Equity: eq, Persistable: persist})
	}
	return out, nil
}
