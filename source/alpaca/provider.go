package alpaca

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"github.com/rustyeddy/equitytrack/source"
)

// AccountGetter is the slice of the Alpaca trading client we use.
type AccountGetter interface {
	GetAccount() (*alpaca.Account, error)
}

// Provider exposes an Alpaca brokerage account as a ledger account.
type Provider struct {
	client AccountGetter
	name   string
}

// Ensure Provider implements the interface
var _ source.Source = (*Provider)(nil)

// NewProvider returns a provider using the standard Alpaca environment
// variables (APCA_API_KEY_ID, APCA_API_SECRET_KEY, APCA_API_BASE_URL) for
// any option left empty. name overrides the account number as ledger id.
func NewProvider(opts alpaca.ClientOpts, name string) *Provider {
	return &Provider{
		client: alpaca.NewClient(opts),
		name:   name,
	}
}

// NewProviderWith wraps an existing client.
func NewProviderWith(client AccountGetter, name string) *Provider {
	return &Provider{client: client, name: name}
}

// ListAccounts returns the single account behind the API key, valued at its
// cash balance.
func (p *Provider) ListAccounts(ctx context.Context) ([]source.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	acct, err := p.client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("alpaca get account: %w", err)
	}
	if acct == nil {
		return nil, fmt.Errorf("alpaca get account: empty response")
	}

	id := p.name
	if id == "" {
		id = acct.AccountNumber
	}

	return []source.Account{{
		ID:          id,
		Equity:      acct.Cash,
		Persistable: true,
	}}, nil
}
