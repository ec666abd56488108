package oanda

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/equitytrack/source"
)

const (
	// PracticeURL is the URL for OANDA's practice/demo environment
	PracticeURL = "https://api-fxpractice.oanda.com"
	// LiveURL is the URL for OANDA's live trading environment
	LiveURL = "https://api-fxtrade.oanda.com"
)

// Client represents an OANDA v20 REST API client
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new OANDA API client
func NewClient(token string, practice bool) *Client {
	baseURL := LiveURL
	if practice {
		baseURL = PracticeURL
	}

	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type accountProperties struct {
	ID   string   `json:"id"`
	Tags []string `json:"tags"`
}

type accountsResponse struct {
	Accounts []accountProperties `json:"accounts"`
}

// AccountSummary is the subset of the account summary we track.
type AccountSummary struct {
	ID       string `json:"id"`
	Alias    string `json:"alias"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
	NAV      string `json:"NAV"`
}

type summaryResponse struct {
	Account AccountSummary `json:"account"`
}

// ListAccountIDs returns the ids of every account the token can access.
func (c *Client) ListAccountIDs(ctx context.Context) ([]string, error) {
	var resp accountsResponse
	if err := c.get(ctx, "/v3/accounts", &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		ids = append(ids, a.ID)
	}
	return ids, nil
}

// GetSummary fetches the summary of one account.
func (c *Client) GetSummary(ctx context.Context, accountID string) (AccountSummary, error) {
	if accountID == "" {
		return AccountSummary{}, fmt.Errorf("account id is required")
	}

	var resp summaryResponse
	if err := c.get(ctx, fmt.Sprintf("/v3/accounts/%s/summary", accountID), &resp); err != nil {
		return AccountSummary{}, err
	}
	return resp.Account, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Source lists OANDA accounts as ledger accounts. The account alias is used
// as the id when set, mirroring the display name shown in OANDA's platform.
type Source struct {
	Client *Client
	// AccountIDs restricts the listing. Empty means every account.
	AccountIDs []string
}

var _ source.Source = (*Source)(nil)

func (s *Source) ListAccounts(ctx context.Context) ([]source.Account, error) {
	ids := s.AccountIDs
	if len(ids) == 0 {
		var err error
		if ids, err = s.Client.ListAccountIDs(ctx); err != nil {
			return nil, fmt.Errorf("oanda list accounts: %w", err)
		}
	}

	out := make([]source.Account, 0, len(ids))
	for _, id := range ids {
		sum, err := s.Client.GetSummary(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("oanda account %s: %w", id, err)
		}
		bal, err := decimal.NewFromString(sum.Balance)
		if err != nil {
			return nil, fmt.Errorf("oanda account %s: balance %q: %w", id, sum.Balance, err)
		}
		name := sum.Alias
		if name == "" {
			name = sum.ID
		}
		out = append(out, source.Account{ID: name, Equity: bal, Persistable: true})
	}
	return out, nil
}
