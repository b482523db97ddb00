package api

import (
	"context"
	"fmt"
)

// Endpoint paths for account resources.
const (
	PathAccountInfo = "/equity/account/info"
	PathAccountCash = "/equity/account/cash"
)

// GetAccountInfo fetches the account identity and base currency.
func (c *Client) GetAccountInfo(ctx context.Context) (*AccountInfo, []byte, error) {
	var info AccountInfo
	raw, err := c.getJSON(ctx, PathAccountInfo, nil, PathAccountInfo, &info)
	if err != nil {
		return nil, nil, fmt.Errorf("get account info: %w", err)
	}
	return &info, raw, nil
}

// GetAccountCash fetches the current cash balance breakdown.
func (c *Client) GetAccountCash(ctx context.Context) (*AccountCash, []byte, error) {
	var cash AccountCash
	raw, err := c.getJSON(ctx, PathAccountCash, nil, PathAccountCash, &cash)
	if err != nil {
		return nil, nil, fmt.Errorf("get account cash: %w", err)
	}
	return &cash, raw, nil
}
