package api

import (
	"context"
	"fmt"
	"strconv"
)

// Endpoint paths for portfolio resources.
const (
	PathPortfolio     = "/equity/portfolio"
	PathPendingOrders = "/equity/orders"
	PathPies          = "/equity/pies"
)

// GetPortfolio fetches all currently open positions.
func (c *Client) GetPortfolio(ctx context.Context) ([]Position, []byte, error) {
	var positions []Position
	raw, err := c.getJSON(ctx, PathPortfolio, nil, PathPortfolio, &positions)
	if err != nil {
		return nil, nil, fmt.Errorf("get portfolio: %w", err)
	}
	return positions, raw, nil
}

// GetPendingOrders fetches all currently pending orders.
func (c *Client) GetPendingOrders(ctx context.Context) ([]PendingOrder, []byte, error) {
	var orders []PendingOrder
	raw, err := c.getJSON(ctx, PathPendingOrders, nil, PathPendingOrders, &orders)
	if err != nil {
		return nil, nil, fmt.Errorf("get pending orders: %w", err)
	}
	return orders, raw, nil
}

// GetPies fetches the list of pies on the account.
func (c *Client) GetPies(ctx context.Context) ([]Pie, []byte, error) {
	var pies []Pie
	raw, err := c.getJSON(ctx, PathPies, nil, PathPies, &pies)
	if err != nil {
		return nil, nil, fmt.Errorf("get pies: %w", err)
	}
	return pies, raw, nil
}

// GetPieDetails fetches the allocation details of a single pie.
func (c *Client) GetPieDetails(ctx context.Context, pieID int64) (*PieDetails, []byte, error) {
	path := PathPies + "/" + strconv.FormatInt(pieID, 10)
	var details PieDetails
	raw, err := c.getJSON(ctx, path, nil, path, &details)
	if err != nil {
		return nil, nil, fmt.Errorf("get pie %d: %w", pieID, err)
	}
	return &details, raw, nil
}
