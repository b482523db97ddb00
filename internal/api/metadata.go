package api

import (
	"context"
	"fmt"
)

// Endpoint paths for instrument metadata.
const (
	PathExchanges   = "/equity/metadata/exchanges"
	PathInstruments = "/equity/metadata/instruments"
)

// GetExchanges fetches all exchanges with their working schedules.
func (c *Client) GetExchanges(ctx context.Context) ([]Exchange, []byte, error) {
	var exchanges []Exchange
	raw, err := c.getJSON(ctx, PathExchanges, nil, PathExchanges, &exchanges)
	if err != nil {
		return nil, nil, fmt.Errorf("get exchanges: %w", err)
	}
	return exchanges, raw, nil
}

// GetInstruments fetches the full tradable instrument universe.
func (c *Client) GetInstruments(ctx context.Context) ([]Instrument, []byte, error) {
	var instruments []Instrument
	raw, err := c.getJSON(ctx, PathInstruments, nil, PathInstruments, &instruments)
	if err != nil {
		return nil, nil, fmt.Errorf("get instruments: %w", err)
	}
	return instruments, raw, nil
}
