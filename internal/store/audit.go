package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/t212-data/internal/metrics"
)

// RecordRawPayload appends one raw API response to the staging audit table
// and returns the capture timestamp. Every call writes a new row; audit
// capture never deduplicates.
func (r *Repository) RecordRawPayload(
	ctx context.Context,
	endpoint string,
	payload []byte,
	accountID *int64,
	correlationID uuid.UUID,
) (time.Time, error) {
	capturedAt := time.Now().UTC()
	hash := sha256.Sum256(payload)

	_, err := r.db.Exec(ctx, `
		INSERT INTO staging.raw_api_payload
			(endpoint, account_id, captured_at_utc, correlation_id, payload_hash, payload_json)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, endpoint, accountID, capturedAt, correlationID, hash[:], payload)
	if err != nil {
		return time.Time{}, fmt.Errorf("record raw payload: %w", err)
	}

	metrics.RowsWrittenTotal.WithLabelValues("raw_payload").Inc()
	return capturedAt, nil
}
