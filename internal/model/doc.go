// Package model defines the curated row types written to the database and
// the pure transforms that shape API responses into them.
//
// Conventions:
//   - Money and quantities: decimal.Decimal, nil when the source omits them
//   - Timestamps: time.Time in UTC; source values without a zone are UTC
//   - Payload: the compact JSON of the originating API record
package model
