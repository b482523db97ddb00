// Package database provides connection pool management for PostgreSQL.
//
// One database holds both layers:
//   - staging: raw API payload audit rows
//   - core: curated snapshots, historical facts, and dimensions
package database
