// Package api provides the Trading 212 REST API client.
//
// REST endpoints:
//   - Live: https://live.trading212.com/api/v0
//   - Demo: https://demo.trading212.com/api/v0
//
// Authentication uses HTTP Basic credentials. Every response carries
// x-ratelimit-* headers which feed the rate limiter keyed by endpoint label.
package api
