// Package query implements the unified query layer (C5): time-range,
// aggregation, and geospatial reads that fan out across the hot and warm
// tiers behind a cache, plus the write/event/health surfaces the ingestion
// pipeline and admin port call through.
package query

import "errors"

// Typed errors returned by the query layer, per the error taxonomy: callers
// (HTTP handlers, admin tools) map these to response codes without string
// matching.
var (
	ErrNotFound          = errors.New("query: not found")
	ErrInvalidInput      = errors.New("query: invalid input")
	ErrTierUnavailable   = errors.New("query: storage tier unavailable")
	ErrInternal          = errors.New("query: internal error")
	ErrNotYetImplemented = errors.New("query: not yet implemented")
	ErrFutureTimestamp   = errors.New("query: reading timestamp too far in the future")
)
