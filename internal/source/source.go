// Package source defines the event query/write capabilities backed by the
// managed backend's REST surface.
package source

import (
	"context"

	"github.com/kolabhq/kolab-discovery/internal/core/model"
)

// QueryOptions tunes one query issued against an EventSource.
type QueryOptions struct {
	// Limit caps the result size; sources never return more rows.
	Limit int
	// PlottableOnly requires non-null latitude AND longitude at the query
	// level, used by the map projection path.
	PlottableOnly bool
}

// EventSource resolves filters into event records. Two implementations
// exist: the RPC source (server-side filtering and ranking, preferred) and
// the table source (raw table predicates, the degraded fallback).
type EventSource interface {
	QueryEvents(ctx context.Context, f model.EventFilters, opts QueryOptions) ([]model.EventRecord, error)
}
