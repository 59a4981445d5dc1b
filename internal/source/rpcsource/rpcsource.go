// Package rpcsource queries events through the backend's stored procedure,
// which performs filtering and proximity ranking server-side.
package rpcsource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kolabhq/kolab-discovery/internal/core/model"
	"github.com/kolabhq/kolab-discovery/internal/source"
)

const rpcName = "get_public_events_enhanced"

type Source struct {
	backend *source.Backend
	logger  *slog.Logger
}

func New(b *source.Backend, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{backend: b, logger: logger}
}

// rpcArgs mirrors the stored procedure's named parameters. Zero values are
// omitted so the procedure applies its own defaults.
type rpcArgs struct {
	PLimit      int      `json:"p_limit"`
	PSearch     string   `json:"p_search,omitempty"`
	PCategories []string `json:"p_categories,omitempty"`
	PMinPrice   *float64 `json:"p_min_price,omitempty"`
	PMaxPrice   *float64 `json:"p_max_price,omitempty"`
	PStartDate  string   `json:"p_start_date,omitempty"`
	PEndDate    string   `json:"p_end_date,omitempty"`
	PLat        *float64 `json:"p_lat,omitempty"`
	PLon        *float64 `json:"p_lon,omitempty"`
	PRadiusKm   *float64 `json:"p_radius_km,omitempty"`
}

func (s *Source) QueryEvents(ctx context.Context, f model.EventFilters, opts source.QueryOptions) ([]model.EventRecord, error) {
	args := rpcArgs{
		PLimit:      opts.Limit,
		PSearch:     f.Search,
		PCategories: f.Categories,
		PMinPrice:   f.MinPrice,
		PMaxPrice:   f.MaxPrice,
		PStartDate:  f.StartDate,
		PEndDate:    f.EndDate,
		PLat:        f.Latitude,
		PLon:        f.Longitude,
		PRadiusKm:   f.RadiusKm,
	}

	raw, err := s.backend.RPC(ctx, rpcName, args)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", rpcName, err)
	}

	var rows []model.EventRecord
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode rpc %s response: %w", rpcName, err)
	}

	if opts.PlottableOnly {
		plottable := rows[:0]
		for _, r := range rows {
			if r.Plottable() {
				plottable = append(plottable, r)
			}
		}
		rows = plottable
	}

	s.logger.Debug("rpc query resolved", "rows", len(rows), "limit", opts.Limit)
	return rows, nil
}
