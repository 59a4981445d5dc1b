package resolver

import (
	"context"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/cache/keys"
	"github.com/kolabhq/kolab-discovery/internal/cache/querycache"
	"github.com/kolabhq/kolab-discovery/internal/core/model"
	"github.com/kolabhq/kolab-discovery/internal/source"
)

// mapKeyParams makes bounds part of the map cache identity alongside the
// filters.
type mapKeyParams struct {
	Bounds  *model.MapBounds   `json:"bounds,omitempty"`
	Filters model.EventFilters `json:"filters"`
}

// MapProjection resolves (bounds, filters) into marker payloads. Bounds are
// optional; when present they are applied client-side after the fetch, and
// every returned projection lies inside them. Records without coordinates
// never appear.
func (r *Resolver) MapProjection(ctx context.Context, bounds *model.MapBounds, f model.EventFilters) ([]model.MapEventProjection, error) {
	if err := f.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid filters", err)
	}
	if bounds != nil {
		if err := bounds.Validate(); err != nil {
			return nil, apperr.Wrap(apperr.KindValidation, "invalid bounds", err)
		}
	}

	key := keys.Key(keys.KindMap, mapKeyParams{Bounds: bounds, Filters: f})
	return querycache.Do(ctx, r.cache, key, func(ctx context.Context) ([]model.MapEventProjection, error) {
		var cached []model.MapEventProjection
		if r.sharedGet(ctx, key, &cached) {
			return cached, nil
		}

		rows, _, err := r.resolve(ctx, keys.KindMap, f, source.QueryOptions{
			Limit:         r.mapLimit,
			PlottableOnly: true,
		})
		if err != nil {
			return nil, err
		}

		out := project(rows, bounds)
		r.sharedSet(ctx, key, out)
		return out, nil
	})
}

// project reduces records to marker payloads, drops anything un-plottable
// or outside the viewport, and stamps each marker with its cluster cell.
func project(rows []model.EventRecord, bounds *model.MapBounds) []model.MapEventProjection {
	res := clusterResolution(bounds)
	out := make([]model.MapEventProjection, 0, len(rows))
	for _, e := range rows {
		if !e.Plottable() {
			continue
		}
		lat, lon := *e.Latitude, *e.Longitude
		if bounds != nil && !bounds.Contains(lat, lon) {
			continue
		}
		out = append(out, model.MapEventProjection{
			ID:          e.ID,
			Title:       e.Title,
			Latitude:    lat,
			Longitude:   lon,
			Categories:  e.Categories,
			PriceMin:    e.PriceMin,
			VenueName:   e.VenueName,
			ClusterCell: clusterCell(lat, lon, res),
		})
	}
	return out
}
