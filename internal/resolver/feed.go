package resolver

import (
	"context"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/cache/keys"
	"github.com/kolabhq/kolab-discovery/internal/cache/querycache"
	"github.com/kolabhq/kolab-discovery/internal/core/model"
	"github.com/kolabhq/kolab-discovery/internal/source"
)

// Feed resolves filters into the ordered event list shown in list/grid UI.
// Identical concurrent calls share one underlying fetch.
func (r *Resolver) Feed(ctx context.Context, f model.EventFilters) ([]model.EventRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "invalid filters", err)
	}

	key := keys.Key(keys.KindFeed, f)
	return querycache.Do(ctx, r.cache, key, func(ctx context.Context) ([]model.EventRecord, error) {
		var cached []model.EventRecord
		if r.sharedGet(ctx, key, &cached) {
			return cached, nil
		}

		rows, path, err := r.resolve(ctx, keys.KindFeed, f, source.QueryOptions{Limit: r.feedLimit})
		if err != nil {
			return nil, err
		}

		// the table path cannot rank or cut by distance, so apply the
		// proximity filter here
		if path == pathFallback && f.HasPoint() && f.RadiusKm != nil {
			rows = filterByRadius(rows, *f.Latitude, *f.Longitude, *f.RadiusKm)
		}

		r.sharedSet(ctx, key, rows)
		return rows, nil
	})
}

func filterByRadius(rows []model.EventRecord, lat, lon, radiusKm float64) []model.EventRecord {
	out := rows[:0]
	for _, e := range rows {
		if !e.Plottable() {
			continue
		}
		if haversineKm(lat, lon, *e.Latitude, *e.Longitude) <= radiusKm {
			out = append(out, e)
		}
	}
	return out
}
