// Package tablesource queries the events table directly. It is the fallback
// path: weaker search (title substring only) and no proximity ranking, but
// it needs nothing beyond the table itself.
package tablesource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/kolabhq/kolab-discovery/internal/core/model"
	"github.com/kolabhq/kolab-discovery/internal/source"
)

const eventsTable = "events"

// feedColumns is the full record shape. The organizer join the RPC performs
// is not reproduced here; organizer fields simply come back empty, which
// callers already tolerate.
const feedColumns = "id,title,description,start_at,end_at," +
	"venue_name,venue_address,address_full,city,region,country," +
	"latitude,longitude,categories,tags,price_min,price_max,currency," +
	"capacity,image_url,published,organizer_id,geocoded,created_at,updated_at"

// mapColumns is the projection subset for map markers.
const mapColumns = "id,title,latitude,longitude,categories,price_min,venue_name"

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

func (s *Source) QueryEvents(ctx context.Context, f model.EventFilters, opts source.QueryOptions) ([]model.EventRecord, error) {
	q := BuildQuery(f, opts)

	raw, err := s.backend.Select(ctx, eventsTable, q)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", eventsTable, err)
	}

	var rows []model.EventRecord
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", eventsTable, err)
	}

	s.logger.Debug("table query resolved", "rows", len(rows), "limit", opts.Limit)
	return rows, nil
}

// BuildQuery composes the PostgREST predicate set for the fallback path:
// published+public only, title substring search, any-overlap categories,
// inclusive price and date ranges with the end date expanded to the end of
// its calendar day, ordered by start_at ascending.
func BuildQuery(f model.EventFilters, opts source.QueryOptions) url.Values {
	q := url.Values{}

	if opts.PlottableOnly {
		q.Set("select", mapColumns)
	} else {
		q.Set("select", feedColumns)
	}

	q.Add("status", "eq.published")
	q.Add("visibility", "eq.public")

	if s := strings.TrimSpace(f.Search); s != "" {
		q.Add("title", "ilike.*"+escapeLike(s)+"*")
	}
	if len(f.Categories) > 0 {
		q.Add("categories", "ov.{"+strings.Join(f.Categories, ",")+"}")
	}
	if f.MinPrice != nil {
		q.Add("price_min", "gte."+formatFloat(*f.MinPrice))
	}
	if f.MaxPrice != nil {
		q.Add("price_min", "lte."+formatFloat(*f.MaxPrice))
	}
	if f.StartDate != "" {
		q.Add("start_at", "gte."+f.StartDate+"T00:00:00Z")
	}
	if f.EndDate != "" {
		// same-day end dates are inclusive
		q.Add("start_at", "lte."+f.EndDate+"T23:59:59.999Z")
	}
	if opts.PlottableOnly {
		q.Add("latitude", "not.is.null")
		q.Add("longitude", "not.is.null")
	}

	q.Set("order", "start_at.asc")
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	return q
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// escapeLike neutralizes PostgREST pattern metacharacters in user search
// text so it stays a plain substring match.
func escapeLike(s string) string {
	r := strings.NewReplacer("%", `\%`, "_", `\_`, "*", `\*`, ",", " ")
	return r.Replace(s)
}
