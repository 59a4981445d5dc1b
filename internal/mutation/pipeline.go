// Package mutation persists event writes, enriching them with geocoded
// coordinates when the organizer supplied an address but no coordinates.
package mutation

import (
	"context"
	"log/slog"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/auth"
	"github.com/kolabhq/kolab-discovery/internal/core/model"
	"github.com/kolabhq/kolab-discovery/internal/core/observability"
	"github.com/kolabhq/kolab-discovery/internal/geocode"
)

// Writer is the backend write capability. *source.Backend implements it.
type Writer interface {
	InsertEvent(ctx context.Context, token string, row map[string]any) (model.EventRecord, error)
	UpdateEvent(ctx context.Context, token, id, organizerID string, patch map[string]any) (model.EventRecord, error)
}

// Invalidator sweeps cached reads after a successful write.
// *resolver.Resolver implements it.
type Invalidator interface {
	InvalidateReads(ctx context.Context)
}

type Pipeline struct {
	logger   *slog.Logger
	writer   Writer
	geocoder geocode.Geocoder
	inv      Invalidator
}

func New(logger *slog.Logger, w Writer, g geocode.Geocoder, inv Invalidator) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger, writer: w, geocoder: g, inv: inv}
}

// CreateEvent runs the create path: geocoding (conditional, non-fatal), the
// write, then coarse read invalidation. Two identical calls produce two
// records; duplicate-submit protection is the caller's concern.
func (p *Pipeline) CreateEvent(ctx context.Context, actor auth.Actor, d model.EventDraft) (model.EventRecord, error) {
	if !actor.Resolved() {
		return model.EventRecord{}, apperr.New(apperr.KindAuthRequired, "sign in to create events")
	}
	if err := d.Validate(); err != nil {
		return model.EventRecord{}, apperr.Wrap(apperr.KindValidation, "invalid event", err)
	}

	lat, lon := d.Latitude, d.Longitude
	geocoded := false
	if d.NeedsGeocoding() {
		p.logger.Debug("create phase", "phase", "geocoding")
		if pt, err := p.geocoder.Geocode(ctx, d.BestAddress()); err != nil {
			// degrade gracefully: the record is still created, just unmapped
			p.logger.Warn("geocoding failed, creating unmapped event", "err", err)
		} else {
			lat, lon = &pt.Latitude, &pt.Longitude
			geocoded = true
		}
	}

	row := draftRow(d, actor.ID, lat, lon, geocoded)

	p.logger.Debug("create phase", "phase", "writing", "actor_id", actor.ID)
	rec, err := p.writer.InsertEvent(ctx, actor.Token, row)
	if err != nil {
		return model.EventRecord{}, err
	}

	p.inv.InvalidateReads(ctx)
	observability.IncInvalidation("mutation")
	p.logger.Info("event created", "event_id", rec.ID, "geocoded", geocoded)
	return rec, nil
}

// UpdateEvent runs the update path. Geocoding re-triggers only when the
// patch changes an address without supplying coordinates. The write is
// ownership-scoped; patching someone else's record fails, never no-ops.
// Applying the same patch twice yields the same final state.
func (p *Pipeline) UpdateEvent(ctx context.Context, actor auth.Actor, id string, patch model.EventPatch) (model.EventRecord, error) {
	if !actor.Resolved() {
		return model.EventRecord{}, apperr.New(apperr.KindAuthRequired, "sign in to update events")
	}
	if id == "" {
		return model.EventRecord{}, apperr.New(apperr.KindValidation, "event id is required")
	}
	if err := patch.Validate(); err != nil {
		return model.EventRecord{}, apperr.Wrap(apperr.KindValidation, "invalid patch", err)
	}

	fields := patchRow(patch)
	if len(fields) == 0 {
		return model.EventRecord{}, apperr.New(apperr.KindValidation, "empty patch")
	}

	if patch.NeedsGeocoding() {
		p.logger.Debug("update phase", "phase", "geocoding", "event_id", id)
		if pt, err := p.geocoder.Geocode(ctx, patch.BestAddress()); err != nil {
			p.logger.Warn("geocoding failed, updating without coordinates", "event_id", id, "err", err)
			fields["geocoded"] = false
		} else {
			fields["latitude"] = pt.Latitude
			fields["longitude"] = pt.Longitude
			fields["geocoded"] = true
		}
	}

	p.logger.Debug("update phase", "phase", "writing", "event_id", id, "actor_id", actor.ID)
	rec, err := p.writer.UpdateEvent(ctx, actor.Token, id, actor.ID, fields)
	if err != nil {
		return model.EventRecord{}, err
	}

	p.inv.InvalidateReads(ctx)
	observability.IncInvalidation("mutation")
	p.logger.Info("event updated", "event_id", rec.ID)
	return rec, nil
}

// draftRow flattens a draft into the insert payload, attaching organizer
// identity and the geocoding outcome.
func draftRow(d model.EventDraft, organizerID string, lat, lon *float64, geocoded bool) map[string]any {
	row := map[string]any{
		"title":        d.Title,
		"start_at":     d.StartAt,
		"published":    d.Published,
		"organizer_id": organizerID,
		"geocoded":     geocoded,
	}
	putStr := func(k, v string) {
		if v != "" {
			row[k] = v
		}
	}
	putStr("description", d.Description)
	putStr("venue_name", d.VenueName)
	putStr("venue_address", d.VenueAddress)
	putStr("address_full", d.AddressFull)
	putStr("city", d.City)
	putStr("region", d.Region)
	putStr("country", d.Country)
	putStr("currency", d.Currency)
	putStr("image_url", d.ImageURL)
	if d.EndAt != nil {
		row["end_at"] = *d.EndAt
	}
	if lat != nil {
		row["latitude"] = *lat
	}
	if lon != nil {
		row["longitude"] = *lon
	}
	if len(d.Categories) > 0 {
		row["categories"] = d.Categories
	}
	if len(d.Tags) > 0 {
		row["tags"] = d.Tags
	}
	if d.PriceMin != nil {
		row["price_min"] = *d.PriceMin
	}
	if d.PriceMax != nil {
		row["price_max"] = *d.PriceMax
	}
	if d.Capacity != nil {
		row["capacity"] = *d.Capacity
	}
	return row
}

// patchRow flattens set patch fields into the update payload.
func patchRow(p model.EventPatch) map[string]any {
	row := map[string]any{}
	if p.Title != nil {
		row["title"] = *p.Title
	}
	if p.Description != nil {
		row["description"] = *p.Description
	}
	if p.StartAt != nil {
		row["start_at"] = *p.StartAt
	}
	if p.EndAt != nil {
		row["end_at"] = *p.EndAt
	}
	if p.VenueName != nil {
		row["venue_name"] = *p.VenueName
	}
	if p.VenueAddress != nil {
		row["venue_address"] = *p.VenueAddress
	}
	if p.AddressFull != nil {
		row["address_full"] = *p.AddressFull
	}
	if p.City != nil {
		row["city"] = *p.City
	}
	if p.Region != nil {
		row["region"] = *p.Region
	}
	if p.Country != nil {
		row["country"] = *p.Country
	}
	if p.Latitude != nil {
		row["latitude"] = *p.Latitude
	}
	if p.Longitude != nil {
		row["longitude"] = *p.Longitude
	}
	if p.Categories != nil {
		row["categories"] = *p.Categories
	}
	if p.Tags != nil {
		row["tags"] = *p.Tags
	}
	if p.PriceMin != nil {
		row["price_min"] = *p.PriceMin
	}
	if p.PriceMax != nil {
		row["price_max"] = *p.PriceMax
	}
	if p.Currency != nil {
		row["currency"] = *p.Currency
	}
	if p.Capacity != nil {
		row["capacity"] = *p.Capacity
	}
	if p.ImageURL != nil {
		row["image_url"] = *p.ImageURL
	}
	if p.Published != nil {
		row["published"] = *p.Published
	}
	return row
}
