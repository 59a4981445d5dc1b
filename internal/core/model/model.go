// Package model defines core domain types shared across the service.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventFilters describes one discovery query. A new filter value is a new
// cache key; callers never mutate a filter after issuing it.
type EventFilters struct {
	Search     string   `json:"search,omitempty"`
	Categories []string `json:"categories,omitempty"`
	MinPrice   *float64 `json:"min_price,omitempty"`
	MaxPrice   *float64 `json:"max_price,omitempty"`
	StartDate  string   `json:"start_date,omitempty"` // YYYY-MM-DD, inclusive
	EndDate    string   `json:"end_date,omitempty"`   // YYYY-MM-DD, inclusive
	Latitude   *float64 `json:"latitude,omitempty"`
	Longitude  *float64 `json:"longitude,omitempty"`
	RadiusKm   *float64 `json:"radius_km,omitempty"`
	Address    string   `json:"address,omitempty"` // superseded by lat/lon when both set
}

// HasPoint reports whether the filters carry a usable proximity origin.
func (f EventFilters) HasPoint() bool {
	return f.Latitude != nil && f.Longitude != nil
}

// Validate checks parse-level shape only. Callers own semantic invariants
// such as min_price <= max_price; a violated price range simply yields an
// empty result set downstream.
func (f EventFilters) Validate() error {
	if err := validateISODate(f.StartDate); err != nil {
		return fmt.Errorf("start_date: %w", err)
	}
	if err := validateISODate(f.EndDate); err != nil {
		return fmt.Errorf("end_date: %w", err)
	}
	if f.Latitude != nil && (*f.Latitude < -90 || *f.Latitude > 90) {
		return errors.New("latitude must be in [-90,90]")
	}
	if f.Longitude != nil && (*f.Longitude < -180 || *f.Longitude > 180) {
		return errors.New("longitude must be in [-180,180]")
	}
	if f.RadiusKm != nil && *f.RadiusKm < 0 {
		return errors.New("radius_km must be >= 0")
	}
	return nil
}

func validateISODate(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return fmt.Errorf("expected YYYY-MM-DD: %w", err)
	}
	return nil
}

// MapBounds is a rectangular viewport in degrees. East/west are not required
// to satisfy east > west; an antimeridian-crossing viewport is passed through
// unchanged and matches nothing across the seam.
type MapBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

func (b MapBounds) Validate() error {
	if !(b.North > b.South) {
		return errors.New("bounds must satisfy north > south")
	}
	if b.North > 90 || b.South < -90 {
		return errors.New("bounds latitude must be in [-90,90]")
	}
	if b.East < -180 || b.East > 180 || b.West < -180 || b.West > 180 {
		return errors.New("bounds longitude must be in [-180,180]")
	}
	return nil
}

// Contains reports whether the point falls inside the viewport, inclusive on
// all edges.
func (b MapBounds) Contains(lat, lon float64) bool {
	return b.South <= lat && lat <= b.North && b.West <= lon && lon <= b.East
}

func (b MapBounds) LatSpan() float64 { return b.North - b.South }

func (b MapBounds) LonSpan() float64 {
	span := b.East - b.West
	if span < 0 {
		span = -span
	}
	return span
}

// EventRecord is the canonical event entity as known to this layer. Organizer
// fields are denormalized for read efficiency and may be absent depending on
// which query path produced the record; callers treat them as optional.
type EventRecord struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	VenueName    string   `json:"venue_name,omitempty"`
	VenueAddress string   `json:"venue_address,omitempty"`
	AddressFull  string   `json:"address_full,omitempty"`
	City         string   `json:"city,omitempty"`
	Region       string   `json:"region,omitempty"`
	Country      string   `json:"country,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`

	Categories []string `json:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Capacity *int     `json:"capacity,omitempty"`

	ImageURL  string `json:"image_url,omitempty"`
	Published bool   `json:"published"`

	OrganizerID     string `json:"organizer_id,omitempty"`
	OrganizerName   string `json:"organizer_name,omitempty"`
	OrganizerHandle string `json:"organizer_handle,omitempty"`
	OrganizerAvatar string `json:"organizer_avatar,omitempty"`

	Geocoded bool `json:"geocoded"`

	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Plottable reports whether the record carries both coordinates.
func (e EventRecord) Plottable() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// MapEventProjection is the reduced per-event payload for rendering a map
// marker. Derived from EventRecord, never persisted. ClusterCell is the H3
// cell of the point at a viewport-dependent resolution, for client-side
// marker clustering.
type MapEventProjection struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Latitude    float64  `json:"latitude"`
	Longitude   float64  `json:"longitude"`
	Categories  []string `json:"categories,omitempty"`
	PriceMin    *float64 `json:"price_min,omitempty"`
	VenueName   string   `json:"venue_name,omitempty"`
	ClusterCell string   `json:"cluster_cell,omitempty"`
}

// EventDraft carries organizer-supplied fields for a create. Identity and
// timestamps are server-assigned.
type EventDraft struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	StartAt time.Time  `json:"start_at"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	VenueName    string   `json:"venue_name,omitempty"`
	VenueAddress string   `json:"venue_address,omitempty"`
	AddressFull  string   `json:"address_full,omitempty"`
	City         string   `json:"city,omitempty"`
	Region       string   `json:"region,omitempty"`
	Country      string   `json:"country,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`

	Categories []string `json:"categories,omitempty"`
	Tags       []string `json:"tags,omitempty"`

	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Capacity *int     `json:"capacity,omitempty"`

	ImageURL  string `json:"image_url,omitempty"`
	Published bool   `json:"published"`
}

func (d EventDraft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return errors.New("title is required")
	}
	if d.StartAt.IsZero() {
		return errors.New("start_at is required")
	}
	if d.EndAt != nil && d.EndAt.Before(d.StartAt) {
		return errors.New("end_at must be >= start_at")
	}
	return nil
}

// BestAddress picks the address string used for geocoding; the full address
// wins over the venue address when both are present.
func (d EventDraft) BestAddress() string {
	if s := strings.TrimSpace(d.AddressFull); s != "" {
		return s
	}
	return strings.TrimSpace(d.VenueAddress)
}

// NeedsGeocoding reports whether a create should consult the geocoder: an
// address was supplied but no explicit coordinates were.
func (d EventDraft) NeedsGeocoding() bool {
	return d.BestAddress() != "" && d.Latitude == nil && d.Longitude == nil
}

// EventPatch is a partial field replace for an update. Nil means "leave
// unchanged".
type EventPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`

	StartAt *time.Time `json:"start_at,omitempty"`
	EndAt   *time.Time `json:"end_at,omitempty"`

	VenueName    *string  `json:"venue_name,omitempty"`
	VenueAddress *string  `json:"venue_address,omitempty"`
	AddressFull  *string  `json:"address_full,omitempty"`
	City         *string  `json:"city,omitempty"`
	Region       *string  `json:"region,omitempty"`
	Country      *string  `json:"country,omitempty"`
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`

	Categories *[]string `json:"categories,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`

	PriceMin *float64 `json:"price_min,omitempty"`
	PriceMax *float64 `json:"price_max,omitempty"`
	Currency *string  `json:"currency,omitempty"`
	Capacity *int     `json:"capacity,omitempty"`

	ImageURL  *string `json:"image_url,omitempty"`
	Published *bool   `json:"published,omitempty"`
}

// AddressChanged reports whether the patch touches an address field.
func (p EventPatch) AddressChanged() bool {
	return p.AddressFull != nil || p.VenueAddress != nil
}

// BestAddress mirrors EventDraft.BestAddress over the patched fields.
func (p EventPatch) BestAddress() string {
	if p.AddressFull != nil {
		if s := strings.TrimSpace(*p.AddressFull); s != "" {
			return s
		}
	}
	if p.VenueAddress != nil {
		return strings.TrimSpace(*p.VenueAddress)
	}
	return ""
}

// NeedsGeocoding reports whether an update should consult the geocoder: the
// address changed and the patch supplies no explicit coordinates.
func (p EventPatch) NeedsGeocoding() bool {
	return p.AddressChanged() && p.BestAddress() != "" && p.Latitude == nil && p.Longitude == nil
}

func (p EventPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return errors.New("title must not be blank")
	}
	if p.StartAt != nil && p.EndAt != nil && p.EndAt.Before(*p.StartAt) {
		return errors.New("end_at must be >= start_at")
	}
	return nil
}
