// Package geocode converts free-text addresses into coordinates through an
// external geocoding collaborator.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/core/observability"
)

type Point struct {
	Latitude  float64
	Longitude float64
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

// Client geocodes against a Nominatim-style /search endpoint.
type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
	logger    *slog.Logger
}

func New(baseURL string, httpClient *http.Client, logger *slog.Logger) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("geocoder base url is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse geocoder url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:      u,
		http:      httpClient,
		userAgent: "kolab-discovery/1.0",
		logger:    logger,
	}, nil
}

func (c *Client) Geocode(ctx context.Context, address string) (Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Point{}, apperr.New(apperr.KindGeocoding, "empty address")
	}

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/search"
	q := url.Values{}
	q.Set("q", address)
	q.Set("format", "json")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Point{}, apperr.Wrap(apperr.KindGeocoding, "build geocode request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("geocoder", time.Since(start).Seconds())
	if err != nil {
		observability.IncGeocode("error")
		return Point{}, apperr.Wrap(apperr.KindGeocoding, "geocode request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		observability.IncGeocode("error")
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return Point{}, apperr.Newf(apperr.KindGeocoding, "geocoder status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var hits []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		observability.IncGeocode("error")
		return Point{}, apperr.Wrap(apperr.KindGeocoding, "decode geocoder response", err)
	}
	if len(hits) == 0 {
		observability.IncGeocode("no_match")
		return Point{}, apperr.Newf(apperr.KindGeocoding, "no results for %q", address)
	}

	lat, err := strconv.ParseFloat(hits[0].Lat, 64)
	if err != nil {
		observability.IncGeocode("error")
		return Point{}, apperr.Wrap(apperr.KindGeocoding, "parse latitude", err)
	}
	lon, err := strconv.ParseFloat(hits[0].Lon, 64)
	if err != nil {
		observability.IncGeocode("error")
		return Point{}, apperr.Wrap(apperr.KindGeocoding, "parse longitude", err)
	}

	observability.IncGeocode("ok")
	c.logger.Debug("geocoded address", "lat", lat, "lon", lon)
	return Point{Latitude: lat, Longitude: lon}, nil
}
