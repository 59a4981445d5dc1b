package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/auth"
	"github.com/kolabhq/kolab-discovery/internal/cache/querycache"
	"github.com/kolabhq/kolab-discovery/internal/core/model"
	"github.com/kolabhq/kolab-discovery/internal/geocode"
	"github.com/kolabhq/kolab-discovery/internal/mutation"
	"github.com/kolabhq/kolab-discovery/internal/resolver"
	"github.com/kolabhq/kolab-discovery/internal/source"
)

func TestParseFiltersFull(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/v1/events?search=jazz&categories=music,food,&min_price=10&max_price=99.5"+
			"&start_date=2026-09-01&end_date=2026-09-30&lat=59.33&lon=18.07&radius_km=5&address=Stockholm", nil)

	f, err := ParseFilters(req)
	if err != nil {
		t.Fatalf("ParseFilters: %v", err)
	}
	if f.Search != "jazz" || f.Address != "Stockholm" {
		t.Fatalf("filters = %+v", f)
	}
	if len(f.Categories) != 2 || f.Categories[0] != "music" || f.Categories[1] != "food" {
		t.Fatalf("categories = %v", f.Categories)
	}
	if f.MinPrice == nil || *f.MinPrice != 10 || f.MaxPrice == nil || *f.MaxPrice != 99.5 {
		t.Fatalf("prices = %v %v", f.MinPrice, f.MaxPrice)
	}
	if f.StartDate != "2026-09-01" || f.EndDate != "2026-09-30" {
		t.Fatalf("dates = %q %q", f.StartDate, f.EndDate)
	}
	if !f.HasPoint() || *f.RadiusKm != 5 {
		t.Fatalf("point = %v %v %v", f.Latitude, f.Longitude, f.RadiusKm)
	}
}

func TestParseFiltersEmpty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	f, err := ParseFilters(req)
	if err != nil {
		t.Fatal(err)
	}
	if f.Search != "" || f.Categories != nil || f.MinPrice != nil || f.HasPoint() {
		t.Fatalf("filters = %+v", f)
	}
}

func TestParseFiltersRejectsBadValues(t *testing.T) {
	for _, q := range []string{
		"min_price=ten",
		"lat=91",
		"radius_km=-1",
		"start_date=01-09-2026",
	} {
		req := httptest.NewRequest(http.MethodGet, "/v1/events?"+q, nil)
		if _, err := ParseFilters(req); err == nil {
			t.Errorf("%q: expected error", q)
		}
	}
}

func TestParseBounds(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/events/map?bounds=60,59,19,17", nil)
	b, err := ParseBounds(req)
	if err != nil {
		t.Fatalf("ParseBounds: %v", err)
	}
	if b.North != 60 || b.South != 59 || b.East != 19 || b.West != 17 {
		t.Fatalf("bounds = %+v", b)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/events/map", nil)
	if b, err := ParseBounds(req); err != nil || b != nil {
		t.Fatalf("missing bounds should be nil,nil: %v %v", b, err)
	}

	for _, q := range []string{"bounds=60,59,19", "bounds=a,b,c,d", "bounds=59,60,19,17"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/events/map?"+q, nil)
		if _, err := ParseBounds(req); err == nil {
			t.Errorf("%q: expected error", q)
		}
	}
}

// test doubles for a full handler round-trip

type stubSource struct{ rows []model.EventRecord }

func (s *stubSource) QueryEvents(context.Context, model.EventFilters, source.QueryOptions) ([]model.EventRecord, error) {
	return s.rows, nil
}

type stubActors struct{ actor auth.Actor }

func (s *stubActors) Resolve(_ context.Context, token string) (auth.Actor, error) {
	if token != s.actor.Token {
		return auth.Actor{}, apperr.New(apperr.KindAuthRequired, "unknown token")
	}
	return s.actor, nil
}

type stubWriter struct{}

func (stubWriter) InsertEvent(_ context.Context, _ string, row map[string]any) (model.EventRecord, error) {
	return model.EventRecord{ID: "evt-1", Title: row["title"].(string)}, nil
}

func (stubWriter) UpdateEvent(_ context.Context, _, id, _ string, _ map[string]any) (model.EventRecord, error) {
	return model.EventRecord{ID: id}, nil
}

type stubGeocoder struct{}

func (stubGeocoder) Geocode(context.Context, string) (geocode.Point, error) {
	return geocode.Point{}, apperr.New(apperr.KindGeocoding, "unused")
}

func newTestServer(t *testing.T, rows []model.EventRecord) *httptest.Server {
	t.Helper()
	res := resolver.New(resolver.Config{
		Primary:  &stubSource{rows: rows},
		Fallback: &stubSource{},
		Cache:    querycache.New(),
	})
	pipe := mutation.New(nil, stubWriter{}, stubGeocoder{}, res)
	actors := &stubActors{actor: auth.Actor{ID: "user-1", Token: "good-token"}}

	h := NewHandler(nil, res, pipe, actors)
	r := chi.NewRouter()
	h.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func fptr(v float64) *float64 { return &v }

func TestFeedEndpoint(t *testing.T) {
	rows := []model.EventRecord{{
		ID: "evt-1", Title: "Jazz Night",
		StartAt: time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC), Published: true,
	}}
	srv := newTestServer(t, rows)

	resp, err := http.Get(srv.URL + "/v1/events?search=jazz")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Events []model.EventRecord `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Events) != 1 || body.Events[0].ID != "evt-1" {
		t.Fatalf("events = %+v", body.Events)
	}
}

func TestFeedEndpointRejectsBadFilters(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/v1/events?lat=999")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Kind != "validation" {
		t.Fatalf("kind = %q", body.Error.Kind)
	}
}

func TestMapEndpoint(t *testing.T) {
	rows := []model.EventRecord{{
		ID: "evt-1", Title: "Jazz Night",
		StartAt:  time.Date(2026, 9, 1, 19, 0, 0, 0, time.UTC),
		Latitude: fptr(59.33), Longitude: fptr(18.07), Published: true,
	}}
	srv := newTestServer(t, rows)

	resp, err := http.Get(srv.URL + "/v1/events/map?bounds=60,59,19,17")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Markers []model.MapEventProjection `json:"markers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Markers) != 1 || body.Markers[0].ID != "evt-1" {
		t.Fatalf("markers = %+v", body.Markers)
	}
	if body.Markers[0].ClusterCell == "" {
		t.Fatal("marker missing cluster cell")
	}
}

func TestCreateEndpointRequiresAuth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp, err := http.Post(srv.URL+"/v1/events", "application/json",
		strings.NewReader(`{"title":"x","start_at":"2026-09-01T19:00:00Z"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestCreateEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/events",
		strings.NewReader(`{"title":"Jazz Night","start_at":"2026-09-01T19:00:00Z"}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var rec model.EventRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != "evt-1" || rec.Title != "Jazz Night" {
		t.Fatalf("rec = %+v", rec)
	}
}

func TestUpdateEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/v1/events/evt-7",
		strings.NewReader(`{"title":"Renamed"}`))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var rec model.EventRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID != "evt-7" {
		t.Fatalf("rec = %+v", rec)
	}
}
