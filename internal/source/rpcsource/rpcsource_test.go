package rpcsource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/core/model"
	"github.com/kolabhq/kolab-discovery/internal/source"
)

func fptr(v float64) *float64 { return &v }

func TestQueryEventsPostsRPCArgs(t *testing.T) {
	var gotArgs map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/rest/v1/rpc/get_public_events_enhanced" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotArgs); err != nil {
			t.Errorf("decode args: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	b, err := source.NewBackend(srv.URL, "anon-key", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	s := New(b, nil)

	f := model.EventFilters{
		Search:   "jazz",
		Latitude: fptr(59.33), Longitude: fptr(18.07), RadiusKm: fptr(5),
	}
	if _, err := s.QueryEvents(context.Background(), f, source.QueryOptions{Limit: 25}); err != nil {
		t.Fatalf("QueryEvents: %v", err)
	}

	if gotArgs["p_limit"] != float64(25) {
		t.Fatalf("p_limit = %v", gotArgs["p_limit"])
	}
	if gotArgs["p_search"] != "jazz" {
		t.Fatalf("p_search = %v", gotArgs["p_search"])
	}
	if gotArgs["p_radius_km"] != float64(5) {
		t.Fatalf("p_radius_km = %v", gotArgs["p_radius_km"])
	}
	if _, present := gotArgs["p_min_price"]; present {
		t.Fatal("unset filter fields must be omitted")
	}
}

func TestQueryEventsPlottableOnlyDropsUnmapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"a","title":"mapped","start_at":"2026-09-01T19:00:00Z","latitude":59.3,"longitude":18.0,"published":true,"geocoded":true},
			{"id":"b","title":"unmapped","start_at":"2026-09-02T19:00:00Z","published":true,"geocoded":false}
		]`))
	}))
	defer srv.Close()

	b, err := source.NewBackend(srv.URL, "", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	s := New(b, nil)

	rows, err := s.QueryEvents(context.Background(), model.EventFilters{}, source.QueryOptions{PlottableOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != "a" {
		t.Fatalf("rows = %+v", rows)
	}
}

func TestQueryEventsBackendFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"function does not exist"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	b, err := source.NewBackend(srv.URL, "", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	s := New(b, nil)

	_, err = s.QueryEvents(context.Background(), model.EventFilters{}, source.QueryOptions{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !apperr.IsKind(err, apperr.KindTransient) {
		t.Fatalf("error kind = %v, want transient: %v", apperr.KindOf(err), err)
	}
}
