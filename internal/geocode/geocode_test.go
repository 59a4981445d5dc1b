package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
)

func TestGeocodeParsesFirstHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "Slottsbacken 1, Stockholm" {
			t.Errorf("q = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "1" {
			t.Errorf("limit = %q", got)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("User-Agent is required by public nominatim instances")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"59.3257","lon":"18.0719"}]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}

	pt, err := c.Geocode(context.Background(), "Slottsbacken 1, Stockholm")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if pt.Latitude != 59.3257 || pt.Longitude != 18.0719 {
		t.Fatalf("point = %+v", pt)
	}
}

func TestGeocodeNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Geocode(context.Background(), "Atlantis Main Square")
	if !apperr.IsKind(err, apperr.KindGeocoding) {
		t.Fatalf("kind = %v, err = %v", apperr.KindOf(err), err)
	}
}

func TestGeocodeUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "over quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := New(srv.URL, srv.Client(), nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Geocode(context.Background(), "anywhere")
	if !apperr.IsKind(err, apperr.KindGeocoding) {
		t.Fatalf("kind = %v", apperr.KindOf(err))
	}
}

func TestGeocodeEmptyAddress(t *testing.T) {
	c, err := New("http://geocoder.local", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Geocode(context.Background(), "   "); !apperr.IsKind(err, apperr.KindGeocoding) {
		t.Fatalf("kind = %v", apperr.KindOf(err))
	}
}
