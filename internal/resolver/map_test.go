package resolver

import (
	"context"
	"math"
	"testing"

	"github.com/kolabhq/kolab-discovery/internal/apperr"
	"github.com/kolabhq/kolab-discovery/internal/core/model"
)

func TestMapProjectionDropsUnmappedRecords(t *testing.T) {
	primary := &stubSource{rows: []model.EventRecord{
		event("mapped", fptr(59.33), fptr(18.07)),
		event("unmapped", nil, nil),
	}}
	r := newTestResolver(primary, &stubSource{})

	markers, err := r.MapProjection(context.Background(), nil, model.EventFilters{})
	if err != nil {
		t.Fatalf("MapProjection: %v", err)
	}
	if len(markers) != 1 || markers[0].ID != "mapped" {
		t.Fatalf("markers = %+v", markers)
	}
	if !primary.lastOpts.PlottableOnly {
		t.Fatal("map queries must request plottable rows only")
	}
}

func TestMapProjectionFiltersByBounds(t *testing.T) {
	primary := &stubSource{rows: []model.EventRecord{
		event("inside", fptr(59.33), fptr(18.07)),
		event("north-of", fptr(61.0), fptr(18.07)),
		event("west-of", fptr(59.33), fptr(10.0)),
		event("on-edge", fptr(60.0), fptr(18.07)),
	}}
	r := newTestResolver(primary, &stubSource{})

	bounds := &model.MapBounds{North: 60, South: 59, East: 19, West: 17}
	markers, err := r.MapProjection(context.Background(), bounds, model.EventFilters{})
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]bool{}
	for _, m := range markers {
		got[m.ID] = true
	}
	if !got["inside"] {
		t.Fatal("marker inside the viewport missing")
	}
	// edges are inclusive
	if !got["on-edge"] {
		t.Fatal("marker on the viewport edge missing")
	}
	if got["north-of"] || got["west-of"] {
		t.Fatalf("out-of-viewport markers leaked: %v", got)
	}
}

func TestMapProjectionStampsClusterCells(t *testing.T) {
	primary := &stubSource{rows: []model.EventRecord{
		event("a", fptr(59.33), fptr(18.07)),
	}}
	r := newTestResolver(primary, &stubSource{})

	markers, err := r.MapProjection(context.Background(), nil, model.EventFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if markers[0].ClusterCell == "" {
		t.Fatal("marker missing its cluster cell")
	}
}

func TestMapProjectionRejectsInvalidBounds(t *testing.T) {
	r := newTestResolver(&stubSource{}, &stubSource{})
	bad := &model.MapBounds{North: 10, South: 20, East: 0, West: 0}
	_, err := r.MapProjection(context.Background(), bad, model.EventFilters{})
	if !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("kind = %v, err = %v", apperr.KindOf(err), err)
	}
}

func TestMapProjectionKeyIncludesBounds(t *testing.T) {
	primary := &stubSource{rows: []model.EventRecord{
		event("a", fptr(59.33), fptr(18.07)),
	}}
	r := newTestResolver(primary, &stubSource{})

	b1 := &model.MapBounds{North: 60, South: 59, East: 19, West: 17}
	b2 := &model.MapBounds{North: 59.5, South: 59, East: 19, West: 17}
	if _, err := r.MapProjection(context.Background(), b1, model.EventFilters{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.MapProjection(context.Background(), b2, model.EventFilters{}); err != nil {
		t.Fatal(err)
	}
	if n := primary.callCount(); n != 2 {
		t.Fatalf("different viewports must not share a cache entry, calls=%d", n)
	}
}

func TestClusterResolutionScalesWithViewport(t *testing.T) {
	world := &model.MapBounds{North: 70, South: -70, East: 170, West: -170}
	city := &model.MapBounds{North: 59.4, South: 59.3, East: 18.2, West: 18.0}

	wr := clusterResolution(world)
	cr := clusterResolution(city)
	if wr >= cr {
		t.Fatalf("world res %d should be coarser than city res %d", wr, cr)
	}
	if got := clusterResolution(nil); got != defaultClusterRes {
		t.Fatalf("nil viewport res = %d, want %d", got, defaultClusterRes)
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Stockholm to Gothenburg, roughly 400 km
	d := haversineKm(59.3293, 18.0686, 57.7089, 11.9746)
	if math.Abs(d-398) > 10 {
		t.Fatalf("distance = %.1f km", d)
	}
	if z := haversineKm(59.33, 18.07, 59.33, 18.07); z != 0 {
		t.Fatalf("zero distance = %v", z)
	}
}
