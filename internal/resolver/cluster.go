package resolver

import (
	h3 "github.com/uber/h3-go/v4"

	"github.com/kolabhq/kolab-discovery/internal/core/model"
)

// defaultClusterRes applies when no viewport is supplied (a city-scale
// grouping).
const defaultClusterRes = 7

// clusterResolution picks an H3 resolution from the viewport span so that
// markers cluster coarser the further the map is zoomed out.
func clusterResolution(b *model.MapBounds) int {
	if b == nil {
		return defaultClusterRes
	}
	span := b.LatSpan()
	if s := b.LonSpan(); s > span {
		span = s
	}
	switch {
	case span > 20:
		return 3
	case span > 10:
		return 4
	case span > 5:
		return 5
	case span > 2:
		return 6
	case span > 0.5:
		return 7
	case span > 0.1:
		return 8
	default:
		return 9
	}
}

// clusterCell returns the H3 cell string for the point, or "" if the
// library rejects the input (markers then simply go unclustered).
func clusterCell(lat, lon float64, res int) string {
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, res)
	if err != nil || !cell.IsValid() {
		return ""
	}
	return cell.String()
}
