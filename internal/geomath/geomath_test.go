package geomath

import (
	"math"
	"testing"
)

func TestDistanceSymmetricAndZero(t *testing.T) {
	pts := []Point{
		{37.0, 22.0},
		{37.001, 22.0},
		{-33.8688, 151.2093},
		{51.5007, -0.1246},
		{0, 0},
		{89.9, 179.9},
	}
	for _, a := range pts {
		if d := Distance(a.Lat, a.Lon, a.Lat, a.Lon); d != 0 {
			t.Fatalf("distance(%v,%v) = %v, want 0", a, a, d)
		}
		for _, b := range pts {
			ab := Distance(a.Lat, a.Lon, b.Lat, b.Lon)
			ba := Distance(b.Lat, b.Lon, a.Lat, a.Lon)
			if math.Abs(ab-ba) > 1e-6 {
				t.Fatalf("asymmetric distance %v<->%v: %v vs %v", a, b, ab, ba)
			}
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	cases := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want, tol              float64
	}{
		{"one degree on equator", 0, 0, 0, 1, 111194.93, 0.5},
		{"london to new york", 51.5007, -0.1246, 40.6892, -74.0445, 5574840, 50},
		{"millidegree north", 37, 22, 37.001, 22, 111.195, 0.01},
	}
	for _, tc := range cases {
		got := Distance(tc.lat1, tc.lon1, tc.lat2, tc.lon2)
		if math.Abs(got-tc.want) > tc.tol {
			t.Fatalf("%s: got %.3f want %.3f±%.3f", tc.name, got, tc.want, tc.tol)
		}
	}
}

func TestBoundingBoxAreaExample(t *testing.T) {
	pts := []Point{{37.0, 22.0}, {37.001, 22.0}, {37.0, 22.001}}
	area := BoundingBoxArea(pts)
	if area < 9800 || area > 9950 {
		t.Fatalf("area = %.1f, want ≈ 9879", area)
	}
	d, ok := Density(len(pts), area)
	if !ok || d != 3 {
		t.Fatalf("density = %d (ok=%v), want 3", d, ok)
	}
}

func TestBoundingBoxAreaDegenerate(t *testing.T) {
	if a := BoundingBoxArea(nil); a != 0 {
		t.Fatalf("empty area = %v", a)
	}
	same := []Point{{10, 10}, {10, 10}, {10, 10}}
	if a := BoundingBoxArea(same); a != 0 {
		t.Fatalf("identical points area = %v", a)
	}
	line := []Point{{10, 10}, {10.01, 10}}
	if a := BoundingBoxArea(line); a != 0 {
		t.Fatalf("collinear north-south area = %v, want 0", a)
	}
}

func TestDensityUndefinedForZeroArea(t *testing.T) {
	if _, ok := Density(5, 0); ok {
		t.Fatal("expected undefined density for zero area")
	}
	if d, ok := Density(10, 10000); !ok || d != 10 {
		t.Fatalf("density = %d ok=%v, want 10", d, ok)
	}
	if d, _ := Density(1, 40000); d != 0 {
		t.Fatalf("density = %d, want 0 (0.25 rounds down)", d)
	}
}

func TestGeohashKnownValue(t *testing.T) {
	if got := Geohash(57.64911, 10.40744, 11); got != "u4pruydqqvj" {
		t.Fatalf("geohash = %s", got)
	}
	if got := Geohash(1, 1, 0); got != "" {
		t.Fatalf("zero precision geohash = %q", got)
	}
}

func TestCellsGroupsAndOrders(t *testing.T) {
	pts := []Point{
		{37.00001, 22.00001},
		{37.00002, 22.00002},
		{38.5, 23.5},
	}
	cells := Cells(pts, 6)
	if len(cells) != 2 {
		t.Fatalf("cells = %d, want 2", len(cells))
	}
	if cells[0].Count != 2 {
		t.Fatalf("first cell count = %d, want 2", cells[0].Count)
	}
	if math.Abs(cells[0].Lat-37.000015) > 1e-9 || math.Abs(cells[0].Lon-22.000015) > 1e-9 {
		t.Fatalf("centroid = %v,%v", cells[0].Lat, cells[0].Lon)
	}
}
