package grid

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/banshee-data/climategrid/internal/gpkg"
	"github.com/banshee-data/climategrid/internal/idw"
	"github.com/google/go-cmp/cmp"
)

func TestNewRegular(t *testing.T) {
	g, err := NewRegular(Bounds{MinX: 0, MinY: 100, MaxX: 10000, MaxY: 15100}, 5000, 31981)
	if err != nil {
		t.Fatalf("NewRegular: %v", err)
	}

	if diff := cmp.Diff([]float64{0, 5000}, g.Xs); diff != "" {
		t.Errorf("Xs mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{100, 5100, 10100}, g.Ys); diff != "" {
		t.Errorf("Ys mismatch (-want +got):\n%s", diff)
	}
	if g.Cols() != 2 || g.Rows() != 3 || g.Len() != 6 {
		t.Fatalf("shape = %dx%d (%d points), want 2x3 (6)", g.Cols(), g.Rows(), g.Len())
	}
	want := []idw.Point{
		{X: 0, Y: 100}, {X: 5000, Y: 100},
		{X: 0, Y: 5100}, {X: 5000, Y: 5100},
		{X: 0, Y: 10100}, {X: 5000, Y: 10100},
	}
	if diff := cmp.Diff(want, g.Points); diff != "" {
		t.Errorf("Points mismatch (-want +got):\n%s", diff)
	}
	if g.SRSID != 31981 {
		t.Errorf("SRSID = %d, want 31981", g.SRSID)
	}
}

func TestNewRegular_DegenerateExtent(t *testing.T) {
	g, err := NewRegular(Bounds{MinX: 5, MinY: 5, MaxX: 5, MaxY: 5}, 1000, 0)
	if err != nil {
		t.Fatalf("NewRegular: %v", err)
	}
	if g.Len() != 1 || g.Points[0] != (idw.Point{X: 5, Y: 5}) {
		t.Errorf("degenerate extent = %v, want single origin point", g.Points)
	}
}

func TestNewRegular_Errors(t *testing.T) {
	tests := []struct {
		name string
		b    Bounds
		cell float64
	}{
		{"inverted x", Bounds{MinX: 10, MaxX: 0, MaxY: 1}, 1},
		{"inverted y", Bounds{MinY: 10, MaxY: 0, MaxX: 1}, 1},
		{"nan bound", Bounds{MinX: math.NaN(), MaxX: 1, MaxY: 1}, 1},
		{"zero cell", Bounds{MaxX: 1, MaxY: 1}, 0},
		{"negative cell", Bounds{MaxX: 1, MaxY: 1}, -5},
		{"infinite cell", Bounds{MaxX: 1, MaxY: 1}, math.Inf(1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewRegular(tc.b, tc.cell, 0); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBoundsOf(t *testing.T) {
	b, err := BoundsOf([]idw.Point{{X: 3, Y: -1}, {X: -2, Y: 4}, {X: 0, Y: 0}})
	if err != nil {
		t.Fatalf("BoundsOf: %v", err)
	}
	want := Bounds{MinX: -2, MinY: -1, MaxX: 3, MaxY: 4}
	if b != want {
		t.Errorf("BoundsOf = %+v, want %+v", b, want)
	}

	if _, err := BoundsOf(nil); !errors.Is(err, ErrEmptyGrid) {
		t.Errorf("BoundsOf(nil) error = %v, want ErrEmptyGrid", err)
	}
}

func TestFromAxes_Empty(t *testing.T) {
	if _, err := FromAxes(nil, []float64{1}, 0); !errors.Is(err, ErrEmptyGrid) {
		t.Errorf("FromAxes error = %v, want ErrEmptyGrid", err)
	}
}

func TestLoadNetCDF_Missing(t *testing.T) {
	if _, err := LoadNetCDF(t.TempDir()+"/missing.nc", "x", "y", 0); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIsRegular(t *testing.T) {
	g, err := NewRegular(Bounds{MaxX: 10, MaxY: 10}, 5, 0)
	if err != nil {
		t.Fatalf("NewRegular: %v", err)
	}
	if !g.IsRegular() {
		t.Error("regular mesh reported irregular")
	}

	p, err := FromPoints([]idw.Point{{X: 1, Y: 1}, {X: 7, Y: 3}}, 0)
	if err != nil {
		t.Fatalf("FromPoints: %v", err)
	}
	if p.IsRegular() || p.Cols() != 0 || p.Len() != 2 {
		t.Errorf("point grid: regular=%v cols=%d len=%d", p.IsRegular(), p.Cols(), p.Len())
	}
	if _, err := FromPoints(nil, 0); !errors.Is(err, ErrEmptyGrid) {
		t.Errorf("FromPoints(nil) error = %v", err)
	}
}

func TestLoadGeoPackage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "grid_5km.gpkg")
	db, err := gpkg.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := gpkg.CreateFeatureTable(ctx, db, "cells", "geom", 31981, nil); err != nil {
		t.Fatalf("CreateFeatureTable: %v", err)
	}
	want := []idw.Point{{X: 5, Y: 1}, {X: 0, Y: 0}, {X: 2, Y: 9}}
	for _, p := range want {
		if _, err := db.Exec(`INSERT INTO cells (geom) VALUES (?)`, gpkg.EncodePoint(31981, p)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	db.Close()

	g, err := LoadGeoPackage(ctx, path, "")
	if err != nil {
		t.Fatalf("LoadGeoPackage: %v", err)
	}
	if diff := cmp.Diff(want, g.Points); diff != "" {
		t.Errorf("Points mismatch (-want +got):\n%s", diff)
	}
	if g.SRSID != 31981 || g.IsRegular() {
		t.Errorf("SRSID=%d regular=%v", g.SRSID, g.IsRegular())
	}
}
