// Package testutil provides shared test fixtures and assertion helpers.
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/banshee-data/climategrid/internal/gpkg"
	"github.com/banshee-data/climategrid/internal/idw"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// SampleStations is a small projected network around a 100 km square.
func SampleStations() []idw.Station {
	return []idw.Station{
		{Position: idw.Point{X: 0, Y: 0}, Value: 3},
		{Position: idw.Point{X: 100000, Y: 0}, Value: 5},
		{Position: idw.Point{X: 0, Y: 100000}, Value: 4},
		{Position: idw.Point{X: 100000, Y: 100000}, Value: 6},
		{Position: idw.Point{X: 50000, Y: 50000}, Value: 4.5},
	}
}

// WriteStationsGeoPackage writes stations as a point layer named
// "stations" with the value in valueField.
func WriteStationsGeoPackage(t *testing.T, path string, srsID int32, valueField string, stations []idw.Station) {
	t.Helper()
	ctx := context.Background()
	db, err := gpkg.Open(path)
	AssertNoError(t, err)
	defer db.Close()

	AssertNoError(t, gpkg.CreateFeatureTable(ctx, db, "stations", "geom", srsID,
		[]gpkg.Column{{Name: valueField, Type: "REAL"}}))
	insert := fmt.Sprintf("INSERT INTO stations (geom, %s) VALUES (?, ?)", gpkg.QuoteIdent(valueField))
	for _, s := range stations {
		_, err := db.ExecContext(ctx, insert, gpkg.EncodePoint(srsID, s.Position), s.Value)
		AssertNoError(t, err)
	}
}

// WriteStationsCSV writes stations to path with an x,y,<valueField> header.
func WriteStationsCSV(t *testing.T, path, valueField string, stations []idw.Station) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "x,y,%s\n", valueField)
	for _, s := range stations {
		fmt.Fprintf(&b, "%g,%g,%g\n", s.Position.X, s.Position.Y, s.Value)
	}
	AssertNoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}
