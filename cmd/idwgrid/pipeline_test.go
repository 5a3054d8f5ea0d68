package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/climategrid/internal/config"
	"github.com/banshee-data/climategrid/internal/db"
	"github.com/banshee-data/climategrid/internal/export"
	"github.com/banshee-data/climategrid/internal/fsutil"
	"github.com/banshee-data/climategrid/internal/stations"
	"github.com/banshee-data/climategrid/internal/testutil"
	"github.com/banshee-data/climategrid/internal/timeutil"
)

func testConfig(t *testing.T, clean, raw string) *config.IDWConfig {
	t.Helper()
	cfg := config.DefaultIDWConfig()
	cell := 25000.0
	field := "rainfall"
	cfg.CellSizeM = &cell
	cfg.ValueField = &field
	cfg.StationsCleanPath = &clean
	cfg.StationsRawPath = &raw
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunPipeline_GeoPackageToAllFormats(t *testing.T) {
	dir := t.TempDir()
	clean := filepath.Join(dir, "stations_clean.gpkg")
	testutil.WriteStationsGeoPackage(t, clean, 31981, "rainfall", testutil.SampleStations())

	store, err := db.NewDB(filepath.Join(dir, "runs.db"))
	require.NoError(t, err)
	defer store.Close()

	res, err := runPipeline(context.Background(), pipelineOptions{
		cfg:     testConfig(t, clean, filepath.Join(dir, "missing.gpkg")),
		fs:      fsutil.OSFileSystem{},
		xVar:    "x",
		yVar:    "y",
		outDir:  filepath.Join(dir, "out"),
		base:    "grid",
		formats: []export.Format{export.FormatCSV, export.FormatNetCDF, export.FormatGeoPackage, export.FormatProto},
		png:     true,
		html:    true,
		store:   store,
		clock:   timeutil.NewMockClock(time.Unix(1700000000, 0)),
	})
	require.NoError(t, err)

	assert.True(t, res.source.Cleaned)
	assert.Equal(t, int32(31981), res.result.Grid.SRSID)
	// 0..100 km at 25 km, half-open on both axes.
	assert.Equal(t, 16, res.result.Grid.Len())
	assert.Equal(t, 16, res.summary.Count)
	assert.Zero(t, res.summary.Fallback)
	assert.InDelta(t, 3, res.result.Values[0].Estimate, 1e-6)

	require.Len(t, res.paths, 6)
	for _, ext := range []string{"csv", "nc", "gpkg", "pb", "png", "html"} {
		info, err := os.Stat(filepath.Join(dir, "out", "grid."+ext))
		require.NoError(t, err, ext)
		assert.Positive(t, info.Size(), ext)
	}

	run, err := store.Run(context.Background(), res.runID)
	require.NoError(t, err)
	assert.Equal(t, 5, run.StationCount)
	assert.Equal(t, "rainfall", run.ValueField)
	assert.Zero(t, run.Duration)
	estimates, err := store.RunEstimates(context.Background(), res.runID)
	require.NoError(t, err)
	assert.Len(t, estimates, 16)
}

func TestRunPipeline_RawFallbackCSV(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "stations_raw.csv")
	testutil.WriteStationsCSV(t, raw, "rainfall", testutil.SampleStations())

	res, err := runPipeline(context.Background(), pipelineOptions{
		cfg:     testConfig(t, filepath.Join(dir, "stations_clean.gpkg"), raw),
		fs:      fsutil.OSFileSystem{},
		outDir:  filepath.Join(dir, "out"),
		base:    "grid",
		formats: []export.Format{export.FormatCSV},
	})
	require.NoError(t, err)
	assert.False(t, res.source.Cleaned)
	assert.Equal(t, raw, res.source.Path)
	assert.Equal(t, int32(0), res.result.Grid.SRSID)
	assert.Equal(t, []string{filepath.Join(dir, "out", "grid.csv")}, res.paths)
	assert.Empty(t, res.runID)
}

func TestRunPipeline_Errors(t *testing.T) {
	dir := t.TempDir()
	stationsPath := filepath.Join(dir, "stations.gpkg")
	testutil.WriteStationsGeoPackage(t, stationsPath, 31981, "rainfall", testutil.SampleStations())

	t.Run("no station file", func(t *testing.T) {
		_, err := runPipeline(context.Background(), pipelineOptions{
			cfg:    testConfig(t, filepath.Join(dir, "a.gpkg"), filepath.Join(dir, "b.gpkg")),
			fs:     fsutil.OSFileSystem{},
			outDir: filepath.Join(dir, "out"),
			base:   "grid",
		})
		assert.ErrorIs(t, err, stations.ErrNoStationsFile)
	})

	t.Run("srs mismatch", func(t *testing.T) {
		cfg := testConfig(t, "", "")
		srs := int32(4326)
		cfg.SRSID = &srs
		_, err := runPipeline(context.Background(), pipelineOptions{
			cfg:          cfg,
			fs:           fsutil.OSFileSystem{},
			stationsPath: stationsPath,
			outDir:       filepath.Join(dir, "out"),
			base:         "grid",
		})
		assert.True(t, errors.Is(err, ErrSRSMismatch), "got %v", err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := runPipeline(ctx, pipelineOptions{
			cfg:          testConfig(t, "", ""),
			fs:           fsutil.OSFileSystem{},
			stationsPath: stationsPath,
			outDir:       filepath.Join(dir, "out"),
			base:         "grid",
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRunPipeline_GeoPackageGridSkipsHeatmap(t *testing.T) {
	dir := t.TempDir()
	stationsPath := filepath.Join(dir, "stations.gpkg")
	testutil.WriteStationsGeoPackage(t, stationsPath, 31981, "rainfall", testutil.SampleStations())
	gridPath := filepath.Join(dir, "targets.gpkg")
	testutil.WriteStationsGeoPackage(t, gridPath, 31981, "unused", testutil.SampleStations()[:2])

	res, err := runPipeline(context.Background(), pipelineOptions{
		cfg:          testConfig(t, "", ""),
		fs:           fsutil.OSFileSystem{},
		stationsPath: stationsPath,
		gridGPKG:     gridPath,
		outDir:       filepath.Join(dir, "out"),
		base:         "grid",
		formats:      []export.Format{export.FormatProto},
		png:          true,
	})
	require.NoError(t, err)
	assert.False(t, res.result.Grid.IsRegular())
	assert.Len(t, res.result.Values, 2)
	assert.Len(t, res.paths, 1)
	_, err = os.Stat(filepath.Join(dir, "out", "grid.png"))
	assert.True(t, os.IsNotExist(err))
}
