package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/banshee-data/climategrid/internal/config"
	"github.com/banshee-data/climategrid/internal/db"
	"github.com/banshee-data/climategrid/internal/export"
	"github.com/banshee-data/climategrid/internal/fsutil"
	"github.com/banshee-data/climategrid/internal/grid"
	"github.com/banshee-data/climategrid/internal/idw"
	"github.com/banshee-data/climategrid/internal/monitoring"
	"github.com/banshee-data/climategrid/internal/report"
	"github.com/banshee-data/climategrid/internal/stations"
	"github.com/banshee-data/climategrid/internal/timeutil"
)

// ErrSRSMismatch is returned when stations and grid declare different
// spatial reference systems. Reprojection is left to upstream tooling.
var ErrSRSMismatch = errors.New("stations and grid use different spatial reference systems")

// pipelineOptions holds everything one run needs besides the config file.
type pipelineOptions struct {
	cfg *config.IDWConfig
	fs  fsutil.FileSystem

	stationsPath string // overrides clean/raw selection when set
	gridNetCDF   string
	gridGPKG     string
	gridLayer    string
	xVar, yVar   string

	outDir  string
	base    string
	formats []export.Format
	png     bool
	html    bool

	store *db.DB          // nil disables run recording
	clock timeutil.Clock // nil uses the wall clock
}

type pipelineResult struct {
	runID   string
	source  stations.Source
	dataset *stations.Dataset
	result  *export.Result
	summary export.Summary
	paths   []string
}

func runPipeline(ctx context.Context, opts pipelineOptions) (*pipelineResult, error) {
	cfg := opts.cfg
	clock := opts.clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	start := clock.Now()
	out := &pipelineResult{}

	// Stations
	if opts.stationsPath != "" {
		out.source = stations.Source{Path: opts.stationsPath, Cleaned: true}
	} else {
		src, err := stations.SelectSource(opts.fs, cfg.GetStationsCleanPath(), cfg.GetStationsRawPath())
		if err != nil {
			return nil, err
		}
		out.source = src
	}
	if out.source.Cleaned {
		log.Printf("using station file %s", out.source.Path)
	} else {
		log.Printf("WARNING: cleaned station file not found, using raw data from %s", out.source.Path)
	}

	ds, err := stations.Load(ctx, opts.fs, out.source.Path, stations.Options{
		Layer:      cfg.GetStationsLayer(),
		ValueField: cfg.GetValueField(),
	})
	if err != nil {
		return nil, err
	}
	out.dataset = ds
	log.Printf("loaded %d stations (%d skipped)", len(ds.Stations), ds.Skipped)
	if len(ds.Stations) == 0 {
		return nil, fmt.Errorf("%s: %w", out.source.Path, idw.ErrEmptyInput)
	}

	// Grid
	g, err := loadGrid(ctx, opts, ds)
	if err != nil {
		return nil, err
	}
	if g.SRSID == 0 {
		g.SRSID = ds.SRSID
	}
	if ds.SRSID != 0 && ds.SRSID != g.SRSID {
		return nil, fmt.Errorf("%w: stations %d, grid %d", ErrSRSMismatch, ds.SRSID, g.SRSID)
	}
	log.Printf("grid has %d points (regular=%v, srs=%d)", g.Len(), g.IsRegular(), g.SRSID)

	// Interpolation
	engCfg := cfg.EngineConfig()
	eng, err := idw.NewEngine(ds.Stations, engCfg)
	if err != nil {
		return nil, err
	}
	progress := monitoring.NewProgressWithClock("interpolating", g.Len(), clock)
	eng.OnBatch = func(done, total int) { progress.Report(done, total) }

	values, err := eng.Interpolate(ctx, g.Points)
	if err != nil {
		return nil, fmt.Errorf("interpolate: %w", err)
	}
	if out.result, err = export.NewResult(g, values); err != nil {
		return nil, err
	}
	out.summary = export.Summarize(values)
	log.Printf("interpolation finished: %s", out.summary)

	// Outputs
	exp := &export.Exporter{
		FS:         opts.fs,
		Dir:        opts.outDir,
		Base:       opts.base,
		ValueField: cfg.GetValueField(),
		Decimals:   cfg.GetRoundDecimals(),
	}
	if out.paths, err = exp.Export(ctx, out.result, opts.formats...); err != nil {
		return nil, err
	}
	if opts.png && !g.IsRegular() {
		log.Printf("skipping heat map: %v", report.ErrNotRegular)
	} else if opts.png {
		path, err := writeReport(exp, opts.base+".png", func(w io.Writer) error {
			return report.WriteHeatmapPNG(w, out.result, ds.Stations, cfg.GetValueField())
		})
		if err != nil {
			return nil, err
		}
		out.paths = append(out.paths, path)
	}
	if opts.html {
		path, err := writeReport(exp, opts.base+".html", func(w io.Writer) error {
			return report.WriteChartHTML(w, out.result, ds.Stations, cfg.GetValueField())
		})
		if err != nil {
			return nil, err
		}
		out.paths = append(out.paths, path)
	}

	if opts.store != nil {
		run := db.Run{
			StationsPath:    out.source.Path,
			StationsCleaned: out.source.Cleaned,
			StationCount:    len(ds.Stations),
			SkippedStations: ds.Skipped,
			ValueField:      cfg.GetValueField(),
			SRSID:           g.SRSID,
			Config:          engCfg,
			Summary:         out.summary,
			Duration:        clock.Since(start),
		}
		if out.runID, err = opts.store.RecordRun(ctx, run, db.EstimatesOf(out.result)); err != nil {
			return nil, err
		}
		log.Printf("recorded run %s in %s", out.runID, opts.store.Path())
	}
	return out, nil
}

func loadGrid(ctx context.Context, opts pipelineOptions, ds *stations.Dataset) (*grid.Grid, error) {
	cfg := opts.cfg
	switch {
	case opts.gridNetCDF != "":
		return grid.LoadNetCDF(opts.gridNetCDF, opts.xVar, opts.yVar, cfg.GetSRSID())
	case opts.gridGPKG != "":
		return grid.LoadGeoPackage(ctx, opts.gridGPKG, opts.gridLayer)
	}

	b := cfg.GetGridBounds()
	if !cfg.HasGridBounds() {
		positions := make([]idw.Point, len(ds.Stations))
		for i, s := range ds.Stations {
			positions[i] = s.Position
		}
		var err error
		if b, err = grid.BoundsOf(positions); err != nil {
			return nil, fmt.Errorf("grid extent from stations: %w", err)
		}
	}
	return grid.NewRegular(b, cfg.GetCellSizeM(), cfg.GetSRSID())
}

func writeReport(exp *export.Exporter, name string, render func(io.Writer) error) (string, error) {
	w, path, err := exp.Create(name)
	if err != nil {
		return "", err
	}
	if err := render(w); err != nil {
		w.Close()
		return "", fmt.Errorf("report %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	log.Printf("wrote %s", path)
	return path, nil
}
