// Command idwgrid interpolates station observations onto a grid with
// inverse distance weighting and writes the result files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/climategrid/internal/config"
	"github.com/banshee-data/climategrid/internal/db"
	"github.com/banshee-data/climategrid/internal/export"
	"github.com/banshee-data/climategrid/internal/fsutil"
	"github.com/banshee-data/climategrid/internal/security"
	"github.com/banshee-data/climategrid/internal/version"
)

var (
	configPath  = flag.String("config", config.DefaultConfigPath, "Interpolation config (JSON)")
	stationsArg = flag.String("stations", "", "Station file (.gpkg or .csv); overrides the clean/raw paths in the config")
	gridNetCDF  = flag.String("grid-netcdf", "", "Read grid coordinates from this NetCDF file instead of generating a regular grid")
	gridGPKG    = flag.String("grid-gpkg", "", "Read grid points from this GeoPackage layer instead of generating a regular grid")
	gridLayer   = flag.String("grid-layer", "", "GeoPackage grid layer (default: first feature table)")
	xVar        = flag.String("x-var", "x", "NetCDF x coordinate variable")
	yVar        = flag.String("y-var", "y", "NetCDF y coordinate variable")
	outDir      = flag.String("out-dir", "output", "Output directory")
	baseName    = flag.String("name", "grid_clima_interpolated", "Output file base name")
	dbPath      = flag.String("db", "", "Record the run in this SQLite results store")
	writeCSV    = flag.Bool("csv", true, "Write CSV output")
	writeNetCDF = flag.Bool("netcdf", false, "Write NetCDF output")
	writeGPKG   = flag.Bool("gpkg", true, "Write GeoPackage output")
	writePB     = flag.Bool("pb", false, "Write length-delimited protobuf output")
	writePNG    = flag.Bool("png", false, "Write a heat map PNG")
	writeHTML   = flag.Bool("html", false, "Write an interactive HTML chart")
	workers     = flag.Int("workers", 0, "Concurrent batches (0: use the config value)")
	adminListen = flag.String("admin-listen", "", "After the run, serve debug routes over the results store on this address")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n       %s [-db path] migrate <action>\n\nFlags:\n", os.Args[0], os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if flag.Arg(0) == "migrate" {
		if *dbPath == "" {
			log.Fatal("-db is required for migrate")
		}
		db.RunMigrateCommand(flag.Args()[1:], *dbPath)
		return
	}

	cfg, err := config.LoadIDWConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *workers > 0 {
		cfg.Workers = workers
	}
	log.Printf("%s: power=%.1f max_distance=%.0fkm neighbours=%d..%d batch=%d",
		version.String(), cfg.GetPower(), cfg.GetMaxDistanceMeters()/1000,
		cfg.GetMinNeighbors(), cfg.GetMaxNeighbors(), cfg.GetBatchSize())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store *db.DB
	if *dbPath != "" {
		if store, err = db.NewDB(*dbPath); err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
	}

	res, err := runPipeline(ctx, pipelineOptions{
		cfg:          cfg,
		fs:           fsutil.OSFileSystem{},
		stationsPath: *stationsArg,
		gridNetCDF:   *gridNetCDF,
		gridGPKG:     *gridGPKG,
		gridLayer:    *gridLayer,
		xVar:         *xVar,
		yVar:         *yVar,
		outDir:       *outDir,
		base:         security.SanitizeFilename(*baseName),
		formats:      selectedFormats(),
		png:          *writePNG,
		html:         *writeHTML,
		store:        store,
	})
	if err != nil {
		log.Fatalf("interpolation failed: %v", err)
	}
	log.Printf("done: %d files written", len(res.paths))

	if *adminListen != "" {
		if store == nil {
			log.Fatal("-admin-listen requires -db")
		}
		serveAdmin(ctx, store, *adminListen)
	}
}

func selectedFormats() []export.Format {
	var formats []export.Format
	for _, f := range []struct {
		on     bool
		format export.Format
	}{
		{*writeCSV, export.FormatCSV},
		{*writeNetCDF, export.FormatNetCDF},
		{*writeGPKG, export.FormatGeoPackage},
		{*writePB, export.FormatProto},
	} {
		if f.on {
			formats = append(formats, f.format)
		}
	}
	return formats
}

// serveAdmin serves the results store debug pages until ctx is cancelled.
func serveAdmin(ctx context.Context, store *db.DB, addr string) {
	mux := http.NewServeMux()
	store.AttachAdminRoutes(mux)

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	log.Printf("admin routes on http://%s/debug/", host)

	<-ctx.Done()
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		server.Close()
	}
}
