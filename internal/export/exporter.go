package export

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/climategrid/internal/fsutil"
	"github.com/banshee-data/climategrid/internal/monitoring"
	"github.com/banshee-data/climategrid/internal/security"
)

// Format is an output file type, named by its extension.
type Format string

const (
	FormatCSV        Format = "csv"
	FormatNetCDF     Format = "nc"
	FormatGeoPackage Format = "gpkg"
	FormatProto      Format = "pb"
)

// Exporter writes a result to Dir/Base.<ext> for each requested format.
// NetCDF and GeoPackage files are written through their own drivers and
// need FS to be backed by the real filesystem.
type Exporter struct {
	FS         fsutil.FileSystem
	Dir        string
	Base       string
	ValueField string
	Decimals   int
}

// Path returns the output path for format f.
func (e *Exporter) Path(f Format) string {
	return filepath.Join(e.Dir, e.Base+"."+string(f))
}

// Export writes r in every format and returns the written paths in order.
func (e *Exporter) Export(ctx context.Context, r *Result, formats ...Format) ([]string, error) {
	if err := security.ValidateFilename(e.Base); err != nil {
		return nil, err
	}
	if err := e.FS.MkdirAll(e.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var paths []string
	for _, f := range formats {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := e.Path(f)
		var err error
		switch f {
		case FormatCSV:
			err = e.stream(path, func(w io.Writer) error { return WriteCSV(w, r, e.Decimals) })
		case FormatProto:
			err = e.stream(path, func(w io.Writer) error { return WriteProtoStream(w, r) })
		case FormatNetCDF:
			err = WriteNetCDF(path, r, e.ValueField)
		case FormatGeoPackage:
			err = WriteGeoPackage(ctx, path, r, e.ValueField, e.Decimals)
		default:
			err = fmt.Errorf("unknown format %q", f)
		}
		if err != nil {
			return paths, fmt.Errorf("export %s: %w", path, err)
		}
		monitoring.Logf("wrote %s", path)
		paths = append(paths, path)
	}
	return paths, nil
}

// Create opens Dir/name for writing through FS. It is used for the report
// files that are not a Format.
func (e *Exporter) Create(name string) (io.WriteCloser, string, error) {
	if err := security.ValidateFilename(name); err != nil {
		return nil, "", err
	}
	if err := e.FS.MkdirAll(e.Dir, 0755); err != nil {
		return nil, "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(e.Dir, name)
	w, err := e.FS.Create(path)
	return w, path, err
}

func (e *Exporter) stream(path string, write func(io.Writer) error) error {
	w, err := e.FS.Create(path)
	if err != nil {
		return err
	}
	if err := write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
