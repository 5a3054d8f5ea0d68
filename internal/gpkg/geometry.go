// Package gpkg reads and writes point features in OGC GeoPackage files,
// which are SQLite databases with a fixed metadata schema and a binary
// geometry encoding (a small header followed by WKB).
package gpkg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/climategrid/internal/idw"
)

var (
	ErrNotGeoPackage       = errors.New("gpkg: not a GeoPackage geometry blob")
	ErrEmptyGeometry       = errors.New("gpkg: empty geometry")
	ErrUnsupportedGeometry = errors.New("gpkg: unsupported geometry type")
)

const (
	flagLittleEndian = 0x01
	flagEmpty        = 0x10
	headerSize       = 8

	wkbPoint = 1
)

// envelopeSize maps the flags envelope indicator to its byte length.
var envelopeSize = [...]int{0, 32, 48, 48, 64}

// EncodePoint returns a GeoPackage geometry blob for an XY point, little
// endian and without an envelope.
func EncodePoint(srsID int32, p idw.Point) []byte {
	b := make([]byte, headerSize+21)
	b[0], b[1] = 'G', 'P'
	b[2] = 0 // version 1.0
	b[3] = flagLittleEndian
	binary.LittleEndian.PutUint32(b[4:8], uint32(srsID))

	w := b[headerSize:]
	w[0] = 1 // WKB little endian
	binary.LittleEndian.PutUint32(w[1:5], wkbPoint)
	binary.LittleEndian.PutUint64(w[5:13], math.Float64bits(p.X))
	binary.LittleEndian.PutUint64(w[13:21], math.Float64bits(p.Y))
	return b
}

// DecodePoint parses a GeoPackage point blob and returns its XY position
// and SRS id. Z and M ordinates are ignored.
func DecodePoint(b []byte) (idw.Point, int32, error) {
	if len(b) < headerSize || b[0] != 'G' || b[1] != 'P' {
		return idw.Point{}, 0, ErrNotGeoPackage
	}
	flags := b[3]
	var order binary.ByteOrder = binary.BigEndian
	if flags&flagLittleEndian != 0 {
		order = binary.LittleEndian
	}
	srsID := int32(order.Uint32(b[4:8]))
	if flags&flagEmpty != 0 {
		return idw.Point{}, srsID, ErrEmptyGeometry
	}
	env := int(flags>>1) & 0x07
	if env >= len(envelopeSize) {
		return idw.Point{}, srsID, fmt.Errorf("%w: envelope indicator %d", ErrNotGeoPackage, env)
	}
	wkb := b[headerSize:]
	if len(wkb) < envelopeSize[env] {
		return idw.Point{}, srsID, ErrNotGeoPackage
	}
	p, err := decodeWKBPoint(wkb[envelopeSize[env]:])
	return p, srsID, err
}

func decodeWKBPoint(w []byte) (idw.Point, error) {
	if len(w) < 5 {
		return idw.Point{}, ErrNotGeoPackage
	}
	var order binary.ByteOrder
	switch w[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return idw.Point{}, fmt.Errorf("%w: WKB byte order %d", ErrNotGeoPackage, w[0])
	}
	typ := order.Uint32(w[1:5]) & 0x0FFFFFFF // drop EWKB Z/M/SRID flags
	if typ%1000 != wkbPoint {
		return idw.Point{}, fmt.Errorf("%w: WKB type %d", ErrUnsupportedGeometry, typ)
	}
	if len(w) < 21 {
		return idw.Point{}, ErrNotGeoPackage
	}
	p := idw.Point{
		X: math.Float64frombits(order.Uint64(w[5:13])),
		Y: math.Float64frombits(order.Uint64(w[13:21])),
	}
	if math.IsNaN(p.X) && math.IsNaN(p.Y) {
		return idw.Point{}, ErrEmptyGeometry
	}
	return p, nil
}
