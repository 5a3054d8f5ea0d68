package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/banshee-data/climategrid/internal/idw"
)

// Field numbers of a stream record.
const (
	fieldIndex     protowire.Number = 1
	fieldX         protowire.Number = 2
	fieldY         protowire.Number = 3
	fieldEstimate  protowire.Number = 4
	fieldNeighbors protowire.Number = 5
)

// Record is one grid point read back from a protobuf stream.
type Record struct {
	Index    int
	Position idw.Point
	Value    idw.InterpolatedValue
}

func appendRecord(b []byte, rec Record) []byte {
	b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Index))
	b = protowire.AppendTag(b, fieldX, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(rec.Position.X))
	b = protowire.AppendTag(b, fieldY, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(rec.Position.Y))
	b = protowire.AppendTag(b, fieldEstimate, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(rec.Value.Estimate))
	b = protowire.AppendTag(b, fieldNeighbors, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(rec.Value.NeighborCount))
	return b
}

// WriteProtoStream writes every grid point as a length-delimited protobuf
// message, the framing used by writeDelimitedTo in other protobuf runtimes.
func WriteProtoStream(w io.Writer, r *Result) error {
	bw := bufio.NewWriter(w)
	var msg, frame []byte
	for i, p := range r.Grid.Points {
		msg = appendRecord(msg[:0], Record{Index: i, Position: p, Value: r.Values[i]})
		frame = protowire.AppendBytes(frame[:0], msg)
		if _, err := bw.Write(frame); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadProtoStream decodes a stream written by WriteProtoStream. Unknown
// fields are skipped.
func ReadProtoStream(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var out []Record
	for len(data) > 0 {
		msg, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("record %d framing: %w", len(out), protowire.ParseError(n))
		}
		data = data[n:]
		rec, err := parseRecord(msg)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
	return out, nil
}

var errWireType = errors.New("unexpected wire type")

func parseRecord(b []byte) (Record, error) {
	var rec Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, protowire.ParseError(n)
		}
		b = b[n:]

		switch num {
		case fieldIndex, fieldNeighbors:
			if typ != protowire.VarintType {
				return rec, fmt.Errorf("field %d: %w %d", num, errWireType, typ)
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return rec, protowire.ParseError(n)
			}
			b = b[n:]
			if num == fieldIndex {
				rec.Index = int(v)
			} else {
				rec.Value.NeighborCount = int(v)
			}
		case fieldX, fieldY, fieldEstimate:
			if typ != protowire.Fixed64Type {
				return rec, fmt.Errorf("field %d: %w %d", num, errWireType, typ)
			}
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return rec, protowire.ParseError(n)
			}
			b = b[n:]
			f := math.Float64frombits(v)
			switch num {
			case fieldX:
				rec.Position.X = f
			case fieldY:
				rec.Position.Y = f
			default:
				rec.Value.Estimate = f
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return rec, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return rec, nil
}
