package llmexport

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

// fieldSemantic describes one fixed-offset field of a record payload.
type fieldSemantic struct {
	name   string
	offset int
	typ    string
	units  string
	scaler func(decoded any) (any, bool)
	wall   bool // seconds since 1970 on the watch's local clock
}

var fieldSizes = map[string]int{
	"uint8":   1,
	"uint16":  2,
	"uint32":  4,
	"sint32":  4,
	"float32": 4,
}

// Offsets are relative to the first payload byte, after the tag.
var semanticsByTag = map[uint8][]fieldSemantic{
	ttbin.TagLap: {
		{name: "lap_number", offset: 0, typ: "uint8"},
		{name: "activity", offset: 1, typ: "uint8"},
		{name: "time_since_start", offset: 2, typ: "uint32", units: "s"},
	},
	ttbin.TagPosition: {
		{name: "latitude", offset: 0, typ: "sint32", units: "deg", scaler: scaleBy(1e7)},
		{name: "longitude", offset: 4, typ: "sint32", units: "deg", scaler: scaleBy(1e7)},
		{name: "heading", offset: 8, typ: "uint16", units: "deg", scaler: scaleBy(100)},
		{name: "speed", offset: 10, typ: "uint16", units: "m/s", scaler: scaleBy(100)},
		{name: "timestamp", offset: 12, typ: "uint32", units: "s_since_1970_local", wall: true},
		{name: "calories", offset: 16, typ: "uint16", units: "kcal"},
		{name: "instant_speed", offset: 18, typ: "float32", units: "m/s"},
		{name: "cumulative_distance", offset: 22, typ: "float32", units: "m"},
		{name: "cycles", offset: 26, typ: "uint8"},
	},
	ttbin.TagHeartRate: {
		{name: "heart_rate", offset: 0, typ: "uint8", units: "bpm"},
		{name: "timestamp", offset: 2, typ: "uint32", units: "s_since_1970_local", wall: true},
	},
	ttbin.TagSummary: {
		{name: "activity_type", offset: 0, typ: "uint8"},
		{name: "distance", offset: 1, typ: "float32", units: "m"},
		{name: "duration", offset: 5, typ: "uint32", units: "s"},
		{name: "calories", offset: 9, typ: "uint16", units: "kcal"},
	},
	ttbin.TagTreadmill: {
		{name: "timestamp", offset: 0, typ: "uint32", units: "s_since_1970_local", wall: true},
		{name: "distance", offset: 4, typ: "float32", units: "m"},
		{name: "calories", offset: 8, typ: "uint32", units: "kcal"},
		{name: "steps", offset: 12, typ: "uint32"},
	},
	ttbin.TagSwim: {
		{name: "timestamp", offset: 0, typ: "uint32", units: "s_since_1970_local", wall: true},
		{name: "calories", offset: 15, typ: "uint32", units: "kcal"},
	},
}

// decodeFields reads the known fields of an accepted record. Unknown tags stay
// opaque and yield nil.
func decodeFields(tag uint8, payload []byte) []FieldValue {
	semantics, ok := semanticsByTag[tag]
	if !ok {
		return nil
	}
	out := make([]FieldValue, 0, len(semantics))
	for _, s := range semantics {
		size := fieldSizes[s.typ]
		fv := FieldValue{
			Name:   s.name,
			Offset: s.offset,
			Size:   size,
			Type:   s.typ,
			Units:  s.units,
		}
		if s.offset+size > len(payload) {
			fv.DecodeError = fmt.Sprintf("payload has %d bytes, field needs %d", len(payload), s.offset+size)
			out = append(out, fv)
			continue
		}
		raw := payload[s.offset : s.offset+size]
		fv.RawHex = hex.EncodeToString(raw)
		fv.Decoded = decodeValue(s.typ, raw)
		if s.scaler != nil {
			if scaled, ok := s.scaler(fv.Decoded); ok {
				fv.Scaled = scaled
			}
		}
		if s.wall {
			fv.Timestamp = projectWallClock(binary.LittleEndian.Uint32(raw))
		}
		out = append(out, fv)
	}
	return out
}

func decodeValue(typ string, raw []byte) any {
	switch typ {
	case "uint8":
		return raw[0]
	case "uint16":
		return binary.LittleEndian.Uint16(raw)
	case "uint32":
		return binary.LittleEndian.Uint32(raw)
	case "sint32":
		return int32(binary.LittleEndian.Uint32(raw))
	case "float32":
		f := float64(math.Float32frombits(binary.LittleEndian.Uint32(raw)))
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return f
	default:
		return nil
	}
}

func scaleBy(scale float64) func(any) (any, bool) {
	return func(decoded any) (any, bool) {
		switch v := decoded.(type) {
		case int32:
			return float64(v) / scale, true
		case uint16:
			return float64(v) / scale, true
		case uint32:
			return float64(v) / scale, true
		default:
			return nil, false
		}
	}
}

func projectWallClock(raw uint32) *TimeProjection {
	if raw == 0 {
		return nil
	}
	return &TimeProjection{
		Raw:       raw,
		WallClock: time.Unix(int64(raw), 0).UTC().Format("2006-01-02T15:04:05"),
	}
}
