// Package ttbintest builds synthetic ttbin streams for tests.
package ttbintest

import (
	"bytes"
	"encoding/binary"
	"math"
	"sort"
)

const (
	tagHeader    = 0x20
	tagLap       = 0x21
	tagPosition  = 0x22
	tagHeartRate = 0x25
	tagSummary   = 0x27
	tagTreadmill = 0x32
	tagSwim      = 0x34

	headerBlockSize = 0x75
)

// StandardLengths are the declared, tag-inclusive record lengths a recent
// watch writes into the header.
var StandardLengths = map[uint8]uint16{
	tagLap:       0x07,
	tagPosition:  0x1c,
	tagHeartRate: 0x07,
	tagSummary:   0x0c,
	tagTreadmill: 0x13,
	tagSwim:      0x1d,
	0x3f:         0x10,
}

// Builder appends records to an in-memory stream.
type Builder struct {
	buf bytes.Buffer
}

func New() *Builder { return &Builder{} }

// Header writes the 0x20 tag, the fixed block and one length entry per tag.
func (b *Builder) Header(version uint8, start uint32, declared map[uint8]uint16) *Builder {
	block := make([]byte, headerBlockSize)
	block[0] = version
	block[2], block[3], block[4] = 1, 9, 42
	binary.LittleEndian.PutUint16(block[5:], 0x0e)
	binary.LittleEndian.PutUint32(block[7:], start)
	binary.LittleEndian.PutUint32(block[15:], 3600)
	block[116] = uint8(len(declared))

	b.buf.WriteByte(tagHeader)
	b.buf.Write(block)

	tags := make([]int, 0, len(declared))
	for tag := range declared {
		tags = append(tags, int(tag))
	}
	sort.Ints(tags)
	for _, tag := range tags {
		entry := []byte{uint8(tag), 0, 0}
		binary.LittleEndian.PutUint16(entry[1:], declared[uint8(tag)])
		b.buf.Write(entry)
	}
	return b
}

// Record writes a tag followed by its payload.
func (b *Builder) Record(tag uint8, payload []byte) *Builder {
	b.buf.WriteByte(tag)
	b.buf.Write(payload)
	return b
}

// Raw writes bytes verbatim.
func (b *Builder) Raw(p ...byte) *Builder {
	b.buf.Write(p)
	return b
}

// Fix is one GPS record.
type Fix struct {
	Lat, Lon float64
	Speed    uint16 // 1/100 m/s
	Time     uint32
	Calories uint16
	Distance float32
	Cadence  uint8
}

func (b *Builder) Position(f Fix) *Builder {
	p := make([]byte, 0x1b)
	binary.LittleEndian.PutUint32(p[0:], uint32(int32(math.Round(f.Lat*1e7))))
	binary.LittleEndian.PutUint32(p[4:], uint32(int32(math.Round(f.Lon*1e7))))
	binary.LittleEndian.PutUint16(p[10:], f.Speed)
	binary.LittleEndian.PutUint32(p[12:], f.Time)
	binary.LittleEndian.PutUint16(p[16:], f.Calories)
	binary.LittleEndian.PutUint32(p[22:], math.Float32bits(f.Distance))
	p[26] = f.Cadence
	return b.Record(tagPosition, p)
}

func (b *Builder) HeartRate(bpm uint8) *Builder {
	p := make([]byte, 6)
	p[0] = bpm
	return b.Record(tagHeartRate, p)
}

func (b *Builder) Lap() *Builder {
	return b.Record(tagLap, make([]byte, 6))
}

func (b *Builder) Summary(activityType uint8) *Builder {
	p := make([]byte, 0x0b)
	p[0] = activityType
	return b.Record(tagSummary, p)
}

func (b *Builder) Treadmill(at uint32, distance float32, calories, steps uint32) *Builder {
	p := make([]byte, 0x12)
	binary.LittleEndian.PutUint32(p[0:], at)
	binary.LittleEndian.PutUint32(p[4:], math.Float32bits(distance))
	binary.LittleEndian.PutUint32(p[8:], calories)
	binary.LittleEndian.PutUint32(p[12:], steps)
	return b.Record(tagTreadmill, p)
}

func (b *Builder) Swim(at uint32, calories uint32) *Builder {
	p := make([]byte, 0x1c)
	binary.LittleEndian.PutUint32(p[0:], at)
	binary.LittleEndian.PutUint32(p[15:], calories)
	return b.Record(tagSwim, p)
}

// Len is the number of bytes written so far, which is also the offset of the
// next record.
func (b *Builder) Len() int { return b.buf.Len() }

func (b *Builder) Bytes() []byte { return b.buf.Bytes() }

// Segment is one lap of a synthetic run at constant speed and heart rate.
type Segment struct {
	Seconds   int
	SpeedMps  float64
	HeartRate uint8
}

const metersPerDegree = 6371000.0 * math.Pi / 180

// IntervalRun renders a running activity heading due north from 45N 7E with one
// fix per second. Each segment is its own lap spanning exactly Seconds.
func IntervalRun(start uint32, segments []Segment) []byte {
	b := New().Header(7, start, StandardLengths)
	at := start
	lat := 45.0
	distance := 0.0
	for i, seg := range segments {
		if i > 0 {
			b.Lap()
		}
		for s := 0; s <= seg.Seconds; s++ {
			if s > 0 || i > 0 {
				lat += seg.SpeedMps / metersPerDegree
				distance += seg.SpeedMps
			}
			b.Position(Fix{
				Lat:      lat,
				Lon:      7.0,
				Speed:    uint16(math.Round(seg.SpeedMps * 100)),
				Time:     at,
				Calories: uint16((at - start) / 10),
				Distance: float32(distance),
				Cadence:  3,
			})
			b.HeartRate(seg.HeartRate)
			at++
		}
	}
	b.Summary(0)
	return b.Bytes()
}
