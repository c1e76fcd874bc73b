package ttbin

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestReadersAreLittleEndian(t *testing.T) {
	buf := []byte{0x01, 0x02, 0x03, 0x04, 0xff, 0xff, 0xff, 0xff}

	u16, err := readU16(buf, 0)
	if err != nil || u16 != 0x0201 {
		t.Fatalf("readU16 = %#x, %v", u16, err)
	}
	u32, err := readU32(buf, 0)
	if err != nil || u32 != 0x04030201 {
		t.Fatalf("readU32 = %#x, %v", u32, err)
	}
	i32, err := readI32(buf, 4)
	if err != nil || i32 != -1 {
		t.Fatalf("readI32 = %d, %v", i32, err)
	}

	bits := math.Float32bits(2.5)
	fbuf := []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
	f, err := readFloat(fbuf, 0)
	if err != nil || f != 2.5 {
		t.Fatalf("readFloat = %v, %v", f, err)
	}
}

func TestReadersRejectOutOfBounds(t *testing.T) {
	buf := []byte{1, 2, 3}
	checks := map[string]func() error{
		"u8 past end":  func() error { _, err := readU8(buf, 3); return err },
		"u16 past end": func() error { _, err := readU16(buf, 2); return err },
		"u32 short":    func() error { _, err := readU32(buf, 0); return err },
		"i32 negative": func() error { _, err := readI32(buf, -1); return err },
		"float short":  func() error { _, err := readFloat(buf, 1); return err },
		"timestamp":    func() error { _, err := readTimestamp(buf, 0, true, time.UTC); return err },
	}
	for name, check := range checks {
		if err := check(); !errors.Is(err, ErrTruncatedRecord) {
			t.Fatalf("%s: expected ErrTruncatedRecord, got %v", name, err)
		}
	}
}

func TestReadTimestampKeepsWatchWallClock(t *testing.T) {
	zone := time.FixedZone("CET", 3600)
	buf := []byte{0, 0, 0, 0}
	secs := uint32(1700000000) // 2023-11-14 22:13:20 UTC
	buf[0], buf[1], buf[2], buf[3] = byte(secs), byte(secs>>8), byte(secs>>16), byte(secs>>24)

	local, err := readTimestamp(buf, 0, true, zone)
	if err != nil {
		t.Fatalf("readTimestamp error: %v", err)
	}
	want := time.Date(2023, 11, 14, 22, 13, 20, 0, zone)
	if !local.Equal(want) {
		t.Fatalf("expected %v, got %v", want, local)
	}

	instant, err := readTimestamp(buf, 0, false, zone)
	if err != nil {
		t.Fatalf("readTimestamp error: %v", err)
	}
	if !instant.Equal(time.Unix(int64(secs), 0)) {
		t.Fatalf("expected instant %v, got %v", time.Unix(int64(secs), 0), instant)
	}
	if instant.Location() != zone {
		t.Fatalf("expected location %v, got %v", zone, instant.Location())
	}
}
