package ttbin

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// All multi-byte values in a ttbin stream are little-endian. binary.LittleEndian
// assembles them byte by byte, so the result is correct on any host.

func checkBounds(buf []byte, pos, width int) error {
	if pos < 0 || pos+width > len(buf) {
		return fmt.Errorf("%w: read of %d bytes at %d exceeds buffer of %d", ErrTruncatedRecord, width, pos, len(buf))
	}
	return nil
}

func readU8(buf []byte, pos int) (uint8, error) {
	if err := checkBounds(buf, pos, 1); err != nil {
		return 0, err
	}
	return buf[pos], nil
}

func readU16(buf []byte, pos int) (uint16, error) {
	if err := checkBounds(buf, pos, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[pos:]), nil
}

func readU32(buf []byte, pos int) (uint32, error) {
	if err := checkBounds(buf, pos, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[pos:]), nil
}

func readI32(buf []byte, pos int) (int32, error) {
	v, err := readU32(buf, pos)
	return int32(v), err
}

func readFloat(buf []byte, pos int) (float32, error) {
	bits, err := readU32(buf, pos)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// readTimestamp decodes a u32 count of Unix seconds. The watch writes its local
// wall clock as if it were UTC; with toUTC set the UTC wall-clock fields are
// re-labelled as wall-clock fields in loc instead of being converted.
func readTimestamp(buf []byte, pos int, toUTC bool, loc *time.Location) (time.Time, error) {
	secs, err := readU32(buf, pos)
	if err != nil {
		return time.Time{}, err
	}
	return timestampFromSeconds(secs, toUTC, loc), nil
}

func timestampFromSeconds(secs uint32, toUTC bool, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	t := time.Unix(int64(secs), 0)
	if !toUTC {
		return t.In(loc)
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), 0, loc)
}
