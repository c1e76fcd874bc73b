package ttbin

import (
	"fmt"
	"time"
)

const (
	headerBlockSize    = 0x75
	minFileVersion     = 7
	lengthEntrySize    = 3
	maxRecordLength    = 0x1000
	invalidLengthTag   = 0xFF
	headerStartOffset  = 7
	headerUTCOffset    = 15
	headerLengthsCount = 116
)

// Header holds the fixed header block that follows the 0x20 tag.
//
//	off  size  field
//	0    2     file version (byte 0 must be >= 7)
//	2    3     firmware version
//	5    2     product id
//	7    4     start time, local wall clock as epoch seconds
//	15   4     utc offset, signed seconds
//	116  1     number of record-length entries that follow the block
type Header struct {
	FileVersion     uint16    `json:"file_version"`
	FirmwareVersion [3]uint8  `json:"firmware_version"`
	ProductID       uint16    `json:"product_id"`
	StartTime       time.Time `json:"start_time"`
	UTCOffset       int32     `json:"utc_offset_s"`
	LengthCount     int       `json:"length_count"`
}

// decodeHeader parses the header block and record-length entries at the start of
// payload. It returns the number of payload bytes consumed.
func decodeHeader(payload []byte, loc *time.Location) (Header, RecordLengths, int, error) {
	if len(payload) < headerBlockSize {
		return Header{}, nil, 0, fmt.Errorf("%w: header needs %d bytes, have %d", ErrFormat, headerBlockSize, len(payload))
	}
	if payload[0] < minFileVersion {
		return Header{}, nil, 0, fmt.Errorf("%w: file version %d is older than %d", ErrFormat, payload[0], minFileVersion)
	}

	var (
		h   Header
		err error
	)
	if h.FileVersion, err = readU16(payload, 0); err != nil {
		return Header{}, nil, 0, err
	}
	copy(h.FirmwareVersion[:], payload[2:5])
	if h.ProductID, err = readU16(payload, 5); err != nil {
		return Header{}, nil, 0, err
	}
	if h.StartTime, err = readTimestamp(payload, headerStartOffset, true, loc); err != nil {
		return Header{}, nil, 0, err
	}
	if h.UTCOffset, err = readI32(payload, headerUTCOffset); err != nil {
		return Header{}, nil, 0, err
	}
	h.LengthCount = int(payload[headerLengthsCount])

	lengths := make(RecordLengths, h.LengthCount)
	pos := headerBlockSize
	for i := 0; i < h.LengthCount; i++ {
		if err := checkBounds(payload, pos, lengthEntrySize); err != nil {
			return Header{}, nil, 0, fmt.Errorf("%w: record length entry %d of %d truncated", ErrFormat, i+1, h.LengthCount)
		}
		tag := payload[pos]
		declared, _ := readU16(payload, pos+1)
		pos += lengthEntrySize

		// The on-disk length counts the tag byte.
		length := int(declared) - 1
		if tag >= invalidLengthTag || length < 0 || length >= maxRecordLength {
			plog.Debugf("discarding record length entry tag=0x%02x len=%d", tag, declared)
			continue
		}
		lengths[tag] = length
		plog.Debugf("record length tag=0x%02x len=%d", tag, length)
	}
	return h, lengths, pos, nil
}
