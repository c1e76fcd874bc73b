package ttbin

import (
	"fmt"
	"sort"
)

// Record tags with a known payload layout.
const (
	TagHeader            uint8 = 0x20
	TagLap               uint8 = 0x21
	TagPosition          uint8 = 0x22
	TagHeartRate         uint8 = 0x25
	TagSummary           uint8 = 0x27
	TagTreadmill         uint8 = 0x32
	TagSwim              uint8 = 0x34
	TagHeartRateRecovery uint8 = 0x3F
)

// RecordKind selects the decoder a tag is dispatched to.
type RecordKind int

const (
	KindUnknownFailure RecordKind = iota
	KindHeader
	KindLapBoundary
	KindPosition
	KindHeartRate
	KindSummary
	KindTreadmill
	KindSwim
	KindHeartRateRecovery
	KindGenericSkip
)

var kindNames = map[RecordKind]string{
	KindUnknownFailure:    "unknown",
	KindHeader:            "header",
	KindLapBoundary:       "lap",
	KindPosition:          "position",
	KindHeartRate:         "heart_rate",
	KindSummary:           "summary",
	KindTreadmill:         "treadmill",
	KindSwim:              "swim",
	KindHeartRateRecovery: "heart_rate_recovery",
	KindGenericSkip:       "skip",
}

func (k RecordKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RecordKind(%d)", int(k))
}

func (k RecordKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

type recordLayout struct {
	kind          RecordKind
	defaultLength int
	minLength     int
}

var knownLayouts = map[uint8]recordLayout{
	TagHeader:            {kind: KindHeader, defaultLength: headerBlockSize, minLength: headerBlockSize},
	TagLap:               {kind: KindLapBoundary, defaultLength: 0x06},
	TagPosition:          {kind: KindPosition, defaultLength: 0x1b, minLength: 0x1b},
	TagHeartRate:         {kind: KindHeartRate, defaultLength: 0x06, minLength: 1},
	TagSummary:           {kind: KindSummary, defaultLength: 0x0b, minLength: 0x0b},
	TagTreadmill:         {kind: KindTreadmill, defaultLength: 0x12, minLength: 0x12},
	TagSwim:              {kind: KindSwim, defaultLength: 0x1c, minLength: 0x1c},
	TagHeartRateRecovery: {kind: KindHeartRateRecovery, defaultLength: 0x0f},
}

// RecordLengths maps a tag to its payload length, excluding the tag byte.
type RecordLengths map[uint8]int

// Lookup returns the declared payload length for tag.
func (rl RecordLengths) Lookup(tag uint8) (int, bool) {
	n, ok := rl[tag]
	return n, ok
}

func (rl RecordLengths) lengthOr(tag uint8, def int) int {
	if n, ok := rl[tag]; ok {
		return n
	}
	return def
}

// Tags returns the declared tags in ascending order.
func (rl RecordLengths) Tags() []uint8 {
	tags := make([]uint8, 0, len(rl))
	for tag := range rl {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

func isKnownTag(tag uint8) bool {
	_, ok := knownLayouts[tag]
	return ok
}

// kindFor classifies a tag against the declared table. Only the header may
// appear without a table entry.
func kindFor(tag uint8, lengths RecordLengths) RecordKind {
	if tag == TagHeader {
		return KindHeader
	}
	if _, ok := lengths[tag]; !ok {
		return KindUnknownFailure
	}
	if layout, ok := knownLayouts[tag]; ok {
		return layout.kind
	}
	return KindGenericSkip
}
