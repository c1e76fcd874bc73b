package ttbin

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/lucasjlepore/ttbin-analyzer/internal/ttbintest"
)

const testStart = 1700000000

var approx = cmpopts.EquateApprox(0, 1e-6)

func toStored(declared map[uint8]uint16) RecordLengths {
	out := make(RecordLengths, len(declared))
	for tag, n := range declared {
		out[tag] = int(n) - 1
	}
	return out
}

func decodeUTC(t *testing.T, data []byte, forgiving bool) *Result {
	t.Helper()
	res, err := Decode(data, Options{Forgiving: forgiving, Location: time.UTC})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	return res
}

func TestDecodeSinglePositionRecord(t *testing.T) {
	data := ttbintest.New().
		Header(7, testStart, map[uint8]uint16{TagPosition: 0x1c}).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Speed: 250, Time: 1000, Calories: 10, Distance: 100, Cadence: 80}).
		Bytes()

	res := decodeUTC(t, data, false)
	act := res.Activity
	if len(act.Laps) != 1 {
		t.Fatalf("expected 1 lap, got %d", len(act.Laps))
	}
	if len(act.Laps[0].Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(act.Laps[0].Points))
	}

	want := &TrackPoint{
		Time:               time.Unix(1000, 0).UTC(),
		Latitude:           45.0,
		Longitude:          7.0,
		Speed:              2.5,
		Calories:           10,
		CumulativeDistance: 100,
		Cadence:            80,
		HeartRate:          HeartRateUnset,
	}
	if diff := cmp.Diff(want, act.Laps[0].Points[0], approx); diff != "" {
		t.Fatalf("point mismatch (-want +got):\n%s", diff)
	}
	if act.Sport != SportOther {
		t.Fatalf("expected default sport Other, got %v", act.Sport)
	}
	if got := res.Lengths[TagPosition]; got != 0x1b {
		t.Fatalf("expected stored position length 0x1b, got %#x", got)
	}
}

func TestDecodeHeaderFields(t *testing.T) {
	data := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths).Bytes()

	res := decodeUTC(t, data, false)
	h := res.Activity.Header
	if h.FileVersion != 7 {
		t.Fatalf("unexpected file version: %d", h.FileVersion)
	}
	if h.FirmwareVersion != [3]uint8{1, 9, 42} {
		t.Fatalf("unexpected firmware version: %v", h.FirmwareVersion)
	}
	if h.ProductID != 0x0e {
		t.Fatalf("unexpected product id: %d", h.ProductID)
	}
	if h.UTCOffset != 3600 {
		t.Fatalf("unexpected utc offset: %d", h.UTCOffset)
	}
	if h.LengthCount != len(ttbintest.StandardLengths) {
		t.Fatalf("unexpected length count: %d", h.LengthCount)
	}
	if !res.Activity.Date.Equal(time.Unix(testStart, 0)) {
		t.Fatalf("unexpected activity date: %v", res.Activity.Date)
	}
	if len(res.Activity.Laps) != 1 {
		t.Fatalf("expected header to open one lap, got %d", len(res.Activity.Laps))
	}
	if diff := cmp.Diff(toStored(ttbintest.StandardLengths), res.Lengths); diff != "" {
		t.Fatalf("length table mismatch (-want +got):\n%s", diff)
	}
	if len(res.Records) != 1 || res.Records[0].Kind != KindHeader || res.Records[0].Length != res.Size-1 {
		t.Fatalf("unexpected header record: %+v", res.Records)
	}
}

func TestDecodeSummarySetsSport(t *testing.T) {
	cases := map[uint8]Sport{
		0: SportRunning,
		1: SportBiking,
		2: SportSwimming,
		7: SportTreadmill,
		5: SportOther,
	}
	for code, want := range cases {
		data := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths).Summary(code).Bytes()
		res := decodeUTC(t, data, false)
		if res.Activity.Sport != want {
			t.Fatalf("activity type %d: expected %v, got %v", code, want, res.Activity.Sport)
		}
	}
}

func TestDecodeLapMarkersNeverLeaveEmptyLaps(t *testing.T) {
	fix := func(at uint32) ttbintest.Fix { return ttbintest.Fix{Lat: 51.5, Lon: -0.12, Time: at} }
	data := ttbintest.New().
		Header(7, testStart, ttbintest.StandardLengths).
		Lap().Lap().
		Position(fix(10)).
		Lap().Lap().
		Position(fix(20)).
		Position(fix(30)).
		Lap().
		Bytes()

	res := decodeUTC(t, data, false)
	laps := res.Activity.Laps
	if len(laps) != 3 {
		t.Fatalf("expected 3 laps, got %d", len(laps))
	}
	for i, lap := range laps[:len(laps)-1] {
		if len(lap.Points) == 0 {
			t.Fatalf("lap %d is empty", i)
		}
	}
	if len(laps[1].Points) != 2 || len(laps[2].Points) != 0 {
		t.Fatalf("unexpected lap sizes: %d, %d", len(laps[1].Points), len(laps[2].Points))
	}
}

func TestDecodeTwoLapMarkersWithoutPoints(t *testing.T) {
	data := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths).Lap().Lap().Bytes()
	res := decodeUTC(t, data, false)
	if len(res.Activity.Laps) != 1 {
		t.Fatalf("expected 1 lap, got %d", len(res.Activity.Laps))
	}
}

func TestDecodeDropsEmptyFixes(t *testing.T) {
	data := ttbintest.New().
		Header(7, testStart, ttbintest.StandardLengths).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 0}).
		Position(ttbintest.Fix{Lat: 0, Lon: 0, Time: 100}).
		Position(ttbintest.Fix{Lat: 0, Lon: 7, Time: 200}).
		Bytes()

	res := decodeUTC(t, data, false)
	points := res.Activity.Points()
	if len(points) != 1 {
		t.Fatalf("expected 1 kept point, got %d", len(points))
	}
	for _, p := range points {
		if p.Time.Unix() == 0 {
			t.Fatal("kept point with zero timestamp")
		}
		if p.Latitude == 0 && p.Longitude == 0 {
			t.Fatal("kept point without coordinates")
		}
	}
}

func TestDecodeHeartRateAttachesToLastPoint(t *testing.T) {
	data := ttbintest.New().
		Header(7, testStart, ttbintest.StandardLengths).
		HeartRate(90).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 101}).
		HeartRate(142).
		Bytes()

	res := decodeUTC(t, data, false)
	points := res.Activity.Points()
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].HasHeartRate() {
		t.Fatalf("first point should have no heart rate, got %d", points[0].HeartRate)
	}
	if points[1].HeartRate != 142 {
		t.Fatalf("expected heart rate 142, got %d", points[1].HeartRate)
	}
}

func TestDecodeTreadmillAndSwimPoints(t *testing.T) {
	data := ttbintest.New().
		Header(7, testStart, ttbintest.StandardLengths).
		Summary(7).
		Treadmill(1000, 10, 5, 40).
		Treadmill(1060, 15, 12, 42).
		Bytes()

	res := decodeUTC(t, data, false)
	lap := res.Activity.Laps[0]
	if len(lap.Points) != 2 {
		t.Fatalf("expected 2 treadmill points, got %d", len(lap.Points))
	}
	if lap.Length != 25 {
		t.Fatalf("expected lap length 25, got %v", lap.Length)
	}
	if lap.TotalSeconds != 60 {
		t.Fatalf("expected 60 seconds, got %v", lap.TotalSeconds)
	}
	if lap.Calories != 7 {
		t.Fatalf("expected 7 calories, got %d", lap.Calories)
	}
	if lap.Points[1].Cadence != 42 {
		t.Fatalf("expected steps 42, got %d", lap.Points[1].Cadence)
	}

	swim := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths).Swim(500, 3).Swim(530, 9).Bytes()
	res = decodeUTC(t, swim, false)
	lap = res.Activity.Laps[0]
	if len(lap.Points) != 2 || lap.Calories != 6 || lap.TotalSeconds != 30 {
		t.Fatalf("unexpected swim lap: points=%d calories=%d seconds=%v", len(lap.Points), lap.Calories, lap.TotalSeconds)
	}
}

func TestDecodeSkipsTabledUnknownTag(t *testing.T) {
	lengths := map[uint8]uint16{TagPosition: 0x1c, 0x4a: 0x05}
	data := ttbintest.New().
		Header(7, testStart, lengths).
		Record(0x4a, []byte{0xde, 0xad, 0xbe, 0xef}).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).
		Bytes()

	res := decodeUTC(t, data, false)
	if len(res.Activity.Points()) != 1 {
		t.Fatalf("expected 1 point, got %d", len(res.Activity.Points()))
	}
	skipped := res.Records[1]
	if skipped.Kind != KindGenericSkip || skipped.Status != StatusSkipped {
		t.Fatalf("unexpected skip record: %+v", skipped)
	}
	if skipped.Detail != "deadbeef" {
		t.Fatalf("expected hex detail, got %q", skipped.Detail)
	}
	if !bytes.Equal(skipped.Raw, []byte{0x4a, 0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("unexpected raw bytes: %x", skipped.Raw)
	}
}

func TestDecodeUnknownTagStrict(t *testing.T) {
	b := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths)
	offset := b.Len()
	data := b.Raw(0x99).Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).Bytes()

	_, err := Decode(data, Options{Location: time.UTC})
	if !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
	var rerr *RecordError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RecordError, got %T", err)
	}
	if rerr.Tag != 0x99 || rerr.Offset != offset {
		t.Fatalf("unexpected error location: tag=%#x offset=%d", rerr.Tag, rerr.Offset)
	}
}

func TestDecodeUnknownTagForgiving(t *testing.T) {
	b := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths)
	offset := b.Len()
	data := b.Raw(0x99).Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).Bytes()

	res := decodeUTC(t, data, true)
	if len(res.Activity.Points()) != 1 {
		t.Fatalf("expected 1 point, got %d", len(res.Activity.Points()))
	}
	if len(res.Diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostic, got %v", res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if !errors.Is(d.Err, ErrUnknownTag) || d.Offset != offset || d.Tag != 0x99 {
		t.Fatalf("unexpected diagnostic: %v", d)
	}
}

func TestDecodeRejectsImplausiblePositionInForgivingMode(t *testing.T) {
	b := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths)
	offset := b.Len()
	data := b.Position(ttbintest.Fix{Lat: 95, Lon: 0, Time: 100}).Bytes()

	res := decodeUTC(t, data, true)
	if n := len(res.Activity.Points()); n != 0 {
		t.Fatalf("expected no points, got %d", n)
	}

	rejected := res.Records[1]
	if rejected.Status != StatusRejected || rejected.Length != 0 || rejected.Offset != offset {
		t.Fatalf("unexpected rejected record: %+v", rejected)
	}
	if !bytes.Equal(rejected.Raw, []byte{TagPosition}) {
		t.Fatalf("rejected record consumed payload: %x", rejected.Raw)
	}

	// Scanning resumes at the byte right after the tag.
	if len(res.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", res.Diagnostics)
	}
	if !errors.Is(res.Diagnostics[0].Err, ErrCorruptRecord) {
		t.Fatalf("expected corrupt record diagnostic, got %v", res.Diagnostics[0])
	}
	resync := res.Diagnostics[1]
	if resync.Offset != offset+1 {
		t.Fatalf("expected resync at %d, got %d", offset+1, resync.Offset)
	}
	if resync.Message != "ttbin: unknown tag: resynchronized over 27 byte(s)" {
		t.Fatalf("unexpected resync message: %q", resync.Message)
	}
}

func TestDecodeStrictKeepsImplausiblePosition(t *testing.T) {
	data := ttbintest.New().
		Header(7, testStart, ttbintest.StandardLengths).
		Position(ttbintest.Fix{Lat: 95, Lon: 0, Time: 100}).
		Bytes()

	res := decodeUTC(t, data, false)
	if n := len(res.Activity.Points()); n != 1 {
		t.Fatalf("expected range check to be off in strict mode, got %d points", n)
	}
}

func TestDecodeForgivingSkipsSpuriousTag(t *testing.T) {
	b := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths)
	offset := b.Len()
	data := b.Raw(TagPosition).
		HeartRate(120).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).
		Bytes()

	res := decodeUTC(t, data, true)
	if len(res.Activity.Points()) != 1 {
		t.Fatalf("expected 1 point, got %d", len(res.Activity.Points()))
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Offset != offset {
		t.Fatalf("expected one resync diagnostic at %d, got %v", offset, res.Diagnostics)
	}
	kinds := make([]RecordKind, 0, len(res.Records))
	for _, rec := range res.Records {
		kinds = append(kinds, rec.Kind)
	}
	want := []RecordKind{KindHeader, KindHeartRate, KindPosition}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("record kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeUntabledKnownTagIsNoise(t *testing.T) {
	lengths := map[uint8]uint16{TagPosition: 0x1c}
	b := ttbintest.New().Header(7, testStart, lengths)
	offset := b.Len()
	data := b.Raw(TagHeartRate).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).
		Bytes()

	for _, forgiving := range []bool{false, true} {
		res := decodeUTC(t, data, forgiving)
		if n := len(res.Activity.Points()); n != 1 {
			t.Fatalf("forgiving=%v: expected 1 point, got %d", forgiving, n)
		}
		kinds := make([]RecordKind, 0, len(res.Records))
		for _, rec := range res.Records {
			kinds = append(kinds, rec.Kind)
		}
		if diff := cmp.Diff([]RecordKind{KindHeader, KindPosition}, kinds); diff != "" {
			t.Fatalf("forgiving=%v: record kinds mismatch (-want +got):\n%s", forgiving, diff)
		}
		if len(res.Diagnostics) != 1 || res.Diagnostics[0].Offset != offset || !errors.Is(res.Diagnostics[0].Err, ErrUnknownTag) {
			t.Fatalf("forgiving=%v: expected one resync at %d, got %v", forgiving, offset, res.Diagnostics)
		}
	}
}

func TestDecodeHeartRateRecoveryIsSkipped(t *testing.T) {
	b := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths)
	offset := b.Len()
	data := b.Record(TagHeartRateRecovery, make([]byte, 15)).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).
		Bytes()

	res := decodeUTC(t, data, false)
	rec := res.Records[1]
	if rec.Kind != KindHeartRateRecovery || rec.Status != StatusSkipped {
		t.Fatalf("unexpected recovery record: %+v", rec)
	}
	if rec.Offset != offset || rec.Length != 15 || len(rec.Raw) != 16 {
		t.Fatalf("expected 15 payload bytes at %d, got length=%d raw=%d offset=%d", offset, rec.Length, len(rec.Raw), rec.Offset)
	}
	if n := len(res.Activity.Points()); n != 1 {
		t.Fatalf("expected decoding to resume after the skip, got %d points", n)
	}
}

func TestDecodeHeaderDiscardsInvalidLengthEntries(t *testing.T) {
	declared := map[uint8]uint16{
		TagPosition: 0x1c,
		0x40:        0x1001,
		0x41:        0x1000,
		0x42:        0,
		0xff:        0x05,
	}
	data := ttbintest.New().Header(7, testStart, declared).Bytes()

	res := decodeUTC(t, data, false)
	want := RecordLengths{TagPosition: 0x1b, 0x41: 0xfff}
	if diff := cmp.Diff(want, res.Lengths); diff != "" {
		t.Fatalf("record lengths mismatch (-want +got):\n%s", diff)
	}
	if res.Activity.Header.LengthCount != len(declared) {
		t.Fatalf("expected %d declared entries, got %d", len(declared), res.Activity.Header.LengthCount)
	}
	if got := res.Records[0].Length; got != headerBlockSize+lengthEntrySize*len(declared) {
		t.Fatalf("discarded entries were not consumed: header length %d", got)
	}
}

func TestDecodeTruncatedRecord(t *testing.T) {
	b := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths)
	offset := b.Len()
	data := b.Raw(TagPosition, 1, 2, 3, 4, 5).Bytes()

	_, err := Decode(data, Options{Location: time.UTC})
	if !errors.Is(err, ErrTruncatedRecord) {
		t.Fatalf("expected ErrTruncatedRecord, got %v", err)
	}
	var rerr *RecordError
	if !errors.As(err, &rerr) || rerr.Offset != offset {
		t.Fatalf("expected record error at %d, got %v", offset, err)
	}

	res := decodeUTC(t, data, true)
	if len(res.Diagnostics) == 0 || !errors.Is(res.Diagnostics[0].Err, ErrTruncatedRecord) {
		t.Fatalf("expected truncated diagnostic, got %v", res.Diagnostics)
	}
}

func TestDecodeShortDeclaredLengthIsFormatError(t *testing.T) {
	lengths := map[uint8]uint16{TagPosition: 0x10}
	data := ttbintest.New().Header(7, testStart, lengths).Raw(TagPosition).Raw(make([]byte, 0x0f)...).Bytes()

	_, err := Decode(data, Options{Location: time.UTC})
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
}

func TestDecodeHeaderErrors(t *testing.T) {
	old := ttbintest.New().Header(6, testStart, ttbintest.StandardLengths).Bytes()
	if _, err := Decode(old, Options{}); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat for old version, got %v", err)
	}

	short := []byte{TagHeader, 7, 0, 0}
	if _, err := Decode(short, Options{}); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat for short header, got %v", err)
	}

	full := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths).Bytes()
	cut := full[:len(full)-2]
	if _, err := Decode(cut, Options{}); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat for truncated length table, got %v", err)
	}
}

func TestDecodeMissingHeader(t *testing.T) {
	data := ttbintest.New().Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).Bytes()

	if _, err := Decode(data, Options{Location: time.UTC}); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat without header, got %v", err)
	}

	// Without a header no tag has a declared length, so every byte is noise.
	res := decodeUTC(t, data, true)
	if len(res.Activity.Laps) != 1 || len(res.Activity.Points()) != 0 {
		t.Fatalf("expected one empty lap, got %d laps and %d points", len(res.Activity.Laps), len(res.Activity.Points()))
	}
	if len(res.Diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %v", res.Diagnostics)
	}
	if !errors.Is(res.Diagnostics[0].Err, ErrUnknownTag) || res.Diagnostics[0].Offset != 0 {
		t.Fatalf("expected resync from offset 0, got %v", res.Diagnostics[0])
	}
	if !errors.Is(res.Diagnostics[1].Err, ErrFormat) {
		t.Fatalf("expected missing header diagnostic, got %v", res.Diagnostics[1])
	}
}

func TestDecodeForgivingRejectedHeaderKeepsNothing(t *testing.T) {
	data := ttbintest.New().
		Header(6, testStart, ttbintest.StandardLengths).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).
		HeartRate(130).
		Bytes()

	res := decodeUTC(t, data, true)
	if n := len(res.Activity.Points()); n != 0 {
		t.Fatalf("expected no points after a rejected header, got %d", n)
	}
	if len(res.Activity.Laps) != 1 {
		t.Fatalf("expected 1 lap, got %d", len(res.Activity.Laps))
	}
	if res.Activity.Header.FileVersion != 0 || len(res.Lengths) != 0 {
		t.Fatalf("rejected header leaked into result: %+v %v", res.Activity.Header, res.Lengths)
	}
	if res.Records[0].Kind != KindHeader || res.Records[0].Status != StatusFailed {
		t.Fatalf("unexpected first record: %+v", res.Records[0])
	}
	for _, rec := range res.Records[1:] {
		if rec.Status == StatusAccepted {
			t.Fatalf("header bytes decoded as a record: %+v", rec)
		}
	}
	diags := res.Diagnostics
	if len(diags) < 3 {
		t.Fatalf("expected at least 3 diagnostics, got %v", diags)
	}
	if !errors.Is(diags[0].Err, ErrFormat) || diags[0].Offset != 0 {
		t.Fatalf("expected header diagnostic first, got %v", diags[0])
	}
	if !errors.Is(diags[1].Err, ErrUnknownTag) || diags[1].Offset != 1 {
		t.Fatalf("expected resync from offset 1, got %v", diags[1])
	}
	if last := diags[len(diags)-1]; !errors.Is(last.Err, ErrFormat) || last.Message != "ttbin: unsupported or malformed format: stream has no header" {
		t.Fatalf("expected missing header diagnostic last, got %v", last)
	}
}

func TestDecodeHeaderTagMidStream(t *testing.T) {
	b := ttbintest.New().Header(7, testStart, ttbintest.StandardLengths)
	offset := b.Len()
	data := b.Raw(TagHeader).Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).Bytes()

	_, err := Decode(data, Options{Location: time.UTC})
	if !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}

	res := decodeUTC(t, data, true)
	if len(res.Activity.Points()) != 1 {
		t.Fatalf("expected 1 point, got %d", len(res.Activity.Points()))
	}
	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Offset != offset {
		t.Fatalf("unexpected diagnostics: %v", res.Diagnostics)
	}
}

func TestDecodeEmptyInput(t *testing.T) {
	for _, forgiving := range []bool{false, true} {
		res, err := Decode(nil, Options{Forgiving: forgiving})
		if err != nil {
			t.Fatalf("forgiving=%v: Decode error: %v", forgiving, err)
		}
		if len(res.Activity.Laps) != 1 || len(res.Activity.Points()) != 0 {
			t.Fatalf("forgiving=%v: expected one empty lap, got %d laps", forgiving, len(res.Activity.Laps))
		}
		if len(res.Records) != 0 || len(res.Diagnostics) != 0 {
			t.Fatalf("forgiving=%v: unexpected records %v or diagnostics %v", forgiving, res.Records, res.Diagnostics)
		}
	}
}

func TestDecodeIsDeterministic(t *testing.T) {
	data := ttbintest.New().
		Header(7, testStart, ttbintest.StandardLengths).
		Summary(0).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Speed: 300, Time: 100, Calories: 1, Distance: 3}).
		HeartRate(130).
		Lap().
		Position(ttbintest.Fix{Lat: 45.001, Lon: 7.001, Speed: 310, Time: 110, Calories: 4, Distance: 40}).
		Bytes()

	first := decodeUTC(t, data, true)
	second := decodeUTC(t, data, true)
	if diff := cmp.Diff(first.Activity, second.Activity); diff != "" {
		t.Fatalf("decodes differ (-first +second):\n%s", diff)
	}
}

func TestReadAndDecodeFile(t *testing.T) {
	data := ttbintest.New().
		Header(7, testStart, ttbintest.StandardLengths).
		Position(ttbintest.Fix{Lat: 45, Lon: 7, Time: 100}).
		Bytes()

	act, err := Read(bytes.NewReader(data), false)
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if len(act.Points()) != 1 {
		t.Fatalf("expected 1 point, got %d", len(act.Points()))
	}

	path := filepath.Join(t.TempDir(), "run.ttbin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write ttbin: %v", err)
	}
	res, err := DecodeFile(path, Options{Location: time.UTC})
	if err != nil {
		t.Fatalf("DecodeFile error: %v", err)
	}
	if res.Size != len(data) {
		t.Fatalf("unexpected size: %d", res.Size)
	}
	if _, err := DecodeFile(filepath.Join(t.TempDir(), "missing.ttbin"), Options{}); err == nil {
		t.Fatal("expected error for missing file")
	}
}
