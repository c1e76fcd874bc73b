package pipeline

import (
	"encoding/xml"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/lucasjlepore/ttbin-analyzer/internal/ttbintest"
	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

func TestEncodeTCXTrackpointDistanceIsCumulative(t *testing.T) {
	fix := func(at uint32, dist float32) ttbintest.Fix {
		return ttbintest.Fix{Lat: 45, Lon: 7, Speed: 300, Time: at, Distance: dist}
	}
	data := ttbintest.New().
		Header(7, testStart, ttbintest.StandardLengths).
		Position(fix(testStart, 0)).
		Position(fix(testStart+5, 10)).
		Lap().
		Position(fix(testStart+10, 20)).
		Position(fix(testStart+15, 35)).
		Bytes()

	res, err := ttbin.Decode(data, ttbin.Options{})
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	out, err := EncodeTCX(res.Activity)
	if err != nil {
		t.Fatalf("EncodeTCX error: %v", err)
	}

	var doc struct {
		Laps []struct {
			DistanceMeters float64   `xml:"DistanceMeters"`
			Trackpoints    []float64 `xml:"Track>Trackpoint>DistanceMeters"`
		} `xml:"Activities>Activity>Lap"`
	}
	if err := xml.Unmarshal(out, &doc); err != nil {
		t.Fatalf("unmarshal tcx: %v", err)
	}
	if len(doc.Laps) != 2 {
		t.Fatalf("expected 2 laps, got %d", len(doc.Laps))
	}

	var points []float64
	for _, lap := range doc.Laps {
		points = append(points, lap.Trackpoints...)
	}
	if diff := cmp.Diff([]float64{0, 10, 20, 35}, points); diff != "" {
		t.Fatalf("trackpoint distances mismatch (-want +got):\n%s", diff)
	}
	if doc.Laps[0].DistanceMeters != 10 || doc.Laps[1].DistanceMeters != 15 {
		t.Fatalf("unexpected lap distances: %v, %v", doc.Laps[0].DistanceMeters, doc.Laps[1].DistanceMeters)
	}
}
