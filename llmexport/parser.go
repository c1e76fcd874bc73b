package llmexport

import (
	"encoding/hex"
	"fmt"

	"github.com/tormoder/fit/dyncrc16"

	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

type parsedStream struct {
	Result       *ttbin.Result
	Header       *HeaderInfo
	Lengths      []LengthEntry
	Records      []RecordEnvelope
	Diagnostics  []DiagnosticInfo
	StatusCounts map[string]int
	KindCounts   map[string]int
	Activity     *ActivityInfo
	CRC16        string
}

// parseTTBinBytes decodes data and projects every dispatched record into an
// envelope. Noise bytes skipped during resync appear only as diagnostics.
func parseTTBinBytes(data []byte, forgiving bool) (*parsedStream, error) {
	res, err := ttbin.Decode(data, ttbin.Options{Forgiving: forgiving})
	if err != nil {
		return nil, err
	}

	out := &parsedStream{
		Result:       res,
		StatusCounts: map[string]int{},
		KindCounts:   map[string]int{},
		CRC16:        fmt.Sprintf("%04x", dyncrc16.Checksum(data)),
	}

	for _, rec := range res.Records {
		if rec.Kind == ttbin.KindHeader && rec.Status == ttbin.StatusAccepted {
			out.Header = projectHeader(res.Activity.Header)
		}
		out.Records = append(out.Records, envelopeFor(rec))
		out.StatusCounts[string(rec.Status)]++
		out.KindCounts[rec.Kind.String()]++
	}

	for _, tag := range res.Lengths.Tags() {
		n, _ := res.Lengths.Lookup(tag)
		out.Lengths = append(out.Lengths, LengthEntry{
			Tag:    tag,
			TagHex: tagHex(tag),
			Kind:   kindName(tag),
			Length: n,
		})
	}

	for _, d := range res.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, DiagnosticInfo{
			FileOffset: int64(d.Offset),
			TagHex:     tagHex(d.Tag),
			Message:    d.Message,
		})
	}

	out.Activity = projectActivity(res.Activity)
	return out, nil
}

func envelopeFor(rec ttbin.Record) RecordEnvelope {
	env := RecordEnvelope{
		FormatVersion: ExportFormatVersion,
		RecordIndex:   rec.Index,
		FileOffset:    int64(rec.Offset),
		Tag:           rec.Tag,
		TagHex:        tagHex(rec.Tag),
		RecordKind:    rec.Kind.String(),
		PayloadLength: rec.Length,
		Status:        string(rec.Status),
		Point:         rec.Point,
		RawRecordHex:  hex.EncodeToString(rec.Raw),
		Detail:        rec.Detail,
	}
	switch rec.Status {
	case ttbin.StatusAccepted:
		if rec.Kind != ttbin.KindHeader && len(rec.Raw) > 1 {
			env.Fields = decodeFields(rec.Tag, rec.Raw[1:])
		}
	case ttbin.StatusRejected:
		env.Warnings = append(env.Warnings, fmt.Sprintf("record at offset %d rejected: %s", rec.Offset, rec.Detail))
	case ttbin.StatusFailed:
		env.Warnings = append(env.Warnings, fmt.Sprintf("record at offset %d failed: %s", rec.Offset, rec.Detail))
	}
	if rec.Kind == ttbin.KindPosition && rec.Status == ttbin.StatusAccepted && rec.Point == nil {
		env.Warnings = append(env.Warnings, fmt.Sprintf("position at offset %d carried no fix", rec.Offset))
	}
	return env
}

func projectHeader(h ttbin.Header) *HeaderInfo {
	info := &HeaderInfo{
		FileVersion:      h.FileVersion,
		FirmwareVersion:  fmt.Sprintf("%d.%d.%d", h.FirmwareVersion[0], h.FirmwareVersion[1], h.FirmwareVersion[2]),
		ProductID:        h.ProductID,
		UTCOffsetSeconds: h.UTCOffset,
		LengthCount:      h.LengthCount,
	}
	if !h.StartTime.IsZero() {
		info.StartTimeLocal = h.StartTime.Format("2006-01-02T15:04:05")
	}
	return info
}

func projectActivity(a *ttbin.Activity) *ActivityInfo {
	if a == nil {
		return nil
	}
	info := &ActivityInfo{
		Sport:          a.Sport.String(),
		LapCount:       len(a.Laps),
		PointCount:     len(a.Points()),
		TotalSeconds:   a.TotalSeconds(),
		TotalDistanceM: a.TotalDistance(),
		TotalCalories:  a.TotalCalories(),
	}
	if !a.Date.IsZero() {
		info.StartTime = a.Date.Format("2006-01-02T15:04:05")
	}
	return info
}

func kindName(tag uint8) string {
	switch tag {
	case ttbin.TagLap:
		return ttbin.KindLapBoundary.String()
	case ttbin.TagPosition:
		return ttbin.KindPosition.String()
	case ttbin.TagHeartRate:
		return ttbin.KindHeartRate.String()
	case ttbin.TagSummary:
		return ttbin.KindSummary.String()
	case ttbin.TagTreadmill:
		return ttbin.KindTreadmill.String()
	case ttbin.TagSwim:
		return ttbin.KindSwim.String()
	case ttbin.TagHeartRateRecovery:
		return ttbin.KindHeartRateRecovery.String()
	default:
		return ttbin.KindGenericSkip.String()
	}
}

func tagHex(tag uint8) string {
	return fmt.Sprintf("0x%02x", tag)
}
