package ttbin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/coreos/pkg/capnslog"
)

var plog = capnslog.NewPackageLogger("github.com/lucasjlepore/ttbin-analyzer", "ttbin")

// Options controls a single decode.
type Options struct {
	// Forgiving resynchronizes over noise and damaged records instead of failing.
	Forgiving bool
	// Location is the zone timestamps are expressed in. Nil means time.Local.
	Location *time.Location
}

// RecordStatus is what the driver did with a dispatched record.
type RecordStatus string

const (
	StatusAccepted RecordStatus = "accepted"
	StatusSkipped  RecordStatus = "skipped"
	StatusRejected RecordStatus = "rejected"
	StatusFailed   RecordStatus = "failed"
)

// Record is one tag the driver dispatched, in stream order.
type Record struct {
	Index  int          `json:"index"`
	Offset int          `json:"offset"`
	Tag    uint8        `json:"tag"`
	Kind   RecordKind   `json:"kind"`
	Length int          `json:"length"`
	Status RecordStatus `json:"status"`
	// Raw is the tag byte followed by the consumed payload. It aliases the
	// decoded buffer.
	Raw    []byte      `json:"-"`
	Point  *TrackPoint `json:"point,omitempty"`
	Detail string      `json:"detail,omitempty"`
}

// Diagnostic is a recoverable problem found while decoding in forgiving mode.
type Diagnostic struct {
	Offset  int    `json:"offset"`
	Tag     uint8  `json:"tag"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("offset %d tag 0x%02x: %s", d.Offset, d.Tag, d.Message)
}

// Result is everything a decode produced.
type Result struct {
	Activity    *Activity     `json:"activity"`
	Lengths     RecordLengths `json:"lengths"`
	Records     []Record      `json:"records"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
	Size        int           `json:"size"`
}

// Decode parses a complete ttbin stream held in memory.
func Decode(data []byte, opts Options) (*Result, error) {
	st := &decodeState{
		data:     data,
		opts:     opts,
		activity: NewActivity(),
	}
	if err := st.run(); err != nil {
		return nil, err
	}
	return &Result{
		Activity:    st.activity,
		Lengths:     st.lengths,
		Records:     st.records,
		Diagnostics: st.diagnostics,
		Size:        len(data),
	}, nil
}

// Read decodes the stream behind r. The reader is not closed.
func Read(r io.Reader, forgiving bool) (*Activity, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read ttbin stream: %w", err)
	}
	res, err := Decode(data, Options{Forgiving: forgiving})
	if err != nil {
		return nil, err
	}
	return res.Activity, nil
}

// DecodeFile reads and decodes the file at path.
func DecodeFile(path string, opts Options) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	res, err := Decode(data, opts)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return res, nil
}

type decodeState struct {
	data     []byte
	pos      int
	opts     Options
	lengths  RecordLengths
	activity *Activity

	sawHeader   bool
	records     []Record
	diagnostics []Diagnostic

	// Current run of bytes skipped while resynchronizing.
	noiseStart int
	noiseTag   uint8
	noiseLen   int
}

func (st *decodeState) run() error {
	for st.pos < len(st.data) {
		offset := st.pos
		tag := st.data[st.pos]
		st.pos++

		if tag == TagHeader && offset != 0 {
			err := recordError(ErrFormat, tag, offset, "header tag past the start of the stream")
			if !st.opts.Forgiving {
				return err
			}
			st.flushNoise()
			plog.Warningf("%v", err)
			st.diagnose(offset, tag, err)
			continue
		}

		kind := kindFor(tag, st.lengths)
		if kind == KindUnknownFailure {
			if !st.opts.Forgiving && !isKnownTag(tag) {
				err := recordError(ErrUnknownTag, tag, offset, "no record length declared")
				plog.Warningf("%v", err)
				return err
			}
			st.noise(offset, tag)
			continue
		}

		if st.opts.Forgiving && tag != TagHeader && st.spurious(tag) {
			plog.Debugf("tag 0x%02x at %d is not followed by a record, resyncing", tag, offset)
			st.noise(offset, tag)
			continue
		}
		st.flushNoise()

		out, err := st.dispatch(tag, kind)
		rec := Record{
			Index:  len(st.records),
			Offset: offset,
			Tag:    tag,
			Kind:   kind,
		}
		switch {
		case err != nil:
			rerr := &RecordError{Tag: tag, Offset: offset, Err: err}
			rec.Status = StatusFailed
			rec.Raw = st.data[offset:st.pos]
			rec.Detail = err.Error()
			st.records = append(st.records, rec)
			plog.Warningf("%v", rerr)
			if !st.opts.Forgiving {
				return rerr
			}
			st.diagnose(offset, tag, rerr)
		case out.rejected:
			rerr := recordError(ErrCorruptRecord, tag, offset, "%s", out.detail)
			rec.Status = StatusRejected
			rec.Raw = st.data[offset:st.pos]
			rec.Detail = out.detail
			st.records = append(st.records, rec)
			plog.Warningf("%v", rerr)
			st.diagnose(offset, tag, rerr)
		default:
			st.pos += out.consumed
			rec.Length = out.consumed
			rec.Raw = st.data[offset:st.pos]
			rec.Point = out.point
			rec.Detail = out.detail
			rec.Status = StatusAccepted
			if kind == KindGenericSkip || kind == KindHeartRateRecovery {
				rec.Status = StatusSkipped
				plog.Warningf("skipping tag 0x%02x at %d (%d bytes): %s", tag, offset, out.consumed, out.detail)
			}
			st.records = append(st.records, rec)
		}
	}
	st.flushNoise()

	if !st.sawHeader && len(st.data) > 0 {
		err := fmt.Errorf("%w: stream has no header", ErrFormat)
		if !st.opts.Forgiving {
			return err
		}
		st.diagnose(0, TagHeader, err)
	}
	st.activity.currentLap()
	st.activity.calcTotals()
	return nil
}

func (st *decodeState) dispatch(tag uint8, kind RecordKind) (outcome, error) {
	switch kind {
	case KindHeader:
		return st.decodeHeaderRecord()
	case KindLapBoundary:
		return st.decodeLap()
	case KindPosition:
		return st.decodePosition()
	case KindHeartRate:
		return st.decodeHeartRate()
	case KindSummary:
		return st.decodeSummary()
	case KindTreadmill:
		return st.decodeTreadmill()
	case KindSwim:
		return st.decodeSwim()
	case KindHeartRateRecovery, KindGenericSkip:
		return st.skip(tag)
	default:
		return outcome{}, ErrUnknownTag
	}
}

func (st *decodeState) decodeHeaderRecord() (outcome, error) {
	h, lengths, n, err := decodeHeader(st.data[st.pos:], st.opts.Location)
	if err != nil {
		return outcome{}, err
	}
	st.sawHeader = true
	st.lengths = lengths
	st.activity.Header = h
	st.activity.Date = h.StartTime
	st.activity.currentLap()
	return accepted(n), nil
}

// spurious peeks past the payload of a tabled tag. When the byte after it exists
// and does not start a declared record, the current byte is taken as noise.
func (st *decodeState) spurious(tag uint8) bool {
	n, ok := st.lengths.Lookup(tag)
	if !ok {
		return false
	}
	next := st.pos + n
	if next >= len(st.data) {
		return false
	}
	_, ok = st.lengths.Lookup(st.data[next])
	return !ok
}

func (st *decodeState) noise(offset int, tag uint8) {
	if st.noiseLen == 0 {
		st.noiseStart = offset
		st.noiseTag = tag
	}
	st.noiseLen++
}

func (st *decodeState) flushNoise() {
	if st.noiseLen == 0 {
		return
	}
	err := recordError(ErrUnknownTag, st.noiseTag, st.noiseStart, "resynchronized over %d byte(s)", st.noiseLen)
	plog.Debugf("%v", err)
	st.diagnose(st.noiseStart, st.noiseTag, err)
	st.noiseLen = 0
}

func (st *decodeState) diagnose(offset int, tag uint8, err error) {
	msg := err.Error()
	var rerr *RecordError
	if errors.As(err, &rerr) {
		msg = rerr.Err.Error()
		if rerr.Detail != "" {
			msg += ": " + rerr.Detail
		}
	}
	st.diagnostics = append(st.diagnostics, Diagnostic{
		Offset:  offset,
		Tag:     tag,
		Message: msg,
		Err:     err,
	})
}
