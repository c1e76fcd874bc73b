package ttbin

import (
	"encoding/hex"
	"fmt"
	"math"
)

// Activity type codes carried by the summary record.
const (
	activityRun       = 0
	activityCycle     = 1
	activitySwim      = 2
	activityTreadmill = 7
)

const (
	positionScale    = 1.0e-7
	speedScale       = 100.0
	maxPlausibleMPS  = 50.0
	swimCaloriesPos  = 15
	treadmillTimePos = 0
)

// outcome is what a record decoder hands back to the stream driver. A rejected
// record consumed nothing: the driver resumes scanning right after its tag byte.
type outcome struct {
	consumed int
	rejected bool
	point    *TrackPoint
	detail   string
}

func accepted(n int) outcome { return outcome{consumed: n} }

// payload returns the next record body for tag, sized from the length table or
// the built-in default.
func (st *decodeState) payload(tag uint8) ([]byte, error) {
	layout := knownLayouts[tag]
	n := st.lengths.lengthOr(tag, layout.defaultLength)
	if n < layout.minLength {
		return nil, fmt.Errorf("%w: declared length %d is shorter than the %d byte layout", ErrFormat, n, layout.minLength)
	}
	if err := checkBounds(st.data, st.pos, n); err != nil {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedRecord, n, len(st.data)-st.pos)
	}
	return st.data[st.pos : st.pos+n], nil
}

func (st *decodeState) decodeLap() (outcome, error) {
	rec, err := st.payload(TagLap)
	if err != nil {
		return outcome{}, err
	}
	st.activity.startLap()
	return accepted(len(rec)), nil
}

//	off  size  field
//	0    4     latitude, 1e-7 degrees
//	4    4     longitude, 1e-7 degrees
//	8    2     heading, 1/100 degree (unused)
//	10   2     speed, 1/100 m/s
//	12   4     time, epoch seconds
//	16   2     calories
//	18   4     instant speed, float (unused)
//	22   4     cumulative distance, float meters
//	26   1     cadence
func (st *decodeState) decodePosition() (outcome, error) {
	rec, err := st.payload(TagPosition)
	if err != nil {
		return outcome{}, err
	}

	r := fieldReader{buf: rec}
	tp := NewTrackPoint()
	tp.Latitude = float64(r.i32(0)) * positionScale
	tp.Longitude = float64(r.i32(4)) * positionScale
	tp.Speed = float64(r.u16(10)) / speedScale

	if st.opts.Forgiving && implausiblePosition(tp) {
		return outcome{
			rejected: true,
			detail:   fmt.Sprintf("lat=%.7f lon=%.7f speed=%.2f", tp.Latitude, tp.Longitude, tp.Speed),
		}, nil
	}

	rawTime := r.u32(12)
	tp.Time = timestampFromSeconds(rawTime, false, st.opts.Location)
	tp.Calories = int(r.u16(16))
	tp.CumulativeDistance = float64(r.f32(22))
	tp.Cadence = int(r.u8(26))
	if r.err != nil {
		return outcome{}, r.err
	}

	out := accepted(len(rec))
	if rawTime != 0 && tp.HasPosition() {
		lap := st.activity.currentLap()
		lap.Points = append(lap.Points, tp)
		out.point = tp
	} else {
		out.detail = "dropped empty fix"
	}
	return out, nil
}

func implausiblePosition(tp *TrackPoint) bool {
	return math.Abs(tp.Latitude) > 90 || math.Abs(tp.Longitude) > 180 || tp.Speed > maxPlausibleMPS
}

func (st *decodeState) decodeHeartRate() (outcome, error) {
	rec, err := st.payload(TagHeartRate)
	if err != nil {
		return outcome{}, err
	}
	out := accepted(len(rec))
	// Heart rate often arrives before the first GPS fix.
	last := st.activity.currentLap().lastPoint()
	if last == nil {
		out.detail = "no point to attach heart rate to"
		return out, nil
	}
	last.HeartRate = int(rec[0])
	out.point = last
	return out, nil
}

// decodeSummary only takes the sport. Distance, duration and calories in this
// record are recomputed from the track points instead.
func (st *decodeState) decodeSummary() (outcome, error) {
	rec, err := st.payload(TagSummary)
	if err != nil {
		return outcome{}, err
	}
	switch rec[0] {
	case activityRun:
		st.activity.Sport = SportRunning
	case activityCycle:
		st.activity.Sport = SportBiking
	case activitySwim:
		st.activity.Sport = SportSwimming
	case activityTreadmill:
		st.activity.Sport = SportTreadmill
	}
	return accepted(len(rec)), nil
}

//	off  size  field
//	0    4     time, epoch seconds
//	4    4     distance since last sample, float meters
//	8    4     calories
//	12   4     steps
//	16   2     unknown
func (st *decodeState) decodeTreadmill() (outcome, error) {
	rec, err := st.payload(TagTreadmill)
	if err != nil {
		return outcome{}, err
	}
	r := fieldReader{buf: rec}
	tp := NewTrackPoint()
	tp.Time = timestampFromSeconds(r.u32(treadmillTimePos), false, st.opts.Location)
	tp.IncrementalDistance = float64(r.f32(4))
	tp.Calories = int(r.u32(8))
	tp.Cadence = int(r.u32(12))
	if r.err != nil {
		return outcome{}, r.err
	}
	lap := st.activity.currentLap()
	lap.Points = append(lap.Points, tp)
	out := accepted(len(rec))
	out.point = tp
	return out, nil
}

func (st *decodeState) decodeSwim() (outcome, error) {
	rec, err := st.payload(TagSwim)
	if err != nil {
		return outcome{}, err
	}
	r := fieldReader{buf: rec}
	tp := NewTrackPoint()
	tp.Time = timestampFromSeconds(r.u32(0), false, st.opts.Location)
	tp.Calories = int(r.u32(swimCaloriesPos))
	if r.err != nil {
		return outcome{}, r.err
	}
	lap := st.activity.currentLap()
	lap.Points = append(lap.Points, tp)
	out := accepted(len(rec))
	out.point = tp
	return out, nil
}

// skip consumes a record whose contents are not modelled.
func (st *decodeState) skip(tag uint8) (outcome, error) {
	var (
		rec []byte
		err error
	)
	if isKnownTag(tag) {
		rec, err = st.payload(tag)
	} else {
		n, _ := st.lengths.Lookup(tag)
		if err = checkBounds(st.data, st.pos, n); err == nil {
			rec = st.data[st.pos : st.pos+n]
		} else {
			err = fmt.Errorf("%w: need %d bytes, have %d", ErrTruncatedRecord, n, len(st.data)-st.pos)
		}
	}
	if err != nil {
		return outcome{}, err
	}
	out := accepted(len(rec))
	out.detail = hex.EncodeToString(rec)
	return out, nil
}

// fieldReader reads fixed-offset fields and keeps the first error.
type fieldReader struct {
	buf []byte
	err error
}

func (r *fieldReader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *fieldReader) u8(pos int) uint8 {
	v, err := readU8(r.buf, pos)
	r.keep(err)
	return v
}

func (r *fieldReader) u16(pos int) uint16 {
	v, err := readU16(r.buf, pos)
	r.keep(err)
	return v
}

func (r *fieldReader) u32(pos int) uint32 {
	v, err := readU32(r.buf, pos)
	r.keep(err)
	return v
}

func (r *fieldReader) i32(pos int) int32 {
	v, err := readI32(r.buf, pos)
	r.keep(err)
	return v
}

func (r *fieldReader) f32(pos int) float32 {
	v, err := readFloat(r.buf, pos)
	r.keep(err)
	return v
}
