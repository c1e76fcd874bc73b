package ttbin

import (
	"fmt"
	"time"
)

// Sport is the activity type reported by the watch summary record.
type Sport int

const (
	SportRunning Sport = iota
	SportTreadmill
	SportBiking
	SportSwimming
	SportOther
)

// String returns the sport name used by TCX and the analysis outputs.
func (s Sport) String() string {
	switch s {
	case SportRunning:
		return "Running"
	case SportTreadmill:
		return "Treadmill"
	case SportBiking:
		return "Biking"
	case SportSwimming:
		return "Swimming"
	case SportOther:
		return "Other"
	default:
		return fmt.Sprintf("Sport(%d)", int(s))
	}
}

func (s Sport) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Sport) UnmarshalText(text []byte) error {
	v, err := ParseSport(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSport is the inverse of Sport.String.
func ParseSport(name string) (Sport, error) {
	for s := SportRunning; s <= SportOther; s++ {
		if s.String() == name {
			return s, nil
		}
	}
	return SportOther, fmt.Errorf("unknown sport %q", name)
}

// HasGPS reports whether activities of this sport carry position records.
func (s Sport) HasGPS() bool {
	return s == SportRunning || s == SportBiking || s == SportOther
}

// HeartRateUnset marks a track point no heart-rate record has touched.
const HeartRateUnset = -1

// TrackPoint is one recorded or synthesized telemetry sample.
type TrackPoint struct {
	Time                time.Time `json:"time"`
	Latitude            float64   `json:"latitude"`
	Longitude           float64   `json:"longitude"`
	Speed               float64   `json:"speed_mps"`
	Calories            int       `json:"calories"`
	CumulativeDistance  float64   `json:"cumulative_distance_m"`
	IncrementalDistance float64   `json:"incremental_distance_m"`
	Cadence             int       `json:"cadence"`
	HeartRate           int       `json:"heart_rate_bpm"`
}

// NewTrackPoint returns a point with the heart rate unset.
func NewTrackPoint() *TrackPoint {
	return &TrackPoint{HeartRate: HeartRateUnset}
}

// HasHeartRate reports whether a heart-rate sample was attached.
func (tp *TrackPoint) HasHeartRate() bool {
	return tp.HeartRate != HeartRateUnset
}

// HasPosition reports whether the point carries a GPS fix.
func (tp *TrackPoint) HasPosition() bool {
	return tp.Latitude != 0 || tp.Longitude != 0
}

// Lap is a contiguous run of points between lap markers.
type Lap struct {
	Points []*TrackPoint `json:"points"`

	// Derived by CalcTotals.
	TotalSeconds float64 `json:"total_seconds"`
	Length       float64 `json:"length_m"`
	Calories     int     `json:"calories"`
}

// CalcTotals derives duration, distance and calories from the lap's own points.
func (l *Lap) CalcTotals() {
	l.TotalSeconds, l.Length, l.Calories = 0, 0, 0
	if len(l.Points) == 0 {
		return
	}
	first := l.Points[0]
	last := l.Points[len(l.Points)-1]

	l.TotalSeconds = last.Time.Sub(first.Time).Seconds()
	if l.TotalSeconds < 0 {
		l.TotalSeconds = 0
	}

	hasCumulative := false
	incremental := 0.0
	for _, p := range l.Points {
		if p.CumulativeDistance != 0 {
			hasCumulative = true
		}
		incremental += p.IncrementalDistance
	}
	if hasCumulative {
		l.Length = last.CumulativeDistance - first.CumulativeDistance
	} else {
		l.Length = incremental
	}
	if l.Length < 0 {
		l.Length = 0
	}

	if cal := last.Calories - first.Calories; cal > 0 {
		l.Calories = cal
	}
}

// StartTime is the time of the lap's first point, or zero for an empty lap.
func (l *Lap) StartTime() time.Time {
	if len(l.Points) == 0 {
		return time.Time{}
	}
	return l.Points[0].Time
}

func (l *Lap) lastPoint() *TrackPoint {
	if len(l.Points) == 0 {
		return nil
	}
	return l.Points[len(l.Points)-1]
}

// Activity is one decoded ttbin file.
type Activity struct {
	Date   time.Time `json:"date"`
	Sport  Sport     `json:"sport"`
	Laps   []*Lap    `json:"laps"`
	Notes  string    `json:"notes,omitempty"`
	Header Header    `json:"header"`
}

// NewActivity returns an empty activity with the sport defaulted to Other.
func NewActivity() *Activity {
	return &Activity{Sport: SportOther}
}

// currentLap returns the last lap, creating the first one when none exists.
func (a *Activity) currentLap() *Lap {
	if len(a.Laps) == 0 {
		a.Laps = append(a.Laps, &Lap{})
	}
	return a.Laps[len(a.Laps)-1]
}

// startLap opens a new lap unless the current one is still empty.
func (a *Activity) startLap() {
	if len(a.currentLap().Points) > 0 {
		a.Laps = append(a.Laps, &Lap{})
	}
}

func (a *Activity) calcTotals() {
	for _, lap := range a.Laps {
		lap.CalcTotals()
	}
}

// Points returns every track point across all laps in order.
func (a *Activity) Points() []*TrackPoint {
	n := 0
	for _, lap := range a.Laps {
		n += len(lap.Points)
	}
	out := make([]*TrackPoint, 0, n)
	for _, lap := range a.Laps {
		out = append(out, lap.Points...)
	}
	return out
}

// PointAt returns the first point recorded at or after Date+offset, or nil.
func (a *Activity) PointAt(offset time.Duration) *TrackPoint {
	target := a.Date.Add(offset)
	for _, lap := range a.Laps {
		for _, p := range lap.Points {
			if !p.Time.Before(target) {
				return p
			}
		}
	}
	return nil
}

// TotalSeconds sums the lap durations.
func (a *Activity) TotalSeconds() float64 {
	total := 0.0
	for _, lap := range a.Laps {
		total += lap.TotalSeconds
	}
	return total
}

// TotalDistance sums the lap lengths in meters.
func (a *Activity) TotalDistance() float64 {
	total := 0.0
	for _, lap := range a.Laps {
		total += lap.Length
	}
	return total
}

// TotalCalories sums the lap calories.
func (a *Activity) TotalCalories() int {
	total := 0
	for _, lap := range a.Laps {
		total += lap.Calories
	}
	return total
}
