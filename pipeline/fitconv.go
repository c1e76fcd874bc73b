package pipeline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tormoder/fit"

	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

// EncodeFIT converts a decoded activity into a FIT activity file with one
// session, one lap message per non-empty lap and one record per track point.
func EncodeFIT(act *ttbin.Activity) ([]byte, error) {
	if act == nil {
		return nil, fmt.Errorf("activity is required")
	}
	points := act.Points()
	if len(points) == 0 {
		return nil, fmt.Errorf("activity has no track points")
	}

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		return nil, fmt.Errorf("new fit file: %w", err)
	}
	file.FileId.Manufacturer = fit.ManufacturerDevelopment
	file.FileId.TimeCreated = points[0].Time.UTC()

	activity, err := file.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity accessor: %w", err)
	}

	sport, subSport := fitSport(act.Sport)
	start := points[0].Time.UTC()
	end := points[len(points)-1].Time.UTC()

	startEvent := fit.NewEventMsg()
	startEvent.Timestamp = start
	startEvent.Event = fit.EventTimer
	startEvent.EventType = fit.EventTypeStart
	activity.Events = append(activity.Events, startEvent)

	var treadmillDistance float64
	for _, lap := range act.Laps {
		if len(lap.Points) == 0 {
			continue
		}
		var hrSum, hrCount, hrMax int
		for _, p := range lap.Points {
			rec := fit.NewRecordMsg()
			rec.Timestamp = p.Time.UTC()
			if p.HasPosition() {
				rec.PositionLat = fit.NewLatitudeDegrees(p.Latitude)
				rec.PositionLong = fit.NewLongitudeDegrees(p.Longitude)
			}
			distance := p.CumulativeDistance
			if act.Sport == ttbin.SportTreadmill {
				treadmillDistance += p.IncrementalDistance
				distance = treadmillDistance
			}
			if distance > 0 {
				rec.Distance = uint32(math.Round(distance * 100))
			}
			if p.Speed > 0 {
				rec.Speed = uint16(math.Min(math.Round(p.Speed*1000), math.MaxUint16-1))
			}
			if p.HasHeartRate() && p.HeartRate < math.MaxUint8 {
				rec.HeartRate = uint8(p.HeartRate)
				hrSum += p.HeartRate
				hrCount++
				if p.HeartRate > hrMax {
					hrMax = p.HeartRate
				}
			}
			activity.Records = append(activity.Records, rec)
		}

		first := lap.Points[0].Time.UTC()
		last := lap.Points[len(lap.Points)-1].Time.UTC()
		msg := fit.NewLapMsg()
		msg.Timestamp = last
		msg.StartTime = first
		msg.Event = fit.EventLap
		msg.EventType = fit.EventTypeStop
		msg.Sport = sport
		msg.TotalElapsedTime = scaledU32(lap.TotalSeconds, 1000)
		msg.TotalTimerTime = msg.TotalElapsedTime
		msg.TotalDistance = scaledU32(lap.Length, 100)
		msg.TotalCalories = uint16(clampInt(lap.Calories, 0, math.MaxUint16-1))
		if hrCount > 0 {
			msg.AvgHeartRate = uint8(hrSum / hrCount)
			msg.MaxHeartRate = uint8(hrMax)
		}
		activity.Laps = append(activity.Laps, msg)
	}

	stopEvent := fit.NewEventMsg()
	stopEvent.Timestamp = end
	stopEvent.Event = fit.EventTimer
	stopEvent.EventType = fit.EventTypeStopAll
	activity.Events = append(activity.Events, stopEvent)

	session := fit.NewSessionMsg()
	session.Timestamp = end
	session.StartTime = start
	session.Event = fit.EventSession
	session.EventType = fit.EventTypeStop
	session.Sport = sport
	session.SubSport = subSport
	session.TotalElapsedTime = scaledU32(act.TotalSeconds(), 1000)
	session.TotalTimerTime = session.TotalElapsedTime
	session.TotalDistance = scaledU32(act.TotalDistance(), 100)
	session.TotalCalories = uint16(clampInt(act.TotalCalories(), 0, math.MaxUint16-1))
	session.NumLaps = uint16(len(activity.Laps))
	activity.Sessions = append(activity.Sessions, session)

	summary := fit.NewActivityMsg()
	summary.Timestamp = end
	summary.TotalTimerTime = session.TotalTimerTime
	summary.NumSessions = 1
	summary.Event = fit.EventActivity
	summary.EventType = fit.EventTypeStop
	activity.Activity = summary

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("encode fit: %w", err)
	}
	return buf.Bytes(), nil
}

func fitSport(s ttbin.Sport) (fit.Sport, fit.SubSport) {
	switch s {
	case ttbin.SportRunning:
		return fit.SportRunning, fit.SubSportGeneric
	case ttbin.SportTreadmill:
		return fit.SportRunning, fit.SubSportTreadmill
	case ttbin.SportBiking:
		return fit.SportCycling, fit.SubSportGeneric
	case ttbin.SportSwimming:
		return fit.SportSwimming, fit.SubSportLapSwimming
	default:
		return fit.SportGeneric, fit.SubSportGeneric
	}
}

func scaledU32(v, scale float64) uint32 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return uint32(math.Min(math.Round(v*scale), math.MaxUint32-1))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
