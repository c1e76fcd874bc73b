package ttnotes

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

const (
	movingSpeedMps      = 0.5
	maxSampleGapSeconds = 10.0
	cadenceWindowSec    = 60.0
)

// Config controls optional calculations that require athlete-specific inputs.
type Config struct {
	// Forgiving decodes damaged files instead of failing on the first bad record.
	Forgiving bool
	// MaxHeartRate anchors the heart-rate zones. Zero estimates it from the data.
	MaxHeartRate float64
}

// Analysis contains extracted metrics and generated notes for a ttbin activity.
type Analysis struct {
	FilePath             string           `json:"file_path,omitempty"`
	Sport                string           `json:"sport"`
	StartTime            time.Time        `json:"start_time"`
	EndTime              time.Time        `json:"end_time"`
	ElapsedSeconds       float64          `json:"elapsed_seconds"`
	MovingSeconds        float64          `json:"moving_seconds"`
	DistanceMeters       float64          `json:"distance_meters"`
	GPSDistanceMeters    float64          `json:"gps_distance_meters"`
	Calories             int              `json:"calories"`
	AvgSpeedMps          float64          `json:"avg_speed_mps"`
	MaxSpeedMps          float64          `json:"max_speed_mps"`
	AvgPaceSecPerKm      float64          `json:"avg_pace_sec_per_km"`
	Best1KmSeconds       float64          `json:"best_1km_seconds"`
	AvgHeartRate         float64          `json:"avg_heart_rate_bpm"`
	MaxHeartRate         float64          `json:"max_heart_rate_bpm"`
	AvgCadence           float64          `json:"avg_cadence"`
	MaxCadence           float64          `json:"max_cadence"`
	ReferenceMaxHR       float64          `json:"reference_max_hr_bpm"`
	ReferenceMaxHRSource string           `json:"reference_max_hr_source"`
	PaceHRDecoupling     float64          `json:"pace_hr_decoupling_pct"`
	HeartRateZones       []ZoneDuration   `json:"heart_rate_zones,omitempty"`
	Bounds               *Bounds          `json:"bounds,omitempty"`
	Laps                 []LapSummary     `json:"laps,omitempty"`
	Intervals            IntervalSummary  `json:"intervals"`
	WorkoutStructure     WorkoutStructure `json:"workout_structure"`
	Diagnostics          []string         `json:"diagnostics,omitempty"`
	Notes                string           `json:"notes"`
}

// ZoneDuration stores time spent in a heart-rate zone.
type ZoneDuration struct {
	Zone        string  `json:"zone"`
	MinPctMaxHR float64 `json:"min_pct_max_hr"`
	MaxPctMaxHR float64 `json:"max_pct_max_hr"`
	Seconds     float64 `json:"seconds"`
	Percentage  float64 `json:"percentage"`
}

// LapSummary is a compact lap-level view for interval and pacing analysis.
type LapSummary struct {
	Index              int     `json:"index"`
	StartOffsetSeconds float64 `json:"start_offset_seconds"`
	EndOffsetSeconds   float64 `json:"end_offset_seconds"`
	DurationSeconds    float64 `json:"duration_seconds"`
	DistanceMeters     float64 `json:"distance_meters"`
	AvgSpeedMps        float64 `json:"avg_speed_mps"`
	MaxSpeedMps        float64 `json:"max_speed_mps"`
	AvgPaceSecPerKm    float64 `json:"avg_pace_sec_per_km"`
	AvgHeartRate       float64 `json:"avg_heart_rate_bpm"`
	MaxHeartRate       float64 `json:"max_heart_rate_bpm"`
	AvgCadence         float64 `json:"avg_cadence"`
	Calories           int     `json:"calories"`
	Label              string  `json:"label"`
}

// IntervalSummary captures the detected interval structure of the workout.
type IntervalSummary struct {
	WorkCount                  int     `json:"work_count"`
	RecoveryCount              int     `json:"recovery_count"`
	StrideCount                int     `json:"stride_count"`
	AvgWorkDurationSeconds     float64 `json:"avg_work_duration_seconds"`
	AvgRecoveryDurationSeconds float64 `json:"avg_recovery_duration_seconds"`
	AvgWorkSpeedMps            float64 `json:"avg_work_speed_mps"`
	AvgRecoverySpeedMps        float64 `json:"avg_recovery_speed_mps"`
	WorkSpeedChangePct         float64 `json:"work_speed_change_pct"`
	WorkCadenceChangePct       float64 `json:"work_cadence_change_pct"`
	WorkHeartRateChange        float64 `json:"work_heart_rate_change_bpm"`
}

type pointSeries struct {
	start       time.Time
	end         time.Time
	durationSec float64
	movingSec   float64

	speedSamples []float64
	hrSamples    []float64
	cadSamples   []float64

	pairedSpeed []float64
	pairedHR    []float64
}

// AnalyzeFile decodes and analyzes a ttbin file.
func AnalyzeFile(path string, cfg Config) (*Analysis, error) {
	res, err := ttbin.DecodeFile(path, ttbin.Options{Forgiving: cfg.Forgiving})
	if err != nil {
		return nil, err
	}
	analysis := AnalyzeDecoded(res, cfg)
	analysis.FilePath = path
	return analysis, nil
}

// AnalyzeDecoded analyzes a decode result and carries its diagnostics into the notes.
func AnalyzeDecoded(res *ttbin.Result, cfg Config) *Analysis {
	diagnostics := make([]string, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		diagnostics = append(diagnostics, d.String())
	}
	return analyze(res.Activity, diagnostics, cfg)
}

// Analyze derives metrics, lap labels, workout structure and notes from an activity.
func Analyze(act *ttbin.Activity, cfg Config) *Analysis {
	return analyze(act, nil, cfg)
}

func analyze(act *ttbin.Activity, diagnostics []string, cfg Config) *Analysis {
	points := act.Points()
	series := buildPointSeries(points, act.Sport)

	analysis := &Analysis{
		Sport:       act.Sport.String(),
		Diagnostics: diagnostics,
	}

	analysis.StartTime = act.Date
	if analysis.StartTime.IsZero() {
		analysis.StartTime = series.start
	}
	analysis.EndTime = series.end

	analysis.ElapsedSeconds = series.durationSec
	if analysis.ElapsedSeconds == 0 {
		analysis.ElapsedSeconds = safePositive(act.TotalSeconds())
	}
	analysis.MovingSeconds = series.movingSec
	if analysis.MovingSeconds == 0 {
		analysis.MovingSeconds = analysis.ElapsedSeconds
	}

	analysis.GPSDistanceMeters = trackDistance(points)
	analysis.DistanceMeters = safePositive(act.TotalDistance())
	if analysis.DistanceMeters == 0 {
		analysis.DistanceMeters = analysis.GPSDistanceMeters
	}
	analysis.Calories = act.TotalCalories()
	analysis.Bounds = trackBounds(points)

	if analysis.MovingSeconds > 0 {
		analysis.AvgSpeedMps = analysis.DistanceMeters / analysis.MovingSeconds
	}
	if analysis.AvgSpeedMps == 0 {
		analysis.AvgSpeedMps = average(series.speedSamples)
	}
	analysis.MaxSpeedMps = maxValue(series.speedSamples)
	analysis.AvgPaceSecPerKm = paceFromSpeed(analysis.AvgSpeedMps)
	analysis.Best1KmSeconds = bestEffortSeconds(points, 1000)

	analysis.AvgHeartRate = average(series.hrSamples)
	analysis.MaxHeartRate = maxValue(series.hrSamples)
	analysis.AvgCadence = average(series.cadSamples)
	analysis.MaxCadence = maxValue(series.cadSamples)

	analysis.ReferenceMaxHR = safePositive(cfg.MaxHeartRate)
	switch {
	case analysis.ReferenceMaxHR > 0:
		analysis.ReferenceMaxHRSource = "input"
	case analysis.MaxHeartRate > 0:
		analysis.ReferenceMaxHR = analysis.MaxHeartRate
		analysis.ReferenceMaxHRSource = "observed"
	default:
		analysis.ReferenceMaxHRSource = "unavailable"
	}

	analysis.PaceHRDecoupling = paceHRDecoupling(series.pairedSpeed, series.pairedHR)
	analysis.HeartRateZones = buildHeartRateZones(series.hrSamples, analysis.ReferenceMaxHR)
	analysis.Laps, analysis.Intervals = summarizeLaps(act, series.start, analysis.AvgSpeedMps)
	analysis.WorkoutStructure = InferWorkoutStructure(analysis.Laps, analysis.Intervals)
	analysis.Notes = BuildTrainingNotes(analysis)

	return analysis
}

func buildPointSeries(points []*ttbin.TrackPoint, sport ttbin.Sport) pointSeries {
	ps := pointSeries{}
	if len(points) == 0 {
		return ps
	}

	rows := make([]*ttbin.TrackPoint, 0, len(points))
	for _, p := range points {
		if p == nil || p.Time.IsZero() {
			continue
		}
		rows = append(rows, p)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time.Before(rows[j].Time)
	})
	if len(rows) == 0 {
		return ps
	}

	ps.start = rows[0].Time
	ps.end = rows[len(rows)-1].Time
	if ps.end.After(ps.start) {
		ps.durationSec = ps.end.Sub(ps.start).Seconds()
	}

	var prev *ttbin.TrackPoint
	for _, p := range rows {
		delta := 0.0
		if prev != nil {
			delta = p.Time.Sub(prev.Time).Seconds()
		}

		speed, hasSpeed := pointSpeed(p, delta)
		if hasSpeed {
			ps.speedSamples = append(ps.speedSamples, speed)
			if delta > 0 && delta <= maxSampleGapSeconds && speed >= movingSpeedMps {
				ps.movingSec += delta
			}
		}
		if p.HasHeartRate() && p.HeartRate > 0 {
			hr := float64(p.HeartRate)
			ps.hrSamples = append(ps.hrSamples, hr)
			if hasSpeed && speed > 0 {
				ps.pairedSpeed = append(ps.pairedSpeed, speed)
				ps.pairedHR = append(ps.pairedHR, hr)
			}
		}
		prev = p
	}

	ps.cadSamples = cadenceSamples(rows, sport)
	return ps
}

// pointSpeed prefers the watch's GPS speed and falls back to the distance
// covered since the previous sample.
func pointSpeed(p *ttbin.TrackPoint, delta float64) (float64, bool) {
	if p.HasPosition() {
		if !isFinite(p.Speed) || p.Speed < 0 {
			return 0, false
		}
		return p.Speed, true
	}
	if p.IncrementalDistance > 0 && delta > 0 && delta <= maxSampleGapSeconds {
		return p.IncrementalDistance / delta, true
	}
	return 0, false
}

// cadenceSamples converts the per-record counters into cadence values. Running
// fixes carry the cycles since the previous fix and treadmill samples a running
// step total, so both are averaged over one-minute windows. Bike cadence is
// reported directly.
func cadenceSamples(points []*ttbin.TrackPoint, sport ttbin.Sport) []float64 {
	switch sport {
	case ttbin.SportRunning:
		return windowedRate(points, func(_, cur *ttbin.TrackPoint) float64 {
			return float64(cur.Cadence)
		})
	case ttbin.SportTreadmill:
		return windowedRate(points, func(prev, cur *ttbin.TrackPoint) float64 {
			if prev == nil || cur.Cadence <= prev.Cadence {
				return 0
			}
			return float64(cur.Cadence - prev.Cadence)
		})
	case ttbin.SportBiking, ttbin.SportOther:
		out := make([]float64, 0, len(points))
		for _, p := range points {
			if p.Cadence > 0 {
				out = append(out, float64(p.Cadence))
			}
		}
		return out
	default:
		return nil
	}
}

func windowedRate(points []*ttbin.TrackPoint, increment func(prev, cur *ttbin.TrackPoint) float64) []float64 {
	var (
		out         []float64
		total       float64
		windowStart time.Time
		prev        *ttbin.TrackPoint
	)
	for _, p := range points {
		if windowStart.IsZero() {
			windowStart = p.Time
		} else {
			total += increment(prev, p)
			secs := p.Time.Sub(windowStart).Seconds()
			if secs >= cadenceWindowSec {
				if total > 0 {
					out = append(out, total*60/secs)
				}
				total = 0
				windowStart = p.Time
			}
		}
		prev = p
	}
	return out
}

// bestEffortSeconds returns the fastest time to cover meters, or 0 when the
// activity is shorter than that.
func bestEffortSeconds(points []*ttbin.TrackPoint, meters float64) float64 {
	type mark struct {
		at   time.Time
		dist float64
	}
	marks := make([]mark, 0, len(points))
	hasCumulative := false
	for _, p := range points {
		if p.CumulativeDistance > 0 {
			hasCumulative = true
			break
		}
	}
	running := 0.0
	for _, p := range points {
		if hasCumulative {
			if p.CumulativeDistance <= 0 {
				continue
			}
			marks = append(marks, mark{at: p.Time, dist: p.CumulativeDistance})
			continue
		}
		running += p.IncrementalDistance
		marks = append(marks, mark{at: p.Time, dist: running})
	}

	best := 0.0
	i := 0
	for j := range marks {
		for i+1 < j && marks[j].dist-marks[i+1].dist >= meters {
			i++
		}
		if marks[j].dist-marks[i].dist < meters {
			continue
		}
		secs := marks[j].at.Sub(marks[i].at).Seconds()
		if secs > 0 && (best == 0 || secs < best) {
			best = secs
		}
	}
	return best
}

func summarizeLaps(act *ttbin.Activity, start time.Time, sessionAvgSpeed float64) ([]LapSummary, IntervalSummary) {
	if len(act.Laps) == 0 {
		return nil, IntervalSummary{}
	}

	summaries := make([]LapSummary, 0, len(act.Laps))
	lapSpeeds := make([]float64, 0, len(act.Laps))
	for idx, lap := range act.Laps {
		if lap == nil || len(lap.Points) == 0 {
			continue
		}
		series := buildPointSeries(lap.Points, act.Sport)

		duration := safePositive(lap.TotalSeconds)
		offset := 0.0
		if !start.IsZero() {
			offset = safePositive(lap.StartTime().Sub(start).Seconds())
		}
		avgSpeed := 0.0
		if duration > 0 {
			avgSpeed = safePositive(lap.Length) / duration
		}
		if avgSpeed == 0 {
			avgSpeed = average(series.speedSamples)
		}
		if avgSpeed > 0 {
			lapSpeeds = append(lapSpeeds, avgSpeed)
		}

		summaries = append(summaries, LapSummary{
			Index:              idx + 1,
			StartOffsetSeconds: offset,
			EndOffsetSeconds:   offset + duration,
			DurationSeconds:    duration,
			DistanceMeters:     safePositive(lap.Length),
			AvgSpeedMps:        avgSpeed,
			MaxSpeedMps:        maxValue(series.speedSamples),
			AvgPaceSecPerKm:    paceFromSpeed(avgSpeed),
			AvgHeartRate:       average(series.hrSamples),
			MaxHeartRate:       maxValue(series.hrSamples),
			AvgCadence:         average(series.cadSamples),
			Calories:           lap.Calories,
			Label:              "steady",
		})
	}
	if len(summaries) == 0 {
		return summaries, IntervalSummary{}
	}

	baselineSpeed := sessionAvgSpeed
	if baselineSpeed <= 0 {
		baselineSpeed = average(lapSpeeds)
	}
	if baselineSpeed <= 0 {
		return summaries, IntervalSummary{}
	}
	hardThreshold := baselineSpeed * 1.10
	easyThreshold := baselineSpeed * 0.92

	workIndices := make([]int, 0)
	recoveryIndices := make([]int, 0)
	strideCount := 0

	for i := range summaries {
		lap := &summaries[i]
		if lap.AvgSpeedMps <= 0 || lap.DurationSeconds <= 0 {
			continue
		}
		if lap.AvgSpeedMps >= hardThreshold {
			if lap.DurationSeconds < 45 {
				lap.Label = "stride"
				strideCount++
			} else {
				lap.Label = "work"
				workIndices = append(workIndices, i)
			}
			continue
		}
		if lap.DurationSeconds >= 60 && lap.AvgSpeedMps <= easyThreshold {
			lap.Label = "easy"
		}
	}

	seenRecovery := make(map[int]struct{})
	for _, wi := range workIndices {
		next := wi + 1
		if next >= len(summaries) {
			continue
		}
		candidate := &summaries[next]
		if candidate.DurationSeconds >= 30 && candidate.AvgSpeedMps > 0 && candidate.AvgSpeedMps <= easyThreshold {
			candidate.Label = "recovery"
			if _, exists := seenRecovery[next]; !exists {
				seenRecovery[next] = struct{}{}
				recoveryIndices = append(recoveryIndices, next)
			}
		}
	}

	if len(workIndices) > 0 {
		firstWork := workIndices[0]
		lastWork := workIndices[len(workIndices)-1]
		for i := 0; i < firstWork; i++ {
			if summaries[i].Label == "easy" || i == 0 {
				summaries[i].Label = "warmup"
			}
		}
		for i := lastWork + 1; i < len(summaries); i++ {
			if summaries[i].Label == "recovery" {
				continue
			}
			if summaries[i].Label == "easy" || summaries[i].AvgSpeedMps <= easyThreshold {
				summaries[i].Label = "cooldown"
			}
		}
	}

	intervals := IntervalSummary{
		WorkCount:     len(workIndices),
		RecoveryCount: len(recoveryIndices),
		StrideCount:   strideCount,
	}

	workSpeeds := make([]float64, 0, len(workIndices))
	workDurations := make([]float64, 0, len(workIndices))
	workCadences := make([]float64, 0, len(workIndices))
	workHR := make([]float64, 0, len(workIndices))
	for _, idx := range workIndices {
		workSpeeds = append(workSpeeds, summaries[idx].AvgSpeedMps)
		workDurations = append(workDurations, summaries[idx].DurationSeconds)
		if summaries[idx].AvgCadence > 0 {
			workCadences = append(workCadences, summaries[idx].AvgCadence)
		}
		if summaries[idx].AvgHeartRate > 0 {
			workHR = append(workHR, summaries[idx].AvgHeartRate)
		}
	}

	recoverySpeeds := make([]float64, 0, len(recoveryIndices))
	recoveryDurations := make([]float64, 0, len(recoveryIndices))
	for _, idx := range recoveryIndices {
		recoverySpeeds = append(recoverySpeeds, summaries[idx].AvgSpeedMps)
		recoveryDurations = append(recoveryDurations, summaries[idx].DurationSeconds)
	}

	intervals.AvgWorkSpeedMps = average(workSpeeds)
	intervals.AvgWorkDurationSeconds = average(workDurations)
	intervals.AvgRecoverySpeedMps = average(recoverySpeeds)
	intervals.AvgRecoveryDurationSeconds = average(recoveryDurations)
	intervals.WorkSpeedChangePct = pctChange(firstValue(workSpeeds), lastValue(workSpeeds))
	intervals.WorkCadenceChangePct = pctChange(firstValue(workCadences), lastValue(workCadences))
	if len(workHR) >= 2 {
		intervals.WorkHeartRateChange = lastValue(workHR) - firstValue(workHR)
	}

	return summaries, intervals
}

func buildHeartRateZones(hrSamples []float64, maxHR float64) []ZoneDuration {
	if maxHR <= 0 || len(hrSamples) == 0 {
		return nil
	}

	type boundary struct {
		zone string
		min  float64
		max  float64
	}
	zones := []boundary{
		{zone: "Z1 Recovery", min: 0, max: 60},
		{zone: "Z2 Endurance", min: 60, max: 70},
		{zone: "Z3 Tempo", min: 70, max: 80},
		{zone: "Z4 Threshold", min: 80, max: 90},
		{zone: "Z5 VO2max", min: 90, max: 1000},
	}

	counts := make([]int, len(zones))
	total := 0
	for _, hr := range hrSamples {
		if hr <= 0 {
			continue
		}
		percent := (hr / maxHR) * 100.0
		for i, z := range zones {
			if percent >= z.min && percent < z.max {
				counts[i]++
				total++
				break
			}
		}
	}
	if total == 0 {
		return nil
	}

	out := make([]ZoneDuration, 0, len(zones))
	for i, z := range zones {
		seconds := float64(counts[i])
		out = append(out, ZoneDuration{
			Zone:        z.zone,
			MinPctMaxHR: z.min,
			MaxPctMaxHR: z.max,
			Seconds:     seconds,
			Percentage:  (seconds / float64(total)) * 100.0,
		})
	}
	return out
}

// paceHRDecoupling compares speed per heartbeat between the two halves of the
// session. Negative values mean the athlete slowed for the same effort.
func paceHRDecoupling(speed, hr []float64) float64 {
	n := len(speed)
	if n == 0 || n != len(hr) || n < 20 {
		return 0
	}
	mid := n / 2

	s1, h1 := average(speed[:mid]), average(hr[:mid])
	s2, h2 := average(speed[mid:]), average(hr[mid:])
	if s1 == 0 || s2 == 0 || h1 == 0 || h2 == 0 {
		return 0
	}

	firstRatio := s1 / h1
	secondRatio := s2 / h2
	if firstRatio == 0 {
		return 0
	}
	return ((secondRatio / firstRatio) - 1.0) * 100.0
}

func paceFromSpeed(mps float64) float64 {
	if mps <= 0 || !isFinite(mps) {
		return 0
	}
	return 1000.0 / mps
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0.0
	count := 0
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		total += v
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

func maxValue(values []float64) float64 {
	max := 0.0
	found := false
	for _, v := range values {
		if !isFinite(v) {
			continue
		}
		if !found || v > max {
			max = v
			found = true
		}
	}
	if !found {
		return 0
	}
	return max
}

func pctChange(start, end float64) float64 {
	if start == 0 {
		return 0
	}
	return ((end / start) - 1.0) * 100.0
}

func firstValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[0]
}

func lastValue(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func safePositive(v float64) float64 {
	if !isFinite(v) || v <= 0 {
		return 0
	}
	return v
}

func describeSource(a *Analysis) string {
	if a.FilePath == "" {
		return a.Sport
	}
	return fmt.Sprintf("%s (%s)", a.Sport, a.FilePath)
}
