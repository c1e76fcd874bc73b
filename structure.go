package ttnotes

import (
	"fmt"
	"math"
	"strings"
)

const workoutStructureSchemaVersion = "ttbin_workout_structure_v1"

// BlockKind names a contiguous phase of a session.
type BlockKind string

const (
	BlockWarmup   BlockKind = "warmup"
	BlockStrides  BlockKind = "strides"
	BlockMainSet  BlockKind = "main_set"
	BlockCooldown BlockKind = "cooldown"
	BlockSteady   BlockKind = "steady"
)

// WorkoutStructure groups labelled laps into session phases.
type WorkoutStructure struct {
	SchemaVersion  string         `json:"schema_version"`
	Confidence     float64        `json:"confidence"`
	CanonicalLabel string         `json:"canonical_label"`
	Blocks         []WorkoutBlock `json:"blocks,omitempty"`
	Strides        *StrideSet     `json:"strides,omitempty"`
	MainSet        *IntervalSet   `json:"main_set,omitempty"`
}

// WorkoutBlock aggregates a run of laps. Lap numbers are 1-based.
type WorkoutBlock struct {
	BlockType          BlockKind `json:"block_type"`
	FirstLap           int       `json:"first_lap"`
	LastLap            int       `json:"last_lap"`
	StartOffsetSeconds float64   `json:"start_offset_seconds"`
	EndOffsetSeconds   float64   `json:"end_offset_seconds"`
	DurationSeconds    float64   `json:"duration_seconds"`
	DistanceMeters     float64   `json:"distance_meters"`
	AvgSpeedMps        float64   `json:"avg_speed_mps"`
	AvgPaceSecPerKm    float64   `json:"avg_pace_sec_per_km"`
	AvgHeartRate       float64   `json:"avg_heart_rate_bpm"`
	AvgCadence         float64   `json:"avg_cadence"`
	Description        string    `json:"description"`
}

// StrideSet describes short fast pickups run before the main set.
type StrideSet struct {
	Count       int     `json:"count"`
	OnSeconds   float64 `json:"on_seconds"`
	OffSeconds  float64 `json:"off_seconds"`
	OnSpeedMps  float64 `json:"on_speed_mps"`
	OffSpeedMps float64 `json:"off_speed_mps"`
}

// IntervalSet describes the main block of work/recovery repetitions.
type IntervalSet struct {
	Reps                 int          `json:"reps"`
	WorkSeconds          float64      `json:"work_seconds"`
	RecoverySeconds      float64      `json:"recovery_seconds"`
	WorkSpeedMps         float64      `json:"work_speed_mps"`
	RecoverySpeedMps     float64      `json:"recovery_speed_mps"`
	WorkPaceSecPerKm     float64      `json:"work_pace_sec_per_km"`
	RecoveryPaceSecPerKm float64      `json:"recovery_pace_sec_per_km"`
	SpeedDriftPct        float64      `json:"speed_drift_pct"`
	CadenceDriftPct      float64      `json:"cadence_drift_pct"`
	HeartRateDriftBPM    float64      `json:"heart_rate_drift_bpm"`
	Prescription         string       `json:"prescription"`
	Repetitions          []Repetition `json:"repetitions,omitempty"`
}

// Repetition pairs one work lap with the recovery lap that follows it.
type Repetition struct {
	Number           int     `json:"number"`
	WorkLap          int     `json:"work_lap"`
	WorkSeconds      float64 `json:"work_seconds"`
	WorkPaceSecPerKm float64 `json:"work_pace_sec_per_km"`
	WorkHeartRate    float64 `json:"work_heart_rate_bpm,omitempty"`
	// PaceDeltaPct is positive when the rep ran faster than the set pace.
	PaceDeltaPct         float64 `json:"pace_delta_pct,omitempty"`
	RecoveryLap          int     `json:"recovery_lap,omitempty"`
	RecoverySeconds      float64 `json:"recovery_seconds,omitempty"`
	RecoveryPaceSecPerKm float64 `json:"recovery_pace_sec_per_km,omitempty"`
}

// lapSpan is an inclusive range of positions in a lap slice.
type lapSpan struct{ first, last int }

var noSpan = lapSpan{-1, -1}

func (s lapSpan) ok() bool { return s.first >= 0 && s.last >= s.first }

const (
	baseConfidence    = 0.25
	maxConfidence     = 0.99
	strideMaxSeconds  = 45.0
	strideJogSeconds  = 90.0
	strideJogMaxRatio = 0.80
)

var blockConfidence = map[BlockKind]float64{
	BlockWarmup:   0.08,
	BlockStrides:  0.16,
	BlockMainSet:  0.36,
	BlockCooldown: 0.08,
}

type structureBuilder struct {
	laps    []LapSummary
	claimed []bool
	ws      WorkoutStructure
}

func (sb *structureBuilder) claim(kind BlockKind, span lapSpan, desc string) {
	if !span.ok() || span.first >= len(sb.laps) {
		return
	}
	if span.last >= len(sb.laps) {
		span.last = len(sb.laps) - 1
	}
	sb.ws.Blocks = append(sb.ws.Blocks, summarizeBlock(kind, sb.laps[span.first:span.last+1], desc))
	for i := span.first; i <= span.last; i++ {
		sb.claimed[i] = true
	}
	sb.ws.Confidence += blockConfidence[kind]
}

// InferWorkoutStructure splits labelled laps into warmup, strides, main set,
// cooldown and steady blocks, with a prescription for the main set.
func InferWorkoutStructure(laps []LapSummary, intervals IntervalSummary) WorkoutStructure {
	sb := &structureBuilder{
		laps:    laps,
		claimed: make([]bool, len(laps)),
		ws: WorkoutStructure{
			SchemaVersion: workoutStructureSchemaVersion,
			Confidence:    baseConfidence,
		},
	}
	if len(laps) == 0 {
		sb.ws.CanonicalLabel = "unable to infer workout structure (no lap data)"
		return sb.ws
	}

	main := findMainSet(laps)
	strideSpan, strides := findStrides(laps, main.first, intervals)

	if main.first > 0 {
		warmup := lapSpan{0, main.first - 1}
		if strideSpan.ok() && strideSpan.first > 0 {
			warmup.last = strideSpan.first - 1
		}
		sb.claim(BlockWarmup, warmup, "Easy running before the quality work")
	}
	if strides != nil {
		sb.ws.Strides = strides
		sb.claim(BlockStrides, strideSpan, fmt.Sprintf("%dx%s strides with %s jog",
			strides.Count, compactDuration(strides.OnSeconds), compactDuration(strides.OffSeconds)))
	}
	if main.ok() {
		set := describeIntervalSet(laps[main.first:main.last+1], intervals)
		sb.ws.MainSet = &set
		sb.claim(BlockMainSet, main, set.Prescription)
		if set.Reps >= 4 {
			sb.ws.Confidence += 0.08
		}
	}
	sb.claim(BlockCooldown, findCooldown(laps, main.last), "Easy jog to finish the session")

	runStart := -1
	for i := 0; i <= len(laps); i++ {
		free := i < len(laps) && !sb.claimed[i]
		switch {
		case free && runStart < 0:
			runStart = i
		case !free && runStart >= 0:
			sb.claim(BlockSteady, lapSpan{runStart, i - 1}, "Unclassified steady running block")
			runStart = -1
		}
	}

	if len(sb.ws.Blocks) >= 3 {
		sb.ws.Confidence += 0.05
	}
	sb.ws.Confidence = math.Min(sb.ws.Confidence, maxConfidence)
	sb.ws.CanonicalLabel = canonicalLabel(sb.ws)
	return sb.ws
}

// findMainSet spans the first to the last work lap plus a trailing recovery.
func findMainSet(laps []LapSummary) lapSpan {
	span := noSpan
	for i, lap := range laps {
		if lap.Label != "work" {
			continue
		}
		if span.first < 0 {
			span.first = i
		}
		span.last = i
	}
	if span.ok() && span.last+1 < len(laps) && laps[span.last+1].Label == "recovery" {
		span.last++
	}
	return span
}

func findStrides(laps []LapSummary, mainFirst int, intervals IntervalSummary) (lapSpan, *StrideSet) {
	if mainFirst <= 1 {
		return noSpan, nil
	}
	span := noSpan
	var on, off, onSpeed, offSpeed []float64
	for i := 0; i+1 < mainFirst; i++ {
		fast, jog := laps[i], laps[i+1]
		isStride := fast.Label == "stride" ||
			(intervals.AvgWorkSpeedMps > 0 && fast.DurationSeconds < strideMaxSeconds && fast.AvgSpeedMps >= intervals.AvgWorkSpeedMps)
		isJog := jog.DurationSeconds <= strideJogSeconds && jog.AvgSpeedMps > 0 &&
			jog.AvgSpeedMps < fast.AvgSpeedMps*strideJogMaxRatio
		if !isStride || !isJog {
			continue
		}
		if span.first < 0 {
			span.first = i
		}
		span.last = i + 1
		on = append(on, fast.DurationSeconds)
		off = append(off, jog.DurationSeconds)
		onSpeed = append(onSpeed, fast.AvgSpeedMps)
		offSpeed = append(offSpeed, jog.AvgSpeedMps)
		i++
	}
	if len(on) < 2 {
		return noSpan, nil
	}
	return span, &StrideSet{
		Count:       len(on),
		OnSeconds:   average(on),
		OffSeconds:  average(off),
		OnSpeedMps:  average(onSpeed),
		OffSpeedMps: average(offSpeed),
	}
}

// findCooldown returns the first cooldown lap after the main set extended
// over any following cooldown or easy laps.
func findCooldown(laps []LapSummary, mainLast int) lapSpan {
	from := 0
	if mainLast >= 0 {
		from = mainLast + 1
	}
	for i := from; i < len(laps); i++ {
		if laps[i].Label != "cooldown" {
			continue
		}
		last := i
		for last+1 < len(laps) && (laps[last+1].Label == "cooldown" || laps[last+1].Label == "easy") {
			last++
		}
		return lapSpan{i, last}
	}
	return noSpan
}

func describeIntervalSet(laps []LapSummary, intervals IntervalSummary) IntervalSet {
	var work, recovery []LapSummary
	for _, lap := range laps {
		switch lap.Label {
		case "work":
			work = append(work, lap)
		case "recovery":
			recovery = append(recovery, lap)
		}
	}

	set := IntervalSet{
		Reps:              len(work),
		WorkSeconds:       fallback(meanOf(work, lapDuration), intervals.AvgWorkDurationSeconds),
		RecoverySeconds:   fallback(meanOf(recovery, lapDuration), intervals.AvgRecoveryDurationSeconds),
		WorkSpeedMps:      fallback(meanOf(work, lapSpeed), intervals.AvgWorkSpeedMps),
		RecoverySpeedMps:  fallback(meanOf(recovery, lapSpeed), intervals.AvgRecoverySpeedMps),
		SpeedDriftPct:     intervals.WorkSpeedChangePct,
		CadenceDriftPct:   intervals.WorkCadenceChangePct,
		HeartRateDriftBPM: intervals.WorkHeartRateChange,
	}
	set.WorkPaceSecPerKm = roundPace(paceFromSpeed(set.WorkSpeedMps))
	set.RecoveryPaceSecPerKm = roundPace(paceFromSpeed(set.RecoverySpeedMps))

	set.Prescription = fmt.Sprintf("%dx%s @%s/km", set.Reps, compactDuration(set.WorkSeconds), formatPace(set.WorkPaceSecPerKm))
	if len(recovery) > 0 {
		set.Prescription += fmt.Sprintf(" with %s @%s/km recoveries",
			compactDuration(set.RecoverySeconds), formatPace(set.RecoveryPaceSecPerKm))
	}

	for i, lap := range laps {
		if lap.Label != "work" {
			continue
		}
		rep := Repetition{
			Number:           len(set.Repetitions) + 1,
			WorkLap:          lap.Index,
			WorkSeconds:      lap.DurationSeconds,
			WorkPaceSecPerKm: lap.AvgPaceSecPerKm,
			WorkHeartRate:    lap.AvgHeartRate,
		}
		if set.WorkPaceSecPerKm > 0 && lap.AvgPaceSecPerKm > 0 {
			rep.PaceDeltaPct = (set.WorkPaceSecPerKm/lap.AvgPaceSecPerKm - 1) * 100
		}
		for _, next := range laps[i+1:] {
			if next.Label == "work" {
				break
			}
			if next.Label == "recovery" {
				rep.RecoveryLap = next.Index
				rep.RecoverySeconds = next.DurationSeconds
				rep.RecoveryPaceSecPerKm = next.AvgPaceSecPerKm
				break
			}
		}
		set.Repetitions = append(set.Repetitions, rep)
	}
	return set
}

func canonicalLabel(ws WorkoutStructure) string {
	var parts []string
	for _, b := range ws.Blocks {
		switch b.BlockType {
		case BlockWarmup, BlockCooldown:
			parts = append(parts, string(b.BlockType)+" "+compactDuration(b.DurationSeconds))
		case BlockStrides:
			if ws.Strides != nil {
				parts = append(parts, fmt.Sprintf("strides %dx%s", ws.Strides.Count, compactDuration(ws.Strides.OnSeconds)))
			}
		case BlockMainSet:
			if ws.MainSet != nil {
				parts = append(parts, ws.MainSet.Prescription)
			}
		}
	}
	if len(parts) == 0 {
		return "unclassified session structure"
	}
	return strings.Join(parts, " + ")
}

func summarizeBlock(kind BlockKind, laps []LapSummary, desc string) WorkoutBlock {
	first, last := laps[0], laps[len(laps)-1]
	b := WorkoutBlock{
		BlockType:          kind,
		FirstLap:           first.Index,
		LastLap:            last.Index,
		StartOffsetSeconds: first.StartOffsetSeconds,
		EndOffsetSeconds:   last.EndOffsetSeconds,
		Description:        desc,
	}
	var hr, cad weightedMean
	for _, l := range laps {
		b.DurationSeconds += l.DurationSeconds
		b.DistanceMeters += l.DistanceMeters
		hr.add(l.AvgHeartRate, l.DurationSeconds)
		cad.add(l.AvgCadence, l.DurationSeconds)
	}
	if b.DurationSeconds > 0 {
		b.AvgSpeedMps = b.DistanceMeters / b.DurationSeconds
	}
	b.AvgPaceSecPerKm = paceFromSpeed(b.AvgSpeedMps)
	b.AvgHeartRate = hr.value()
	b.AvgCadence = cad.value()
	return b
}

// weightedMean ignores non-positive samples.
type weightedMean struct{ sum, weight float64 }

func (w *weightedMean) add(v, weight float64) {
	if v <= 0 || weight <= 0 {
		return
	}
	w.sum += v * weight
	w.weight += weight
}

func (w weightedMean) value() float64 {
	if w.weight <= 0 {
		return 0
	}
	return w.sum / w.weight
}

func lapDuration(l LapSummary) float64 { return l.DurationSeconds }
func lapSpeed(l LapSummary) float64    { return l.AvgSpeedMps }

func meanOf(laps []LapSummary, field func(LapSummary) float64) float64 {
	if len(laps) == 0 {
		return 0
	}
	total := 0.0
	for _, l := range laps {
		total += field(l)
	}
	return total / float64(len(laps))
}

func fallback(v, alt float64) float64 {
	if v == 0 {
		return alt
	}
	return v
}

// roundPace rounds seconds per kilometre to the nearest 5 s.
func roundPace(secPerKm float64) float64 {
	if secPerKm == 0 {
		return 0
	}
	return math.Round(secPerKm/5) * 5
}

// compactDuration renders 90 as "1m30s", 180 as "3m" and 40 as "40s".
func compactDuration(seconds float64) string {
	s := int(math.Round(seconds))
	switch {
	case s <= 0:
		return "0s"
	case s < 60:
		return fmt.Sprintf("%ds", s)
	case s%60 == 0:
		return fmt.Sprintf("%dm", s/60)
	default:
		return fmt.Sprintf("%dm%02ds", s/60, s%60)
	}
}

// formatPace renders seconds per kilometre as m:ss.
func formatPace(secPerKm float64) string {
	s := int(math.Round(secPerKm))
	if s <= 0 {
		return "-:--"
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
