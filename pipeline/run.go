package pipeline

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"

	ttnotes "github.com/lucasjlepore/ttbin-analyzer"
	"github.com/lucasjlepore/ttbin-analyzer/llmexport"
	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

var plog = capnslog.NewPackageLogger("github.com/lucasjlepore/ttbin-analyzer", "pipeline")

const (
	lapSummaryFile       = "lap_summary.json"
	activitySummaryFile  = "activity_summary.json"
	workoutStructureFile = "workout_structure.json"
	trainingSummaryFile  = "training_summary.md"
	fitFile              = "activity.fit"
	tcxFile              = "activity.tcx"
)

// Run executes the full ttbin_analyze pipeline and writes all required artifacts.
func Run(opts Options) (*Result, error) {
	if strings.TrimSpace(opts.TTBinPath) == "" {
		return nil, fmt.Errorf("ttbin path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	baseExport, err := llmexport.ExportFile(opts.TTBinPath, opts.OutDir, llmexport.ExportOptions{
		Overwrite:      opts.Overwrite,
		CopySourceFile: opts.CopySource,
		Forgiving:      opts.Forgiving,
	})
	if err != nil {
		return nil, err
	}

	records, err := loadRecords(baseExport.RecordsPath)
	if err != nil {
		return nil, fmt.Errorf("load records.jsonl: %w", err)
	}
	samples := buildCanonicalSamples(records)

	canonicalPath := filepath.Join(opts.OutDir, "canonical_samples."+format)
	switch format {
	case "csv":
		if err := writeCanonicalCSV(canonicalPath, samples); err != nil {
			return nil, fmt.Errorf("write canonical csv: %w", err)
		}
	case "parquet":
		if err := writeCanonicalParquet(canonicalPath, samples); err != nil {
			return nil, fmt.Errorf("write canonical parquet: %w", err)
		}
	}

	decoded, err := ttbin.DecodeFile(opts.TTBinPath, ttbin.Options{Forgiving: opts.Forgiving})
	if err != nil {
		return nil, fmt.Errorf("decode activity: %w", err)
	}
	analysis := ttnotes.AnalyzeDecoded(decoded, ttnotes.Config{
		Forgiving:    opts.Forgiving,
		MaxHeartRate: opts.MaxHeartRate,
	})
	analysis.FilePath = opts.TTBinPath

	art, err := renderArtifacts(decoded.Activity, analysis, samples, opts.WriteFIT, opts.WriteTCX)
	if err != nil {
		return nil, err
	}
	for name, data := range art.files {
		if err := os.WriteFile(filepath.Join(opts.OutDir, name), data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	result := &Result{
		OutputDir:            opts.OutDir,
		ManifestPath:         baseExport.ManifestPath,
		RecordsPath:          baseExport.RecordsPath,
		SourceCopyPath:       baseExport.SourceCopyPath,
		CanonicalSamplesPath: canonicalPath,
		WorkoutStructurePath: filepath.Join(opts.OutDir, workoutStructureFile),
		ActivitySummaryPath:  filepath.Join(opts.OutDir, activitySummaryFile),
		TrainingSummaryPath:  filepath.Join(opts.OutDir, trainingSummaryFile),
		Warnings:             dedupe(append(recordWarnings(records, decoded.Diagnostics), art.warnings...)),
	}
	if _, ok := art.files[lapSummaryFile]; ok {
		result.LapSummaryPath = filepath.Join(opts.OutDir, lapSummaryFile)
	}
	if _, ok := art.files[fitFile]; ok {
		result.FITPath = filepath.Join(opts.OutDir, fitFile)
	}
	if _, ok := art.files[tcxFile]; ok {
		result.TCXPath = filepath.Join(opts.OutDir, tcxFile)
	}
	plog.Infof("pipeline wrote %d samples and %d laps to %s", len(samples), len(analysis.Laps), opts.OutDir)
	return result, nil
}

// RunBytes executes the pipeline in memory and returns every artifact keyed by
// file name.
func RunBytes(opts BytesOptions) (*BytesResult, error) {
	if len(opts.TTBinData) == 0 {
		return nil, fmt.Errorf("ttbin data is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(opts.SourceFileName)
	if name == "" {
		name = "input.ttbin"
	}

	bundle, err := llmexport.ParseBytes(opts.TTBinData, opts.Forgiving)
	if err != nil {
		return nil, err
	}
	files := make(map[string][]byte, 12)

	manifest := llmexport.BuildManifest(bundle, uuid.NewString(), name, opts.Forgiving)
	if files["manifest.json"], err = llmexport.MarshalJSON(manifest); err != nil {
		return nil, fmt.Errorf("marshal manifest.json: %w", err)
	}
	if files["records.jsonl"], err = llmexport.MarshalJSONL(bundle.Records); err != nil {
		return nil, fmt.Errorf("marshal records.jsonl: %w", err)
	}
	if opts.CopySource {
		files["source.ttbin"] = append([]byte(nil), opts.TTBinData...)
	}

	samples := buildCanonicalSamples(bundle.Records)
	canonicalName := "canonical_samples." + format
	switch format {
	case "csv":
		files[canonicalName], err = marshalCanonicalCSV(samples)
	case "parquet":
		files[canonicalName], err = marshalCanonicalParquet(samples)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal canonical samples: %w", err)
	}

	analysis := ttnotes.AnalyzeDecoded(bundle.Decoded, ttnotes.Config{
		Forgiving:    opts.Forgiving,
		MaxHeartRate: opts.MaxHeartRate,
	})
	analysis.FilePath = name

	art, err := renderArtifacts(bundle.Decoded.Activity, analysis, samples, opts.WriteFIT, opts.WriteTCX)
	if err != nil {
		return nil, err
	}
	for k, v := range art.files {
		files[k] = v
	}

	warnings := append(llmexport.BuildWarningsFromBundle(bundle), art.warnings...)
	return &BytesResult{
		Files:    files,
		Warnings: dedupe(warnings),
		Analysis: analysis,
	}, nil
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	return format, nil
}

type artifacts struct {
	files    map[string][]byte
	warnings []string
}

// renderArtifacts builds the derived summaries shared by Run and RunBytes.
func renderArtifacts(act *ttbin.Activity, analysis *ttnotes.Analysis, samples []CanonicalSample, withFIT, withTCX bool) (*artifacts, error) {
	art := &artifacts{files: make(map[string][]byte, 6)}
	if len(samples) == 0 {
		art.warnings = append(art.warnings, "no track points decoded")
	}

	lapSummary := buildLapSummary(analysis, samples)
	if len(lapSummary.Laps) > 0 {
		data, err := llmexport.MarshalJSON(lapSummary)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", lapSummaryFile, err)
		}
		art.files[lapSummaryFile] = data
	}

	structure := WorkoutStructureFile{
		Structure: analysis.WorkoutStructure,
		Intervals: analysis.Intervals,
	}
	data, err := llmexport.MarshalJSON(structure)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", workoutStructureFile, err)
	}
	art.files[workoutStructureFile] = data

	summary := buildActivitySummary(analysis, samples)
	art.warnings = append(art.warnings, summary.Warnings...)
	if data, err = llmexport.MarshalJSON(summary); err != nil {
		return nil, fmt.Errorf("marshal %s: %w", activitySummaryFile, err)
	}
	art.files[activitySummaryFile] = data

	art.files[trainingSummaryFile] = []byte("# Training summary\n\n" + analysis.Notes + "\n")

	if withFIT {
		data, err := EncodeFIT(act)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", fitFile, err)
		}
		art.files[fitFile] = data
	}
	if withTCX {
		data, err := EncodeTCX(act)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", tcxFile, err)
		}
		art.files[tcxFile] = data
	}
	return art, nil
}

func loadRecords(path string) ([]llmexport.RecordEnvelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	sc.Buffer(buf, 16*1024*1024)

	records := make([]llmexport.RecordEnvelope, 0, 4096)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec llmexport.RecordEnvelope
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal jsonl line: %w", err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// buildCanonicalSamples flattens accepted position, treadmill and swim records
// into samples. Heart rate records only annotate the preceding point. Lap
// indexes advance on a lap marker only once the current lap holds a sample,
// matching how the decoder opens laps.
func producesSample(kind string) bool {
	switch kind {
	case ttbin.KindPosition.String(), ttbin.KindTreadmill.String(), ttbin.KindSwim.String():
		return true
	}
	return false
}

func buildCanonicalSamples(records []llmexport.RecordEnvelope) []CanonicalSample {
	var (
		out               = make([]CanonicalSample, 0, len(records)/2)
		first             time.Time
		lap               int
		lapHasSamples     bool
		treadmillDistance float64
	)
	for _, rec := range records {
		if rec.Status != string(ttbin.StatusAccepted) {
			continue
		}
		if rec.RecordKind == ttbin.KindLapBoundary.String() {
			if lapHasSamples {
				lap++
				lapHasSamples = false
			}
			continue
		}
		if !producesSample(rec.RecordKind) {
			continue
		}
		p := rec.Point
		if p == nil {
			continue
		}
		if len(out) == 0 {
			first = p.Time
		}

		s := CanonicalSample{
			TSISO:       p.Time.Format(time.RFC3339),
			Timestamp:   p.Time,
			ElapsedS:    p.Time.Sub(first).Seconds(),
			LapIndex:    lap,
			Calories:    floatPtr(float64(p.Calories)),
			RecordKind:  rec.RecordKind,
			FileOffset:  rec.FileOffset,
			RecordIndex: rec.RecordIndex,
		}
		switch rec.RecordKind {
		case ttbin.KindPosition.String():
			s.LatitudeDeg = floatPtr(p.Latitude)
			s.LongitudeDeg = floatPtr(p.Longitude)
			s.SpeedMPS = floatPtr(p.Speed)
			s.DistanceM = floatPtr(p.CumulativeDistance)
			s.Cadence = floatPtr(float64(p.Cadence))
			s.ValidPosition = p.HasPosition()
		case ttbin.KindTreadmill.String():
			treadmillDistance += p.IncrementalDistance
			s.DistanceM = floatPtr(treadmillDistance)
			s.Cadence = floatPtr(float64(p.Cadence))
		}
		if p.HasHeartRate() {
			s.HRBPM = floatPtr(float64(p.HeartRate))
			s.ValidHR = true
		}
		out = append(out, s)
		lapHasSamples = true
	}
	return out
}

func buildLapSummary(analysis *ttnotes.Analysis, samples []CanonicalSample) LapSummaryFile {
	if analysis == nil || len(analysis.Laps) == 0 {
		return LapSummaryFile{}
	}
	laps := make([]LapSummary, 0, len(analysis.Laps))
	for _, lap := range analysis.Laps {
		idx := lap.Index - 1
		row := LapSummary{
			LapIndex:         idx,
			Label:            lap.Label,
			ElapsedS:         lap.DurationSeconds,
			DistanceM:        lap.DistanceMeters,
			Calories:         lap.Calories,
			AvgSpeedMPS:      lap.AvgSpeedMps,
			AvgPaceSecPerKm:  lap.AvgPaceSecPerKm,
			AvgHRBPM:         lap.AvgHeartRate,
			MaxHRBPM:         lap.MaxHeartRate,
			AvgCadence:       lap.AvgCadence,
			StartSampleIndex: -1,
			EndSampleIndex:   -1,
		}
		start, end := sampleRange(samples, idx)
		if start >= 0 {
			row.StartSampleIndex = start
			row.EndSampleIndex = end
			row.StartTS = samples[start].TSISO
			row.EndTS = samples[end].TSISO
		}
		laps = append(laps, row)
	}
	return LapSummaryFile{Laps: laps}
}

// sampleRange returns the first and last sample of lap, or -1, -1.
func sampleRange(samples []CanonicalSample, lap int) (int, int) {
	start := sort.Search(len(samples), func(i int) bool {
		return samples[i].LapIndex >= lap
	})
	if start >= len(samples) || samples[start].LapIndex != lap {
		return -1, -1
	}
	end := sort.Search(len(samples), func(i int) bool {
		return samples[i].LapIndex > lap
	})
	return start, end - 1
}

func buildActivitySummary(analysis *ttnotes.Analysis, samples []CanonicalSample) ActivitySummaryFile {
	summary := ActivitySummaryFile{
		Sport:               analysis.Sport,
		DurationS:           analysis.ElapsedSeconds,
		MovingS:             analysis.MovingSeconds,
		DistanceM:           analysis.DistanceMeters,
		GPSDistanceM:        analysis.GPSDistanceMeters,
		Calories:            analysis.Calories,
		AvgSpeedMPS:         analysis.AvgSpeedMps,
		MaxSpeedMPS:         analysis.MaxSpeedMps,
		AvgPaceSecPerKm:     analysis.AvgPaceSecPerKm,
		Best1KmS:            analysis.Best1KmSeconds,
		AvgHRBPM:            analysis.AvgHeartRate,
		MaxHRBPM:            analysis.MaxHeartRate,
		AvgCadence:          analysis.AvgCadence,
		MaxCadence:          analysis.MaxCadence,
		MaxHRUsed:           analysis.ReferenceMaxHR,
		MaxHRSource:         analysis.ReferenceMaxHRSource,
		PaceHRDecouplingPct: analysis.PaceHRDecoupling,
		HeartRateZones:      analysis.HeartRateZones,
		Bounds:              analysis.Bounds,
		SampleCount:         len(samples),
		Diagnostics:         analysis.Diagnostics,
	}
	if !analysis.StartTime.IsZero() {
		summary.StartTS = analysis.StartTime.Format(time.RFC3339)
	}
	switch analysis.ReferenceMaxHRSource {
	case "unavailable":
		summary.Warnings = append(summary.Warnings, "max_hr unavailable: heart_rate_zones omitted")
	case "observed":
		summary.Warnings = append(summary.Warnings, "max_hr_used estimated from the highest observed heart rate")
	}
	if analysis.GPSDistanceMeters > 0 && analysis.DistanceMeters > 0 {
		gap := analysis.GPSDistanceMeters/analysis.DistanceMeters - 1
		if gap > 0.1 || gap < -0.1 {
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("gps track distance differs from odometer by %+.1f%%", gap*100))
		}
	}
	return summary
}

func recordWarnings(records []llmexport.RecordEnvelope, diagnostics []ttbin.Diagnostic) []string {
	out := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		out = append(out, d.Message)
	}
	for _, rec := range records {
		out = append(out, rec.Warnings...)
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

var canonicalColumns = []string{
	"ts_iso", "elapsed_s", "lap_index", "latitude_deg", "longitude_deg", "speed_mps", "distance_m", "hr_bpm", "cadence", "calories",
	"valid_hr", "valid_position", "record_kind", "file_offset", "record_index",
}

func writeCanonicalCSV(path string, samples []CanonicalSample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return encodeCanonicalCSV(f, samples)
}

func marshalCanonicalCSV(samples []CanonicalSample) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeCanonicalCSV(&buf, samples); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonicalCSV(out io.Writer, samples []CanonicalSample) error {
	w := csv.NewWriter(out)
	if err := w.Write(canonicalColumns); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			s.TSISO,
			formatFloat(s.ElapsedS),
			strconv.Itoa(s.LapIndex),
			formatFloatPtr(s.LatitudeDeg),
			formatFloatPtr(s.LongitudeDeg),
			formatFloatPtr(s.SpeedMPS),
			formatFloatPtr(s.DistanceM),
			formatFloatPtr(s.HRBPM),
			formatFloatPtr(s.Cadence),
			formatFloatPtr(s.Calories),
			strconv.FormatBool(s.ValidHR),
			strconv.FormatBool(s.ValidPosition),
			s.RecordKind,
			strconv.FormatInt(s.FileOffset, 10),
			strconv.Itoa(s.RecordIndex),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func floatPtr(v float64) *float64 {
	out := v
	return &out
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
