package pipeline

import (
	"time"

	ttnotes "github.com/lucasjlepore/ttbin-analyzer"
)

// Options configures the ttbin_analyze pipeline.
type Options struct {
	TTBinPath    string
	OutDir       string
	MaxHeartRate float64
	Format       string // parquet|csv
	Overwrite    bool
	CopySource   bool
	Forgiving    bool
	WriteFIT     bool
	WriteTCX     bool
}

// BytesOptions configures an in-memory pipeline run.
type BytesOptions struct {
	SourceFileName string
	TTBinData      []byte
	MaxHeartRate   float64
	Format         string // parquet|csv
	CopySource     bool
	Forgiving      bool
	WriteFIT       bool
	WriteTCX       bool
}

// Result returns generated output paths.
type Result struct {
	OutputDir            string   `json:"output_dir"`
	ManifestPath         string   `json:"manifest_path"`
	RecordsPath          string   `json:"records_path"`
	SourceCopyPath       string   `json:"source_copy_path,omitempty"`
	CanonicalSamplesPath string   `json:"canonical_samples_path"`
	WorkoutStructurePath string   `json:"workout_structure_path"`
	LapSummaryPath       string   `json:"lap_summary_path,omitempty"`
	ActivitySummaryPath  string   `json:"activity_summary_path"`
	TrainingSummaryPath  string   `json:"training_summary_path"`
	FITPath              string   `json:"fit_path,omitempty"`
	TCXPath              string   `json:"tcx_path,omitempty"`
	Warnings             []string `json:"warnings,omitempty"`
}

// BytesResult holds every artifact of an in-memory run keyed by file name.
type BytesResult struct {
	Files    map[string][]byte
	Warnings []string
	Analysis *ttnotes.Analysis
}

// CanonicalSample is one decoded track point in stream order.
type CanonicalSample struct {
	TSISO         string    `json:"ts_iso"`
	Timestamp     time.Time `json:"-"`
	ElapsedS      float64   `json:"elapsed_s"`
	LapIndex      int       `json:"lap_index"`
	LatitudeDeg   *float64  `json:"latitude_deg,omitempty"`
	LongitudeDeg  *float64  `json:"longitude_deg,omitempty"`
	SpeedMPS      *float64  `json:"speed_mps,omitempty"`
	DistanceM     *float64  `json:"distance_m,omitempty"`
	HRBPM         *float64  `json:"hr_bpm,omitempty"`
	Cadence       *float64  `json:"cadence,omitempty"`
	Calories      *float64  `json:"calories,omitempty"`
	ValidHR       bool      `json:"valid_hr"`
	ValidPosition bool      `json:"valid_position"`
	RecordKind    string    `json:"record_kind"`
	FileOffset    int64     `json:"file_offset"`
	RecordIndex   int       `json:"record_index"`
}

// WorkoutStructureFile is the semantic workout structure output.
type WorkoutStructureFile struct {
	Structure ttnotes.WorkoutStructure `json:"structure"`
	Intervals ttnotes.IntervalSummary  `json:"intervals"`
}

// LapSummaryFile contains lap-level aggregate data.
type LapSummaryFile struct {
	Laps []LapSummary `json:"laps"`
}

// LapSummary is one lap summary row.
type LapSummary struct {
	LapIndex         int     `json:"lap_index"`
	Label            string  `json:"label"`
	StartTS          string  `json:"start_ts"`
	EndTS            string  `json:"end_ts"`
	ElapsedS         float64 `json:"elapsed_s"`
	DistanceM        float64 `json:"distance_m"`
	Calories         int     `json:"calories"`
	AvgSpeedMPS      float64 `json:"avg_speed_mps"`
	AvgPaceSecPerKm  float64 `json:"avg_pace_sec_per_km"`
	AvgHRBPM         float64 `json:"avg_hr_bpm"`
	MaxHRBPM         float64 `json:"max_hr_bpm"`
	AvgCadence       float64 `json:"avg_cadence"`
	StartSampleIndex int     `json:"start_sample_index"`
	EndSampleIndex   int     `json:"end_sample_index"`
}

// ActivitySummaryFile contains one-session aggregate metrics.
type ActivitySummaryFile struct {
	Sport               string                 `json:"sport"`
	StartTS             string                 `json:"start_ts,omitempty"`
	DurationS           float64                `json:"duration_s"`
	MovingS             float64                `json:"moving_s"`
	DistanceM           float64                `json:"distance_m"`
	GPSDistanceM        float64                `json:"gps_distance_m"`
	Calories            int                    `json:"calories"`
	AvgSpeedMPS         float64                `json:"avg_speed_mps"`
	MaxSpeedMPS         float64                `json:"max_speed_mps"`
	AvgPaceSecPerKm     float64                `json:"avg_pace_sec_per_km"`
	Best1KmS            float64                `json:"best_1km_s,omitempty"`
	AvgHRBPM            float64                `json:"avg_hr_bpm"`
	MaxHRBPM            float64                `json:"max_hr_bpm"`
	AvgCadence          float64                `json:"avg_cadence"`
	MaxCadence          float64                `json:"max_cadence"`
	MaxHRUsed           float64                `json:"max_hr_used_bpm,omitempty"`
	MaxHRSource         string                 `json:"max_hr_source"`
	PaceHRDecouplingPct float64                `json:"pace_hr_decoupling_pct"`
	HeartRateZones      []ttnotes.ZoneDuration `json:"heart_rate_zones,omitempty"`
	Bounds              *ttnotes.Bounds        `json:"bounds,omitempty"`
	SampleCount         int                    `json:"sample_count"`
	Diagnostics         []string               `json:"diagnostics,omitempty"`
	Warnings            []string               `json:"warnings,omitempty"`
}
