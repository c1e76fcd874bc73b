package llmexport

import (
	"time"

	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

const (
	// ExportFormatVersion identifies the on-disk schema for LLM exports.
	ExportFormatVersion = "ttbin_llm_jsonl_v1"
)

// ExportOptions controls export behavior.
type ExportOptions struct {
	// Overwrite allows writing into a non-empty output directory.
	Overwrite bool

	// CopySourceFile writes a byte-for-byte copy of the source ttbin file to the output directory.
	CopySourceFile bool

	// Forgiving decodes damaged streams and records what was skipped instead of failing.
	Forgiving bool
}

// ExportResult describes generated files.
type ExportResult struct {
	ExportID        string `json:"export_id"`
	OutputDir       string `json:"output_dir"`
	ManifestPath    string `json:"manifest_path"`
	RecordsPath     string `json:"records_path"`
	SourceCopyPath  string `json:"source_copy_path,omitempty"`
	RecordCount     int    `json:"record_count"`
	AcceptedCount   int    `json:"accepted_count"`
	SkippedCount    int    `json:"skipped_count"`
	RejectedCount   int    `json:"rejected_count"`
	FailedCount     int    `json:"failed_count"`
	DiagnosticCount int    `json:"diagnostic_count"`
	SourceSHA256    string `json:"source_sha256"`
	SourceCRC16     string `json:"source_crc16"`
	SourceSizeBytes int64  `json:"source_size_bytes"`
}

// Manifest captures export metadata and pointers to exported files.
type Manifest struct {
	FormatVersion      string           `json:"format_version"`
	ExportID           string           `json:"export_id"`
	GeneratedAt        time.Time        `json:"generated_at"`
	SourceFile         string           `json:"source_file"`
	SourceFileName     string           `json:"source_file_name"`
	SourceSHA256       string           `json:"source_sha256"`
	SourceCRC16        string           `json:"source_crc16"`
	SourceSizeBytes    int64            `json:"source_size_bytes"`
	Forgiving          bool             `json:"forgiving"`
	Header             *HeaderInfo      `json:"header,omitempty"`
	RecordLengths      []LengthEntry    `json:"record_lengths"`
	RecordsPath        string           `json:"records_path"`
	RecordCount        int              `json:"record_count"`
	StatusCounts       map[string]int   `json:"status_counts"`
	KindCounts         map[string]int   `json:"kind_counts"`
	Diagnostics        []DiagnosticInfo `json:"diagnostics,omitempty"`
	ActivityProjection *ActivityInfo    `json:"activity_projection,omitempty"`
	SchemaDescription  SchemaDetails    `json:"schema_description"`
}

// SchemaDetails documents the record shape for downstream applications.
type SchemaDetails struct {
	RecordType string   `json:"record_type"`
	Notes      []string `json:"notes"`
}

// HeaderInfo stores parsed ttbin header values.
type HeaderInfo struct {
	FileVersion      uint16 `json:"file_version"`
	FirmwareVersion  string `json:"firmware_version"`
	ProductID        uint16 `json:"product_id"`
	StartTimeLocal   string `json:"start_time_local"`
	UTCOffsetSeconds int32  `json:"utc_offset_seconds"`
	LengthCount      int    `json:"length_count"`
}

// LengthEntry is one row of the header's record-length table. Length is the
// payload size, without the tag byte.
type LengthEntry struct {
	Tag    uint8  `json:"tag"`
	TagHex string `json:"tag_hex"`
	Kind   string `json:"kind"`
	Length int    `json:"length"`
}

// DiagnosticInfo is a recoverable decode problem.
type DiagnosticInfo struct {
	FileOffset int64  `json:"file_offset"`
	TagHex     string `json:"tag_hex"`
	Message    string `json:"message"`
}

// ActivityInfo is a convenience projection of the decoded activity.
type ActivityInfo struct {
	Sport          string  `json:"sport"`
	StartTime      string  `json:"start_time,omitempty"`
	LapCount       int     `json:"lap_count"`
	PointCount     int     `json:"point_count"`
	TotalSeconds   float64 `json:"total_seconds"`
	TotalDistanceM float64 `json:"total_distance_m"`
	TotalCalories  int     `json:"total_calories"`
}

// RecordEnvelope is one JSONL line in records.jsonl.
// The stream preserves original ttbin record order.
type RecordEnvelope struct {
	FormatVersion string            `json:"format_version"`
	RecordIndex   int               `json:"record_index"`
	FileOffset    int64             `json:"file_offset"`
	Tag           uint8             `json:"tag"`
	TagHex        string            `json:"tag_hex"`
	RecordKind    string            `json:"record_kind"`
	PayloadLength int               `json:"payload_length"`
	Status        string            `json:"status"`
	Fields        []FieldValue      `json:"fields,omitempty"`
	Point         *ttbin.TrackPoint `json:"point,omitempty"`
	RawRecordHex  string            `json:"raw_record_hex"`
	Detail        string            `json:"detail,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
}

// FieldValue is one fixed-offset field read from a known record payload.
type FieldValue struct {
	Name        string          `json:"name"`
	Offset      int             `json:"offset"`
	Size        int             `json:"size"`
	Type        string          `json:"type"`
	RawHex      string          `json:"raw_hex"`
	Decoded     any             `json:"decoded"`
	Scaled      any             `json:"scaled,omitempty"`
	Units       string          `json:"units,omitempty"`
	DecodeError string          `json:"decode_error,omitempty"`
	Timestamp   *TimeProjection `json:"timestamp_projection,omitempty"`
}

// TimeProjection is attached to fields holding watch wall-clock seconds.
type TimeProjection struct {
	Raw       uint32 `json:"raw"`
	WallClock string `json:"wall_clock"`
}
