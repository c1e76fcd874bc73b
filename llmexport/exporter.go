package llmexport

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coreos/pkg/capnslog"
	"github.com/google/uuid"

	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

var plog = capnslog.NewPackageLogger("github.com/lucasjlepore/ttbin-analyzer", "llmexport")

// ExportFile parses a ttbin file and writes an LLM-friendly, lossless export bundle.
// Output files:
//   - manifest.json
//   - records.jsonl
//   - source.ttbin (optional)
func ExportFile(inputPath, outputDir string, opts ExportOptions) (*ExportResult, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(outputDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read ttbin file: %w", err)
	}
	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	parsed, err := parseTTBinBytes(data, opts.Forgiving)
	if err != nil {
		return nil, fmt.Errorf("parse ttbin file: %w", err)
	}

	if err := ensureOutputDir(outputDir, opts.Overwrite); err != nil {
		return nil, err
	}

	recordsPath := filepath.Join(outputDir, "records.jsonl")
	if err := writeJSONL(recordsPath, parsed.Records); err != nil {
		return nil, fmt.Errorf("write records.jsonl: %w", err)
	}

	exportID := uuid.NewString()
	manifest := buildManifest(parsed, exportID, inputPath, sha, int64(len(data)), opts.Forgiving)
	manifest.RecordsPath = filepath.Base(recordsPath)

	manifestPath := filepath.Join(outputDir, "manifest.json")
	if err := writeJSON(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("write manifest.json: %w", err)
	}

	sourceCopyPath := ""
	if opts.CopySourceFile {
		sourceCopyPath = filepath.Join(outputDir, "source.ttbin")
		if err := copyFile(inputPath, sourceCopyPath); err != nil {
			return nil, fmt.Errorf("copy source ttbin file: %w", err)
		}
	}

	plog.Infof("exported %d records from %s to %s (export %s)", len(parsed.Records), inputPath, outputDir, exportID)

	return &ExportResult{
		ExportID:        exportID,
		OutputDir:       outputDir,
		ManifestPath:    manifestPath,
		RecordsPath:     recordsPath,
		SourceCopyPath:  sourceCopyPath,
		RecordCount:     len(parsed.Records),
		AcceptedCount:   parsed.StatusCounts[string(ttbin.StatusAccepted)],
		SkippedCount:    parsed.StatusCounts[string(ttbin.StatusSkipped)],
		RejectedCount:   parsed.StatusCounts[string(ttbin.StatusRejected)],
		FailedCount:     parsed.StatusCounts[string(ttbin.StatusFailed)],
		DiagnosticCount: len(parsed.Diagnostics),
		SourceSHA256:    sha,
		SourceCRC16:     parsed.CRC16,
		SourceSizeBytes: int64(len(data)),
	}, nil
}

// BuildManifest assembles the manifest for an in-memory bundle.
func BuildManifest(bundle *ParsedBundle, exportID, sourceName string, forgiving bool) Manifest {
	parsed := &parsedStream{
		Header:       bundle.Header,
		Lengths:      bundle.Lengths,
		Records:      bundle.Records,
		Diagnostics:  bundle.Diagnostics,
		StatusCounts: bundle.StatusCounts,
		KindCounts:   bundle.KindCounts,
		Activity:     bundle.Activity,
		CRC16:        bundle.SourceCRC16,
	}
	m := buildManifest(parsed, exportID, sourceName, bundle.SourceSHA256, bundle.SourceSizeBytes, forgiving)
	m.RecordsPath = "records.jsonl"
	return m
}

func buildManifest(parsed *parsedStream, exportID, inputPath, sha string, size int64, forgiving bool) Manifest {
	return Manifest{
		FormatVersion:      ExportFormatVersion,
		ExportID:           exportID,
		GeneratedAt:        time.Now().UTC(),
		SourceFile:         inputPath,
		SourceFileName:     filepath.Base(inputPath),
		SourceSHA256:       sha,
		SourceCRC16:        parsed.CRC16,
		SourceSizeBytes:    size,
		Forgiving:          forgiving,
		Header:             parsed.Header,
		RecordLengths:      parsed.Lengths,
		RecordCount:        len(parsed.Records),
		StatusCounts:       parsed.StatusCounts,
		KindCounts:         parsed.KindCounts,
		Diagnostics:        parsed.Diagnostics,
		ActivityProjection: parsed.Activity,
		SchemaDescription: SchemaDetails{
			RecordType: "JSONL line-per-ttbin-record preserving original order and byte offsets",
			Notes: []string{
				"Lossless: every dispatched record is exported with its tag byte and payload as raw hex.",
				"payload_length excludes the tag byte; record_lengths mirrors the header table the same way.",
				"Known tags carry fixed-offset fields; unknown tags stay opaque.",
				"Bytes skipped while resynchronizing are reported in diagnostics, not as records.",
				"Timestamps are watch wall-clock seconds since 1970 and carry no zone.",
				"Use record_index and file_offset for deterministic chunking in LLM pipelines.",
			},
		},
	}
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL(path string, records []RecordEnvelope) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := bufio.NewWriterSize(f, 1<<20)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return err
		}
	}
	return buf.Flush()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
