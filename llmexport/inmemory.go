package llmexport

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

// ParsedBundle is the in-memory representation of a decoded ttbin stream.
type ParsedBundle struct {
	Header          *HeaderInfo
	Lengths         []LengthEntry
	Records         []RecordEnvelope
	Diagnostics     []DiagnosticInfo
	StatusCounts    map[string]int
	KindCounts      map[string]int
	Activity        *ActivityInfo
	SourceSHA256    string
	SourceCRC16     string
	SourceSizeBytes int64

	// Decoded is the decoder output the envelopes were built from.
	Decoded *ttbin.Result
}

// ParseBytes parses raw ttbin bytes into the same record model used by JSONL export.
func ParseBytes(data []byte, forgiving bool) (*ParsedBundle, error) {
	parsed, err := parseTTBinBytes(data, forgiving)
	if err != nil {
		return nil, fmt.Errorf("parse ttbin bytes: %w", err)
	}
	sum := sha256.Sum256(data)
	return &ParsedBundle{
		Header:          parsed.Header,
		Lengths:         parsed.Lengths,
		Records:         parsed.Records,
		Diagnostics:     parsed.Diagnostics,
		StatusCounts:    parsed.StatusCounts,
		KindCounts:      parsed.KindCounts,
		Activity:        parsed.Activity,
		SourceSHA256:    hex.EncodeToString(sum[:]),
		SourceCRC16:     parsed.CRC16,
		SourceSizeBytes: int64(len(data)),
		Decoded:         parsed.Result,
	}, nil
}

// MarshalJSON renders indented JSON with deterministic key order.
func MarshalJSON(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	out = append(out, '\n')
	return out, nil
}

// MarshalJSONL renders record envelopes as JSONL bytes.
func MarshalJSONL(records []RecordEnvelope) ([]byte, error) {
	var buf bytes.Buffer
	w := bufio.NewWriterSize(&buf, 1<<20)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, record := range records {
		if err := enc.Encode(record); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildWarningsFromBundle returns deterministic parse-quality warning notes.
func BuildWarningsFromBundle(bundle *ParsedBundle) []string {
	if bundle == nil {
		return nil
	}
	warnings := make([]string, 0, 4)
	if bundle.Header == nil {
		warnings = append(warnings, "stream has no header")
	}
	if n := bundle.StatusCounts[string(ttbin.StatusRejected)]; n > 0 {
		warnings = append(warnings, fmt.Sprintf("rejected records: %d", n))
	}
	if n := bundle.StatusCounts[string(ttbin.StatusFailed)]; n > 0 {
		warnings = append(warnings, fmt.Sprintf("failed records: %d", n))
	}
	for _, d := range bundle.Diagnostics {
		if s := strings.TrimSpace(d.Message); s != "" {
			warnings = append(warnings, s)
		}
	}
	for _, rec := range bundle.Records {
		for _, w := range rec.Warnings {
			if s := strings.TrimSpace(w); s != "" {
				warnings = append(warnings, s)
			}
		}
	}
	return dedupeStrings(warnings)
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
