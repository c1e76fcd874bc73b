//go:build js && wasm

package main

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"syscall/js"
	"time"

	"github.com/lucasjlepore/ttbin-analyzer/pipeline"
)

func main() {
	js.Global().Set("analyzeTTBin", js.FuncOf(analyzeTTBin))
	select {}
}

func failure(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

func analyzeTTBin(_ js.Value, args []js.Value) any {
	if len(args) < 2 {
		return failure("expected arguments: fileBytes(Uint8Array), options(object)")
	}
	fileArg, optsArg := args[0], args[1]
	if fileArg.IsUndefined() || fileArg.IsNull() || fileArg.Get("length").Int() == 0 {
		return failure("ttbin file bytes are required")
	}

	fileBytes := make([]byte, fileArg.Get("length").Int())
	if n := js.CopyBytesToGo(fileBytes, fileArg); n == 0 {
		return failure("failed to read ttbin bytes from JS input")
	}

	result, err := pipeline.RunBytes(pipeline.BytesOptions{
		SourceFileName: getString(optsArg, "source_file_name", "input.ttbin"),
		TTBinData:      fileBytes,
		MaxHeartRate:   getFloat(optsArg, "max_hr"),
		Format:         getString(optsArg, "format", "csv"),
		CopySource:     true,
		Forgiving:      getBool(optsArg, "forgiving"),
		WriteFIT:       getBool(optsArg, "fit"),
		WriteTCX:       getBool(optsArg, "tcx"),
	})
	if err != nil {
		return failure(err.Error())
	}

	zipBytes, err := zipArtifacts(result.Files)
	if err != nil {
		return failure(fmt.Sprintf("create zip: %v", err))
	}
	payload := js.Global().Get("Uint8Array").New(len(zipBytes))
	js.CopyBytesToJS(payload, zipBytes)

	names := sortedNames(result.Files)
	resp := map[string]any{
		"ok":       true,
		"zip":      payload,
		"warnings": stringsToAny(result.Warnings),
		"files":    stringsToAny(names),
	}
	if result.Analysis != nil {
		resp["notes"] = result.Analysis.Notes
	}
	return resp
}

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func zipArtifacts(files map[string][]byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	epoch := time.Unix(0, 0).UTC()

	for _, name := range sortedNames(files) {
		h := &zip.FileHeader{Name: name, Method: zip.Deflate}
		h.Modified = epoch
		w, err := zw.CreateHeader(h)
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := w.Write(files[name]); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lookup(v js.Value, key string) (js.Value, bool) {
	if v.IsUndefined() || v.IsNull() {
		return js.Undefined(), false
	}
	out := v.Get(key)
	if out.IsUndefined() || out.IsNull() {
		return js.Undefined(), false
	}
	return out, true
}

func getString(v js.Value, key, fallback string) string {
	out, ok := lookup(v, key)
	if !ok || out.Type() != js.TypeString || out.String() == "" {
		return fallback
	}
	return out.String()
}

func getFloat(v js.Value, key string) float64 {
	out, ok := lookup(v, key)
	if !ok || out.Type() != js.TypeNumber {
		return 0
	}
	return out.Float()
}

func getBool(v js.Value, key string) bool {
	out, ok := lookup(v, key)
	return ok && out.Type() == js.TypeBoolean && out.Bool()
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
