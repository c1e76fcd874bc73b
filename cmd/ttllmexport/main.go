package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasjlepore/ttbin-analyzer/internal/cli"
	"github.com/lucasjlepore/ttbin-analyzer/llmexport"
)

func main() {
	var (
		outDir     = flag.String("out-dir", "", "Output directory for manifest.json and records.jsonl")
		overwrite  = flag.Bool("overwrite", true, "Allow writing to non-empty output directories")
		copySource = flag.Bool("copy-source", true, "Copy original ttbin file into export directory as source.ttbin")
		forgiving  = flag.Bool("forgiving", false, "Skip damaged records instead of failing")
		verbose    = flag.Bool("v", false, "Verbose logging")
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <path-to-ttbin-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	cli.ConfigureLogging(*verbose)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	inputPath := flag.Arg(0)
	if strings.TrimSpace(*outDir) == "" {
		base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
		*outDir = filepath.Join(".", "exports", base+"_"+llmexport.ExportFormatVersion)
	}

	result, err := llmexport.ExportFile(inputPath, *outDir, llmexport.ExportOptions{
		Overwrite:      *overwrite,
		CopySourceFile: *copySource,
		Forgiving:      *forgiving,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Export complete\n")
	fmt.Printf("Export id:   %s\n", result.ExportID)
	fmt.Printf("Output dir:  %s\n", result.OutputDir)
	fmt.Printf("Manifest:    %s\n", result.ManifestPath)
	fmt.Printf("Records:     %s\n", result.RecordsPath)
	if result.SourceCopyPath != "" {
		fmt.Printf("Source:      %s\n", result.SourceCopyPath)
	}
	fmt.Printf("Records:     %d (%d accepted, %d skipped, %d rejected, %d failed)\n",
		result.RecordCount, result.AcceptedCount, result.SkippedCount, result.RejectedCount, result.FailedCount)
	fmt.Printf("Diagnostics: %d\n", result.DiagnosticCount)
	fmt.Printf("CRC16:       %s\n", result.SourceCRC16)
}
