package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasjlepore/ttbin-analyzer/internal/cli"
	"github.com/lucasjlepore/ttbin-analyzer/pipeline"
)

func main() {
	var (
		ttbinPath = flag.String("ttbin", "", "Path to input .ttbin file")
		outDir    = flag.String("out", "", "Output directory")
		maxHR     = flag.Float64("max-hr", 0, "Max heart rate for zones (estimated from the data when 0)")
		format    = flag.String("format", "parquet", "Canonical sample format: parquet|csv")
		overwrite = flag.Bool("overwrite", true, "Allow writing into non-empty output directories")
		forgiving = flag.Bool("forgiving", false, "Skip damaged records instead of failing")
		writeFIT  = flag.Bool("fit", false, "Also write activity.fit")
		writeTCX  = flag.Bool("tcx", false, "Also write activity.tcx")
		verbose   = flag.Bool("v", false, "Verbose logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --ttbin input.ttbin --out outdir [--max-hr 190] [--format parquet|csv] [--fit] [--tcx]\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()
	cli.ConfigureLogging(*verbose)

	if strings.TrimSpace(*ttbinPath) == "" || strings.TrimSpace(*outDir) == "" {
		flag.Usage()
		os.Exit(2)
	}

	result, err := pipeline.Run(pipeline.Options{
		TTBinPath:    *ttbinPath,
		OutDir:       *outDir,
		MaxHeartRate: *maxHR,
		Format:       *format,
		Overwrite:    *overwrite,
		CopySource:   true,
		Forgiving:    *forgiving,
		WriteFIT:     *writeFIT,
		WriteTCX:     *writeTCX,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ttbin_analyze failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ttbin_analyze complete\n")
	fmt.Printf("Output dir:          %s\n", result.OutputDir)
	fmt.Printf("records.jsonl:       %s\n", result.RecordsPath)
	fmt.Printf("manifest.json:       %s\n", result.ManifestPath)
	fmt.Printf("canonical samples:   %s\n", result.CanonicalSamplesPath)
	fmt.Printf("workout structure:   %s\n", result.WorkoutStructurePath)
	if result.LapSummaryPath != "" {
		fmt.Printf("lap summary:         %s\n", result.LapSummaryPath)
	}
	fmt.Printf("activity summary:    %s\n", result.ActivitySummaryPath)
	fmt.Printf("training summary:    %s\n", result.TrainingSummaryPath)
	if result.FITPath != "" {
		fmt.Printf("fit:                 %s\n", result.FITPath)
	}
	if result.TCXPath != "" {
		fmt.Printf("tcx:                 %s\n", result.TCXPath)
	}
	if result.SourceCopyPath != "" {
		fmt.Printf("source copy:         %s\n", result.SourceCopyPath)
	}
	for _, w := range result.Warnings {
		fmt.Printf("warning:             %s\n", w)
	}
}
