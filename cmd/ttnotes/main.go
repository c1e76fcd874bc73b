package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	ttnotes "github.com/lucasjlepore/ttbin-analyzer"
	"github.com/lucasjlepore/ttbin-analyzer/internal/cli"
)

func main() {
	var (
		maxHR     = flag.Float64("max-hr", 0, "Max heart rate (optional; estimated from the highest observed value when omitted)")
		jsonOut   = flag.Bool("json", false, "Emit full analysis as JSON")
		showLaps  = flag.Bool("laps", false, "Include lap-by-lap summary in text output")
		forgiving = flag.Bool("forgiving", false, "Skip damaged records instead of failing")
		verbose   = flag.Bool("v", false, "Verbose logging")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <path-to-ttbin-file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	cli.ConfigureLogging(*verbose)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	analysis, err := ttnotes.AnalyzeFile(flag.Arg(0), ttnotes.Config{
		MaxHeartRate: *maxHR,
		Forgiving:    *forgiving,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysis); err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Println(analysis.Notes)
	if *showLaps && len(analysis.Laps) > 0 {
		fmt.Println()
		fmt.Println("Lap Summary")
		for _, lap := range analysis.Laps {
			fmt.Printf(
				"- Lap %02d | %-10s | %7.0f m | %s /km | %5.0f bpm | %6.1fs\n",
				lap.Index,
				lap.Label,
				lap.DistanceMeters,
				formatPace(lap.AvgPaceSecPerKm),
				lap.AvgHeartRate,
				lap.DurationSeconds,
			)
		}
	}
}

func formatPace(secPerKm float64) string {
	if secPerKm <= 0 {
		return " --:--"
	}
	total := int(secPerKm + 0.5)
	return fmt.Sprintf("%3d:%02d", total/60, total%60)
}
