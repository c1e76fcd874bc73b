package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	ttnotes "github.com/lucasjlepore/ttbin-analyzer"
	"github.com/lucasjlepore/ttbin-analyzer/internal/cli"
	"github.com/lucasjlepore/ttbin-analyzer/store"
	"github.com/lucasjlepore/ttbin-analyzer/ttbin"
)

func main() {
	var (
		dbPath    = flag.String("db", store.PathFromEnv(), "Activity library database (default from TTBIN_DB_PATH)")
		forgiving = flag.Bool("forgiving", false, "Skip damaged records instead of failing on import")
		limit     = flag.Int("limit", 20, "Maximum activities to list (0 lists all)")
		maxHR     = flag.Float64("max-hr", 0, "Max heart rate used by notes")
		verbose   = flag.Bool("v", false, "Verbose logging")
	)
	flag.Usage = func() {
		out := flag.CommandLine.Output()
		fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintln(out, "Commands:")
		fmt.Fprintln(out, "  import <file.ttbin>...  decode and store activities")
		fmt.Fprintln(out, "  list                    list stored activities")
		fmt.Fprintln(out, "  show <id>               print an activity summary as JSON")
		fmt.Fprintln(out, "  notes <id>              print training notes for a stored activity")
		fmt.Fprintln(out, "  delete <id>             remove an activity")
		fmt.Fprintln(out)
		flag.PrintDefaults()
	}
	flag.Parse()
	cli.ConfigureLogging(*verbose)

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	lib, err := store.Open(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ttlibrary failed: %v\n", err)
		os.Exit(1)
	}
	defer lib.Close()

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "import":
		err = importFiles(ctx, lib, args, *forgiving)
	case "list":
		err = list(ctx, lib, *limit)
	case "show":
		err = withID(args, func(id string) error { return show(ctx, lib, id) })
	case "notes":
		err = withID(args, func(id string) error { return notes(ctx, lib, id, *maxHR) })
	case "delete":
		err = withID(args, func(id string) error { return lib.Delete(ctx, id) })
	default:
		flag.Usage()
		lib.Close()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ttlibrary failed: %v\n", err)
		lib.Close()
		os.Exit(1)
	}
}

func withID(args []string, fn func(string) error) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one activity id")
	}
	return fn(args[0])
}

func importFiles(ctx context.Context, lib *store.Store, paths []string, forgiving bool) error {
	if len(paths) == 0 {
		return fmt.Errorf("no files to import")
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		res, err := ttbin.Decode(data, ttbin.Options{Forgiving: forgiving})
		if err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		sum := sha256.Sum256(data)
		id, created, err := lib.Save(ctx, res.Activity, store.Source{
			Name:   filepath.Base(path),
			SHA256: hex.EncodeToString(sum[:]),
		})
		if err != nil {
			return fmt.Errorf("store %s: %w", path, err)
		}
		status := "imported"
		if !created {
			status = "already stored"
		}
		fmt.Printf("%-14s %s  %s\n", status, id, path)
		for _, d := range res.Diagnostics {
			fmt.Printf("warning:       %s\n", d)
		}
	}
	return nil
}

func list(ctx context.Context, lib *store.Store, limit int) error {
	records, err := lib.List(ctx, limit)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("%s  %s  %-9s  %8.2f km  %8s  %s\n",
			r.ID,
			r.StartTime.Format("2006-01-02 15:04"),
			r.Sport,
			r.DistanceMeters/1000,
			formatSeconds(r.DurationSeconds),
			r.SourceName,
		)
	}
	return nil
}

func show(ctx context.Context, lib *store.Store, id string) error {
	rec, err := lib.Get(ctx, id)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rec)
}

func notes(ctx context.Context, lib *store.Store, id string, maxHR float64) error {
	act, err := lib.LoadActivity(ctx, id)
	if err != nil {
		return err
	}
	analysis := ttnotes.Analyze(act, ttnotes.Config{MaxHeartRate: maxHR})
	fmt.Println(analysis.Notes)
	return nil
}

func formatSeconds(seconds float64) string {
	total := int(seconds + 0.5)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
