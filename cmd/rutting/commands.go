package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/rutting.report/internal/auth"
	"github.com/banshee-data/rutting.report/internal/config"
	"github.com/banshee-data/rutting.report/internal/db"
	"github.com/banshee-data/rutting.report/internal/grid"
	"github.com/banshee-data/rutting.report/internal/httputil"
	"github.com/banshee-data/rutting.report/internal/monitoring"
	"github.com/banshee-data/rutting.report/internal/render"
	"github.com/banshee-data/rutting.report/internal/security"
	"github.com/banshee-data/rutting.report/internal/version"
)

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return errUsage
		}
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	return nil
}

// runImport loads a long-form CSV into the samples table. The file must
// form a complete grid on its own.
func runImport(ctx context.Context, cfg *config.DashboardConfig, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("import", stderr)
	table := fs.String("table", cfg.GetSamplesTable(), "Target table")
	replace := fs.Bool("replace", false, "Delete existing samples first")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rutting import [-table name] [-replace] <file.csv>")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	done := monitoring.Timed("parse %s", path)
	samples, err := grid.ReadSamplesCSV(bufio.NewReader(f))
	done()
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	g, err := grid.NewGrid(path, samples)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if *replace {
		if err := database.ClearSamples(ctx, *table); err != nil {
			return err
		}
	}
	n, err := database.ImportSamples(ctx, *table, samples)
	if err != nil {
		return err
	}

	src, err := database.SampleSource(*table)
	if err != nil {
		return err
	}
	ext, err := src.Extent(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Imported %d samples (%dx%d) into %s\n", n, g.Rows(), g.Cols(), *table)
	fmt.Fprintf(stdout, "Table now holds %d samples, lonID %d..%d, transID 0..%d\n",
		ext.Count, ext.MinLonID, ext.MaxLonID, ext.MaxTransID)
	return nil
}

// runUser manages dashboard logins.
func runUser(ctx context.Context, cfg *config.DashboardConfig, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: rutting user add|list|delete [name]")
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch args[0] {
	case "add":
		fs := newFlagSet("user add", stderr)
		cost := fs.Int("cost", auth.DefaultCost, "bcrypt cost")
		if err := parseFlags(fs, args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return fmt.Errorf("usage: rutting user add [-cost n] <name>")
		}
		name := fs.Arg(0)

		password, err := readPassword(stdin)
		if err != nil {
			return err
		}
		a, err := auth.NewAuthenticator(database, *cost)
		if err != nil {
			return err
		}
		if err := a.SetPassword(ctx, name, password); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Password set for %s\n", strings.TrimSpace(name))
		return nil

	case "list":
		users, err := database.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintln(stdout, u)
		}
		return nil

	case "delete":
		if len(args) != 2 {
			return fmt.Errorf("usage: rutting user delete <name>")
		}
		if err := database.DeleteUser(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted %s\n", args[1])
		return nil

	default:
		return fmt.Errorf("unknown user action %q", args[0])
	}
}

// readPassword takes the first line of r.
func readPassword(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", fmt.Errorf("no password on stdin")
	}
	return strings.TrimRight(sc.Text(), "\r"), nil
}

// runExport writes one profile as CSV and PNG into the export directory.
func runExport(ctx context.Context, cfg *config.DashboardConfig, args []string, stdout, stderr io.Writer) error {
	defaults := cfg.DefaultParams()

	fs := newFlagSet("export", stderr)
	kindFlag := fs.String("kind", string(grid.Transverse), "Profile kind: transverse or longitudinal")
	index := fs.Int("index", 0, "lonID of a transverse profile, transID of a longitudinal one")
	from := fs.Int("from", 0, "First lonID to load")
	to := fs.Int("to", -1, "Last lonID to load (-1 for all)")
	filter := fs.String("filter", string(defaults.Kind), "Smoothing: median, mean or none")
	window := fs.Int("window", defaults.Window, "Smoothing window size (odd)")
	clamp := fs.Bool("clamp", defaults.ClampEnabled, "Clamp heights before smoothing")
	lower := fs.Float64("lower", defaults.Lower, "Lower clamp bound")
	upper := fs.Float64("upper", defaults.Upper, "Upper clamp bound")
	outDir := fs.String("out", cfg.GetExportDir(), "Output directory")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	kind, err := grid.ParseProfileKind(*kindFlag)
	if err != nil {
		return err
	}
	filterKind, err := grid.ParseFilterKind(*filter)
	if err != nil {
		return err
	}
	params := grid.Params{ClampEnabled: *clamp, Lower: *lower, Upper: *upper, Kind: filterKind, Window: *window}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	src, err := database.SampleSource(cfg.GetSamplesTable())
	if err != nil {
		return err
	}
	orig, err := grid.Load(ctx, src, grid.Range{From: *from, To: *to})
	if err != nil {
		return err
	}
	filtered, err := grid.Apply(orig, params)
	if err != nil {
		return err
	}
	p, err := grid.Extract(orig, filtered, kind, *index)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}
	csvPath, err := security.OutputPath(*outDir, render.ProfileFilename(p, ".csv"))
	if err != nil {
		return err
	}
	pngPath, err := security.OutputPath(*outDir, render.ProfileFilename(p, ".png"))
	if err != nil {
		return err
	}

	if err := writeFile(csvPath, func(w io.Writer) error { return grid.WriteProfileCSV(w, p) }); err != nil {
		return err
	}
	yMax := grid.Summarize(orig).Max
	if err := writeFile(pngPath, func(w io.Writer) error {
		return render.WriteProfilePNG(w, p, yMax, render.PlotWidth, render.PlotHeight)
	}); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Wrote %s\nWrote %s\n", csvPath, pngPath)
	return nil
}

// writeFile creates path and fills it with write, removing it on failure.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// healthStatus is the part of /health the command reads.
type healthStatus struct {
	Status  string       `json:"status"`
	Version version.Info `json:"version"`
}

// runHealth queries /health on a running dashboard.
func runHealth(ctx context.Context, cfg *config.DashboardConfig, args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("health", stderr)
	url := fs.String("url", "", "Dashboard base URL (default derived from the listen address)")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	base := *url
	if base == "" {
		base = baseURL(cfg.GetListen())
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var h healthStatus
	if err := httputil.GetJSON(ctx, http.DefaultClient, strings.TrimRight(base, "/")+"/health", &h); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if h.Status != "ok" {
		return fmt.Errorf("service is unhealthy: %s", h.Status)
	}
	fmt.Fprintf(stdout, "Service is HEALTHY (%s)\n", h.Version)
	return nil
}

// baseURL turns a listen address such as ":8080" into a local URL.
func baseURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://localhost" + listen
	}
	return "http://" + listen
}
