// Command rutting serves the rutting dashboard and manages its database.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/rutting.report/internal/config"
	"github.com/banshee-data/rutting.report/internal/db"
	"github.com/banshee-data/rutting.report/internal/version"
)

// errUsage marks a bad command line; usage has already been printed.
var errUsage = errors.New("usage error")

// Main
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			log.Printf("rutting: %v", err)
		}
		os.Exit(1)
	}
}

// run parses the global flags and dispatches to a command. With no
// command it serves the dashboard.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rutting", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Dashboard config JSON (default "+config.DefaultConfigPath+" if present)")
	listen := fs.String("listen", "", "Listen address, overrides the config file")
	dbPath := fs.String("db", "", "SQLite database path, overrides the config file")
	devMode := fs.Bool("dev", false, "Run in dev mode (migrations read from "+db.DevMigrationsDir+")")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *listen != "" {
		cfg.Listen = listen
	}
	if *dbPath != "" {
		cfg.DBPath = dbPath
	}

	db.DevMode = *devMode

	command := "serve"
	var rest []string
	if fs.NArg() > 0 {
		command = fs.Arg(0)
		rest = fs.Args()[1:]
	}

	switch command {
	case "serve":
		return runServe(ctx, cfg)
	case "migrate":
		return db.RunMigrateCommand(rest, cfg.GetDBPath(), stdout)
	case "import":
		return runImport(ctx, cfg, rest, stdout, stderr)
	case "user":
		return runUser(ctx, cfg, rest, stdin, stdout, stderr)
	case "export":
		return runExport(ctx, cfg, rest, stdout, stderr)
	case "health":
		return runHealth(ctx, cfg, rest, stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, version.Get())
		return nil
	case "help":
		printUsage(stdout)
		return nil
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return errUsage
	}
}

// loadConfig reads path, or the default config file when path is empty
// and the file exists. With neither, every setting takes its default.
func loadConfig(path string) (*config.DashboardConfig, error) {
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err != nil {
			return config.EmptyDashboardConfig(), nil
		}
		path = config.DefaultConfigPath
	}
	cfg, err := config.LoadDashboardConfig(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `rutting - pavement rutting dashboard

Usage: rutting [flags] [command] [options]

Commands:
  serve                  Run the dashboard (default)
  migrate <action>       Manage the database schema (up, down, status, version N, force N)
  import <file.csv>      Load a long-form sample CSV into the samples table
  user add <name>        Create a user or reset a password (password read from stdin)
  user list              List users
  user delete <name>     Remove a user
  export                 Write a profile CSV and PNG plot to a directory
  health                 Check a running dashboard
  version                Show build information
  help                   Show this help message

Flags:
  -config <file>         Dashboard config JSON
  -listen <addr>         Listen address
  -db <path>             SQLite database path
  -dev                   Read migrations from the working tree`)
}
