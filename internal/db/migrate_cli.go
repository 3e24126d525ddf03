package db

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"

	"github.com/banshee-data/rutting.report/internal/monitoring"
)

// RunMigrateCommand handles the 'migrate' subcommand. Human-readable
// output goes to out; progress goes to the log.
func RunMigrateCommand(args []string, dbPath string, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		PrintMigrateHelp(out)
		return nil
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		return fmt.Errorf("failed to get migrations filesystem: %w", err)
	}

	// Migrations manage the schema, so open without applying them.
	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		monitoring.Logf("Running migrations...")
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
		monitoring.Logf("✓ All migrations applied successfully")
		return printVersion(database, migrationsFS, out)

	case "down":
		monitoring.Logf("Rolling back one migration...")
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
		monitoring.Logf("✓ Migration rolled back successfully")
		return printVersion(database, migrationsFS, out)

	case "status":
		return printStatus(database, migrationsFS, out)

	case "version", "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: rutting migrate %s <version_number>", action)
		}
		v, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version number %q: %w", args[1], err)
		}
		if action == "version" {
			monitoring.Logf("Migrating to version %d...", v)
			err = database.MigrateTo(migrationsFS, uint(v))
		} else {
			monitoring.Logf("Forcing version to %d...", v)
			err = database.MigrateForce(migrationsFS, int(v))
		}
		if err != nil {
			return err
		}
		return printVersion(database, migrationsFS, out)

	default:
		fmt.Fprintf(out, "Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

func printVersion(database *DB, migrationsFS fs.FS, out io.Writer) error {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", version, dirty)
	return nil
}

func printStatus(database *DB, migrationsFS fs.FS, out io.Writer) error {
	status, err := database.GetMigrationStatus(migrationsFS)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "=== Migration Status ===")
	fmt.Fprintf(out, "Current version: %d\n", status.CurrentVersion)
	fmt.Fprintf(out, "Latest version: %d\n", status.LatestVersion)
	fmt.Fprintf(out, "Dirty: %v\n", status.Dirty)
	fmt.Fprintf(out, "Schema migrations table exists: %v\n", status.TableExists)

	if status.Dirty {
		fmt.Fprintln(out, "\n⚠️  WARNING: Database is in a dirty state!")
		fmt.Fprintln(out, "A migration failed mid-execution. Inspect the database, fix it, then run:")
		fmt.Fprintln(out, "  rutting migrate force <version>")
	} else if status.CurrentVersion < status.LatestVersion {
		fmt.Fprintf(out, "\n%d migration(s) pending. Run: rutting migrate up\n", status.LatestVersion-status.CurrentVersion)
	}
	return nil
}

// PrintMigrateHelp displays the help message for the migrate command.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Database Migration Commands

Usage: rutting migrate <command> [options]

Commands:
  up              Apply all pending migrations
  down            Rollback one migration
  status          Show current migration status and version
  version <N>     Migrate to specific version N
  force <N>       Force migration version to N (recovery only)
  help            Show this help message

Examples:
  rutting migrate up
  rutting migrate status
  rutting migrate version 1
`)
}
