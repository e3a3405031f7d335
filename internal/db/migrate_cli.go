package db

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
)

// RunMigrateCommand executes a migrate subcommand (up, down, status,
// version N, force N) against the database at dbPath and writes progress
// to out.
func RunMigrateCommand(args []string, dbPath string, migrationsFS fs.FS, out io.Writer) error {
	if len(args) < 1 {
		PrintMigrateHelp(out)
		return fmt.Errorf("missing migrate action")
	}
	if migrationsFS == nil {
		migrationsFS = MigrationsFS()
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(migrationsFS); err != nil {
			return err
		}
		fmt.Fprintln(out, "all migrations applied")
	case "down":
		if err := database.MigrateDown(migrationsFS); err != nil {
			return err
		}
		fmt.Fprintln(out, "rolled back one migration")
	case "status":
		// printed below
	case "version", "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: migrate %s <version>", action)
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid version number %q", args[1])
		}
		if action == "version" {
			err = database.MigrateTo(migrationsFS, uint(n))
		} else {
			err = database.MigrateForce(migrationsFS, n)
		}
		if err != nil {
			return err
		}
	case "help":
		PrintMigrateHelp(out)
		return nil
	default:
		PrintMigrateHelp(out)
		return fmt.Errorf("unknown migrate action %q", action)
	}

	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	latest, err := LatestMigrationVersion(migrationsFS)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "current version: %d (latest %d, dirty: %v)\n", version, latest, dirty)
	return nil
}

// PrintMigrateHelp writes usage for the migrate subcommand.
func PrintMigrateHelp(out io.Writer) {
	fmt.Fprint(out, `Usage: progress migrate <command>

Commands:
  up           Apply all pending migrations
  down         Roll back one migration
  status       Show the current schema version
  version <N>  Migrate up or down to version N
  force <N>    Set the recorded version to N (recovery only)
  help         Show this help
`)
}
