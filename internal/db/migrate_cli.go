package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	// Open without migrating so a dirty store can still be inspected.
	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	migrationsFS := MigrationsFS()
	switch action := args[0]; action {
	case "up":
		log.Printf("Running migrations...")
		if err := database.MigrateUp(migrationsFS); err != nil {
			log.Fatalf("Migration up failed: %v", err)
		}
		printVersion(database, migrationsFS)

	case "down":
		log.Printf("Rolling back one migration...")
		if err := database.MigrateDown(migrationsFS); err != nil {
			log.Fatalf("Migration down failed: %v", err)
		}
		printVersion(database, migrationsFS)

	case "status":
		printVersion(database, migrationsFS)
		latest, err := LatestMigrationVersion(migrationsFS)
		if err != nil {
			log.Fatalf("Failed to read migrations: %v", err)
		}
		fmt.Printf("Latest available: %d\n", latest)

	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: idwgrid migrate force <version_number>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("Invalid version number: %s", args[1])
		}
		fmt.Printf("WARNING: Forcing migration version to %d\n", version)
		fmt.Print("Continue? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			log.Println("Aborted")
			return
		}
		if err := database.MigrateForce(migrationsFS, version); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		log.Printf("Migration version forced to %d", version)

	case "help":
		PrintMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func printVersion(database *DB, migrationsFS fs.FS) {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}
	fmt.Printf("Current version: %d (dirty: %v)\n", version, dirty)
}

// PrintMigrateHelp prints the migrate subcommand usage.
func PrintMigrateHelp() {
	fmt.Println(`Usage: idwgrid [-db path] migrate <action>

Actions:
  up              Apply all pending migrations
  down            Roll back the most recent migration
  status          Show the current and latest schema versions
  force <version> Mark the schema as <version> (dirty-state recovery only)
  help            Show this help`)
}
