// Command tca-migrate is a standalone schema-migration tool, grounded on
// _examples/cuemby-warren/cmd/warren-migrate's flag-based shape but driven
// by golang-migrate/migrate via internal/storage.Migrate instead of a
// hand-rolled bucket copy.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/cuemby/tca/internal/storage"
)

var (
	dbPath = flag.String("db-path", "./data/tca.db", "Path to the tca SQLite database file")
	status = flag.Bool("status", false, "Report the current migration version without applying anything")
)

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("tca schema migration tool")

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		log.Printf("%s does not exist yet, it will be created", *dbPath)
	}

	db, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if *status {
		version, dirty, err := storage.MigrationVersion(db)
		if err != nil {
			log.Fatalf("read migration version: %v", err)
		}
		fmt.Printf("version: %d\ndirty: %t\n", version, dirty)
		return
	}

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	version, dirty, err := storage.MigrationVersion(db)
	if err != nil {
		log.Fatalf("read migration version: %v", err)
	}
	log.Printf("migrations applied, now at version %d (dirty=%t)", version, dirty)
}
