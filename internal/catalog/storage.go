package catalog

import (
	"fmt"
	"os"

	"shelfstock/internal/infra/persistence/csvfile"
	"shelfstock/internal/infra/persistence/memory"
	"shelfstock/internal/infra/persistence/postgres"
	"shelfstock/internal/infra/persistence/sqlite"
	"shelfstock/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

// Supported storage drivers.
const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageCSV      StorageDriver = "csv"      // flat CSV table file
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Aliases re-exported for callers that only import the catalog package.
type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// OpenPersistentStore selects a backend using environment variables.
// Defaults to csv when unset, matching the flat-table deployment model.
//
//	SHELFSTOCK_STORAGE_DRIVER: memory|csv|sqlite|postgres (default csv)
//	SHELFSTOCK_CSV_PATH: path to the table file (default ./shelfstock.csv)
//	SHELFSTOCK_SQLITE_PATH: path to sqlite file (default ./shelfstock.db)
//	SHELFSTOCK_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore(engine *domain.RulesEngine) (PersistentStore, error) {
	driver := os.Getenv("SHELFSTOCK_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageCSV)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(engine), nil
	case StorageCSV:
		path := os.Getenv("SHELFSTOCK_CSV_PATH")
		return csvfile.NewStore(path, engine)
	case StorageSQLite:
		path := os.Getenv("SHELFSTOCK_SQLITE_PATH")
		return sqlite.NewStore(path, engine)
	case StoragePostgres:
		dsn := os.Getenv("SHELFSTOCK_POSTGRES_DSN")
		return postgres.NewStore(dsn, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
