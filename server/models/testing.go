package models

import "os"

// InitializeTestDb points the package at a throwaway encrypted sqlite
// db, so db-backed tests run against a clean schema.
func InitializeTestDb() {
	dir, err := os.MkdirTemp("", "safeher-test-db")
	if err != nil {
		logg.Panic(err)
	}

	if err := AutoMigrate("test-passphrase", dir); err != nil {
		logg.Panic(err)
	}
}
