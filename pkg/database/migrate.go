package database

import (
	"errors"

	"marketplace-chat/internal/repository"
)

// RunFullMigration applies the schema for every core table.
func RunFullMigration() error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	return repository.InitSchema(DB)
}

// DropAllTables drops the core tables in reverse dependency order.
func DropAllTables() error {
	if DB == nil {
		return errors.New("database not initialized")
	}
	return repository.DropSchema(DB)
}
