package database

import (
	"fmt"

	"gorm.io/gorm"
)

// createIndexes creates database indexes
func createIndexes(db *gorm.DB) error {
	// Index for the log read path (newest first)
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_queries_log_timestamp
		ON queries_log(timestamp)
	`).Error; err != nil {
		return fmt.Errorf("failed to create timestamp index: %w", err)
	}

	// Index for looking up past queries for a case
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_queries_log_case
		ON queries_log(case_type, case_number, filing_year)
	`).Error; err != nil {
		return fmt.Errorf("failed to create case index: %w", err)
	}

	return nil
}
