// Package querylog persists one immutable entry per resolved query. The log
// is append-only: there is no update or delete path, and a failed write never
// fails the request that produced it.
package querylog

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/courtlens/courtlens/internal/database"
	"github.com/courtlens/courtlens/internal/resolver"
	"github.com/courtlens/courtlens/pkg/logger"
)

// LogEntry is one logged query with its outcome. Outcome is the serialized
// resolver outcome, kept as raw JSON so listing does not re-interpret it.
type LogEntry struct {
	ID        uint               `json:"id"`
	Timestamp string             `json:"timestamp"`
	Query     resolver.CaseQuery `json:"query"`
	Outcome   json.RawMessage    `json:"outcome"`
}

// Store appends and lists query-log entries.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewStore wraps db.
func NewStore(db *gorm.DB, log *logger.Logger) *Store {
	return &Store{db: db, log: log}
}

// Append records one resolved query. Persistence errors are logged and
// swallowed; the entry that would have been written is returned either way so
// the caller can answer from it.
func (s *Store) Append(q resolver.CaseQuery, outcome resolver.Outcome) *LogEntry {
	payload, err := json.Marshal(outcome)
	if err != nil {
		s.log.Error("failed to serialize outcome", "error", err)
		payload = []byte(`{}`)
	}

	row := database.QueryLog{
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		CaseType:     q.CaseType,
		CaseNumber:   q.CaseNumber,
		FilingYear:   q.FilingYear,
		ResponseData: string(payload),
	}
	if err := s.db.Create(&row).Error; err != nil {
		s.log.Error("failed to append query log entry",
			"error", err,
			"case_type", q.CaseType,
			"case_number", q.CaseNumber)
	}

	return &LogEntry{
		ID:        row.ID,
		Timestamp: row.Timestamp,
		Query:     q,
		Outcome:   json.RawMessage(payload),
	}
}

// Healthy reports whether the backing database answers a trivial query.
func (s *Store) Healthy() bool {
	var count int64
	return s.db.Model(&database.QueryLog{}).Count(&count).Error == nil
}

// List returns every entry, newest first. The log is expected to stay small
// enough for a full scan; there is no pagination.
func (s *Store) List() ([]LogEntry, error) {
	var rows []database.QueryLog
	if err := s.db.Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}

	entries := make([]LogEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, LogEntry{
			ID:        row.ID,
			Timestamp: row.Timestamp,
			Query: resolver.CaseQuery{
				CaseType:   row.CaseType,
				CaseNumber: row.CaseNumber,
				FilingYear: row.FilingYear,
			},
			Outcome: json.RawMessage(row.ResponseData),
		})
	}
	return entries, nil
}

// Sanitized returns a copy of the entry with audit-only raw documents removed
// from the outcome, at both the outcome and record level. Entries whose
// outcome cannot be read are returned with an empty outcome rather than
// leaking the stored document.
func (e LogEntry) Sanitized() LogEntry {
	var outcome map[string]json.RawMessage
	if err := json.Unmarshal(e.Outcome, &outcome); err != nil {
		e.Outcome = json.RawMessage(`{}`)
		return e
	}
	delete(outcome, "rawResponse")

	if rec, ok := outcome["record"]; ok {
		var record map[string]json.RawMessage
		if err := json.Unmarshal(rec, &record); err == nil {
			delete(record, "rawResponse")
			if b, err := json.Marshal(record); err == nil {
				outcome["record"] = b
			}
		}
	}

	b, err := json.Marshal(outcome)
	if err != nil {
		e.Outcome = json.RawMessage(`{}`)
		return e
	}
	e.Outcome = b
	return e
}
