package querylog

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/courtlens/courtlens/internal/database"
	"github.com/courtlens/courtlens/internal/resolver"
	"github.com/courtlens/courtlens/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatalf("database.Initialize() error = %v", err)
	}
	return NewStore(db, logger.NewNop())
}

func testQuery() resolver.CaseQuery {
	return resolver.CaseQuery{CaseType: "criminal", CaseNumber: "101", FilingYear: "2023"}
}

func foundOutcome() resolver.Outcome {
	return resolver.Found(&resolver.CaseRecord{
		CaseType:        "criminal",
		CaseNumber:      "101",
		FilingYear:      "2023",
		Parties:         "State vs. Arun Kumar",
		FilingDate:      "15-01-2023",
		NextHearingDate: "02-09-2026",
		Orders: []resolver.OrderRecord{
			{Date: "01-03-2023", Description: "Bail granted", PDFLink: "https://court.example/orders/101-1.pdf"},
		},
		RawResponse: "<html>details</html>",
	})
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	store := newTestStore(t)

	first := store.Append(testQuery(), foundOutcome())
	second := store.Append(testQuery(), resolver.NotFound())

	if first.ID == 0 {
		t.Error("first entry has no id")
	}
	if second.ID <= first.ID {
		t.Errorf("ids not monotonic: first %d, second %d", first.ID, second.ID)
	}

	ts, err := time.Parse(time.RFC3339, first.Timestamp)
	if err != nil {
		t.Fatalf("timestamp %q is not RFC 3339: %v", first.Timestamp, err)
	}
	if !strings.HasSuffix(first.Timestamp, "Z") {
		t.Errorf("timestamp %q is not UTC", first.Timestamp)
	}
	if d := time.Since(ts); d < 0 || d > time.Minute {
		t.Errorf("timestamp %q is not close to now", first.Timestamp)
	}
}

func TestOutcomeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	store.Append(testQuery(), foundOutcome())

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(entries))
	}

	entry := entries[0]
	if entry.Query != testQuery() {
		t.Errorf("query = %+v, want the appended query", entry.Query)
	}

	var out resolver.Outcome
	if err := json.Unmarshal(entry.Outcome, &out); err != nil {
		t.Fatalf("stored outcome does not unmarshal: %v", err)
	}
	if out.Kind != resolver.KindFound {
		t.Fatalf("kind = %q, want %q", out.Kind, resolver.KindFound)
	}
	if out.Record == nil {
		t.Fatal("record lost in the round trip")
	}
	want := foundOutcome().Record
	if out.Record.Parties != want.Parties ||
		out.Record.FilingDate != want.FilingDate ||
		out.Record.NextHearingDate != want.NextHearingDate ||
		out.Record.RawResponse != want.RawResponse {
		t.Errorf("record = %+v, want %+v", out.Record, want)
	}
	if len(out.Record.Orders) != 1 || out.Record.Orders[0] != want.Orders[0] {
		t.Errorf("orders = %+v, want %+v", out.Record.Orders, want.Orders)
	}
}

func TestFailureOutcomeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	store.Append(testQuery(), resolver.Failed(resolver.KindUpstreamUnavailable, "<html>oops</html>"))

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	var out resolver.Outcome
	if err := json.Unmarshal(entries[0].Outcome, &out); err != nil {
		t.Fatalf("stored outcome does not unmarshal: %v", err)
	}
	if out.Kind != resolver.KindUpstreamUnavailable {
		t.Errorf("kind = %q, want %q", out.Kind, resolver.KindUpstreamUnavailable)
	}
	if out.Message == "" {
		t.Error("user-facing message lost in the round trip")
	}
	if out.Raw != "<html>oops</html>" {
		t.Errorf("raw document = %q, want the fetched html", out.Raw)
	}
	if out.Record != nil {
		t.Errorf("record = %+v, want nil on a failure", out.Record)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := newTestStore(t)
	numbers := []string{"101", "102", "103"}
	for _, n := range numbers {
		q := testQuery()
		q.CaseNumber = n
		store.Append(q, resolver.NotFound())
	}

	entries, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != len(numbers) {
		t.Fatalf("List() returned %d entries, want %d", len(entries), len(numbers))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID <= entries[i].ID {
			t.Errorf("entries not newest first: id %d before id %d", entries[i-1].ID, entries[i].ID)
		}
	}
	if entries[0].Query.CaseNumber != "103" {
		t.Errorf("first entry is %q, want the most recent append", entries[0].Query.CaseNumber)
	}

	again, err := store.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(again) != len(entries) {
		t.Fatalf("second List() returned %d entries, want %d; listing must not mutate the log", len(again), len(entries))
	}
	for i := range entries {
		if again[i].ID != entries[i].ID || again[i].Timestamp != entries[i].Timestamp {
			t.Errorf("entry %d changed between listings: %+v vs %+v", i, entries[i], again[i])
		}
	}
}

func TestAppendSurvivesClosedDatabase(t *testing.T) {
	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatalf("database.Initialize() error = %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB() error = %v", err)
	}
	sqlDB.Close()

	store := NewStore(db, logger.NewNop())
	entry := store.Append(testQuery(), resolver.NotFound())
	if entry == nil {
		t.Fatal("Append() returned nil on a broken database")
	}
	if len(entry.Outcome) == 0 {
		t.Error("entry outcome missing; callers answer from the returned entry")
	}
	if store.Healthy() {
		t.Error("Healthy() = true on a closed database")
	}
}

func TestHealthy(t *testing.T) {
	store := newTestStore(t)
	if !store.Healthy() {
		t.Error("Healthy() = false on a fresh database")
	}
}

func TestSanitized(t *testing.T) {
	outcome := resolver.Outcome{
		Kind:    resolver.KindFound,
		Record:  foundOutcome().Record,
		Raw:     "<html>top level</html>",
		Message: "",
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(payload), "rawResponse") {
		t.Fatal("fixture must carry raw documents before sanitizing")
	}

	entry := LogEntry{ID: 1, Outcome: json.RawMessage(payload)}
	clean := entry.Sanitized()

	if strings.Contains(string(clean.Outcome), "rawResponse") {
		t.Errorf("sanitized outcome still carries raw documents: %s", clean.Outcome)
	}
	if !strings.Contains(string(clean.Outcome), "State vs. Arun Kumar") {
		t.Errorf("sanitized outcome lost record fields: %s", clean.Outcome)
	}
	if strings.Contains(string(entry.Outcome), "rawResponse") == false {
		t.Error("Sanitized() mutated the original entry")
	}
}

func TestSanitizedUnreadableOutcome(t *testing.T) {
	entry := LogEntry{ID: 1, Outcome: json.RawMessage(`not json`)}
	clean := entry.Sanitized()
	if string(clean.Outcome) != `{}` {
		t.Errorf("sanitized outcome = %s, want {}", clean.Outcome)
	}
}
