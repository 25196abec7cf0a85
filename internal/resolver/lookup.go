package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// lookupKey is the composite key for exact-mode lookups.
type lookupKey struct {
	caseType   string
	caseNumber string
	filingYear string
}

func keyFor(q CaseQuery) lookupKey {
	return lookupKey{
		caseType:   strings.ToLower(strings.TrimSpace(q.CaseType)),
		caseNumber: strings.TrimSpace(q.CaseNumber),
		filingYear: strings.TrimSpace(q.FilingYear),
	}
}

// Lookup resolves queries against a fixed in-memory table. It backs the two
// offline strategies: exact composite-key matching, and picking a random
// record from the requested category. The random relaxation means any
// number/year combination under a known category succeeds; deployments opt
// into it explicitly, it is never a hidden behavior.
type Lookup struct {
	exact      map[lookupKey]CaseRecord
	byCategory map[string][]CaseRecord
	random     bool
}

// NewExactLookup builds a deterministic lookup over the given records.
func NewExactLookup(records []CaseRecord) *Lookup {
	return newLookup(records, false)
}

// NewCategoryRandomLookup builds a lookup that answers any query under a
// known case type with a uniformly random record of that type.
func NewCategoryRandomLookup(records []CaseRecord) *Lookup {
	return newLookup(records, true)
}

func newLookup(records []CaseRecord, random bool) *Lookup {
	l := &Lookup{
		exact:      make(map[lookupKey]CaseRecord, len(records)),
		byCategory: make(map[string][]CaseRecord),
		random:     random,
	}
	for _, rec := range records {
		k := keyFor(CaseQuery{CaseType: rec.CaseType, CaseNumber: rec.CaseNumber, FilingYear: rec.FilingYear})
		l.exact[k] = rec
		l.byCategory[k.caseType] = append(l.byCategory[k.caseType], rec)
	}
	return l
}

// Resolve implements Resolver.
func (l *Lookup) Resolve(_ context.Context, q CaseQuery) Outcome {
	if l.random {
		candidates := l.byCategory[strings.ToLower(strings.TrimSpace(q.CaseType))]
		if len(candidates) == 0 {
			return NotFound()
		}
		rec := candidates[rand.Intn(len(candidates))]
		return Found(&rec)
	}

	rec, ok := l.exact[keyFor(q)]
	if !ok {
		return NotFound()
	}
	return Found(&rec)
}

// LoadCaseTable reads a seed table from a JSON file: an array of CaseRecord
// objects.
func LoadCaseTable(path string) ([]CaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed table: %w", err)
	}
	var records []CaseRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse seed table: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("seed table %s is empty", path)
	}
	return records, nil
}

// DefaultCaseTable returns the built-in seed records used when no external
// seed file is configured.
func DefaultCaseTable() []CaseRecord {
	return []CaseRecord{
		{
			CaseType:        "criminal",
			CaseNumber:      "101",
			FilingYear:      "2023",
			Parties:         "State vs. A",
			FilingDate:      "2023-01-15",
			NextHearingDate: "2026-09-01",
			Orders: []OrderRecord{
				{Date: "2025-11-20", Description: "Bail application dismissed", PDFLink: "https://delhihighcourt.nic.in/orders/criminal/101-2023-order3.pdf"},
				{Date: "2024-06-12", Description: "Charges framed", PDFLink: "https://delhihighcourt.nic.in/orders/criminal/101-2023-order2.pdf"},
			},
		},
		{
			CaseType:        "criminal",
			CaseNumber:      "205",
			FilingYear:      "2022",
			Parties:         "State vs. Rakesh Kumar",
			FilingDate:      "2022-08-03",
			NextHearingDate: "2026-10-14",
			Orders: []OrderRecord{
				{Date: "2025-07-30", Description: "Prosecution evidence recorded", PDFLink: "https://delhihighcourt.nic.in/orders/criminal/205-2022-order5.pdf"},
			},
		},
		{
			CaseType:        "civil",
			CaseNumber:      "201",
			FilingYear:      "2022",
			Parties:         "Sharma Builders vs. Mehta Estates",
			FilingDate:      "2022-03-21",
			NextHearingDate: "2026-09-18",
			Orders: []OrderRecord{
				{Date: "2025-12-02", Description: "Interim injunction extended", PDFLink: "https://delhihighcourt.nic.in/orders/civil/201-2022-order7.pdf"},
			},
		},
		{
			CaseType:        "civil",
			CaseNumber:      "412",
			FilingYear:      "2024",
			Parties:         "Anita Verma vs. DLF Universal Ltd.",
			FilingDate:      "2024-02-09",
			NextHearingDate: "2026-11-05",
			Orders: []OrderRecord{
				{Date: "2025-10-17", Description: "Written statement taken on record", PDFLink: "https://delhihighcourt.nic.in/orders/civil/412-2024-order2.pdf"},
			},
		},
		{
			CaseType:        "writ",
			CaseNumber:      "301",
			FilingYear:      "2021",
			Parties:         "Devi Foundation vs. Union of India",
			FilingDate:      "2021-11-30",
			NextHearingDate: "2026-12-09",
			Orders: []OrderRecord{
				{Date: "2025-09-25", Description: "Counter affidavit directed within four weeks", PDFLink: "https://delhihighcourt.nic.in/orders/writ/301-2021-order9.pdf"},
			},
		},
	}
}
