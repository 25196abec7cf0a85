package court

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/courtlens/courtlens/internal/resolver"
	"github.com/courtlens/courtlens/pkg/logger"
)

// Markers the site embeds in negative response pages. Matched
// case-insensitively against the whole body.
var (
	invalidCaptchaMarkers = []string{
		"invalid captcha",
		"wrong captcha",
	}
	noCaseMarkers = []string{
		"no case found",
		"no records found",
		"no record found",
		"case not found",
		"no data available",
	}
)

// Parser turns court-site response markup into case records. Both gateways
// hand it rendered HTML, so it has no transport dependencies.
type Parser struct {
	log *logger.Logger
}

// NewParser builds a parser.
func NewParser(log *logger.Logger) *Parser {
	return &Parser{log: log}
}

// Classify scans the response for the site's negative markers before any
// structural parsing is attempted. An invalid-captcha marker wins over a
// no-case marker because the site reports it even when the case exists.
func (p *Parser) Classify(html string) resolver.Disposition {
	body := strings.ToLower(html)
	for _, marker := range invalidCaptchaMarkers {
		if strings.Contains(body, marker) {
			return resolver.DispositionInvalidCaptcha
		}
	}
	for _, marker := range noCaseMarkers {
		if strings.Contains(body, marker) {
			return resolver.DispositionNoCase
		}
	}
	return resolver.DispositionOK
}

// Parse extracts the case-details table and the most recent order from a
// result page. baseURL is the URL the submission landed on; relative order
// links are resolved against it.
func (p *Parser) Parse(html, baseURL string) (*resolver.CaseRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse result document: %w", err)
	}

	record := &resolver.CaseRecord{}
	matched := 0

	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th")
		if cells.Length() < 2 {
			return
		}
		label := strings.TrimSpace(cells.Eq(0).Text())
		label = strings.ToLower(strings.TrimSuffix(label, ":"))
		value := strings.TrimSpace(cells.Eq(1).Text())
		if label == "" || value == "" {
			return
		}

		switch {
		case strings.Contains(label, "case number") || strings.Contains(label, "case no"):
			record.CaseNumber = value
			matched++
		case strings.Contains(label, "case type"):
			record.CaseType = value
			matched++
		case strings.Contains(label, "part") || strings.Contains(label, "petitioner"):
			record.Parties = value
			matched++
		case strings.Contains(label, "filing date") || strings.Contains(label, "date of filing"):
			record.FilingDate = value
			matched++
		case strings.Contains(label, "next hearing") || strings.Contains(label, "next date"):
			record.NextHearingDate = value
			matched++
		}
	})

	if matched == 0 {
		return nil, fmt.Errorf("no case details found in response")
	}

	if order, ok := p.parseLatestOrder(doc, baseURL); ok {
		record.Orders = append(record.Orders, order)
	}
	return record, nil
}

// parseLatestOrder returns the first data row of the orders table: the site
// lists orders most recent first.
func (p *Parser) parseLatestOrder(doc *goquery.Document, baseURL string) (resolver.OrderRecord, bool) {
	table := findOrdersTable(doc)
	if table == nil {
		return resolver.OrderRecord{}, false
	}

	var order resolver.OrderRecord
	found := false
	table.Find("tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i == 0 {
			// Header row.
			return true
		}
		cells := row.Find("td")
		if cells.Length() < 2 {
			return true
		}
		order.Date = strings.TrimSpace(cells.Eq(0).Text())
		order.Description = strings.TrimSpace(cells.Eq(1).Text())
		if href := row.Find("a[href]").First().AttrOr("href", ""); href != "" {
			order.PDFLink = resolveLink(baseURL, href)
		}
		found = true
		return false
	})
	return order, found
}

// findOrdersTable locates the orders table by id, class, or header text.
func findOrdersTable(doc *goquery.Document) *goquery.Selection {
	table := doc.Find("table#order_table, table.order-table, div#order_details table").First()
	if table.Length() > 0 {
		return table
	}

	var match *goquery.Selection
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		header := strings.ToLower(t.Find("tr").First().Text())
		if strings.Contains(header, "order") {
			match = t
			return false
		}
		return true
	})
	return match
}

// resolveLink absolutizes href against base. Unparseable inputs pass through
// unchanged so the record still carries whatever the site sent.
func resolveLink(base, href string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
