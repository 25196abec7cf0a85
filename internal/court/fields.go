// Package court talks to the Delhi High Court case-status site. It provides
// two interchangeable gateways (plain HTTP and a driven browser), the result
// parser both feed, and an order-PDF fetcher.
package court

import (
	"strings"

	"github.com/courtlens/courtlens/internal/resolver"
)

// searchPath is the case-status search form on the court site.
const searchPath = "/app/get-case-type-status"

// Native names of the search form's fields.
const (
	fieldCaseType   = "ctype"
	fieldCaseNumber = "regno"
	fieldFilingYear = "regyr"
	fieldCaptcha    = "captchaInput"
	fieldToken      = "_token"
)

// caseTypeCodes maps the API's case-type vocabulary to the codes the site's
// dropdown submits. The site accepts an empty code (it responds with no
// results), so unmapped types go through as empty rather than failing the
// request.
var caseTypeCodes = map[string]string{
	"criminal": "CRL",
	"civil":    "CS",
	"writ":     "W.P.(C)",
}

// caseTypeCode returns the site code for a case type, or "" when the type is
// not in the dropdown vocabulary.
func caseTypeCode(caseType string) string {
	return caseTypeCodes[strings.ToLower(strings.TrimSpace(caseType))]
}

// searchForm builds the form body for a search submission.
func searchForm(q resolver.CaseQuery, captchaAnswer, token string) map[string]string {
	form := map[string]string{
		fieldCaseType:   caseTypeCode(q.CaseType),
		fieldCaseNumber: q.CaseNumber,
		fieldFilingYear: q.FilingYear,
		fieldCaptcha:    captchaAnswer,
	}
	if token != "" {
		form[fieldToken] = token
	}
	return form
}
