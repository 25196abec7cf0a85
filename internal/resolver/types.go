package resolver

import "context"

// CaseQuery identifies a case to look up. It is constructed per request and
// never persisted on its own; the query log embeds a copy.
type CaseQuery struct {
	CaseType   string `json:"caseType"`
	CaseNumber string `json:"caseNumber"`
	FilingYear string `json:"filingYear"`
}

// OrderRecord is one order or judgment attached to a case. It only ever
// appears inside a CaseRecord's order list.
type OrderRecord struct {
	Date        string `json:"date"`
	Description string `json:"description"`
	PDFLink     string `json:"pdfLink"`
}

// CaseRecord is the metadata returned for a found case. It is never mutated
// after the resolver produces it.
//
// RawResponse holds the raw fetched document for offline diagnosis. It is
// serialized into the query log but must be stripped from anything returned
// to API callers.
type CaseRecord struct {
	CaseType        string        `json:"caseType"`
	CaseNumber      string        `json:"caseNumber"`
	FilingYear      string        `json:"filingYear"`
	Parties         string        `json:"parties"`
	FilingDate      string        `json:"filingDate"`
	NextHearingDate string        `json:"nextHearingDate"`
	Orders          []OrderRecord `json:"orders"`
	RawResponse     string        `json:"rawResponse,omitempty"`
}

// Kind discriminates the closed set of resolver outcomes. Every caller is
// expected to switch on it; there is no error-driven control flow out of a
// resolver.
type Kind string

const (
	// KindFound means the case exists and Record is populated.
	KindFound Kind = "found"
	// KindNotFound is a valid negative result: the source says no such case.
	KindNotFound Kind = "not_found"
	// KindUpstreamUnavailable means the court site or a supporting service
	// could not be reached (network error, non-success status, timeout).
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindCaptchaNotFound means no CAPTCHA challenge was present where one
	// was expected.
	KindCaptchaNotFound Kind = "captcha_not_found"
	// KindCaptchaUnsolved means the challenge could not be solved, or the
	// site rejected the submitted answer. Distinct from KindNotFound so
	// callers can offer a retry.
	KindCaptchaUnsolved Kind = "captcha_unsolved"
	// KindParseError means the site answered with an unexpected document
	// shape; the scraping logic likely needs updating.
	KindParseError Kind = "parse_error"
)

// Outcome is the resolver result. Exactly one of the negative kinds or
// KindFound applies; Record is non-nil iff Kind == KindFound.
//
// Message carries the user-facing description for negative kinds. Raw holds
// the raw upstream document (when there was one) for the audit log; it is
// never sent to API callers.
type Outcome struct {
	Kind    Kind        `json:"status"`
	Record  *CaseRecord `json:"record,omitempty"`
	Message string      `json:"message,omitempty"`
	Raw     string      `json:"rawResponse,omitempty"`
}

// Found wraps a record in a success outcome.
func Found(rec *CaseRecord) Outcome {
	return Outcome{Kind: KindFound, Record: rec}
}

// NotFound is the valid-negative outcome.
func NotFound() Outcome {
	return Outcome{Kind: KindNotFound, Message: MessageNotFound}
}

// Failed builds a negative outcome of the given kind with its standard
// user-facing message.
func Failed(kind Kind, raw string) Outcome {
	return Outcome{Kind: kind, Message: messageFor(kind), Raw: raw}
}

// User-facing messages per outcome kind. Internal details (errors, raw HTML)
// stay in logs.
const (
	MessageNotFound            = "No case found with these details."
	messageUpstreamUnavailable = "The court website is currently unreachable. Please try again later."
	messageCaptchaNotFound     = "Could not locate the CAPTCHA challenge on the court website."
	messageCaptchaUnsolved     = "Could not solve the CAPTCHA challenge. Please retry."
	messageParseError          = "The court website returned an unexpected response."
)

func messageFor(kind Kind) string {
	switch kind {
	case KindNotFound:
		return MessageNotFound
	case KindUpstreamUnavailable:
		return messageUpstreamUnavailable
	case KindCaptchaNotFound:
		return messageCaptchaNotFound
	case KindCaptchaUnsolved:
		return messageCaptchaUnsolved
	case KindParseError:
		return messageParseError
	default:
		return ""
	}
}

// Resolver answers case queries. Implementations are selected once at
// startup; they must be safe for concurrent use.
type Resolver interface {
	Resolve(ctx context.Context, q CaseQuery) Outcome
}
