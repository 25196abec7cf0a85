package resolver

import (
	"context"
	"fmt"

	"github.com/courtlens/courtlens/internal/captcha"
	"github.com/courtlens/courtlens/pkg/logger"
)

// Disposition classifies the page returned by a search submission before any
// detailed parsing happens.
type Disposition int

const (
	// DispositionOK means the page looks like a case-details document.
	DispositionOK Disposition = iota
	// DispositionInvalidCaptcha means the site rejected the challenge answer.
	DispositionInvalidCaptcha
	// DispositionNoCase means the site reported that no matching case exists.
	DispositionNoCase
)

// SearchPage is a fetched search form, ready to be filled and submitted.
type SearchPage struct {
	HTML      string
	Challenge *captcha.Challenge
	Token     string
}

// SubmitResult is the document returned by a form submission. FinalURL is the
// URL the submission landed on after redirects, used to absolutize links.
type SubmitResult struct {
	HTML     string
	FinalURL string
}

// CourtSession is one isolated conversation with the court site. It carries
// whatever state the site needs between fetching the form and submitting it
// (cookies, an open browser page). Close must be called exactly once.
type CourtSession interface {
	FetchSearchPage(ctx context.Context) (*SearchPage, error)
	Submit(ctx context.Context, q CaseQuery, captchaAnswer, token string) (*SubmitResult, error)
	Close() error
}

// CourtGateway opens sessions against the court site.
type CourtGateway interface {
	NewSession(ctx context.Context) (CourtSession, error)
	Close() error
}

// ResultParser turns response markup into structured case data.
type ResultParser interface {
	Classify(html string) Disposition
	Parse(html, baseURL string) (*CaseRecord, error)
}

// LiveFetch resolves queries by driving the court site's search form:
// fetch the form, solve its challenge, submit, classify, parse. A rejected
// challenge answer is retried with a fresh form up to maxAttempts times;
// every other failure maps to a single outcome kind.
type LiveFetch struct {
	gateway     CourtGateway
	parser      ResultParser
	solver      captcha.Solver
	maxAttempts int
	log         *logger.Logger
}

// NewLiveFetch wires a live resolver. solver may be nil when the site is
// known to serve markup-embedded code challenges only.
func NewLiveFetch(gateway CourtGateway, parser ResultParser, solver captcha.Solver, maxAttempts int, log *logger.Logger) *LiveFetch {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &LiveFetch{
		gateway:     gateway,
		parser:      parser,
		solver:      solver,
		maxAttempts: maxAttempts,
		log:         log,
	}
}

// Resolve runs the fetch-solve-submit loop for one query. The session is
// released on every path out of this method.
func (l *LiveFetch) Resolve(ctx context.Context, q CaseQuery) Outcome {
	session, err := l.gateway.NewSession(ctx)
	if err != nil {
		l.log.Error("failed to open court session", "error", err)
		return Failed(KindUpstreamUnavailable, "")
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			l.log.Warn("court session close failed", "error", cerr)
		}
	}()

	var lastHTML string
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		outcome, rejected := l.attempt(ctx, session, q, attempt)
		if !rejected {
			return outcome
		}
		lastHTML = outcome.Raw
	}
	l.log.Warn("challenge attempts exhausted",
		"attempts", l.maxAttempts,
		"case_type", q.CaseType,
		"case_number", q.CaseNumber)
	return Failed(KindCaptchaUnsolved, lastHTML)
}

// attempt runs one fetch-solve-submit round. rejected is true only when the
// site refused the challenge answer, which is the sole retryable condition.
func (l *LiveFetch) attempt(ctx context.Context, session CourtSession, q CaseQuery, attempt int) (outcome Outcome, rejected bool) {
	page, err := session.FetchSearchPage(ctx)
	if err != nil {
		l.log.Error("failed to fetch search page", "error", err, "attempt", attempt)
		return Failed(KindUpstreamUnavailable, ""), false
	}
	if page.Challenge == nil {
		l.log.Error("search page carries no challenge", "attempt", attempt)
		return Failed(KindCaptchaNotFound, page.HTML), false
	}

	answer, err := l.answer(ctx, page.Challenge)
	if err != nil {
		l.log.Error("challenge could not be solved", "error", err, "attempt", attempt)
		return Failed(KindCaptchaUnsolved, page.HTML), false
	}
	l.log.Debug("challenge solved", "kind", page.Challenge.Kind, "attempt", attempt)

	res, err := session.Submit(ctx, q, answer, page.Token)
	if err != nil {
		l.log.Error("search submission failed", "error", err, "attempt", attempt)
		return Failed(KindUpstreamUnavailable, ""), false
	}

	switch l.parser.Classify(res.HTML) {
	case DispositionInvalidCaptcha:
		l.log.Warn("challenge answer rejected by court site", "attempt", attempt)
		return Failed(KindCaptchaUnsolved, res.HTML), true
	case DispositionNoCase:
		return Failed(KindNotFound, res.HTML), false
	}

	record, err := l.parser.Parse(res.HTML, res.FinalURL)
	if err != nil {
		l.log.Error("result page could not be parsed", "error", err, "attempt", attempt)
		return Failed(KindParseError, res.HTML), false
	}
	record.CaseType = q.CaseType
	record.CaseNumber = q.CaseNumber
	record.FilingYear = q.FilingYear
	record.RawResponse = res.HTML

	l.log.Info("case resolved",
		"case_type", q.CaseType,
		"case_number", q.CaseNumber,
		"filing_year", q.FilingYear,
		"orders", len(record.Orders))
	return Found(record), false
}

// answer produces the text answer for a challenge.
func (l *LiveFetch) answer(ctx context.Context, ch *captcha.Challenge) (string, error) {
	switch ch.Kind {
	case captcha.KindCode:
		return ch.Code, nil
	case captcha.KindImage:
		if l.solver == nil {
			return "", fmt.Errorf("image challenge present but no solver configured")
		}
		return l.solver.Solve(ctx, ch.Image)
	default:
		return "", fmt.Errorf("unknown challenge kind %q", ch.Kind)
	}
}
