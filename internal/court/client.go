package court

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/courtlens/courtlens/internal/captcha"
	"github.com/courtlens/courtlens/internal/resolver"
	"github.com/courtlens/courtlens/pkg/logger"
)

// HTTPGateway drives the court site over plain HTTP. Each session gets its
// own cookie jar so server-side challenge state stays isolated between
// concurrent searches.
type HTTPGateway struct {
	baseURL   *url.URL
	userAgent string
	timeout   time.Duration
	mode      captcha.ChallengeKind
	log       *logger.Logger
}

// NewHTTPGateway builds a gateway for the site at baseURL. mode selects which
// challenge variant to extract from the search page.
func NewHTTPGateway(baseURL, userAgent string, timeout time.Duration, mode captcha.ChallengeKind, log *logger.Logger) (*HTTPGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid court base URL %q: %w", baseURL, err)
	}
	return &HTTPGateway{
		baseURL:   u,
		userAgent: userAgent,
		timeout:   timeout,
		mode:      mode,
		log:       log,
	}, nil
}

// NewSession opens a conversation with a fresh cookie jar.
func (g *HTTPGateway) NewSession(ctx context.Context) (resolver.CourtSession, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(g.baseURL.String())
	client.SetCookieJar(jar)
	client.SetHeader("user-agent", g.userAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(g.baseURL.Hostname()))
	client.SetTimeout(g.timeout)

	return &httpSession{gateway: g, client: client}, nil
}

// Close implements resolver.CourtGateway; the HTTP gateway holds no shared
// resources.
func (g *HTTPGateway) Close() error { return nil }

// absoluteURL resolves ref against base, passing through values that do not
// parse.
func absoluteURL(base *url.URL, ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}

// httpSession is one cookie-jar-scoped conversation with the site.
type httpSession struct {
	gateway *HTTPGateway
	client  *resty.Client
}

// FetchSearchPage retrieves the search form and extracts its challenge and
// CSRF token. A missing challenge is reported with a nil Challenge, not an
// error; network and status failures are errors.
func (s *httpSession) FetchSearchPage(ctx context.Context) (*resolver.SearchPage, error) {
	res, err := s.client.R().SetContext(ctx).Get(searchPath)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch search page: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search page returned status %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search page: %w", err)
	}

	challenge, err := s.extractChallenge(ctx, doc)
	if err != nil {
		return nil, err
	}
	token := doc.Find("input[name='_token']").AttrOr("value", "")

	s.gateway.log.Debug("search page fetched",
		"has_challenge", challenge != nil,
		"has_token", token != "")
	return &resolver.SearchPage{
		HTML:      res.String(),
		Challenge: challenge,
		Token:     token,
	}, nil
}

func (s *httpSession) extractChallenge(ctx context.Context, doc *goquery.Document) (*captcha.Challenge, error) {
	switch s.gateway.mode {
	case captcha.KindImage:
		src, ok := captcha.FindImageSrc(doc)
		if !ok {
			return nil, nil
		}
		if data, ok := captcha.DecodeDataURI(src); ok {
			return &captcha.Challenge{Kind: captcha.KindImage, Image: data}, nil
		}
		// The image URL must be fetched with this session's cookies or the
		// site serves a different challenge than the one it will verify.
		res, err := s.client.R().SetContext(ctx).Get(absoluteURL(s.gateway.baseURL, src))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch challenge image: %w", err)
		}
		if res.IsError() {
			return nil, fmt.Errorf("challenge image returned status %d", res.StatusCode())
		}
		return &captcha.Challenge{Kind: captcha.KindImage, Image: res.Body()}, nil
	default:
		code, ok := captcha.FindCode(doc)
		if !ok {
			return nil, nil
		}
		return &captcha.Challenge{Kind: captcha.KindCode, Code: code}, nil
	}
}

// Submit posts the filled search form and returns the response document
// along with the URL it landed on.
func (s *httpSession) Submit(ctx context.Context, q resolver.CaseQuery, captchaAnswer, token string) (*resolver.SubmitResult, error) {
	res, err := s.client.R().
		SetContext(ctx).
		SetFormData(searchForm(q, captchaAnswer, token)).
		Post(searchPath)
	if err != nil {
		return nil, fmt.Errorf("search submission failed: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search submission returned status %d", res.StatusCode())
	}

	finalURL := s.gateway.baseURL.String()
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}
	return &resolver.SubmitResult{HTML: res.String(), FinalURL: finalURL}, nil
}

// Close implements resolver.CourtSession; the cookie jar goes away with the
// session.
func (s *httpSession) Close() error { return nil }
