package court

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/courtlens/courtlens/internal/captcha"
	"github.com/courtlens/courtlens/internal/resolver"
	"github.com/courtlens/courtlens/pkg/logger"
)

// Selectors the search form exposes in a rendered page.
const (
	selectCaseType   = "#case_type"
	inputCaseNumber  = "#case_number"
	selectFilingYear = "#case_year"
	inputCaptcha     = "#captchaInput"
	buttonSearch     = "#search"
)

// BrowserOptions configure the driven browser.
type BrowserOptions struct {
	BaseURL     string
	UserAgent   string
	BrowserPath string
	Headless    bool
	Devtools    bool
	Mode        captcha.ChallengeKind
}

// BrowserGateway drives a real browser against the court site. It exists for
// deployments where the site renders the form with JavaScript the HTTP
// gateway cannot execute. Sessions map to browser pages.
type BrowserGateway struct {
	browser   *rod.Browser
	baseURL   *url.URL
	userAgent string
	mode      captcha.ChallengeKind
	log       *logger.Logger
}

// NewBrowserGateway launches the browser once; sessions share it.
func NewBrowserGateway(opts BrowserOptions, log *logger.Logger) (*BrowserGateway, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid court base URL %q: %w", opts.BaseURL, err)
	}

	l := launcher.New().
		Headless(opts.Headless).
		Set("user-agent", opts.UserAgent).
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")
	if opts.BrowserPath != "" {
		l = l.Bin(opts.BrowserPath)
	}
	if opts.Devtools {
		l = l.Devtools(true)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Info("browser launched", "headless", opts.Headless)
	return &BrowserGateway{
		browser:   browser,
		baseURL:   u,
		userAgent: opts.UserAgent,
		mode:      opts.Mode,
		log:       log,
	}, nil
}

// NewSession opens a dedicated page. Page creation is bound to ctx so a
// caller that has already given up does not pay for a new target.
func (g *BrowserGateway) NewSession(ctx context.Context) (resolver.CourtSession, error) {
	page, err := g.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	return &browserSession{gateway: g, page: page}, nil
}

// Close shuts the browser down, taking any open pages with it.
func (g *BrowserGateway) Close() error {
	return g.browser.Close()
}

// browserSession is one page-scoped conversation with the site. The form is
// filled in place, so Submit operates on the page FetchSearchPage navigated.
type browserSession struct {
	gateway *BrowserGateway
	page    *rod.Page
}

func (s *browserSession) FetchSearchPage(ctx context.Context) (*resolver.SearchPage, error) {
	page := s.page.Context(ctx)

	searchURL := absoluteURL(s.gateway.baseURL, searchPath)
	if err := page.Navigate(searchURL); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", searchURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		s.gateway.log.Warn("page load wait failed", "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read page html: %w", err)
	}

	challenge, err := s.extractChallenge(ctx, page, html)
	if err != nil {
		return nil, err
	}

	token := ""
	if has, el, err := page.Has(`input[name="_token"]`); err == nil && has {
		if v, err := el.Attribute("value"); err == nil && v != nil {
			token = *v
		}
	}

	s.gateway.log.Debug("search page rendered",
		"has_challenge", challenge != nil,
		"has_token", token != "")
	return &resolver.SearchPage{HTML: html, Challenge: challenge, Token: token}, nil
}

func (s *browserSession) extractChallenge(ctx context.Context, page *rod.Page, html string) (*captcha.Challenge, error) {
	switch s.gateway.mode {
	case captcha.KindImage:
		has, img, err := page.Has(captcha.ImageSelector)
		if err != nil || !has {
			return nil, nil
		}
		data, err := s.challengeImage(ctx, page, img)
		if err != nil {
			return nil, err
		}
		return &captcha.Challenge{Kind: captcha.KindImage, Image: data}, nil
	default:
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("failed to parse rendered page: %w", err)
		}
		code, ok := captcha.FindCode(doc)
		if !ok {
			return nil, nil
		}
		return &captcha.Challenge{Kind: captcha.KindCode, Code: code}, nil
	}
}

// challengeImage materializes the challenge image: decode a data URI, fetch
// the URL with the page's cookies, or screenshot the element as a last
// resort.
func (s *browserSession) challengeImage(ctx context.Context, page *rod.Page, img *rod.Element) ([]byte, error) {
	if src, err := img.Attribute("src"); err == nil && src != nil && *src != "" {
		if data, ok := captcha.DecodeDataURI(*src); ok {
			return data, nil
		}
		if strings.HasPrefix(*src, "http") || strings.HasPrefix(*src, "/") {
			return s.fetchImageWithCookies(ctx, page, absoluteURL(s.gateway.baseURL, *src))
		}
	}

	shot, err := img.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to screenshot challenge: %w", err)
	}
	return shot, nil
}

func (s *browserSession) fetchImageWithCookies(ctx context.Context, page *rod.Page, imgURL string) ([]byte, error) {
	cookies, err := page.Cookies([]string{})
	if err != nil {
		return nil, fmt.Errorf("failed to read page cookies: %w", err)
	}

	req := resty.New().
		SetTimeout(15 * time.Second).
		SetHeader("user-agent", s.gateway.userAgent).
		R().
		SetContext(ctx)
	for _, ck := range cookies {
		req.SetCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}

	res, err := req.Get(imgURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch challenge image: %w", err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("challenge image returned status %d", res.StatusCode())
	}
	return res.Body(), nil
}

// Submit fills the already-rendered form and clicks search. The token
// argument is ignored: the in-page form carries its own.
func (s *browserSession) Submit(ctx context.Context, q resolver.CaseQuery, captchaAnswer, _ string) (*resolver.SubmitResult, error) {
	page := s.page.Context(ctx)

	err := rod.Try(func() {
		if code := caseTypeCode(q.CaseType); code != "" {
			page.MustElement(selectCaseType).MustSelect(code)
		}
		page.MustElement(inputCaseNumber).MustInput(q.CaseNumber)
		page.MustElement(selectFilingYear).MustSelect(q.FilingYear)
		if captchaAnswer != "" {
			page.MustElement(inputCaptcha).MustInput(captchaAnswer)
		}

		wait := page.MustWaitNavigation()
		page.MustElement(buttonSearch).MustClick()
		wait()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to drive search form: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		s.gateway.log.Warn("result load wait failed", "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read result html: %w", err)
	}

	finalURL := s.gateway.baseURL.String()
	if info, err := page.Info(); err == nil && info != nil && info.URL != "" {
		finalURL = info.URL
	}
	return &resolver.SubmitResult{HTML: html, FinalURL: finalURL}, nil
}

// Close releases the session's page; the shared browser stays up.
func (s *browserSession) Close() error {
	return s.page.Close()
}
