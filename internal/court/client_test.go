package court

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/courtlens/courtlens/internal/captcha"
	"github.com/courtlens/courtlens/internal/resolver"
	"github.com/courtlens/courtlens/pkg/logger"
)

const formPage = `<html><body>
<form id="search-form" method="POST">
  <select id="case_type" name="ctype"><option value="CRL">CRL</option></select>
  <input id="case_number" name="regno">
  <select id="case_year" name="regyr"><option value="2023">2023</option></select>
  <span id="captcha-code">%s</span>
  <input id="captchaInput" name="captchaInput">
  <input type="hidden" name="_token" value="%s">
  <button id="search">Search</button>
</form>
</body></html>`

// fakeCourtSite mimics the search form flow: a GET serves the form with a
// markup challenge and a token, a POST verifies the answer and responds with
// details, a rejection, or an empty result.
type fakeCourtSite struct {
	mu        sync.Mutex
	code      string
	token     string
	rejectN   int
	submitted []url.Values
}

func (f *fakeCourtSite) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/get-case-type-status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprintf(w, formPage, f.code, f.token)
			return
		}

		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.submitted = append(f.submitted, r.PostForm)
		reject := f.rejectN > 0
		if reject {
			f.rejectN--
		}
		f.mu.Unlock()

		if reject || r.PostFormValue("captchaInput") != f.code {
			fmt.Fprint(w, `<div class="alert">Invalid Captcha</div>`)
			return
		}
		if r.PostFormValue("ctype") == "CRL" && r.PostFormValue("regno") == "101" && r.PostFormValue("regyr") == "2023" {
			fmt.Fprint(w, resultPage)
			return
		}
		fmt.Fprint(w, `<p>No Case Found</p>`)
	})
	return mux
}

func (f *fakeCourtSite) forms() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.submitted...)
}

func newTestGateway(t *testing.T, baseURL string, mode captcha.ChallengeKind) *HTTPGateway {
	t.Helper()
	g, err := NewHTTPGateway(baseURL, "test-agent", 10*time.Second, mode, logger.NewNop())
	if err != nil {
		t.Fatalf("NewHTTPGateway() error = %v", err)
	}
	return g
}

func TestHTTPGatewayFetchSearchPage(t *testing.T) {
	site := &fakeCourtSite{code: "4821", token: "tok-abc"}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	g := newTestGateway(t, srv.URL, captcha.KindCode)
	session, err := g.NewSession(context.Background())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	defer session.Close()

	page, err := session.FetchSearchPage(context.Background())
	if err != nil {
		t.Fatalf("FetchSearchPage() error = %v", err)
	}

	if page.Challenge == nil {
		t.Fatal("no challenge extracted from the form")
	}
	if page.Challenge.Kind != captcha.KindCode || page.Challenge.Code != "4821" {
		t.Errorf("challenge = %+v, want code 4821", page.Challenge)
	}
	if page.Token != "tok-abc" {
		t.Errorf("token = %q, want %q", page.Token, "tok-abc")
	}
	if page.HTML == "" {
		t.Error("page HTML not retained")
	}
}

func TestHTTPGatewaySubmitUsesNativeFieldNames(t *testing.T) {
	site := &fakeCourtSite{code: "4821", token: "tok-abc"}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	g := newTestGateway(t, srv.URL, captcha.KindCode)
	session, _ := g.NewSession(context.Background())
	defer session.Close()

	page, err := session.FetchSearchPage(context.Background())
	if err != nil {
		t.Fatalf("FetchSearchPage() error = %v", err)
	}

	q := resolver.CaseQuery{CaseType: "criminal", CaseNumber: "101", FilingYear: "2023"}
	res, err := session.Submit(context.Background(), q, page.Challenge.Code, page.Token)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.FinalURL == "" {
		t.Error("final URL not reported")
	}

	forms := site.forms()
	if len(forms) != 1 {
		t.Fatalf("site received %d submissions, want 1", len(forms))
	}
	form := forms[0]

	tests := []struct {
		field string
		want  string
	}{
		{"ctype", "CRL"},
		{"regno", "101"},
		{"regyr", "2023"},
		{"captchaInput", "4821"},
		{"_token", "tok-abc"},
	}
	for _, tt := range tests {
		if got := form.Get(tt.field); got != tt.want {
			t.Errorf("form field %s = %q, want %q", tt.field, got, tt.want)
		}
	}
}

func TestHTTPGatewayUnmappedCaseTypeSubmittedEmpty(t *testing.T) {
	site := &fakeCourtSite{code: "4821"}
	srv := httptest.NewServer(site.handler())
	defer srv.Close()

	g := newTestGateway(t, srv.URL, captcha.KindCode)
	session, _ := g.NewSession(context.Background())
	defer session.Close()

	q := resolver.CaseQuery{CaseType: "tax", CaseNumber: "7", FilingYear: "2019"}
	if _, err := session.Submit(context.Background(), q, "4821", ""); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	form := site.forms()[0]
	if _, present := form["ctype"]; !present {
		t.Fatal("ctype field missing from submission")
	}
	if got := form.Get("ctype"); got != "" {
		t.Errorf("ctype = %q, want empty for an unmapped case type", got)
	}
}

func TestHTTPGatewayImageChallenge(t *testing.T) {
	png := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a}

	t.Run("data URI", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/app/get-case-type-status", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprintf(w, `<html><body><img id="captcha_image" src="data:image/png;base64,%s"></body></html>`,
				base64.StdEncoding.EncodeToString(png))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		g := newTestGateway(t, srv.URL, captcha.KindImage)
		session, _ := g.NewSession(context.Background())
		defer session.Close()

		page, err := session.FetchSearchPage(context.Background())
		if err != nil {
			t.Fatalf("FetchSearchPage() error = %v", err)
		}
		if page.Challenge == nil || page.Challenge.Kind != captcha.KindImage {
			t.Fatalf("challenge = %+v, want image", page.Challenge)
		}
		if string(page.Challenge.Image) != string(png) {
			t.Error("decoded image bytes do not match the data URI payload")
		}
	})

	t.Run("relative URL fetched with session cookies", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/app/get-case-type-status", func(w http.ResponseWriter, r *http.Request) {
			http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s-1", Path: "/"})
			fmt.Fprint(w, `<html><body><img id="captcha_image" src="/captcha.png"></body></html>`)
		})
		mux.HandleFunc("/captcha.png", func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie("sid")
			if err != nil || c.Value != "s-1" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Write(png)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		g := newTestGateway(t, srv.URL, captcha.KindImage)
		session, _ := g.NewSession(context.Background())
		defer session.Close()

		page, err := session.FetchSearchPage(context.Background())
		if err != nil {
			t.Fatalf("FetchSearchPage() error = %v", err)
		}
		if page.Challenge == nil {
			t.Fatal("no challenge extracted")
		}
		if string(page.Challenge.Image) != string(png) {
			t.Error("image bytes do not match; cookie jar likely not shared with the image fetch")
		}
	})

	t.Run("missing challenge reported as nil", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/app/get-case-type-status", func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<html><body><form></form></body></html>`)
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		g := newTestGateway(t, srv.URL, captcha.KindImage)
		session, _ := g.NewSession(context.Background())
		defer session.Close()

		page, err := session.FetchSearchPage(context.Background())
		if err != nil {
			t.Fatalf("FetchSearchPage() error = %v", err)
		}
		if page.Challenge != nil {
			t.Errorf("challenge = %+v, want nil when the page has none", page.Challenge)
		}
	})
}

func TestHTTPGatewayUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := newTestGateway(t, srv.URL, captcha.KindCode)
	session, _ := g.NewSession(context.Background())
	defer session.Close()

	if _, err := session.FetchSearchPage(context.Background()); err == nil {
		t.Error("FetchSearchPage() returned nil error on a 503")
	}
}

func TestLiveFetchAgainstFakeSite(t *testing.T) {
	newStack := func(site *fakeCourtSite) resolver.Resolver {
		srv := httptest.NewServer(site.handler())
		t.Cleanup(srv.Close)
		g := newTestGateway(t, srv.URL, captcha.KindCode)
		return resolver.NewLiveFetch(g, NewParser(logger.NewNop()), nil, 3, logger.NewNop())
	}

	t.Run("existing case resolves with parsed details", func(t *testing.T) {
		site := &fakeCourtSite{code: "4821", token: "tok-abc"}
		lf := newStack(site)

		out := lf.Resolve(context.Background(), resolver.CaseQuery{CaseType: "criminal", CaseNumber: "101", FilingYear: "2023"})
		if out.Kind != resolver.KindFound {
			t.Fatalf("Resolve() kind = %q, want %q (message: %s)", out.Kind, resolver.KindFound, out.Message)
		}
		if out.Record.Parties != "State vs. Arun Kumar" {
			t.Errorf("parties = %q, want parsed from the details table", out.Record.Parties)
		}
		if len(out.Record.Orders) != 1 {
			t.Errorf("orders = %d, want the most recent row only", len(out.Record.Orders))
		}
		if out.Record.RawResponse == "" {
			t.Error("raw document not attached for the audit log")
		}
	})

	t.Run("unknown case is a valid negative", func(t *testing.T) {
		site := &fakeCourtSite{code: "4821"}
		lf := newStack(site)

		out := lf.Resolve(context.Background(), resolver.CaseQuery{CaseType: "criminal", CaseNumber: "999", FilingYear: "2023"})
		if out.Kind != resolver.KindNotFound {
			t.Fatalf("Resolve() kind = %q, want %q", out.Kind, resolver.KindNotFound)
		}
	})

	t.Run("rejected challenge retried with a fresh form", func(t *testing.T) {
		site := &fakeCourtSite{code: "4821", rejectN: 1}
		lf := newStack(site)

		out := lf.Resolve(context.Background(), resolver.CaseQuery{CaseType: "criminal", CaseNumber: "101", FilingYear: "2023"})
		if out.Kind != resolver.KindFound {
			t.Fatalf("Resolve() kind = %q, want %q after a retry", out.Kind, resolver.KindFound)
		}
		if got := len(site.forms()); got != 2 {
			t.Errorf("site received %d submissions, want 2", got)
		}
	})

	t.Run("persistent rejection exhausts the attempt limit", func(t *testing.T) {
		site := &fakeCourtSite{code: "4821", rejectN: 100}
		lf := newStack(site)

		out := lf.Resolve(context.Background(), resolver.CaseQuery{CaseType: "criminal", CaseNumber: "101", FilingYear: "2023"})
		if out.Kind != resolver.KindCaptchaUnsolved {
			t.Fatalf("Resolve() kind = %q, want %q", out.Kind, resolver.KindCaptchaUnsolved)
		}
		if got := len(site.forms()); got != 3 {
			t.Errorf("site received %d submissions, want exactly 3", got)
		}
	})
}
