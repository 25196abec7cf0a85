// Package captcha handles the challenge step of court-site form submission:
// extracting a challenge from a fetched page, solving it, and tracking
// per-session challenges issued to API clients.
package captcha

import (
	"encoding/base64"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ChallengeKind distinguishes the two challenge variants the court site has
// used over time.
type ChallengeKind string

const (
	// KindCode is a plain numeric code rendered in the page markup. Solving
	// it requires no external call.
	KindCode ChallengeKind = "code"
	// KindImage is a distorted image whose text must be recovered by a
	// vision service or a human.
	KindImage ChallengeKind = "image"
)

// Challenge is one extracted CAPTCHA challenge. Code is set for KindCode,
// Image for KindImage.
type Challenge struct {
	Kind  ChallengeKind
	Code  string
	Image []byte
}

// Selectors for locating challenges in court-site markup. Exported because
// the browser gateway addresses the same elements through the DOM.
const (
	CodeSelector  = "#captcha-code, span.captcha-code"
	ImageSelector = "img#captcha_image, img[id*='captcha'], img[src*='captcha']"
)

// FindCode returns the numeric challenge rendered in the page markup, if
// present.
func FindCode(doc *goquery.Document) (string, bool) {
	code := strings.TrimSpace(doc.Find(CodeSelector).First().Text())
	if code == "" {
		return "", false
	}
	return code, true
}

// FindImageSrc returns the src attribute of the challenge image element, if
// present. The value may be a data URI or a (possibly relative) URL; the
// caller is responsible for materializing the bytes.
func FindImageSrc(doc *goquery.Document) (string, bool) {
	src := strings.TrimSpace(doc.Find(ImageSelector).First().AttrOr("src", ""))
	if src == "" {
		return "", false
	}
	return src, true
}

// DecodeDataURI decodes a base64 data URI ("data:image/png;base64,...") into
// raw bytes. Returns false for anything that is not a base64 data URI.
func DecodeDataURI(src string) ([]byte, bool) {
	if !strings.HasPrefix(src, "data:") {
		return nil, false
	}
	idx := strings.Index(src, ",")
	if idx < 0 || !strings.Contains(src[:idx], "base64") {
		return nil, false
	}
	data, err := base64.StdEncoding.DecodeString(src[idx+1:])
	if err != nil {
		return nil, false
	}
	return data, true
}
