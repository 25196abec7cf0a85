package captcha

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("failed to parse test markup: %v", err)
	}
	return doc
}

func TestFindCode(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		wantCode string
		wantOK   bool
	}{
		{
			name:     "id selector",
			html:     `<div><span id="captcha-code"> 4821 </span></div>`,
			wantCode: "4821",
			wantOK:   true,
		},
		{
			name:     "class selector",
			html:     `<span class="captcha-code">0077</span>`,
			wantCode: "0077",
			wantOK:   true,
		},
		{
			name: "no challenge present",
			html: `<form><input name="captchaInput"></form>`,
		},
		{
			name: "empty element",
			html: `<span id="captcha-code">   </span>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := FindCode(docFrom(t, tt.html))
			if ok != tt.wantOK {
				t.Fatalf("FindCode() ok = %v, want %v", ok, tt.wantOK)
			}
			if code != tt.wantCode {
				t.Errorf("FindCode() = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestFindImageSrc(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		wantSrc string
		wantOK  bool
	}{
		{
			name:    "image by id",
			html:    `<img id="captcha_image" src="/captcha/render.png">`,
			wantSrc: "/captcha/render.png",
			wantOK:  true,
		},
		{
			name:    "image matched by src",
			html:    `<img src="https://court.example/captcha?t=1">`,
			wantSrc: "https://court.example/captcha?t=1",
			wantOK:  true,
		},
		{
			name: "unrelated image ignored",
			html: `<img src="/logo.png">`,
		},
		{
			name: "image without src",
			html: `<img id="captcha_image">`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, ok := FindImageSrc(docFrom(t, tt.html))
			if ok != tt.wantOK {
				t.Fatalf("FindImageSrc() ok = %v, want %v", ok, tt.wantOK)
			}
			if src != tt.wantSrc {
				t.Errorf("FindImageSrc() = %q, want %q", src, tt.wantSrc)
			}
		})
	}
}

func TestDecodeDataURI(t *testing.T) {
	payload := []byte{0x89, 0x50, 0x4e, 0x47}
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)

	data, ok := DecodeDataURI(uri)
	if !ok {
		t.Fatal("DecodeDataURI() rejected a valid data URI")
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("DecodeDataURI() = %v, want %v", data, payload)
	}

	for _, bad := range []string{
		"/captcha/render.png",
		"https://court.example/captcha.png",
		"data:image/png;base64,!!!not-base64!!!",
		"data:text/plain,hello",
	} {
		if _, ok := DecodeDataURI(bad); ok {
			t.Errorf("DecodeDataURI(%q) = ok, want rejection", bad)
		}
	}
}
