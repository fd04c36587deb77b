package publisher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrRateLimited is the daily upload cap. Retrying the same day is
	// pointless.
	ErrRateLimited = errors.New("daily upload limit reached")
	// ErrPhotoPullFailed means TikTok could not fetch the photos from the
	// API's storage. It usually clears on its own.
	ErrPhotoPullFailed  = errors.New("TikTok photo upload failed: photo_pull_failed")
	ErrUploadIncomplete = errors.New("TikTok upload incomplete")
	ErrInvalidUpload    = errors.New("invalid upload")
)

const photoPullFailed = "photo_pull_failed"

// APIError is a non-2xx answer other than 429.
type APIError struct {
	StatusCode int
	Summary    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Upload-Post API returned %d: %s", e.StatusCode, e.Summary)
}

// Temporary reports whether the request may succeed if sent again.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidUpload, fmt.Sprintf(format, args...))
}

const maxSummary = 500

// summarize shortens an error body for logs. HTML error pages (proxies,
// Cloudflare) are reduced to their title and visible text.
func summarize(contentType string, body []byte) string {
	text := string(body)
	if strings.Contains(strings.ToLower(contentType), "html") || looksLikeHTML(text) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			doc.Find("script, style, noscript").Remove()
			title := strings.TrimSpace(doc.Find("title").First().Text())
			visible := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
			switch {
			case title != "" && visible != "" && !strings.HasPrefix(visible, title):
				text = title + ": " + visible
			case visible != "":
				text = visible
			default:
				text = title
			}
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "(empty response)"
	}
	if r := []rune(text); len(r) > maxSummary {
		return string(r[:maxSummary]) + "..."
	}
	return text
}

func looksLikeHTML(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html")
}
