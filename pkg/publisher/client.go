// Package publisher posts photo carousels through the Upload-Post API.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"carouselbot/pkg/imagekit"
	"carouselbot/pkg/retry"
)

const (
	DefaultBaseURL = "https://api.upload-post.com"
	DefaultTitle   = "Check out these amazing skincare products!"

	MaxPhotos     = 7
	maxPhotoBytes = 50 << 20
	warnBytes     = 10 << 20
	minTitleRunes = 10

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

type Options struct {
	BaseURL  string
	Platform string
	// Timeout bounds a single upload request.
	Timeout       time.Duration
	Retry         retry.Policy
	Limiter       *rate.Limiter
	Geometry      imagekit.Geometry
	FallbackTitle string
	HTTPClient    *http.Client
	Logger        *zap.Logger
}

// NewLimiter allows n requests per window, refilled evenly.
func NewLimiter(n int, window time.Duration) *rate.Limiter {
	if n <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(n)), n)
}

type Client struct {
	apiKey        string
	baseURL       string
	platform      string
	http          *http.Client
	timeout       time.Duration
	retry         retry.Policy
	limiter       *rate.Limiter
	geometry      imagekit.Geometry
	fallbackTitle string
	logger        *zap.Logger
}

func New(apiKey string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Platform == "" {
		opts.Platform = "tiktok"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.Retry.Attempts == 0 {
		opts.Retry = retry.Default
	}
	if opts.Limiter == nil {
		opts.Limiter = NewLimiter(10, time.Minute)
	}
	if opts.Geometry == (imagekit.Geometry{}) {
		opts.Geometry = imagekit.DefaultGeometry
	}
	if opts.FallbackTitle == "" {
		opts.FallbackTitle = DefaultTitle
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		apiKey:        apiKey,
		baseURL:       strings.TrimSuffix(opts.BaseURL, "/"),
		platform:      opts.Platform,
		http:          opts.HTTPClient,
		timeout:       opts.Timeout,
		retry:         opts.Retry,
		limiter:       opts.Limiter,
		geometry:      opts.Geometry,
		fallbackTitle: opts.FallbackTitle,
		logger:        opts.Logger,
	}
}

// Upload is one carousel post. Title is the hook text.
type Upload struct {
	Photos   [][]byte
	Caption  string
	Title    string
	Username string
}

// PlatformResult is the per-platform part of an upload response.
type PlatformResult struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	URL       string `json:"url"`
	PublishID string `json:"publish_id"`
	Error     string `json:"error"`
}

type Response struct {
	Success bool                      `json:"success"`
	Results map[string]PlatformResult `json:"results"`
	Raw     json.RawMessage           `json:"-"`
}

// Platform returns the result for one platform with display defaults for
// missing fields.
func (r *Response) Platform(name string) PlatformResult {
	res := r.Results[name]
	if res.URL == "" {
		res.URL = "No URL provided"
	}
	if res.Status == "" {
		res.Status = "Unknown status"
	}
	if res.PublishID == "" {
		res.PublishID = "No ID"
	}
	return res
}

// Check fails unless the platform reported a completed publish.
func (r *Response) Check(platform string) (PlatformResult, error) {
	res := r.Platform(platform)
	if res.Error != "" {
		if strings.Contains(strings.ToLower(res.Error), photoPullFailed) {
			return res, fmt.Errorf("%w: %s", ErrPhotoPullFailed, res.Error)
		}
		return res, fmt.Errorf("TikTok upload failed: %s", res.Error)
	}
	if !res.Success || res.Status != "PUBLISH_COMPLETE" {
		return res, fmt.Errorf("%w. Status: %s, Success: %t", ErrUploadIncomplete, res.Status, res.Success)
	}
	return res, nil
}

// Title normalises the hook text for the post title.
func (c *Client) Title(hook string) string {
	title := strings.TrimSpace(hook)
	if len(title) >= 2 && strings.HasPrefix(title, `"`) && strings.HasSuffix(title, `"`) {
		title = title[1 : len(title)-1]
	}
	if utf8.RuneCountInString(title) < minTitleRunes {
		return c.fallbackTitle
	}
	return title
}

func (c *Client) validate(u Upload) error {
	switch {
	case len(u.Photos) == 0:
		return invalid("photos list cannot be empty")
	case len(u.Photos) > MaxPhotos:
		return invalid("maximum %d photos allowed for carousel", MaxPhotos)
	case strings.TrimSpace(u.Caption) == "":
		return invalid("caption cannot be empty")
	case strings.TrimSpace(u.Title) == "":
		return invalid("hook text cannot be empty")
	case c.apiKey == "":
		return invalid("API key is required")
	case u.Username == "":
		return invalid("TikTok username is required")
	}

	for i, p := range u.Photos {
		n := i + 1
		if len(p) == 0 {
			return invalid("photo %d is empty (0 bytes)", n)
		}
		if len(p) > maxPhotoBytes {
			return invalid("photo %d is too large: %d bytes", n, len(p))
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(p))
		if err != nil {
			return invalid("photo %d is not a valid image: %v", n, err)
		}
		if format != "jpeg" {
			return invalid("photo %d should be JPEG but is %s", n, format)
		}
		if cfg.Width != c.geometry.Width || cfg.Height != c.geometry.Height {
			c.logger.Warn("photo has unexpected dimensions",
				zap.Int("photo", n),
				zap.Int("width", cfg.Width),
				zap.Int("height", cfg.Height),
				zap.Stringer("expected", c.geometry))
		}
		if len(p) > warnBytes {
			c.logger.Warn("photo is large, TikTok might reject it", zap.Int("photo", n), zap.Int("bytes", len(p)))
		}
	}
	return nil
}

// form builds the multipart body once so retries can resend it.
func (c *Client) form(u Upload) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"title", c.Title(u.Title)},
		{"caption", u.Caption},
		{"platform[]", c.platform},
		{"user", u.Username},
		{"auto_add_music", "true"},
		{"disable_comment", "false"},
		{"branded_content", "false"},
		{"photo_cover_index", "0"},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	for i, p := range u.Photos {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="photos[]"; filename="image_%d.jpg"`, i+1))
		h.Set("Content-Type", "image/jpeg")
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(p); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// UploadCarousel validates and posts a carousel, retrying transient
// failures including photo_pull_failed. The daily limit and other client
// errors are returned at once.
func (c *Client) UploadCarousel(ctx context.Context, u Upload) (*Response, error) {
	if err := c.validate(u); err != nil {
		return nil, err
	}
	body, contentType, err := c.form(u)
	if err != nil {
		return nil, fmt.Errorf("failed to build form: %w", err)
	}

	c.logger.Debug("uploading carousel",
		zap.String("user", u.Username),
		zap.String("title", c.Title(u.Title)),
		zap.Int("photos", len(u.Photos)),
		zap.Int("bytes", len(body)))

	var resp *Response
	err = c.retry.Do(ctx, c.logger, "upload_photos", func() error {
		var err error
		resp, err = c.post(ctx, body, contentType)
		if err != nil && !temporary(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upload-post request failed: %w", err)
	}
	return resp, nil
}

func temporary(err error) bool {
	if errors.Is(err, ErrPhotoPullFailed) {
		return true
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var decodeErr *decodeError
	return !errors.As(err, &decodeErr)
}

type decodeError struct{ msg string }

func (e *decodeError) Error() string { return e.msg }

func (c *Client) post(ctx context.Context, body []byte, contentType string) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload_photos", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Apikey "+c.apiKey)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", contentType)

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	ct := res.Header.Get("Content-Type")

	c.logger.Debug("upload response",
		zap.Int("status", res.StatusCode),
		zap.String("content_type", ct),
		zap.Int("bytes", len(data)))

	if res.StatusCode == http.StatusTooManyRequests {
		msg := "Rate limit exceeded"
		if isJSON(ct) {
			var payload struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
				msg = payload.Message
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, msg)
	}
	if res.StatusCode >= 400 {
		return nil, &APIError{StatusCode: res.StatusCode, Summary: summarize(ct, data)}
	}
	if !isJSON(ct) {
		return nil, &decodeError{fmt.Sprintf("API returned non-JSON response. Content-Type: %s, Response: %s", ct, summarize(ct, data))}
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, &decodeError{fmt.Sprintf("failed to parse JSON response: %v. Raw response: %s", err, summarize(ct, data))}
	}
	out.Raw = data

	if r, ok := out.Results[c.platform]; ok && strings.Contains(strings.ToLower(r.Error), photoPullFailed) {
		return nil, fmt.Errorf("%w: %s", ErrPhotoPullFailed, r.Error)
	}
	return &out, nil
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "application/json"
}

func (c *Client) get(ctx context.Context, path string, timeout time.Duration) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Authorization", "Apikey "+c.apiKey)
	res, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	res.Body = &cancelBody{ReadCloser: res.Body, cancel: cancel}
	return res, nil
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// ValidateAPIKey reports whether the API accepts the key.
func (c *Client) ValidateAPIKey(ctx context.Context) (bool, error) {
	res, err := c.get(ctx, "/api/uploadposts/users/validate-jwt", 10*time.Second)
	if err != nil {
		return false, fmt.Errorf("failed to validate API key: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, res.Body)
	return res.StatusCode == http.StatusOK, nil
}

// UploadStatus fetches the API's status document for an upload.
func (c *Client) UploadStatus(ctx context.Context, id string) (map[string]any, error) {
	if id == "" {
		return nil, invalid("upload id is required")
	}
	res, err := c.get(ctx, "/api/uploadposts/status/"+id, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to get upload status: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to get upload status: %w", err)
	}
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("failed to get upload status: %w",
			&APIError{StatusCode: res.StatusCode, Summary: summarize(res.Header.Get("Content-Type"), data)})
	}

	var status map[string]any
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to get upload status: %w", err)
	}
	return status, nil
}
