package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"carouselbot/pkg/imagekit"
)

// Folder categories used by the carousel.
const (
	CategoryHook   = "HOOK"
	CategoryScreen = "SCREEN"
	CategoryCTA    = "CTA"
)

type Account struct {
	Name       string   `yaml:"name"`
	Username   string   `yaml:"tiktok_username"`
	PostTimes  []string `yaml:"post_times"`
	WebhookURL string   `yaml:"webhook_url"`
}

// TextSettings is the YAML form of an overlay spec.
type TextSettings struct {
	FontSize         int      `yaml:"font_size"`
	FontColor        [3]uint8 `yaml:"font_color,flow"`
	StrokeColor      [3]uint8 `yaml:"stroke_color,flow"`
	StrokeWidth      int      `yaml:"stroke_width"`
	YPositionPercent float64  `yaml:"y_position_percent"`
	MaxWidthPercent  float64  `yaml:"max_width_percent"`
}

func (t TextSettings) OverlaySpec() imagekit.OverlaySpec {
	return imagekit.OverlaySpec{
		FontSize:         t.FontSize,
		FontColor:        color.RGBA{t.FontColor[0], t.FontColor[1], t.FontColor[2], 0xff},
		StrokeColor:      color.RGBA{t.StrokeColor[0], t.StrokeColor[1], t.StrokeColor[2], 0xff},
		StrokeWidth:      t.StrokeWidth,
		YPositionPercent: t.YPositionPercent,
		MaxWidthPercent:  t.MaxWidthPercent,
	}
}

type Config struct {
	Accounts []Account        `yaml:"accounts"`
	Folders  map[string]string `yaml:"drive_folders"`
	Timezone string            `yaml:"timezone"`

	Content struct {
		CTATexts      []string `yaml:"cta_texts"`
		Hashtags      []string `yaml:"hashtags"`
		HashtagCount  int      `yaml:"hashtag_count"`
		Hooks         []string `yaml:"pregenerated_hooks"`
		PromptPath    string   `yaml:"prompt_path"`
		Model         string   `yaml:"model"`
		RecentHooks   int      `yaml:"recent_hooks"`
		FallbackTitle string   `yaml:"fallback_title"`
	} `yaml:"content"`

	Text struct {
		Default TextSettings `yaml:"default"`
		Hook    TextSettings `yaml:"hook"`
		CTA     TextSettings `yaml:"cta"`
	} `yaml:"text"`

	Image struct {
		Quality      int      `yaml:"quality"`
		Width        int      `yaml:"width"`
		Height       int      `yaml:"height"`
		Screenshots  int      `yaml:"screenshots"`
		FontPaths    []string `yaml:"font_paths"`
		EmbeddedFont bool     `yaml:"embedded_font"`
	} `yaml:"image"`

	Retry struct {
		MaxRetries      int     `yaml:"max_retries"`
		InitialDelaySec float64 `yaml:"initial_delay_seconds"`
		MaxDelaySec     float64 `yaml:"max_delay_seconds"`
	} `yaml:"retry"`

	RateLimit struct {
		Requests      int `yaml:"requests"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"rate_limit"`

	Cache struct {
		Backend    string `yaml:"backend"`
		TTLMinutes int    `yaml:"ttl_minutes"`
		Prefix     string `yaml:"prefix"`
	} `yaml:"cache"`

	Publisher struct {
		BaseURL        string `yaml:"base_url"`
		Platform       string `yaml:"platform"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"publisher"`
}

// LoadConfig reads path over the built-in defaults. A missing file yields
// the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	_, err := os.Stat(path)
	if os.IsNotExist(err) {
		return config, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(file, config)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

var postTimeRE = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

func (c *Config) Validate() error {
	var errs []error
	if len(c.Accounts) == 0 {
		errs = append(errs, errors.New("no accounts configured"))
	}
	for i, a := range c.Accounts {
		if a.Username == "" {
			errs = append(errs, fmt.Errorf("account %d: tiktok_username is required", i))
		}
		for _, t := range a.PostTimes {
			if !postTimeRE.MatchString(t) {
				errs = append(errs, fmt.Errorf("account %q: post time %q is not HH:MM", a.Username, t))
			}
		}
	}
	for _, cat := range []string{CategoryHook, CategoryScreen, CategoryCTA} {
		if c.Folders[cat] == "" {
			errs = append(errs, fmt.Errorf("drive_folders: %s is not mapped", cat))
		}
	}
	if len(c.Content.CTATexts) == 0 {
		errs = append(errs, errors.New("content.cta_texts is empty"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if c.Image.Width <= 0 || c.Image.Height <= 0 {
		errs = append(errs, fmt.Errorf("image size %dx%d is invalid", c.Image.Width, c.Image.Height))
	}
	if c.Image.Screenshots < 0 || c.Image.Screenshots > 5 {
		errs = append(errs, fmt.Errorf("image.screenshots must be 0-5, got %d", c.Image.Screenshots))
	}
	switch c.Cache.Backend {
	case "", "memory":
	case "redis":
		if strings.Trim(c.Cache.Prefix, ":") == "" {
			errs = append(errs, errors.New("cache.prefix is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not memory or redis", c.Cache.Backend))
	}
	return errors.Join(errs...)
}

// Geometry is the output frame size.
func (c *Config) Geometry() imagekit.Geometry {
	return imagekit.Geometry{Width: c.Image.Width, Height: c.Image.Height}
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Account finds an account by TikTok username.
func (c *Config) Account(username string) (Account, bool) {
	for _, a := range c.Accounts {
		if a.Username == username {
			return a, true
		}
	}
	return Account{}, false
}

func (c *Config) Usernames() []string {
	names := make([]string, len(c.Accounts))
	for i, a := range c.Accounts {
		names[i] = a.Username
	}
	return names
}

func (c *Config) RetryDelays() (initial, maxDelay time.Duration) {
	return seconds(c.Retry.InitialDelaySec), seconds(c.Retry.MaxDelaySec)
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMinutes) * time.Minute
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
