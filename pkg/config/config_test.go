package config

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carouselbot/pkg/imagekit"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	// Provide a path that definitely doesn't exist
	config, err := LoadConfig("non_existent_config.yml")
	require.NoError(t, err)
	require.NoError(t, config.Validate())

	assert.Len(t, config.Accounts, 1)
	assert.Equal(t, []string{"07:00", "11:00", "15:00", "19:00"}, config.Accounts[0].PostTimes)
	assert.Equal(t, "product-screenshots", config.Folders[CategoryScreen])
	assert.Equal(t, "America/Toronto", config.Timezone)
	assert.Equal(t, 12, config.Content.HashtagCount)
	assert.Len(t, config.Content.Hooks, 110)
	assert.Len(t, config.Content.CTATexts, 7)
	assert.Equal(t, 90, config.Image.Quality)
	assert.Equal(t, imagekit.DefaultGeometry, config.Geometry())
	assert.Equal(t, 5, config.Image.Screenshots)
	assert.Equal(t, 3, config.Retry.MaxRetries)

	initial, maxDelay := config.RetryDelays()
	assert.Equal(t, 4*time.Second, initial)
	assert.Equal(t, 20*time.Second, maxDelay)
	assert.Equal(t, time.Hour, config.CacheTTL())
}

func TestLoadConfig_DefaultsAreNotShared(t *testing.T) {
	a := Default()
	a.Content.Hooks[0] = "mutated"
	b := Default()
	assert.NotEqual(t, "mutated", b.Content.Hooks[0])
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeTemp(t, `
accounts:
  - name: "@glow"
    tiktok_username: glow_daily
    post_times: ["08:30", "21:15"]
    webhook_url: https://discord.com/api/webhooks/1/abc
drive_folders:
  CTA: closing-shots
timezone: Europe/Paris
text:
  cta:
    font_size: 70
    font_color: [250, 240, 10]
    stroke_color: [0, 0, 0]
    stroke_width: 3
    y_position_percent: 40
    max_width_percent: 80
image:
  screenshots: 3
cache:
  backend: redis
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	require.Len(t, config.Accounts, 1)
	assert.Equal(t, "glow_daily", config.Accounts[0].Username)
	assert.Equal(t, "closing-shots", config.Folders[CategoryCTA])
	// Unlisted keys keep their defaults.
	assert.Equal(t, "hook-photos", config.Folders[CategoryHook])
	assert.Equal(t, 90, config.Image.Quality)
	assert.Equal(t, 3, config.Image.Screenshots)
	assert.Equal(t, "redis", config.Cache.Backend)

	spec := config.Text.CTA.OverlaySpec()
	assert.Equal(t, color.RGBA{250, 240, 10, 255}, spec.FontColor)
	assert.Equal(t, 3, spec.StrokeWidth)
	assert.Equal(t, 40.0, spec.YPositionPercent)

	loc := config.Location()
	assert.Equal(t, "Europe/Paris", loc.String())

	a, ok := config.Account("glow_daily")
	assert.True(t, ok)
	assert.Equal(t, "@glow", a.Name)
	_, ok = config.Account("nobody")
	assert.False(t, ok)
	assert.Equal(t, []string{"glow_daily"}, config.Usernames())
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeTemp(t, `
accounts:
  - name: "broken
    broken_yaml: [ unclosed bracket
`)
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad post time", "accounts:\n  - tiktok_username: a\n    post_times: [\"25:00\"]\n", "not HH:MM"},
		{"missing username", "accounts:\n  - name: x\n", "tiktok_username is required"},
		{"unknown timezone", "timezone: Mars/Olympus\n", "timezone"},
		{"too many screenshots", "image:\n  screenshots: 6\n", "screenshots"},
		{"bad cache backend", "cache:\n  backend: memcached\n", "cache.backend"},
		{"redis without prefix", "cache:\n  backend: redis\n  prefix: \"\"\n", "cache.prefix is required"},
		{"unmapped folder", "drive_folders:\n  HOOK: \"\"\n", "HOOK is not mapped"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeTemp(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefaultTextSettingsMatchOverlaySpecs(t *testing.T) {
	config := Default()
	tests := []struct {
		settings TextSettings
		want     imagekit.OverlaySpec
	}{
		{config.Text.Default, imagekit.DefaultOverlaySpec},
		{config.Text.Hook, imagekit.HookOverlaySpec},
		{config.Text.CTA, imagekit.CTAOverlaySpec},
	}
	for _, tt := range tests {
		got := tt.settings.OverlaySpec()
		assert.Equal(t, tt.want.FontSize, got.FontSize)
		assert.Equal(t, tt.want.StrokeWidth, got.StrokeWidth)
		assert.Equal(t, tt.want.YPositionPercent, got.YPositionPercent)
		assert.Equal(t, tt.want.MaxWidthPercent, got.MaxWidthPercent)

		r, g, b, a := got.FontColor.RGBA()
		wr, wg, wb, wa := tt.want.FontColor.RGBA()
		assert.Equal(t, [4]uint32{wr, wg, wb, wa}, [4]uint32{r, g, b, a})
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Run("missing required", func(t *testing.T) {
		t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
		t.Setenv("UPLOAD_POST_API_KEY", "")
		s, err := LoadSecrets(filepath.Join(t.TempDir(), "absent.env"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GOOGLE_SERVICE_ACCOUNT_JSON")
		assert.Contains(t, err.Error(), "UPLOAD_POST_API_KEY")
		assert.Len(t, s.Missing(), 2)
	})

	t.Run("from env file", func(t *testing.T) {
		t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
		t.Setenv("UPLOAD_POST_API_KEY", "")
		t.Setenv("SURREAL_DB_HOST", "")
		// godotenv.Load never overrides variables that are already set, so
		// clear the ones the file provides.
		os.Unsetenv("GOOGLE_SERVICE_ACCOUNT_JSON")
		os.Unsetenv("UPLOAD_POST_API_KEY")
		os.Unsetenv("SURREAL_DB_HOST")

		envFile := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(envFile, []byte(
			"GOOGLE_SERVICE_ACCOUNT_JSON=/secrets/sa.json\nUPLOAD_POST_API_KEY=key-123\nSURREAL_DB_HOST=ws://localhost:8000\n"), 0o600))

		s, err := LoadSecrets(envFile)
		require.NoError(t, err)
		assert.Equal(t, "/secrets/sa.json", s.GoogleServiceAccountJSON)
		assert.Equal(t, "key-123", s.UploadPostAPIKey)
		assert.True(t, s.HasSurreal())
	})
}
