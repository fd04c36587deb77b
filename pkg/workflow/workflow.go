// Package workflow generates per-account GitHub Actions workflows that run
// one posting cycle on a schedule.
package workflow

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"carouselbot/pkg/config"
	"carouselbot/pkg/schedule"
)

var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

var ErrInvalidUsername = errors.New("TikTok username should contain only letters, numbers, and underscores")

// DefaultPostTimes are used when the account has none configured.
var DefaultPostTimes = []string{"07:00", "22:00"}

type Workflow struct {
	Name string            `yaml:"name"`
	On   Triggers          `yaml:"on"`
	Env  map[string]string `yaml:"env"`
	Jobs map[string]Job    `yaml:"jobs"`
}

type Triggers struct {
	Schedule         []Cron   `yaml:"schedule"`
	WorkflowDispatch struct{} `yaml:"workflow_dispatch"`
}

type Cron struct {
	Cron string `yaml:"cron"`
}

type Job struct {
	RunsOn         string `yaml:"runs-on"`
	TimeoutMinutes int    `yaml:"timeout-minutes"`
	Steps          []Step `yaml:"steps"`
}

type Step struct {
	Name            string            `yaml:"name"`
	If              string            `yaml:"if,omitempty"`
	Uses            string            `yaml:"uses,omitempty"`
	With            map[string]string `yaml:"with,omitempty"`
	Run             string            `yaml:"run,omitempty"`
	Env             map[string]string `yaml:"env,omitempty"`
	ContinueOnError bool              `yaml:"continue-on-error,omitempty"`
}

type Options struct {
	// PostTimes are local "HH:MM" times in Location.
	PostTimes []string
	Location  *time.Location
	// Reference picks the date whose UTC offset is used. GitHub cron is
	// UTC-only, so runs shift by an hour across DST.
	Reference time.Time
}

func ValidateUsername(username string) error {
	if !usernameRE.MatchString(username) {
		return fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	return nil
}

// UTCCron converts a local "HH:MM" to a daily UTC cron expression.
func UTCCron(postTime string, loc *time.Location, ref time.Time) (string, error) {
	hour, minute, err := schedule.ParseTime(postTime)
	if err != nil {
		return "", err
	}
	t := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, loc).UTC()
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}

func secret(name string) string {
	return "${{ secrets." + name + " }}"
}

const checkCredentials = `echo '${{ secrets.GOOGLE_SERVICE_ACCOUNT_JSON }}' > service-account.json
chmod 600 service-account.json
echo "Service account file created with $(wc -c < service-account.json) bytes"
if jq empty service-account.json > /dev/null 2>&1; then
  echo "✅ Valid JSON format"
else
  echo "❌ Invalid JSON format"
  exit 1
fi`

// Generate builds the workflow for username.
func Generate(username string, opts Options) (*Workflow, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	if len(opts.PostTimes) == 0 {
		opts.PostTimes = DefaultPostTimes
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Reference.IsZero() {
		opts.Reference = time.Date(time.Now().Year(), time.January, 15, 0, 0, 0, 0, time.UTC)
	}

	var crons []Cron
	seen := map[string]bool{}
	for _, t := range opts.PostTimes {
		c, err := UTCCron(t, opts.Location, opts.Reference)
		if err != nil {
			return nil, err
		}
		if !seen[c] {
			seen[c] = true
			crons = append(crons, Cron{Cron: c})
		}
	}

	credentials := map[string]string{"GOOGLE_SERVICE_ACCOUNT_JSON": "service-account.json"}

	return &Workflow{
		Name: "TikTok Carousel Auto-Poster - " + username,
		On:   Triggers{Schedule: crons},
		Env: map[string]string{
			"GOOGLE_SERVICE_ACCOUNT_JSON": secret("GOOGLE_SERVICE_ACCOUNT_JSON"),
			"UPLOAD_POST_API_KEY":         secret("UPLOAD_POST_API_KEY"),
			"OPENAI_API_KEY":              secret("OPENAI_API_KEY"),
			"REDIS_URL":                   secret("REDIS_URL"),
			"TARGET_ACCOUNT":              username,
		},
		Jobs: map[string]Job{
			"post-carousel": {
				RunsOn:         "ubuntu-latest",
				TimeoutMinutes: 30,
				Steps: []Step{
					{Name: "Checkout repository", Uses: "actions/checkout@v4"},
					{Name: "Set up Go", Uses: "actions/setup-go@v5", With: map[string]string{"go-version-file": "go.mod"}},
					{Name: "Build", Run: "go build -o carouselbot ."},
					{Name: "Create service account file", Run: checkCredentials},
					{
						Name:            "Check API key",
						Run:             "./carouselbot check",
						Env:             credentials,
						ContinueOnError: true,
					},
					{
						Name: "Run carousel generation for " + username,
						Run:  "./carouselbot --once",
						Env:  credentials,
					},
					{Name: "Cleanup sensitive files", If: "always()", Run: "rm -f service-account.json"},
					{
						Name: "Upload logs on failure",
						If:   "failure()",
						Uses: "actions/upload-artifact@v4",
						With: map[string]string{
							"name":           "error-logs-" + username,
							"path":           "*.log\n/tmp/*.log\n",
							"retention-days": "7",
						},
					},
				},
			},
		},
	}, nil
}

func (w *Workflow) Marshal() ([]byte, error) {
	return yaml.Marshal(w)
}

// Path is where the workflow for username lives under dir.
func Path(dir, username string) string {
	return filepath.Join(dir, ".github", "workflows", "post-"+username+".yml")
}

// Write generates and writes the workflow file, returning its path.
func Write(dir, username string, opts Options) (string, error) {
	w, err := Generate(username, opts)
	if err != nil {
		return "", err
	}
	data, err := w.Marshal()
	if err != nil {
		return "", fmt.Errorf("failed to marshal workflow: %w", err)
	}

	path := Path(dir, username)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// ExampleAccount is the config entry to paste for a new account.
func ExampleAccount(username string, postTimes []string) ([]byte, error) {
	if len(postTimes) == 0 {
		postTimes = DefaultPostTimes
	}
	return yaml.Marshal(map[string][]config.Account{
		"accounts": {{
			Name:       "@" + username,
			Username:   username,
			PostTimes:  postTimes,
			WebhookURL: "https://discord.com/api/webhooks/YOUR_WEBHOOK_ID/YOUR_WEBHOOK_TOKEN",
		}},
	})
}
