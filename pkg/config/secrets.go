package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Secrets holds credentials read from the environment.
type Secrets struct {
	// GoogleServiceAccountJSON is the path to the service-account key file.
	GoogleServiceAccountJSON string
	UploadPostAPIKey         string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	RedisURL string

	SurrealHost      string
	SurrealUser      string
	SurrealPass      string
	SurrealNamespace string
	SurrealDatabase  string

	TargetAccount string
}

// LoadSecrets loads .env files (if any) into the environment, then reads and
// validates the required variables.
func LoadSecrets(files ...string) (*Secrets, error) {
	// A missing .env is normal in CI; the variables come from the runner.
	_ = godotenv.Load(files...)

	s := &Secrets{
		GoogleServiceAccountJSON: os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"),
		UploadPostAPIKey:         os.Getenv("UPLOAD_POST_API_KEY"),
		OpenAIAPIKey:             os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:            os.Getenv("OPENAI_BASE_URL"),
		RedisURL:                 os.Getenv("REDIS_URL"),
		SurrealHost:              os.Getenv("SURREAL_DB_HOST"),
		SurrealUser:              os.Getenv("SURREAL_DB_USER"),
		SurrealPass:              os.Getenv("SURREAL_DB_PASS"),
		SurrealNamespace:         os.Getenv("SURREAL_DB_NAMESPACE"),
		SurrealDatabase:          os.Getenv("SURREAL_DB_DATABASE"),
		TargetAccount:            os.Getenv("TARGET_ACCOUNT"),
	}

	if missing := s.Missing(); len(missing) > 0 {
		return s, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return s, nil
}

// Missing lists the required variables that are unset.
func (s *Secrets) Missing() []string {
	var missing []string
	if s.GoogleServiceAccountJSON == "" {
		missing = append(missing, "GOOGLE_SERVICE_ACCOUNT_JSON")
	}
	if s.UploadPostAPIKey == "" {
		missing = append(missing, "UPLOAD_POST_API_KEY")
	}
	return missing
}

func (s *Secrets) HasSurreal() bool { return s.SurrealHost != "" }

func (s *Secrets) HasOpenAI() bool { return s.OpenAIAPIKey != "" }
