package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	// EMR store (Medplum-compatible FHIR server)
	MedplumBaseURL      string `mapstructure:"MEDPLUM_BASE_URL"`
	MedplumClientID     string `mapstructure:"MEDPLUM_CLIENT_ID"`
	MedplumClientSecret string `mapstructure:"MEDPLUM_CLIENT_SECRET"`

	// Transcript extraction / summary drafting model
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel  string `mapstructure:"GEMINI_MODEL"`

	// Speech-to-text providers
	DeepgramAPIKey   string `mapstructure:"DEEPGRAM_API_KEY"`
	ElevenLabsAPIKey string `mapstructure:"ELEVENLABS_API_KEY"`
	HeidiAPIKey      string `mapstructure:"HEIDI_API_KEY"`
	HeidiBaseURL     string `mapstructure:"HEIDI_BASE_URL"`

	// Outbound email
	SendGridAPIKey string `mapstructure:"SENDGRID_API_KEY"`
	FromEmail      string `mapstructure:"SENDGRID_FROM_EMAIL"`

	// Practitioner directory
	NPIBaseURL string `mapstructure:"NPI_BASE_URL"`

	// Session store
	RedisURL          string `mapstructure:"REDIS_URL"`
	SessionTTLMinutes int    `mapstructure:"SESSION_TTL_MINUTES"`

	// Allows approved/rejected actions to be moved back to pending.
	AllowReopen bool `mapstructure:"ALLOW_REOPEN"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("MEDPLUM_BASE_URL", "https://api.medplum.com/")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("HEIDI_BASE_URL", "https://registrar.api.heidihealth.com/api/v2/ml-scribe/open-api")
	v.SetDefault("NPI_BASE_URL", "https://npiregistry.cms.hhs.gov/api/")
	v.SetDefault("SESSION_TTL_MINUTES", 240)
	v.SetDefault("ALLOW_REOPEN", false)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "CORS_ORIGINS",
		"MEDPLUM_BASE_URL", "MEDPLUM_CLIENT_ID", "MEDPLUM_CLIENT_SECRET",
		"GEMINI_API_KEY", "GEMINI_MODEL",
		"DEEPGRAM_API_KEY", "ELEVENLABS_API_KEY", "HEIDI_API_KEY", "HEIDI_BASE_URL",
		"SENDGRID_API_KEY", "SENDGRID_FROM_EMAIL",
		"NPI_BASE_URL",
		"REDIS_URL", "SESSION_TTL_MINUTES",
		"ALLOW_REOPEN",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Validate checks that credentials for the required external collaborators are
// present. Missing configuration fails fast at startup rather than on the
// first request that needs it. Speech-to-text and email providers are
// optional: their endpoints report missing configuration per-call instead.
func (c *Config) Validate() error {
	if c.MedplumBaseURL == "" {
		return fmt.Errorf("MEDPLUM_BASE_URL is required")
	}
	if c.MedplumClientID == "" || c.MedplumClientSecret == "" {
		return fmt.Errorf("MEDPLUM_CLIENT_ID and MEDPLUM_CLIENT_SECRET are required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.SendGridAPIKey != "" && c.FromEmail == "" {
		return fmt.Errorf("SENDGRID_FROM_EMAIL is required when SENDGRID_API_KEY is set")
	}
	if c.SessionTTLMinutes <= 0 {
		return fmt.Errorf("SESSION_TTL_MINUTES must be positive, got %d", c.SessionTTLMinutes)
	}
	return nil
}
