package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel    OTelConfig
	GitHub  GitHubConfig
	Agent   AgentConfig
	LLM     LLMConfig
	Lock    LockConfig
	Env     string
	Port    string
	Mention string // "word" or "login"
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	Environment    string // copied from BUNSEN_ENV
	AgentIdentity  string // copied from BUNSEN_AGENT_IDENTITY
}

type GitHubConfig struct {
	WebhookSecret    string
	AppID            int64
	PrivateKey       string
	Token            string // personal access token fallback
	APIURL           string // optional: GitHub Enterprise base URL
	TriggerLabel     string
	MainBranch       string
	WorkflowFilename string
	Timeout          time.Duration
}

type AgentConfig struct {
	Identity string // reserved login of the automated participant
	Name     string // persona display name
}

type LLMConfig struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string
	BaseURL   string // Optional: for custom endpoints
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type LockConfig struct {
	RedisURL string
	TTL      time.Duration
	Wait     time.Duration
}

type ServiceType string

const (
	ServiceTypeServer ServiceType = "server"
	ServiceTypeCLI    ServiceType = "cli"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.server for the webhook server
//   - .env.cli for bunsenctl
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("BUNSEN_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	cfg := Config{
		Env:     getEnv("BUNSEN_ENV", "development"),
		Port:    getEnv("PORT", "8000"),
		Mention: getEnv("MENTION_GRAMMAR", "word"),
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "bunsen"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			Environment:    getEnv("BUNSEN_ENV", "development"),
			AgentIdentity:  getEnv("BUNSEN_AGENT_IDENTITY", ""),
		},
		GitHub: GitHubConfig{
			WebhookSecret:    getEnv("BUNSEN_GITHUB_WEBHOOK_SECRET", ""),
			AppID:            getEnvInt64("BUNSEN_GITHUB_APP_ID", 0),
			PrivateKey:       getEnv("BUNSEN_GITHUB_PRIVATE_KEY", ""),
			Token:            getEnv("GITHUB_TOKEN", ""),
			APIURL:           getEnv("GITHUB_API_URL", ""),
			TriggerLabel:     getEnv("GITHUB_CODING_TRIGGER_LABEL", "ready-for-dev"),
			MainBranch:       getEnv("GITHUB_MAIN_BRANCH", "main"),
			WorkflowFilename: getEnv("GITHUB_CODING_WORKFLOW_FILENAME", "coding_agent.yaml"),
			Timeout:          getEnvDuration("GITHUB_TIMEOUT", 15*time.Second),
		},
		Agent: AgentConfig{
			Identity: getEnv("BUNSEN_AGENT_IDENTITY", ""),
			Name:     getEnv("BUNSEN_AGENT_NAME", "Dr. Bunsen Honeydew"),
		},
		LLM: LLMConfig{
			Provider:  getEnv("LLM_PROVIDER", "openai"),
			APIKey:    getEnv("LLM_API_KEY", ""),
			BaseURL:   getEnv("LLM_BASE_URL", ""),
			Model:     getEnv("LLM_MODEL", ""),
			MaxTokens: getEnvInt("LLM_MAX_TOKENS", 2048),
			Timeout:   getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Lock: LockConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			TTL:      getEnvDuration("ISSUE_LOCK_TTL", 2*time.Minute),
			Wait:     getEnvDuration("ISSUE_LOCK_WAIT", 30*time.Second),
		},
	}

	if err := cfg.validate(serviceType); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// validate reports every missing key at once so a broken deployment can be
// fixed in a single pass.
func (c Config) validate(serviceType ServiceType) error {
	var missing []string

	if c.Agent.Identity == "" {
		missing = append(missing, "BUNSEN_AGENT_IDENTITY")
	}
	if !c.GitHub.AppEnabled() && c.GitHub.Token == "" {
		missing = append(missing, "BUNSEN_GITHUB_APP_ID+BUNSEN_GITHUB_PRIVATE_KEY or GITHUB_TOKEN")
	}
	if serviceType == ServiceTypeServer {
		if c.GitHub.WebhookSecret == "" {
			missing = append(missing, "BUNSEN_GITHUB_WEBHOOK_SECRET")
		}
		if c.LLM.APIKey == "" {
			missing = append(missing, "LLM_API_KEY")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: [%s]", strings.Join(missing, ", "))
	}

	if c.Mention != "word" && c.Mention != "login" {
		return fmt.Errorf("MENTION_GRAMMAR must be \"word\" or \"login\", got %q", c.Mention)
	}

	return nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c GitHubConfig) AppEnabled() bool {
	return c.AppID != 0 && c.PrivateKey != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && (c.Provider == "openai" || c.Provider == "anthropic")
}

func (c LockConfig) Enabled() bool {
	return c.RedisURL != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
