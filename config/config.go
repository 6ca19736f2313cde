// Package config loads the runtime options the server recognizes:
// storage backend selection, event buffer sizing, node timeouts, and
// logging. Options come from the process environment, with .env loaded
// first via github.com/joho/godotenv when present.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Backend names a pluggable storage implementation. There is no silent
// migration between backends — switching one changes where data lives,
// not what of it is visible.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendSQLite Backend = "sqlite"
	BackendMySQL  Backend = "mysql"
)

// defaultRedactKeys is the closed set of field names scrubbed from any
// logged payload unless LogRedactKeys overrides it.
var defaultRedactKeys = []string{"authorization", "cookie", "password", "token", "secret", "api_key"}

// Config is every recognized runtime option, plus the provider credentials
// and listen address needed to actually run the server.
type Config struct {
	CheckpointBackend    Backend       `validate:"oneof=memory sqlite mysql"`
	ArtifactBackend      Backend       `validate:"oneof=memory sqlite mysql"`
	EventBufferHighWater int           `validate:"min=1"`
	NodeDefaultTimeout   time.Duration `validate:"min=1ms"`

	LogFormat      string `validate:"oneof=json text"`
	LogLevel       string `validate:"oneof=debug info warn error"`
	LogRedactKeys  []string
	LogLLMPayloads bool

	ListenAddr string

	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIModel     string
	GoogleAPIKey    string
	GoogleModel     string

	SQLiteDSN string
	MySQLDSN  string
}

// Load reads .env (if present, ignored if not — never an error) then the
// process environment, applying defaults for anything unset. The assembled
// Config is checked against its struct constraints before being returned,
// so a misconfigured backend or log format fails at startup, not at first
// use.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	cfg := Config{
		CheckpointBackend:    Backend(getEnv("CHECKPOINT_BACKEND", string(BackendMemory))),
		ArtifactBackend:      Backend(getEnv("ARTIFACT_BACKEND", string(BackendMemory))),
		EventBufferHighWater: getEnvInt("EVENT_BUFFER_HIGH_WATER", 256),
		NodeDefaultTimeout:   getEnvDuration("NODE_DEFAULT_TIMEOUT", 30*time.Second),

		LogFormat:      getEnv("LOG_FORMAT", "json"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogRedactKeys:  getEnvRedactKeys("LOG_REDACT_KEYS"),
		LogLLMPayloads: getEnvBool("LOG_LLM_PAYLOADS", false),

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  os.Getenv("ANTHROPIC_MODEL"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		GoogleModel:     os.Getenv("GOOGLE_MODEL"),

		SQLiteDSN: getEnv("SQLITE_DSN", "agentflow.sqlite"),
		MySQLDSN:  os.Getenv("MYSQL_DSN"),
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvRedactKeys(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), defaultRedactKeys...)
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}
