// Package config provides configuration management for gpt-cli.
package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/cchalm/gpt-cli/internal/completion"
)

// ErrMissingCredential is returned by Validate when no API key is configured for the selected provider
var ErrMissingCredential = errors.New("missing credential")

// MissingCredentialError names the environment variable that has to be set. It matches ErrMissingCredential.
type MissingCredentialError struct {
	Env string
}

func (e *MissingCredentialError) Error() string {
	return e.Env + " not set"
}

func (e *MissingCredentialError) Is(target error) bool {
	return target == ErrMissingCredential
}

// Config holds the configuration for the client
type Config struct {
	Provider string `env:"GPTCLI_PROVIDER" envDefault:"openai"`
	Model    string `env:"GPTCLI_MODEL"` // Empty means the provider's default model

	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL   string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	MaxTokens       int64  `env:"GPTCLI_MAX_TOKENS" envDefault:"1024"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Storage
	HistoryFile   string `env:"GPTCLI_HISTORY_FILE" envDefault:"history.json"`
	HistoryFormat string `env:"GPTCLI_HISTORY_FORMAT"` // json, yaml or lines; empty means infer from the file extension
	ItemsFile     string `env:"GPTCLI_ITEMS_FILE" envDefault:"data.json"`

	LogLevel string `env:"GPTCLI_LOG_LEVEL" envDefault:"warn"`

	// Telemetry
	TelemetryEnabled  bool   `env:"GPTCLI_TELEMETRY"`
	TelemetryEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads configuration from the environment after loading an optional .env file from the working directory.
// Variables already set in the environment take precedence over the .env file.
func Load(logger logrus.FieldLogger) (Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}
	return Parse()
}

// Parse reads configuration from the environment only
func Parse() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// CredentialEnv returns the name of the environment variable holding the selected provider's API key
func (c Config) CredentialEnv() string {
	if strings.EqualFold(c.Provider, completion.ProviderAnthropic) {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

// Credential returns the API key for the selected provider
func (c Config) Credential() string {
	if strings.EqualFold(c.Provider, completion.ProviderAnthropic) {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// Validate checks if the required configuration is present
func (c Config) Validate() error {
	switch strings.ToLower(c.Provider) {
	case completion.ProviderOpenAI, completion.ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.Credential() == "" {
		return &MissingCredentialError{Env: c.CredentialEnv()}
	}
	return nil
}

// CompletionOptions builds the options for completion.New
func (c Config) CompletionOptions(logger logrus.FieldLogger) completion.Options {
	opts := completion.Options{
		APIKey:    c.Credential(),
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Logger:    logger,
	}
	if !strings.EqualFold(c.Provider, completion.ProviderAnthropic) {
		opts.BaseURL = c.OpenAIBaseURL
	}
	if c.OpenRouterReferrer != "" || c.OpenRouterTitle != "" {
		opts.Headers = http.Header{}
		if c.OpenRouterReferrer != "" {
			opts.Headers.Set("HTTP-Referer", c.OpenRouterReferrer)
		}
		if c.OpenRouterTitle != "" {
			opts.Headers.Set("X-Title", c.OpenRouterTitle)
		}
	}
	return opts
}
