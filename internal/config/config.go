// Package config содержит логику чтения конфигурации агента Walle.
package config

import (
	"errors"
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации агента Walle.
type Config struct {
	RunAddress      string `env:"RUN_ADDRESS"`
	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
	TavilyAPIKey    string `env:"TAVILY_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL"`
	DatabaseURI     string `env:"DATABASE_URI"`
	SpreadsheetID   string `env:"SPREADSHEET_ID"`
	Worksheet       string `env:"WORKSHEET_NAME"`
	CredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE"`
	AuthSecret      string `env:"AUTH_SECRET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	fromEnv := *cfg

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.GoogleAPIKey, "k", "", "Google AI API key")
	flag.StringVar(&cfg.TavilyAPIKey, "t", "", "Tavily API key")
	flag.StringVar(&cfg.GeminiModel, "m", "gemini-flash-latest", "Gemini model name")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "PostgreSQL URI; when set, cards are stored in PostgreSQL instead of Google Sheets")
	flag.StringVar(&cfg.SpreadsheetID, "s", "", "Google Sheets spreadsheet id")
	flag.StringVar(&cfg.Worksheet, "w", "Cards", "worksheet title inside the spreadsheet")
	flag.StringVar(&cfg.CredentialsFile, "c", "credentials.json", "Google service account credentials file")
	flag.StringVar(&cfg.AuthSecret, "secret", "", "secret key for signing auth cookies")

	flag.Parse()

	if fromEnv.RunAddress != "" {
		cfg.RunAddress = fromEnv.RunAddress
	}
	if fromEnv.GoogleAPIKey != "" {
		cfg.GoogleAPIKey = fromEnv.GoogleAPIKey
	}
	if fromEnv.TavilyAPIKey != "" {
		cfg.TavilyAPIKey = fromEnv.TavilyAPIKey
	}
	if fromEnv.GeminiModel != "" {
		cfg.GeminiModel = fromEnv.GeminiModel
	}
	if fromEnv.DatabaseURI != "" {
		cfg.DatabaseURI = fromEnv.DatabaseURI
	}
	if fromEnv.SpreadsheetID != "" {
		cfg.SpreadsheetID = fromEnv.SpreadsheetID
	}
	if fromEnv.Worksheet != "" {
		cfg.Worksheet = fromEnv.Worksheet
	}
	if fromEnv.CredentialsFile != "" {
		cfg.CredentialsFile = fromEnv.CredentialsFile
	}
	if fromEnv.AuthSecret != "" {
		cfg.AuthSecret = fromEnv.AuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate проверяет обязательные параметры.
func (c *Config) validate() error {
	if c.GoogleAPIKey == "" {
		return errors.New("google api key is required (GOOGLE_API_KEY or -k)")
	}
	if c.DatabaseURI == "" && c.SpreadsheetID == "" {
		return errors.New("either DATABASE_URI (-d) or SPREADSHEET_ID (-s) must be set")
	}
	return nil
}
