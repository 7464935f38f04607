// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application-wide configuration populated from environment variables.
type Config struct {
	Addr string

	Provider          string // elevenlabs or openai
	ElevenLabsAPIKey  string
	ElevenLabsBaseURL string
	ElevenLabsModel   string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	ProviderTimeout   time.Duration

	SpeechCommand string

	DocumentsDir  string
	DataDir       string // empty keeps state in memory
	WatchDebounce time.Duration

	SaveInterval  time.Duration
	FocusDuration time.Duration
}

// Load reads a .env file if present, then environment variables, and returns
// Config with defaults applied.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("[INFO] Loaded environment variables from .env file")
	}

	cfg := &Config{
		Addr:              getEnv("READALOUD_ADDR", ":8080"),
		Provider:          strings.ToLower(getEnv("NARRATION_PROVIDER", "elevenlabs")),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsBaseURL: getEnv("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),
		ElevenLabsModel:   getEnv("ELEVENLABS_MODEL", "eleven_multilingual_v2"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:       getEnv("OPENAI_TTS_MODEL", "tts-1"),
		SpeechCommand:     getEnv("SPEECH_COMMAND", "espeak-ng"),
		DocumentsDir:      getEnv("DOCUMENTS_DIR", "./documents"),
		DataDir:           getEnv("DATA_DIR", "./data"),
	}

	var err error
	if cfg.ProviderTimeout, err = getEnvDuration("PROVIDER_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.SaveInterval, err = getEnvDuration("SESSION_SAVE_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.FocusDuration, err = getEnvDuration("FOCUS_DURATION", 25*time.Minute); err != nil {
		return nil, err
	}
	if cfg.WatchDebounce, err = getEnvDuration("WATCH_DEBOUNCE", 300*time.Millisecond); err != nil {
		return nil, err
	}
	if getEnvBool("IN_MEMORY", false) {
		cfg.DataDir = ""
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	switch c.Provider {
	case "elevenlabs", "openai":
	default:
		return fmt.Errorf("NARRATION_PROVIDER must be elevenlabs or openai, got %q", c.Provider)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	if c.SaveInterval <= 0 {
		return fmt.Errorf("SESSION_SAVE_INTERVAL must be positive")
	}
	return nil
}

// APIKey returns the key of the selected provider.
func (c *Config) APIKey() string {
	if c.Provider == "openai" {
		return c.OpenAIAPIKey
	}
	return c.ElevenLabsAPIKey
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(getEnv(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
