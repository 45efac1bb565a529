package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	// DefaultModel is the model requested when SHEETWISE_MODEL is not set.
	DefaultModel = "qwen-max"

	// DefaultMaxIterations caps the number of model round-trips per request.
	DefaultMaxIterations = 25
)

// Config carries everything the agent needs at construction time. It is
// built once at process start and passed explicitly, never read from
// globals, so the loop stays testable with a substitute client.
type Config struct {
	APIKey        string
	BaseURL       string
	Model         string
	MaxIterations int
}

// Load reads configuration from a .env file (when present) and the process
// environment.
func Load() (Config, error) {
	// Best-effort: a missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	cfg := Config{
		APIKey:        os.Getenv("OPENAI_API_KEY"),
		BaseURL:       os.Getenv("OPENAI_API_BASE"),
		Model:         DefaultModel,
		MaxIterations: DefaultMaxIterations,
	}
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	if v := os.Getenv("SHEETWISE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("SHEETWISE_MAX_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("invalid SHEETWISE_MAX_ITERATIONS %q", v)
		}
		cfg.MaxIterations = n
	}
	return cfg, nil
}
