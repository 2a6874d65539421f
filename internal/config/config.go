package config

import (
	"fmt"
	"os"
	"strings"
)

const DefaultBaseURL = "https://api.thucchien.ai"

// gateway credentials and endpoint
type Config struct {
	APIKey  string
	BaseURL string
}

// reads gateway settings from the environment.
// The API key comes from GEMINI_API_KEY or AI_API_KEY; a missing key is a
// hard error so callers fail before any network activity.
func FromEnv() (Config, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("AI_API_KEY")
	}
	if apiKey == "" {
		return Config{}, fmt.Errorf(
			"API key is required: set GEMINI_API_KEY or AI_API_KEY",
		)
	}

	baseURL := os.Getenv("AI_API_BASE")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	return Config{APIKey: apiKey, BaseURL: baseURL}, nil
}
