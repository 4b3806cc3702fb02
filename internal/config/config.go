// Package config loads and validates the scout configuration: a YAML
// file under .scout/ layered over defaults, with environment variables
// (optionally from a .env file) taking final precedence for API keys.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all scout configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	LLM          LLMConfig          `yaml:"llm"`
	Weather      WeatherConfig      `yaml:"weather"`
	Search       SearchConfig       `yaml:"search"`
	Scrape       ScrapeConfig       `yaml:"scrape"`
	Conversation ConversationConfig `yaml:"conversation"`
	Store        StoreConfig        `yaml:"store"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// LLMConfig configures the Gemini client and per-role model overrides.
type LLMConfig struct {
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	Temperature     float64 `yaml:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens"`
	MaxRetries      int     `yaml:"max_retries"`
	Timeout         string  `yaml:"timeout"`

	// Role overrides; empty means use Model.
	IntentModel   string `yaml:"intent_model"`
	AnalysisModel string `yaml:"analysis_model"`
	ExtractModel  string `yaml:"extract_model"`
	FeedbackModel string `yaml:"feedback_model"`

	EmbeddingModel string `yaml:"embedding_model"`
}

// WeatherConfig configures the OpenWeatherMap client.
type WeatherConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Units      string `yaml:"units"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// SearchConfig configures the Firecrawl search client.
type SearchConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	MaxResults int    `yaml:"max_results"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// ScrapeConfig configures page fetching and extraction limits.
type ScrapeConfig struct {
	Timeout         string   `yaml:"timeout"`
	MaxRetries      int      `yaml:"max_retries"`
	MaxContentChars int      `yaml:"max_content_chars"`
	MinContentChars int      `yaml:"min_content_chars"`
	MaxSubPages     int      `yaml:"max_sub_pages"`
	SkipDomains     []string `yaml:"skip_domains"`
	BrowserFallback bool     `yaml:"browser_fallback"`
	UserAgent       string   `yaml:"user_agent"`
}

// ConversationConfig bounds the chat loop.
type ConversationConfig struct {
	MaxTurns        int `yaml:"max_turns"`
	MinRequestChars int `yaml:"min_request_chars"`
}

// StoreConfig configures the session history database.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures category file logging. Field names must stay
// in sync with the logging package, which reads this section directly.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "scout",
		Version: "0.3.0",

		LLM: LLMConfig{
			Model:           "gemini-2.5-flash",
			BaseURL:         "https://generativelanguage.googleapis.com/v1beta",
			Temperature:     0.1,
			MaxOutputTokens: 1000,
			MaxRetries:      3,
			Timeout:         "2m",
			EmbeddingModel:  "text-embedding-004",
		},

		Weather: WeatherConfig{
			BaseURL:    "https://api.openweathermap.org/data/2.5",
			Units:      "metric",
			Timeout:    "10s",
			MaxRetries: 2,
		},

		Search: SearchConfig{
			BaseURL:    "https://api.firecrawl.dev/v1",
			MaxResults: 5,
			Timeout:    "30s",
			MaxRetries: 2,
		},

		Scrape: ScrapeConfig{
			Timeout:         "20s",
			MaxRetries:      2,
			MaxContentChars: 8000,
			MinContentChars: 100,
			MaxSubPages:     3,
			SkipDomains: []string{
				"facebook.com", "reddit.com", "instagram.com",
				"twitter.com", "x.com", "youtube.com", "youtu.be",
			},
			BrowserFallback: false,
			UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		},

		Conversation: ConversationConfig{
			MaxTurns:        5,
			MinRequestChars: 5,
		},

		Store: StoreConfig{
			DatabasePath: ".scout/sessions.db",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file location relative to the
// workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".scout", "config.yaml")
}

// LoadEnvFile loads a .env file from the working directory when one
// exists. Missing files are not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// Load loads configuration from a YAML file, merging it over defaults
// and then applying environment overrides. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides. Environment
// always wins over the file so keys never have to live on disk.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" && c.LLM.APIKey == "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("OPENWEATHER_API_KEY"); key != "" {
		c.Weather.APIKey = key
	}
	if key := os.Getenv("FIRECRAWL_API_KEY"); key != "" {
		c.Search.APIKey = key
	}
	if path := os.Getenv("SCOUT_DB"); path != "" {
		c.Store.DatabasePath = path
	}
	if model := os.Getenv("SCOUT_MODEL"); model != "" {
		c.LLM.Model = model
	}
}

// Duration getters parse the string fields with sane fallbacks so a
// hand-edited config never panics the binary.

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// GetWeatherTimeout returns the weather request timeout.
func (c *Config) GetWeatherTimeout() time.Duration {
	d, err := time.ParseDuration(c.Weather.Timeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetSearchTimeout returns the search request timeout.
func (c *Config) GetSearchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Search.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetScrapeTimeout returns the per-page fetch timeout.
func (c *Config) GetScrapeTimeout() time.Duration {
	d, err := time.ParseDuration(c.Scrape.Timeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// ModelForRole returns the model for a pipeline role, falling back to
// the base model when no override is set.
func (c *Config) ModelForRole(role string) string {
	var m string
	switch role {
	case "intent":
		m = c.LLM.IntentModel
	case "analysis":
		m = c.LLM.AnalysisModel
	case "extract":
		m = c.LLM.ExtractModel
	case "feedback":
		m = c.LLM.FeedbackModel
	}
	if m == "" {
		return c.LLM.Model
	}
	return m
}

// ShouldSkipDomain reports whether a URL falls on a skip-listed domain.
func (c *Config) ShouldSkipDomain(url string) bool {
	lower := strings.ToLower(url)
	for _, domain := range c.Scrape.SkipDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY)")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature %0.2f outside [0, 2]", c.LLM.Temperature)
	}
	if c.LLM.MaxOutputTokens <= 0 {
		return fmt.Errorf("llm.max_output_tokens must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	if c.Search.MaxResults <= 0 || c.Search.MaxResults > 10 {
		return fmt.Errorf("search.max_results %d outside (0, 10]", c.Search.MaxResults)
	}
	if c.Scrape.MaxSubPages <= 0 || c.Scrape.MaxSubPages > 5 {
		return fmt.Errorf("scrape.max_sub_pages %d outside (0, 5]", c.Scrape.MaxSubPages)
	}
	if c.Scrape.MaxContentChars <= 0 {
		return fmt.Errorf("scrape.max_content_chars must be positive")
	}
	if c.Conversation.MaxTurns <= 0 || c.Conversation.MaxTurns > 10 {
		return fmt.Errorf("conversation.max_turns %d outside (0, 10]", c.Conversation.MaxTurns)
	}
	return nil
}

// MissingKeys lists the API keys that are not configured, for the
// doctor command. The LLM key is required; the others degrade.
func (c *Config) MissingKeys() []string {
	var missing []string
	if c.LLM.APIKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}
	if c.Weather.APIKey == "" {
		missing = append(missing, "OPENWEATHER_API_KEY")
	}
	if c.Search.APIKey == "" {
		missing = append(missing, "FIRECRAWL_API_KEY")
	}
	return missing
}
