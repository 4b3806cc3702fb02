package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearAPIKeyEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENWEATHER_API_KEY",
		"FIRECRAWL_API_KEY", "SCOUT_DB", "SCOUT_MODEL",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Name != "scout" {
		t.Errorf("Name = %q, want scout", cfg.Name)
	}
	if cfg.LLM.Model != "gemini-2.5-flash" {
		t.Errorf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Conversation.MaxTurns != 5 {
		t.Errorf("Conversation.MaxTurns = %d, want 5", cfg.Conversation.MaxTurns)
	}
	if cfg.Search.MaxResults != 5 {
		t.Errorf("Search.MaxResults = %d, want 5", cfg.Search.MaxResults)
	}
	if cfg.Weather.Units != "metric" {
		t.Errorf("Weather.Units = %q, want metric", cfg.Weather.Units)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearAPIKeyEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "test-key"
	cfg.Conversation.MaxTurns = 7
	cfg.Scrape.BrowserFallback = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.LLM.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want test-key", loaded.LLM.APIKey)
	}
	if loaded.Conversation.MaxTurns != 7 {
		t.Errorf("MaxTurns = %d, want 7", loaded.Conversation.MaxTurns)
	}
	if !loaded.Scrape.BrowserFallback {
		t.Error("BrowserFallback lost on round trip")
	}
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	clearAPIKeyEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	if err != nil {
		t.Fatalf("Load failed for missing file: %v", err)
	}
	if cfg.Name != "scout" || cfg.Conversation.MaxTurns != 5 {
		t.Error("missing file did not yield defaults")
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	clearAPIKeyEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := "conversation:\n  max_turns: 3\n"
	if err := os.WriteFile(path, []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Conversation.MaxTurns != 3 {
		t.Errorf("MaxTurns = %d, want 3 from file", cfg.Conversation.MaxTurns)
	}
	if cfg.Search.MaxResults != 5 {
		t.Errorf("MaxResults = %d, want default 5", cfg.Search.MaxResults)
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed config")
	}
}

func TestTimeoutGetters(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.GetWeatherTimeout(); got != 10*time.Second {
		t.Errorf("weather timeout = %v", got)
	}

	cfg.LLM.Timeout = "90s"
	if got := cfg.GetLLMTimeout(); got != 90*time.Second {
		t.Errorf("llm timeout = %v", got)
	}

	cfg.Search.Timeout = "not a duration"
	if got := cfg.GetSearchTimeout(); got != 30*time.Second {
		t.Errorf("search timeout fallback = %v", got)
	}

	cfg.Scrape.Timeout = ""
	if got := cfg.GetScrapeTimeout(); got != 20*time.Second {
		t.Errorf("scrape timeout fallback = %v", got)
	}
}

func TestModelForRole(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Model = "base-model"
	cfg.LLM.ExtractModel = "big-model"

	cases := []struct {
		role string
		want string
	}{
		{"extract", "big-model"},
		{"intent", "base-model"},
		{"feedback", "base-model"},
		{"", "base-model"},
		{"unknown-role", "base-model"},
	}
	for _, tc := range cases {
		if got := cfg.ModelForRole(tc.role); got != tc.want {
			t.Errorf("ModelForRole(%q) = %q, want %q", tc.role, got, tc.want)
		}
	}
}

func TestShouldSkipDomain(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		url  string
		want bool
	}{
		{"https://www.reddit.com/r/hiking/comments/abc", true},
		{"https://FACEBOOK.com/events/123", true},
		{"https://www.alltrails.com/trail/austria", false},
		{"https://youtu.be/xyz", true},
		{"", false},
	}
	for _, tc := range cases {
		if got := cfg.ShouldSkipDomain(tc.url); got != tc.want {
			t.Errorf("ShouldSkipDomain(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.APIKey = "key"

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config with key invalid: %v", err)
	}

	cfg.Conversation.MaxTurns = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero max_turns passed validation")
	}
	cfg.Conversation.MaxTurns = 5

	cfg.LLM.Temperature = 3.5
	if err := cfg.Validate(); err == nil {
		t.Error("out-of-range temperature passed validation")
	}
	cfg.LLM.Temperature = 0.1

	cfg.LLM.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Error("missing API key passed validation")
	}
}

func TestMissingKeys(t *testing.T) {
	cfg := DefaultConfig()
	got := cfg.MissingKeys()
	if len(got) != 3 {
		t.Fatalf("missing keys = %v, want all three", got)
	}

	cfg.LLM.APIKey = "a"
	cfg.Weather.APIKey = "b"
	cfg.Search.APIKey = "c"
	if got := cfg.MissingKeys(); len(got) != 0 {
		t.Errorf("missing keys = %v, want none", got)
	}
}
