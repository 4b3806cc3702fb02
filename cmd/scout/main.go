package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trailscout/cmd/scout/chat"
	"trailscout/internal/articulation"
	"trailscout/internal/browser"
	"trailscout/internal/config"
	"trailscout/internal/conversation"
	"trailscout/internal/extraction"
	"trailscout/internal/logging"
	"trailscout/internal/perception"
	"trailscout/internal/pipeline"
	"trailscout/internal/store"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const version = "0.3.0"

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string
	timeout    time.Duration

	// Ask flags
	askProceed bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "scout - conversational activity recommendations",
	Long: `scout finds outdoor and indoor activities through conversation.

It combines live web search, weather conditions, and page extraction to
recommend concrete routes, trails, and venues you can act on, then
refines them from your feedback.

Run without arguments to start the interactive chat interface.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip logger init for interactive mode (it has its own UI)
		if cmd.Use == "scout" && cmd.CalledAs() == "scout" {
			return nil
		}

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

// askCmd answers a single request without the chat interface
var askCmd = &cobra.Command{
	Use:   "ask [request]",
	Short: "Get recommendations for a single request",
	Long: `Runs one recommendation turn and prints the result.

Example:
  scout ask "running routes in Vienna city center, about 30 minutes"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

// demoCmd runs a set of canned requests against the live pipeline
var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run sample requests through the pipeline",
	RunE:  runDemo,
}

// doctorCmd checks configuration and connectivity
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, API keys, and service reachability",
	RunE:  runDoctor,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.scout/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")

	askCmd.Flags().BoolVar(&askProceed, "proceed", false, "Skip clarifying questions and search immediately")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(doctorCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveWorkspace() string {
	if workspace != "" {
		return workspace
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func resolveConfigPath(ws string) string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultPath(ws)
}

// loadConfig loads .env and the config file for the resolved workspace.
func loadConfig(ws string) (*config.Config, error) {
	config.LoadEnvFile()
	cfg, err := config.Load(resolveConfigPath(ws))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogging starts category file logging. Chat still works without
// it, so failures only warn.
func initLogging(ws string) {
	if err := logging.Initialize(ws); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	}
}

// buildPipeline assembles the production pipeline. Store, ranker, and
// browser failures degrade with a log line instead of aborting; only a
// missing LLM key is fatal.
func buildPipeline(ctx context.Context, cfg *config.Config, ws string) (*pipeline.Pipeline, *store.SessionStore, error) {
	if cfg.LLM.APIKey == "" {
		return nil, nil, fmt.Errorf("no LLM API key configured, set GEMINI_API_KEY (or GOOGLE_API_KEY)")
	}

	llm := perception.NewGeminiClientForRole(cfg, "")

	var ranker extraction.Ranker
	if er, err := extraction.NewEmbeddingRanker(ctx, cfg.LLM.APIKey, cfg.LLM.EmbeddingModel); err != nil {
		logging.Get(logging.CategoryExtract).Warn("Embedding ranker unavailable, using relevance order: %v", err)
	} else {
		ranker = er
	}

	pipe := pipeline.New(cfg, llm, ranker)

	st, err := store.NewSessionStore(resolveDatabasePath(cfg, ws))
	if err != nil {
		logging.Get(logging.CategoryStore).Warn("Session store unavailable, transcripts disabled: %v", err)
		st = nil
	} else {
		pipe.SetStore(st)
	}

	if cfg.Scrape.BrowserFallback {
		pipe.SetRenderer(browser.NewRenderer(browser.DefaultConfig()))
	}

	return pipe, st, nil
}

func resolveDatabasePath(cfg *config.Config, ws string) string {
	path := cfg.Store.DatabasePath
	if path == "" {
		path = filepath.Join(".scout", "sessions.db")
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(ws, path)
	}
	return path
}

// runInteractiveChat starts the chat interface with config hot reload.
func runInteractiveChat() error {
	ws := resolveWorkspace()
	cfg, err := loadConfig(ws)
	if err != nil {
		return err
	}

	initLogging(ws)
	defer logging.CloseAll()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipe, st, err := buildPipeline(ctx, cfg, ws)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	// Config edits apply to the next turn without a restart.
	if watcher, werr := config.NewWatcher(resolveConfigPath(ws)); werr == nil {
		watcher.OnReload(pipe.ReloadConfig)
		if werr = watcher.Start(ctx); werr == nil {
			defer watcher.Stop()
		}
	}

	return chat.Run(chat.Options{
		Config:    cfg,
		Pipeline:  pipe,
		Store:     st,
		Workspace: ws,
		Version:   "v" + version,
	})
}

// runAsk handles the one-shot path
func runAsk(cmd *cobra.Command, args []string) error {
	request := strings.Join(args, " ")

	ws := resolveWorkspace()
	cfg, err := loadConfig(ws)
	if err != nil {
		return err
	}

	initLogging(ws)
	defer logging.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pipe, st, err := buildPipeline(ctx, cfg, ws)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	state := conversation.NewState(request, cfg.Conversation.MaxTurns)
	start := time.Now()
	resp, err := pipe.Recommend(ctx, request, state, askProceed)
	if err != nil {
		return err
	}
	logger.Debug("turn complete",
		zap.Int("recommendations", len(resp.Recommendations)),
		zap.Bool("needs_clarification", resp.NeedsClarification),
		zap.Duration("elapsed", time.Since(start)))

	fmt.Println(renderMarkdown(articulation.RenderResponse(*resp)))
	return nil
}

// runDemo exercises the pipeline with sample requests
func runDemo(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	cfg, err := loadConfig(ws)
	if err != nil {
		return err
	}

	initLogging(ws)
	defer logging.CloseAll()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pipe, st, err := buildPipeline(ctx, cfg, ws)
	if err != nil {
		return err
	}
	if st != nil {
		defer st.Close()
	}

	requests := []string{
		"I want to go hiking near Prague this weekend",
		"Looking for running routes in Vienna city center, about 30 minutes",
		"Any good cycling paths around San Francisco for a beginner?",
		"Indoor rock climbing near downtown Boston",
	}

	for i, request := range requests {
		fmt.Printf("== Request %d: %s\n\n", i+1, request)

		state := conversation.NewState(request, cfg.Conversation.MaxTurns)
		start := time.Now()
		resp, err := pipe.Recommend(ctx, request, state, true)
		if err != nil {
			logger.Warn("demo request failed", zap.String("request", request), zap.Error(err))
			fmt.Printf("   failed: %v\n\n", err)
			continue
		}
		logger.Debug("demo request served",
			zap.String("request", request),
			zap.Duration("elapsed", time.Since(start)))

		fmt.Println(resp.ConversationMessage)
		for j, rec := range resp.Recommendations {
			fmt.Printf("  %d. %s\n", j+1, rec.ActivityName)
			if rec.Location != "" {
				fmt.Printf("     %s\n", rec.Location)
			}
			fmt.Printf("     %s, %s\n", rec.DurationEstimate, rec.DifficultyLevel)
		}
		fmt.Println()
	}
	return nil
}

// runDoctor checks the local setup the way a fresh install would hit it
func runDoctor(cmd *cobra.Command, args []string) error {
	ws := resolveWorkspace()
	path := resolveConfigPath(ws)

	config.LoadEnvFile()

	fmt.Printf("scout v%s\n\n", version)

	if _, err := os.Stat(path); err == nil {
		report(true, "config file %s", path)
	} else {
		report(true, "config file %s (missing, using defaults)", path)
	}

	cfg, err := config.Load(path)
	if err != nil {
		report(false, "config load: %v", err)
		return nil
	}

	if err := cfg.Validate(); err != nil {
		report(false, "config validation: %v", err)
	} else {
		report(true, "config validation")
	}

	missing := cfg.MissingKeys()
	keyStatus := map[string]string{
		"GEMINI_API_KEY":      "required for intent, extraction, and feedback",
		"OPENWEATHER_API_KEY": "optional, weather advice disabled without it",
		"FIRECRAWL_API_KEY":   "optional, live web search disabled without it",
	}
	for _, key := range []string{"GEMINI_API_KEY", "OPENWEATHER_API_KEY", "FIRECRAWL_API_KEY"} {
		if containsString(missing, key) {
			report(false, "%s not set (%s)", key, keyStatus[key])
		} else {
			report(true, "%s", key)
		}
	}

	probe(cfg.LLM.BaseURL, "LLM API")
	probe(cfg.Weather.BaseURL, "weather API")
	probe(cfg.Search.BaseURL, "search API")

	dbPath := resolveDatabasePath(cfg, ws)
	if st, err := store.NewSessionStore(dbPath); err != nil {
		report(false, "session store %s: %v", dbPath, err)
	} else {
		st.Close()
		report(true, "session store %s", dbPath)
	}

	if watcher, err := config.NewWatcher(path); err != nil {
		report(false, "config hot reload: %v", err)
	} else {
		ctx, cancel := context.WithCancel(context.Background())
		if err := watcher.Start(ctx); err != nil {
			report(false, "config hot reload: %v", err)
		} else {
			report(watcher.IsWatching(), "config hot reload")
			watcher.Stop()
		}
		cancel()
	}

	if cfg.Scrape.BrowserFallback {
		report(true, "browser fallback enabled (Chrome downloads on first use)")
	} else {
		report(true, "browser fallback disabled")
	}

	return nil
}

func report(ok bool, format string, args ...interface{}) {
	mark := "✗"
	if ok {
		mark = "✓"
	}
	fmt.Printf("  %s %s\n", mark, fmt.Sprintf(format, args...))
}

// probe checks that a service base URL answers at all. Auth errors
// still prove reachability, so any HTTP response passes.
func probe(baseURL, name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		report(false, "%s %s: %v", name, baseURL, err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		report(false, "%s %s: %v", name, baseURL, err)
		return
	}
	resp.Body.Close()
	report(true, "%s %s", name, baseURL)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func renderMarkdown(md string) string {
	if fi, err := os.Stdout.Stat(); err != nil || fi.Mode()&os.ModeCharDevice == 0 {
		return md
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
