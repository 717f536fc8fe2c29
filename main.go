package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"ragchat/internal/config"
	"ragchat/internal/history"
	"ragchat/internal/rag"
	"ragchat/internal/session"
	"ragchat/internal/terminal"
	"ragchat/internal/ui"
)

// flagValues holds command-line settings; only flags the user actually set
// override the config file and environment.
type flagValues struct {
	configPath    string
	serverURL     string
	healthPath    string
	askPath       string
	healthTimeout time.Duration
	askTimeout    time.Duration
	pollInterval  time.Duration
	historyPath   string
	recentLimit   int
	mode          string
	logPath       string
	debug         bool
	verbose       bool
	watchHistory  bool
}

func main() {
	flags, set := parseFlags()

	cfg, err := loadConfig(flags, set)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	useTUI := cfg.Mode == config.ModeTUI || (cfg.Mode == config.ModeAuto && terminal.IsInteractive())

	logger, closeLog, err := setupLogger(cfg, useTUI)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	client := rag.NewClient(cfg.ServerURL,
		rag.WithHealthPath(cfg.HealthPath),
		rag.WithAskPath(cfg.AskPath),
		rag.WithDebug(cfg.Debug),
		rag.WithLogger(logger),
	)
	store := history.NewStore(history.NewFileStorage(cfg.HistoryPath), logger)

	ctrl := session.New(session.Options{
		Client:        client,
		History:       store,
		HealthTimeout: cfg.HealthTimeout,
		AskTimeout:    cfg.AskTimeout,
		PollInterval:  cfg.PollInterval,
		RetryLimiter:  rate.NewLimiter(rate.Limit(cfg.RetryPerSecond), cfg.RetryBurst),
		Logger:        logger,
	})

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl.Start(ctx)
	defer ctrl.Close()

	if cfg.WatchHistory {
		if err := history.Watch(ctx, cfg.HistoryPath, store, ctrl.HistoryReloaded, logger); err != nil {
			logger.Warn("history watcher disabled", "error", err)
		}
	}

	logger.Info("ragchat starting", "server", cfg.ServerURL, "history", cfg.HistoryPath, "tui", useTUI)

	if useTUI {
		width, _ := terminal.Size()
		err = ui.Run(ctx, ctrl, ui.Options{
			RecentLimit: cfg.RecentLimit,
			Markdown:    ui.NewMarkdownRenderer("dark", width),
		})
	} else {
		err = runLine(ctx, ctrl, cfg)
	}
	if err != nil {
		logger.Error("front-end stopped", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		ctrl.Close()
		os.Exit(1)
	}
}

// parseFlags parses command-line flags and reports which ones were set
func parseFlags() (*flagValues, map[string]bool) {
	defaults := config.NewConfig()
	f := &flagValues{}

	flag.StringVar(&f.configPath, "config", "", "TOML or YAML config file (default ~/.ragchat/config.toml if present)")
	flag.StringVar(&f.serverURL, "server", defaults.ServerURL, "Question-answering service URL")
	flag.StringVar(&f.healthPath, "health-path", defaults.HealthPath, "Health endpoint path")
	flag.StringVar(&f.askPath, "ask-path", defaults.AskPath, "Ask endpoint path")
	flag.DurationVar(&f.healthTimeout, "health-timeout", defaults.HealthTimeout, "Health check timeout")
	flag.DurationVar(&f.askTimeout, "ask-timeout", defaults.AskTimeout, "Ask request timeout")
	flag.DurationVar(&f.pollInterval, "poll-interval", defaults.PollInterval, "Background health check interval (0 disables)")
	flag.StringVar(&f.historyPath, "history", defaults.HistoryPath, "History log file")
	flag.IntVar(&f.recentLimit, "recent", defaults.RecentLimit, "Entries shown in the history sidebar and /history")
	flag.StringVar(&f.mode, "mode", defaults.Mode, "Front-end: auto, tui or line")
	flag.StringVar(&f.logPath, "log", defaults.LogPath, "Log file used in TUI mode")
	flag.BoolVar(&f.debug, "debug", defaults.Debug, "Ask the service for debug output")
	flag.BoolVar(&f.verbose, "verbose", defaults.Verbose, "Enable verbose logging")
	flag.BoolVar(&f.watchHistory, "watch-history", defaults.WatchHistory, "Reload history written by other clients")

	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { set[fl.Name] = true })
	return f, set
}

// loadConfig applies defaults, then the config file, then the environment, then flags
func loadConfig(f *flagValues, set map[string]bool) (*config.Config, error) {
	cfg := config.NewConfig()

	path := f.configPath
	if path == "" {
		candidate := filepath.Join(filepath.Dir(cfg.HistoryPath), "config.toml")
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}

	overrides := map[string]func(){
		"server":         func() { cfg.ServerURL = f.serverURL },
		"health-path":    func() { cfg.HealthPath = f.healthPath },
		"ask-path":       func() { cfg.AskPath = f.askPath },
		"health-timeout": func() { cfg.HealthTimeout = f.healthTimeout },
		"ask-timeout":    func() { cfg.AskTimeout = f.askTimeout },
		"poll-interval":  func() { cfg.PollInterval = f.pollInterval },
		"history":        func() { cfg.HistoryPath = f.historyPath },
		"recent":         func() { cfg.RecentLimit = f.recentLimit },
		"mode":           func() { cfg.Mode = f.mode },
		"log":            func() { cfg.LogPath = f.logPath },
		"debug":          func() { cfg.Debug = f.debug },
		"verbose":        func() { cfg.Verbose = f.verbose },
		"watch-history":  func() { cfg.WatchHistory = f.watchHistory },
	}
	for name, apply := range overrides {
		if set[name] {
			apply()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger configures slog. The TUI owns the screen, so its log goes to a
// file; line mode logs warnings to stderr unless verbose.
func setupLogger(cfg *config.Config, tui bool) (*slog.Logger, func(), error) {
	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	if !tui {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
		return logger, func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := tea.LogToFile(cfg.LogPath, "ragchat")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	if !cfg.Verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, func() { _ = f.Close() }, nil
}
