// Dossier assembles CVs for diplomatic professionals.
//
// It exposes an HTTP API that accepts profile requests and drives an
// agentic research loop over web search to fill a structured section
// catalog. Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	dossier serve                      Start the API server
//	dossier init [dir]                 Write an example config file
//	dossier profile <name> <country>   Assemble one CV from the command line
//	dossier sections                   List the section catalog
//	dossier version                    Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/dossier-ai/dossier-agent/examples"
	"github.com/dossier-ai/dossier-agent/internal/agent"
	"github.com/dossier-ai/dossier-agent/internal/api"
	"github.com/dossier-ai/dossier-agent/internal/buildinfo"
	"github.com/dossier-ai/dossier-agent/internal/catalog"
	"github.com/dossier-ai/dossier-agent/internal/config"
	"github.com/dossier-ai/dossier-agent/internal/envelope"
	"github.com/dossier-ai/dossier-agent/internal/events"
	"github.com/dossier-ai/dossier-agent/internal/llm"
	"github.com/dossier-ai/dossier-agent/internal/prompts"
	"github.com/dossier-ai/dossier-agent/internal/search"
	"github.com/dossier-ai/dossier-agent/internal/session"
	"github.com/dossier-ai/dossier-agent/internal/tools"
	"github.com/dossier-ai/dossier-agent/internal/usage"
)

// main constructs the OS-level environment and delegates to [run] so
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which makes it impossible
// to call run concurrently from tests, and the argument surface here
// is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	// A .env file next to the binary can hold API keys referenced as
	// ${VAR} in the config file. Absence is not an error.
	_ = godotenv.Load()

	var configPath string
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "profile":
		if len(cmdArgs) < 2 {
			return fmt.Errorf("usage: dossier profile <name> <country> [designation]")
		}
		return runProfile(ctx, stdout, configPath, cmdArgs)
	case "sections":
		return runSections(stdout)
	case "version":
		return runVersion(stdout)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Dossier - Diplomatic CV Assembly Agent")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: dossier [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                      Start the API server")
	fmt.Fprintln(w, "  init [dir]                 Write an example config file (default: .)")
	fmt.Fprintln(w, "  profile <name> <country> [designation]")
	fmt.Fprintln(w, "                             Assemble one CV and print the result")
	fmt.Fprintln(w, "  sections                   List the section catalog")
	fmt.Fprintln(w, "  version                    Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>   Path to config file (default: auto-discover)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./config.yaml, ~/.config/dossier/config.yaml, /etc/dossier/config.yaml")
	return nil
}

// runInit writes the example config into dir, refusing to overwrite
// an existing one.
func runInit(w io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	path := dir + "/config.yaml"
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}

	if err := os.WriteFile(path, examples.ConfigYAML, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(w, "Wrote %s\n", path)
	fmt.Fprintln(w, "Set OPENAI_API_KEY and TAVILY_API_KEY (environment or .env), then run: dossier serve")
	return nil
}

func runVersion(w io.Writer) error {
	fmt.Fprintln(w, buildinfo.String())
	info := buildinfo.Info()
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// runSections prints the catalog so operators can see valid names for
// the request sections field.
func runSections(w io.Writer) error {
	defaults := make(map[catalog.Name]bool)
	for _, n := range catalog.DefaultSet() {
		defaults[n] = true
	}

	for _, n := range catalog.All() {
		tpl, ok := catalog.Template(n)
		if !ok {
			continue
		}
		marker := " "
		if defaults[n] {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %-18s %s (%d fields)\n", marker, n, tpl.Label, len(tpl.Fields))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "* included in the default section set")
	return nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}

// buildLoop wires the model client, search tools, and store into an
// agent loop. The caller owns closing the store.
func buildLoop(cfg *config.Config, logger *slog.Logger, store session.Store, bus *events.Bus, usageStore *usage.Store) (*agent.Loop, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is not configured")
	}

	llmClient := llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Temperature)

	registry := tools.NewRegistry()
	if cfg.Tavily.Configured() {
		tavily := search.NewTavily(cfg.Tavily.APIKey, cfg.Tavily.MaxResults, cfg.Tavily.Topic)
		search.RegisterTools(registry, tavily, tavily)
		logger.Info("search tools registered", "provider", tavily.Name())
	} else {
		// Without Tavily the agent can still extract pages it already
		// knows about, but research quality drops sharply.
		search.RegisterTools(registry, nil, search.NewPageExtractor())
		logger.Warn("tavily api key not set, web search unavailable")
	}

	loop := agent.New(logger, llmClient, registry, store, bus, usageStore, agent.Options{
		Throttle: cfg.Agent.Throttle(),
		MaxTurns: cfg.Agent.MaxTurns,
	})
	return loop, nil
}

// runProfile assembles a single CV from the command line and prints
// the envelope JSON to stdout. A transaction id is generated since CLI
// callers have no external transaction to correlate with.
func runProfile(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(os.Stderr, slog.LevelWarn)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	profile := prompts.Profile{
		Name:    args[0],
		Country: args[1],
	}
	if len(args) > 2 {
		profile.Designation = strings.Join(args[2:], " ")
	}

	// One-shot runs have nothing to persist.
	store := session.NewMemoryStore()
	defer store.Close()

	loop, err := buildLoop(cfg, logger, store, nil, nil)
	if err != nil {
		return err
	}

	humanPrompt, unknown := prompts.BuildHumanPrompt(profile, catalog.DefaultSet())
	if len(unknown) > 0 {
		logger.Warn("skipping unknown sections", "sections", unknown)
	}

	transactionID := uuid.New().String()
	tracker := usage.NewTracker()

	result, err := loop.Run(ctx, transactionID, humanPrompt, tracker)
	if err != nil {
		return fmt.Errorf("profile assembly: %w", err)
	}

	env, err := envelope.Package(result.Answer, transactionID)
	if err != nil {
		return fmt.Errorf("package result: %w", err)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return err
	}

	stats := tracker.Snapshot()
	fmt.Fprintf(os.Stderr, "turns=%d tokens_in=%d tokens_out=%d\n",
		result.Turns, stats.TotalInputTokens, stats.TotalOutputTokens)
	return nil
}

// runServe is the primary operating mode: loads config, opens the
// thread and usage databases, wires the agent loop, starts the API
// server, and blocks until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Dossier", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure now that the desired level is known. The initial
	// Info-level logger only covers the startup banner.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.LLM.Model,
	)

	// With a data directory, thread transcripts persist across
	// restarts so a retried transaction continues its thread instead
	// of starting over. Without one, everything stays in memory.
	var store session.Store = session.NewMemoryStore()
	var usageStore *usage.Store
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
		}

		dbPath := cfg.DataDir + "/threads.db"
		sqlStore, err := session.NewSQLiteStore(dbPath)
		if err != nil {
			return fmt.Errorf("open thread database: %w", err)
		}
		store = sqlStore
		logger.Info("thread database opened", "path", dbPath)

		usageStore, err = usage.NewStore(cfg.DataDir + "/usage.db")
		if err != nil {
			return fmt.Errorf("open usage database: %w", err)
		}
	} else {
		logger.Warn("data_dir not set, threads will not survive restarts")
	}
	defer store.Close()
	defer func() {
		if usageStore != nil {
			usageStore.Close()
		}
	}()

	bus := events.New()

	loop, err := buildLoop(cfg, logger, store, bus, usageStore)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg.Listen.Address, cfg.Listen.Port, loop, store, logger)
	server.SetUsageStore(usageStore)
	server.SetEventBus(bus)

	// SIGINT/SIGTERM cancels the context and triggers graceful
	// shutdown; in-flight profile requests get a drain window.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(ctx)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received, draining")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}

	logger.Info("dossier stopped")
	return nil
}
