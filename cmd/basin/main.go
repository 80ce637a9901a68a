// Command basin runs a multi-step, tool-using task-solving agent.
//
// Usage:
//
//	basin run "What is 2 + 2?"
//	basin run --profile profiles.yaml --log-file session.log "Summarize ..."
//	basin capabilities
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"

	"github.com/martinemde/basin/agentloop"
	"github.com/martinemde/basin/config"
	"github.com/martinemde/basin/dispatch"
	"github.com/martinemde/basin/history"
	"github.com/martinemde/basin/memory"
	"github.com/martinemde/basin/modelclient"
	"github.com/martinemde/basin/planner"
	"github.com/martinemde/basin/sandbox"
)

// CLI defines the command-line interface.
type CLI struct {
	Run          RunCmd          `cmd:"" help:"Run a task through the agent loop."`
	Capabilities CapabilitiesCmd `cmd:"" help:"List registered capabilities."`

	Profile  string `short:"p" help:"Path to profile YAML." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile  string `help:"JSON session log file (empty = terminal only)." type:"path"`
}

// RunCmd runs one task.
type RunCmd struct {
	Query    string `arg:"" help:"The task to solve."`
	Provider string `help:"Override the model provider."`
	Model    string `help:"Override the model name."`
}

func (c *RunCmd) Run(cli *CLI) error {
	logger, cleanup, err := buildLogger(cli)
	if err != nil {
		return err
	}
	defer cleanup()

	profile, err := loadProfile(cli)
	if err != nil {
		return err
	}
	if c.Provider != "" {
		profile.Model.Provider = c.Provider
	}
	if c.Model != "" {
		profile.Model.Name = c.Model
	}

	client, err := modelclient.New(
		profile.Model.Provider,
		profile.Model.Name,
		profile.Model.APIKey(),
		modelclient.WithLogger(logger),
		modelclient.WithMinInterval(time.Duration(profile.Model.MinIntervalSeconds*float64(time.Second))),
	)
	if err != nil {
		return fmt.Errorf("create model client: %w", err)
	}

	registry := dispatch.NewRegistry()
	dispatch.RegisterBuiltinCapabilities(registry)

	index := history.NewIndex(profile.MemoryDir, logger)
	if err := index.Load(); err != nil {
		logger.Warn("could not load history index", "error", err)
	}

	store := memory.NewStore(uuid.New().String(), profile.MemoryDir)
	plan := planner.New(profile.Strategy.PlannerConfig(), client, index, logger)
	executor := sandbox.NewExecutor(logger)

	loop := agentloop.New(profile.Strategy, agentloop.Deps{
		Planner:    plan,
		Executor:   executor,
		Dispatcher: registry,
		Memory:     store,
		Index:      index,
		Logger:     logger,
	})
	defer loop.Close()

	// Drain the event stream into the session log; Close ends the drain.
	go func() {
		for ev := range loop.Events() {
			logger.Debug("session event", "kind", ev.Kind, "data", ev.Data)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
	}()

	result, err := loop.Run(ctx, c.Query)
	if err != nil {
		return err
	}
	fmt.Println(result.Result)
	return nil
}

// CapabilitiesCmd lists the registered capability set.
type CapabilitiesCmd struct{}

func (c *CapabilitiesCmd) Run(cli *CLI) error {
	registry := dispatch.NewRegistry()
	dispatch.RegisterBuiltinCapabilities(registry)
	fmt.Println(planner.Summarize(registry.GetCapabilities(nil)))
	return nil
}

func loadProfile(cli *CLI) (config.Profile, error) {
	config.LoadDotenv(".env")
	if cli.Profile == "" {
		return config.Default(), nil
	}
	return config.Load(cli.Profile)
}

// buildLogger fans out to a terminal text handler and, when configured, a
// JSON session log file.
func buildLogger(cli *CLI) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cli.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("bad log level %q: %w", cli.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	terminal := slog.NewTextHandler(os.Stderr, opts)
	if cli.LogFile == "" {
		return slog.New(terminal), func() {}, nil
	}

	f, err := os.OpenFile(cli.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	handler := slogmulti.Fanout(terminal, slog.NewJSONHandler(f, opts))
	return slog.New(handler), func() { f.Close() }, nil
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("basin"),
		kong.Description("A multi-step, tool-using task-solving agent."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(cli))
}
