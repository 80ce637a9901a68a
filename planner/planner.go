// Package planner turns a task, a capability set, and session memory into an
// executable solve() plan. It narrows the tool context by routing hint,
// injects relevant historical context, asks the model for a completion, and
// extracts the plan from the response.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/martinemde/basin/dispatch"
	"github.com/martinemde/basin/history"
	"github.com/martinemde/basin/memory"
)

// DefaultMemoryFallbackLimit bounds how many distinct recent successful
// capabilities the exploratory memory fallback considers.
const DefaultMemoryFallbackLimit = 5

const historicalContextLimit = 3

// Generator produces a completion for a prompt. *modelclient.Client
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ContextProvider supplies historical conversation context for a query.
// *history.Index satisfies it.
type ContextProvider interface {
	RelevantContext(query string, limit int) string
}

// Perception is the per-attempt capability routing signal.
type Perception struct {
	Groups []string
	Hint   string
}

// Request carries everything one planning decision needs.
type Request struct {
	Input              string
	Perception         Perception
	MemoryItems        []memory.Item
	Capabilities       []dispatch.Descriptor
	LastResult         string
	FailedCapabilities []string
	ForceReplan        bool
}

// Config selects the planning policy.
type Config struct {
	Mode                PlanningMode
	Exploration         ExplorationMode
	MemoryFallback      bool
	MemoryFallbackLimit int
}

// Planner is the strategy engine.
type Planner struct {
	cfg       Config
	generator Generator
	hist      ContextProvider
	logger    *slog.Logger
}

// New creates a Planner. The historical-context provider may be nil; a nil
// logger falls back to slog.Default.
func New(cfg Config, generator Generator, hist ContextProvider, logger *slog.Logger) *Planner {
	if cfg.MemoryFallbackLimit <= 0 {
		cfg.MemoryFallbackLimit = DefaultMemoryFallbackLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{cfg: cfg, generator: generator, hist: hist, logger: logger}
}

// DecideNextAction produces a plan for the request. The returned string is
// not guaranteed to be a structurally valid plan; the agent loop validates
// it before dispatch.
func (p *Planner) DecideNextAction(ctx context.Context, req Request) (string, error) {
	filtered := FilterByHint(req.Capabilities, req.Perception.Hint)
	filteredSummary := Summarize(filtered)

	switch p.cfg.Mode {
	case ModeConservative:
		return p.conservativePlan(ctx, req, filteredSummary)
	case ModeExploratory:
		return p.exploratoryPlan(ctx, req, filteredSummary)
	}
	return p.generatePlan(ctx, req.Input, Summarize(req.Capabilities))
}

// conservativePlan builds a single best-effort tool context.
func (p *Planner) conservativePlan(ctx context.Context, req Request, filteredSummary string) (string, error) {
	var toolContext string
	switch {
	case HasSuppliedContent(req.Input) && len(req.Capabilities) == 0:
		toolContext = suppliedContentContext
	case req.ForceReplan || strings.TrimSpace(filteredSummary) == "" || filteredSummary == NoCapabilities:
		if len(req.Capabilities) > 0 {
			p.logger.Warn("force replan or empty filtered tools, widening to all capabilities")
			toolContext = Summarize(req.Capabilities)
		} else {
			toolContext = NoCapabilities
		}
	default:
		toolContext = filteredSummary
	}
	return p.generatePlan(ctx, req.Input, toolContext)
}

// exploratoryPlan prefers a memory-guided fallback on replans before
// widening to the full capability set.
func (p *Planner) exploratoryPlan(ctx context.Context, req Request, filteredSummary string) (string, error) {
	if req.ForceReplan {
		p.logger.Warn("force replan triggered, attempting fallback")
		if p.cfg.MemoryFallback {
			names := RecentSuccessfulCapabilities(req.MemoryItems, p.cfg.MemoryFallbackLimit)
			if selected := selectByName(req.Capabilities, names); len(selected) > 0 {
				p.logger.Info("memory fallback capabilities found", "capabilities", names)
				return p.generatePlan(ctx, req.Input, Summarize(selected))
			}
			p.logger.Warn("no memory fallback capabilities, widening to all")
		}
		return p.generatePlan(ctx, req.Input, Summarize(req.Capabilities))
	}

	if strings.TrimSpace(filteredSummary) == "" {
		p.logger.Warn("no filtered capabilities, widening to all")
		return p.generatePlan(ctx, req.Input, Summarize(req.Capabilities))
	}
	return p.generatePlan(ctx, req.Input, filteredSummary)
}

// generatePlan renders the decision prompt, appends historical context when
// any exists, asks the model, and extracts the plan.
func (p *Planner) generatePlan(ctx context.Context, input, toolContext string) (string, error) {
	prompt := renderPrompt(selectPromptTemplate(p.cfg.Mode, p.cfg.Exploration), toolContext, input)

	if p.hist != nil {
		if histCtx := p.hist.RelevantContext(input, historicalContextLimit); histCtx != "" && histCtx != history.NoRelevantContext {
			prompt = prompt + "\n\n" + histCtx
		}
	}

	raw, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate plan: %w", err)
	}
	plan := ExtractPlan(strings.TrimSpace(raw))
	p.logger.Debug("generated plan", "bytes", len(plan))
	return plan, nil
}

// RecentSuccessfulCapabilities scans memory items newest-first for distinct
// capability names that succeeded, bounded to limit.
func RecentSuccessfulCapabilities(items []memory.Item, limit int) []string {
	var names []string
	seen := make(map[string]bool)
	for i := len(items) - 1; i >= 0 && len(names) < limit; i-- {
		item := items[i]
		if item.Type != memory.TypeToolOutput || !item.Success || item.ToolName == "" {
			continue
		}
		if !seen[item.ToolName] {
			seen[item.ToolName] = true
			names = append(names, item.ToolName)
		}
	}
	return names
}

func selectByName(capabilities []dispatch.Descriptor, names []string) []dispatch.Descriptor {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []dispatch.Descriptor
	for _, c := range capabilities {
		if wanted[c.Name] {
			out = append(out, c)
		}
	}
	return out
}
