package agentloop

import "github.com/martinemde/basin/planner"

// StrategyProfile configures how hard the loop tries and how the planner
// builds its tool context.
type StrategyProfile struct {
	// MaxSteps bounds the outer iterations of the loop.
	MaxSteps int `yaml:"max_steps" json:"max_steps"`

	// MaxLifelinesPerStep is the retry budget within one step. A step runs
	// at most MaxLifelinesPerStep+1 attempts.
	MaxLifelinesPerStep int `yaml:"max_lifelines_per_step" json:"max_lifelines_per_step"`

	PlanningMode    planner.PlanningMode    `yaml:"planning_mode" json:"planning_mode"`
	ExplorationMode planner.ExplorationMode `yaml:"exploration_mode" json:"exploration_mode"`

	// MemoryFallback lets the exploratory planner retry with recently
	// successful capabilities before widening to all of them.
	MemoryFallback      bool `yaml:"memory_fallback_enabled" json:"memory_fallback_enabled"`
	MemoryFallbackLimit int  `yaml:"memory_fallback_limit" json:"memory_fallback_limit"`
}

// DefaultStrategyProfile returns the stock conservative profile.
func DefaultStrategyProfile() StrategyProfile {
	return StrategyProfile{
		MaxSteps:            3,
		MaxLifelinesPerStep: 3,
		PlanningMode:        planner.ModeConservative,
		MemoryFallback:      true,
		MemoryFallbackLimit: planner.DefaultMemoryFallbackLimit,
	}
}

// PlannerConfig derives the planner configuration from the profile.
func (p StrategyProfile) PlannerConfig() planner.Config {
	return planner.Config{
		Mode:                p.PlanningMode,
		Exploration:         p.ExplorationMode,
		MemoryFallback:      p.MemoryFallback,
		MemoryFallbackLimit: p.MemoryFallbackLimit,
	}
}
