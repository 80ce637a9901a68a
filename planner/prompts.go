package planner

import (
	"embed"
	"strings"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// PlanningMode selects the planner's tool-context policy.
type PlanningMode string

const (
	ModeConservative PlanningMode = "conservative"
	ModeExploratory  PlanningMode = "exploratory"
)

// ExplorationMode refines exploratory planning.
type ExplorationMode string

const (
	ExploreParallel   ExplorationMode = "parallel"
	ExploreSequential ExplorationMode = "sequential"
)

// selectPromptTemplate maps the planning mode pair to a decision prompt.
// Unknown combinations fall back to the conservative template.
func selectPromptTemplate(mode PlanningMode, exploration ExplorationMode) string {
	name := "prompts/decision_prompt_conservative.txt"
	if mode == ModeExploratory {
		switch exploration {
		case ExploreParallel:
			name = "prompts/decision_prompt_exploratory_parallel.txt"
		case ExploreSequential:
			name = "prompts/decision_prompt_exploratory_sequential.txt"
		}
	}
	data, err := promptFS.ReadFile(name)
	if err != nil {
		// Embedded files cannot go missing at runtime.
		panic(err)
	}
	return string(data)
}

// renderPrompt substitutes the template placeholders.
func renderPrompt(template, toolDescriptions, userInput string) string {
	return strings.NewReplacer(
		"{tool_descriptions}", toolDescriptions,
		"{user_input}", userInput,
	).Replace(template)
}
