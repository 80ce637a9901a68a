package agentloop

import (
	"context"
	"strings"

	"github.com/martinemde/basin/dispatch"
	"github.com/martinemde/basin/planner"
)

// Perceiver selects the capability groups relevant to an input and produces
// a routing hint for narrowing within them. A fresh result is produced per
// attempt and consumed only within it.
type Perceiver interface {
	Perceive(ctx context.Context, input string) (planner.Perception, error)
}

// KeywordPerceiver scores capability groups by word overlap between the
// input and their capabilities' names and descriptions. The best-matching
// capability name becomes the routing hint. When nothing matches, no groups
// are selected and the loop's empty-capability handling applies.
type KeywordPerceiver struct {
	dispatcher dispatch.Dispatcher
}

// NewKeywordPerceiver creates a KeywordPerceiver over the dispatcher.
func NewKeywordPerceiver(dispatcher dispatch.Dispatcher) *KeywordPerceiver {
	return &KeywordPerceiver{dispatcher: dispatcher}
}

func (p *KeywordPerceiver) Perceive(_ context.Context, input string) (planner.Perception, error) {
	words := wordSet(input)
	capabilities := p.dispatcher.GetCapabilities(nil)

	groupScores := make(map[string]int)
	bestScore := 0
	hint := ""
	for _, c := range capabilities {
		score := overlap(words, wordSet(c.Name+" "+c.Description))
		if score > 0 {
			groupScores[c.Group] += score
		}
		if score > bestScore {
			bestScore = score
			hint = c.Name
		}
	}

	if len(groupScores) == 0 {
		return planner.Perception{Groups: nil, Hint: ""}, nil
	}

	groups := make([]string, 0, len(groupScores))
	for g := range groupScores {
		groups = append(groups, g)
	}
	return planner.Perception{Groups: groups, Hint: hint}, nil
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[strings.Trim(w, `.,!?;:()[]{}"'`)] = true
	}
	return set
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if w != "" && b[w] {
			n++
		}
	}
	return n
}
