package agentloop

import "strings"

// Persisted plan-result literal prefixes. Other components rely on these
// surviving in logged and stored strings; inside the loop they are converted
// to a typed Outcome at the executor boundary.
const (
	FinalAnswerPrefix       = "FINAL_ANSWER:"
	FurtherProcessingPrefix = "FURTHER_PROCESSING_REQUIRED:"
	SandboxErrorPrefix      = "[sandbox error:"
)

// Sentinel final answers for the two non-success terminal states.
const (
	ExecutionFailedAnswer = "FINAL_ANSWER: [Execution failed]"
	MaxStepsAnswer        = "FINAL_ANSWER: [Max steps reached]"
)

// OutcomeKind discriminates execution outcomes.
type OutcomeKind int

const (
	// OutcomeFinished carries a terminal answer.
	OutcomeFinished OutcomeKind = iota
	// OutcomeNeedsMore carries content to forward into the next attempt.
	OutcomeNeedsMore
	// OutcomeFailed carries a sandbox fault message.
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFinished:
		return "finished"
	case OutcomeNeedsMore:
		return "needs_more_processing"
	default:
		return "failed"
	}
}

// Outcome is the typed classification of an executed plan's result string.
type Outcome struct {
	Kind OutcomeKind

	// Answer is the full terminal answer, prefix included. Set for
	// OutcomeFinished.
	Answer string

	// Content is the forwarded payload with the prefix stripped. Set for
	// OutcomeNeedsMore.
	Content string

	// Fault is the sandbox error string. Set for OutcomeFailed.
	Fault string
}

// ClassifyOutcome converts an executor result string into a typed Outcome.
// Unprefixed results count as finished and get the answer prefix
// synthesized.
func ClassifyOutcome(result string) Outcome {
	result = strings.TrimSpace(result)
	switch {
	case strings.HasPrefix(result, FinalAnswerPrefix):
		return Outcome{Kind: OutcomeFinished, Answer: result}
	case strings.HasPrefix(result, FurtherProcessingPrefix):
		content := strings.TrimSpace(strings.TrimPrefix(result, FurtherProcessingPrefix))
		return Outcome{Kind: OutcomeNeedsMore, Content: content}
	case strings.HasPrefix(result, SandboxErrorPrefix):
		return Outcome{Kind: OutcomeFailed, Fault: result}
	default:
		return Outcome{Kind: OutcomeFinished, Answer: FinalAnswerPrefix + " " + result}
	}
}
