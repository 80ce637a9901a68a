package agentloop

import (
	"fmt"

	"github.com/martinemde/basin/planner"
)

// BuildOverrideInput embeds forwarded content into the next attempt's input.
// The template depends on what the original task asked for: summarization,
// analysis, or a generic "does this answer it" continuation.
func BuildOverrideInput(originalTask, content string) string {
	switch {
	case planner.NeedsSummary(originalTask):
		return fmt.Sprintf(
			"Original user task: %s\n\n"+
				"Your last tool produced this content:\n\n%s\n\n"+
				"TASK: Summarize this content into key points. Return a FINAL_ANSWER with:\n"+
				"- Bullet points (use • or -)\n"+
				"- Clear, concise key points\n"+
				"- Format: FINAL_ANSWER: • Point 1\\n• Point 2\\n• Point 3\n\n"+
				"DO NOT call any tools. Just analyze and summarize the content provided above.",
			originalTask, content)
	case planner.NeedsAnalysis(originalTask):
		return fmt.Sprintf(
			"Original user task: %s\n\n"+
				"Your last tool produced this content:\n\n%s\n\n"+
				"TASK: Analyze and extract the main topics from this content. Return a FINAL_ANSWER with:\n"+
				"- Main topics listed clearly (use • or numbered list)\n"+
				"- Format: FINAL_ANSWER: Main Topics:\\n• Topic 1\\n• Topic 2\\n• Topic 3\n\n"+
				"DO NOT call any tools. Just analyze the content and extract the main topics.",
			originalTask, content)
	default:
		return fmt.Sprintf(
			"Original user task: %s\n\n"+
				"Your last tool produced this result:\n\n%s\n\n"+
				"If this fully answers the task, return:\nFINAL_ANSWER: your answer\n\n"+
				"Otherwise, return the next FUNCTION_CALL.",
			originalTask, content)
	}
}
