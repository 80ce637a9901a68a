package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/martinemde/basin/dispatch"
)

// NoCapabilities is the tool-context sentinel used when nothing is available.
const NoCapabilities = "No tools available. You must solve this without calling any tools."

// suppliedContentContext replaces the tool context when the input carries
// content to process and no capabilities are available.
const suppliedContentContext = "No tools available. You must analyze and summarize the provided content without calling any tools."

var suppliedContentPhrases = []string{
	"your last tool produced",
	"content from previous step",
	"content already provided",
}

var summaryKeywords = []string{
	"summarize", "summary", "key points", "main points", "summarise",
}

var analysisKeywords = []string{
	"analyze", "analysis", "extract", "topics", "main topics", "identify topics",
}

// HasSuppliedContent reports whether the input is a "process already-supplied
// content" request: it must reference forwarded content and ask for
// summarization or analysis.
func HasSuppliedContent(input string) bool {
	lower := strings.ToLower(input)
	phrased := false
	for _, p := range suppliedContentPhrases {
		if strings.Contains(lower, p) {
			phrased = true
			break
		}
	}
	if !phrased {
		return false
	}
	for _, kw := range append(append([]string{}, summaryKeywords...), analysisKeywords...) {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// NeedsSummary reports whether the input asks for summarization.
func NeedsSummary(input string) bool {
	return containsAny(strings.ToLower(input), summaryKeywords)
}

// NeedsAnalysis reports whether the input asks for analysis or topic
// extraction.
func NeedsAnalysis(input string) bool {
	return containsAny(strings.ToLower(input), analysisKeywords)
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// FilterByHint narrows capabilities to those matching the routing hint. An
// empty hint keeps everything; a hint with no matches yields an empty set so
// the caller can decide whether to widen.
func FilterByHint(capabilities []dispatch.Descriptor, hint string) []dispatch.Descriptor {
	if strings.TrimSpace(hint) == "" {
		return capabilities
	}
	words := strings.Fields(strings.ToLower(hint))
	var filtered []dispatch.Descriptor
	for _, c := range capabilities {
		name := strings.ToLower(c.Name)
		desc := strings.ToLower(c.Description)
		for _, w := range words {
			if strings.Contains(name, w) || strings.Contains(desc, w) {
				filtered = append(filtered, c)
				break
			}
		}
	}
	return filtered
}

// Summarize renders capability descriptors as the tool-description block for
// prompts, one line per capability, sorted by name. An empty set yields the
// NoCapabilities sentinel.
func Summarize(capabilities []dispatch.Descriptor) string {
	if len(capabilities) == 0 {
		return NoCapabilities
	}
	sorted := append([]dispatch.Descriptor(nil), capabilities...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, c := range sorted {
		fmt.Fprintf(&b, "- %s: %s", c.Name, c.Description)
		if len(c.Parameters) > 0 {
			params := make([]string, 0, len(c.Parameters))
			for name := range c.Parameters {
				params = append(params, name)
			}
			sort.Strings(params)
			fmt.Fprintf(&b, " (args: %s)", strings.Join(params, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
