// Package heuristics applies the query-side and result-side text filters:
// banned-word and profanity redaction, sensitive-data masking, whitespace
// normalization, length limiting, entity extraction, and query validation.
package heuristics

import (
	"regexp"
	"sort"
	"strings"
)

// MaxResultLength bounds filtered results to avoid token overflow downstream.
const MaxResultLength = 5000

var bannedWords = map[string]bool{
	"hack": true, "exploit": true, "crack": true, "bypass": true,
	"illegal": true, "unauthorized": true, "malware": true, "virus": true,
	"trojan": true, "phishing": true, "spam": true, "scam": true,
	"terrorism": true, "bomb": true, "weapon": true,
}

var profanityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(fuck|shit|damn|bitch|bastard)\w*\b`),
	regexp.MustCompile(`(?i)\b(crap|piss|dick)\w*\b`),
}

var (
	creditCardPattern = regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)
	ssnPattern        = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	longIDPattern     = regexp.MustCompile(`\b\d{12,}\b`)
)

var (
	multiSpacePattern   = regexp.MustCompile(` +`)
	multiNewlinePattern = regexp.MustCompile(`\n\s*\n+`)
)

var (
	numberPattern      = regexp.MustCompile(`\b\d+\.?\d*\b`)
	capitalizedPattern = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	quotedPattern      = regexp.MustCompile(`"([^"]*)"`)
)

var imperativeVerbs = map[string]bool{
	"find": true, "get": true, "show": true, "calculate": true,
	"search": true, "list": true, "tell": true,
}

// Validation holds structural metadata about a query.
type Validation struct {
	IsQuestion   bool
	IsImperative bool
	HasEntities  bool
	WordCount    int
	IsValid      bool
}

// QueryContext carries prior-interaction context used to enhance a query.
type QueryContext struct {
	PreviousQueries []string
	Entities        []string
}

// QueryResult is the outcome of filtering a query.
type QueryResult struct {
	Original    string
	Processed   string
	Entities    []string
	Validation  Validation
	WasModified bool
}

// RemoveBannedWords replaces banned words with a redaction marker, keeping
// surrounding context intact.
func RemoveBannedWords(text string) string {
	words := strings.Fields(text)
	cleaned := make([]string, len(words))
	for i, word := range words {
		bare := strings.ToLower(strings.Trim(word, `.,!?;:()[]{}"'`))
		if bannedWords[bare] {
			cleaned[i] = "[REDACTED]"
		} else {
			cleaned[i] = word
		}
	}
	return strings.Join(cleaned, " ")
}

// RemoveProfanity redacts profanity.
func RemoveProfanity(text string) string {
	cleaned := text
	for _, pattern := range profanityPatterns {
		cleaned = pattern.ReplaceAllString(cleaned, "[REDACTED]")
	}
	return cleaned
}

// RedactSensitive masks credit card numbers, SSNs, and long numeric IDs.
func RedactSensitive(text string) string {
	cleaned := creditCardPattern.ReplaceAllString(text, "[REDACTED_CARD]")
	cleaned = ssnPattern.ReplaceAllString(cleaned, "[REDACTED_SSN]")
	cleaned = longIDPattern.ReplaceAllString(cleaned, "[REDACTED_ID]")
	return cleaned
}

// NormalizeWhitespace collapses runs of spaces, tabs, and blank lines.
func NormalizeWhitespace(text string) string {
	cleaned := strings.ReplaceAll(text, "\t", " ")
	cleaned = multiSpacePattern.ReplaceAllString(cleaned, " ")
	cleaned = multiNewlinePattern.ReplaceAllString(cleaned, "\n\n")
	return strings.TrimSpace(cleaned)
}

// LimitLength truncates text to maxLength, marking the cut.
func LimitLength(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	return text[:maxLength] + "... [TRUNCATED]"
}

// ExtractEntities pulls numbers, capitalized words, and quoted strings out of
// text, deduplicated in first-seen order.
func ExtractEntities(text string) []string {
	var entities []string
	entities = append(entities, numberPattern.FindAllString(text, -1)...)
	entities = append(entities, capitalizedPattern.FindAllString(text, -1)...)
	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		entities = append(entities, m[1])
	}

	seen := make(map[string]bool)
	deduped := entities[:0]
	for _, e := range entities {
		if !seen[e] {
			seen[e] = true
			deduped = append(deduped, e)
		}
	}
	return deduped
}

// ValidateQuery checks query structure and returns metadata.
func ValidateQuery(query string) Validation {
	words := strings.Fields(query)
	first := ""
	if len(words) > 0 {
		first = strings.ToLower(words[0])
	}
	return Validation{
		IsQuestion:   strings.Contains(query, "?"),
		IsImperative: imperativeVerbs[first],
		HasEntities:  len(ExtractEntities(query)) > 0,
		WordCount:    len(words),
		IsValid:      strings.TrimSpace(query) != "",
	}
}

// FilterQuery applies the full query-side filter chain and returns the
// processed query with metadata.
func FilterQuery(query string, qctx *QueryContext) QueryResult {
	validation := ValidateQuery(query)
	entities := ExtractEntities(query)

	cleaned := RemoveBannedWords(query)
	cleaned = RemoveProfanity(cleaned)
	cleaned = NormalizeWhitespace(cleaned)
	enhanced := enhanceWithContext(cleaned, qctx)

	return QueryResult{
		Original:    query,
		Processed:   enhanced,
		Entities:    entities,
		Validation:  validation,
		WasModified: query != enhanced,
	}
}

// FilterResult applies the full result-side filter chain.
func FilterResult(result string) string {
	cleaned := RemoveBannedWords(result)
	cleaned = RemoveProfanity(cleaned)
	cleaned = RedactSensitive(cleaned)
	cleaned = NormalizeWhitespace(cleaned)
	return LimitLength(cleaned, MaxResultLength)
}

// enhanceWithContext appends prior-query and entity hints when available.
func enhanceWithContext(query string, qctx *QueryContext) string {
	if qctx == nil {
		return query
	}

	enhanced := query
	if len(qctx.PreviousQueries) > 0 {
		recent := qctx.PreviousQueries[len(qctx.PreviousQueries)-1]
		if recent != "" && !strings.Contains(strings.ToLower(query), strings.ToLower(recent)) {
			preview := recent
			if len(preview) > 50 {
				preview = preview[:50]
			}
			enhanced = enhanced + " [Context: Related to previous query about " + preview + "...]"
		}
	}

	if len(qctx.Entities) > 0 {
		hints := qctx.Entities
		if len(hints) > 3 {
			hints = hints[:3]
		}
		sorted := append([]string(nil), hints...)
		sort.Strings(sorted)
		enhanced = enhanced + " [Entities: " + strings.Join(sorted, ", ") + "]"
	}

	return enhanced
}
