// Package history indexes past sessions so the planner can surface relevant
// prior conversations. The index is a flat JSON file next to the session
// memory files, scored by keyword overlap at search time.
package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/martinemde/basin/memory"
)

// NoRelevantContext is returned when no indexed conversation matches the
// query. Callers use it to skip historical context injection.
const NoRelevantContext = "No relevant historical conversations found."

const defaultIndexFile = "historical_conversation_store.json"

// Entry summarizes one indexed session.
type Entry struct {
	SessionID string   `json:"session_id"`
	Query     string   `json:"query"`
	Answer    string   `json:"answer,omitempty"`
	ToolsUsed []string `json:"tools_used"`
	Entities  []string `json:"entities"`
	Timestamp float64  `json:"timestamp,omitempty"`
	Success   bool     `json:"success"`
	IndexedAt float64  `json:"indexed_at"`
}

// Index is the historical conversation index backed by a JSON file.
type Index struct {
	memoryDir string
	indexPath string
	logger    *slog.Logger
	entries   []Entry
}

// NewIndex creates an index rooted at memoryDir. Call Load before use.
func NewIndex(memoryDir string, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		memoryDir: memoryDir,
		indexPath: filepath.Join(memoryDir, defaultIndexFile),
		logger:    logger,
	}
}

// Load reads the index file if it exists. A missing file is not an error;
// a corrupt one resets the index.
func (ix *Index) Load() error {
	data, err := os.ReadFile(ix.indexPath)
	if os.IsNotExist(err) {
		ix.entries = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history index: %w", err)
	}
	if err := json.Unmarshal(data, &ix.entries); err != nil {
		ix.logger.Warn("history index corrupt, resetting", "path", ix.indexPath, "error", err)
		ix.entries = nil
		return nil
	}
	ix.logger.Debug("loaded historical conversations", "count", len(ix.entries))
	return nil
}

// Flush writes the index file, creating the memory directory if needed.
func (ix *Index) Flush() error {
	if err := os.MkdirAll(ix.memoryDir, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	data, err := json.MarshalIndent(ix.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history index: %w", err)
	}
	if err := os.WriteFile(ix.indexPath, data, 0o644); err != nil {
		return fmt.Errorf("write history index: %w", err)
	}
	return nil
}

// Entries returns a copy of the indexed entries.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

// IndexSession distills a session memory file into an index entry,
// replacing any prior entry for the same session. Sessions without a
// recorded user query are skipped.
func (ix *Index) IndexSession(sessionID, sessionFile string) error {
	items, err := memory.LoadItems(sessionFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("index session %s: %w", sessionID, err)
	}

	var entry Entry
	entry.SessionID = sessionID
	seenTools := make(map[string]bool)
	seenEntities := make(map[string]bool)

	for _, item := range items {
		switch item.Type {
		case memory.TypeRunMetadata:
			if item.UserQuery != "" {
				entry.Query = item.UserQuery
				entry.Timestamp = item.Timestamp
			}
		case memory.TypeFinalAnswer:
			entry.Answer = item.FinalAnswer
			entry.Success = true
		case memory.TypeToolOutput:
			if item.ToolName != "" && !seenTools[item.ToolName] {
				seenTools[item.ToolName] = true
				entry.ToolsUsed = append(entry.ToolsUsed, item.ToolName)
			}
			if item.Success {
				entry.Success = true
			}
		}
		for _, e := range item.Entities {
			if !seenEntities[e] {
				seenEntities[e] = true
				entry.Entities = append(entry.Entities, e)
			}
		}
	}

	if entry.Query == "" {
		return nil
	}
	entry.IndexedAt = float64(time.Now().UnixNano()) / float64(time.Second)

	replaced := false
	for i := range ix.entries {
		if ix.entries[i].SessionID == sessionID {
			ix.entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		ix.entries = append(ix.entries, entry)
	}
	ix.logger.Debug("indexed session", "session_id", sessionID)
	return nil
}

// IndexAllSessions walks the memory directory and indexes every session file
// that is new or newer than its existing entry, then flushes the index.
func (ix *Index) IndexAllSessions() error {
	if _, err := os.Stat(ix.memoryDir); os.IsNotExist(err) {
		return nil
	}

	indexed := 0
	err := filepath.WalkDir(ix.memoryDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		name := d.Name()
		if !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, ".json") {
			return nil
		}
		sessionID := strings.TrimSuffix(strings.TrimPrefix(name, "session-"), ".json")

		info, err := d.Info()
		if err != nil {
			return err
		}
		mtime := float64(info.ModTime().UnixNano()) / float64(time.Second)
		if existing := ix.find(sessionID); existing != nil && existing.IndexedAt >= mtime {
			return nil
		}
		if err := ix.IndexSession(sessionID, path); err != nil {
			ix.logger.Warn("failed to index session", "session_id", sessionID, "error", err)
			return nil
		}
		indexed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("scan memory dir: %w", err)
	}
	ix.logger.Debug("indexed sessions", "count", indexed)
	if indexed > 0 {
		return ix.Flush()
	}
	return nil
}

func (ix *Index) find(sessionID string) *Entry {
	for i := range ix.entries {
		if ix.entries[i].SessionID == sessionID {
			return &ix.entries[i]
		}
	}
	return nil
}

// Search returns the highest-scoring entries for the query. Query-word
// overlap counts double, answer-word overlap single, with small boosts for
// success and recency. Zero-score entries are dropped.
func (ix *Index) Search(query string, limit int) []Entry {
	queryWords := wordSet(query)
	nowSecs := float64(time.Now().UnixNano()) / float64(time.Second)

	type scored struct {
		score int
		pos   int
		entry Entry
	}
	var results []scored

	for i, entry := range ix.entries {
		score := 0
		score += 2 * overlap(queryWords, wordSet(entry.Query))
		if entry.Answer != "" {
			score += overlap(queryWords, wordSet(entry.Answer))
		}
		if entry.Success {
			score++
		}
		if entry.Timestamp > 0 && (nowSecs-entry.Timestamp)/86400 < 7 {
			score++
		}
		if score > 0 {
			results = append(results, scored{score: score, pos: i, entry: entry})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].score > results[b].score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	out := make([]Entry, len(results))
	for i, r := range results {
		out[i] = r.entry
	}
	return out
}

// RelevantContext formats the top matches into a digest for prompt
// injection, or NoRelevantContext when nothing matches.
func (ix *Index) RelevantContext(query string, limit int) string {
	relevant := ix.Search(query, limit)
	if len(relevant) == 0 {
		return NoRelevantContext
	}

	var b strings.Builder
	b.WriteString("Relevant Historical Conversations:")
	for i, entry := range relevant {
		fmt.Fprintf(&b, "\n%d. Query: %s", i+1, entry.Query)
		if entry.Answer != "" {
			preview := entry.Answer
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			fmt.Fprintf(&b, "\n   Answer: %s", preview)
		}
		if len(entry.ToolsUsed) > 0 {
			fmt.Fprintf(&b, "\n   Tools used: %s", strings.Join(entry.ToolsUsed, ", "))
		}
	}
	return b.String()
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}

func overlap(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}
