// Package memory holds the per-session record of what the agent did: run
// metadata, capability outputs with success flags, and the final answer.
// Sessions persist as session-<id>.json files that the history indexer reads.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ItemType discriminates between memory item kinds.
type ItemType string

const (
	TypeRunMetadata ItemType = "run_metadata"
	TypeToolOutput  ItemType = "tool_output"
	TypeFinalAnswer ItemType = "final_answer"
)

// Item is one entry in a session's memory.
type Item struct {
	Type        ItemType               `json:"type"`
	Timestamp   float64                `json:"timestamp"` // unix seconds
	UserQuery   string                 `json:"user_query,omitempty"`
	ToolName    string                 `json:"tool_name,omitempty"`
	ToolArgs    map[string]interface{} `json:"tool_args,omitempty"`
	ToolResult  map[string]interface{} `json:"tool_result,omitempty"`
	Success     bool                   `json:"success,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
	FinalAnswer string                 `json:"final_answer,omitempty"`
	Entities    []string               `json:"entities,omitempty"`
}

// Store accumulates items for one session and persists them as JSON.
type Store struct {
	sessionID string
	dir       string

	mu    sync.Mutex
	items []Item
}

// NewStore creates a Store for the given session, persisting under dir.
func NewStore(sessionID, dir string) *Store {
	return &Store{sessionID: sessionID, dir: dir}
}

// SessionID returns the session identifier.
func (s *Store) SessionID() string { return s.sessionID }

// Path returns the session file path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, fmt.Sprintf("session-%s.json", s.sessionID))
}

// AddRunMetadata records the original user query for this run.
func (s *Store) AddRunMetadata(userQuery string, entities []string) {
	s.add(Item{
		Type:      TypeRunMetadata,
		Timestamp: now(),
		UserQuery: userQuery,
		Entities:  entities,
	})
}

// AddToolOutput records one capability or sandbox invocation.
func (s *Store) AddToolOutput(toolName string, args, result map[string]interface{}, success bool, tags []string) {
	s.add(Item{
		Type:       TypeToolOutput,
		Timestamp:  now(),
		ToolName:   toolName,
		ToolArgs:   args,
		ToolResult: result,
		Success:    success,
		Tags:       tags,
	})
}

// AddFinalAnswer records the terminal answer.
func (s *Store) AddFinalAnswer(answer string) {
	s.add(Item{
		Type:        TypeFinalAnswer,
		Timestamp:   now(),
		FinalAnswer: answer,
	})
}

func (s *Store) add(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
}

// Items returns a copy of the session's items in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Item, len(s.items))
	copy(items, s.items)
	return items
}

// Save writes the session file, creating the directory if needed.
func (s *Store) Save() error {
	items := s.Items()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session memory: %w", err)
	}
	if err := os.WriteFile(s.Path(), data, 0o644); err != nil {
		return fmt.Errorf("write session memory: %w", err)
	}
	return nil
}

// LoadItems reads a session file back into items.
func LoadItems(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode session memory: %w", err)
	}
	return items, nil
}

func now() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
