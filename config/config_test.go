package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/martinemde/basin/planner"
)

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	content := `
agent_name: tester
strategy:
  max_steps: 5
  max_lifelines_per_step: 2
  planning_mode: exploratory
  exploration_mode: sequential
  memory_fallback_enabled: true
model:
  provider: openai
  name: gpt-4o-mini
  api_key_env: OPENAI_API_KEY
memory_dir: /tmp/mem
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	profile, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if profile.AgentName != "tester" {
		t.Errorf("unexpected agent name: %q", profile.AgentName)
	}
	if profile.Strategy.MaxSteps != 5 || profile.Strategy.MaxLifelinesPerStep != 2 {
		t.Errorf("unexpected strategy: %+v", profile.Strategy)
	}
	if profile.Strategy.PlanningMode != planner.ModeExploratory {
		t.Errorf("unexpected planning mode: %q", profile.Strategy.PlanningMode)
	}
	if profile.Model.Provider != "openai" || profile.Model.Name != "gpt-4o-mini" {
		t.Errorf("unexpected model config: %+v", profile.Model)
	}
}

func TestLoadKeepsDefaultsForUnsetFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.yaml")
	if err := os.WriteFile(path, []byte("agent_name: partial\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	profile, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	def := Default()
	if profile.Strategy.MaxSteps != def.Strategy.MaxSteps {
		t.Errorf("unset strategy must keep defaults, got %+v", profile.Strategy)
	}
	if profile.Model.Provider != def.Model.Provider {
		t.Errorf("unset model must keep defaults, got %+v", profile.Model)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing profile")
	}
}

func TestAPIKey(t *testing.T) {
	t.Setenv("BASIN_TEST_KEY", "secret")
	m := ModelConfig{APIKeyEnv: "BASIN_TEST_KEY"}
	if m.APIKey() != "secret" {
		t.Errorf("unexpected key: %q", m.APIKey())
	}
	if (ModelConfig{}).APIKey() != "" {
		t.Error("empty env name must yield empty key")
	}
}
