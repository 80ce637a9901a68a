package agentloop

import (
	"context"
	"strings"
	"testing"

	"github.com/martinemde/basin/dispatch"
	"github.com/martinemde/basin/memory"
	"github.com/martinemde/basin/planner"
)

const validPlan = "def solve():\n    return \"FINAL_ANSWER: ok\""

type stubPlanner struct {
	calls  int
	inputs []string
	plans  []string
	err    error
}

func (s *stubPlanner) DecideNextAction(_ context.Context, req planner.Request) (string, error) {
	s.calls++
	s.inputs = append(s.inputs, req.Input)
	if s.err != nil {
		return "", s.err
	}
	if len(s.plans) == 0 {
		return validPlan, nil
	}
	plan := s.plans[0]
	if len(s.plans) > 1 {
		s.plans = s.plans[1:]
	}
	return plan, nil
}

type stubExecutor struct {
	calls   int
	results []string
}

func (s *stubExecutor) Run(_ context.Context, plan string, _ dispatch.Dispatcher) string {
	s.calls++
	if len(s.results) == 0 {
		return "FINAL_ANSWER: ok"
	}
	result := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return result
}

type stubIndexer struct {
	indexCalls int
	flushCalls int
}

func (s *stubIndexer) IndexSession(sessionID, sessionFile string) error {
	s.indexCalls++
	return nil
}

func (s *stubIndexer) Flush() error {
	s.flushCalls++
	return nil
}

type stubPerceiver struct {
	perception planner.Perception
}

func (s *stubPerceiver) Perceive(_ context.Context, input string) (planner.Perception, error) {
	return s.perception, nil
}

func registryWithCalculator(t *testing.T) *dispatch.Registry {
	t.Helper()
	r := dispatch.NewRegistry()
	dispatch.RegisterBuiltinCapabilities(r)
	return r
}

func newTestLoop(t *testing.T, profile StrategyProfile, p Planner, e Executor) (*Loop, *stubIndexer, *memory.Store) {
	t.Helper()
	store := memory.NewStore("test-session", t.TempDir())
	idx := &stubIndexer{}
	loop := New(profile, Deps{
		Planner:    p,
		Executor:   e,
		Dispatcher: registryWithCalculator(t),
		Perceiver:  &stubPerceiver{perception: planner.Perception{Groups: []string{"calculator"}, Hint: "add"}},
		Memory:     store,
		Index:      idx,
	})
	return loop, idx, store
}

func TestRunFinalAnswerReturnsImmediately(t *testing.T) {
	p := &stubPlanner{}
	e := &stubExecutor{results: []string{"FINAL_ANSWER: 4"}}
	loop, idx, store := newTestLoop(t, DefaultStrategyProfile(), p, e)

	res, err := loop.Run(context.Background(), "add 2 and 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "done" || res.Result != "FINAL_ANSWER: 4" {
		t.Errorf("unexpected result: %+v", res)
	}
	if p.calls != 1 || e.calls != 1 {
		t.Errorf("expected exactly one attempt, got planner=%d executor=%d", p.calls, e.calls)
	}
	if idx.indexCalls != 1 {
		t.Errorf("expected exactly one session-index call, got %d", idx.indexCalls)
	}

	items := store.Items()
	last := items[len(items)-1]
	if last.Type != memory.TypeFinalAnswer || last.FinalAnswer != "FINAL_ANSWER: 4" {
		t.Errorf("final answer not persisted: %+v", last)
	}
}

func TestRunSynthesizesFinalAnswerPrefix(t *testing.T) {
	e := &stubExecutor{results: []string{"42"}}
	loop, _, _ := newTestLoop(t, DefaultStrategyProfile(), &stubPlanner{}, e)

	res, err := loop.Run(context.Background(), "add")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "FINAL_ANSWER: 42" {
		t.Errorf("prefix must be synthesized, got %q", res.Result)
	}
}

func TestRunEmptyCapabilitiesAbortsStep(t *testing.T) {
	p := &stubPlanner{}
	profile := DefaultStrategyProfile()
	profile.MaxSteps = 2
	store := memory.NewStore("test-session", t.TempDir())
	loop := New(profile, Deps{
		Planner:    p,
		Executor:   &stubExecutor{},
		Dispatcher: registryWithCalculator(t),
		Perceiver:  &stubPerceiver{perception: planner.Perception{}},
		Memory:     store,
		Index:      &stubIndexer{},
	})

	res, err := loop.Run(context.Background(), "What is 2+2?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 0 {
		t.Errorf("planner must not be invoked when the step aborts, got %d calls", p.calls)
	}
	if res.Result != MaxStepsAnswer {
		t.Errorf("expected max-steps sentinel, got %q", res.Result)
	}
}

func TestRunEmptyCapabilitiesProceedsWithSuppliedContent(t *testing.T) {
	p := &stubPlanner{}
	e := &stubExecutor{results: []string{"FINAL_ANSWER: summary done"}}
	profile := DefaultStrategyProfile()
	loop := New(profile, Deps{
		Planner:    p,
		Executor:   e,
		Dispatcher: registryWithCalculator(t),
		Perceiver:  &stubPerceiver{perception: planner.Perception{}},
	})

	res, err := loop.Run(context.Background(),
		"Your last tool produced this content. Summarize the key points.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("planner must be invoked for supplied-content steps, got %d calls", p.calls)
	}
	if res.Result != "FINAL_ANSWER: summary done" {
		t.Errorf("unexpected result: %q", res.Result)
	}
}

func TestRunEnhancesQueryWithSessionEntities(t *testing.T) {
	p := &stubPlanner{}
	e := &stubExecutor{results: []string{"FINAL_ANSWER: 3.7M"}}
	loop, _, _ := newTestLoop(t, DefaultStrategyProfile(), p, e)

	if _, err := loop.Run(context.Background(), "find the population of Berlin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.inputs) != 1 {
		t.Fatalf("expected 1 planner call, got %d", len(p.inputs))
	}
	if !strings.Contains(p.inputs[0], "[Entities: Berlin]") {
		t.Errorf("planner input must carry entity hints from session memory, got %q", p.inputs[0])
	}
}

func TestRunWithoutMemoryLeavesQueryUnenhanced(t *testing.T) {
	p := &stubPlanner{}
	loop := New(DefaultStrategyProfile(), Deps{
		Planner:    p,
		Executor:   &stubExecutor{},
		Dispatcher: registryWithCalculator(t),
		Perceiver:  &stubPerceiver{perception: planner.Perception{Groups: []string{"calculator"}}},
	})

	if _, err := loop.Run(context.Background(), "find the population of Berlin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.inputs) == 0 || strings.Contains(p.inputs[0], "[Entities:") {
		t.Errorf("storeless loops must not enhance the query, got %v", p.inputs)
	}
}

func TestRunFurtherProcessingBuildsOverride(t *testing.T) {
	p := &stubPlanner{}
	e := &stubExecutor{results: []string{
		"FURTHER_PROCESSING_REQUIRED: the fetched article text",
		"FINAL_ANSWER: • point",
	}}
	profile := DefaultStrategyProfile()
	loop, _, _ := newTestLoop(t, profile, p, e)

	res, err := loop.Run(context.Background(), "summarize the article")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "FINAL_ANSWER: • point" {
		t.Errorf("unexpected result: %q", res.Result)
	}
	if e.calls != 2 {
		t.Errorf("expected forwarding to trigger a second attempt, got %d", e.calls)
	}
}

func TestRunTwoInvalidPlansThenValid(t *testing.T) {
	p := &stubPlanner{plans: []string{"not a plan", "still prose", validPlan}}
	e := &stubExecutor{results: []string{"FINAL_ANSWER: third time"}}
	profile := DefaultStrategyProfile()
	profile.MaxLifelinesPerStep = 2
	loop, _, _ := newTestLoop(t, profile, p, e)

	res, err := loop.Run(context.Background(), "add the numbers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != "FINAL_ANSWER: third time" {
		t.Errorf("expected success on third attempt, got %q", res.Result)
	}
	if p.calls != 3 || e.calls != 1 {
		t.Errorf("unexpected call counts: planner=%d executor=%d", p.calls, e.calls)
	}
}

func TestRunAttemptBound(t *testing.T) {
	p := &stubPlanner{plans: []string{"never a plan"}}
	profile := StrategyProfile{MaxSteps: 2, MaxLifelinesPerStep: 1, PlanningMode: planner.ModeConservative}
	loop, _, _ := newTestLoop(t, profile, p, &stubExecutor{})

	res, err := loop.Run(context.Background(), "add the numbers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != MaxStepsAnswer {
		t.Errorf("expected max-steps sentinel, got %q", res.Result)
	}
	// max_steps * (max_lifelines_per_step + 1) attempts.
	if p.calls != 4 {
		t.Errorf("expected 4 attempts, got %d", p.calls)
	}
}

func TestRunSandboxFailureConsumesLifelines(t *testing.T) {
	e := &stubExecutor{results: []string{"[sandbox error: boom]"}}
	profile := StrategyProfile{MaxSteps: 1, MaxLifelinesPerStep: 1, PlanningMode: planner.ModeConservative}
	loop, _, store := newTestLoop(t, profile, &stubPlanner{}, e)

	res, err := loop.Run(context.Background(), "add the numbers")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result != ExecutionFailedAnswer {
		t.Errorf("expected execution-failed sentinel, got %q", res.Result)
	}
	if e.calls != 2 {
		t.Errorf("expected 2 attempts, got %d", e.calls)
	}

	failures := 0
	for _, item := range store.Items() {
		if item.Type == memory.TypeToolOutput && !item.Success {
			failures++
		}
	}
	if failures != 2 {
		t.Errorf("expected 2 failed memory records, got %d", failures)
	}
}

func TestRunPlannerErrorConsumesLifeline(t *testing.T) {
	p := &stubPlanner{err: context.DeadlineExceeded}
	profile := StrategyProfile{MaxSteps: 1, MaxLifelinesPerStep: 0, PlanningMode: planner.ModeConservative}
	store := memory.NewStore("test-session", t.TempDir())
	loop := New(profile, Deps{
		Planner:    p,
		Executor:   &stubExecutor{},
		Dispatcher: registryWithCalculator(t),
		Perceiver:  &stubPerceiver{perception: planner.Perception{Groups: []string{"calculator"}}},
		Memory:     store,
	})

	res, err := loop.Run(context.Background(), "add the numbers")
	if err != nil {
		t.Fatalf("planner errors must not escape the loop: %v", err)
	}
	if res.Result != MaxStepsAnswer {
		t.Errorf("expected max-steps sentinel, got %q", res.Result)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop, _, _ := newTestLoop(t, DefaultStrategyProfile(), &stubPlanner{}, &stubExecutor{})

	if _, err := loop.Run(ctx, "anything"); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestClassifyOutcome(t *testing.T) {
	cases := []struct {
		result string
		kind   OutcomeKind
	}{
		{"FINAL_ANSWER: 4", OutcomeFinished},
		{"FURTHER_PROCESSING_REQUIRED: content", OutcomeNeedsMore},
		{"[sandbox error: boom]", OutcomeFailed},
		{"bare result", OutcomeFinished},
	}
	for _, tc := range cases {
		if got := ClassifyOutcome(tc.result); got.Kind != tc.kind {
			t.Errorf("ClassifyOutcome(%q).Kind = %v, want %v", tc.result, got.Kind, tc.kind)
		}
	}

	o := ClassifyOutcome("FURTHER_PROCESSING_REQUIRED:   some content  ")
	if o.Content != "some content" {
		t.Errorf("content must be trimmed, got %q", o.Content)
	}
	if got := ClassifyOutcome("bare").Answer; got != "FINAL_ANSWER: bare" {
		t.Errorf("prefix must be synthesized, got %q", got)
	}
}

func TestBuildOverrideInputTemplates(t *testing.T) {
	summary := BuildOverrideInput("summarize this page", "CONTENT")
	if !strings.Contains(summary, "Summarize this content into key points") ||
		!strings.Contains(summary, "CONTENT") ||
		!strings.Contains(summary, "Original user task: summarize this page") {
		t.Errorf("unexpected summary override: %q", summary)
	}

	analysis := BuildOverrideInput("identify topics in the page", "CONTENT")
	if !strings.Contains(analysis, "extract the main topics") {
		t.Errorf("unexpected analysis override: %q", analysis)
	}

	generic := BuildOverrideInput("what is the population", "CONTENT")
	if !strings.Contains(generic, "If this fully answers the task") {
		t.Errorf("unexpected generic override: %q", generic)
	}
}

func TestTaskContextFinalAnswerSetOnce(t *testing.T) {
	tc := NewTaskContext("task")
	tc.SetFinalAnswer("FINAL_ANSWER: first")
	tc.SetFinalAnswer("FINAL_ANSWER: second")
	if tc.FinalAnswer() != "FINAL_ANSWER: first" {
		t.Errorf("final answer must be set at most once, got %q", tc.FinalAnswer())
	}
}

func TestTaskContextFailedCapabilities(t *testing.T) {
	tc := NewTaskContext("task")
	tc.AddFailedCapability("a")
	tc.AddFailedCapability("a")
	tc.AddFailedCapability("b")
	if len(tc.FailedCapabilities) != 2 {
		t.Errorf("failed list must deduplicate: %v", tc.FailedCapabilities)
	}
	tc.ClearFailedCapability("a")
	if len(tc.FailedCapabilities) != 1 || tc.FailedCapabilities[0] != "b" {
		t.Errorf("unexpected failed list after clear: %v", tc.FailedCapabilities)
	}
}

func TestKeywordPerceiver(t *testing.T) {
	r := registryWithCalculator(t)
	p := NewKeywordPerceiver(r)

	perc, err := p.Perceive(context.Background(), "add two numbers together")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, g := range perc.Groups {
		if g == "calculator" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected calculator group, got %v", perc.Groups)
	}
	if perc.Hint == "" {
		t.Error("expected a routing hint")
	}

	empty, err := p.Perceive(context.Background(), "zzz qqq")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty.Groups) != 0 {
		t.Errorf("unmatched input must select no groups, got %v", empty.Groups)
	}
}
