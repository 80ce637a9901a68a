package agentloop

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/martinemde/basin/dispatch"
	"github.com/martinemde/basin/heuristics"
	"github.com/martinemde/basin/memory"
	"github.com/martinemde/basin/planner"
)

// sandboxCapability is the bookkeeping name under which plan executions are
// recorded in session memory.
const sandboxCapability = "solve_sandbox"

// Planner decides the next plan. *planner.Planner satisfies it.
type Planner interface {
	DecideNextAction(ctx context.Context, req planner.Request) (string, error)
}

// Executor runs a plan and returns its result string. *sandbox.Executor
// satisfies it.
type Executor interface {
	Run(ctx context.Context, plan string, dispatcher dispatch.Dispatcher) string
}

// Indexer records finished sessions for historical retrieval.
// *history.Index satisfies it.
type Indexer interface {
	IndexSession(sessionID, sessionFile string) error
	Flush() error
}

// Deps are the loop's collaborators, injected at construction.
type Deps struct {
	Planner    Planner
	Executor   Executor
	Dispatcher dispatch.Dispatcher
	Perceiver  Perceiver
	Memory     *memory.Store
	Index      Indexer
	Logger     *slog.Logger
}

// Result is the terminal outcome of a run.
type Result struct {
	Status string `json:"status"`
	Result string `json:"result"`
}

// Loop is the top-level task state machine: at most MaxSteps outer steps,
// each with a lifeline-bounded inner retry loop.
type Loop struct {
	sessionID  string
	profile    StrategyProfile
	planner    Planner
	executor   Executor
	dispatcher dispatch.Dispatcher
	perceiver  Perceiver
	store      *memory.Store
	index      Indexer
	emitter    *EventEmitter
	logger     *slog.Logger
}

// New creates a Loop. Memory, Index, and Logger may be nil; Perceiver
// defaults to the keyword perceiver over the dispatcher.
func New(profile StrategyProfile, deps Deps) *Loop {
	sessionID := uuid.New().String()
	if deps.Memory != nil {
		sessionID = deps.Memory.SessionID()
	}
	if deps.Perceiver == nil {
		deps.Perceiver = NewKeywordPerceiver(deps.Dispatcher)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		sessionID:  sessionID,
		profile:    profile,
		planner:    deps.Planner,
		executor:   deps.Executor,
		dispatcher: deps.Dispatcher,
		perceiver:  deps.Perceiver,
		store:      deps.Memory,
		index:      deps.Index,
		emitter:    NewEventEmitter(sessionID, 256),
		logger:     logger.With("session_id", sessionID),
	}
}

// SessionID returns the loop's session identifier.
func (l *Loop) SessionID() string { return l.sessionID }

// Events returns the event channel for the host application.
func (l *Loop) Events() <-chan SessionEvent { return l.emitter.Events() }

// Close closes the event stream. Safe to call after Run returns.
func (l *Loop) Close() { l.emitter.Close() }

// Run drives the task to a terminal answer. Every returned result is a
// FINAL_ANSWER string; faults local to one attempt are logged and consume a
// lifeline instead of escaping. The only error returns are context
// cancellation and session persistence failures.
func (l *Loop) Run(ctx context.Context, userInput string) (Result, error) {
	l.emitter.Emit(EventSessionStart, map[string]interface{}{"input": userInput})
	if l.store != nil {
		l.store.AddRunMetadata(userInput, heuristics.ExtractEntities(userInput))
	}

	tc := NewTaskContext(userInput)
	lastAttemptFailed := false

	for step := 0; step < l.profile.MaxSteps; step++ {
		tc.Step = step
		tc.Lifelines = l.profile.MaxLifelinesPerStep
		l.logger.Info("step starting", "step", step+1, "max_steps", l.profile.MaxSteps)
		l.emitter.Emit(EventStepStart, map[string]interface{}{"step": step + 1})

		for tc.Lifelines >= 0 {
			if err := ctx.Err(); err != nil {
				l.emitter.Emit(EventError, map[string]interface{}{"error": err.Error()})
				return Result{}, err
			}
			l.emitter.Emit(EventAttemptStart, map[string]interface{}{
				"step": step + 1, "lifelines": tc.Lifelines,
			})

			done, err := l.attempt(ctx, tc, &lastAttemptFailed)
			if err != nil {
				return Result{}, err
			}
			if done == attemptFinished {
				return l.finish(tc)
			}
			if done == attemptAbortStep {
				break
			}
		}
	}

	l.logger.Warn("max steps reached without final answer")
	if lastAttemptFailed {
		tc.SetFinalAnswer(ExecutionFailedAnswer)
	} else {
		tc.SetFinalAnswer(MaxStepsAnswer)
	}
	return l.finish(tc)
}

type attemptState int

const (
	attemptContinue attemptState = iota
	attemptFinished
	attemptAbortStep
)

// attempt runs one inner iteration: filter, perceive, plan, execute,
// classify. It mutates the task context and reports how the loop should
// proceed.
func (l *Loop) attempt(ctx context.Context, tc *TaskContext, lastAttemptFailed *bool) (attemptState, error) {
	rawInput := tc.EffectiveInput()
	qr := heuristics.FilterQuery(rawInput, l.queryContext(tc))
	processed := qr.Processed
	if qr.WasModified {
		l.logger.Info("query modified by filters", "original_len", len(rawInput), "processed_len", len(processed))
	}

	perc, err := l.perceiver.Perceive(ctx, processed)
	if err != nil {
		l.logger.Warn("perception failed", "error", err)
		tc.Lifelines--
		return attemptContinue, nil
	}

	var capabilities []dispatch.Descriptor
	if len(perc.Groups) > 0 {
		capabilities = l.dispatcher.GetCapabilities(perc.Groups)
	}

	if len(capabilities) == 0 {
		if planner.HasSuppliedContent(processed) {
			l.logger.Info("no capabilities needed, processing supplied content")
		} else {
			l.logger.Warn("no capabilities selected, aborting step")
			l.emitter.Emit(EventStepAborted, map[string]interface{}{"step": tc.Step + 1})
			return attemptAbortStep, nil
		}
	}

	forceReplan := tc.Lifelines < l.profile.MaxLifelinesPerStep
	memoryItems := []memory.Item(nil)
	if l.store != nil {
		memoryItems = l.store.Items()
	}

	plan, err := l.planner.DecideNextAction(ctx, planner.Request{
		Input:              processed,
		Perception:         perc,
		MemoryItems:        memoryItems,
		Capabilities:       capabilities,
		LastResult:         tc.LastResult,
		FailedCapabilities: tc.FailedCapabilities,
		ForceReplan:        forceReplan,
	})
	if err != nil {
		if ctx.Err() != nil {
			return attemptContinue, ctx.Err()
		}
		l.logger.Warn("planning failed", "error", err)
		tc.Lifelines--
		return attemptContinue, nil
	}

	if !planner.IsPlan(plan) {
		l.logger.Warn("invalid plan, retrying", "lifelines", tc.Lifelines-1)
		l.emitter.Emit(EventPlanInvalid, map[string]interface{}{"lifelines": tc.Lifelines - 1})
		tc.Lifelines--
		return attemptContinue, nil
	}

	l.logger.Debug("running solve() plan in sandbox")
	result := strings.TrimSpace(l.executor.Run(ctx, plan, l.dispatcher))
	result = heuristics.FilterResult(result)
	outcome := ClassifyOutcome(result)
	l.emitter.Emit(EventPlanExecuted, map[string]interface{}{"outcome": outcome.Kind.String()})

	switch outcome.Kind {
	case OutcomeFinished:
		*lastAttemptFailed = false
		l.record(plan, outcome.Answer, true)
		tc.ClearFailedCapability(sandboxCapability)
		tc.LastResult = outcome.Answer
		tc.SetFinalAnswer(outcome.Answer)
		return attemptFinished, nil

	case OutcomeNeedsMore:
		*lastAttemptFailed = false
		l.record(plan, result, true)
		tc.ClearFailedCapability(sandboxCapability)
		tc.LastResult = result
		tc.Override = BuildOverrideInput(tc.UserInput, outcome.Content)
		l.logger.Info("forwarding intermediate result to next attempt", "step", tc.Step+1)
		l.emitter.Emit(EventForwarding, map[string]interface{}{"step": tc.Step + 1})
		tc.Lifelines--
		return attemptContinue, nil

	default:
		*lastAttemptFailed = true
		l.record(plan, outcome.Fault, false)
		tc.AddFailedCapability(sandboxCapability)
		tc.LastResult = outcome.Fault
		l.logger.Warn("plan execution failed, retrying", "lifelines", tc.Lifelines-1)
		tc.Lifelines--
		return attemptContinue, nil
	}
}

// queryContext gathers run metadata from session memory so the query filters
// can enhance the input with prior queries and known entities.
func (l *Loop) queryContext(tc *TaskContext) *heuristics.QueryContext {
	if l.store == nil {
		return nil
	}
	var qctx heuristics.QueryContext
	for _, item := range l.store.Items() {
		if item.Type != memory.TypeRunMetadata {
			continue
		}
		if item.UserQuery != "" && item.UserQuery != tc.UserInput {
			qctx.PreviousQueries = append(qctx.PreviousQueries, item.UserQuery)
		}
		qctx.Entities = append(qctx.Entities, item.Entities...)
	}
	if len(qctx.PreviousQueries) == 0 && len(qctx.Entities) == 0 {
		return nil
	}
	return &qctx
}

// record persists one plan execution to session memory.
func (l *Loop) record(plan, result string, success bool) {
	if l.store == nil {
		return
	}
	l.store.AddToolOutput(
		sandboxCapability,
		map[string]interface{}{"plan": plan},
		map[string]interface{}{"result": result},
		success,
		[]string{"sandbox"},
	)
}

// finish persists the final answer, indexes the session, and returns the
// terminal result.
func (l *Loop) finish(tc *TaskContext) (Result, error) {
	answer := tc.FinalAnswer()
	l.emitter.Emit(EventFinalAnswer, map[string]interface{}{"answer": answer})
	l.emitter.Emit(EventSessionEnd, nil)

	if l.store != nil {
		l.store.AddFinalAnswer(answer)
		if err := l.store.Save(); err != nil {
			return Result{}, err
		}
		if l.index != nil {
			if err := l.index.IndexSession(l.sessionID, l.store.Path()); err != nil {
				l.logger.Warn("session indexing failed", "error", err)
			} else if err := l.index.Flush(); err != nil {
				l.logger.Warn("history flush failed", "error", err)
			}
		}
	}
	return Result{Status: "done", Result: answer}, nil
}
