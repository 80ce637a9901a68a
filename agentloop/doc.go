// Package agentloop drives a task to a terminal answer through bounded
// steps and retries.
//
// The loop runs at most MaxSteps outer steps; within a step, a lifeline
// budget bounds retries, so a run never exceeds
// MaxSteps * (MaxLifelinesPerStep + 1) attempts. Each attempt filters the
// effective input, perceives relevant capability groups, asks the planner
// for a solve() plan, executes it in the sandbox, and classifies the
// outcome: finished (terminal), needs more processing (forward content into
// the next attempt), or failed (consume a lifeline and retry).
//
// Faults local to one attempt never escape the loop; they become logged
// events plus a lifeline decrement. Exhausting steps is not an error — the
// run terminates with a sentinel final answer.
package agentloop
