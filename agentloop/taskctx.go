package agentloop

// TaskContext is the mutable state of one task, owned exclusively by the
// loop. Collaborators receive values from it and report back via return
// values; only the loop writes it.
type TaskContext struct {
	UserInput string
	// Override forwards intermediate content into the next attempt. When
	// set, it replaces UserInput as the effective input.
	Override string

	Step      int
	Lifelines int

	LastResult         string
	FailedCapabilities []string

	finalAnswer string
}

// NewTaskContext creates the context for one task run.
func NewTaskContext(userInput string) *TaskContext {
	return &TaskContext{UserInput: userInput}
}

// EffectiveInput returns the override if set, else the original input.
func (t *TaskContext) EffectiveInput() string {
	if t.Override != "" {
		return t.Override
	}
	return t.UserInput
}

// FinalAnswer returns the terminal answer, empty until set.
func (t *TaskContext) FinalAnswer() string { return t.finalAnswer }

// SetFinalAnswer records the terminal answer. It is set at most once; later
// calls are ignored.
func (t *TaskContext) SetFinalAnswer(answer string) {
	if t.finalAnswer == "" {
		t.finalAnswer = answer
	}
}

// AddFailedCapability records a failed capability name, deduplicated.
func (t *TaskContext) AddFailedCapability(name string) {
	for _, n := range t.FailedCapabilities {
		if n == name {
			return
		}
	}
	t.FailedCapabilities = append(t.FailedCapabilities, name)
}

// ClearFailedCapability removes a capability from the failed list after it
// succeeds again.
func (t *TaskContext) ClearFailedCapability(name string) {
	for i, n := range t.FailedCapabilities {
		if n == name {
			t.FailedCapabilities = append(t.FailedCapabilities[:i], t.FailedCapabilities[i+1:]...)
			return
		}
	}
}
