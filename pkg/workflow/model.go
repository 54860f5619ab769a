// Package workflow implements the Mermaid/Action-DSL workflow model, parser,
// graph analysis, and executor, grounded on
// original_source/swissarmyhammer/src/workflow/definition.rs (model and
// validate()) and original_source/swissarmyhammer/src/workflow/graph.rs
// (WorkflowGraphAnalyzer).
package workflow

import (
	"strconv"
	"strings"
)

// ConditionType classifies how a Transition's Condition is evaluated.
type ConditionType int

const (
	ConditionAlways ConditionType = iota
	ConditionOnSuccess
	ConditionOnFailure
	ConditionCustom
)

// Condition gates a Transition.
type Condition struct {
	Type       ConditionType
	Expression string // only meaningful when Type == ConditionCustom
}

// State is one node in the workflow's state machine.
type State struct {
	ID          string
	Description string
	IsTerminal  bool
	Action      Action // nil for states with no associated action
}

// Transition is one directed edge between two states.
type Transition struct {
	FromState string
	ToState   string
	Condition Condition
	Label     string
}

// Workflow is the full parsed state machine.
type Workflow struct {
	Name         string
	Description  string
	States       map[string]State
	Transitions  []Transition
	InitialState string
}

// NewWorkflow constructs an empty Workflow ready to accept states and
// transitions.
func NewWorkflow(name, description, initialState string) *Workflow {
	return &Workflow{
		Name:         name,
		Description:  description,
		States:       make(map[string]State),
		InitialState: initialState,
	}
}

// AddState inserts or replaces a state by ID.
func (w *Workflow) AddState(s State) {
	w.States[s.ID] = s
}

// AddTransition appends a transition.
func (w *Workflow) AddTransition(t Transition) {
	w.Transitions = append(w.Transitions, t)
}

// Validate checks the invariants a well-formed workflow must satisfy,
// returning the complete list of violations rather than stopping at the
// first one, matching the original implementation's collected-errors
// contract.
func (w *Workflow) Validate() []string {
	var errors []string

	if len(strings.TrimSpace(w.Name)) == 0 {
		errors = append(errors, "workflow name cannot be empty")
	}

	if _, ok := w.States[w.InitialState]; !ok {
		errors = append(errors, "initial state '"+w.InitialState+"' not found in workflow states")
	}

	for i, t := range w.Transitions {
		if len(strings.TrimSpace(t.FromState)) == 0 {
			errors = append(errors, "transition has empty source state ID: "+strconv.Itoa(i))
		}
		if len(strings.TrimSpace(t.ToState)) == 0 {
			errors = append(errors, "transition has empty target state ID: "+strconv.Itoa(i))
		}
		if _, ok := w.States[t.FromState]; !ok {
			errors = append(errors, "transition references non-existent source state: "+t.FromState)
		}
		if _, ok := w.States[t.ToState]; !ok {
			errors = append(errors, "transition references non-existent target state: "+t.ToState)
		}
	}

	hasTerminal := false
	for _, s := range w.States {
		if s.IsTerminal {
			hasTerminal = true
			break
		}
	}
	if !hasTerminal {
		errors = append(errors, "workflow must have at least one terminal state")
	}

	return errors
}
