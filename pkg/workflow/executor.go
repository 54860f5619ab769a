package workflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/swissarmyhammer/swissarmyhammer/internal/logger"
	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/template"
)

var log = logger.New("workflow:executor")

// workflowStackKey is the context variable a SubWorkflowAction pushes its
// target name onto, so nested runs can detect a cycle before recursing.
const workflowStackKey = "_workflow_stack"

// Status is a run's terminal or in-progress state.
type Status int

const (
	StatusRunning Status = iota
	StatusCompleted
	StatusFailed
)

// HistoryEntry records one executed transition.
type HistoryEntry struct {
	FromState string
	ToState   string
	At        time.Time
}

// Run is one in-progress or completed execution of a Workflow.
type Run struct {
	ID           string
	Workflow     *Workflow
	CurrentState string
	Context      map[string]string
	Status       Status
	History      []HistoryEntry

	lastActionErr error
}

// NewRun seeds a fresh run at w's initial state, identified by a freshly
// generated UUID so a run-artefact file (<cwd>/.swissarmyhammer/workflow-runs/)
// or a log line can name it unambiguously.
func NewRun(w *Workflow, initialContext map[string]string) *Run {
	ctx := make(map[string]string, len(initialContext))
	for k, v := range initialContext {
		ctx[k] = v
	}
	return &Run{ID: uuid.NewString(), Workflow: w, CurrentState: w.InitialState, Context: ctx, Status: StatusRunning}
}

// PromptResolver looks up a prompt's template text and its declared
// arguments, letting the executor render PromptAction text with strict
// validation without importing pkg/prompt directly (avoids a cyclic
// dependency, since pkg/prompt has no reason to know about workflows).
type PromptResolver interface {
	ResolvePrompt(name string) (tmpl string, args []template.Argument, err error)
}

// ClaudeExecutor is the external assistant capability a PromptAction's
// rendered text is handed to. Errors are surfaced verbatim — the executor
// does not wrap them in its own retry logic, per spec §4.8.
type ClaudeExecutor interface {
	Execute(ctx context.Context, renderedPrompt string) (string, error)
}

// WorkflowLoader resolves a sub-workflow by name, loading from the
// user/local .swissarmyhammer/workflows directories in production or an
// injectable in-memory store in tests.
type WorkflowLoader interface {
	LoadWorkflow(name string) (*Workflow, error)
}

// AbortDetector scans external output for the abort-error escape hatch
// (internal/abort.Detect satisfies this signature).
type AbortDetector func(output string) error

// Executor drives Runs to completion, including sub-workflow execution.
type Executor struct {
	Prompts  PromptResolver
	Template *template.Engine
	Claude   ClaudeExecutor
	Loader   WorkflowLoader
	Abort    AbortDetector
	Metrics  *Metrics
}

// Run drives r from its current state to a terminal state, honoring ctx
// cancellation at each suspension point (action execution, Wait).
func (e *Executor) Run(ctx context.Context, r *Run) error {
	for r.Status == StatusRunning {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.step(ctx, r); err != nil {
			if swerr.Is(err, swerr.KindActionAbort) {
				r.Status = StatusFailed
				return err
			}
			return err
		}
	}
	return nil
}

// RunResult pairs a completed Run with the error its execution produced, if
// any.
type RunResult struct {
	Run *Run
	Err error
}

// RunMany drives every run in runs to completion concurrently, bounded to
// maxConcurrent in-flight at once (a conc result pool). One run's failure does not cancel the others; each result is reported
// independently.
func (e *Executor) RunMany(ctx context.Context, runs []*Run, maxConcurrent int) []RunResult {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	p := pool.NewWithResults[RunResult]().WithMaxGoroutines(maxConcurrent)
	for _, r := range runs {
		r := r
		p.Go(func() RunResult {
			return RunResult{Run: r, Err: e.Run(ctx, r)}
		})
	}
	return p.Wait()
}

func (e *Executor) step(ctx context.Context, r *Run) error {
	state, ok := r.Workflow.States[r.CurrentState]
	if !ok {
		return swerr.Newf(swerr.KindWorkflowStateNotFound, "state not found: %s", r.CurrentState)
	}

	succeeded, failed := true, false
	if state.Action != nil {
		start := time.Now()
		actionErr := e.executeAction(ctx, r, state.Action)
		if e.Metrics != nil {
			e.Metrics.RecordStateDuration(r.Workflow.Name, state.ID, time.Since(start))
		}
		if actionErr != nil {
			if swerr.Is(actionErr, swerr.KindActionAbort) {
				return actionErr
			}
			succeeded, failed = false, true
			r.lastActionErr = actionErr
		} else {
			r.lastActionErr = nil
		}
	}

	next, label := e.selectTransition(r, succeeded, failed)
	if next == "" {
		if failed {
			r.Status = StatusFailed
			return r.lastActionErr
		}
		if state.IsTerminal {
			r.Status = StatusCompleted
			return nil
		}
		// No matching transition and not terminal: the run is stuck, which
		// the original implementation treats as completion of the current
		// branch rather than an error.
		r.Status = StatusCompleted
		return nil
	}

	r.History = append(r.History, HistoryEntry{FromState: r.CurrentState, ToState: next, At: time.Now()})
	if e.Metrics != nil {
		e.Metrics.RecordTransition(r.Workflow.Name, r.CurrentState, next, label)
	}
	r.CurrentState = next

	if newState, ok := r.Workflow.States[next]; ok && newState.IsTerminal {
		r.Status = StatusCompleted
	}
	return nil
}

func (e *Executor) selectTransition(r *Run, succeeded, failed bool) (next, label string) {
	for _, t := range r.Workflow.Transitions {
		if t.FromState != r.CurrentState {
			continue
		}
		if evaluateCondition(t.Condition, r.Context, succeeded, failed) {
			return t.ToState, t.Label
		}
	}
	return "", ""
}

func (e *Executor) executeAction(ctx context.Context, r *Run, action Action) error {
	switch a := action.(type) {
	case PromptAction:
		return e.executePrompt(ctx, r, a)
	case SubWorkflowAction:
		return e.executeSubWorkflow(ctx, r, a)
	case SetVariableAction:
		return e.executeSetVariable(r, a)
	case LogAction:
		return e.executeLog(r, a)
	case WaitAction:
		return e.executeWait(ctx, r, a)
	default:
		return swerr.Newf(swerr.KindOther, "unknown action type %T", action)
	}
}

func (e *Executor) executePrompt(ctx context.Context, r *Run, a PromptAction) error {
	if e.Prompts == nil || e.Template == nil || e.Claude == nil {
		return swerr.Newf(swerr.KindOther, "executor missing prompt/template/claude dependencies")
	}
	tmpl, args, err := e.Prompts.ResolvePrompt(a.PromptName)
	if err != nil {
		return swerr.Wrapf(swerr.KindPromptNotFound, err, "resolving prompt %s", a.PromptName)
	}

	vars := renderVars(e.Template, a.Variables, r.Context)
	rendered, err := e.Template.RenderWithValidation(tmpl, vars, args)
	if err != nil {
		return err
	}

	response, err := e.Claude.Execute(ctx, rendered)
	if err != nil {
		return err
	}
	if e.Abort != nil {
		if abortErr := e.Abort(response); abortErr != nil {
			return abortErr
		}
	}
	return nil
}

func (e *Executor) executeSubWorkflow(ctx context.Context, r *Run, a SubWorkflowAction) error {
	if e.Loader == nil {
		return swerr.Newf(swerr.KindWorkflowNotFound, "no workflow loader configured for sub-workflow %s", a.WorkflowName)
	}

	stack := splitStack(r.Context[workflowStackKey])
	for _, seen := range stack {
		if seen == a.WorkflowName {
			full := append(append([]string{}, stack...), a.WorkflowName)
			return swerr.Newf(swerr.KindWorkflowCircular, "circular workflow dependency: %s", joinStack(full))
		}
	}

	sub, err := e.Loader.LoadWorkflow(a.WorkflowName)
	if err != nil {
		return swerr.Wrapf(swerr.KindWorkflowNotFound, err, "loading sub-workflow %s", a.WorkflowName)
	}

	subContext := renderVars(e.Template, a.Inputs, r.Context)
	subContext[workflowStackKey] = joinStack(append(append([]string{}, stack...), a.WorkflowName))

	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultSubWorkflowTimeout
	}
	subCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	subRun := NewRun(sub, subContext)
	if err := e.Run(subCtx, subRun); err != nil {
		if errors.Is(subCtx.Err(), context.DeadlineExceeded) {
			return swerr.Wrapf(swerr.KindWorkflowTimeout, err, "sub-workflow %s exceeded timeout %s", a.WorkflowName, timeout)
		}
		return err
	}

	if a.ResultVariable != "" {
		// Sub-run context only reaches the parent through this explicit
		// channel, preserving the state-name isolation invariant: r.CurrentState
		// is never touched by subRun's own transitions.
		r.Context[a.ResultVariable] = encodeSubContext(subRun.Context)
	}
	return nil
}

func (e *Executor) executeSetVariable(r *Run, a SetVariableAction) error {
	value := a.ValueTemplate
	if e.Template != nil {
		rendered, err := e.Template.Render(a.ValueTemplate, r.Context)
		if err == nil {
			value = rendered
		}
	}
	r.Context[a.Name] = value
	return nil
}

func (e *Executor) executeLog(r *Run, a LogAction) error {
	message := a.Message
	if e.Template != nil {
		if rendered, err := e.Template.Render(a.Message, r.Context); err == nil {
			message = rendered
		}
	}
	switch a.Severity {
	case LogWarning:
		log.Printf("[warning] %s", message)
	case LogError:
		log.Printf("[error] %s", message)
	default:
		log.Printf("%s", message)
	}
	return nil
}

func (e *Executor) executeWait(ctx context.Context, r *Run, a WaitAction) error {
	d, err := time.ParseDuration(a.Duration)
	if err != nil {
		return swerr.Wrapf(swerr.KindOther, err, "parsing wait duration %q", a.Duration)
	}
	if a.Message != "" {
		log.Printf("%s", a.Message)
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// renderVars renders every value in raw against ctx, falling back to the
// literal value on malformed template syntax (pkg/template.Render already
// does this internally).
func renderVars(engine *template.Engine, raw map[string]string, ctx map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if engine == nil {
			out[k] = v
			continue
		}
		rendered, err := engine.Render(v, ctx)
		if err != nil {
			out[k] = v
			continue
		}
		out[k] = rendered
	}
	return out
}

func splitStack(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinStack(stack []string) string {
	return strings.Join(stack, ",")
}

// encodeSubContext renders a sub-run's terminal context as a compact
// "key=value;key=value" string, the parent-visible representation of the
// sub-workflow's result under result_variable.
func encodeSubContext(ctx map[string]string) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		if k == workflowStackKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+ctx[k])
	}
	return strings.Join(pairs, ";")
}
