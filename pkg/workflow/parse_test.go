package workflow

import (
	"testing"
	"time"
)

const sampleDocument = `---
name: greeting
description: Greets a user then finishes.
---

` + "```mermaid" + `
stateDiagram-v2
    [*] --> greet
    greet --> done : on_success
    greet --> retry : on_failure
    retry --> greet
    done --> [*]
` + "```" + `

## Actions

- greet: Execute prompt "hello" with name="{{ user }}"
- done: Log "finished greeting {{ user }}"
`

func TestParseDocumentBuildsWorkflow(t *testing.T) {
	w, errs, err := ParseDocument(sampleDocument)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("expected a valid workflow, got validation errors: %v", errs)
	}
	if w.Name != "greeting" {
		t.Fatalf("got name %q", w.Name)
	}
	if w.InitialState != "greet" {
		t.Fatalf("got initial state %q", w.InitialState)
	}
	doneState, ok := w.States["done"]
	if !ok || !doneState.IsTerminal {
		t.Fatalf("expected 'done' to be terminal, got %+v", doneState)
	}

	greetState := w.States["greet"]
	action, ok := greetState.Action.(PromptAction)
	if !ok {
		t.Fatalf("expected greet's action to be a PromptAction, got %T", greetState.Action)
	}
	if action.PromptName != "hello" || action.Variables["name"] != "{{ user }}" {
		t.Fatalf("got %+v", action)
	}

	logAction, ok := doneState.Action.(LogAction)
	if !ok {
		t.Fatalf("expected done's action to be a LogAction, got %T", doneState.Action)
	}
	if logAction.Message != "finished greeting {{ user }}" {
		t.Fatalf("got message %q", logAction.Message)
	}
}

func TestParseDocumentTransitionConditions(t *testing.T) {
	w, _, err := ParseDocument(sampleDocument)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawSuccess, sawFailure bool
	for _, tr := range w.Transitions {
		if tr.FromState == "greet" && tr.ToState == "done" && tr.Condition.Type == ConditionOnSuccess {
			sawSuccess = true
		}
		if tr.FromState == "greet" && tr.ToState == "retry" && tr.Condition.Type == ConditionOnFailure {
			sawFailure = true
		}
	}
	if !sawSuccess || !sawFailure {
		t.Fatalf("expected on_success/on_failure transitions, got %+v", w.Transitions)
	}
}

func TestParseActionPhraseVariants(t *testing.T) {
	cases := []struct {
		phrase string
		check  func(t *testing.T, a Action)
	}{
		{
			`Run workflow "sub" with x="1" result="out"`,
			func(t *testing.T, a Action) {
				sub, ok := a.(SubWorkflowAction)
				if !ok || sub.WorkflowName != "sub" || sub.Inputs["x"] != "1" || sub.ResultVariable != "out" {
					t.Fatalf("got %+v", a)
				}
				if sub.Timeout != 0 {
					t.Fatalf("expected zero timeout when unspecified, got %s", sub.Timeout)
				}
			},
		},
		{
			`Run workflow "sub" with x="1" timeout="30m" result="out"`,
			func(t *testing.T, a Action) {
				sub, ok := a.(SubWorkflowAction)
				if !ok || sub.WorkflowName != "sub" || sub.Inputs["x"] != "1" || sub.ResultVariable != "out" {
					t.Fatalf("got %+v", a)
				}
				if sub.Timeout != 30*time.Minute {
					t.Fatalf("expected a 30m timeout, got %s", sub.Timeout)
				}
			},
		},
		{
			`Log warning "careful"`,
			func(t *testing.T, a Action) {
				log, ok := a.(LogAction)
				if !ok || log.Severity != LogWarning || log.Message != "careful" {
					t.Fatalf("got %+v", a)
				}
			},
		},
		{
			`Set total="0"`,
			func(t *testing.T, a Action) {
				set, ok := a.(SetVariableAction)
				if !ok || set.Name != "total" || set.ValueTemplate != "0" {
					t.Fatalf("got %+v", a)
				}
			},
		},
		{
			`Wait 5s with message "pausing"`,
			func(t *testing.T, a Action) {
				wait, ok := a.(WaitAction)
				if !ok || wait.Duration != "5s" || wait.Message != "pausing" {
					t.Fatalf("got %+v", a)
				}
			},
		},
	}
	for _, c := range cases {
		a, err := parseActionPhrase(c.phrase)
		if err != nil {
			t.Fatalf("phrase %q: unexpected error: %v", c.phrase, err)
		}
		c.check(t, a)
	}
}

func TestParseDocumentRejectsMissingMermaidBlock(t *testing.T) {
	_, _, err := ParseDocument("---\nname: bad\n---\nno diagram here")
	if err == nil {
		t.Fatal("expected an error for a document with no mermaid block")
	}
}
