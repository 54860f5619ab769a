package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/swissarmyhammer/swissarmyhammer/pkg/issues"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/memo"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/prompt"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/ratelimit"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/resolver"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/template"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/workflow"
)

type memoryWorkflowLoader struct {
	workflows map[string]*workflow.Workflow
}

func (m *memoryWorkflowLoader) LoadWorkflow(name string) (*workflow.Workflow, error) {
	w, ok := m.workflows[name]
	if !ok {
		return nil, fmt.Errorf("workflow not found: %s", name)
	}
	return w, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	r := resolver.New()
	r.Library.Add(prompt.Prompt{
		Name:        "greet",
		Description: "greets a user",
		Arguments:   []prompt.Argument{{Name: "user", Required: true}},
		Template:    "hello {{ user }}",
	})

	issueDir := t.TempDir()
	issueStore, err := issues.New(issueDir)
	if err != nil {
		t.Fatalf("issues.New: %v", err)
	}
	memoStore, err := memo.New(t.TempDir())
	if err != nil {
		t.Fatalf("memo.New: %v", err)
	}

	s := New(Config{
		Name:     "swissarmyhammer",
		Version:  "test",
		Resolver: r,
		Template: template.New(),
		Limiter:  ratelimit.New(ratelimit.DefaultConfig()),
	})
	RegisterIssueTools(s, issueStore)
	RegisterMemoTools(s, memoStore)
	RegisterSearchTools(s)

	greeting := workflow.NewWorkflow("greeting", "", "greet")
	greeting.AddState(workflow.State{ID: "greet", Action: workflow.SetVariableAction{Name: "greeted", ValueTemplate: "yes"}})
	greeting.AddState(workflow.State{ID: "done", IsTerminal: true})
	greeting.AddTransition(workflow.Transition{FromState: "greet", ToState: "done", Condition: workflow.Condition{Type: workflow.ConditionAlways}})
	loader := &memoryWorkflowLoader{workflows: map[string]*workflow.Workflow{"greeting": greeting}}
	executor := &workflow.Executor{Template: template.New(), Metrics: workflow.NewMetrics(), Loader: loader}
	RegisterWorkflowTools(s, executor, loader)

	return s
}

func runLines(t *testing.T, s *Server, lines ...string) []map[string]any {
	t.Helper()
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	var out bytes.Buffer
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var responses []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("unmarshal response %q: %v", line, err)
		}
		responses = append(responses, m)
	}
	return responses
}

func TestInitializeReportsPromptsListChangedCapability(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`)
	if len(resp) != 1 {
		t.Fatalf("expected 1 response, got %d", len(resp))
	}
	result := resp[0]["result"].(map[string]any)
	caps := result["capabilities"].(map[string]any)
	prompts := caps["prompts"].(map[string]any)
	if prompts["listChanged"] != true {
		t.Fatalf("expected listChanged true, got %+v", resp[0])
	}
}

func TestPromptsListIncludesRegisteredPrompt(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":2,"method":"prompts/list"}`)
	result := resp[0]["result"].(map[string]any)
	list := result["prompts"].([]any)
	found := false
	for _, p := range list {
		if p.(map[string]any)["name"] == "greet" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 'greet' in prompts/list, got %+v", list)
	}
}

func TestPromptsListIsRateLimited(t *testing.T) {
	r := resolver.New()
	r.Library.Add(prompt.Prompt{Name: "greet", Template: "hi"})

	s := New(Config{
		Name:     "swissarmyhammer",
		Version:  "test",
		Resolver: r,
		Template: template.New(),
		Limiter: ratelimit.New(ratelimit.Config{
			GlobalPerOperation: 1,
			PerClient:          1,
			Expensive:          1,
			Window:             time.Minute,
		}),
	})

	resp := runLines(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"prompts/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"prompts/list"}`,
	)
	if resp[0]["error"] != nil {
		t.Fatalf("expected first prompts/list call to succeed, got %+v", resp[0])
	}
	errObj, ok := resp[1]["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected second prompts/list call to be rate limited, got %+v", resp[1])
	}
	if int(errObj["code"].(float64)) != codeInvalidParams {
		t.Fatalf("expected -32602, got %+v", errObj)
	}
}

func TestPromptsGetMissingNameIsInvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":3,"method":"prompts/get","params":{}}`)
	errObj := resp[0]["error"].(map[string]any)
	if int(errObj["code"].(float64)) != codeInvalidParams {
		t.Fatalf("expected -32602, got %+v", errObj)
	}
}

func TestPromptsGetUnknownNameIsInternalError(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":4,"method":"prompts/get","params":{"name":"nope"}}`)
	errObj := resp[0]["error"].(map[string]any)
	if int(errObj["code"].(float64)) != codeInternalError {
		t.Fatalf("expected -32603, got %+v", errObj)
	}
	if !strings.Contains(errObj["message"].(string), "Prompt not found") {
		t.Fatalf("expected 'Prompt not found' message, got %+v", errObj)
	}
}

func TestPromptsGetRendersWithArguments(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":5,"method":"prompts/get","params":{"name":"greet","arguments":{"user":"ada"}}}`)
	result := resp[0]["result"].(map[string]any)
	messages := result["messages"].([]any)
	content := messages[0].(map[string]any)["content"].(map[string]any)
	if content["text"] != "hello ada" {
		t.Fatalf("got %+v", content)
	}
}

func TestUnknownMethodIsMethodNotFound(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":6,"method":"bogus"}`)
	errObj := resp[0]["error"].(map[string]any)
	if int(errObj["code"].(float64)) != codeMethodNotFound {
		t.Fatalf("expected -32601, got %+v", errObj)
	}
}

func TestIssueCreateToolRoundTrip(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":7,"method":"issue_create","params":{"name":"fix-bug","content":"details"}}`)
	result := resp[0]["result"].(map[string]any)
	contentList := result["content"].([]any)
	text := contentList[0].(map[string]any)["text"].(string)
	if !strings.Contains(text, "fix-bug") {
		t.Fatalf("got %q", text)
	}
}

func TestIssueCreateMissingNameIsInvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":8,"method":"issue_create","params":{"content":"no name"}}`)
	errObj := resp[0]["error"].(map[string]any)
	if int(errObj["code"].(float64)) != codeInvalidParams {
		t.Fatalf("expected -32602, got %+v", errObj)
	}
}

func TestWorkflowRunToolCompletesAndReturnsContext(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":10,"method":"workflow_run","params":{"name":"greeting","context":{}}}`)
	result := resp[0]["result"].(map[string]any)
	contentList := result["content"].([]any)
	text := contentList[0].(map[string]any)["text"].(string)
	if !strings.Contains(text, "greeted") {
		t.Fatalf("expected rendered context in result, got %q", text)
	}
}

func TestToolsListIncludesSchemaForIssueCreate(t *testing.T) {
	s := newTestServer(t)
	resp := runLines(t, s, `{"jsonrpc":"2.0","id":11,"method":"tools/list"}`)
	result := resp[0]["result"].(map[string]any)
	list := result["tools"].([]any)
	var found map[string]any
	for _, entry := range list {
		m := entry.(map[string]any)
		if m["name"] == "issue_create" {
			found = m
		}
	}
	if found == nil {
		t.Fatalf("expected issue_create in tools/list, got %+v", list)
	}
	if found["inputSchema"] == nil {
		t.Fatalf("expected a generated inputSchema, got %+v", found)
	}
}

func TestPromptsGetAbortTextTerminatesRun(t *testing.T) {
	s := newTestServer(t)
	s.resolver.Library.Add(prompt.Prompt{Name: "bad", Template: "ABORT ERROR: stop"})
	in := strings.NewReader(`{"jsonrpc":"2.0","id":9,"method":"prompts/get","params":{"name":"bad"}}` + "\n")
	var out bytes.Buffer
	err := s.Run(context.Background(), in, &out)
	if err == nil {
		t.Fatal("expected abort error to terminate Run")
	}
}
