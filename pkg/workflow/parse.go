package workflow

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	mermaidFence   = regexp.MustCompile("(?s)```mermaid\\s*\\n(.*?)```")
	transitionLine = regexp.MustCompile(`^(\S+)\s*-->\s*(\S+)(?:\s*:\s*(.+))?$`)
	actionLine     = regexp.MustCompile(`^-\s*([^:]+):\s*(.+)$`)
)

type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ParseDocument parses a markdown document with optional YAML frontmatter, a
// fenced ```mermaid stateDiagram-v2 block, and an "## Actions" section into a
// Workflow, then runs Validate() and returns the collected errors (if any)
// alongside the parsed workflow.
func ParseDocument(doc string) (*Workflow, []string, error) {
	body := doc
	fm := frontmatter{}
	if rest, header, ok := splitFrontmatter(doc); ok {
		if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
			return nil, nil, fmt.Errorf("parsing frontmatter: %w", err)
		}
		body = rest
	}

	diagram := mermaidFence.FindStringSubmatch(body)
	if diagram == nil {
		return nil, nil, fmt.Errorf("no ```mermaid stateDiagram-v2 block found")
	}

	w := NewWorkflow(fm.Name, fm.Description, "")
	if err := parseDiagram(w, diagram[1]); err != nil {
		return nil, nil, err
	}

	actions, err := parseActionsSection(body)
	if err != nil {
		return nil, nil, err
	}
	for stateID, action := range actions {
		s, ok := w.States[stateID]
		if !ok {
			return nil, nil, fmt.Errorf("action references undeclared state: %s", stateID)
		}
		s.Action = action
		w.States[stateID] = s
	}

	return w, w.Validate(), nil
}

func splitFrontmatter(content string) (body, header string, ok bool) {
	const delim = "---"
	lines := strings.SplitAfter(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != delim {
		return content, "", false
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == delim {
			return strings.Join(lines[i+1:], ""), strings.Join(lines[1:i], ""), true
		}
	}
	return content, "", false
}

func ensureState(w *Workflow, id string) {
	if _, ok := w.States[id]; !ok {
		w.States[id] = State{ID: id}
	}
}

func parseDiagram(w *Workflow, diagram string) error {
	for _, rawLine := range strings.Split(diagram, "\n") {
		line := strings.TrimSpace(rawLine)
		line = strings.TrimSuffix(line, ";")
		if line == "" || strings.HasPrefix(line, "stateDiagram") || strings.HasPrefix(line, "%%") {
			continue
		}
		m := transitionLine.FindStringSubmatch(line)
		if m == nil {
			continue // comments, notes, and other Mermaid directives are not interpreted
		}
		from, to, label := m[1], m[2], strings.TrimSpace(m[3])

		switch {
		case from == "[*]":
			w.InitialState = to
			ensureState(w, to)
		case to == "[*]":
			ensureState(w, from)
			s := w.States[from]
			s.IsTerminal = true
			w.States[from] = s
		default:
			ensureState(w, from)
			ensureState(w, to)
			w.AddTransition(Transition{
				FromState: from,
				ToState:   to,
				Condition: conditionFromLabel(label),
				Label:     label,
			})
		}
	}
	return nil
}

// conditionFromLabel maps a transition's ": label" text to a Condition.
// An empty label is Always; "on_success"/"success" and "on_failure"/"failure"
// (case-insensitive) select the corresponding built-in condition; anything
// else is a Custom expression.
func conditionFromLabel(label string) Condition {
	switch strings.ToLower(label) {
	case "":
		return Condition{Type: ConditionAlways}
	case "on_success", "success":
		return Condition{Type: ConditionOnSuccess}
	case "on_failure", "failure":
		return Condition{Type: ConditionOnFailure}
	default:
		return Condition{Type: ConditionCustom, Expression: label}
	}
}

// parseActionsSection extracts "- StateId: DSL-phrase" lines from the
// "## Actions" heading to the next heading (or end of document), parsing
// each phrase into an Action.
func parseActionsSection(body string) (map[string]Action, error) {
	out := make(map[string]Action)
	lines := strings.Split(body, "\n")

	inSection := false
	for _, rawLine := range lines {
		line := strings.TrimSpace(rawLine)
		if strings.HasPrefix(line, "#") {
			inSection = strings.EqualFold(strings.TrimLeft(line, "# "), "Actions") || line == "## Actions"
			continue
		}
		if !inSection || line == "" {
			continue
		}
		m := actionLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		stateID := strings.TrimSpace(m[1])
		phrase := strings.TrimSpace(m[2])
		action, err := parseActionPhrase(phrase)
		if err != nil {
			return nil, fmt.Errorf("state %s: %w", stateID, err)
		}
		out[stateID] = action
	}
	return out, nil
}

// parseActionPhrase parses one Action DSL phrase, per spec §4.7.
func parseActionPhrase(phrase string) (Action, error) {
	tokens := tokenize(phrase)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty action phrase")
	}

	switch tokens[0] {
	case "Execute":
		return parseExecute(tokens)
	case "Run":
		return parseRun(tokens)
	case "Log":
		return parseLog(tokens)
	case "Set":
		return parseSet(tokens)
	case "Wait":
		return parseWait(tokens)
	default:
		return nil, fmt.Errorf("unrecognised action verb: %s", tokens[0])
	}
}

func parseExecute(tokens []string) (Action, error) {
	if len(tokens) < 3 || tokens[1] != "prompt" {
		return nil, fmt.Errorf(`expected "Execute prompt \"NAME\" ..."`)
	}
	name := unquote(tokens[2])
	vars := make(map[string]string)
	for _, t := range tokens[3:] {
		if t == "with" {
			continue
		}
		if k, v, ok := splitKV(t); ok {
			vars[k] = v
		}
	}
	return PromptAction{PromptName: name, Variables: vars}, nil
}

func parseRun(tokens []string) (Action, error) {
	if len(tokens) < 3 || tokens[1] != "workflow" {
		return nil, fmt.Errorf(`expected "Run workflow \"NAME\" ..."`)
	}
	name := unquote(tokens[2])
	inputs := make(map[string]string)
	resultVar := ""
	var timeout time.Duration
	for _, t := range tokens[3:] {
		if t == "with" {
			continue
		}
		if k, v, ok := splitKV(t); ok {
			switch k {
			case "result":
				resultVar = v
			case "timeout":
				d, err := time.ParseDuration(v)
				if err != nil {
					return nil, fmt.Errorf("parsing sub-workflow timeout %q: %w", v, err)
				}
				timeout = d
			default:
				inputs[k] = v
			}
		}
	}
	return SubWorkflowAction{WorkflowName: name, Inputs: inputs, ResultVariable: resultVar, Timeout: timeout}, nil
}

func parseLog(tokens []string) (Action, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf(`expected "Log \"MESSAGE\""`)
	}
	severity := LogInfo
	messageToken := tokens[1]
	switch tokens[1] {
	case "warning":
		severity = LogWarning
		if len(tokens) < 3 {
			return nil, fmt.Errorf(`expected "Log warning \"MESSAGE\""`)
		}
		messageToken = tokens[2]
	case "error":
		severity = LogError
		if len(tokens) < 3 {
			return nil, fmt.Errorf(`expected "Log error \"MESSAGE\""`)
		}
		messageToken = tokens[2]
	}
	return LogAction{Severity: severity, Message: unquote(messageToken)}, nil
}

func parseSet(tokens []string) (Action, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf(`expected "Set NAME=\"VALUE\""`)
	}
	k, v, ok := splitKV(tokens[1])
	if !ok {
		return nil, fmt.Errorf(`expected "Set NAME=\"VALUE\""`)
	}
	return SetVariableAction{Name: k, ValueTemplate: v}, nil
}

func parseWait(tokens []string) (Action, error) {
	if len(tokens) < 2 {
		return nil, fmt.Errorf(`expected "Wait DURATION"`)
	}
	message := ""
	for i := 2; i < len(tokens); i++ {
		if tokens[i] == "message" && i+1 < len(tokens) {
			message = unquote(tokens[i+1])
		}
	}
	return WaitAction{Duration: tokens[1], Message: message}, nil
}

// tokenize splits an action phrase on unquoted whitespace, keeping
// "key=\"value with spaces\"" and standalone "quoted strings" as single
// tokens.
func tokenize(phrase string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	for _, r := range phrase {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			cur.WriteRune(r)
		case r == ' ' && !inQuotes:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

// splitKV splits a "key=\"value\"" token, unquoting the value.
func splitKV(token string) (key, value string, ok bool) {
	idx := strings.Index(token, "=")
	if idx < 0 {
		return "", "", false
	}
	return token[:idx], unquote(token[idx+1:]), true
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
