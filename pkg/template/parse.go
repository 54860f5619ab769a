package template

import (
	"fmt"
	"strings"
)

// node is one parsed template fragment: literal text, an output expression,
// or a partial-inclusion tag.
type node interface{}

type textNode string

type filterCall struct {
	name string
	args []string
}

type outputNode struct {
	variable string
	filters  []filterCall
	source   string // original "{{ ... }}" text, used for loose fallback
}

type partialNode struct {
	name   string
	source string // original "{% render ... %}" text, used for loose fallback
}

// syntaxError reports malformed template syntax. parse returns one instead of
// partial results; the Engine's render loop treats any such error as "fall
// back to the literal template", per the loose-rendering contract.
type syntaxError struct {
	position int
	message  string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("template syntax error at %d: %s", e.position, e.message)
}

// parse splits tmpl into a sequence of text/output/partial nodes. It returns
// an error for any unclosed or malformed tag; callers treat that as "render
// the literal source" rather than propagating failure.
func parse(tmpl string) ([]node, error) {
	var nodes []node
	var text strings.Builder
	i := 0
	for i < len(tmpl) {
		if strings.HasPrefix(tmpl[i:], "{{") {
			end := strings.Index(tmpl[i:], "}}")
			if end == -1 {
				return nil, &syntaxError{position: i, message: "unclosed output tag"}
			}
			if text.Len() > 0 {
				nodes = append(nodes, textNode(text.String()))
				text.Reset()
			}
			raw := tmpl[i+2 : i+end]
			source := tmpl[i : i+end+2]
			n, err := parseOutput(raw, source)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
			i += end + 2
			continue
		}
		if strings.HasPrefix(tmpl[i:], "{%") {
			end := strings.Index(tmpl[i:], "%}")
			if end == -1 {
				return nil, &syntaxError{position: i, message: "unclosed tag block"}
			}
			if text.Len() > 0 {
				nodes = append(nodes, textNode(text.String()))
				text.Reset()
			}
			raw := tmpl[i+2 : i+end]
			source := tmpl[i : i+end+2]
			n, err := parseTag(raw, source)
			if err != nil {
				return nil, err
			}
			if n != nil {
				nodes = append(nodes, n)
			}
			i += end + 2
			continue
		}
		text.WriteByte(tmpl[i])
		i++
	}
	if text.Len() > 0 {
		nodes = append(nodes, textNode(text.String()))
	}
	return nodes, nil
}

// parseOutput parses the inside of "{{ ... }}": a variable name followed by
// zero or more "| filter" or "| filter: arg, arg" segments.
func parseOutput(raw, source string) (node, error) {
	parts := strings.Split(raw, "|")
	variable := strings.TrimSpace(parts[0])
	if variable == "" {
		return nil, &syntaxError{message: "empty output expression"}
	}

	var filters []filterCall
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, &syntaxError{message: "empty filter segment"}
		}
		nameAndArgs := strings.SplitN(part, ":", 2)
		name := strings.TrimSpace(nameAndArgs[0])
		var args []string
		if len(nameAndArgs) == 2 {
			for _, a := range strings.Split(nameAndArgs[1], ",") {
				args = append(args, unquote(strings.TrimSpace(a)))
			}
		}
		filters = append(filters, filterCall{name: name, args: args})
	}

	return outputNode{variable: variable, filters: filters, source: source}, nil
}

// parseTag parses the inside of "{% ... %}". Only render/include (partial
// inclusion) tags are recognized; any other tag is treated as unsupported
// syntax so the caller falls back to the literal template text, matching the
// original implementation's tolerance for workflow-level control tags it does
// not itself interpret.
func parseTag(raw, source string) (node, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil, &syntaxError{message: "empty tag"}
	}
	switch fields[0] {
	case "render", "include":
		if len(fields) < 2 {
			return nil, &syntaxError{message: "render/include requires a partial name"}
		}
		name := unquote(fields[1])
		if name == "" {
			return nil, &syntaxError{message: "empty partial name"}
		}
		return partialNode{name: name, source: source}, nil
	default:
		return nil, &syntaxError{message: "unsupported tag: " + fields[0]}
	}
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
