// Package template implements the Liquid-style template engine: output tags
// ({{ expr | filter: arg }}), partial inclusion ({% render "name" %} / {% include "name" %}),
// and a fixed standard filter library extensible via the plugin registry (see
// pkg/plugins). Rendering is loose by default — undefined variables and
// unknown filters (outside strict mode) pass through as their literal source
// text, matching the upstream Liquid-compatible behaviour exercised by
// original_source/swissarmyhammer/src/workflow/test_liquid_rendering.rs.
//
// No Liquid-syntax library appears anywhere in the retrieved example pack
// (see DESIGN.md); the lexer/parser below is hand-rolled in the same style
// as the teacher's own hand-rolled frontmatter/schema parsers
// (pkg/parser/schema.go), built only on the standard library.
package template

import (
	"errors"
	"strings"

	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
)

// errRenderFallback signals that render should keep a node's literal source
// text (an undefined variable, an unknown filter outside strict mode, or a
// filter that returned an error) rather than treat it as a hard error.
var errRenderFallback = errors.New("template: fall back to literal source")

// PartialResolver looks up the raw template text of a named partial (prompt),
// used by {% render %} / {% include %}. The prompt library (pkg/prompt)
// implements this interface.
type PartialResolver interface {
	PartialTemplate(name string) (string, bool)
}

// Filter transforms a single value. Filters are pure functions of their input
// and arguments.
type Filter func(value string, args []string) (string, error)

// Engine renders templates against a variable mapping and a fixed filter set.
type Engine struct {
	filters  map[string]Filter
	partials PartialResolver
	strict   bool
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithPartials installs the PartialResolver used for {% render %} / {% include %}.
func WithPartials(r PartialResolver) Option {
	return func(e *Engine) { e.partials = r }
}

// WithStrict enables strict mode: unknown filters become an UnknownFilter error
// instead of rendering as literal text. Undefined variables still render loosely
// regardless of strict mode, matching upstream Liquid semantics.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithFilter registers an additional named filter, used by the plugin registry
// to expose third-party filters to every Engine it creates.
func WithFilter(name string, f Filter) Option {
	return func(e *Engine) { e.filters[name] = f }
}

// New creates an Engine pre-loaded with the standard filter library.
func New(opts ...Option) *Engine {
	e := &Engine{filters: standardFilters()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Render renders tmpl against vars. Undefined variables and (outside strict
// mode) unknown filters render to their literal source fragment rather than
// failing; malformed syntax renders the literal template as-is, matching the
// original implementation's "fall back to source text" loose-rendering
// contract. Render returns an error for a partial-inclusion cycle (inlining a
// cycle cannot terminate), for a partial tag when no PartialResolver is
// configured, and, in strict mode, for an unknown filter.
func (e *Engine) Render(tmpl string, vars map[string]string) (string, error) {
	return e.render(tmpl, vars, nil)
}

// RenderWithValidation behaves like Render but first enforces that every
// required argument in expectedArgs is present in vars or has a Default,
// returning a KindMissingRequiredArgument error otherwise.
func (e *Engine) RenderWithValidation(tmpl string, vars map[string]string, expectedArgs []Argument) (string, error) {
	merged := make(map[string]string, len(vars))
	for k, v := range vars {
		merged[k] = v
	}
	for _, arg := range expectedArgs {
		if _, ok := merged[arg.Name]; !ok {
			if arg.Default != nil {
				merged[arg.Name] = *arg.Default
				continue
			}
			if arg.Required {
				return "", swerr.Newf(swerr.KindMissingRequiredArgument, "missing required argument: %s", arg.Name)
			}
		}
	}
	return e.render(tmpl, merged, nil)
}

// Argument mirrors the subset of a prompt argument relevant to rendering.
type Argument struct {
	Name     string
	Required bool
	Default  *string
}

func (e *Engine) render(tmpl string, vars map[string]string, partialChain []string) (string, error) {
	nodes, err := parse(tmpl)
	if err != nil {
		// Malformed syntax falls back to the literal source, matching loose
		// Liquid-compatible rendering rather than a hard failure.
		return tmpl, nil
	}

	var out strings.Builder
	for _, n := range nodes {
		switch node := n.(type) {
		case textNode:
			out.WriteString(string(node))
		case outputNode:
			rendered, err := e.renderOutput(node, vars)
			if err != nil {
				if errors.Is(err, errRenderFallback) {
					out.WriteString(node.source)
					continue
				}
				return "", err
			}
			out.WriteString(rendered)
		case partialNode:
			rendered, err := e.renderPartial(node, vars, partialChain)
			if err != nil {
				return "", err
			}
			out.WriteString(rendered)
		}
	}
	return out.String(), nil
}

func (e *Engine) renderOutput(node outputNode, vars map[string]string) (string, error) {
	value, ok := vars[node.variable]
	if !ok {
		return "", errRenderFallback
	}
	for _, f := range node.filters {
		fn, known := e.filters[f.name]
		if !known {
			if e.strict {
				return "", UnknownFilterError(f.name)
			}
			// Unknown filter outside strict mode: keep the whole output tag's
			// literal source text.
			return "", errRenderFallback
		}
		rendered, err := fn(value, f.args)
		if err != nil {
			return "", errRenderFallback
		}
		value = rendered
	}
	return value, nil
}

func (e *Engine) renderPartial(node partialNode, vars map[string]string, chain []string) (string, error) {
	if e.partials == nil {
		return "", swerr.Newf(swerr.KindTemplate, "no partial resolver configured for %q", node.name)
	}
	for _, seen := range chain {
		if seen == node.name {
			full := append(append([]string{}, chain...), node.name)
			return "", swerr.Newf(swerr.KindTemplate, "partial inclusion cycle: %s", strings.Join(full, " -> "))
		}
	}
	partialTmpl, ok := e.partials.PartialTemplate(node.name)
	if !ok {
		// Unknown partial: loose rendering keeps the literal tag text.
		return node.source, nil
	}
	return e.render(partialTmpl, vars, append(chain, node.name))
}

// UnknownFilterError formats a strict-mode unknown-filter failure.
func UnknownFilterError(name string) error {
	return swerr.Newf(swerr.KindTemplate, "unknown filter: %s", name)
}
