package template

import (
	"testing"

	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
)

func TestRenderSubstitutesVariable(t *testing.T) {
	e := New()
	out, err := e.Render("Hello, {{ name }}!", map[string]string{"name": "World"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello, World!" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderUndefinedVariableFallsBackToLiteral(t *testing.T) {
	e := New()
	out, err := e.Render("Hello, {{ name }}!", map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello, {{ name }}!" {
		t.Fatalf("got %q, want literal fallback", out)
	}
}

func TestRenderInvalidSyntaxFallsBackToLiteral(t *testing.T) {
	e := New()
	in := "Hello, {{ name!"
	out, err := e.Render(in, map[string]string{"name": "World"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("got %q, want literal fallback %q", out, in)
	}
}

func TestRenderAppliesFilterChain(t *testing.T) {
	e := New()
	out, err := e.Render("{{ name | upcase | append: \"!\" }}", map[string]string{"name": "world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "WORLD!" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderUnknownFilterLooseModeFallsBackToLiteral(t *testing.T) {
	e := New()
	out, err := e.Render("{{ value | nonexistent_filter }}", map[string]string{"value": "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "{{ value | nonexistent_filter }}" {
		t.Fatalf("got %q, want the literal source of the output tag", out)
	}
}

func TestRenderUnknownFilterStrictModeReturnsUnknownFilterError(t *testing.T) {
	e := New(WithStrict(true))
	in := "{{ value | nonexistent_filter }}"
	_, err := e.Render(in, map[string]string{"value": "test"})
	if err == nil {
		t.Fatal("expected an unknown filter error in strict mode")
	}
	if !swerr.Is(err, swerr.KindTemplate) {
		t.Fatalf("expected KindTemplate, got %v", err)
	}
}

func TestRenderWithValidationMissingRequired(t *testing.T) {
	e := New()
	_, err := e.RenderWithValidation("{{ name }}", map[string]string{}, []Argument{{Name: "name", Required: true}})
	if err == nil {
		t.Fatal("expected missing-required-argument error")
	}
}

func TestRenderWithValidationUsesDefault(t *testing.T) {
	e := New()
	def := "fallback"
	out, err := e.RenderWithValidation("{{ name }}", map[string]string{}, []Argument{{Name: "name", Default: &def}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "fallback" {
		t.Fatalf("got %q", out)
	}
}

type mapResolver map[string]string

func (m mapResolver) PartialTemplate(name string) (string, bool) {
	t, ok := m[name]
	return t, ok
}

func TestRenderPartialInclusion(t *testing.T) {
	resolver := mapResolver{"greeting": "Hi, {{ name }}"}
	e := New(WithPartials(resolver))
	out, err := e.Render(`{% render "greeting" %}!`, map[string]string{"name": "Ada"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hi, Ada!" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderPartialCycleIsRejected(t *testing.T) {
	resolver := mapResolver{
		"a": `{% render "b" %}`,
		"b": `{% render "a" %}`,
	}
	e := New(WithPartials(resolver))
	_, err := e.Render(`{% render "a" %}`, map[string]string{})
	if err == nil {
		t.Fatal("expected a cycle-detection error")
	}
}

func TestRenderUnknownPartialFallsBackToLiteral(t *testing.T) {
	e := New(WithPartials(mapResolver{}))
	in := `{% render "missing" %}`
	out, err := e.Render(in, map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("got %q, want literal fallback %q", out, in)
	}
}

func TestFiltersIndividually(t *testing.T) {
	cases := []struct {
		name string
		tmpl string
		vars map[string]string
		want string
	}{
		{"downcase", "{{ v | downcase }}", map[string]string{"v": "ABC"}, "abc"},
		{"capitalize", "{{ v | capitalize }}", map[string]string{"v": "abc"}, "Abc"},
		{"strip", "{{ v | strip }}", map[string]string{"v": "  x  "}, "x"},
		{"prepend", "{{ v | prepend: \"pre-\" }}", map[string]string{"v": "x"}, "pre-x"},
		{"default", "{{ v | default: \"d\" }}", map[string]string{"v": ""}, "d"},
		{"size", "{{ v | size }}", map[string]string{"v": "a,b,c"}, "3"},
		{"join", "{{ v | join: \"-\" }}", map[string]string{"v": "a,b,c"}, "a-b-c"},
		{"first", "{{ v | first }}", map[string]string{"v": "a,b,c"}, "a"},
		{"last", "{{ v | last }}", map[string]string{"v": "a,b,c"}, "c"},
		{"replace", "{{ v | replace: \"a\", \"z\" }}", map[string]string{"v": "banana"}, "bznznz"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := New()
			out, err := e.Render(c.tmpl, c.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != c.want {
				t.Fatalf("got %q, want %q", out, c.want)
			}
		})
	}
}
