package template

import (
	"strconv"
	"strings"
)

// standardFilters returns the fixed filter set every Engine starts with:
// upcase, downcase, capitalize, strip, append, prepend, default, size, join,
// first, last, replace. Plugins add to this set via WithFilter rather than
// replacing it (see pkg/plugins).
func standardFilters() map[string]Filter {
	return map[string]Filter{
		"upcase":     func(v string, _ []string) (string, error) { return strings.ToUpper(v), nil },
		"downcase":   func(v string, _ []string) (string, error) { return strings.ToLower(v), nil },
		"capitalize": capitalize,
		"strip":      func(v string, _ []string) (string, error) { return strings.TrimSpace(v), nil },
		"append":     appendFilter,
		"prepend":    prependFilter,
		"default":    defaultFilter,
		"size":       sizeFilter,
		"join":       joinFilter,
		"first":      firstFilter,
		"last":       lastFilter,
		"replace":    replaceFilter,
	}
}

func capitalize(v string, _ []string) (string, error) {
	if v == "" {
		return v, nil
	}
	return strings.ToUpper(v[:1]) + v[1:], nil
}

func appendFilter(v string, args []string) (string, error) {
	if len(args) == 0 {
		return v, nil
	}
	return v + args[0], nil
}

func prependFilter(v string, args []string) (string, error) {
	if len(args) == 0 {
		return v, nil
	}
	return args[0] + v, nil
}

func defaultFilter(v string, args []string) (string, error) {
	if v != "" || len(args) == 0 {
		return v, nil
	}
	return args[0], nil
}

func sizeFilter(v string, _ []string) (string, error) {
	return strconv.Itoa(len(splitList(v))), nil
}

func joinFilter(v string, args []string) (string, error) {
	sep := ", "
	if len(args) > 0 {
		sep = args[0]
	}
	return strings.Join(splitList(v), sep), nil
}

func firstFilter(v string, _ []string) (string, error) {
	items := splitList(v)
	if len(items) == 0 {
		return "", nil
	}
	return items[0], nil
}

func lastFilter(v string, _ []string) (string, error) {
	items := splitList(v)
	if len(items) == 0 {
		return "", nil
	}
	return items[len(items)-1], nil
}

func replaceFilter(v string, args []string) (string, error) {
	if len(args) < 2 {
		return v, nil
	}
	return strings.ReplaceAll(v, args[0], args[1]), nil
}

// splitList treats a value as a comma-separated list, the only list
// representation a plain string-keyed variable map can carry.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
