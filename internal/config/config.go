// Package config ports the env-var loading conventions used throughout
// SwissArmyHammer's original implementation: typed values with fallback
// defaults, and a prefix-scoped Loader for grouped settings. Config values
// are threaded through constructors explicitly rather than read from a
// mutable process-wide global, so tests can build an isolated Env value
// instead of serializing on a shared os.Setenv mutex.
package config

import (
	"os"
	"strconv"
	"time"
)

// String loads key from the environment, returning def if unset or empty.
func String(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// Int loads key from the environment as an int, returning def if unset or unparseable.
func Int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Uint32 loads key from the environment as a uint32, returning def if unset or unparseable.
func Uint32(key string, def uint32) uint32 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}

// Duration loads key from the environment as a time.Duration, returning def if unset or unparseable.
func Duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Bool loads key from the environment as a bool, returning def if unset or unparseable.
func Bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Loader groups environment variables under a common prefix, e.g. "SWISSARMYHAMMER".
type Loader struct {
	prefix string
}

// NewLoader creates a Loader for the given prefix.
func NewLoader(prefix string) *Loader {
	return &Loader{prefix: prefix}
}

func (l *Loader) key(suffix string) string {
	return l.prefix + "_" + suffix
}

// String loads prefix_suffix as a string.
func (l *Loader) String(suffix, def string) string { return String(l.key(suffix), def) }

// Int loads prefix_suffix as an int.
func (l *Loader) Int(suffix string, def int) int { return Int(l.key(suffix), def) }

// Uint32 loads prefix_suffix as a uint32.
func (l *Loader) Uint32(suffix string, def uint32) uint32 { return Uint32(l.key(suffix), def) }

// Duration loads prefix_suffix as a time.Duration.
func (l *Loader) Duration(suffix string, def time.Duration) time.Duration {
	return Duration(l.key(suffix), def)
}

// Env holds the resolved, spec-defined environment configuration for one
// server instance. Unlike a package-level singleton, callers construct an
// Env explicitly (typically once, at startup) and thread it through the
// components that need it; tests construct their own Env with os.Setenv
// scoped to the test, or simply pass literal values.
type Env struct {
	IssueBranchPrefix         string
	IssueNumberWidth          int
	MaxPendingIssuesInSummary int
	MinIssueNumber            uint32
	MaxIssueNumber            uint32
	MemosDir                  string
	Home                      string
}

// LoadEnv reads the spec's environment variables, applying their documented defaults.
func LoadEnv() *Env {
	sah := NewLoader("SWISSARMYHAMMER")
	return &Env{
		IssueBranchPrefix:         sah.String("ISSUE_BRANCH_PREFIX", "issue/"),
		IssueNumberWidth:          sah.Int("ISSUE_NUMBER_WIDTH", 6),
		MaxPendingIssuesInSummary: sah.Int("MAX_PENDING_ISSUES_IN_SUMMARY", 5),
		MinIssueNumber:            sah.Uint32("MIN_ISSUE_NUMBER", 1),
		MaxIssueNumber:            sah.Uint32("MAX_ISSUE_NUMBER", 999999),
		MemosDir:                  sah.String("MEMOS_DIR", ""),
		Home:                      String("HOME", ""),
	}
}

// UserConfigDir returns $HOME/.swissarmyhammer.
func (e *Env) UserConfigDir() string {
	if e.Home == "" {
		return ".swissarmyhammer"
	}
	return e.Home + "/.swissarmyhammer"
}
