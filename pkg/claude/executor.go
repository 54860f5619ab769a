// Package claude implements the external "Claude" executor contract that
// workflow.PromptAction hands rendered prompt text to: an injected,
// opaque capability invoked as a subprocess, the same way
// githubnext-gh-aw's pkg/gateway wires a stdio MCP server command via
// exec.Command and an io-piped transport.
package claude

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/swissarmyhammer/swissarmyhammer/internal/logger"
)

var log = logger.New("claude:executor")

// CLIExecutor invokes a local "claude" binary (or compatible CLI) once per
// prompt, feeding the rendered prompt text on stdin and returning trimmed
// stdout as the assistant's response.
type CLIExecutor struct {
	Command string
	Args    []string
}

// NewCLIExecutor builds a CLIExecutor for command with args appended to
// every invocation. An empty command defaults to "claude".
func NewCLIExecutor(command string, args ...string) *CLIExecutor {
	if command == "" {
		command = "claude"
	}
	return &CLIExecutor{Command: command, Args: args}
}

// Execute runs the configured command once, writing prompt to its stdin.
// On a non-zero exit the returned error embeds the literal
// "Claude execution failed" text so the abort detector's second pattern
// always matches a failed invocation, not just the assistant's own output.
func (e *CLIExecutor) Execute(ctx context.Context, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		log.Printf("command %s failed: %v (stderr: %s)", e.Command, err, stderr.String())
		return "", fmt.Errorf("Failed: Claude command failed: Claude execution failed: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}
