package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/swissarmyhammer/swissarmyhammer/internal/abort"
	"github.com/swissarmyhammer/swissarmyhammer/internal/swerr"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/prompt"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/ratelimit"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/resolver"
	"github.com/swissarmyhammer/swissarmyhammer/pkg/template"
)

// ToolHandler executes one registered tool call, returning the arguments'
// raw JSON for the handler to unmarshal itself (each tool knows its own
// input shape).
type ToolHandler func(ctx context.Context, clientID string, rawArgs json.RawMessage) (*mcp.CallToolResult, error)

// OnInitialized is invoked once the client sends notifications/initialized,
// the point at which spec §4.9 says file watching must start.
type OnInitialized func()

// Server is the MCP JSON-RPC dispatcher: prompts/* backed by a
// *resolver.Resolver, a fixed tool registry, and rate-limit/abort
// enforcement shared across both.
type Server struct {
	name    string
	version string

	resolver *resolver.Resolver
	engine   *template.Engine
	limiter  *ratelimit.Limiter

	mu     sync.Mutex
	writer io.Writer
	tools  map[string]ToolHandler
	meta   map[string]ToolMeta

	onInitializedOnce sync.Once
	onInitialized     OnInitialized

	abortDetect func(string) error
}

// Config bundles the Server's dependencies.
type Config struct {
	Name          string
	Version       string
	Resolver      *resolver.Resolver
	Template      *template.Engine
	Limiter       *ratelimit.Limiter
	OnInitialized OnInitialized
}

// New constructs a Server with no tools registered; call RegisterTool to add
// the issue/memo/search tool set.
func New(cfg Config) *Server {
	onInit := cfg.OnInitialized
	if onInit == nil {
		onInit = func() {}
	}
	return &Server{
		name:          cfg.Name,
		version:       cfg.Version,
		resolver:      cfg.Resolver,
		engine:        cfg.Template,
		limiter:       cfg.Limiter,
		tools:         make(map[string]ToolHandler),
		meta:          make(map[string]ToolMeta),
		onInitialized: onInit,
		abortDetect:   abort.Detect,
	}
}

// RegisterTool adds a tool to the registry, keyed by its MCP method name.
func (s *Server) RegisterTool(name string, handler ToolHandler) {
	s.tools[name] = handler
}

// RegisterToolMeta attaches descriptive metadata (description, generated
// input schema) to an already-registered tool name, surfaced by tools/list.
func (s *Server) RegisterToolMeta(name string, meta ToolMeta) {
	s.meta[name] = meta
}

func (s *Server) handleToolsList(req rpcRequest) (rpcResponse, error) {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]map[string]any, 0, len(names))
	for _, name := range names {
		entry := map[string]any{"name": name}
		if m, ok := s.meta[name]; ok {
			if m.Description != "" {
				entry["description"] = m.Description
			}
			if m.InputSchema != nil {
				entry["inputSchema"] = m.InputSchema
			}
		}
		list = append(list, entry)
	}
	return resultResponse(req.ID, map[string]any{"tools": list}), nil
}

// onInitializedRun runs the configured hook exactly once, even if the client
// sends notifications/initialized more than once.
func (s *Server) onInitializedRun() {
	s.onInitializedOnce.Do(s.onInitialized)
}

func (s *Server) handlePromptsList(req rpcRequest) (rpcResponse, error) {
	if s.resolver == nil {
		return errorResponse(req.ID, codeInternalError, "Internal error: prompt resolver not configured"), nil
	}
	prompts := s.resolver.Library.List()
	list := make([]map[string]any, 0, len(prompts))
	for _, p := range prompts {
		entry := map[string]any{
			"name":        p.Name,
			"description": p.Description,
		}
		if len(p.Arguments) > 0 {
			args := make([]map[string]any, 0, len(p.Arguments))
			for _, a := range p.Arguments {
				args = append(args, map[string]any{
					"name":        a.Name,
					"description": a.Description,
					"required":    a.Required,
				})
			}
			entry["arguments"] = args
		}
		list = append(list, entry)
	}
	return resultResponse(req.ID, map[string]any{"prompts": list}), nil
}

type promptsGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments"`
}

func (s *Server) handlePromptsGet(req rpcRequest) (rpcResponse, error) {
	if len(req.Params) == 0 {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params"), nil
	}
	var params promptsGetParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, codeInvalidParams, "Invalid params"), nil
	}
	if params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "Missing 'name' parameter"), nil
	}

	p, err := s.resolver.Library.Get(params.Name)
	if err != nil {
		return errorResponse(req.ID, codeInternalError, "Prompt not found: "+params.Name), nil
	}

	content := p.Template
	if len(params.Arguments) > 0 {
		rendered, err := s.engine.RenderWithValidation(p.Template, params.Arguments, toTemplateArgs(p.Arguments))
		if err != nil {
			return errorResponse(req.ID, codeInternalError, "Template rendering error: "+err.Error()), nil
		}
		content = rendered
	}

	if abortErr := s.abortDetect(content); abortErr != nil {
		return errorResponse(req.ID, codeInternalError, abortErr.Error()), abortErr
	}

	return resultResponse(req.ID, map[string]any{
		"description": p.Description,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": map[string]any{
					"type": "text",
					"text": content,
				},
			},
		},
	}), nil
}

func toTemplateArgs(args []prompt.Argument) []template.Argument {
	out := make([]template.Argument, 0, len(args))
	for _, a := range args {
		ta := template.Argument{Name: a.Name, Required: a.Required}
		if a.HasDefault {
			d := a.Default
			ta.Default = &d
		}
		out = append(out, ta)
	}
	return out
}

// rateLimitClientID is the synthetic client identity spec §4.9 allows for
// stdio transports, which have no natural per-connection identity.
const rateLimitClientID = "unknown"

// checkRateLimit charges one request of method's operation class against
// the shared limiter. handleRequest calls it for every request that carries
// an id — not just tool calls — so prompts/list, prompts/get, initialize and
// tools/list are metered the same way; notifications are not charged.
func (s *Server) checkRateLimit(method string) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Allow(rateLimitClientID, rateLimitOperation(method), 1)
}

func (s *Server) handleToolCall(ctx context.Context, req rpcRequest, handler ToolHandler) (rpcResponse, error) {
	result, err := handler(ctx, rateLimitClientID, req.Params)
	if err != nil {
		if swerr.Is(err, swerr.KindValidation) {
			return errorResponse(req.ID, codeInvalidParams, err.Error()), nil
		}
		return errorResponse(req.ID, codeInternalError, err.Error()), nil
	}

	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			if abortErr := s.abortDetect(tc.Text); abortErr != nil {
				return resultResponse(req.ID, result), abortErr
			}
		}
	}
	return resultResponse(req.ID, result), nil
}

// rateLimitOperation maps a tool's MCP method name onto the operation class
// pkg/ratelimit charges it against, per spec §4.10's named expensive-operation
// list ("search", "workflow_run", "complex_query").
func rateLimitOperation(method string) string {
	switch method {
	case "search_query", "search_index":
		return ratelimit.OperationSearch
	case "workflow_run":
		return ratelimit.OperationWorkflowRun
	default:
		return method
	}
}
