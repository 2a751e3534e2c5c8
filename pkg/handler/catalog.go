package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"github.com/conduitmcp/conduit/pkg/mcp"
)

// ToolFunc executes one tool call. Arguments have passed schema validation
// before the function runs.
type ToolFunc func(ctx context.Context, hc *Context, args json.RawMessage) (*mcp.CallToolResult, error)

// ResourceFunc reads one resource.
type ResourceFunc func(ctx context.Context, hc *Context) (*mcp.ReadResourceResult, error)

// PromptFunc renders one prompt.
type PromptFunc func(ctx context.Context, hc *Context, args map[string]string) (*mcp.GetPromptResult, error)

// CatalogLimits caps the number of registrations per kind. Zero means
// unlimited.
type CatalogLimits struct {
	MaxTools     int
	MaxResources int
	MaxPrompts   int
}

type toolEntry struct {
	tool mcp.Tool
	fn   ToolFunc
}

type resourceEntry struct {
	resource mcp.Resource
	fn       ResourceFunc
}

type promptEntry struct {
	prompt mcp.Prompt
	fn     PromptFunc
}

// Catalog is an insertion-ordered registry of tools, resources, and
// prompts. Registration happens before the server starts and fails fast on
// duplicates or cap violations; afterwards the catalog is read-only and
// safe for concurrent readers.
type Catalog struct {
	limits CatalogLimits

	tools     []toolEntry
	toolIdx   map[string]int
	resources []resourceEntry
	resIdx    map[string]int
	prompts   []promptEntry
	promptIdx map[string]int
}

// NewCatalog creates an empty catalog with the given caps.
func NewCatalog(limits CatalogLimits) *Catalog {
	return &Catalog{
		limits:    limits,
		toolIdx:   make(map[string]int),
		resIdx:    make(map[string]int),
		promptIdx: make(map[string]int),
	}
}

// AddTool registers a tool. A duplicate name or a registration over
// MaxTools is a build-time error.
func (c *Catalog) AddTool(tool mcp.Tool, fn ToolFunc) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("tool %q: handler function must not be nil", tool.Name)
	}
	if _, exists := c.toolIdx[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	if c.limits.MaxTools > 0 && len(c.tools) >= c.limits.MaxTools {
		return mcp.NewTooManyTools(c.limits.MaxTools, len(c.tools)+1)
	}
	if tool.InputSchema == nil {
		// Tools without declared inputs accept an empty object.
		tool.InputSchema = &jsonschema.Schema{Type: "object"}
	}
	c.toolIdx[tool.Name] = len(c.tools)
	c.tools = append(c.tools, toolEntry{tool: tool, fn: fn})
	return nil
}

// AddResource registers a resource. A duplicate URI or a registration over
// MaxResources is a build-time error.
func (c *Catalog) AddResource(res mcp.Resource, fn ResourceFunc) error {
	if res.URI == "" {
		return fmt.Errorf("resource URI must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("resource %q: read function must not be nil", res.URI)
	}
	if _, exists := c.resIdx[res.URI]; exists {
		return fmt.Errorf("resource %q already registered", res.URI)
	}
	if c.limits.MaxResources > 0 && len(c.resources) >= c.limits.MaxResources {
		return mcp.NewTooManyResources(c.limits.MaxResources, len(c.resources)+1)
	}
	c.resIdx[res.URI] = len(c.resources)
	c.resources = append(c.resources, resourceEntry{resource: res, fn: fn})
	return nil
}

// AddPrompt registers a prompt. A duplicate name or a registration over
// MaxPrompts is a build-time error.
func (c *Catalog) AddPrompt(prompt mcp.Prompt, fn PromptFunc) error {
	if prompt.Name == "" {
		return fmt.Errorf("prompt name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("prompt %q: render function must not be nil", prompt.Name)
	}
	if _, exists := c.promptIdx[prompt.Name]; exists {
		return fmt.Errorf("prompt %q already registered", prompt.Name)
	}
	if c.limits.MaxPrompts > 0 && len(c.prompts) >= c.limits.MaxPrompts {
		return mcp.NewTooManyPrompts(c.limits.MaxPrompts, len(c.prompts)+1)
	}
	c.promptIdx[prompt.Name] = len(c.prompts)
	c.prompts = append(c.prompts, promptEntry{prompt: prompt, fn: fn})
	return nil
}

// Tools lists the registered tools in registration order.
func (c *Catalog) Tools() []mcp.Tool {
	out := make([]mcp.Tool, len(c.tools))
	for i, e := range c.tools {
		out[i] = e.tool
	}
	return out
}

// Resources lists the registered resources in registration order.
func (c *Catalog) Resources() []mcp.Resource {
	out := make([]mcp.Resource, len(c.resources))
	for i, e := range c.resources {
		out[i] = e.resource
	}
	return out
}

// Prompts lists the registered prompts in registration order.
func (c *Catalog) Prompts() []mcp.Prompt {
	out := make([]mcp.Prompt, len(c.prompts))
	for i, e := range c.prompts {
		out[i] = e.prompt
	}
	return out
}

// CatalogHandler serves a Catalog through the Handler contract.
type CatalogHandler struct {
	BaseHandler
	catalog *Catalog
}

// NewCatalogHandler wraps a catalog in a Handler.
func NewCatalogHandler(c *Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// ListTools returns the catalog's tools.
func (h *CatalogHandler) ListTools(context.Context, *Context) ([]mcp.Tool, error) {
	return h.catalog.Tools(), nil
}

// CallTool dispatches to the registered tool function.
func (h *CatalogHandler) CallTool(ctx context.Context, hc *Context, name string, args json.RawMessage) (*mcp.CallToolResult, error) {
	idx, ok := h.catalog.toolIdx[name]
	if !ok {
		return nil, mcp.NewUnknownTool(name)
	}
	return h.catalog.tools[idx].fn(ctx, hc, args)
}

// ListResources returns the catalog's resources.
func (h *CatalogHandler) ListResources(context.Context, *Context) ([]mcp.Resource, error) {
	return h.catalog.Resources(), nil
}

// ReadResource dispatches to the registered read function.
func (h *CatalogHandler) ReadResource(ctx context.Context, hc *Context, uri string) (*mcp.ReadResourceResult, error) {
	idx, ok := h.catalog.resIdx[uri]
	if !ok {
		return nil, mcp.NewUnknownResource(uri)
	}
	return h.catalog.resources[idx].fn(ctx, hc)
}

// ListPrompts returns the catalog's prompts.
func (h *CatalogHandler) ListPrompts(context.Context, *Context) ([]mcp.Prompt, error) {
	return h.catalog.Prompts(), nil
}

// GetPrompt dispatches to the registered render function.
func (h *CatalogHandler) GetPrompt(ctx context.Context, hc *Context, name string, args map[string]string) (*mcp.GetPromptResult, error) {
	idx, ok := h.catalog.promptIdx[name]
	if !ok {
		return nil, mcp.NewUnknownPrompt(name)
	}
	return h.catalog.prompts[idx].fn(ctx, hc, args)
}

// Compile-time check that CatalogHandler implements Handler.
var _ Handler = (*CatalogHandler)(nil)

// ToolFor derives a tool definition from a Go input type. The input schema
// is generated from T's fields and json tags; the returned ToolFunc
// unmarshals validated arguments into T before calling fn.
func ToolFor[T any](name, description string, fn func(ctx context.Context, hc *Context, input T) (*mcp.CallToolResult, error)) (mcp.Tool, ToolFunc, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return mcp.Tool{}, nil, fmt.Errorf("derive schema for tool %q: %w", name, err)
	}
	tool := mcp.Tool{Name: name, Description: description, InputSchema: schema}
	call := func(ctx context.Context, hc *Context, args json.RawMessage) (*mcp.CallToolResult, error) {
		var input T
		if len(args) > 0 {
			if err := json.Unmarshal(args, &input); err != nil {
				return nil, mcp.NewInvalidParams(err.Error())
			}
		}
		return fn(ctx, hc, input)
	}
	return tool, call, nil
}
