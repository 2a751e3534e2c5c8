package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/conduitmcp/conduit/pkg/mcp"
)

func echoFunc(_ context.Context, _ *Context, args json.RawMessage) (*mcp.CallToolResult, error) {
	return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(string(args))}}, nil
}

func TestCatalogRegistrationOrder(t *testing.T) {
	c := NewCatalog(CatalogLimits{})
	for _, name := range []string{"zulu", "alpha", "mike"} {
		if err := c.AddTool(mcp.Tool{Name: name}, echoFunc); err != nil {
			t.Fatalf("AddTool(%s) failed: %v", name, err)
		}
	}

	tools := c.Tools()
	want := []string{"zulu", "alpha", "mike"}
	for i, w := range want {
		if tools[i].Name != w {
			t.Errorf("position %d: expected %q, got %q", i, w, tools[i].Name)
		}
	}
}

func TestCatalogDuplicateToolFailsFast(t *testing.T) {
	c := NewCatalog(CatalogLimits{})
	if err := c.AddTool(mcp.Tool{Name: "echo"}, echoFunc); err != nil {
		t.Fatalf("first AddTool failed: %v", err)
	}
	if err := c.AddTool(mcp.Tool{Name: "echo"}, echoFunc); err == nil {
		t.Fatal("duplicate tool registration must fail")
	}
}

func TestCatalogToolCap(t *testing.T) {
	c := NewCatalog(CatalogLimits{MaxTools: 2})
	_ = c.AddTool(mcp.Tool{Name: "a"}, echoFunc)
	_ = c.AddTool(mcp.Tool{Name: "b"}, echoFunc)

	err := c.AddTool(mcp.Tool{Name: "c"}, echoFunc)
	if err == nil {
		t.Fatal("registration over cap must fail")
	}
	var rpcErr *mcp.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != mcp.CodeTooManyTools {
		t.Errorf("expected TooManyTools, got %v", err)
	}
}

func TestCatalogResourceAndPromptDuplicates(t *testing.T) {
	c := NewCatalog(CatalogLimits{})
	readFn := func(context.Context, *Context) (*mcp.ReadResourceResult, error) { return nil, nil }
	promptFn := func(context.Context, *Context, map[string]string) (*mcp.GetPromptResult, error) {
		return nil, nil
	}

	if err := c.AddResource(mcp.Resource{URI: "mem://a", Name: "a"}, readFn); err != nil {
		t.Fatalf("AddResource failed: %v", err)
	}
	if err := c.AddResource(mcp.Resource{URI: "mem://a", Name: "dup"}, readFn); err == nil {
		t.Error("duplicate resource URI must fail")
	}

	if err := c.AddPrompt(mcp.Prompt{Name: "p"}, promptFn); err != nil {
		t.Fatalf("AddPrompt failed: %v", err)
	}
	if err := c.AddPrompt(mcp.Prompt{Name: "p"}, promptFn); err == nil {
		t.Error("duplicate prompt name must fail")
	}
}

func TestCatalogDefaultInputSchema(t *testing.T) {
	c := NewCatalog(CatalogLimits{})
	if err := c.AddTool(mcp.Tool{Name: "bare"}, echoFunc); err != nil {
		t.Fatalf("AddTool failed: %v", err)
	}
	if c.Tools()[0].InputSchema == nil {
		t.Error("tools without a schema should get an empty object schema")
	}
}

func TestCatalogHandlerDispatch(t *testing.T) {
	c := NewCatalog(CatalogLimits{})
	_ = c.AddTool(mcp.Tool{Name: "echo"}, echoFunc)
	h := NewCatalogHandler(c)
	ctx := context.Background()
	hc := &Context{SessionID: "s1", Notifier: DiscardNotifier()}

	res, err := h.CallTool(ctx, hc, "echo", json.RawMessage(`{"x":1}`))
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if res.Content[0].Text != `{"x":1}` {
		t.Errorf("unexpected tool output: %q", res.Content[0].Text)
	}

	_, err = h.CallTool(ctx, hc, "nope", nil)
	var rpcErr *mcp.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != mcp.CodeMethodNotFound {
		t.Errorf("unknown tool should map to method-not-found, got %v", err)
	}

	_, err = h.ReadResource(ctx, hc, "mem://missing")
	if !errors.As(err, &rpcErr) || rpcErr.Code != mcp.CodeMethodNotFound {
		t.Errorf("unknown resource should map to method-not-found, got %v", err)
	}
}

func TestToolFor(t *testing.T) {
	type input struct {
		Text  string `json:"text"`
		Times int    `json:"times,omitempty"`
	}

	tool, fn, err := ToolFor[input]("repeat", "repeat text", func(_ context.Context, _ *Context, in input) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(in.Text)}}, nil
	})
	if err != nil {
		t.Fatalf("ToolFor failed: %v", err)
	}
	if tool.InputSchema == nil {
		t.Fatal("derived tool must carry an input schema")
	}

	res, err := fn(context.Background(), &Context{}, json.RawMessage(`{"text":"hi","times":2}`))
	if err != nil {
		t.Fatalf("tool func failed: %v", err)
	}
	if res.Content[0].Text != "hi" {
		t.Errorf("expected 'hi', got %q", res.Content[0].Text)
	}
}
