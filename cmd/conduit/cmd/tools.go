package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/conduitmcp/conduit"
	"github.com/conduitmcp/conduit/internal/version"
	"github.com/conduitmcp/conduit/pkg/handler"
	"github.com/conduitmcp/conduit/pkg/mcp"
)

type echoInput struct {
	Text string `json:"text"`
}

type readFileInput struct {
	Path string `json:"path"`
}

type slowCountInput struct {
	Steps int `json:"steps,omitempty"`
}

// registerExampleCatalog wires the demonstration tools, resources, and
// prompts into the server.
func registerExampleCatalog(srv *conduit.Server, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root %q: %w", root, err)
	}

	if err := conduit.AddTypedTool(srv, "echo", "Echo the given text back to the caller.",
		func(_ context.Context, _ *handler.Context, in echoInput) (*mcp.CallToolResult, error) {
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(in.Text)}}, nil
		}); err != nil {
		return err
	}

	if err := conduit.AddTypedTool(srv, "read_file", "Read a text file under the served root directory.",
		func(_ context.Context, _ *handler.Context, in readFileInput) (*mcp.CallToolResult, error) {
			path, err := resolvePath(absRoot, in.Path)
			if err != nil {
				return &mcp.CallToolResult{
					Content: mcp.ErrorContent(err.Error()),
					IsError: true,
				}, nil
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return &mcp.CallToolResult{
					Content: mcp.ErrorContent(fmt.Sprintf("read %s: %v", in.Path, err)),
					IsError: true,
				}, nil
			}
			return &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent(string(data))}}, nil
		}); err != nil {
		return err
	}

	if err := conduit.AddTypedTool(srv, "slow_count", "Count slowly, streaming progress notifications.",
		func(ctx context.Context, hc *handler.Context, in slowCountInput) (*mcp.CallToolResult, error) {
			steps := in.Steps
			if steps <= 0 || steps > 100 {
				steps = 5
			}
			total := float64(steps)
			for i := 1; i <= steps; i++ {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(100 * time.Millisecond):
				}
				hc.Notifier.Progress(hc.ProgressToken, float64(i), &total)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.TextContent(fmt.Sprintf("counted to %d", steps))},
			}, nil
		}); err != nil {
		return err
	}

	if err := srv.AddResource(mcp.Resource{
		URI:         "conduit://server/runtime",
		Name:        "runtime",
		Description: "Live process runtime information",
		MIMEType:    "application/json",
	}, func(context.Context, *handler.Context) (*mcp.ReadResourceResult, error) {
		info, err := json.Marshal(map[string]any{
			"version":    version.Version,
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
			"goroutines": runtime.NumGoroutine(),
		})
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{
			{URI: "conduit://server/runtime", MIMEType: "application/json", Text: string(info)},
		}}, nil
	}); err != nil {
		return err
	}

	return srv.AddPrompt(mcp.Prompt{
		Name:        "summarize",
		Description: "Ask the model to summarize a piece of text.",
		Arguments: []mcp.PromptArgument{
			{Name: "text", Description: "The text to summarize", Required: true},
		},
	}, func(_ context.Context, _ *handler.Context, args map[string]string) (*mcp.GetPromptResult, error) {
		text, ok := args["text"]
		if !ok {
			return nil, mcp.NewInvalidParams("missing required argument: text")
		}
		return &mcp.GetPromptResult{
			Description: "Summarization request",
			Messages: []mcp.PromptMessage{
				{Role: "user", Content: mcp.TextContent("Summarize the following text concisely:\n\n" + text)},
			},
		}, nil
	})
}

// resolvePath joins a client-supplied relative path onto root and rejects
// anything that would escape it: absolute paths, traversal via .., or an
// empty path.
func resolvePath(root, p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("path is required")
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("absolute paths are not allowed: %s", p)
	}
	full := filepath.Join(root, filepath.Clean(p))
	rel, err := filepath.Rel(root, full)
	if err != nil {
		return "", fmt.Errorf("invalid path %q", p)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the served root: %s", p)
	}
	return full, nil
}
