package router

import (
	"encoding/json"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"github.com/conduitmcp/conduit/pkg/mcp"
)

// schemaCache memoizes resolved JSON Schemas keyed by schema identity.
// Catalogs are read-only after server start, so a resolved schema is cached
// per schema pointer and reused. Resolution runs outside the lock, so
// concurrent first calls for the same schema may each resolve it.
type schemaCache struct {
	mu       sync.Mutex
	resolved map[*jsonschema.Schema]*jsonschema.Resolved
}

// validate checks args against schema. A validation failure is an
// InvalidParams; the tool function must not run. A nil schema accepts
// anything.
func (c *schemaCache) validate(schema *jsonschema.Schema, args json.RawMessage) *mcp.Error {
	if schema == nil {
		return nil
	}

	c.mu.Lock()
	if c.resolved == nil {
		c.resolved = make(map[*jsonschema.Schema]*jsonschema.Resolved)
	}
	resolved, ok := c.resolved[schema]
	c.mu.Unlock()

	if !ok {
		var err error
		resolved, err = schema.Resolve(nil)
		if err != nil {
			return mcp.NewInternalError("tool input schema does not resolve: " + err.Error())
		}
		c.mu.Lock()
		c.resolved[schema] = resolved
		c.mu.Unlock()
	}

	// Absent arguments validate as an empty object.
	instance := any(map[string]any{})
	if len(args) > 0 {
		if err := json.Unmarshal(args, &instance); err != nil {
			return mcp.NewInvalidParams("arguments are not valid JSON: " + err.Error())
		}
	}

	if err := resolved.Validate(instance); err != nil {
		return mcp.NewInvalidParams("arguments do not match tool schema: " + err.Error())
	}
	return nil
}
