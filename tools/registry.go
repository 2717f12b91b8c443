package tools

import (
	"context"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
)

// Capability is an executable tool implementation.
type Capability interface {
	// Schema describes the arguments the capability accepts.
	Schema() mcptypes.ToolInputSchema
	// Call runs the capability. A returned error is reported to the model
	// as text; it never aborts the turn.
	Call(ctx context.Context, args map[string]any) (string, error)
}

// Resolver maps a descriptor's import_path to a capability.
type Resolver interface {
	Resolve(ref string) (Capability, bool)
}

// StaticResolver is a fixed reference table.
type StaticResolver map[string]Capability

// Resolve implements Resolver.
func (r StaticResolver) Resolve(ref string) (Capability, bool) {
	c, ok := r[ref]
	return c, ok
}

// Tool is a catalog entry bound to its capability.
type Tool struct {
	Descriptor
	Capability Capability
}

// Rejection records a descriptor that was dropped while loading.
type Rejection struct {
	Descriptor
	Reason string
}

// Registry holds the resolved tools for the process lifetime, in catalog order.
type Registry struct {
	tools    []*Tool
	byName   map[string]*Tool
	rejected []Rejection
}

// NewRegistry resolves descriptors against resolver. Entries with an empty
// name, a duplicate name or an unresolvable reference are dropped with a
// warning and kept in Rejected; loading never fails.
func NewRegistry(descs []Descriptor, resolver Resolver, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{byName: make(map[string]*Tool, len(descs))}

	reject := func(d Descriptor, reason string) {
		logger.Warn("dropping tool descriptor",
			zap.String("name", d.Name),
			zap.String("import_path", d.ImportPath),
			zap.String("reason", reason))
		r.rejected = append(r.rejected, Rejection{Descriptor: d, Reason: reason})
	}

	for _, d := range descs {
		switch {
		case d.Name == "":
			reject(d, "missing name")
			continue
		case r.byName[d.Name] != nil:
			reject(d, "duplicate name")
			continue
		case d.ImportPath == "":
			reject(d, "missing import_path")
			continue
		}

		var impl Capability
		var ok bool
		if resolver != nil {
			impl, ok = resolver.Resolve(d.ImportPath)
		}
		if !ok || impl == nil {
			reject(d, fmt.Sprintf("unresolvable reference %q", d.ImportPath))
			continue
		}

		t := &Tool{Descriptor: d, Capability: impl}
		r.tools = append(r.tools, t)
		r.byName[d.Name] = t
		logger.Debug("registered tool", zap.String("name", d.Name), zap.String("import_path", d.ImportPath))
	}

	return r
}

// Get returns the tool with exactly this name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Tools returns the resolved tools in catalog order.
func (r *Registry) Tools() []*Tool {
	out := make([]*Tool, len(r.tools))
	copy(out, r.tools)
	return out
}

// Len returns the number of resolved tools.
func (r *Registry) Len() int { return len(r.tools) }

// Rejected returns the descriptors dropped while loading.
func (r *Registry) Rejected() []Rejection {
	out := make([]Rejection, len(r.rejected))
	copy(out, r.rejected)
	return out
}

// Catalog returns the tool declarations sent to the model, in catalog order.
func (r *Registry) Catalog() []mcptypes.Tool {
	out := make([]mcptypes.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, mcptypes.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.Capability.Schema(),
		})
	}
	return out
}
