// Package tools holds the catalog of LMS operations a chat turn may invoke,
// the static role permissions over it and the dispatcher that runs them.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/RichardoC/lms-chat/internal/canvas"
	"go.uber.org/zap"
)

// Property is one argument of a tool, described with JSON Schema types.
type Property struct {
	Type        string   `json:"type"` // integer, number, string, boolean
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// Schema captures the subset of JSON Schema used for tool arguments.
type Schema struct {
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Hints drive keyword selection. Nouns decide whether a tool is a
// candidate at all; verbs and cues add weight.
type Hints struct {
	Verbs []string
	Nouns []string
	Cues  []string
}

// Env is what a tool sees while it runs.
type Env struct {
	User      *canvas.Client // acts as the caller
	Admin     *canvas.Client // the configured token owner
	Caller    Caller
	UploadDir string
	Now       func() time.Time
	Logger    *zap.Logger
}

type RunFunc func(ctx context.Context, env Env, args Args) (any, error)

// Definition is a single catalog entry.
type Definition struct {
	Name        string
	Description string
	Params      Schema
	Mutating    bool
	// Internal tools are dispatched by the server itself and never offered
	// to a selector.
	Internal bool
	Hints    Hints
	Run      RunFunc
}

// Catalog is an ordered registry. Order matters: keyword selection breaks
// ties by registration order, so specific tools come before general ones.
type Catalog struct {
	defs   []*Definition
	byName map[string]*Definition
}

func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Definition, len(defs))}
	for i := range defs {
		def := defs[i]
		if def.Name == "" {
			return nil, fmt.Errorf("tool at position %d has no name", i)
		}
		if def.Run == nil {
			return nil, fmt.Errorf("tool %s has no run function", def.Name)
		}
		if _, exists := c.byName[def.Name]; exists {
			return nil, fmt.Errorf("tool %s already registered", def.Name)
		}
		c.defs = append(c.defs, &def)
		c.byName[def.Name] = &def
	}
	return c, nil
}

func (c *Catalog) Lookup(name string) (*Definition, bool) {
	def, ok := c.byName[name]
	return def, ok
}

// All returns every definition in registration order.
func (c *Catalog) All() []*Definition {
	out := make([]*Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Selectable returns the non-internal definitions contained in set, in
// registration order.
func (c *Catalog) Selectable(set ToolSet) []*Definition {
	out := make([]*Definition, 0, len(c.defs))
	for _, def := range c.defs {
		if !def.Internal && set.Has(def.Name) {
			out = append(out, def)
		}
	}
	return out
}

// Names returns every registered name in order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.defs))
	for i, def := range c.defs {
		names[i] = def.Name
	}
	return names
}
