// Package prompt renders module inputs into provider prompt text.
//
// Every prompt is assembled from the same four sections in a fixed order.
// Builders are pure: the same input always yields the same text.
package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"scholarforge/internal/logging"
	"scholarforge/internal/schema"
	"scholarforge/internal/types"
)

// Section names one block of an assembled prompt.
type Section string

const (
	SectionTask       Section = "TASK"
	SectionParameters Section = "PARAMETERS"
	SectionContract   Section = "OUTPUT CONTRACT"
	SectionForbidden  Section = "FORBIDDEN"
)

// sectionOrder is the sequence sections appear in. Task first, forbidden last.
var sectionOrder = []Section{SectionTask, SectionParameters, SectionContract, SectionForbidden}

const sectionSeparator = "\n\n"

// Field describes one output field in the OUTPUT CONTRACT section.
type Field struct {
	Name string
	Type string
	Rule string
}

// Template is the static description of one generative module's prompt.
type Template struct {
	Module    types.ModuleID
	Task      string
	Output    []Field
	Forbidden []string
}

// Builder turns a typed module input into prompt text.
type Builder func(in schema.Input) (string, error)

// Registry is the immutable module-id → builder lookup. Only generative
// modules have an entry.
type Registry struct {
	builders map[types.ModuleID]Builder
}

// NewRegistry compiles templates into builders.
func NewRegistry(templates ...Template) (*Registry, error) {
	builders := make(map[types.ModuleID]Builder, len(templates))
	for _, t := range templates {
		if t.Module == "" {
			return nil, fmt.Errorf("prompt: template without module")
		}
		if _, dup := builders[t.Module]; dup {
			return nil, fmt.Errorf("prompt: duplicate template for %s", t.Module)
		}
		builders[t.Module] = t.builder()
	}
	return &Registry{builders: builders}, nil
}

// WithBuilder returns a copy of r with id bound to b. Used to substitute fakes.
func (r *Registry) WithBuilder(id types.ModuleID, b Builder) *Registry {
	next := make(map[types.ModuleID]Builder, len(r.builders)+1)
	for k, v := range r.builders {
		next[k] = v
	}
	next[id] = b
	return &Registry{builders: next}
}

// Lookup returns the builder for id. A missing builder means id is deterministic.
func (r *Registry) Lookup(id types.ModuleID) (Builder, bool) {
	b, ok := r.builders[id]
	return b, ok
}

// Build renders the prompt for id.
func (r *Registry) Build(id types.ModuleID, in schema.Input) (string, error) {
	b, ok := r.Lookup(id)
	if !ok {
		return "", fmt.Errorf("prompt: no builder for %s", id)
	}
	return b(in)
}

// Modules lists the ids with a builder, sorted.
func (r *Registry) Modules() []types.ModuleID {
	ids := make([]types.ModuleID, 0, len(r.builders))
	for id := range r.builders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t Template) builder() Builder {
	return func(in schema.Input) (string, error) {
		if in == nil {
			return "", fmt.Errorf("prompt: nil input for %s", t.Module)
		}
		if in.Module() != t.Module {
			return "", fmt.Errorf("prompt: %s builder given %s input", t.Module, in.Module())
		}
		params, err := json.MarshalIndent(in, "", "  ")
		if err != nil {
			return "", fmt.Errorf("prompt: render parameters for %s: %w", t.Module, err)
		}

		bodies := map[Section]string{
			SectionTask:       strings.TrimSpace(t.Task),
			SectionParameters: string(params),
			SectionContract:   t.renderContract(),
			SectionForbidden:  renderList(t.Forbidden),
		}
		var sections []string
		for _, s := range sectionOrder {
			if bodies[s] == "" {
				continue
			}
			sections = append(sections, string(s)+"\n"+bodies[s])
		}
		text := strings.Join(sections, sectionSeparator)

		logging.Get(logging.CategoryPrompt).Debug("Built %s prompt: %d sections, %d chars", t.Module, len(sections), len(text))
		return text, nil
	}
}

func (t Template) renderContract() string {
	var b strings.Builder
	b.WriteString("Respond with exactly one JSON object and nothing else. Required fields:\n")
	for _, f := range t.Output {
		fmt.Fprintf(&b, "- %s (%s)", f.Name, f.Type)
		if f.Rule != "" {
			b.WriteString(": " + f.Rule)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderList(items []string) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, "- "+it)
	}
	return strings.Join(lines, "\n")
}
