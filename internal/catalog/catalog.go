// Package catalog holds the fixed module catalog: one immutable descriptor per
// module, built once at start and injected wherever module metadata is needed.
package catalog

import (
	"fmt"
	"regexp"
	"sort"

	"scholarforge/internal/types"
)

// Descriptor identifies a module and the structural rules its output obeys.
type Descriptor struct {
	ID              types.ModuleID
	Kind            types.Kind
	PromptVersion   string
	Audience        types.Audience
	Tier            types.Tier
	MaxOutputTokens int32

	// RequiredFields are dotted paths that must be present in the output.
	RequiredFields []string
	// ItemRequiredFields apply to each element of an item-scoped batch.
	ItemRequiredFields []string
	// ItemsField names the batch array for item-scoped modules.
	ItemsField string
	// ForbiddenPatterns encode role purity: text this module must never emit.
	ForbiddenPatterns []*regexp.Regexp
}

// Generative reports whether the module is provider-backed.
func (d Descriptor) Generative() bool {
	return d.Kind == types.KindGenerative
}

// ItemScoped reports whether the module's output is a batch gated item by item.
func (d Descriptor) ItemScoped() bool {
	return d.ItemsField != ""
}

// Catalog is an immutable lookup of descriptors.
type Catalog struct {
	byID map[types.ModuleID]Descriptor
}

// New builds a catalog from descriptors. Duplicate or empty ids are rejected.
func New(descriptors ...Descriptor) (*Catalog, error) {
	byID := make(map[types.ModuleID]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog: descriptor without id")
		}
		if _, dup := byID[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate descriptor %s", d.ID)
		}
		if d.Kind != types.KindGenerative && d.Kind != types.KindDeterministic {
			return nil, fmt.Errorf("catalog: %s has invalid kind %q", d.ID, d.Kind)
		}
		byID[d.ID] = d
	}
	return &Catalog{byID: byID}, nil
}

// Lookup returns the descriptor for id.
func (c *Catalog) Lookup(id types.ModuleID) (Descriptor, bool) {
	d, ok := c.byID[id]
	return d, ok
}

// IDs returns the catalog ids sorted alphabetically.
func (c *Catalog) IDs() []types.ModuleID {
	ids := make([]types.ModuleID, 0, len(c.byID))
	for id := range c.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// OfKind returns the ids of every module of the given kind, sorted.
func (c *Catalog) OfKind(kind types.Kind) []types.ModuleID {
	var ids []types.ModuleID
	for _, id := range c.IDs() {
		if c.byID[id].Kind == kind {
			ids = append(ids, id)
		}
	}
	return ids
}
