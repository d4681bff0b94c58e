package domain

import (
	"fmt"
	"strings"
)

// OptionKind identifies which selection step owns a registry.
type OptionKind string

const (
	OptionOffices    OptionKind = "gabinetes"
	OptionCategories OptionKind = "categorias"
)

// OwnerState returns the dialogue state in which registries of this kind are valid.
func (k OptionKind) OwnerState() State {
	switch k {
	case OptionOffices:
		return StateAwaitOffice
	case OptionCategories:
		return StateAwaitCategory
	}
	return ""
}

// Option is one numbered entry of a selection menu.
type Option struct {
	ID   string `json:"id"`
	Name string `json:"nome"`
}

// OptionRegistry is the numbered menu generated for a selection step.
type OptionRegistry struct {
	Kind    OptionKind `json:"kind"`
	Version int64      `json:"version"`
	Items   []Option   `json:"items"`
}

// Len returns the number of entries.
func (r *OptionRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Items)
}

// ValidFor reports whether the registry may be consulted in state.
func (r *OptionRegistry) ValidFor(state State) bool {
	return r.Len() > 0 && r.Kind.OwnerState() == state
}

// Pick returns the 1-based k-th entry.
func (r *OptionRegistry) Pick(k int) (Option, bool) {
	if k < 1 || k > r.Len() {
		return Option{}, false
	}
	return r.Items[k-1], true
}

// Render formats the registry as a numbered WhatsApp menu.
func (r *OptionRegistry) Render() string {
	lines := make([]string, 0, r.Len())
	for i, item := range r.Items {
		lines = append(lines, fmt.Sprintf("  *%d.* %s", i+1, item.Name))
	}
	return strings.Join(lines, "\n")
}
