package stages

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownStage is returned for codes absent from the registry.
var ErrUnknownStage = errors.New("unknown stage")

// ErrInvalidCatalog wraps every registry construction failure.
var ErrInvalidCatalog = errors.New("invalid stage catalog")

// Registry is the immutable, validated stage catalogue.
type Registry struct {
	ordered []Definition
	index   map[Code]int
}

// NewRegistry validates the definitions and builds a registry ordered by
// rank. It rejects empty catalogues, blank or duplicate codes, duplicate
// ranks, negative capacities, allowed-next targets missing from the
// catalogue, and stages that list themselves as a successor.
func NewRegistry(defs []Definition) (*Registry, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: no stages defined", ErrInvalidCatalog)
	}

	ordered := make([]Definition, 0, len(defs))
	codes := make(map[Code]struct{}, len(defs))
	ranks := make(map[int]Code, len(defs))
	for _, def := range defs {
		code := Code(strings.TrimSpace(string(def.Code)))
		if code == "" {
			return nil, fmt.Errorf("%w: stage with rank %d has empty code", ErrInvalidCatalog, def.Rank)
		}
		if _, dup := codes[code]; dup {
			return nil, fmt.Errorf("%w: duplicate stage code %q", ErrInvalidCatalog, code)
		}
		if other, dup := ranks[def.Rank]; dup {
			return nil, fmt.Errorf("%w: stages %q and %q share rank %d", ErrInvalidCatalog, other, code, def.Rank)
		}
		if def.Capacity < 0 {
			return nil, fmt.Errorf("%w: stage %q has negative capacity", ErrInvalidCatalog, code)
		}
		if def.TimeLimit < 0 {
			return nil, fmt.Errorf("%w: stage %q has negative time limit", ErrInvalidCatalog, code)
		}
		codes[code] = struct{}{}
		ranks[def.Rank] = code
		cp := def.clone()
		cp.Code = code
		ordered = append(ordered, cp)
	}

	for _, def := range ordered {
		seen := make(map[Code]struct{}, len(def.AllowedNext))
		for _, next := range def.AllowedNext {
			if next == def.Code {
				return nil, fmt.Errorf("%w: stage %q lists itself as a successor", ErrInvalidCatalog, def.Code)
			}
			if _, ok := codes[next]; !ok {
				return nil, fmt.Errorf("%w: stage %q allows unknown successor %q", ErrInvalidCatalog, def.Code, next)
			}
			if _, dup := seen[next]; dup {
				return nil, fmt.Errorf("%w: stage %q lists successor %q twice", ErrInvalidCatalog, def.Code, next)
			}
			seen[next] = struct{}{}
		}
	}

	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	reg := &Registry{
		ordered: ordered,
		index:   make(map[Code]int, len(ordered)),
	}
	for idx, def := range ordered {
		reg.index[def.Code] = idx
	}
	return reg, nil
}

// MustNewRegistry is NewRegistry for process start-up, where a malformed
// catalogue is fatal.
func MustNewRegistry(defs []Definition) *Registry {
	reg, err := NewRegistry(defs)
	if err != nil {
		panic(err)
	}
	return reg
}

// Get returns the definition for code.
func (r *Registry) Get(code Code) (Definition, error) {
	idx, ok := r.index[code]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownStage, code)
	}
	return r.ordered[idx].clone(), nil
}

// Has reports whether code is a registered stage.
func (r *Registry) Has(code Code) bool {
	_, ok := r.index[code]
	return ok
}

// RankOf returns the rank of code.
func (r *Registry) RankOf(code Code) (int, error) {
	idx, ok := r.index[code]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownStage, code)
	}
	return r.ordered[idx].Rank, nil
}

// Position returns the zero-based index of code in the canonical ordering.
func (r *Registry) Position(code Code) (int, bool) {
	pos, ok := r.index[code]
	return pos, ok
}

// Ordered returns every definition sorted by ascending rank.
func (r *Registry) Ordered() []Definition {
	out := make([]Definition, len(r.ordered))
	for i, def := range r.ordered {
		out[i] = def.clone()
	}
	return out
}

// Codes returns every stage code sorted by ascending rank.
func (r *Registry) Codes() []Code {
	out := make([]Code, len(r.ordered))
	for i, def := range r.ordered {
		out[i] = def.Code
	}
	return out
}

// Initial returns the minimum-rank stage, where new jobs start.
func (r *Registry) Initial() Definition {
	return r.ordered[0].clone()
}

// IsTerminal reports whether code names a stage with no successors. Unknown
// codes are not terminal.
func (r *Registry) IsTerminal(code Code) bool {
	idx, ok := r.index[code]
	if !ok {
		return false
	}
	return r.ordered[idx].IsTerminal()
}

// Len returns the number of stages.
func (r *Registry) Len() int {
	return len(r.ordered)
}

// TotalCapacity sums the capacity of every stage.
func (r *Registry) TotalCapacity() int {
	total := 0
	for _, def := range r.ordered {
		total += def.Capacity
	}
	return total
}
