package stages

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Code identifies a stage definition.
type Code string

// Definition describes a single production stage.
type Definition struct {
	Code         Code
	Name         string
	Rank         int
	AllowedNext  []Code
	Requirements RequirementSet
	// TimeLimit is the budgeted time in stage; zero means no budget.
	TimeLimit time.Duration
	// Capacity is the maximum number of concurrent jobs. Only the workload
	// analyzer reads it.
	Capacity int
	// CanSkip is carried from the catalogue but not enforced.
	CanSkip bool
}

// IsTerminal reports whether the stage has no forward transitions.
func (d Definition) IsTerminal() bool {
	return len(d.AllowedNext) == 0
}

// Allows reports whether target is reachable by a single forward transition.
func (d Definition) Allows(target Code) bool {
	for _, next := range d.AllowedNext {
		if next == target {
			return true
		}
	}
	return false
}

// DisplayName returns Name, or a title-cased rendition of the code.
func (d Definition) DisplayName() string {
	if name := strings.TrimSpace(d.Name); name != "" {
		return name
	}
	return titleFromCode(d.Code)
}

func (d Definition) clone() Definition {
	cp := d
	if d.AllowedNext != nil {
		cp.AllowedNext = make([]Code, len(d.AllowedNext))
		copy(cp.AllowedNext, d.AllowedNext)
	}
	if d.Requirements != nil {
		cp.Requirements = d.Requirements.Clone()
	} else {
		cp.Requirements = RequirementSet{}
	}
	return cp
}

func titleFromCode(code Code) string {
	words := strings.ReplaceAll(strings.TrimSpace(string(code)), "_", " ")
	if words == "" {
		return ""
	}
	return cases.Title(language.English).String(words)
}
