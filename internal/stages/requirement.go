package stages

import (
	"fmt"
	"sort"
	"strings"
)

// Requirement is a precondition tag that must be satisfied before a job
// leaves the stage that declares it.
type Requirement string

const (
	RequirementPhotosTaken        Requirement = "photos_taken"
	RequirementCustomerAuthorized Requirement = "customer_authorized"
	RequirementEstimateWritten    Requirement = "estimate_written"
	RequirementInsuranceApproved  Requirement = "insurance_approved"
	RequirementPartsOrdered       Requirement = "parts_ordered"
	RequirementPartsVerified      Requirement = "parts_verified"
	RequirementDamageDocumented   Requirement = "damage_documented"
	RequirementFrameMeasured      Requirement = "frame_measured"
	RequirementPaintMatched       Requirement = "paint_matched"
	RequirementQualityPassed      Requirement = "quality_passed"
	RequirementPaymentReceived    Requirement = "payment_received"
)

var allRequirements = []Requirement{
	RequirementPhotosTaken,
	RequirementCustomerAuthorized,
	RequirementEstimateWritten,
	RequirementInsuranceApproved,
	RequirementPartsOrdered,
	RequirementPartsVerified,
	RequirementDamageDocumented,
	RequirementFrameMeasured,
	RequirementPaintMatched,
	RequirementQualityPassed,
	RequirementPaymentReceived,
}

var requirementSet = func() map[Requirement]struct{} {
	set := make(map[Requirement]struct{}, len(allRequirements))
	for _, req := range allRequirements {
		set[req] = struct{}{}
	}
	return set
}()

// AllRequirements returns the known requirement vocabulary.
func AllRequirements() []Requirement {
	cp := make([]Requirement, len(allRequirements))
	copy(cp, allRequirements)
	return cp
}

// ParseRequirement converts a string into a known Requirement.
func ParseRequirement(value string) (Requirement, error) {
	normalized := Requirement(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := requirementSet[normalized]; !ok {
		return "", fmt.Errorf("unknown requirement %q", value)
	}
	return normalized, nil
}

// RequirementSet is an unordered set of requirement tags.
type RequirementSet map[Requirement]struct{}

// NewRequirementSet builds a set from the provided tags.
func NewRequirementSet(reqs ...Requirement) RequirementSet {
	set := make(RequirementSet, len(reqs))
	for _, req := range reqs {
		set[req] = struct{}{}
	}
	return set
}

// ParseRequirementSet parses every value and fails on the first unknown tag.
func ParseRequirementSet(values []string) (RequirementSet, error) {
	set := make(RequirementSet, len(values))
	for _, value := range values {
		req, err := ParseRequirement(value)
		if err != nil {
			return nil, err
		}
		set[req] = struct{}{}
	}
	return set, nil
}

// Contains reports whether req is in the set.
func (s RequirementSet) Contains(req Requirement) bool {
	_, ok := s[req]
	return ok
}

// Len returns the number of tags.
func (s RequirementSet) Len() int {
	return len(s)
}

// Difference returns the sorted tags in s that are absent from other.
func (s RequirementSet) Difference(other RequirementSet) []Requirement {
	var missing []Requirement
	for req := range s {
		if !other.Contains(req) {
			missing = append(missing, req)
		}
	}
	sortRequirements(missing)
	return missing
}

// Sorted returns the tags in lexical order.
func (s RequirementSet) Sorted() []Requirement {
	out := make([]Requirement, 0, len(s))
	for req := range s {
		out = append(out, req)
	}
	sortRequirements(out)
	return out
}

// Strings returns the sorted tags as plain strings.
func (s RequirementSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, req := range sorted {
		out[i] = string(req)
	}
	return out
}

// Clone returns an independent copy.
func (s RequirementSet) Clone() RequirementSet {
	cp := make(RequirementSet, len(s))
	for req := range s {
		cp[req] = struct{}{}
	}
	return cp
}

func sortRequirements(reqs []Requirement) {
	sort.Slice(reqs, func(i, j int) bool { return reqs[i] < reqs[j] })
}
