package transition

import "shopflow/internal/stages"

// Rejection reasons reported by Validate.
const (
	ReasonUnknownCurrent        = "unknown current stage"
	ReasonUnknownTarget         = "unknown target stage"
	ReasonBackwardNeedsOverride = "backward transition requires override"
	ReasonSkipsStages           = "transition skips required stage(s)"
	ReasonMissingRequirements   = "missing stage requirements"
)

// Result is the outcome of a validation.
type Result struct {
	Valid bool
	// Reason is one of the Reason constants.
	Reason      string
	CanOverride bool
	// UnknownStage is the code a structural rejection could not resolve.
	UnknownStage stages.Code
	// Missing lists requirements of the current stage the job has not
	// satisfied. It is filled even when an override makes the move valid.
	Missing []stages.Requirement
	// Movement is set for valid results.
	Movement Movement
	// OverrideUsed reports that the move is valid only because override was
	// supplied.
	OverrideUsed bool
}

// Structural reports whether the rejection came from an unknown code.
func (r Result) Structural() bool {
	return !r.Valid && !r.CanOverride
}

// Validator checks transitions against a registry.
type Validator struct {
	registry *stages.Registry
}

// NewValidator returns a validator bound to reg.
func NewValidator(reg *stages.Registry) *Validator {
	return &Validator{registry: reg}
}

// Registry exposes the registry the validator was built with.
func (v *Validator) Registry() *stages.Registry {
	return v.registry
}

// Validate decides whether a job at current holding completed requirements
// may move to target.
func (v *Validator) Validate(current, target stages.Code, completed stages.RequirementSet, override bool) Result {
	curDef, err := v.registry.Get(current)
	if err != nil {
		return Result{Reason: ReasonUnknownCurrent, UnknownStage: current}
	}
	tgtDef, err := v.registry.Get(target)
	if err != nil {
		return Result{Reason: ReasonUnknownTarget, UnknownStage: target}
	}

	cur, tgt := curDef.Rank, tgtDef.Rank
	overrideUsed := false
	switch {
	case tgt < cur:
		if !override {
			return Result{Reason: ReasonBackwardNeedsOverride, CanOverride: true}
		}
		overrideUsed = true
	case tgt > cur && !curDef.Allows(target):
		if !override {
			return Result{Reason: ReasonSkipsStages, CanOverride: true}
		}
		overrideUsed = true
	}

	missing := curDef.Requirements.Difference(completed)
	if len(missing) > 0 {
		if !override {
			return Result{Reason: ReasonMissingRequirements, CanOverride: true, Missing: missing}
		}
		overrideUsed = true
	}

	movement, err := Classify(v.registry, current, target)
	if err != nil {
		return Result{Reason: ReasonUnknownTarget, UnknownStage: target}
	}
	return Result{
		Valid:        true,
		Missing:      missing,
		Movement:     movement,
		OverrideUsed: overrideUsed,
	}
}

// Reachable lists the stages a job at current may move to without override,
// assuming all of current's requirements are satisfied. The current stage
// itself is included as the parallel move.
func (v *Validator) Reachable(current stages.Code) ([]stages.Code, error) {
	def, err := v.registry.Get(current)
	if err != nil {
		return nil, err
	}
	out := []stages.Code{current}
	for _, next := range def.AllowedNext {
		rank, _ := v.registry.RankOf(next)
		if rank > def.Rank {
			out = append(out, next)
		}
	}
	return out, nil
}
