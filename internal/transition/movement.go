package transition

import (
	"fmt"

	"shopflow/internal/stages"
)

// Movement classifies a transition relative to the canonical ordering.
type Movement string

const (
	MovementForward  Movement = "forward"
	MovementBackward Movement = "backward"
	MovementSkip     Movement = "skip"
	MovementParallel Movement = "parallel"
)

// ParseMovement converts a stored value back into a Movement.
func ParseMovement(value string) (Movement, bool) {
	switch Movement(value) {
	case MovementForward, MovementBackward, MovementSkip, MovementParallel:
		return Movement(value), true
	default:
		return "", false
	}
}

// Classify labels the move from current to target. Forward means the target
// is the next stage in the canonical ordering and listed in the current
// stage's allowed successors; anything further ahead, or the next stage when
// it is not an allowed successor, is a skip.
func Classify(reg *stages.Registry, current, target stages.Code) (Movement, error) {
	curDef, err := reg.Get(current)
	if err != nil {
		return "", err
	}
	curPos, _ := reg.Position(current)
	tgtPos, ok := reg.Position(target)
	if !ok {
		return "", fmt.Errorf("%w: %q", stages.ErrUnknownStage, target)
	}

	switch {
	case tgtPos == curPos:
		return MovementParallel, nil
	case tgtPos < curPos:
		return MovementBackward, nil
	case tgtPos == curPos+1 && curDef.Allows(target):
		return MovementForward, nil
	default:
		return MovementSkip, nil
	}
}
