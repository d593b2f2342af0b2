package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrStructural marks requests that reference unknown stages or jobs.
	// Never overridable; the caller holds a stale cache or has a bug.
	ErrStructural = errors.New("structural error")
	// ErrValidation marks ordering or requirement violations that the caller
	// may retry with override=true.
	ErrValidation = errors.New("validation error")
	// ErrConflict marks a lost compare-and-swap on the job's stage pointer.
	// Always retryable after re-reading current state.
	ErrConflict = errors.New("conflict")
	// ErrUpstream marks failures of the job store or technician directory.
	ErrUpstream = errors.New("upstream unavailable")
	// ErrNotFound marks lookups that matched nothing.
	ErrNotFound = errors.New("not found")
)

// Kind is the coarse classification of an engine error.
type Kind string

const (
	KindNone       Kind = ""
	KindStructural Kind = "structural"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindUpstream   Kind = "upstream"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUpstream
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf maps an error to its taxonomy class. Unknown jobs count as
// structural; anything unclassified is treated as an upstream failure.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrStructural), errors.Is(err, ErrNotFound):
		return KindStructural
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindUpstream
	}
}

// Retryable reports whether resubmitting the same request after re-reading
// state can succeed without changing its inputs.
func Retryable(err error) bool {
	return KindOf(err) == KindConflict
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "engine failure"
	}
	return strings.Join(parts, ": ")
}
