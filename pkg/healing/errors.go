package healing

import (
	"fmt"
	"strings"
	"time"

	"github.com/devicelab-dev/selfheal/pkg/locator"
)

// ErrorCategory classifies resolution failures so callers can react
// differently to "element gone" versus "driver gone".
type ErrorCategory string

// ErrorCategory values
const (
	ErrCategoryNotFound ErrorCategory = "not_found"
	ErrCategoryTimeout  ErrorCategory = "timeout"
	ErrCategorySnapshot ErrorCategory = "snapshot"
	ErrCategoryCache    ErrorCategory = "cache"
)

// ResolutionError is a structured resolution failure with category,
// machine-readable code and context about what was attempted.
type ResolutionError struct {
	Category ErrorCategory
	Code     string // Machine-readable code: element_not_found, timeout, etc.
	Message  string // Human-readable message
	Locator  locator.Locator
	// Strategies lists the healing strategies that were attempted
	// before the failure, in the order they ran.
	Strategies []string
	Elapsed    time.Duration
	Cause      error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if !e.Locator.IsZero() {
		fmt.Fprintf(&b, ": %s", e.Locator)
	}
	if len(e.Strategies) > 0 {
		fmt.Fprintf(&b, " (tried %s)", strings.Join(e.Strategies, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// Is matches sentinel ResolutionErrors by code, so
// errors.Is(err, ErrElementNotFound) works on enriched copies.
func (e *ResolutionError) Is(target error) bool {
	t, ok := target.(*ResolutionError)
	return ok && e.Code == t.Code
}

// with returns an enriched copy of a sentinel error.
func (e *ResolutionError) with(loc locator.Locator, strategies []string, elapsed time.Duration, cause error) *ResolutionError {
	return &ResolutionError{
		Category:   e.Category,
		Code:       e.Code,
		Message:    e.Message,
		Locator:    loc,
		Strategies: strategies,
		Elapsed:    elapsed,
		Cause:      cause,
	}
}

// Predefined errors
var (
	// ErrElementNotFound: no strategy matched; the snapshot genuinely
	// lacks the element. Not retried internally.
	ErrElementNotFound = &ResolutionError{
		Category: ErrCategoryNotFound,
		Code:     "element_not_found",
		Message:  "element not found even with healing",
	}

	// ErrTimeout: the whole-call deadline was exceeded mid-search.
	// Partial strategy results are discarded.
	ErrTimeout = &ResolutionError{
		Category: ErrCategoryTimeout,
		Code:     "timeout",
		Message:  "resolution timed out",
	}

	// ErrSnapshotUnavailable: the driver collaborator failed to
	// produce a snapshot. Fatal for the call; strategies never ran.
	ErrSnapshotUnavailable = &ResolutionError{
		Category: ErrCategorySnapshot,
		Code:     "snapshot_unavailable",
		Message:  "driver could not produce a snapshot",
	}

	// ErrCacheCorrupt: the persisted cache failed to deserialize.
	// Logged and recovered from, never fatal.
	ErrCacheCorrupt = &ResolutionError{
		Category: ErrCategoryCache,
		Code:     "cache_corrupt",
		Message:  "healing cache could not be loaded",
	}
)
