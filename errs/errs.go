/*package errs defines the structured errors reported by every picell
subsystem. Each error carries the subsystem that failed, the operation it was
performing, and a kind that callers can match on with Is.*/
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error. Kinds are matched with errors.Is against the
// exported sentinel values below.
type Kind int

const (
	// Configuration marks unknown enumeration values, missing required keys,
	// and incompatible dimensions. Reported at initialize time.
	Configuration Kind = iota
	// LayoutMismatch marks operations that require two fields on the same
	// layout when they are not.
	LayoutMismatch
	// Domain marks particle positions outside the global domain and similar
	// out-of-range data.
	Domain
	// Backend marks failures propagated from a transform backend. The plan
	// that produced one must be discarded and rebuilt.
	Backend
	// Resource marks allocation failures.
	Resource
	// Communicator marks collective failures. Always fatal.
	Communicator
)

var kindNames = []string{
	"configuration", "layout mismatch", "domain",
	"backend", "resource", "communicator",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Error implements the error interface for these, so a Kind can be passed
// directly to errors.Is as a target.
func (k Kind) Error() string { return k.String() }

// Error is the concrete error type used throughout picell.
type Error struct {
	Subsystem string
	Op        string
	Kind      Kind
	Reason    string
	Err       error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s: %s: %s", e.Subsystem, e.Op, e.Kind, e.Reason)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, errs.Configuration) and friends work.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

// New creates an error for the given subsystem and operation.
func New(subsystem, op string, kind Kind, format string, a ...interface{}) *Error {
	return &Error{
		Subsystem: subsystem, Op: op, Kind: kind,
		Reason: fmt.Sprintf(format, a...),
	}
}

// Wrap attaches subsystem context to an underlying error.
func Wrap(subsystem, op string, kind Kind, err error) *Error {
	return &Error{
		Subsystem: subsystem, Op: op, Kind: kind,
		Reason: "propagated", Err: err,
	}
}

// IsKind reports whether err or any error it wraps is of the given kind.
func IsKind(err error, k Kind) bool {
	return errors.Is(err, k)
}
