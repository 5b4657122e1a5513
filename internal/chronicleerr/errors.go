// Package chronicleerr defines chronicle's single error family (§7): one
// kind-tagged error type, with a sentinel value per kind so callers can use
// errors.Is the same way a repository.ErrNotFound-style sentinel works,
// generalized from a flat sentinel list to the ten-kind family §7 calls for.
package chronicleerr

import "fmt"

// Kind discriminates the failure families listed in §7.
type Kind int

const (
	NotFound Kind = iota
	WrongKind
	OpenRequired
	ClosedRequired
	PendingReview
	WouldCreateCycle
	MultipleKinds
	InvalidID
	TypeError
	NoLCA
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not-found"
	case WrongKind:
		return "wrong-kind"
	case OpenRequired:
		return "open-required"
	case ClosedRequired:
		return "closed-required"
	case PendingReview:
		return "pending-review"
	case WouldCreateCycle:
		return "would-create-cycle"
	case MultipleKinds:
		return "multiple-kinds"
	case InvalidID:
		return "invalid-id"
	case TypeError:
		return "type-error"
	case NoLCA:
		return "no-lca"
	default:
		return "unknown"
	}
}

// Error is chronicle's one error family. Op names the operation that
// failed (e.g. "graph.Commit"); Err, if non-nil, is the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's Kind, so that
// errors.Is(err, chronicleerr.ErrNotFound) works regardless of Op/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error for kind k, wrapping cause (which may be nil).
func New(op string, k Kind, cause error) *Error {
	return &Error{Kind: k, Op: op, Err: cause}
}

// Sentinel values usable with errors.Is, one per kind, with empty Op.
var (
	ErrNotFound         = &Error{Kind: NotFound}
	ErrWrongKind        = &Error{Kind: WrongKind}
	ErrOpenRequired     = &Error{Kind: OpenRequired}
	ErrClosedRequired   = &Error{Kind: ClosedRequired}
	ErrPendingReview    = &Error{Kind: PendingReview}
	ErrWouldCreateCycle = &Error{Kind: WouldCreateCycle}
	ErrMultipleKinds    = &Error{Kind: MultipleKinds}
	ErrInvalidID        = &Error{Kind: InvalidID}
	ErrTypeError        = &Error{Kind: TypeError}
	ErrNoLCA            = &Error{Kind: NoLCA}
)
