package drive

import "errors"

// Operation failures are reported as wrapped sentinel errors; callers
// classify them with errors.Is. Only ErrBusy is safely retryable.
var (
	// ErrNotFound means the node (or its referenced parent) does not
	// exist or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidParent means the target parent is missing, trashed,
	// not a folder, or not writable by the caller.
	ErrInvalidParent = errors.New("invalid parent")

	// ErrNameConflict means a live sibling already uses the name.
	ErrNameConflict = errors.New("name conflict")

	// ErrCycleDetected means a move would make a node its own ancestor.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrQuotaExceeded means admitting the bytes would exceed the
	// owner's storage limit.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrNotTrashed means restore or purge was invoked on a live node.
	ErrNotTrashed = errors.New("not trashed")

	// ErrSelfShare means the grantee is the node's owner.
	ErrSelfShare = errors.New("cannot share with owner")

	// ErrCorruptHierarchy means a parent walk found a cycle. This is an
	// invariant violation from a prior bug; the subtree is left as-is
	// for an operator to investigate.
	ErrCorruptHierarchy = errors.New("corrupt hierarchy")

	// ErrBusy means the store lock could not be acquired within the
	// configured timeout. Retryable with backoff.
	ErrBusy = errors.New("store busy")
)
