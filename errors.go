package jsonpatch

import (
	"errors"

	"github.com/henrikhelmers/go-jsonpatch/jsonpointer"
)

var (
	// ErrInvalidPatch reports a patch document whose top level is not an
	// array, or whose elements are not objects.
	ErrInvalidPatch = errors.New("invalid patch document")
	// ErrUnknownOperation reports an "op" member that is not one of the
	// six RFC 6902 operations.
	ErrUnknownOperation = errors.New("unknown patch operation")
	// ErrMissingField reports a required operation member that is absent
	// or has the wrong JSON type.
	ErrMissingField = errors.New("missing patch field")
	// ErrTestFailed reports a "test" operation whose target value did not
	// match.
	ErrTestFailed = errors.New("test operation failed")
	// ErrInvalidMove reports a "move" whose "from" is a proper prefix of
	// its "path".
	ErrInvalidMove = errors.New("cannot move a value into one of its children")
	// ErrRemoveRoot reports a "remove" targeting the document root.
	ErrRemoveRoot = errors.New("cannot remove document root")
	// ErrTypeMismatch reports a mutation whose parent location resolved to
	// a scalar rather than a container.
	ErrTypeMismatch = errors.New("target parent is not a container")
)

// Pointer-level error kinds, re-exported so callers matching with errors.Is
// do not need to import the jsonpointer package.
var (
	ErrInvalidPointer = jsonpointer.ErrInvalidPointer
	ErrNotFound       = jsonpointer.ErrNotFound
)
