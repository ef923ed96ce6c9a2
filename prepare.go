package jsonpatch

import (
	"fmt"
	"strconv"

	"github.com/henrikhelmers/go-jsonpatch/jsonpointer"
)

// Delta represents a single path change captured during Prepare.
// Op is one of the ops deltas are materialized into: add, remove, replace.
// Move and copy expand into remove/add deltas during preparation. For adds
// that insert into an array, ExistedBefore is false: the element at that
// index is newly created, nothing is overwritten.
type Delta struct {
	Path          string `json:"path"`
	Op            Op     `json:"op"`
	Before        any    `json:"before,omitempty"`
	After         any    `json:"after,omitempty"`
	ExistedBefore bool   `json:"existed_before"`
	ExistedAfter  bool   `json:"existed_after"`
}

// Diff encapsulates ordered deltas and precompiled forward/reverse patches.
type Diff struct {
	Deltas  []Delta `json:"deltas"`
	forward Patch
	reverse Patch
}

// Apply reproduces the patch effect on document using the captured deltas.
func (d Diff) Apply(document any) (any, error) {
	return ApplyInPlace(document, d.forward)
}

// Revert undoes the effect on document using the captured deltas, in
// reverse order.
func (d Diff) Revert(document any) (any, error) {
	return ApplyInPlace(document, d.reverse)
}

// Prepare builds a Diff by simulating the patch against a copy of original,
// which is left unmodified. The returned Diff captures concrete,
// reproducible deltas (array "-" paths are resolved to indices) that can be
// applied to reproduce the patch effect or reverted to undo it.
func Prepare(original any, patch Patch) (Diff, error) {
	work, err := normalizeValue(original)
	if err != nil {
		return Diff{}, fmt.Errorf("failed to copy original: %w", err)
	}

	var deltas []Delta

	for i, op := range patch {
		deltas, err = prepareOp(&work, op, deltas)
		if err != nil {
			return Diff{}, fmt.Errorf("operation %d (%s %q): %w", i, op.Op, op.Path, err)
		}
	}

	return Diff{
		Deltas:  deltas,
		forward: compileForward(deltas),
		reverse: compileReverse(deltas),
	}, nil
}

// prepareOp captures the deltas for one operation and applies it to work.
func prepareOp(work *any, op Operation, deltas []Delta) ([]Delta, error) {
	switch op.Op {
	case Add:
		dest, err := resolveConcreteAddPath(*work, op.Path)
		if err != nil {
			return nil, err
		}
		existed, before, err := captureAddSite(*work, dest)
		if err != nil {
			return nil, err
		}
		after, err := normalizeValue(op.Value)
		if err != nil {
			return nil, err
		}
		if err := applyAdd(work, dest, deepCopy(after)); err != nil {
			return nil, err
		}
		return append(deltas, Delta{
			Path:          dest.String(),
			Op:            Add,
			Before:        before,
			After:         after,
			ExistedBefore: existed,
			ExistedAfter:  true,
		}), nil

	case Remove:
		path, err := jsonpointer.Parse(op.Path)
		if err != nil {
			return nil, err
		}
		before, err := getCopy(*work, path)
		if err != nil {
			return nil, err
		}
		if err := applyRemove(work, path); err != nil {
			return nil, err
		}
		return append(deltas, Delta{
			Path:          path.String(),
			Op:            Remove,
			Before:        before,
			ExistedBefore: true,
			ExistedAfter:  false,
		}), nil

	case Replace:
		path, err := jsonpointer.Parse(op.Path)
		if err != nil {
			return nil, err
		}
		before, err := getCopy(*work, path)
		if err != nil {
			return nil, err
		}
		after, err := normalizeValue(op.Value)
		if err != nil {
			return nil, err
		}
		if err := applyReplace(work, path, deepCopy(after)); err != nil {
			return nil, err
		}
		return append(deltas, Delta{
			Path:          path.String(),
			Op:            Replace,
			Before:        before,
			After:         after,
			ExistedBefore: true,
			ExistedAfter:  true,
		}), nil

	case Move:
		from, err := jsonpointer.Parse(op.From)
		if err != nil {
			return nil, err
		}
		path, err := jsonpointer.Parse(op.Path)
		if err != nil {
			return nil, err
		}
		if from.Equal(path) {
			// A no-op move still requires the source to resolve.
			if _, err := from.Get(*work); err != nil {
				return nil, err
			}
			return deltas, nil
		}
		if from.Contains(path) {
			return nil, fmt.Errorf("%w: from %q, path %q", ErrInvalidMove, from.String(), path.String())
		}
		value, err := getCopy(*work, from)
		if err != nil {
			return nil, err
		}

		// Source removal first, so the destination resolves against the
		// post-removal shape the way move itself evaluates it.
		if err := applyRemove(work, from); err != nil {
			return nil, err
		}
		deltas = append(deltas, Delta{
			Path:          from.String(),
			Op:            Remove,
			Before:        value,
			ExistedBefore: true,
			ExistedAfter:  false,
		})

		dest, err := resolveConcreteAddPath(*work, op.Path)
		if err != nil {
			return nil, err
		}
		existed, before, err := captureAddSite(*work, dest)
		if err != nil {
			return nil, err
		}
		if err := applyAdd(work, dest, deepCopy(value)); err != nil {
			return nil, err
		}
		return append(deltas, Delta{
			Path:          dest.String(),
			Op:            Add,
			Before:        before,
			After:         value,
			ExistedBefore: existed,
			ExistedAfter:  true,
		}), nil

	case Copy:
		from, err := jsonpointer.Parse(op.From)
		if err != nil {
			return nil, err
		}
		value, err := getCopy(*work, from)
		if err != nil {
			return nil, err
		}
		dest, err := resolveConcreteAddPath(*work, op.Path)
		if err != nil {
			return nil, err
		}
		existed, before, err := captureAddSite(*work, dest)
		if err != nil {
			return nil, err
		}
		if err := applyAdd(work, dest, deepCopy(value)); err != nil {
			return nil, err
		}
		return append(deltas, Delta{
			Path:          dest.String(),
			Op:            Add,
			Before:        before,
			After:         value,
			ExistedBefore: existed,
			ExistedAfter:  true,
		}), nil

	case Test:
		// Gates preparation but records no delta.
		path, err := jsonpointer.Parse(op.Path)
		if err != nil {
			return nil, err
		}
		if err := applyTest(*work, path, op.Value); err != nil {
			return nil, err
		}
		return deltas, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op.Op)
	}
}

func compileForward(deltas []Delta) Patch {
	var forward Patch
	for _, delta := range deltas {
		switch delta.Op {
		case Add:
			forward = append(forward, Operation{Op: Add, Path: delta.Path, Value: delta.After})
		case Remove:
			forward = append(forward, Operation{Op: Remove, Path: delta.Path})
		case Replace:
			forward = append(forward, Operation{Op: Replace, Path: delta.Path, Value: delta.After})
		}
	}
	return forward
}

func compileReverse(deltas []Delta) Patch {
	var reverse Patch
	for i := len(deltas) - 1; i >= 0; i-- {
		delta := deltas[i]
		if delta.Path == "" {
			// The root is always restored by replacing it with Before.
			reverse = append(reverse, Operation{Op: Replace, Path: "", Value: delta.Before})
			continue
		}
		switch delta.Op {
		case Add:
			if delta.ExistedBefore {
				reverse = append(reverse, Operation{Op: Replace, Path: delta.Path, Value: delta.Before})
			} else {
				reverse = append(reverse, Operation{Op: Remove, Path: delta.Path})
			}
		case Remove:
			reverse = append(reverse, Operation{Op: Add, Path: delta.Path, Value: delta.Before})
		case Replace:
			reverse = append(reverse, Operation{Op: Replace, Path: delta.Path, Value: delta.Before})
		}
	}
	return reverse
}

// captureAddSite inspects the destination of an add before it runs. Array
// destinations insert rather than overwrite, so nothing existed there for
// reversal purposes; the root and object destinations report the value
// being shadowed, if any.
func captureAddSite(work any, dest jsonpointer.Pointer) (existed bool, before any, err error) {
	if dest.IsRoot() {
		return true, deepCopy(work), nil
	}
	parent, err := dest.Parent().Get(work)
	if err != nil {
		return false, nil, err
	}
	if _, ok := parent.([]any); ok {
		return false, nil, nil
	}
	existed, before = tryGet(work, dest)
	return existed, before, nil
}

// getCopy deep-copies the value a pointer addresses.
func getCopy(document any, p jsonpointer.Pointer) (any, error) {
	value, err := p.Get(document)
	if err != nil {
		return nil, err
	}
	return deepCopy(value), nil
}

// tryGet reports whether a location exists and returns a deep copy of its
// value when it does.
func tryGet(document any, p jsonpointer.Pointer) (bool, any) {
	value, err := p.Get(document)
	if err != nil {
		return false, nil
	}
	return true, deepCopy(value)
}

// resolveConcreteAddPath rewrites an add destination ending in "-" into the
// concrete append index for the parent array's current state. Other paths
// are returned unchanged.
func resolveConcreteAddPath(document any, path string) (jsonpointer.Pointer, error) {
	p, err := jsonpointer.Parse(path)
	if err != nil {
		return nil, err
	}
	if p.IsRoot() || p.Last() != "-" {
		return p, nil
	}

	parent, err := p.Parent().Get(document)
	if err != nil {
		return nil, fmt.Errorf("parent of append path %q: %w", path, err)
	}
	arr, ok := parent.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: append path %q parent is not an array", ErrTypeMismatch, path)
	}
	return p.Parent().Append(strconv.Itoa(len(arr))), nil
}
