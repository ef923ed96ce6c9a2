package jsonpatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/henrikhelmers/go-jsonpatch/jsonpointer"
)

// Options controls how a patch is applied.
type Options struct {
	// ApplyOnCopy applies the patch to a deep copy of the document, so a
	// failing operation leaves the caller's document untouched.
	ApplyOnCopy bool
	// IgnoreMissing turns any operation that fails because its target
	// location does not exist into a successful no-op. This includes
	// "test" operations on missing paths; other failures still abort.
	IgnoreMissing bool
	// RelativeTo re-roots the patch at the location addressed by this
	// pointer. All operation paths are then resolved against that
	// sub-value, which keeps its place inside the outer document.
	RelativeTo string
}

// NewOptions returns the default options: in-place, strict, rooted at the
// document root.
func NewOptions() *Options {
	return &Options{}
}

// Apply applies a series of JSON Patch operations to a document, returning
// a new modified document. The original document is not changed.
func Apply(document any, patch Patch) (any, error) {
	return ApplyWithOptions(document, patch, &Options{ApplyOnCopy: true})
}

// ApplyInPlace applies a series of JSON Patch operations to a document
// in-place. WARNING: this function modifies the input document; on error
// the document may be partially mutated.
func ApplyInPlace(document any, patch Patch) (any, error) {
	return ApplyWithOptions(document, patch, nil)
}

// ApplyWithOptions applies the patch according to opts. A nil opts means
// the NewOptions defaults.
func ApplyWithOptions(document any, patch Patch, opts *Options) (any, error) {
	if opts == nil {
		opts = NewOptions()
	}

	if opts.ApplyOnCopy {
		cp, err := normalizeValue(document)
		if err != nil {
			return nil, fmt.Errorf("failed to copy document: %w", err)
		}
		document = cp
	}

	if opts.RelativeTo != "" {
		rel, err := jsonpointer.Parse(opts.RelativeTo)
		if err != nil {
			return nil, fmt.Errorf("relative root: %w", err)
		}
		sub, setSub, err := walk(&document, rel)
		if err != nil {
			return nil, fmt.Errorf("relative root %q: %w", opts.RelativeTo, err)
		}
		res, err := patch.apply(sub, opts)
		if err != nil {
			return nil, err
		}
		setSub(res)
		return document, nil
	}

	return patch.apply(document, opts)
}

// ApplyBytes decodes a JSON document (fragments such as bare numbers are
// allowed), applies the patch, and re-encodes the result.
func ApplyBytes(document []byte, patch Patch, opts *Options) ([]byte, error) {
	var doc any
	if err := json.Unmarshal(document, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	result, err := ApplyWithOptions(doc, patch, opts)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return out, nil
}

// ApplyStream applies a series of JSON Patch operations from a reader to a
// writer.
func ApplyStream(reader io.Reader, writer io.Writer, patch Patch) error {
	var doc any
	decoder := json.NewDecoder(reader)
	if err := decoder.Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}

	modified, err := Apply(doc, patch)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(writer)
	return encoder.Encode(modified)
}

// apply runs the operations in order against document, which it mutates.
// Atomicity is the caller's concern.
func (p Patch) apply(document any, opts *Options) (any, error) {
	for i, op := range p {
		err := applyOp(&document, op)
		if err != nil {
			if opts.IgnoreMissing && errors.Is(err, jsonpointer.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("operation %d (%s %q): %w", i, op.Op, op.Path, err)
		}
	}
	return document, nil
}

func applyOp(document *any, op Operation) error {
	path, err := jsonpointer.Parse(op.Path)
	if err != nil {
		return err
	}

	switch op.Op {
	case Add, Replace:
		value, err := normalizeValue(op.Value)
		if err != nil {
			return err
		}
		if op.Op == Add {
			return applyAdd(document, path, value)
		}
		return applyReplace(document, path, value)
	case Remove:
		return applyRemove(document, path)
	case Move, Copy:
		from, err := jsonpointer.Parse(op.From)
		if err != nil {
			return err
		}
		if op.Op == Move {
			return applyMove(document, from, path)
		}
		return applyCopy(document, from, path)
	case Test:
		return applyTest(*document, path, op.Value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op.Op)
	}
}

// walk resolves a pointer to the addressed value together with a setter
// that writes a replacement back into the document. The setter is what lets
// array mutations reallocate the backing slice.
func walk(document *any, p jsonpointer.Pointer) (any, func(any), error) {
	cur := *document
	set := func(v any) { *document = v }
	for i, tok := range p {
		switch c := cur.(type) {
		case map[string]any:
			v, ok := c[tok]
			if !ok {
				return nil, nil, fmt.Errorf("%w: no key %q at %q",
					jsonpointer.ErrNotFound, tok, p[:i+1].String())
			}
			cur = v
			set = func(v any) { c[tok] = v }
		case []any:
			idx, err := jsonpointer.ParseArrayIndex(tok)
			if err != nil {
				return nil, nil, err
			}
			if idx >= len(c) {
				return nil, nil, fmt.Errorf("%w: index %d at %q in array of length %d",
					jsonpointer.ErrOutOfBounds, idx, p[:i+1].String(), len(c))
			}
			cur = c[idx]
			set = func(v any) { c[idx] = v }
		default:
			return nil, nil, fmt.Errorf("%w: %q has no children (%T)",
				jsonpointer.ErrNotFound, p[:i].String(), cur)
		}
	}
	return cur, set, nil
}

// location is the mutation site for one operation: the parent container,
// the terminal reference token, and a setter that replaces the parent
// inside the document.
type location struct {
	parent any
	token  string
	set    func(any)
	root   bool
}

func locate(document *any, p jsonpointer.Pointer) (location, error) {
	if p.IsRoot() {
		return location{root: true, set: func(v any) { *document = v }}, nil
	}
	parent, set, err := walk(document, p.Parent())
	if err != nil {
		return location{}, err
	}
	return location{parent: parent, token: p.Last(), set: set}, nil
}

func applyAdd(document *any, path jsonpointer.Pointer, value any) error {
	loc, err := locate(document, path)
	if err != nil {
		return err
	}
	if loc.root {
		loc.set(value)
		return nil
	}
	switch parent := loc.parent.(type) {
	case map[string]any:
		parent[loc.token] = value
	case []any:
		idx := len(parent)
		if loc.token != "-" {
			idx, err = jsonpointer.ParseArrayIndex(loc.token)
			if err != nil {
				return err
			}
			if idx > len(parent) {
				return fmt.Errorf("%w: add at index %d in array of length %d",
					jsonpointer.ErrOutOfBounds, idx, len(parent))
			}
		}
		loc.set(sliceInsert(parent, idx, value))
	default:
		return fmt.Errorf("%w: cannot add %q to %T", ErrTypeMismatch, path.String(), loc.parent)
	}
	return nil
}

func applyRemove(document *any, path jsonpointer.Pointer) error {
	loc, err := locate(document, path)
	if err != nil {
		return err
	}
	if loc.root {
		return ErrRemoveRoot
	}
	switch parent := loc.parent.(type) {
	case map[string]any:
		if _, ok := parent[loc.token]; !ok {
			return fmt.Errorf("%w: no key %q at %q", jsonpointer.ErrNotFound, loc.token, path.String())
		}
		delete(parent, loc.token)
	case []any:
		idx, err := jsonpointer.ParseArrayIndex(loc.token)
		if err != nil {
			return err
		}
		if idx >= len(parent) {
			return fmt.Errorf("%w: remove at index %d in array of length %d",
				jsonpointer.ErrOutOfBounds, idx, len(parent))
		}
		loc.set(sliceRemove(parent, idx))
	default:
		return fmt.Errorf("%w: cannot remove %q from %T", ErrTypeMismatch, path.String(), loc.parent)
	}
	return nil
}

func applyReplace(document *any, path jsonpointer.Pointer, value any) error {
	loc, err := locate(document, path)
	if err != nil {
		return err
	}
	if loc.root {
		loc.set(value)
		return nil
	}
	switch parent := loc.parent.(type) {
	case map[string]any:
		if _, ok := parent[loc.token]; !ok {
			return fmt.Errorf("%w: no key %q at %q", jsonpointer.ErrNotFound, loc.token, path.String())
		}
		parent[loc.token] = value
	case []any:
		idx, err := jsonpointer.ParseArrayIndex(loc.token)
		if err != nil {
			return err
		}
		if idx >= len(parent) {
			return fmt.Errorf("%w: replace at index %d in array of length %d",
				jsonpointer.ErrOutOfBounds, idx, len(parent))
		}
		parent[idx] = value
	default:
		return fmt.Errorf("%w: cannot replace %q in %T", ErrTypeMismatch, path.String(), loc.parent)
	}
	return nil
}

func applyMove(document *any, from, path jsonpointer.Pointer) error {
	if from.Equal(path) {
		if _, err := from.Get(*document); err != nil {
			return err
		}
		return nil
	}
	if from.Contains(path) {
		return fmt.Errorf("%w: from %q, path %q", ErrInvalidMove, from.String(), path.String())
	}
	value, err := from.Get(*document)
	if err != nil {
		return err
	}
	// Validate the destination before detaching, so a missing destination
	// (skippable under IgnoreMissing) cannot half-apply the move.
	if _, _, err := walk(document, path.Parent()); err != nil {
		return err
	}
	if err := applyRemove(document, from); err != nil {
		return err
	}
	return applyAdd(document, path, value)
}

func applyCopy(document *any, from, path jsonpointer.Pointer) error {
	value, err := from.Get(*document)
	if err != nil {
		return err
	}
	return applyAdd(document, path, deepCopy(value))
}

func applyTest(document any, path jsonpointer.Pointer, expected any) error {
	actual, err := path.Get(document)
	if err != nil {
		return err
	}
	want, err := normalizeValue(expected)
	if err != nil {
		return err
	}
	if !Equal(actual, want) {
		wantRaw, _ := json.Marshal(want)
		gotRaw, _ := json.Marshal(actual)
		return fmt.Errorf("%w: expected %s at %q, got %s", ErrTestFailed, wantRaw, path.String(), gotRaw)
	}
	return nil
}

// sliceRemove removes the element at index i, shifting later elements left.
func sliceRemove(s []any, i int) []any {
	return append(s[:i], s[i+1:]...)
}

// sliceInsert inserts v into s at index i, shifting later elements right.
func sliceInsert(s []any, i int, v any) []any {
	if i == len(s) {
		return append(s, v)
	}
	n := make([]any, len(s)+1)
	copy(n[:i], s[:i])
	n[i] = v
	copy(n[i+1:], s[i:])
	return n
}
