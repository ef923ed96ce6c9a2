// Package jsonpatch implements RFC 6902 JSON Patch: parsing patch
// documents, applying them to values in the encoding/json model, and
// computing patches that transform one document into another.
//
// Locations inside a document are addressed with RFC 6901 JSON Pointers,
// implemented by the nested jsonpointer package.
package jsonpatch

import (
	"encoding/json"
	"fmt"

	"github.com/henrikhelmers/go-jsonpatch/jsonpointer"
)

// Op represents JSON Patch operation types.
type Op string

const (
	Add     Op = "add"
	Remove  Op = "remove"
	Replace Op = "replace"
	Move    Op = "move"
	Copy    Op = "copy"
	Test    Op = "test"
)

// Operation represents a single JSON Patch operation.
type Operation struct {
	Op    Op
	Path  string
	From  string
	Value any
}

// Patch represents an ordered collection of JSON Patch operations. The
// serialized form is the RFC 6902 array of operation objects
// (application/json-patch+json).
type Patch []Operation

// requiredFields lists the members each operation kind must carry beyond
// "op" and "path".
var requiredFields = map[Op][]string{
	Add:     {"value"},
	Remove:  {},
	Replace: {"value"},
	Move:    {"from"},
	Copy:    {"from"},
	Test:    {"value"},
}

// UnmarshalJSON decodes one operation object. Required members must be
// present with the right JSON type; "value" may be JSON null but not
// absent. Unknown members are ignored.
func (o *Operation) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: element is not an object", ErrInvalidPatch)
	}

	op, err := stringField(fields, "op")
	if err != nil {
		return err
	}
	required, ok := requiredFields[Op(op)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}

	path, err := stringField(fields, "path")
	if err != nil {
		return fmt.Errorf("%q: %w", op, err)
	}
	if _, err := jsonpointer.Parse(path); err != nil {
		return fmt.Errorf("field \"path\": %w", err)
	}

	decoded := Operation{Op: Op(op), Path: path}
	for _, name := range required {
		switch name {
		case "from":
			from, err := stringField(fields, "from")
			if err != nil {
				return fmt.Errorf("%q: %w", op, err)
			}
			if _, err := jsonpointer.Parse(from); err != nil {
				return fmt.Errorf("field \"from\": %w", err)
			}
			decoded.From = from
		case "value":
			raw, ok := fields["value"]
			if !ok {
				return fmt.Errorf("%w: %q requires \"value\"", ErrMissingField, op)
			}
			if err := json.Unmarshal(raw, &decoded.Value); err != nil {
				return fmt.Errorf("%w: \"value\" of %q: %v", ErrMissingField, op, err)
			}
		}
	}

	*o = decoded
	return nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrMissingField, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", ErrMissingField, name)
	}
	return s, nil
}

// MarshalJSON encodes the operation with exactly the members its kind
// requires.
func (o Operation) MarshalJSON() ([]byte, error) {
	switch o.Op {
	case Add, Replace, Test:
		return json.Marshal(struct {
			Op    Op     `json:"op"`
			Path  string `json:"path"`
			Value any    `json:"value"`
		}{o.Op, o.Path, o.Value})
	case Remove:
		return json.Marshal(struct {
			Op   Op     `json:"op"`
			Path string `json:"path"`
		}{o.Op, o.Path})
	case Move, Copy:
		return json.Marshal(struct {
			Op   Op     `json:"op"`
			From string `json:"from"`
			Path string `json:"path"`
		}{o.Op, o.From, o.Path})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, o.Op)
	}
}

// DecodePatch parses the raw bytes of an RFC 6902 patch document.
func DecodePatch(data []byte) (Patch, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w: top level is not an array", ErrInvalidPatch)
	}
	if elems == nil {
		return nil, fmt.Errorf("%w: top level is not an array", ErrInvalidPatch)
	}
	patch := make(Patch, len(elems))
	for i, raw := range elems {
		if err := json.Unmarshal(raw, &patch[i]); err != nil {
			return nil, fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return patch, nil
}

// FromParsed builds a patch from an already-decoded JSON array, as produced
// by the surrounding decoder.
func FromParsed(elems []any) (Patch, error) {
	raw, err := json.Marshal(elems)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return DecodePatch(raw)
}

// String renders the patch as its serialized JSON array.
func (p Patch) String() string {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("<error: %v>", err)
	}
	return string(raw)
}
