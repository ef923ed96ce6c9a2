package jsonpatch_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	jsonpatch "github.com/henrikhelmers/go-jsonpatch"
	"github.com/henrikhelmers/go-jsonpatch/jsonpointer"
)

func TestApply(t *testing.T) {
	testCases := []struct {
		name        string
		doc         string
		patch       string
		expected    string
		expectedErr error
	}{
		// RFC 6902, Appendix A.1. Add an Object Member
		{
			name:     "add an object member",
			doc:      `{"a":"b","c":"d"}`,
			patch:    `[{"op":"add","path":"/b","value":"e"}]`,
			expected: `{"a":"b","b":"e","c":"d"}`,
		},
		// RFC 6902, Appendix A.2. Add an Array Element
		{
			name:     "add an array element",
			doc:      `{"foo":["bar","baz"]}`,
			patch:    `[{"op":"add","path":"/foo/1","value":"qux"}]`,
			expected: `{"foo":["bar","qux","baz"]}`,
		},
		// RFC 6902, Appendix A.3. Remove an Object Member
		{
			name:     "remove an object member",
			doc:      `{"a":"b","c":"d"}`,
			patch:    `[{"op":"remove","path":"/a"}]`,
			expected: `{"c":"d"}`,
		},
		// RFC 6902, Appendix A.4. Remove an Array Element
		{
			name:     "remove an array element",
			doc:      `{"foo":["bar","qux","baz"]}`,
			patch:    `[{"op":"remove","path":"/foo/1"}]`,
			expected: `{"foo":["bar","baz"]}`,
		},
		// RFC 6902, Appendix A.5. Replace a Value
		{
			name:     "replace a value",
			doc:      `{"a":"b","c":"d"}`,
			patch:    `[{"op":"replace","path":"/a","value":"e"}]`,
			expected: `{"a":"e","c":"d"}`,
		},
		// RFC 6902, Appendix A.6. Move a Value
		{
			name:     "move a value",
			doc:      `{"foo":{"bar":"baz","waldo":"fred"},"qux":{"corge":"grault"}}`,
			patch:    `[{"op":"move","from":"/foo/waldo","path":"/qux/thud"}]`,
			expected: `{"foo":{"bar":"baz"},"qux":{"corge":"grault","thud":"fred"}}`,
		},
		// RFC 6902, Appendix A.7. Move an Array Element
		{
			name:     "move an array element",
			doc:      `{"foo":["all","grass","cows","eat"]}`,
			patch:    `[{"op":"move","from":"/foo/1","path":"/foo/3"}]`,
			expected: `{"foo":["all","cows","eat","grass"]}`,
		},
		// RFC 6902, Appendix A.8. Test a Value
		{
			name:     "test a value (success)",
			doc:      `{"baz":"qux","foo":["a",2,"c"]}`,
			patch:    `[{"op":"test","path":"/baz","value":"qux"}]`,
			expected: `{"baz":"qux","foo":["a",2,"c"]}`,
		},
		// RFC 6902, Appendix A.9. Test a Value (error)
		{
			name:        "test a value (error)",
			doc:         `{"baz":"qux"}`,
			patch:       `[{"op":"test","path":"/baz","value":"bar"}]`,
			expectedErr: jsonpatch.ErrTestFailed,
		},
		// RFC 6902, Appendix A.10. Add a Nested Member Object
		{
			name:     "add a nested member object",
			doc:      `{"foo":"bar"}`,
			patch:    `[{"op":"add","path":"/child","value":{"grandchild":{}}}]`,
			expected: `{"foo":"bar","child":{"grandchild":{}}}`,
		},
		// RFC 6902, Appendix A.14. ~ Escape Ordering
		{
			name:     "tilde escape ordering",
			doc:      `{"/":9,"~1":10}`,
			patch:    `[{"op":"test","path":"/~01","value":10}]`,
			expected: `{"/":9,"~1":10}`,
		},
		// RFC 6902, Appendix A.16. Adding an Array Value
		{
			name:     "add an array value",
			doc:      `{"foo":["bar"]}`,
			patch:    `[{"op":"add","path":"/foo/-","value":["abc","def"]}]`,
			expected: `{"foo":["bar",["abc","def"]]}`,
		},
		{
			name:     "add overwrites existing object key",
			doc:      `{"a":1}`,
			patch:    `[{"op":"add","path":"/a","value":2}]`,
			expected: `{"a":2}`,
		},
		{
			name:     "add appends at index equal to length",
			doc:      `{"foo":["bar"]}`,
			patch:    `[{"op":"add","path":"/foo/1","value":"baz"}]`,
			expected: `{"foo":["bar","baz"]}`,
		},
		{
			name:     "copy a value",
			doc:      `{"src":{"v":5},"dst":{}}`,
			patch:    `[{"op":"copy","from":"/src/v","path":"/dst/v"}]`,
			expected: `{"src":{"v":5},"dst":{"v":5}}`,
		},
		{
			name:     "replace the document root",
			doc:      `{"a":1}`,
			patch:    `[{"op":"replace","path":"","value":[1,2]}]`,
			expected: `[1,2]`,
		},
		{
			name:     "fragment form pointers",
			doc:      `{"a/b":1,"m~n":{"x":2}}`,
			patch:    `[{"op":"replace","path":"#/a~1b","value":3},{"op":"remove","path":"#/m~0n/x"}]`,
			expected: `{"a/b":3,"m~n":{}}`,
		},
		// RFC 6902, Appendix A.12. Adding to a Nonexistent Target
		{
			name:        "add to a nonexistent target",
			doc:         `{"foo":"bar"}`,
			patch:       `[{"op":"add","path":"/baz/bat","value":"qux"}]`,
			expectedErr: jsonpointer.ErrNotFound,
		},
		// RFC 6902, Appendix A.15. Comparing Strings and Numbers
		{
			name:        "test string against number",
			doc:         `{"/":9,"~1":10}`,
			patch:       `[{"op":"test","path":"/~01","value":"10"}]`,
			expectedErr: jsonpatch.ErrTestFailed,
		},
		{
			name:        "add beyond array bounds",
			doc:         `{"foo":["bar"]}`,
			patch:       `[{"op":"add","path":"/foo/5","value":"x"}]`,
			expectedErr: jsonpointer.ErrOutOfBounds,
		},
		{
			name:        "remove with append token",
			doc:         `{"foo":["bar"]}`,
			patch:       `[{"op":"remove","path":"/foo/-"}]`,
			expectedErr: jsonpointer.ErrInvalidIndex,
		},
		{
			name:        "index with leading zero",
			doc:         `{"foo":["bar","baz"]}`,
			patch:       `[{"op":"remove","path":"/foo/01"}]`,
			expectedErr: jsonpointer.ErrInvalidIndex,
		},
		{
			name:        "remove missing object member",
			doc:         `{"a":1}`,
			patch:       `[{"op":"remove","path":"/b"}]`,
			expectedErr: jsonpointer.ErrNotFound,
		},
		{
			name:        "remove the document root",
			doc:         `{"a":1}`,
			patch:       `[{"op":"remove","path":""}]`,
			expectedErr: jsonpatch.ErrRemoveRoot,
		},
		{
			name:        "replace a nonexistent member",
			doc:         `{"prop1":"V1"}`,
			patch:       `[{"op":"replace","path":"/prop3","value":"V3"}]`,
			expectedErr: jsonpointer.ErrNotFound,
		},
		{
			name:        "move into own child",
			doc:         `{"a":{"b":1}}`,
			patch:       `[{"op":"move","from":"/a","path":"/a/b"}]`,
			expectedErr: jsonpatch.ErrInvalidMove,
		},
		{
			name:        "add into a scalar parent",
			doc:         `{"a":3}`,
			patch:       `[{"op":"add","path":"/a/b","value":1}]`,
			expectedErr: jsonpatch.ErrTypeMismatch,
		},
		{
			name:        "descend through a scalar",
			doc:         `{"a":3}`,
			patch:       `[{"op":"remove","path":"/a/b/c"}]`,
			expectedErr: jsonpointer.ErrNotFound,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var doc any
			if err := json.Unmarshal([]byte(tc.doc), &doc); err != nil {
				t.Fatalf("bad document fixture: %v", err)
			}

			patch, err := jsonpatch.DecodePatch([]byte(tc.patch))
			if err != nil {
				t.Fatalf("DecodePatch() unexpected error: %v", err)
			}

			result, err := jsonpatch.Apply(doc, patch)

			if tc.expectedErr != nil {
				if err == nil {
					t.Fatalf("expected error %v, but got none", tc.expectedErr)
				}
				if !errors.Is(err, tc.expectedErr) {
					t.Fatalf("expected error %v, got %v", tc.expectedErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var expected any
			if err := json.Unmarshal([]byte(tc.expected), &expected); err != nil {
				t.Fatalf("bad expected fixture: %v", err)
			}

			if !reflect.DeepEqual(result, expected) {
				resBytes, _ := json.Marshal(result)
				expBytes, _ := json.Marshal(expected)
				t.Errorf("unexpected result\n\tgot: %s\n\twant: %s", resBytes, expBytes)
			}
		})
	}
}

func TestApply_ErrorCarriesOpIndex(t *testing.T) {
	doc := map[string]any{"a": 1.0}
	patch, err := jsonpatch.DecodePatch([]byte(`[
		{"op":"add","path":"/b","value":2},
		{"op":"remove","path":"/missing"}
	]`))
	if err != nil {
		t.Fatalf("DecodePatch() unexpected error: %v", err)
	}

	_, err = jsonpatch.Apply(doc, patch)
	if err == nil {
		t.Fatal("expected error, got none")
	}
	if !strings.Contains(err.Error(), "operation 1") {
		t.Errorf("error does not name the failing operation: %v", err)
	}
}

func TestApplyStream(t *testing.T) {
	doc := `{"a":"b","c":"d"}`
	expected := `{"a":"b","b":"e","c":"d"}`

	patch, err := jsonpatch.DecodePatch([]byte(`[{"op":"add","path":"/b","value":"e"}]`))
	if err != nil {
		t.Fatalf("DecodePatch() unexpected error: %v", err)
	}

	reader := strings.NewReader(doc)
	var writer bytes.Buffer

	if err := jsonpatch.ApplyStream(reader, &writer, patch); err != nil {
		t.Fatalf("ApplyStream() unexpected error: %v", err)
	}

	var resultJSON, expectedJSON any
	json.Unmarshal(writer.Bytes(), &resultJSON)
	json.Unmarshal([]byte(expected), &expectedJSON)

	if !reflect.DeepEqual(resultJSON, expectedJSON) {
		t.Errorf("ApplyStream() result mismatch:\ngot:  %s\nwant: %s", writer.String(), expected)
	}
}
