package jsonpatch

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/henrikhelmers/go-jsonpatch/jsonpointer"
)

// New computes an RFC 6902 JSON Patch that transforms a into b.
// It accepts []byte, json.RawMessage, or Go values (maps, slices,
// primitives); inputs are normalized into the encoding/json model first.
func New(a, b any) (Patch, error) {
	na, err := normalizeInput(a)
	if err != nil {
		return nil, err
	}
	nb, err := normalizeInput(b)
	if err != nil {
		return nil, err
	}
	return diffValue(nil, na, nb)
}

func normalizeInput(v any) (any, error) {
	switch tv := v.(type) {
	case []byte:
		var out any
		if err := json.Unmarshal(tv, &out); err != nil {
			return nil, err
		}
		return out, nil
	case json.RawMessage:
		var out any
		if err := json.Unmarshal(tv, &out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		return normalizeValue(tv)
	}
}

func diffValue(path jsonpointer.Pointer, a, b any) (Patch, error) {
	if Equal(a, b) {
		return nil, nil
	}

	if ma, ok := a.(map[string]any); ok {
		if mb, ok := b.(map[string]any); ok {
			return diffObject(path, ma, mb)
		}
	}

	if sa, ok := a.([]any); ok {
		if sb, ok := b.([]any); ok {
			return diffArray(path, sa, sb)
		}
	}

	// Types differ or primitive mismatch.
	return Patch{
		{Op: Replace, Path: path.String(), Value: b},
	}, nil
}

func diffObject(path jsonpointer.Pointer, a, b map[string]any) (Patch, error) {
	var out Patch

	for ka := range a {
		if _, exists := b[ka]; !exists {
			out = append(out, Operation{
				Op:   Remove,
				Path: path.Append(ka).String(),
			})
		}
	}

	for kb, vb := range b {
		if va, exists := a[kb]; exists {
			child, err := diffValue(path.Append(kb), va, vb)
			if err != nil {
				return nil, err
			}
			out = append(out, child...)
			continue
		}
		out = append(out, Operation{
			Op:    Add,
			Path:  path.Append(kb).String(),
			Value: deepCopy(vb),
		})
	}

	return out, nil
}

// diffArray produces a patch transforming a -> b using an LCS-based edit
// script. Elements are matched by a cached equality token; removes are
// emitted in descending index order, then adds in ascending order.
func diffArray(path jsonpointer.Pointer, a, b []any) (Patch, error) {
	atoks, err := tokenizeArray(a)
	if err != nil {
		return nil, err
	}
	btoks, err := tokenizeArray(b)
	if err != nil {
		return nil, err
	}
	n := len(atoks)
	m := len(btoks)

	// Token -> positions queue for 'a'.
	posMap := make(map[string][]int, n)
	for i, t := range atoks {
		posMap[t] = append(posMap[t], i)
	}
	type pair struct{ ai, bj int }
	pairs := make([]pair, 0, min(n, m))
	seq := make([]int, 0, min(n, m))
	for j, t := range btoks {
		q := posMap[t]
		if len(q) == 0 {
			continue
		}
		ai := q[0]
		posMap[t] = q[1:]
		pairs = append(pairs, pair{ai: ai, bj: j})
		seq = append(seq, ai)
	}

	// Longest increasing subsequence over seq, with predecessors kept so
	// the matched indices can be reconstructed.
	k := len(seq)
	tails := make([]int, 0, k)
	prev := make([]int, k)
	for i := range prev {
		prev[i] = -1
	}
	for i, v := range seq {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if seq[tails[mid]] < v {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		pos := lo
		if pos > 0 {
			prev[i] = tails[pos-1]
		}
		if pos == len(tails) {
			tails = append(tails, i)
		} else {
			tails[pos] = i
		}
	}
	lisLen := len(tails)
	lisIdx := make([]int, lisLen)
	if lisLen > 0 {
		p := tails[lisLen-1]
		for x := lisLen - 1; x >= 0; x-- {
			lisIdx[x] = p
			p = prev[p]
			if p < 0 && x > 0 {
				break
			}
		}
	}

	keepA := make([]bool, n)
	keepB := make([]bool, m)
	for _, idxPair := range lisIdx {
		keepA[pairs[idxPair].ai] = true
		keepB[pairs[idxPair].bj] = true
	}

	var patch Patch
	for i := n - 1; i >= 0; i-- {
		if !keepA[i] {
			patch = append(patch, Operation{
				Op:   Remove,
				Path: path.Append(strconv.Itoa(i)).String(),
			})
		}
	}
	for j := 0; j < m; j++ {
		if !keepB[j] {
			patch = append(patch, Operation{
				Op:    Add,
				Path:  path.Append(strconv.Itoa(j)).String(),
				Value: deepCopy(b[j]),
			})
		}
	}
	return patch, nil
}

// tokenizeArray builds an equality token per element so array matching can
// use map lookups instead of repeated deep comparison.
func tokenizeArray(arr []any) ([]string, error) {
	out := make([]string, len(arr))
	for i, v := range arr {
		switch tv := v.(type) {
		case nil:
			out[i] = "0"
		case bool:
			if tv {
				out[i] = "b:1"
			} else {
				out[i] = "b:0"
			}
		case float64:
			// Normalize -0 to +0 for stable equality.
			if tv == 0 {
				out[i] = "n:0"
				continue
			}
			out[i] = "n:" + strconv.FormatUint(math.Float64bits(tv), 16)
		case json.Number:
			if f, err := tv.Float64(); err == nil {
				if f == 0 {
					out[i] = "n:0"
					continue
				}
				out[i] = "n:" + strconv.FormatUint(math.Float64bits(f), 16)
				continue
			}
			out[i] = "n:" + tv.String()
		case string:
			out[i] = "s:" + tv
		default:
			// Canonical JSON for arrays and objects.
			raw, err := json.Marshal(tv)
			if err != nil {
				return nil, err
			}
			out[i] = "j:" + string(raw)
		}
	}
	return out, nil
}
