// Package golden compares serialized record streams structurally, for
// regression tests against checked-in golden files.
//
// Two streams are equal when they hold the same entity URNs, each URN carries
// the same aspect kinds, and every aspect payload is deeply equal. Mapping key
// order and aspect order are ignored; the order of sequence-valued fields
// (e.g. schema fields) is significant.
package golden

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"
)

// Diff is one mismatch. Aspect is empty when the URN itself is missing or
// unexpected.
type Diff struct {
	URN     string
	Aspect  string
	Message string
}

func (d Diff) String() string {
	if d.Aspect == "" {
		return fmt.Sprintf("%s: %s", d.URN, d.Message)
	}
	return fmt.Sprintf("%s [%s]: %s", d.URN, d.Aspect, d.Message)
}

// Result lists every mismatch found by Compare.
type Result struct {
	Diffs []Diff
}

// Equal reports whether no mismatch was found.
func (r *Result) Equal() bool { return len(r.Diffs) == 0 }

func (r *Result) String() string {
	if r.Equal() {
		return "streams are equal"
	}
	lines := make([]string, 0, len(r.Diffs))
	for _, d := range r.Diffs {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}

type options struct {
	ignore map[string][][]string // aspect -> key paths within the aspect
}

// Option configures Compare.
type Option func(*options)

// IgnorePaths skips volatile values. Each path starts with the aspect name
// followed by mapping keys, e.g. "schemaMetadata.created.time". Sequence
// positions are not part of the path, so "schemaMetadata.fields.description"
// covers the description of every field.
func IgnorePaths(paths ...string) Option {
	return func(o *options) {
		for _, p := range paths {
			parts := strings.Split(p, ".")
			if len(parts) < 2 {
				continue
			}
			o.ignore[parts[0]] = append(o.ignore[parts[0]], parts[1:])
		}
	}
}

type recordJSON struct {
	EntityURN string                       `json:"entityUrn"`
	Aspects   []map[string]json.RawMessage `json:"aspects"`
}

// stream maps URN -> aspect -> payload occurrences in stream order.
type stream map[string]map[string][]any

func decodeStream(label string, data []byte) (stream, error) {
	var records []recordJSON
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s stream: %w", label, err)
	}
	out := make(stream)
	for i, rec := range records {
		if rec.EntityURN == "" {
			return nil, fmt.Errorf("decode %s stream: record %d has no entityUrn", label, i)
		}
		aspects := out[rec.EntityURN]
		if aspects == nil {
			aspects = make(map[string][]any)
			out[rec.EntityURN] = aspects
		}
		for _, entry := range rec.Aspects {
			for name, raw := range entry {
				var v any
				if err := json.Unmarshal(raw, &v); err != nil {
					return nil, fmt.Errorf("decode %s stream: %s %s: %w", label, rec.EntityURN, name, err)
				}
				aspects[name] = append(aspects[name], v)
			}
		}
	}
	return out, nil
}

// Compare checks actual against expected. The error is reserved for
// undecodable input; mismatches are reported in the Result.
func Compare(actual, expected []byte, opts ...Option) (*Result, error) {
	o := &options{ignore: make(map[string][][]string)}
	for _, opt := range opts {
		opt(o)
	}
	got, err := decodeStream("actual", actual)
	if err != nil {
		return nil, err
	}
	want, err := decodeStream("expected", expected)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, urn := range unionKeys(got, want) {
		gotAspects, inGot := got[urn]
		wantAspects, inWant := want[urn]
		switch {
		case !inGot:
			res.Diffs = append(res.Diffs, Diff{URN: urn, Message: "missing from actual"})
			continue
		case !inWant:
			res.Diffs = append(res.Diffs, Diff{URN: urn, Message: "unexpected in actual"})
			continue
		}
		for _, name := range unionKeys(gotAspects, wantAspects) {
			g, inGot := gotAspects[name]
			w, inWant := wantAspects[name]
			switch {
			case !inGot:
				res.Diffs = append(res.Diffs, Diff{URN: urn, Aspect: name, Message: "aspect missing from actual"})
			case !inWant:
				res.Diffs = append(res.Diffs, Diff{URN: urn, Aspect: name, Message: "unexpected aspect in actual"})
			default:
				if d := cmp.Diff(w, g, ignoreOption(o.ignore[name])); d != "" {
					res.Diffs = append(res.Diffs, Diff{URN: urn, Aspect: name, Message: "payload mismatch (-expected +actual):\n" + d})
				}
			}
		}
	}
	return res, nil
}

// ignoreOption drops values whose mapping-key path, with sequence positions
// removed, equals one of paths.
func ignoreOption(paths [][]string) cmp.Option {
	if len(paths) == 0 {
		return cmp.Options{}
	}
	return cmp.FilterPath(func(p cmp.Path) bool {
		var keys []string
		for _, step := range p {
			if mi, ok := step.(cmp.MapIndex); ok {
				keys = append(keys, fmt.Sprint(mi.Key().Interface()))
			}
		}
		for _, path := range paths {
			if equalPath(keys, path) {
				return true
			}
		}
		return false
	}, cmp.Ignore())
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func unionKeys[V any](a, b map[string]V) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
