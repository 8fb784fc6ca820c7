// Package request decodes transformation request bodies. The body is
// an open JSON object: "content" plus a free-form set of planning and
// style knobs. Reads through the typed accessors mark a key as
// consumed so the handler can report parameters that were sent but
// never used.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/metasphere-xyz/texttransform/internal/plan"
)

// OperationRequest is one decoded transformation request. It is built
// once per HTTP request and never shared; the consumed set is its only
// mutable state.
type OperationRequest struct {
	Operation plan.Operation
	// Fragments holds the input text: a single element for cohesive
	// requests, one element per independent fragment otherwise.
	Fragments []string
	Cohesive  bool

	params   map[string]any
	consumed map[string]bool
}

// ErrContentShape is returned when content is neither a string nor an
// array of strings.
var ErrContentShape = errors.New("content must be a string or an array of strings")

// Decode parses a JSON request body for the given operation.
func Decode(op plan.Operation, body []byte) (*OperationRequest, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse request body: %w", err)
	}

	r := &OperationRequest{
		Operation: op,
		params:    make(map[string]any, len(raw)),
		consumed:  make(map[string]bool),
	}
	for k, v := range raw {
		if k == "content" {
			continue
		}
		r.params[k] = v
	}

	content, ok := raw["content"]
	if !ok {
		return r, nil // validator reports the missing content
	}
	switch c := content.(type) {
	case string:
		r.Fragments = []string{c}
		r.Cohesive = true
	case []any:
		frags := make([]string, 0, len(c))
		for _, item := range c {
			s, ok := item.(string)
			if !ok {
				return nil, ErrContentShape
			}
			frags = append(frags, s)
		}
		r.Fragments = frags
	default:
		return nil, ErrContentShape
	}
	return r, nil
}

// Has reports whether the key was sent, without consuming it.
func (r *OperationRequest) Has(key string) bool {
	_, ok := r.params[key]
	return ok
}

// Peek returns the raw value without marking it consumed. The
// validator inspects parameters this way so that validation alone
// never silences an unused-parameter warning.
func (r *OperationRequest) Peek(key string) (any, bool) {
	v, ok := r.params[key]
	return v, ok
}

// Keys lists the sent parameter names in sorted order.
func (r *OperationRequest) Keys() []string {
	out := make([]string, 0, len(r.params))
	for k := range r.params {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Int reads an integer parameter and marks it consumed.
func (r *OperationRequest) Int(key string) (int, bool, error) {
	v, ok := r.params[key]
	if !ok {
		return 0, false, nil
	}
	r.consumed[key] = true
	n, err := AsInt(v)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// Ints reads an integer list parameter and marks it consumed.
func (r *OperationRequest) Ints(key string) ([]int, bool, error) {
	v, ok := r.params[key]
	if !ok {
		return nil, false, nil
	}
	r.consumed[key] = true
	ns, err := AsInts(v)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", key, err)
	}
	return ns, true, nil
}

// Str reads a string parameter and marks it consumed.
func (r *OperationRequest) Str(key string) (string, bool, error) {
	v, ok := r.params[key]
	if !ok {
		return "", false, nil
	}
	r.consumed[key] = true
	s, err := AsString(v)
	if err != nil {
		return "", true, fmt.Errorf("%s: %w", key, err)
	}
	return s, true, nil
}

// Strs reads a string list parameter and marks it consumed.
func (r *OperationRequest) Strs(key string) ([]string, bool, error) {
	v, ok := r.params[key]
	if !ok {
		return nil, false, nil
	}
	r.consumed[key] = true
	ss, err := AsStrings(v)
	if err != nil {
		return nil, true, fmt.Errorf("%s: %w", key, err)
	}
	return ss, true, nil
}

// Float reads a numeric parameter and marks it consumed.
func (r *OperationRequest) Float(key string) (float64, bool, error) {
	v, ok := r.params[key]
	if !ok {
		return 0, false, nil
	}
	r.consumed[key] = true
	f, err := AsFloat(v)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return f, true, nil
}

// UnusedParams lists sent parameters that no code path read, sorted
// for stable warning output.
func (r *OperationRequest) UnusedParams() []string {
	var out []string
	for k := range r.params {
		if !r.consumed[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// OriginalText joins the fragments back into the caller's view of the
// content, used only for logging sizes.
func (r *OperationRequest) OriginalText() string {
	return strings.Join(r.Fragments, "\n")
}

// Type-coercion helpers shared with the validator. encoding/json
// decodes every number as float64, so integer parameters arrive as
// integral floats.

// AsInt converts a decoded JSON value to int.
func AsInt(v any) (int, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
	n := int(f)
	if float64(n) != f {
		return 0, fmt.Errorf("expected an integer, got %v", f)
	}
	return n, nil
}

// AsInts converts a decoded JSON value to []int.
func AsInts(v any) ([]int, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of integers, got %T", v)
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		n, err := AsInt(item)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// AsString converts a decoded JSON value to string.
func AsString(v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected a string, got %T", v)
	}
	return s, nil
}

// AsStrings converts a decoded JSON value to []string. A bare string
// is accepted as a one-element list, matching how callers commonly
// send a single aspect.
func AsStrings(v any) ([]string, error) {
	if s, ok := v.(string); ok {
		return []string{s}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of strings, got %T", v)
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected an array of strings, got %T element", item)
		}
		out = append(out, s)
	}
	return out, nil
}

// AsFloat converts a decoded JSON value to float64.
func AsFloat(v any) (float64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("expected a number, got %T", v)
	}
	return f, nil
}
