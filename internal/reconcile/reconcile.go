// Package reconcile aligns the model's raw completion with the plan.
// Parsing is tolerant: malformed JSON gets a repair pass, missing
// fragments, lengths, and versions are padded with the original text
// as a placeholder, and surplus entries are dropped. Shortfalls are
// warnings, never failures; only a wrong top-level shape or an error
// envelope aborts the request.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/metasphere-xyz/texttransform/internal/budget"
	"github.com/metasphere-xyz/texttransform/internal/plan"
	"github.com/metasphere-xyz/texttransform/internal/textutil"
)

// DefaultTolerance is the accepted relative deviation between a
// version's realized percentage and its target.
const DefaultTolerance = 0.5

// Warning codes surfaced in response metadata.
const (
	CodeParseError              = "parse_error"
	CodeMissingFragment         = "missing_fragment"
	CodeSurplusFragments        = "surplus_fragments"
	CodeMissingLength           = "missing_length"
	CodeSurplusLengths          = "surplus_lengths"
	CodeMissingVersion          = "missing_version"
	CodeSurplusVersions         = "surplus_versions"
	CodeTextUnchanged           = "text_unchanged"
	CodeInsufficientExpansion   = "insufficient_expansion"
	CodeInsufficientCompression = "insufficient_compression"
	CodeOutsideTargetRange      = "outside_target_range"
)

// ErrUnrecognizedShape indicates the completion parsed as JSON but
// carried none of the known top-level keys.
var ErrUnrecognizedShape = errors.New("completion has no recognized shape")

// ModelError carries an error envelope the model returned instead of
// content.
type ModelError struct {
	Code    string
	Message string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("model returned error %s: %s", e.Code, e.Message)
}

// VersionResult is one realized version with its recomputed metrics.
type VersionResult struct {
	Text            string  `json:"text"`
	FinalTokens     int     `json:"final_tokens"`
	FinalPercentage float64 `json:"final_percentage"`
}

// LengthResult groups the versions realized for one length target.
type LengthResult struct {
	TargetPercentage int             `json:"target_percentage"`
	TargetTokens     int             `json:"target_tokens"`
	Versions         []VersionResult `json:"versions"`
}

// Warning is a non-fatal reconciliation note.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result holds one []LengthResult per content item plus the collected
// warnings. Placeholders counts versions padded with original text.
type Result struct {
	Items        [][]LengthResult
	Warnings     []Warning
	Placeholders int
}

// Reconciler matches completions for one request against its plan.
type Reconciler struct {
	Plan plan.Plan

	// Items holds the original text per content item, in input order.
	Items    []string
	Cohesive bool

	// Tolerance is the accepted relative deviation; zero means
	// DefaultTolerance.
	Tolerance float64
}

// Reconcile parses the raw completion and aligns it with the plan.
// The returned error is non-nil only for structural failures: an
// error envelope from the model or a JSON object with no recognized
// top-level key.
func (r *Reconciler) Reconcile(raw string) (*Result, error) {
	doc, ok := parseCompletion(raw)
	if !ok {
		res := r.allPlaceholders()
		res.Warnings = append([]Warning{{
			Code:    CodeParseError,
			Message: "completion was not valid JSON; original text returned",
		}}, res.Warnings...)
		return res, nil
	}

	if rawErr, found := doc["error"]; found {
		return nil, decodeModelError(rawErr)
	}

	items, itemWarnings, ok := r.itemsFromDoc(doc)
	if !ok {
		return nil, ErrUnrecognizedShape
	}

	res := &Result{Items: make([][]LengthResult, len(r.Items)), Warnings: itemWarnings}
	for i := range r.Items {
		lengths, warns, placeholders := r.alignItem(i, items[i].wire, items[i].present)
		res.Items[i] = lengths
		res.Warnings = append(res.Warnings, warns...)
		res.Placeholders += placeholders
	}
	return res, nil
}

// parseCompletion extracts the outermost JSON object and decodes it,
// falling back to a repair pass on failure.
func parseCompletion(raw string) (map[string]json.RawMessage, bool) {
	s := extractJSONObject(raw)
	if s == "" {
		return nil, false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &doc); err == nil {
		return doc, true
	}
	if err := json.Unmarshal([]byte(repairJSON(s)), &doc); err == nil {
		return doc, true
	}
	return nil, false
}

// extractJSONObject bounds the text by the first '{' and last '}'.
func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

var (
	trailingComma   = regexp.MustCompile(`,\s*([}\]])`)
	singleQuotedKey = regexp.MustCompile(`([{,]\s*)'([^']*)'(\s*:)`)
)

// repairJSON applies cheap fixes for the usual model mistakes: fence
// markers left inside the object, trailing commas, and single-quoted
// keys. Values keep their quoting; apostrophes inside text make value
// rewriting unsafe.
func repairJSON(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = trailingComma.ReplaceAllString(s, "$1")
	return singleQuotedKey.ReplaceAllString(s, `$1"$2"$3`)
}

func decodeModelError(raw json.RawMessage) *ModelError {
	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && (envelope.Code != "" || envelope.Message != "") {
		if envelope.Code == "" {
			envelope.Code = "api_error"
		}
		return &ModelError{Code: envelope.Code, Message: envelope.Message}
	}
	var reason string
	if err := json.Unmarshal(raw, &reason); err == nil && reason != "" {
		return &ModelError{Code: "api_error", Message: reason}
	}
	return &ModelError{Code: "api_error", Message: "model reported an unspecified error"}
}

// wireVersion accepts both {"text": "..."} and a bare string.
type wireVersion struct {
	Text string
}

func (v *wireVersion) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v.Text = s
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	v.Text = obj.Text
	return nil
}

type wireLength struct {
	Versions []wireVersion `json:"versions"`
}

type wireFragment struct {
	Lengths  []wireLength  `json:"lengths"`
	Versions []wireVersion `json:"versions"`
}

type wireItem struct {
	wire    wireFragment
	present bool
}

// itemsFromDoc maps the decoded top-level document onto one wire
// fragment per content item.
func (r *Reconciler) itemsFromDoc(doc map[string]json.RawMessage) ([]wireItem, []Warning, bool) {
	items := make([]wireItem, len(r.Items))
	var warnings []Warning

	if raw, found := doc["fragments"]; found {
		var frags []wireFragment
		if err := json.Unmarshal(raw, &frags); err != nil {
			return nil, nil, false
		}
		if r.Cohesive {
			items[0] = wireItem{wire: mergeFragments(frags), present: true}
			return items, nil, true
		}
		for i := range items {
			if i < len(frags) {
				items[i] = wireItem{wire: frags[i], present: true}
				continue
			}
			warnings = append(warnings, Warning{
				Code:    CodeMissingFragment,
				Message: fmt.Sprintf("fragment %d missing from completion; original text returned", i+1),
			})
		}
		if extra := len(frags) - len(items); extra > 0 {
			warnings = append(warnings, Warning{
				Code:    CodeSurplusFragments,
				Message: fmt.Sprintf("completion returned %d extra fragment(s), dropped", extra),
			})
		}
		return items, warnings, true
	}

	var frag wireFragment
	decoded := false
	if raw, found := doc["lengths"]; found {
		if err := json.Unmarshal(raw, &frag.Lengths); err != nil {
			return nil, nil, false
		}
		decoded = true
	}
	if raw, found := doc["versions"]; found {
		if err := json.Unmarshal(raw, &frag.Versions); err != nil {
			return nil, nil, false
		}
		decoded = true
	}
	if !decoded {
		return nil, nil, false
	}

	// A single lengths or versions document answers item 0; any other
	// expected fragments are missing.
	items[0] = wireItem{wire: frag, present: true}
	for i := 1; i < len(items); i++ {
		warnings = append(warnings, Warning{
			Code:    CodeMissingFragment,
			Message: fmt.Sprintf("fragment %d missing from completion; original text returned", i+1),
		})
	}
	return items, warnings, true
}

// mergeFragments pools a fragments answer to a cohesive request into
// one flat version list for sorted matching.
func mergeFragments(frags []wireFragment) wireFragment {
	if len(frags) == 1 {
		return frags[0]
	}
	var merged wireFragment
	for _, f := range frags {
		for _, l := range f.Lengths {
			merged.Versions = append(merged.Versions, l.Versions...)
		}
		merged.Versions = append(merged.Versions, f.Versions...)
	}
	return merged
}

// alignItem aligns one content item's wire data with the plan targets.
// quiet padding (no per-length warnings) is used when the whole
// fragment was already reported missing.
func (r *Reconciler) alignItem(idx int, wire wireFragment, present bool) ([]LengthResult, []Warning, int) {
	original := r.Items[idx]
	origTokens := budget.EstimateTokens(original)
	targets := r.Plan.Targets

	lengths := wire.Lengths
	if len(lengths) == 0 && len(wire.Versions) > 0 {
		lengths = r.distributeFlat(wire.Versions)
	}

	var warnings []Warning
	placeholders := 0
	out := make([]LengthResult, 0, len(targets))

	if present && len(lengths) > len(targets) {
		warnings = append(warnings, Warning{
			Code:    CodeSurplusLengths,
			Message: fmt.Sprintf("completion returned %d extra length(s)%s, dropped", len(lengths)-len(targets), r.suffix(idx)),
		})
	}

	for i, t := range targets {
		lr := LengthResult{
			TargetPercentage: t.TargetPercentage,
			TargetTokens:     budget.TargetTokens(origTokens, t.TargetPercentage),
		}
		var got []wireVersion
		if i < len(lengths) {
			got = lengths[i].Versions
		} else if present {
			warnings = append(warnings, Warning{
				Code:    CodeMissingLength,
				Message: fmt.Sprintf("no completion at %d%%%s; original text returned", t.TargetPercentage, r.suffix(idx)),
			})
		}

		if present && len(got) > t.VersionsPerLength {
			warnings = append(warnings, Warning{
				Code:    CodeSurplusVersions,
				Message: fmt.Sprintf("%d extra version(s) at %d%%%s, dropped", len(got)-t.VersionsPerLength, t.TargetPercentage, r.suffix(idx)),
			})
		}

		for v := 0; v < t.VersionsPerLength; v++ {
			var text string
			if v < len(got) {
				text = textutil.CleanCompletion(got[v].Text)
			}
			if text == "" {
				if present && i < len(lengths) {
					warnings = append(warnings, Warning{
						Code:    CodeMissingVersion,
						Message: fmt.Sprintf("version %d at %d%%%s missing; original text returned", v+1, t.TargetPercentage, r.suffix(idx)),
					})
				}
				lr.Versions = append(lr.Versions, placeholderVersion(original, origTokens))
				placeholders++
				continue
			}
			finalTokens := budget.EstimateTokens(text)
			vr := VersionResult{
				Text:            text,
				FinalTokens:     finalTokens,
				FinalPercentage: budget.FinalPercentage(finalTokens, origTokens),
			}
			lr.Versions = append(lr.Versions, vr)
			if w, bad := r.checkDeviation(v+1, t.TargetPercentage, vr.FinalPercentage, idx); bad {
				warnings = append(warnings, w)
			}
		}
		out = append(out, lr)
	}
	return out, warnings, placeholders
}

// distributeFlat maps a legacy flat versions array onto the plan's
// targets. A single target takes the list directly; multiple targets
// get token-count-sorted versions assigned to percentage-sorted
// targets, chunked by versions per length.
func (r *Reconciler) distributeFlat(pool []wireVersion) []wireLength {
	targets := r.Plan.Targets
	if len(targets) == 1 {
		return []wireLength{{Versions: pool}}
	}

	expansion := r.Plan.Operation.Expansion()
	sorted := make([]wireVersion, len(pool))
	copy(sorted, pool)
	sort.SliceStable(sorted, func(a, b int) bool {
		ta := budget.EstimateTokens(sorted[a].Text)
		tb := budget.EstimateTokens(sorted[b].Text)
		if expansion {
			return ta < tb
		}
		return ta > tb
	})

	order := make([]int, len(targets))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		pa := targets[order[a]].TargetPercentage
		pb := targets[order[b]].TargetPercentage
		if expansion {
			return pa < pb
		}
		return pa > pb
	})

	lengths := make([]wireLength, len(targets))
	next := 0
	for _, targetIdx := range order {
		take := targets[targetIdx].VersionsPerLength
		if take > len(sorted)-next {
			take = len(sorted) - next
		}
		if take > 0 {
			lengths[targetIdx] = wireLength{Versions: sorted[next : next+take]}
			next += take
		}
	}
	return lengths
}

// checkDeviation flags versions whose realized percentage strays from
// the target. Rephrasing keeps length by definition and is exempt.
func (r *Reconciler) checkDeviation(versionNum, target int, final float64, idx int) (Warning, bool) {
	if r.Plan.Operation == plan.OpRephrase {
		return Warning{}, false
	}
	tolerance := r.Tolerance
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	expansion := r.Plan.Operation.Expansion()

	switch {
	case !expansion && final > 99 && final < 101:
		return Warning{
			Code:    CodeTextUnchanged,
			Message: fmt.Sprintf("version %d at %d%%%s came back unchanged", versionNum, target, r.suffix(idx)),
		}, true
	case expansion && final <= 102:
		return Warning{
			Code:    CodeInsufficientExpansion,
			Message: fmt.Sprintf("version %d at %d%%%s only reached %.1f%%", versionNum, target, r.suffix(idx), final),
		}, true
	case !expansion && final >= 98:
		return Warning{
			Code:    CodeInsufficientCompression,
			Message: fmt.Sprintf("version %d at %d%%%s only reached %.1f%%", versionNum, target, r.suffix(idx), final),
		}, true
	}

	min := float64(target) * (1 - tolerance)
	max := float64(target) * (1 + tolerance)
	if final < min || final > max {
		return Warning{
			Code:    CodeOutsideTargetRange,
			Message: fmt.Sprintf("version %d at %d%%%s landed at %.1f%%, outside %.0f%%-%.0f%%", versionNum, target, r.suffix(idx), final, min, max),
		}, true
	}
	return Warning{}, false
}

// allPlaceholders builds the result used when the completion could not
// be parsed at all.
func (r *Reconciler) allPlaceholders() *Result {
	res := &Result{Items: make([][]LengthResult, len(r.Items))}
	for i, original := range r.Items {
		origTokens := budget.EstimateTokens(original)
		lengths := make([]LengthResult, 0, len(r.Plan.Targets))
		for _, t := range r.Plan.Targets {
			lr := LengthResult{
				TargetPercentage: t.TargetPercentage,
				TargetTokens:     budget.TargetTokens(origTokens, t.TargetPercentage),
			}
			for v := 0; v < t.VersionsPerLength; v++ {
				lr.Versions = append(lr.Versions, placeholderVersion(original, origTokens))
				res.Placeholders++
			}
			lengths = append(lengths, lr)
		}
		res.Items[i] = lengths
	}
	return res
}

func placeholderVersion(original string, origTokens int) VersionResult {
	return VersionResult{
		Text:            original,
		FinalTokens:     origTokens,
		FinalPercentage: budget.FinalPercentage(origTokens, origTokens),
	}
}

func (r *Reconciler) suffix(idx int) string {
	if r.Cohesive {
		return ""
	}
	return fmt.Sprintf(" in fragment %d", idx+1)
}
