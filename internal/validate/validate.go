// Package validate rejects malformed transformation requests before
// any planning or provider call happens. Checks run as a predicate
// chain over the raw parameters; the first failure wins and maps to a
// stable error code.
package validate

import (
	"fmt"
	"strings"

	edlib "github.com/hbollon/go-edlib"

	"github.com/metasphere-xyz/texttransform/internal/apierr"
	"github.com/metasphere-xyz/texttransform/internal/budget"
	"github.com/metasphere-xyz/texttransform/internal/plan"
	"github.com/metasphere-xyz/texttransform/internal/request"
)

// Error codes surfaced in the 400 envelope.
const (
	CodeInvalidParams        = "invalid_params"
	CodeInvalidVersions      = "invalid_versions"
	CodeInvalidStyle         = "invalid_style"
	CodeInvalidTone          = "invalid_tone"
	CodeInvalidAspects       = "invalid_aspects"
	CodeInvalidFragmentStyle = "invalid_fragment_style"
	CodeInvalidStep          = "invalid_step"
	CodeInvalidExpansion     = "invalid_expansion"
	CodeInvalidCompression   = "invalid_compression"
	CodeInvalidRange         = "invalid_range"
)

// Accepted values for the style and tone knobs.
var (
	Styles         = []string{"elaborate", "explain", "example", "detail"}
	RephraseStyles = []string{"formal", "casual", "technical", "simple", "elaborate"}
	Tones          = []string{"academic", "conversational", "technical"}
	Aspects        = []string{"context", "examples", "implications", "technical_details", "counterarguments"}
	FragmentStyles = []string{"bullet", "narrative", "outline"}
)

// Request checks one decoded request against the planning limits. A
// nil return means planning may proceed. The request's parameters are
// only peeked at, never consumed, so validation does not mask
// unused-parameter warnings.
func Request(r *request.OperationRequest, lim plan.Limits) *apierr.Error {
	if err := checkContent(r); err != nil {
		return err
	}
	if r.Has("target_percentage") && r.Has("target_percentages") {
		return apierr.BadRequest(CodeInvalidParams,
			"target_percentage and target_percentages are mutually exclusive")
	}
	if err := checkVersions(r, lim); err != nil {
		return err
	}
	if err := checkEnum(r, "style", styleSet(r.Operation), CodeInvalidStyle); err != nil {
		return err
	}
	if err := checkEnum(r, "tone", Tones, CodeInvalidTone); err != nil {
		return err
	}
	if err := checkAspects(r); err != nil {
		return err
	}
	if err := checkEnum(r, "fragment_style", FragmentStyles, CodeInvalidFragmentStyle); err != nil {
		return err
	}
	if err := checkStep(r, lim); err != nil {
		return err
	}
	if err := checkTargets(r, lim); err != nil {
		return err
	}
	if err := checkStart(r, lim); err != nil {
		return err
	}
	if err := checkTemperature(r); err != nil {
		return err
	}
	return nil
}

func checkContent(r *request.OperationRequest) *apierr.Error {
	if len(r.Fragments) == 0 {
		return apierr.BadRequest(CodeInvalidParams, "content is required")
	}
	for i, f := range r.Fragments {
		if strings.TrimSpace(f) == "" {
			if r.Cohesive {
				return apierr.BadRequest(CodeInvalidParams, "content must not be empty")
			}
			return apierr.Newf(400, CodeInvalidParams, "content fragment %d is empty", i)
		}
	}
	return nil
}

func checkVersions(r *request.OperationRequest, lim plan.Limits) *apierr.Error {
	v, ok := r.Peek("versions")
	if !ok {
		return nil
	}
	n, err := request.AsInt(v)
	if err != nil {
		return apierr.BadRequest(CodeInvalidVersions, "versions must be an integer")
	}
	if n < 1 || n > lim.MaxVersions {
		return apierr.Newf(400, CodeInvalidVersions,
			"versions must be between 1 and %d", lim.MaxVersions)
	}
	return nil
}

func styleSet(op plan.Operation) []string {
	if op == plan.OpRephrase {
		return RephraseStyles
	}
	return Styles
}

func checkEnum(r *request.OperationRequest, key string, valid []string, code string) *apierr.Error {
	v, ok := r.Peek(key)
	if !ok {
		return nil
	}
	s, err := request.AsString(v)
	if err != nil {
		return apierr.Newf(400, code, "%s must be a string", key)
	}
	if contains(valid, s) {
		return nil
	}
	e := apierr.Newf(400, code, "%s must be one of: %s", key, strings.Join(valid, ", "))
	if hint := suggest(s, valid); hint != "" {
		return e.WithDetails(hint)
	}
	return e
}

func checkAspects(r *request.OperationRequest) *apierr.Error {
	v, ok := r.Peek("aspects")
	if !ok {
		return nil
	}
	list, err := request.AsStrings(v)
	if err != nil {
		return apierr.BadRequest(CodeInvalidAspects, "aspects must be an array of strings")
	}
	for _, a := range list {
		if contains(Aspects, a) {
			continue
		}
		e := apierr.Newf(400, CodeInvalidAspects,
			"aspect %q must be one of: %s", a, strings.Join(Aspects, ", "))
		if hint := suggest(a, Aspects); hint != "" {
			return e.WithDetails(hint)
		}
		return e
	}
	return nil
}

func checkStep(r *request.OperationRequest, lim plan.Limits) *apierr.Error {
	v, ok := r.Peek("steps_percentage")
	if !ok {
		return nil
	}
	n, err := request.AsInt(v)
	if err != nil {
		return apierr.BadRequest(CodeInvalidStep, "steps_percentage must be an integer")
	}
	if n < lim.MinStep || n > lim.MaxStep {
		return apierr.Newf(400, CodeInvalidStep,
			"steps_percentage must be between %d and %d", lim.MinStep, lim.MaxStep)
	}
	return nil
}

func checkTargets(r *request.OperationRequest, lim plan.Limits) *apierr.Error {
	if v, ok := r.Peek("target_percentage"); ok {
		n, err := request.AsInt(v)
		if err != nil {
			return apierr.BadRequest(targetCode(r.Operation), "target_percentage must be an integer")
		}
		if e := checkPercentage(n, r.Operation, lim, "target_percentage"); e != nil {
			return e
		}
	}
	if v, ok := r.Peek("target_percentages"); ok {
		ns, err := request.AsInts(v)
		if err != nil {
			return apierr.BadRequest(CodeInvalidParams, "target_percentages must be an array of integers")
		}
		if len(ns) == 0 {
			return apierr.BadRequest(CodeInvalidParams, "target_percentages must not be empty")
		}
		for _, n := range ns {
			if e := checkPercentage(n, r.Operation, lim, "target_percentages"); e != nil {
				return e
			}
		}
	}
	return nil
}

func targetCode(op plan.Operation) string {
	switch op {
	case plan.OpExpand:
		return CodeInvalidExpansion
	case plan.OpCompress:
		return CodeInvalidCompression
	default:
		return CodeInvalidRange
	}
}

// checkPercentage enforces the direction bounds. 100 means "unchanged"
// and is rejected for compress and expand; rephrase accepts it along
// with anything inside the overall sane range.
func checkPercentage(n int, op plan.Operation, lim plan.Limits, field string) *apierr.Error {
	switch op {
	case plan.OpExpand:
		if n <= 100 || n < lim.MinExpansion || n > lim.MaxExpansion {
			return apierr.Newf(400, CodeInvalidExpansion,
				"%s must be between %d and %d for expansion", field, lim.MinExpansion, lim.MaxExpansion)
		}
	case plan.OpCompress:
		if n >= 100 || n < lim.MinCompression || n > lim.MaxCompression {
			return apierr.Newf(400, CodeInvalidCompression,
				"%s must be between %d and %d for compression", field, lim.MinCompression, lim.MaxCompression)
		}
	default:
		if n < lim.MinCompression || n > lim.MaxExpansion {
			return apierr.Newf(400, CodeInvalidRange,
				"%s must be between %d and %d", field, lim.MinCompression, lim.MaxExpansion)
		}
	}
	return nil
}

func checkStart(r *request.OperationRequest, lim plan.Limits) *apierr.Error {
	v, ok := r.Peek("start_percentage")
	if !ok {
		return nil
	}
	n, err := request.AsInt(v)
	if err != nil {
		return apierr.BadRequest(CodeInvalidRange, "start_percentage must be an integer")
	}
	switch r.Operation {
	case plan.OpExpand:
		if n < lim.MinExpansion || n > lim.MaxExpansion {
			return apierr.Newf(400, CodeInvalidRange,
				"start_percentage must be between %d and %d for expansion", lim.MinExpansion, lim.MaxExpansion)
		}
	case plan.OpCompress:
		if n <= 0 || n >= 100 || n < lim.MinCompression || n > lim.MaxCompression {
			return apierr.Newf(400, CodeInvalidRange,
				"start_percentage must be between %d and %d for compression", lim.MinCompression, lim.MaxCompression)
		}
	}

	tv, ok := r.Peek("target_percentage")
	if !ok {
		return nil
	}
	target, err := request.AsInt(tv)
	if err != nil {
		return nil // already rejected by checkTargets
	}
	if r.Operation == plan.OpCompress && n <= target {
		return apierr.BadRequest(CodeInvalidRange,
			"start_percentage must be greater than target_percentage for compression")
	}
	if r.Operation == plan.OpExpand && n >= target {
		return apierr.BadRequest(CodeInvalidRange,
			"start_percentage must be less than target_percentage for expansion")
	}
	return nil
}

func checkTemperature(r *request.OperationRequest) *apierr.Error {
	v, ok := r.Peek("temperature")
	if !ok {
		return nil
	}
	f, err := request.AsFloat(v)
	if err != nil {
		return apierr.BadRequest(CodeInvalidParams, "temperature must be a number")
	}
	if f < 0 || f > budget.MaxTemperature {
		return apierr.Newf(400, CodeInvalidParams,
			"temperature must be between 0 and %.1f", budget.MaxTemperature)
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// suggest returns a "did you mean" hint when the rejected value sits
// close enough to a valid one.
func suggest(value string, valid []string) string {
	match, err := edlib.FuzzySearchThreshold(strings.ToLower(value), valid, 0.7, edlib.JaroWinkler)
	if err != nil || match == "" {
		return ""
	}
	return fmt.Sprintf("did you mean %q?", match)
}
