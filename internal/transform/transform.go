// Package transform runs one transformation request end to end:
// decode, validate, plan, prompt, complete, reconcile, and assemble
// the response envelope with its metadata.
package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/metasphere-xyz/texttransform/internal/apierr"
	"github.com/metasphere-xyz/texttransform/internal/budget"
	"github.com/metasphere-xyz/texttransform/internal/llm"
	"github.com/metasphere-xyz/texttransform/internal/metrics"
	"github.com/metasphere-xyz/texttransform/internal/plan"
	"github.com/metasphere-xyz/texttransform/internal/prompt"
	"github.com/metasphere-xyz/texttransform/internal/reconcile"
	"github.com/metasphere-xyz/texttransform/internal/request"
	"github.com/metasphere-xyz/texttransform/internal/textutil"
	"github.com/metasphere-xyz/texttransform/internal/validate"
)

// CodeUnusedParameter marks parameters that were sent but never read.
const CodeUnusedParameter = "unused_parameter"

// Completer is the gateway seam. *llm.Gateway satisfies it; tests
// substitute fakes.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Service handles transformation requests for every operation. All
// fields are set once at startup and shared read-only across requests.
type Service struct {
	Gateway   Completer
	Limits    plan.Limits
	Tolerance float64
	Metrics   *metrics.Metrics
}

// Response is the success envelope for one transformation request.
// Lengths is set for cohesive input, Fragments for fragmented input.
type Response struct {
	Type      string                   `json:"type"`
	Lengths   []reconcile.LengthResult `json:"lengths,omitempty"`
	Fragments []Fragment               `json:"fragments,omitempty"`
	Metadata  Metadata                 `json:"metadata"`
}

// Fragment groups the lengths realized for one input fragment.
type Fragment struct {
	Lengths []reconcile.LengthResult `json:"lengths"`
}

// Metadata describes how the request was planned and executed.
// OriginalTokens is an int for cohesive input and a list for
// fragmented input, in input order.
type Metadata struct {
	Operation         string              `json:"operation"`
	Mode              string              `json:"mode"`
	OriginalTokens    any                 `json:"original_tokens"`
	VersionsPerLength int                 `json:"versions_per_length"`
	TargetLengths     []string            `json:"target_lengths"`
	StartPercentage   int                 `json:"start_percentage,omitempty"`
	StepSize          int                 `json:"step_size,omitempty"`
	Warnings          []reconcile.Warning `json:"warnings,omitempty"`
}

// Do runs one request. Validation failures and provider failures come
// back as *apierr.Error; reconciliation shortfalls never fail the
// request and surface as metadata warnings instead.
func (s *Service) Do(ctx context.Context, op plan.Operation, body []byte) (*Response, *apierr.Error) {
	r, err := request.Decode(op, body)
	if err != nil {
		if errors.Is(err, request.ErrContentShape) {
			return nil, apierr.BadRequest(validate.CodeInvalidParams, err.Error())
		}
		return nil, apierr.BadRequest(validate.CodeInvalidParams, "request body must be a JSON object")
	}

	if aerr := validate.Request(r, s.Limits); aerr != nil {
		return nil, aerr
	}

	// Markup never counts toward token math; strip before anything
	// measures or quotes the content.
	for i, f := range r.Fragments {
		r.Fragments[i] = textutil.StripMarkup(f)
	}

	pl := plan.Build(planParams(r), s.Limits)
	msgs := prompt.Build(r, pl)

	temperature := budget.DefaultTemperature
	if f, ok, err := r.Float("temperature"); ok && err == nil {
		temperature = f
	}
	temperature = budget.ClampTemperature(temperature)

	totalTokens := 0
	for _, f := range r.Fragments {
		totalTokens += budget.EstimateTokens(f)
	}

	log.Debug().
		Str("operation", string(op)).
		Str("mode", pl.Mode()).
		Int("fragments", len(r.Fragments)).
		Int("original_tokens", totalTokens).
		Ints("targets", pl.Percentages()).
		Msg("transformation planned")

	raw, err := s.Gateway.Complete(ctx, llm.Request{
		System:      msgs.System,
		User:        msgs.User,
		Temperature: temperature,
		MaxTokens:   budget.MaxCompletionTokens(totalTokens, op.Expansion(), pl.TotalVersions()),
	})
	if err != nil {
		log.Error().Err(err).Str("operation", string(op)).Msg("completion failed")
		return nil, apierr.BadGateway("api_error", "language model request failed")
	}

	rec := &reconcile.Reconciler{
		Plan:      pl,
		Items:     r.Fragments,
		Cohesive:  r.Cohesive,
		Tolerance: s.Tolerance,
	}
	res, err := rec.Reconcile(raw)
	if err != nil {
		var me *reconcile.ModelError
		if errors.As(err, &me) {
			log.Warn().Str("operation", string(op)).Str("reason", me.Message).Msg("model declined the task")
			return nil, apierr.BadGateway("api_error", "language model reported an error").WithDetails(me.Message)
		}
		log.Error().Err(err).Str("operation", string(op)).Msg("completion shape unusable")
		return nil, apierr.BadGateway("invalid_response", "language model returned an unrecognized response shape")
	}

	if res.Placeholders > 0 {
		log.Warn().
			Str("operation", string(op)).
			Int("placeholders", res.Placeholders).
			Msg("model response padded with original text")
		s.Metrics.RecordPlaceholders(res.Placeholders)
	}

	warnings := res.Warnings
	for _, p := range r.UnusedParams() {
		warnings = append(warnings, reconcile.Warning{
			Code:    CodeUnusedParameter,
			Message: fmt.Sprintf("parameter %q was not used by this operation", p),
		})
	}
	for _, w := range warnings {
		s.Metrics.RecordWarning(w.Code)
	}

	return s.assemble(r, pl, res, warnings), nil
}

// planParams moves the planning knobs out of the request. Types were
// pinned by the validator, so coercion failures cannot happen here.
func planParams(r *request.OperationRequest) plan.Params {
	p := plan.Params{Operation: r.Operation}
	if n, ok, err := r.Int("target_percentage"); ok && err == nil {
		p.TargetPercentage = n
	}
	if ns, ok, err := r.Ints("target_percentages"); ok && err == nil {
		p.TargetPercentages = ns
	}
	if n, ok, err := r.Int("start_percentage"); ok && err == nil {
		p.StartPercentage = n
	}
	if n, ok, err := r.Int("steps_percentage"); ok && err == nil {
		p.StepsPercentage = n
	}
	if n, ok, err := r.Int("versions"); ok && err == nil {
		p.Versions = n
	}
	return p
}

func (s *Service) assemble(r *request.OperationRequest, pl plan.Plan, res *reconcile.Result, warnings []reconcile.Warning) *Response {
	meta := Metadata{
		Operation:         string(r.Operation),
		Mode:              pl.Mode(),
		VersionsPerLength: pl.VersionsPerLength(),
		TargetLengths:     pl.FormatTargets(),
		Warnings:          warnings,
	}
	if pl.Staggered() {
		meta.StartPercentage = pl.StartPercentage
		meta.StepSize = pl.StepSize
	}

	if r.Cohesive {
		meta.OriginalTokens = budget.EstimateTokens(r.Fragments[0])
		return &Response{Type: "cohesive", Lengths: res.Items[0], Metadata: meta}
	}

	counts := make([]int, len(r.Fragments))
	for i, f := range r.Fragments {
		counts[i] = budget.EstimateTokens(f)
	}
	meta.OriginalTokens = counts

	frags := make([]Fragment, len(res.Items))
	for i, lengths := range res.Items {
		frags[i] = Fragment{Lengths: lengths}
	}
	return &Response{Type: "fragments", Fragments: frags, Metadata: meta}
}
