package transform

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/metasphere-xyz/texttransform/internal/llm"
	"github.com/metasphere-xyz/texttransform/internal/plan"
)

type fakeGateway struct {
	reply   string
	err     error
	calls   int
	lastReq llm.Request
}

func (f *fakeGateway) Complete(_ context.Context, req llm.Request) (string, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newService(g *fakeGateway) *Service {
	return &Service{Gateway: g, Limits: plan.DefaultLimits()}
}

func TestDoCohesiveCompress(t *testing.T) {
	gw := &fakeGateway{reply: `{"lengths": [{"versions": [{"text": "one two three four five"}]}]}`}
	svc := newService(gw)

	body := `{"content": "one two three four five six seven eight nine", "target_percentage": 50}`
	resp, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(body))
	if aerr != nil {
		t.Fatalf("Do: %v", aerr)
	}
	if resp.Type != "cohesive" {
		t.Errorf("type = %q", resp.Type)
	}
	if len(resp.Lengths) != 1 || len(resp.Lengths[0].Versions) != 1 {
		t.Fatalf("lengths = %+v", resp.Lengths)
	}
	v := resp.Lengths[0].Versions[0]
	if v.Text != "one two three four five" || v.FinalTokens != 5 || v.FinalPercentage != 55.6 {
		t.Errorf("version = %+v", v)
	}
	if resp.Metadata.Operation != "compress" || resp.Metadata.Mode != "fixed" {
		t.Errorf("metadata = %+v", resp.Metadata)
	}
	if got, ok := resp.Metadata.OriginalTokens.(int); !ok || got != 9 {
		t.Errorf("original tokens = %v", resp.Metadata.OriginalTokens)
	}
	if len(resp.Metadata.TargetLengths) != 1 || resp.Metadata.TargetLengths[0] != "50%" {
		t.Errorf("target lengths = %v", resp.Metadata.TargetLengths)
	}
	if len(resp.Metadata.Warnings) != 0 {
		t.Errorf("warnings = %v", resp.Metadata.Warnings)
	}
	if resp.Metadata.StartPercentage != 0 || resp.Metadata.StepSize != 0 {
		t.Errorf("fixed plan leaked walk fields: %+v", resp.Metadata)
	}

	if gw.lastReq.System == "" || !strings.Contains(gw.lastReq.User, "one two three") {
		t.Errorf("prompt not forwarded: %+v", gw.lastReq)
	}
	if gw.lastReq.Temperature != 0.7 {
		t.Errorf("temperature = %v, want default", gw.lastReq.Temperature)
	}
	if gw.lastReq.MaxTokens != 1000 {
		t.Errorf("max tokens = %d, want budget floor", gw.lastReq.MaxTokens)
	}
}

func TestDoFragmentsExpand(t *testing.T) {
	gw := &fakeGateway{reply: `{"fragments": [
	  {"lengths": [{"versions": [{"text": "alpha beta gamma delta grew to eight tokens"}]}]},
	  {"lengths": [{"versions": [{"text": "epsilon zeta eta theta also grew eight tokens"}]}]}
	]}`}
	svc := newService(gw)

	body := `{"content": ["alpha beta gamma delta", "epsilon zeta eta theta"], "target_percentage": 200}`
	resp, aerr := svc.Do(context.Background(), plan.OpExpand, []byte(body))
	if aerr != nil {
		t.Fatalf("Do: %v", aerr)
	}
	if resp.Type != "fragments" || len(resp.Fragments) != 2 {
		t.Fatalf("response = %+v", resp)
	}
	for i, f := range resp.Fragments {
		if got := f.Lengths[0].Versions[0].FinalPercentage; got != 200 {
			t.Errorf("fragment %d percentage = %v", i, got)
		}
	}
	counts, ok := resp.Metadata.OriginalTokens.([]int)
	if !ok || len(counts) != 2 || counts[0] != 4 || counts[1] != 4 {
		t.Errorf("original tokens = %v", resp.Metadata.OriginalTokens)
	}
	if len(resp.Metadata.Warnings) != 0 {
		t.Errorf("warnings = %v", resp.Metadata.Warnings)
	}
}

func TestDoValidationShortCircuits(t *testing.T) {
	gw := &fakeGateway{reply: "{}"}
	svc := newService(gw)

	body := `{"content": "some text", "versions": 99}`
	_, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(body))
	if aerr == nil || aerr.Code != "invalid_versions" {
		t.Fatalf("aerr = %v, want invalid_versions", aerr)
	}
	if gw.calls != 0 {
		t.Errorf("gateway called %d times before validation", gw.calls)
	}
}

func TestDoRejectsNonObjectBody(t *testing.T) {
	svc := newService(&fakeGateway{})
	_, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(`[1, 2]`))
	if aerr == nil || aerr.Status != http.StatusBadRequest {
		t.Fatalf("aerr = %v, want 400", aerr)
	}
}

func TestDoGatewayFailure(t *testing.T) {
	gw := &fakeGateway{err: errors.New("connection refused")}
	svc := newService(gw)

	body := `{"content": "one two three four"}`
	_, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(body))
	if aerr == nil || aerr.Status != http.StatusBadGateway || aerr.Code != "api_error" {
		t.Fatalf("aerr = %v, want 502 api_error", aerr)
	}
}

func TestDoModelErrorEnvelope(t *testing.T) {
	gw := &fakeGateway{reply: `{"error": "text too short to compress"}`}
	svc := newService(gw)

	body := `{"content": "one two three four"}`
	_, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(body))
	if aerr == nil || aerr.Status != http.StatusBadGateway || aerr.Code != "api_error" {
		t.Fatalf("aerr = %v, want 502 api_error", aerr)
	}
	if !strings.Contains(aerr.Details, "too short") {
		t.Errorf("details = %q", aerr.Details)
	}
}

func TestDoUnrecognizedShape(t *testing.T) {
	gw := &fakeGateway{reply: `{"result": "something else"}`}
	svc := newService(gw)

	body := `{"content": "one two three four"}`
	_, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(body))
	if aerr == nil || aerr.Code != "invalid_response" {
		t.Fatalf("aerr = %v, want invalid_response", aerr)
	}
}

func TestDoMalformedCompletionStillSucceeds(t *testing.T) {
	gw := &fakeGateway{reply: "the model ignored every instruction"}
	svc := newService(gw)

	original := "one two three four five six seven eight nine ten"
	body := `{"content": "` + original + `", "start_percentage": 80, "steps_percentage": 20, "target_percentage": 40}`
	resp, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(body))
	if aerr != nil {
		t.Fatalf("Do: %v", aerr)
	}
	if resp.Metadata.Mode != "staggered" {
		t.Errorf("mode = %q", resp.Metadata.Mode)
	}
	if resp.Metadata.StartPercentage != 80 || resp.Metadata.StepSize != 20 {
		t.Errorf("walk fields = %d/%d", resp.Metadata.StartPercentage, resp.Metadata.StepSize)
	}
	if len(resp.Lengths) != 3 {
		t.Fatalf("lengths = %d, want 80/60/40", len(resp.Lengths))
	}
	for _, l := range resp.Lengths {
		if l.Versions[0].Text != original {
			t.Errorf("placeholder at %d%% = %q", l.TargetPercentage, l.Versions[0].Text)
		}
	}
	if len(resp.Metadata.Warnings) == 0 || resp.Metadata.Warnings[0].Code != "parse_error" {
		t.Errorf("warnings = %v", resp.Metadata.Warnings)
	}
}

func TestDoReportsUnusedParameters(t *testing.T) {
	gw := &fakeGateway{reply: `{"lengths": [{"versions": [{"text": "one two"}]}]}`}
	svc := newService(gw)

	body := `{"content": "one two three four", "target_percentage": 50, "frobnicate": true}`
	resp, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(body))
	if aerr != nil {
		t.Fatalf("Do: %v", aerr)
	}
	var found bool
	for _, w := range resp.Metadata.Warnings {
		if w.Code == CodeUnusedParameter && strings.Contains(w.Message, "frobnicate") {
			found = true
		}
	}
	if !found {
		t.Fatalf("warnings = %v, want unused_parameter for frobnicate", resp.Metadata.Warnings)
	}
}

func TestDoForwardsTemperature(t *testing.T) {
	gw := &fakeGateway{reply: `{"lengths": [{"versions": [{"text": "one two"}]}]}`}
	svc := newService(gw)

	body := `{"content": "one two three four", "target_percentage": 50, "temperature": 0.9}`
	if _, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(body)); aerr != nil {
		t.Fatalf("Do: %v", aerr)
	}
	if gw.lastReq.Temperature != 0.9 {
		t.Errorf("temperature = %v", gw.lastReq.Temperature)
	}
}

func TestDoStripsMarkupBeforeCounting(t *testing.T) {
	gw := &fakeGateway{reply: `{"lengths": [{"versions": [{"text": "one two"}]}]}`}
	svc := newService(gw)

	body := `{"content": "<p>one two three four</p>", "target_percentage": 50}`
	resp, aerr := svc.Do(context.Background(), plan.OpCompress, []byte(body))
	if aerr != nil {
		t.Fatalf("Do: %v", aerr)
	}
	if got, _ := resp.Metadata.OriginalTokens.(int); got != 4 {
		t.Errorf("original tokens = %v, want markup-free count", resp.Metadata.OriginalTokens)
	}
	if strings.Contains(gw.lastReq.User, "<p>") {
		t.Errorf("markup leaked into prompt: %s", gw.lastReq.User)
	}
}
