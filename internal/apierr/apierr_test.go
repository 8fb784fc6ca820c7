package apierr

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	e := BadRequest("invalid_step", "step out of range")
	got := e.Error()
	if !strings.Contains(got, "invalid_step") || !strings.Contains(got, "400") {
		t.Fatalf("Error() should carry code and status, got %q", got)
	}
}

func TestWithDetailsCopies(t *testing.T) {
	base := BadRequest("invalid_style", "unknown style")
	with := base.WithDetails("did you mean \"formal\"?")
	if base.Details != "" {
		t.Fatalf("WithDetails must not mutate the original, got %q", base.Details)
	}
	if with.Details == "" || with.Code != base.Code {
		t.Fatalf("detail copy should keep code and add details: %+v", with)
	}
}

func TestWrapPassThrough(t *testing.T) {
	orig := BadGateway("api_error", "provider down")
	wrapped := Wrap(orig, http.StatusInternalServerError, "internal_server_error")
	if wrapped != orig {
		t.Fatalf("Wrap should pass *Error through unchanged")
	}
	plain := Wrap(errors.New("boom"), http.StatusInternalServerError, "internal_server_error")
	if plain.Status != http.StatusInternalServerError || plain.Code != "internal_server_error" {
		t.Fatalf("Wrap plain error mapped wrong: %+v", plain)
	}
	if Wrap(nil, 500, "x") != nil {
		t.Fatalf("Wrap(nil) should be nil")
	}
}

func TestEnvelopeJSON(t *testing.T) {
	env := Envelope{Err: Unauthorized("missing bearer token")}
	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Status  int    `json:"status"`
			Details string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Error.Code != "unauthorized" || decoded.Error.Status != 401 {
		t.Fatalf("unexpected envelope: %s", string(b))
	}
	if strings.Contains(string(b), "details") {
		t.Fatalf("empty details should be omitted: %s", string(b))
	}
}
