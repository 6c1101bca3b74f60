package response

import (
	"encoding/json/v2"
	"net/http"
	"net/http/httptest"
	"testing"

	domainerrors "github.com/mirrorapp/mirror-server/internal/errors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"hello": "world"}, nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("unexpected content type %q", ct)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Error("expected success envelope")
	}
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	BadRequest(rec, "bad input", nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Error("expected failure envelope")
	}
	if env.Error != "bad input" {
		t.Errorf("unexpected error message %q", env.Error)
	}
}

func TestHandleErrorDomainCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domainerrors.NotFound("scene not found"), http.StatusNotFound},
		{domainerrors.Validation("bad filter"), http.StatusBadRequest},
		{domainerrors.CacheNotReady("no full sync yet"), http.StatusServiceUnavailable},
		{domainerrors.Conflict("already running"), http.StatusConflict},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		HandleError(rec, tc.err, nil)
		if rec.Code != tc.status {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		env := decodeEnvelope(t, rec)
		if env.Code == "" {
			t.Errorf("%v: expected machine-readable code", tc.err)
		}
	}
}

func TestHandleErrorUnknown(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, http.ErrBodyNotAllowed, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
