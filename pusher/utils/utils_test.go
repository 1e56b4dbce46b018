package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func requestWithUrlParam(key, value string) *http.Request {
	r := httptest.NewRequest("GET", "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestURLParamUUID(t *testing.T) {
	id := uuid.New()

	parsed, err := URLParamUUID(requestWithUrlParam("push_id", id.String()), "push_id")
	if err != nil {
		t.Fatal(err)
	}
	if parsed != id {
		t.Fatalf("expected %v, got %v", id, parsed)
	}

	if _, err := URLParamUUID(requestWithUrlParam("push_id", "not-a-uuid"), "push_id"); err == nil {
		t.Fatal("expected error for invalid uuid")
	}

	if _, err := URLParamUUID(httptest.NewRequest("GET", "/", nil), "push_id"); err == nil {
		t.Fatal("expected error for missing url parameter")
	}
}

func TestParseRequestBodyRejectsMalformedJson(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader("{not json"))
	w := httptest.NewRecorder()

	var dest map[string]string
	if ParseRequestBody(w, r, &dest) {
		t.Fatal("expected malformed body to be rejected")
	}
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}
