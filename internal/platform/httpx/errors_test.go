package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
)

type statusErr struct {
	status int
	msg    string
}

func (e statusErr) Error() string   { return e.msg }
func (e statusErr) HTTPStatus() int { return e.status }

func TestRespondError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantTitle  string
		wantDetail string
	}{
		{"status coder", statusErr{status: 403, msg: "required role not held"}, 403, "Forbidden", "required role not held"},
		{"wrapped not found", fmt.Errorf("role: %w", ErrNotFound), 404, "Not Found", "role: not found"},
		{"bare not found", ErrNotFound, 404, "Not Found", "not found"},
		{"opaque fallback", errors.New("pool exhausted"), 500, "Internal Error", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var body ProblemDetail
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Title != tc.wantTitle {
				t.Errorf("title = %q, want %q", body.Title, tc.wantTitle)
			}
			if body.Detail != tc.wantDetail {
				t.Errorf("detail = %q, want %q", body.Detail, tc.wantDetail)
			}
		})
	}
}
