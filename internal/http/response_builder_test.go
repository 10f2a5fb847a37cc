package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mxmoney/internal/core"
	applog "mxmoney/internal/log"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("amount: %w", core.ErrInvalidAmount), http.StatusBadRequest},
		{core.ErrInvalidArgument, http.StatusBadRequest},
		{fmt.Errorf("transaction 9: %w", core.ErrNotFound), http.StatusNotFound},
		{core.ErrConflict, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSON(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusAccepted, map[string]int{"n": 1})

	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(rr.Body.String()) != `{"n":1}` {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantMsg   string
		wantLevel string
	}{
		{
			name:      "client error is echoed",
			err:       fmt.Errorf("%w: days must be between 0 and 3650", core.ErrInvalidArgument),
			wantCode:  http.StatusBadRequest,
			wantMsg:   "days must be between 0 and 3650",
			wantLevel: "WARN",
		},
		{
			name:      "internal error is hidden",
			err:       errors.New("sqlite: database is locked"),
			wantCode:  http.StatusInternalServerError,
			wantMsg:   "internal server error",
			wantLevel: "ERROR",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := applog.New(applog.Config{Output: &logs, Format: "json", Level: slog.LevelDebug})
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(applog.NewContext(r.Context(), logger))
			rr := httptest.NewRecorder()

			writeServiceError(rr, r, "test_op", tt.err)

			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantCode)
			}
			var body errorBody
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(body.Error, tt.wantMsg) {
				t.Fatalf("error = %q, want %q", body.Error, tt.wantMsg)
			}
			if tt.wantCode == http.StatusInternalServerError && strings.Contains(body.Error, "sqlite") {
				t.Fatalf("internal detail leaked: %q", body.Error)
			}
			out := logs.String()
			if !strings.Contains(out, `"level":"`+tt.wantLevel+`"`) || !strings.Contains(out, "test_op") {
				t.Fatalf("log = %s", out)
			}
		})
	}
}
