package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"mxmoney/internal/core"
	"mxmoney/internal/services"
)

const (
	maxJSONBody = 1 << 20

	// MaxProjectionDays bounds days on projection and simulation requests.
	MaxProjectionDays = services.MaxProjectionDays
	// MaxOccurrences bounds occurrences on simulation requests.
	MaxOccurrences = services.MaxOccurrences
)

// decodeJSON reads a single JSON value from the body into v. Trailing data
// is rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("%w: request body too large", core.ErrInvalidArgument)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty request body", core.ErrInvalidArgument)
		case errors.Is(err, core.ErrInvalidArgument):
			return err
		default:
			return fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalidArgument, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: request body must hold a single JSON value", core.ErrInvalidArgument)
	}
	return nil
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", core.ErrInvalidArgument, raw)
	}
	return id, nil
}

// queryDate parses key as YYYY-MM-DD. ok is false when key is absent.
func queryDate(q url.Values, key string) (d core.Date, ok bool, err error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return core.Date{}, false, nil
	}
	d, err = core.ParseDate(raw)
	if err != nil {
		return core.Date{}, false, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// queryInt parses key as an integer in [lo, hi], returning def when absent.
func queryInt(q url.Values, key string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", core.ErrInvalidArgument, key)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%w: %s must be between %d and %d", core.ErrInvalidArgument, key, lo, hi)
	}
	return n, nil
}

func queryBool(q url.Values, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(q.Get(key)))
	return b
}

// sanitizeInput removes control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s))
}
