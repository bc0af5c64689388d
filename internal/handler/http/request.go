package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/promocode/internal/domain"
	apperrors "github.com/utafrali/promocode/pkg/errors"
	"github.com/utafrali/promocode/pkg/httputil"
	"github.com/utafrali/promocode/pkg/validator"
)

// maxBodyBytes fits a full unique pool of 5000 codes.
const maxBodyBytes = 1 << 20

func init() {
	validator.RegisterStringRule("country", domain.IsValidCountry)
}

// decodeJSON decodes and validates the request body into dst. On failure it
// writes the error response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := validator.DecodeAndValidate(r, dst); err != nil {
		var valErr *validator.ValidationError
		if !errors.As(err, &valErr) {
			err = apperrors.InvalidInput("invalid request body")
		}
		httputil.WriteError(w, r, err, logger)
		return false
	}
	return true
}

// pathID reads a UUID path parameter. On failure it writes a 400 and returns
// false.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, name))
	if !ok {
		return "", false
	}
	return id.String(), true
}

// parseDate parses an optional YYYY-MM-DD date.
func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := time.Parse(domain.DateLayout, *s)
	if err != nil {
		return nil, apperrors.InvalidInput(field + " must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

// queryCountries collects the country query parameter, given repeatedly or
// as a comma-separated list.
func queryCountries(r *http.Request) []string {
	var out []string
	for _, raw := range r.URL.Query()["country"] {
		for _, c := range strings.Split(raw, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.InvalidInput(name + " must be true or false")
	}
	return &v, nil
}

// statusOK is the body of acknowledgement responses.
var statusOK = map[string]string{"status": "ok"}
