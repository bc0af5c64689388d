package pagination

import (
	"net/http"
	"strconv"

	apperrors "github.com/utafrali/promocode/pkg/errors"
)

// Bounds of the limit query parameter.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// Params holds limit/offset pagination parameters extracted from query strings.
type Params struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// DefaultParams returns the parameters used when the query has none.
func DefaultParams() Params {
	return Params{Limit: DefaultLimit, Offset: 0}
}

// FromRequest extracts limit and offset from an HTTP request. Values that
// are not integers, a limit outside 0..100 or a negative offset are rejected
// with an InvalidInput error.
func FromRequest(r *http.Request) (Params, error) {
	p := DefaultParams()
	q := r.URL.Query()

	if raw := q.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 || v > MaxLimit {
			return Params{}, apperrors.InvalidInput("limit must be an integer between 0 and 100")
		}
		p.Limit = v
	}

	if raw := q.Get("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return Params{}, apperrors.InvalidInput("offset must be a non-negative integer")
		}
		p.Offset = v
	}

	return p, nil
}
