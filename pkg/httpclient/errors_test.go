package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/utafrali/promocode/pkg/errors"
)

func newResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError_Taxonomy(t *testing.T) {
	tests := []struct {
		status   int
		sentinel error
	}{
		{http.StatusBadRequest, apperrors.ErrInvalidInput},
		{http.StatusUnauthorized, apperrors.ErrUnauthorized},
		{http.StatusForbidden, apperrors.ErrForbidden},
		{http.StatusNotFound, apperrors.ErrNotFound},
		{http.StatusTooManyRequests, apperrors.ErrRateLimited},
		{http.StatusServiceUnavailable, apperrors.ErrServiceUnavail},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := ParseResponseError(newResponse(tt.status, `{"error":{"code":"X","message":"nope"}}`), "antifraud")
			assert.ErrorIs(t, err, tt.sentinel)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestParseResponseError_ServerErrorIsStatusError(t *testing.T) {
	err := ParseResponseError(newResponse(http.StatusBadGateway, "<html>bad gateway</html>"), "antifraud")

	var statusErr *StatusError
	assert.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "bad gateway")
}

func TestParseResponseError_UnknownStatusKeepsCode(t *testing.T) {
	err := ParseResponseError(newResponse(http.StatusTeapot, "short and stout"), "antifraud")

	var appErr *apperrors.AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusTeapot, appErr.Status)
	assert.Contains(t, appErr.Message, "short and stout")
}
