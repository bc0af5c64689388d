// Package antifraud talks to the remote anti-fraud decision service.
package antifraud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/utafrali/promocode/internal/domain"
	"github.com/utafrali/promocode/pkg/httpclient"
)

const validatePath = "/api/validate"

// Doer is the subset of the resilient HTTP client used here.
type Doer interface {
	PostJSON(ctx context.Context, url string, payload any) (*http.Response, error)
}

// Client calls POST /api/validate on the anti-fraud service.
type Client struct {
	http    Doer
	baseURL string
	logger  *slog.Logger
}

// NewClient creates an anti-fraud client. address may be a bare host:port.
func NewClient(doer Doer, address string, logger *slog.Logger) *Client {
	baseURL := strings.TrimRight(address, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return &Client{http: doer, baseURL: baseURL, logger: logger}
}

type validateRequest struct {
	UserEmail string `json:"user_email"`
	PromoID   string `json:"promo_id"`
}

type validateResponse struct {
	OK         *bool            `json:"ok"`
	CacheUntil *json.RawMessage `json:"cache_until"`
}

// Check asks the service whether the user may activate the promo. Any
// failure to obtain a well-formed answer is returned as an error; callers
// treat errors as a deny.
func (c *Client) Check(ctx context.Context, userEmail, promoID string) (domain.FraudDecision, error) {
	resp, err := c.http.PostJSON(ctx, c.baseURL+validatePath, validateRequest{UserEmail: userEmail, PromoID: promoID})
	if err != nil {
		return domain.FraudDecision{}, fmt.Errorf("call antifraud: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.FraudDecision{}, fmt.Errorf("call antifraud: %w", httpclient.ParseResponseError(resp, "antifraud"))
	}
	defer func() { _ = resp.Body.Close() }()

	var body validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return domain.FraudDecision{}, fmt.Errorf("decode antifraud response: %w", err)
	}
	if body.OK == nil {
		return domain.FraudDecision{}, fmt.Errorf("decode antifraud response: missing ok")
	}

	decision := domain.FraudDecision{OK: *body.OK}
	if body.CacheUntil != nil {
		until, err := parseCacheUntil(*body.CacheUntil)
		if err != nil {
			// The verdict itself is usable; it just cannot be cached.
			c.logger.WarnContext(ctx, "ignoring malformed antifraud cache_until",
				slog.String("cache_until", string(*body.CacheUntil)),
				slog.String("error", err.Error()),
			)
		} else {
			decision.CacheUntil = until
		}
	}
	return decision, nil
}
