package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/rin-throwback/internal/models"
)

const (
	requestTimeout  = 30 * time.Second
	maxResponseBody = 64 << 10
)

func newRateLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(500*time.Millisecond), 1)
}

func newJSONRequest(ctx context.Context, url string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doJSON sends req after waiting on limiter and decodes a 2xx body into out.
// Transport failures and non-2xx replies come back as *models.RemoteError.
func doJSON(client *http.Client, limiter *rate.Limiter, req *http.Request, op string, out any) error {
	if err := limiter.Wait(req.Context()); err != nil {
		return fmt.Errorf("%s: rate limiter: %w", op, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &models.RemoteError{Op: op, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := strings.TrimSpace(string(body))
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		if readErr != nil {
			detail += " (body read failed: " + readErr.Error() + ")"
		}
		return &models.RemoteError{Op: op, Status: resp.StatusCode, Detail: detail}
	}
	if readErr != nil {
		return &models.RemoteError{Op: op, Status: resp.StatusCode, Detail: "read response: " + readErr.Error()}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &models.RemoteError{Op: op, Status: resp.StatusCode, Detail: "invalid JSON response: " + err.Error()}
	}
	return nil
}
