package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/octobees/contact-enricher/internal/ratelimit"
)

const maxErrorBody = 4 << 10

// errCoolingDown is returned when the provider was sidelined while a request
// waited for its turn. The gate is already open, so it is not re-marked.
var errCoolingDown = fmt.Errorf("%w: provider cooling down", ErrUnavailable)

// jsonClient performs vendor JSON calls and classifies failures into the
// provider sentinel errors. Transient failures are retried with exponential backoff.
// A throttled client waits on the provider limiter before every request,
// retries and poll reads included.
type jsonClient struct {
	client  *http.Client
	baseURL string
	headers http.Header
	retries int
	backoff time.Duration

	limiter *ratelimit.Limiter
	gate    *ratelimit.Gate
	onWait  func(time.Duration)
}

func newJSONClient(client *http.Client, baseURL string, retries int, backoff time.Duration) *jsonClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	if retries < 0 {
		retries = 0
	}
	return &jsonClient{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: make(http.Header),
		retries: retries,
		backoff: backoff,
	}
}

func (c *jsonClient) withHeader(key, value string) *jsonClient {
	c.headers.Set(key, value)
	return c
}

// throttledBy makes every request wait on limiter and re-check gate.
func (c *jsonClient) throttledBy(limiter *ratelimit.Limiter, gate *ratelimit.Gate, onWait func(time.Duration)) *jsonClient {
	c.limiter = limiter
	c.gate = gate
	c.onWait = onWait
	return c
}

func (c *jsonClient) admit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	start := time.Now()
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}
	if c.onWait != nil {
		c.onWait(time.Since(start))
	}
	if c.gate != nil && !c.gate.Available() {
		return errCoolingDown
	}
	return nil
}

// do sends payload (if any) as JSON and decodes the response into out (if any).
// The raw response body is returned for auditing.
func (c *jsonClient) do(ctx context.Context, method, path string, query url.Values, payload, out any) ([]byte, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = encoded
	}

	delay := c.backoff
	for attempt := 0; ; attempt++ {
		if err := c.admit(ctx); err != nil {
			return nil, err
		}
		raw, err := c.once(ctx, method, path, query, body)
		if err == nil {
			if out != nil && len(raw) > 0 {
				if err := json.Unmarshal(raw, out); err != nil {
					return raw, fmt.Errorf("%w: could not decode response: %v", ErrTransient, err)
				}
			}
			return raw, nil
		}
		if !errors.Is(err, ErrTransient) || attempt >= c.retries {
			return raw, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

func (c *jsonClient) once(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", withoutURL(err))
	}
	for key, values := range c.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %s %s failed: %v", ErrTransient, method, path, withoutURL(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: read body: %v", ErrTransient, err)
	}
	if resp.StatusCode < 400 {
		return raw, nil
	}
	return raw, classifyStatus(resp.StatusCode, extractAPIError(raw))
}

// withoutURL drops the request URL from err; vendor keys travel in the query.
func withoutURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// classifyStatus maps an HTTP failure status to a provider sentinel.
func classifyStatus(status int, msg string) error {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusPaymentRequired, status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: http %d: %s", ErrUnavailable, status, msg)
	case status == http.StatusRequestTimeout, status >= 500:
		return fmt.Errorf("%w: http %d: %s", ErrTransient, status, msg)
	default:
		return fmt.Errorf("%w: http %d: %s", ErrNoResult, status, msg)
	}
}

// extractAPIError pulls a readable message out of common vendor error envelopes.
func extractAPIError(raw []byte) string {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	var payload struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
		Errors  []struct {
			Details string `json:"details"`
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch v := payload.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Reason != "" {
			return payload.Reason
		}
		for _, e := range payload.Errors {
			if e.Details != "" {
				return e.Details
			}
			if e.Message != "" {
				return e.Message
			}
		}
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty response"
	}
	return text
}
