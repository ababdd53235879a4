// Package upstream builds and sends requests to the conversational
// completion backend and hands back the raw SSE stream.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/llmgate/llmgate/internal/auth"
	"github.com/llmgate/llmgate/internal/event"
	"github.com/llmgate/llmgate/internal/format"
	"github.com/llmgate/llmgate/internal/metrics"
	"github.com/llmgate/llmgate/internal/types"
)

// SSE streams are long-lived; the overall request timeout is generous and
// stall detection is the idle watchdog's job.
const httpTimeout = 10 * time.Minute

// Error is a non-2xx reply from the upstream, already summarized for the
// caller.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string { return e.Message }

// Client makes streaming requests against the upstream responses endpoint.
type Client struct {
	tokens      *auth.TokenManager
	url         string
	idleTimeout time.Duration
	httpClient  *http.Client
}

// NewClient creates an upstream client.
func NewClient(tokens *auth.TokenManager, url string, idleTimeout time.Duration) *Client {
	return &Client{
		tokens:      tokens,
		url:         url,
		idleTimeout: idleTimeout,
		httpClient:  &http.Client{Timeout: httpTimeout},
	}
}

// Stream posts the payload and returns the SSE body wrapped with the idle
// watchdog. A 401 triggers exactly one token refresh and retry; any other
// non-2xx status is returned as *Error.
func (c *Client) Stream(ctx context.Context, payload *types.UpstreamPayload) (io.ReadCloser, error) {
	accessToken, accountID, err := c.tokens.GetEffectiveAuth()
	if err != nil || accessToken == "" || accountID == "" {
		return nil, auth.ErrNoCredentials
	}

	resp, err := c.post(ctx, payload, accessToken, accountID)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		log.Warn("upstream rejected token, refreshing once")
		accessToken, accountID, err = c.tokens.ForceRefresh()
		if err != nil || accessToken == "" {
			return nil, &Error{StatusCode: http.StatusUnauthorized, Message: "upstream authentication failed"}
		}
		resp, err = c.post(ctx, payload, accessToken, accountID)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    format.FormatUpstreamError(resp.StatusCode, body),
		}
	}

	return event.NewIdleTimeoutReader(resp.Body, c.idleTimeout), nil
}

func (c *Client) post(ctx context.Context, payload *types.UpstreamPayload, accessToken, accountID string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("chatgpt-account-id", accountID)
	req.Header.Set("OpenAI-Beta", "responses=experimental")
	req.Header.Set("session_id", payload.PromptCacheKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	metrics.UpstreamLatency.Observe(time.Since(start).Seconds())

	log.WithFields(log.Fields{
		"status":     resp.StatusCode,
		"model":      payload.Model,
		"request_id": requestID(resp.Header),
	}).Debug("upstream response")
	return resp, nil
}

func requestID(headers http.Header) string {
	for _, key := range []string{"x-request-id", "x-openai-request-id", "openai-request-id", "request-id", "cf-ray"} {
		if v := strings.TrimSpace(headers.Get(key)); v != "" {
			return v
		}
	}
	return ""
}
