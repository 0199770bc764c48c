package metricsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/momoosa/stride/internal/goals"
)

// DefaultTimeout bounds each sink request.
const DefaultTimeout = 10 * time.Second

// HTTPSink talks to a metric service over JSON/HTTP. Endpoints:
//
//	POST {base}/v1/authorize        {"metrics": [...]}
//	POST {base}/v1/sessions         {"metric": ..., "start": ..., "end": ...} -> {"id": ...}
//	GET  {base}/v1/sessions?metric=&from=&to=  -> {"sessions": [...]}
type HTTPSink struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPSink creates a sink client for the given base URL. An empty token
// sends unauthenticated requests.
func NewHTTPSink(baseURL, token string) *HTTPSink {
	return &HTTPSink{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
}

func (s *HTTPSink) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal sink request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("build sink request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sink request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sink returned %d: %s", resp.StatusCode, data)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode sink response: %w", err)
		}
	}
	return nil
}

// RequestAuthorization implements Sink.
func (s *HTTPSink) RequestAuthorization(ctx context.Context, metrics []goals.Metric) error {
	return s.do(ctx, http.MethodPost, "/v1/authorize", map[string]any{"metrics": metrics}, nil)
}

// WriteSession implements Sink.
func (s *HTTPSink) WriteSession(ctx context.Context, metric goals.Metric, start, end time.Time) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	body := map[string]any{
		"metric": metric,
		"start":  start.UTC().Format(time.RFC3339),
		"end":    end.UTC().Format(time.RFC3339),
	}
	if err := s.do(ctx, http.MethodPost, "/v1/sessions", body, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("sink returned empty session id")
	}
	return resp.ID, nil
}

// ReadSessions implements Sink.
func (s *HTTPSink) ReadSessions(ctx context.Context, metric goals.Metric, from, to time.Time) ([]ExternalSession, error) {
	q := url.Values{}
	q.Set("metric", string(metric))
	q.Set("from", from.UTC().Format(time.RFC3339))
	q.Set("to", to.UTC().Format(time.RFC3339))

	var resp struct {
		Sessions []ExternalSession `json:"sessions"`
	}
	if err := s.do(ctx, http.MethodGet, "/v1/sessions?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}
