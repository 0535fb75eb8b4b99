package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/time/rate"

	"social-client/internal/observability"
)

const tracerName = "social-client/api"

// Options configures a Client.
type Options struct {
	BaseURL   string
	Token     string
	Cookie    string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int
	Logger    *slog.Logger
}

// Client talks to the social service REST API.
type Client struct {
	baseURL    string
	token      string
	cookie     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        *slog.Logger
}

// New builds a Client. A non-positive RateLimit disables throttling.
func New(opts Options) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		token:   opts.Token,
		cookie:  opts.Cookie,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: limiter,
		log:     log,
	}
}

func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// do performs one call. endpoint is a low-cardinality label such as
// "GET /user/{id}"; out, when non-nil, receives the decoded body.
func (c *Client) do(ctx context.Context, method, endpoint, path string, body, out any) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, endpoint)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", endpoint),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.ObserveAPIRequest(method, endpoint, 0, time.Since(start))
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // .

	observability.ObserveAPIRequest(method, endpoint, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		statusErr := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
