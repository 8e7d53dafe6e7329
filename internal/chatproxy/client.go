// Package chatproxy forwards chat messages to the backend proxy and extracts
// the assistant reply.
package chatproxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/efebarandurmaz/chatproxy/internal/observability"
)

const (
	// DefaultModel is used when SendMessage is called with an empty model.
	DefaultModel = "openai/gpt-3.5-turbo"

	// CompletionsPath is appended to the backend base URL.
	CompletionsPath = "/openai/chat/completions"
)

// ErrBackend is returned when the backend answers with a non-2xx status.
// It carries no status code or body.
var ErrBackend = errors.New("backend error")

// Client sends chat messages to a backend proxy. Safe for concurrent use.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithDefaultModel overrides DefaultModel for calls that pass no model.
func WithDefaultModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a client for the backend at baseURL. The URL is trusted as-is;
// a trailing slash is trimmed so the path joins cleanly.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   DefaultModel,
		// No Timeout: the caller's context decides how long a call may take.
		http: &http.Client{},
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the full completions URL.
func (c *Client) Endpoint() string {
	return c.baseURL + CompletionsPath
}

// Model returns the model used when none is given.
func (c *Client) Model() string { return c.model }

// Send calls SendMessage with the client's default model.
func (c *Client) Send(ctx context.Context, message string) (string, error) {
	return c.SendMessage(ctx, message, "")
}

// SendMessage posts message as a single user turn and returns the reply text.
// An empty model selects the client's default. Transport and JSON errors are
// returned unchanged; a non-2xx status yields ErrBackend.
func (c *Client) SendMessage(ctx context.Context, message, model string) (string, error) {
	if model == "" {
		model = c.model
	}

	ctx, span := observability.StartChatSpan(ctx, c.baseURL, model)
	defer span.End()
	start := time.Now()

	data, err := json.Marshal(newChatRequest(message, model))
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(), bytes.NewReader(data))
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	c.log.Debug("sending chat message", "endpoint", c.Endpoint(), "model", model)

	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused; the body is not reported.
		_, _ = io.Copy(io.Discard, resp.Body)
		observability.RecordError(span, ErrBackend)
		c.log.Debug("backend rejected chat message", "status", resp.StatusCode)
		return "", ErrBackend
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	reply := parsed.reply()
	observability.RecordReply(span, resp.StatusCode, len(reply), time.Since(start))
	if reply == "" {
		c.log.Warn("backend returned no reply text", "endpoint", c.Endpoint(), "model", model)
	}
	return reply, nil
}
