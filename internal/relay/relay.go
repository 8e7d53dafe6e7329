// Package relay serves the backend side of the chat proxy: it accepts
// chat-completion requests on /openai/chat/completions and answers them
// through an upstream llm.Provider.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/efebarandurmaz/chatproxy/internal/chatproxy"
	"github.com/efebarandurmaz/chatproxy/internal/llm"
	"github.com/efebarandurmaz/chatproxy/internal/observability"
)

// maxBodyBytes caps incoming request bodies.
const maxBodyBytes = 1 << 20

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Choice is one entry of the reply envelope.
type Choice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason,omitempty"`
}

// AssistantMessage is the assistant turn inside a Choice.
type AssistantMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionResponse is what the relay returns on success.
type CompletionResponse struct {
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

// ErrorResponse carries a failure in the top-level message field.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Handler relays chat-completion requests to a provider.
type Handler struct {
	provider llm.Provider
	log      *slog.Logger
	router   chi.Router
}

// New creates a relay handler. A nil logger uses slog.Default().
func New(provider llm.Provider, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{provider: provider, log: log}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestID)
	r.Post(chatproxy.CompletionsPath, h.handleCompletions)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Message: "method not allowed"})
	})
	h.router = r
	return h
}

// Routes mounts the relay on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.Handle(chatproxy.CompletionsPath, h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

// requestID keeps an incoming X-Request-ID or assigns a new one, and echoes
// it on the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) handleCompletions(w http.ResponseWriter, r *http.Request) {
	ctx, span := observability.StartRelaySpan(r)
	defer span.End()
	start := time.Now()
	reqID := middleware.GetReqID(ctx)

	req, err := decodeRequest(r)
	if err != nil {
		observability.RecordError(span, err)
		h.log.Info("rejected chat request", "request_id", reqID, "error", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
		return
	}

	prompt := &llm.Prompt{Messages: make([]llm.Message, 0, len(req.Messages))}
	for _, m := range req.Messages {
		prompt.Messages = append(prompt.Messages, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}

	resp, err := h.provider.Complete(ctx, prompt, &llm.RequestOptions{Model: req.Model})
	if err != nil {
		observability.RecordError(span, err)
		h.log.Error("upstream completion failed", "request_id", reqID, "provider", h.provider.Name(), "model", req.Model, "error", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Message: "upstream provider failed"})
		return
	}

	h.log.Info("relayed chat request",
		"request_id", reqID,
		"provider", h.provider.Name(),
		"model", req.Model,
		"messages", len(req.Messages),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	writeJSON(w, http.StatusOK, CompletionResponse{
		Model: resp.Model,
		Choices: []Choice{{
			Message:      AssistantMessage{Role: string(llm.RoleAssistant), Content: resp.Content},
			FinishReason: resp.StopReason,
		}},
	})
}

func decodeRequest(r *http.Request) (*chatproxy.ChatRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, errors.New("request body too large")
	}

	var req chatproxy.ChatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	if len(req.Messages) == 0 {
		return nil, errors.New("messages must not be empty")
	}
	return &req, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
