package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/geekspace/arbiter/internal/domain"
	"github.com/geekspace/arbiter/internal/observability"
)

// ChatBody is the inbound wire shape for POST /v1/chat.
type ChatBody struct {
	Messages []domain.Message `json:"messages"`
	Persona  domain.Persona   `json:"persona,omitempty"`
	Provider domain.Provider  `json:"provider,omitempty"`
	// Voice selects a custom-assistant system prompt when no persona prompt
	// applies.
	Voice        string `json:"voice,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	MaxTokens    int    `json:"max_tokens,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	Stream       bool   `json:"stream,omitempty"`
}

// CreditSource reads a user's remaining credit balance. Nil balance means
// unmetered.
type CreditSource interface {
	Credits(ctx context.Context, userID string) (*int, error)
}

// Handler handles HTTP requests.
type Handler struct {
	router   *domain.Router
	recorder domain.UsageRecorder
	credits  CreditSource
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(router *domain.Router, recorder domain.UsageRecorder, credits CreditSource) *Handler {
	return &Handler{
		router:   router,
		recorder: recorder,
		credits:  credits,
	}
}

// HandleChat processes chat routing requests.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body ChatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(body.Messages) == 0 {
		http.Error(w, "messages are required", http.StatusBadRequest)
		return
	}

	logger := observability.FromContext(ctx)
	logger.Info("chat request received",
		observability.Int("messages", len(body.Messages)),
		observability.Bool("stream", body.Stream))

	req := h.toChatRequest(ctx, &body)

	if body.Stream {
		h.handleStream(w, r, req, body.UserID)
		return
	}

	resp, err := h.router.Route(ctx, req)
	if err != nil {
		logger.Error("routing failed", observability.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.record(r, body.UserID, resp)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("failed to encode response", observability.Error(err))
	}
}

// handleStream serves the SSE streaming path through the local provider.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request, req *domain.ChatRequest, userID string) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	resp, err := h.router.StreamLocal(ctx, req, func(delta string) {
		payload, _ := json.Marshal(map[string]string{"delta": delta})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	})
	if err != nil {
		logger.Error("stream failed", observability.Error(err))
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", err.Error())
		flusher.Flush()
		return
	}

	h.record(r, userID, resp)

	payload, _ := json.Marshal(resp)
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", payload)
	flusher.Flush()
}

// toChatRequest maps the wire body onto a router request, filling in the
// persona system prompt and credit balance where the caller left them out.
func (h *Handler) toChatRequest(ctx context.Context, body *ChatBody) *domain.ChatRequest {
	systemPrompt := body.SystemPrompt
	if systemPrompt == "" {
		if body.Persona != "" {
			systemPrompt = domain.PersonaPrompt(body.Persona)
		} else if body.Voice != "" {
			systemPrompt = domain.CustomPrompt(body.Voice)
		}
	}

	req := &domain.ChatRequest{
		Messages:      body.Messages,
		ForcePersona:  body.Persona,
		ForceProvider: body.Provider,
		MaxTokens:     body.MaxTokens,
		SystemPrompt:  systemPrompt,
	}

	if body.UserID != "" && h.credits != nil {
		if balance, err := h.credits.Credits(ctx, body.UserID); err == nil {
			req.Credits = balance
		} else {
			observability.FromContext(ctx).Warn("credit lookup failed, treating as unmetered",
				observability.Error(err))
		}
	}

	return req
}

// record appends the usage entry; failures are logged, never surfaced.
func (h *Handler) record(r *http.Request, userID string, resp *domain.ChatResponse) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.Record(r.Context(), userID, resp); err != nil {
		observability.FromContext(r.Context()).Warn("usage record failed",
			observability.Error(err))
	}
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	}); err != nil {
		return
	}
}
