package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"expensebot/internal/pipeline"
	"expensebot/internal/whatsapp"
)

// MessageHandler processes one normalized inbound message end to end.
type MessageHandler interface {
	Handle(ctx context.Context, msg whatsapp.InboundMessage) (*pipeline.Result, error)
}

// WebhookHandler terminates the webhook protocol: handshake
// verification on GET, message intake on POST.
type WebhookHandler struct {
	pipeline    MessageHandler
	verifyToken string
}

func NewWebhookHandler(pipeline MessageHandler, verifyToken string) *WebhookHandler {
	return &WebhookHandler{
		pipeline:    pipeline,
		verifyToken: verifyToken,
	}
}

// Verify answers the subscription handshake: echo hub.challenge when
// the mode is "subscribe" and the token matches, 403 otherwise.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode == "subscribe" && tokensEqual(token, h.verifyToken) {
		slog.InfoContext(r.Context(), "Webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(challenge))
		return
	}

	slog.WarnContext(r.Context(), "Webhook verification failed", "mode", mode)
	writeJSON(w, http.StatusForbidden, map[string]string{"error": "verification failed"})
}

// Receive normalizes the inbound payload and runs it through the
// pipeline. Cloud envelopes that carry no message (status updates and
// the like) are acknowledged with 200 so the platform does not retry
// them; a form envelope missing its sender or body is a validation
// fault and gets 400.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	msg, err := h.parsePayload(r)
	if err != nil {
		if errors.Is(err, whatsapp.ErrNoMessage) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		slog.WarnContext(r.Context(), "Rejected malformed payload", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	res, err := h.pipeline.Handle(r.Context(), msg)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to process message", "error", err, "sender", msg.Sender)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to process message"})
		return
	}

	if res.DeliveryErr != nil {
		slog.ErrorContext(r.Context(), "Reply delivery failed",
			"error", res.DeliveryErr,
			"outcome", string(res.Outcome),
			"sender", msg.Sender)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"outcome": string(res.Outcome),
			"error":   "reply delivery failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"outcome": string(res.Outcome),
		"message": res.Reply,
	})
}

func (h *WebhookHandler) parsePayload(r *http.Request) (whatsapp.InboundMessage, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return whatsapp.InboundMessage{}, err
		}
		return whatsapp.ParseFormPayload(r.PostForm)
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return whatsapp.InboundMessage{}, err
	}
	return whatsapp.ParseCloudPayload(body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
