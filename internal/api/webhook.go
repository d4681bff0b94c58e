package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/providata-intake/internal/evolution"
	"github.com/ashureev/providata-intake/internal/middleware"
	"github.com/ashureev/providata-intake/internal/observability"
	"github.com/ashureev/providata-intake/internal/store"
	"github.com/go-chi/chi/v5"
)

const (
	serviceName          = "ProviDATA WhatsApp Chatbot"
	maxWebhookBody       = 1 << 20
	gatewayStatusTimeout = 5 * time.Second
	gatewayUnreachable   = "error - unable to reach Evolution API"
)

// Webhook event results recorded per delivery.
const (
	eventAccepted  = "accepted"
	eventIgnored   = "ignored"
	eventDuplicate = "duplicate"
	eventInvalid   = "invalid"
)

// MessageHandler consumes inbound text messages.
type MessageHandler interface {
	Handle(ctx context.Context, identity, text string)
}

// Gateway exposes the messaging gateway instance state.
type Gateway interface {
	ConnectionState(ctx context.Context) (json.RawMessage, error)
	InstanceName() string
	BaseURL() string
}

// WebhookOptions configures a WebhookHandler.
type WebhookOptions struct {
	// Token, when set, must accompany every delivery.
	Token string
	// ProcessTimeout bounds the handling of one message.
	ProcessTimeout time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

// WebhookHandler receives Evolution API events and hands text messages to the dialogue.
type WebhookHandler struct {
	messages MessageHandler
	dedup    store.Deduplicator
	gateway  Gateway
	opts     WebhookOptions
	inflight sync.WaitGroup
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(messages MessageHandler, dedup store.Deduplicator, gateway Gateway, opts WebhookOptions) *WebhookHandler {
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &WebhookHandler{messages: messages, dedup: dedup, gateway: gateway, opts: opts}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/evolution", func(r chi.Router) {
		r.With(middleware.WebhookToken(h.opts.Token)).Post("/webhook", h.Receive)
		r.Get("/webhook", h.Ping)
		r.Get("/status", h.Status)
	})
}

// Receive acknowledges a delivery immediately and processes its message in the background.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload evolution.WebhookPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&payload); err != nil {
		observability.RecordWebhookEvent(eventInvalid)
		Error(w, http.StatusBadRequest, "invalid payload")
		return
	}

	JSON(w, http.StatusOK, map[string]string{"status": "ok"})

	in, reason := payload.Extract()
	if reason != evolution.SkipNone {
		observability.RecordWebhookEvent(eventIgnored)
		h.opts.Logger.Debug("Ignoring webhook event", "event", payload.Event, "instance", payload.Instance, "reason", reason)
		return
	}

	// The request context ends with the response; keep its values but not its cancellation.
	ctx := context.WithoutCancel(r.Context())

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		h.process(ctx, in)
	}()
}

func (h *WebhookHandler) process(parent context.Context, in evolution.Inbound) {
	ctx, cancel := context.WithTimeout(parent, h.opts.ProcessTimeout)
	defer cancel()

	if in.MessageID != "" {
		first, err := h.dedup.MarkProcessed(ctx, in.MessageID, h.opts.Now())
		switch {
		case err != nil:
			// A repeated reply is better than a lost message.
			h.opts.Logger.Warn("Failed to record message id, processing anyway", "message_id", in.MessageID, "error", err)
		case !first:
			observability.RecordWebhookEvent(eventDuplicate)
			h.opts.Logger.Info("Ignoring duplicate delivery", "message_id", in.MessageID, "identity", in.Identity)
			return
		}
	}

	observability.RecordWebhookEvent(eventAccepted)
	h.opts.Logger.Info("Processing message", "identity", in.Identity, "message_id", in.MessageID)
	h.messages.Handle(ctx, in.Identity, in.Text)
}

// Wait blocks until in-flight messages finish or ctx is done.
func (h *WebhookHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ping reports that the webhook endpoint is up.
func (h *WebhookHandler) Ping(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   serviceName,
		"instance":  h.gateway.InstanceName(),
		"timestamp": h.opts.Now().UTC().Format(time.RFC3339),
	})
}

// Status reports the chatbot and gateway connection state. It always answers 200.
func (h *WebhookHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), gatewayStatusTimeout)
	defer cancel()

	var connection interface{} = gatewayUnreachable
	if state, err := h.gateway.ConnectionState(ctx); err != nil {
		h.opts.Logger.Warn("Failed to query gateway connection state", "error", err)
	} else {
		connection = state
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"chatbot": "online",
		"evolution_api": map[string]interface{}{
			"url":        h.gateway.BaseURL(),
			"instance":   h.gateway.InstanceName(),
			"connection": connection,
		},
		"timestamp": h.opts.Now().UTC().Format(time.RFC3339),
	})
}
