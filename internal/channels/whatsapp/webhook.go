package whatsapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/PKOOOO/whatsapp-ai-sdk/pkg/logging"
)

// ProcessFunc consumes one extracted inbound message. It must handle its
// own failures; a returned error is logged but never changes the webhook
// acknowledgment.
type ProcessFunc func(ctx context.Context, msg InboundMessage) error

// WebhookHandler handles WhatsApp webhook verification and inbound events.
type WebhookHandler struct {
	verifyToken string
	process     ProcessFunc
	logger      *logging.Logger
}

// NewWebhookHandler creates a new webhook handler. process is invoked for
// each delivery that carries a message.
func NewWebhookHandler(verifyToken string, process ProcessFunc, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		process:     process,
		logger:      logger,
	}
}

// HandleVerification handles the GET webhook verification challenge from Meta.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleEvent handles POST webhook deliveries. It always acknowledges with
// 200 {"status":"ok"}: a failure status would trigger Meta's redelivery
// storm, so even malformed payloads are only logged.
func (h *WebhookHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	defer h.acknowledge(w)

	var event WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Error("malformed webhook payload", "error", err)
		return
	}

	msg := ExtractMessage(event)
	if msg == nil {
		// Status callback or other non-message delivery.
		return
	}

	if h.process == nil {
		return
	}
	if err := h.process(r.Context(), *msg); err != nil {
		h.logger.Error("webhook processing failed", "error", err, "message_id", msg.MessageID)
	}
}

func (h *WebhookHandler) acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// ExtractMessage pulls the first message out of the event's nested
// structure, along with the sender's contact profile name when present.
// It returns nil for deliveries with no message (e.g. status callbacks).
func ExtractMessage(event WebhookEvent) *InboundMessage {
	if len(event.Entry) == 0 || len(event.Entry[0].Changes) == 0 {
		return nil
	}
	value := event.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil
	}
	m := value.Messages[0]

	msg := &InboundMessage{
		From:      m.From,
		MessageID: m.ID,
		Type:      m.Type,
	}
	if ts, err := strconv.ParseInt(m.Timestamp, 10, 64); err == nil {
		msg.Timestamp = time.Unix(ts, 0)
	}
	if m.Text != nil {
		msg.Text = m.Text.Body
	}
	if m.Image != nil {
		msg.ImageID = m.Image.ID
		msg.ImageCaption = m.Image.Caption
		msg.ImageMime = m.Image.MimeType
	}
	if len(value.Contacts) > 0 {
		msg.ContactName = value.Contacts[0].Profile.Name
	}
	return msg
}
