package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/PKOOOO/whatsapp-ai-sdk/internal/botconfig"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/channels/whatsapp"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/observability/metrics"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/responder"
	"github.com/PKOOOO/whatsapp-ai-sdk/pkg/logging"
)

// imagePlaceholder is stored as the content of image messages without a
// caption.
const imagePlaceholder = "[Image]"

// Reply sources, used as metric labels and to key the fallback table.
const (
	replyGenerated  = "generated"
	replyOffline    = "offline"
	replyGeneration = "generation_failed"
	replyImageFetch = "image_unavailable"
)

// fallbackReplies maps a degraded pipeline step to the fixed string sent
// in place of a generated answer.
var fallbackReplies = map[string]string{
	replyOffline:    responder.OfflineReply,
	replyGeneration: "Sorry, I'm having trouble right now. Please try again in a moment! 🙏",
	replyImageFetch: "I received your image but couldn't process it. Could you try sending it again?",
}

// ChatStore is the slice of Store the processor mutates.
type ChatStore interface {
	UpsertCustomer(ctx context.Context, phoneNumber, name string) (Customer, error)
	FindOrCreateActiveConversation(ctx context.Context, customerID uuid.UUID) (Conversation, error)
	InsertMessage(ctx context.Context, rec MessageRecord) (uuid.UUID, error)
	TouchConversation(ctx context.Context, id uuid.UUID, delta int) error
}

// SettingsStore reads the bot configuration.
type SettingsStore interface {
	Get(ctx context.Context) (botconfig.Settings, error)
}

// Gateway is the outbound messaging-platform surface the processor needs.
type Gateway interface {
	SendText(ctx context.Context, to, body string) (string, error)
	MarkRead(ctx context.Context, messageID string) error
	MediaURL(ctx context.Context, mediaID string) (string, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
}

// Processor runs the ingestion pipeline for one inbound message at a
// time. Every external call is isolated: a failure degrades the reply or
// skips a side effect but never aborts the event.
type Processor struct {
	store     ChatStore
	settings  SettingsStore
	responder responder.Client
	gateway   Gateway
	logger    *logging.Logger
	metrics   *metrics.WebhookMetrics
}

type ProcessorConfig struct {
	Store     ChatStore
	Settings  SettingsStore
	Responder responder.Client
	Gateway   Gateway
	Logger    *logging.Logger
	Metrics   *metrics.WebhookMetrics
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &Processor{
		store:     cfg.Store,
		settings:  cfg.Settings,
		responder: cfg.Responder,
		gateway:   cfg.Gateway,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
	}
}

// Process handles one extracted inbound message end to end. The returned
// error reports storage failures for logging; callers must not turn it
// into a webhook failure status.
func (p *Processor) Process(ctx context.Context, msg whatsapp.InboundMessage) error {
	start := time.Now()
	p.metrics.ObserveEvent(msg.Type)
	defer func() {
		p.metrics.ObserveProcessLatency(msg.Type, time.Since(start).Seconds())
	}()

	// Read receipt is best-effort.
	if err := p.gateway.MarkRead(ctx, msg.MessageID); err != nil {
		p.logger.Warn("mark-as-read failed", "error", err, "message_id", msg.MessageID)
	}

	customer, err := p.store.UpsertCustomer(ctx, msg.From, msg.ContactName)
	if err != nil {
		return fmt.Errorf("resolve customer: %w", err)
	}

	conv, err := p.store.FindOrCreateActiveConversation(ctx, customer.ID)
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}

	var delta int
	switch msg.Type {
	case "text":
		delta = 2
		if err := p.processText(ctx, customer, conv, msg); err != nil {
			return err
		}
	case "image":
		delta = 2
		if err := p.processImage(ctx, customer, conv, msg); err != nil {
			return err
		}
	default:
		// Unsupported message type: nothing persisted, no reply.
		delta = 0
	}

	if err := p.store.TouchConversation(ctx, conv.ID, delta); err != nil {
		return fmt.Errorf("update conversation aggregate: %w", err)
	}
	return nil
}

func (p *Processor) processText(ctx context.Context, customer Customer, conv Conversation, msg whatsapp.InboundMessage) error {
	_, err := p.store.InsertMessage(ctx, MessageRecord{
		CustomerID:     customer.ID,
		ConversationID: conv.ID,
		Direction:      DirectionInbound,
		Type:           TypeText,
		Content:        msg.Text,
	})
	if err != nil {
		return fmt.Errorf("persist inbound text: %w", err)
	}

	reply := p.generateReply(ctx, responder.Request{Prompt: msg.Text})
	p.deliverReply(ctx, customer, conv, reply)
	return nil
}

func (p *Processor) processImage(ctx context.Context, customer Customer, conv Conversation, msg whatsapp.InboundMessage) error {
	// Media resolution and download may fail independently; the event
	// still persists with whatever was obtained.
	var mediaURL string
	var mediaData []byte
	mediaURL, err := p.gateway.MediaURL(ctx, msg.ImageID)
	if err != nil {
		p.logger.Warn("media url lookup failed", "error", err, "media_id", msg.ImageID)
		mediaURL = ""
	} else {
		mediaData, err = p.gateway.DownloadMedia(ctx, mediaURL)
		if err != nil {
			p.logger.Warn("media download failed", "error", err, "media_url", mediaURL)
			mediaData = nil
		}
	}

	content := msg.ImageCaption
	if content == "" {
		content = imagePlaceholder
	}
	_, err = p.store.InsertMessage(ctx, MessageRecord{
		CustomerID:     customer.ID,
		ConversationID: conv.ID,
		Direction:      DirectionInbound,
		Type:           TypeImage,
		Content:        content,
		MediaURL:       mediaURL,
	})
	if err != nil {
		return fmt.Errorf("persist inbound image: %w", err)
	}

	var reply replyResult
	if len(mediaData) == 0 {
		reply = p.gatedFallback(ctx, replyImageFetch)
	} else {
		reply = p.generateReply(ctx, responder.Request{
			ImageData: mediaData,
			ImageMime: msg.ImageMime,
			Caption:   msg.ImageCaption,
		})
	}
	p.deliverReply(ctx, customer, conv, reply)
	return nil
}

type replyResult struct {
	text   string
	source string
}

// generateReply applies the bot-active gate, fills in the configured
// system prompt and token budget, and substitutes the apology string when
// the model call fails.
func (p *Processor) generateReply(ctx context.Context, req responder.Request) replyResult {
	settings, err := p.settings.Get(ctx)
	if err != nil {
		p.logger.Error("settings read failed", "error", err)
		return replyResult{text: fallbackReplies[replyGeneration], source: replyGeneration}
	}
	if !settings.IsActive {
		return replyResult{text: fallbackReplies[replyOffline], source: replyOffline}
	}

	req.SystemPrompt = settings.SystemPrompt
	req.MaxTokens = settings.MaxTokens
	text, err := p.responder.Generate(ctx, req)
	if err != nil {
		p.logger.Error("reply generation failed", "error", err)
		return replyResult{text: fallbackReplies[replyGeneration], source: replyGeneration}
	}
	return replyResult{text: text, source: replyGenerated}
}

// gatedFallback applies the bot-active gate before a non-model fallback:
// an inactive bot answers with the offline notice even when the intended
// reply was already a fixed string.
func (p *Processor) gatedFallback(ctx context.Context, source string) replyResult {
	settings, err := p.settings.Get(ctx)
	if err == nil && !settings.IsActive {
		return replyResult{text: fallbackReplies[replyOffline], source: replyOffline}
	}
	return replyResult{text: fallbackReplies[source], source: source}
}

// deliverReply sends the reply (best-effort, at most once) and persists
// the outbound message unconditionally so the attempt is auditable.
func (p *Processor) deliverReply(ctx context.Context, customer Customer, conv Conversation, reply replyResult) {
	p.metrics.ObserveReply(reply.source)

	if _, err := p.gateway.SendText(ctx, customer.PhoneNumber, reply.text); err != nil {
		p.metrics.ObserveSendFailure()
		p.logger.Error("outbound send failed", "error", err, "to", customer.PhoneNumber)
	}

	if _, err := p.store.InsertMessage(ctx, MessageRecord{
		CustomerID:     customer.ID,
		ConversationID: conv.ID,
		Direction:      DirectionOutbound,
		Type:           TypeText,
		Content:        reply.text,
	}); err != nil {
		p.logger.Error("persist outbound reply failed", "error", err)
	}
}
