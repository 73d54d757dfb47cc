package responder

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/PKOOOO/whatsapp-ai-sdk/internal/botconfig"
)

const (
	defaultModel       = "claude-sonnet-4-20250514"
	defaultImagePrompt = "Please analyze this image and describe what you see."
	defaultImageMime   = "image/jpeg"
)

// SettingsSource exposes the bot configuration's active flag to the client.
type SettingsSource interface {
	Get(ctx context.Context) (botconfig.Settings, error)
}

// AnthropicClient implements Client on the Anthropic messages API.
// It re-checks the active flag before every call so that no caller path
// can reach the model while the bot is switched off.
type AnthropicClient struct {
	client   anthropic.Client
	model    anthropic.Model
	settings SettingsSource
}

// NewAnthropicClient creates a reply generator backed by Anthropic.
// Extra request options (e.g. a base URL override) are passed through to
// the underlying SDK client.
func NewAnthropicClient(apiKey, model string, settings SettingsSource, opts ...option.RequestOption) *AnthropicClient {
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}
	clientOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AnthropicClient{
		client:   anthropic.NewClient(clientOpts...),
		model:    anthropic.Model(model),
		settings: settings,
	}
}

// Generate produces a reply for the request, or fails with *GenerationError.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
	if c.settings != nil {
		settings, err := c.settings.Get(ctx)
		if err != nil {
			return "", &GenerationError{Err: err}
		}
		if !settings.IsActive {
			return OfflineReply, nil
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = botconfig.DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(c.contentBlocks(req)...)},
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", &GenerationError{Err: err}
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	reply := strings.TrimSpace(text.String())
	if reply == "" {
		return "", &GenerationError{Err: errors.New("model returned no text content")}
	}
	return reply, nil
}

func (c *AnthropicClient) contentBlocks(req Request) []anthropic.ContentBlockParamUnion {
	if len(req.ImageData) == 0 {
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(req.Prompt)}
	}

	mime := req.ImageMime
	if mime == "" {
		mime = defaultImageMime
	}
	caption := strings.TrimSpace(req.Caption)
	if caption == "" {
		caption = defaultImagePrompt
	}
	return []anthropic.ContentBlockParamUnion{
		anthropic.NewImageBlockBase64(mime, base64.StdEncoding.EncodeToString(req.ImageData)),
		anthropic.NewTextBlock(caption),
	}
}
