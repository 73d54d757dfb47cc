// Package responder generates automated replies with a language model.
package responder

import (
	"context"
	"fmt"
)

// OfflineReply is returned without a model call whenever the bot
// configuration is inactive.
const OfflineReply = "The bot is currently offline. Please try again later."

// Request is one reply-generation request. Either Prompt or ImageData is
// set; SystemPrompt and MaxTokens come from the bot configuration and are
// passed explicitly by the caller.
type Request struct {
	Prompt       string
	ImageData    []byte
	ImageMime    string
	Caption      string
	SystemPrompt string
	MaxTokens    int
}

// Client produces a reply for a request or fails with *GenerationError.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GenerationError reports a failed or rejected model call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("responder: generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
