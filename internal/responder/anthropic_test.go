package responder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/PKOOOO/whatsapp-ai-sdk/internal/botconfig"
)

type staticSettings struct {
	settings botconfig.Settings
	err      error
}

func (s staticSettings) Get(ctx context.Context) (botconfig.Settings, error) {
	return s.settings, s.err
}

func messagesResponse(text string) map[string]any {
	return map[string]any{
		"id":    "msg_test",
		"type":  "message",
		"role":  "assistant",
		"model": "claude-sonnet-4-20250514",
		"content": []map[string]any{
			{"type": "text", "text": text},
		},
		"stop_reason": "end_turn",
		"usage":       map[string]any{"input_tokens": 10, "output_tokens": 5},
	}
}

func TestGenerateText(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messagesResponse("Hello!"))
	}))
	defer server.Close()

	client := NewAnthropicClient("key", "", staticSettings{settings: botconfig.Settings{IsActive: true}},
		option.WithBaseURL(server.URL))

	reply, err := client.Generate(context.Background(), Request{
		Prompt:       "Hi",
		SystemPrompt: "Be friendly.",
		MaxTokens:    256,
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Hello!" {
		t.Errorf("reply = %q, want Hello!", reply)
	}
	if body["max_tokens"] != float64(256) {
		t.Errorf("max_tokens = %v, want 256", body["max_tokens"])
	}
	if _, ok := body["system"]; !ok {
		t.Error("expected system prompt in request")
	}
}

func TestGenerateOfflineShortCircuit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("model must not be called while the bot is inactive")
	}))
	defer server.Close()

	client := NewAnthropicClient("key", "", staticSettings{settings: botconfig.Settings{IsActive: false}},
		option.WithBaseURL(server.URL))

	reply, err := client.Generate(context.Background(), Request{Prompt: "Hi"})
	if err != nil {
		t.Fatal(err)
	}
	if reply != OfflineReply {
		t.Errorf("reply = %q, want offline notice", reply)
	}
}

func TestGenerateImageBlocks(t *testing.T) {
	var body struct {
		Messages []struct {
			Content []map[string]any `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(messagesResponse("A cat."))
	}))
	defer server.Close()

	client := NewAnthropicClient("key", "", staticSettings{settings: botconfig.Settings{IsActive: true}},
		option.WithBaseURL(server.URL))

	reply, err := client.Generate(context.Background(), Request{
		ImageData: []byte{0xFF, 0xD8},
		ImageMime: "image/jpeg",
		Caption:   "what is this?",
		MaxTokens: 128,
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "A cat." {
		t.Errorf("reply = %q", reply)
	}
	if len(body.Messages) != 1 || len(body.Messages[0].Content) != 2 {
		t.Fatalf("expected image + text blocks, got %+v", body.Messages)
	}
	if body.Messages[0].Content[0]["type"] != "image" {
		t.Errorf("first block type = %v, want image", body.Messages[0].Content[0]["type"])
	}
	if body.Messages[0].Content[1]["type"] != "text" {
		t.Errorf("second block type = %v, want text", body.Messages[0].Content[1]["type"])
	}
}

func TestGenerateProviderFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"type":  "error",
			"error": map[string]any{"type": "api_error", "message": "overloaded"},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient("key", "", staticSettings{settings: botconfig.Settings{IsActive: true}},
		option.WithBaseURL(server.URL), option.WithMaxRetries(0))

	_, err := client.Generate(context.Background(), Request{Prompt: "Hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %T", err)
	}
}

func TestGenerateSettingsFailure(t *testing.T) {
	client := NewAnthropicClient("key", "", staticSettings{err: errors.New("db down")})

	_, err := client.Generate(context.Background(), Request{Prompt: "Hi"})
	var gerr *GenerationError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected GenerationError, got %T", err)
	}
}
