// Package botconfig persists the single mutable bot configuration record.
package botconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Default values applied when the settings row is lazily created.
const (
	DefaultBotName        = "AI Assistant"
	DefaultSystemPrompt   = "You are a helpful AI assistant on WhatsApp. Be friendly, concise, and helpful. Use emojis occasionally to keep the conversation engaging."
	DefaultWelcomeMessage = "Hello! 👋 I'm your AI assistant. How can I help you today?"
	DefaultMaxTokens      = 1024
)

// Settings is the singleton bot configuration record.
type Settings struct {
	ID             uuid.UUID `json:"id"`
	BotName        string    `json:"botName"`
	SystemPrompt   string    `json:"systemPrompt"`
	WelcomeMessage string    `json:"welcomeMessage"`
	MaxTokens      int       `json:"maxTokens"`
	IsActive       bool      `json:"isActive"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store reads and writes bot settings in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	return &Store{pool: pool}
}

const selectSettings = `
	SELECT id, bot_name, system_prompt, welcome_message, max_tokens, is_active, updated_at
	FROM bot_settings
	LIMIT 1
`

// Get returns the settings row, creating it with defaults if absent.
// The singleton constraint makes concurrent first reads converge on one row.
func (s *Store) Get(ctx context.Context) (Settings, error) {
	settings, err := s.scanSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Settings{}, fmt.Errorf("botconfig: load settings: %w", err)
	}

	insert := `
		INSERT INTO bot_settings (bot_name, system_prompt, welcome_message, max_tokens, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (singleton) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, insert, DefaultBotName, DefaultSystemPrompt, DefaultWelcomeMessage, DefaultMaxTokens); err != nil {
		return Settings{}, fmt.Errorf("botconfig: create default settings: %w", err)
	}

	settings, err = s.scanSettings(ctx)
	if err != nil {
		return Settings{}, fmt.Errorf("botconfig: reload settings: %w", err)
	}
	return settings, nil
}

// Update overwrites the mutable settings fields and returns the stored row.
func (s *Store) Update(ctx context.Context, settings Settings) (Settings, error) {
	// Make sure the row exists before updating it.
	current, err := s.Get(ctx)
	if err != nil {
		return Settings{}, err
	}

	query := `
		UPDATE bot_settings
		SET bot_name = $2,
			system_prompt = $3,
			welcome_message = $4,
			max_tokens = $5,
			is_active = $6,
			updated_at = now()
		WHERE id = $1
		RETURNING id, bot_name, system_prompt, welcome_message, max_tokens, is_active, updated_at
	`
	var out Settings
	err = s.pool.QueryRow(ctx, query, current.ID, settings.BotName, settings.SystemPrompt,
		settings.WelcomeMessage, settings.MaxTokens, settings.IsActive).
		Scan(&out.ID, &out.BotName, &out.SystemPrompt, &out.WelcomeMessage, &out.MaxTokens, &out.IsActive, &out.UpdatedAt)
	if err != nil {
		return Settings{}, fmt.Errorf("botconfig: update settings: %w", err)
	}
	return out, nil
}

func (s *Store) scanSettings(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.pool.QueryRow(ctx, selectSettings).
		Scan(&out.ID, &out.BotName, &out.SystemPrompt, &out.WelcomeMessage, &out.MaxTokens, &out.IsActive, &out.UpdatedAt)
	return out, err
}
