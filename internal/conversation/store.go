// Package conversation owns the durable chat entities (customers,
// conversations, messages) and the webhook ingestion pipeline that
// mutates them.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned by lookup-by-id paths when no row matches.
var ErrNotFound = errors.New("conversation: not found")

// Message direction and type values, stored verbatim.
const (
	DirectionInbound  = "INBOUND"
	DirectionOutbound = "OUTBOUND"

	TypeText  = "TEXT"
	TypeImage = "IMAGE"
)

// Customer is one chat participant, keyed by unique phone number.
type Customer struct {
	ID          uuid.UUID `json:"id"`
	PhoneNumber string    `json:"phoneNumber"`
	Name        string    `json:"name,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Conversation groups a customer's messages until administratively closed.
type Conversation struct {
	ID            uuid.UUID `json:"id"`
	CustomerID    uuid.UUID `json:"customerId"`
	StartedAt     time.Time `json:"startedAt"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	MessageCount  int       `json:"messageCount"`
	IsActive      bool      `json:"isActive"`
}

// MessageRecord is one immutable message row.
type MessageRecord struct {
	ID             uuid.UUID `json:"id"`
	CustomerID     uuid.UUID `json:"customerId"`
	ConversationID uuid.UUID `json:"conversationId"`
	Direction      string    `json:"direction"`
	Type           string    `json:"type"`
	Content        string    `json:"content"`
	MediaURL       string    `json:"mediaUrl,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists chat state in Postgres.
type Store struct {
	pool PgxPool
}

func NewStore(pool PgxPool) *Store {
	return &Store{pool: pool}
}

const customerColumns = `id, phone_number, COALESCE(name, ''), created_at`

// UpsertCustomer resolves a phone number to its customer row, creating it
// on first contact. Resolution keys exclusively on the unique phone number
// so concurrent duplicate deliveries converge on one row; an existing name
// is never overwritten by a later event.
func (s *Store) UpsertCustomer(ctx context.Context, phoneNumber, name string) (Customer, error) {
	query := `
		INSERT INTO customers (phone_number, name)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (phone_number) DO UPDATE
		SET name = COALESCE(customers.name, EXCLUDED.name)
		RETURNING ` + customerColumns
	var c Customer
	err := s.pool.QueryRow(ctx, query, phoneNumber, name).
		Scan(&c.ID, &c.PhoneNumber, &c.Name, &c.CreatedAt)
	if err != nil {
		return Customer{}, fmt.Errorf("conversation: upsert customer: %w", err)
	}
	return c, nil
}

const conversationColumns = `id, customer_id, started_at, last_message_at, message_count, is_active`

// FindOrCreateActiveConversation returns the customer's active
// conversation, creating one when none exists. The partial unique index on
// (customer_id) WHERE is_active turns a create race into a no-op insert,
// after which the winner's row is re-fetched.
func (s *Store) FindOrCreateActiveConversation(ctx context.Context, customerID uuid.UUID) (Conversation, error) {
	conv, err := s.activeConversation(ctx, customerID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, fmt.Errorf("conversation: find active: %w", err)
	}

	insert := `
		INSERT INTO conversations (customer_id)
		VALUES ($1)
		ON CONFLICT (customer_id) WHERE is_active DO NOTHING
		RETURNING ` + conversationColumns
	err = s.pool.QueryRow(ctx, insert, customerID).
		Scan(&conv.ID, &conv.CustomerID, &conv.StartedAt, &conv.LastMessageAt, &conv.MessageCount, &conv.IsActive)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, fmt.Errorf("conversation: create: %w", err)
	}

	// Lost the create race; the conflicting row is the active conversation.
	conv, err = s.activeConversation(ctx, customerID)
	if err != nil {
		return Conversation{}, fmt.Errorf("conversation: refetch after create race: %w", err)
	}
	return conv, nil
}

func (s *Store) activeConversation(ctx context.Context, customerID uuid.UUID) (Conversation, error) {
	query := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE customer_id = $1 AND is_active
		LIMIT 1
	`
	var conv Conversation
	err := s.pool.QueryRow(ctx, query, customerID).
		Scan(&conv.ID, &conv.CustomerID, &conv.StartedAt, &conv.LastMessageAt, &conv.MessageCount, &conv.IsActive)
	return conv, err
}

// InsertMessage appends one immutable message row and returns its id.
func (s *Store) InsertMessage(ctx context.Context, rec MessageRecord) (uuid.UUID, error) {
	query := `
		INSERT INTO messages (customer_id, conversation_id, direction, type, content, media_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	var id uuid.UUID
	err := s.pool.QueryRow(ctx, query, rec.CustomerID, rec.ConversationID, rec.Direction, rec.Type, rec.Content, rec.MediaURL).
		Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("conversation: insert message: %w", err)
	}
	return id, nil
}

// TouchConversation refreshes last_message_at and bumps the message
// counter by delta (2 for a text/image event, 0 otherwise).
func (s *Store) TouchConversation(ctx context.Context, id uuid.UUID, delta int) error {
	query := `
		UPDATE conversations
		SET last_message_at = now(),
			message_count = message_count + $2
		WHERE id = $1
	`
	if _, err := s.pool.Exec(ctx, query, id, delta); err != nil {
		return fmt.Errorf("conversation: touch conversation: %w", err)
	}
	return nil
}
