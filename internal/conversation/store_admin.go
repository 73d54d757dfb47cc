package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Read models for the dashboard API.

// CustomerSummary is a customer row with message volume and the most
// recently touched conversation.
type CustomerSummary struct {
	Customer
	MessageCount       int        `json:"messageCount"`
	LastConversationID *uuid.UUID `json:"lastConversationId,omitempty"`
	LastMessageAt      *time.Time `json:"lastMessageAt,omitempty"`
}

// ConversationSummary is a conversation row with its customer and the
// latest message, for list views.
type ConversationSummary struct {
	Conversation
	Customer    Customer       `json:"customer"`
	LastMessage *MessageRecord `json:"lastMessage,omitempty"`
}

// ConversationDetail is a conversation with its full ordered transcript.
type ConversationDetail struct {
	Conversation
	Customer Customer        `json:"customer"`
	Messages []MessageRecord `json:"messages"`
}

// DayCount is one day's message volume.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// SplitCount is one slice of a categorical breakdown.
type SplitCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// TopCustomer is one row of the most-active-customers ranking.
type TopCustomer struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Messages    int    `json:"messages"`
}

// CountCustomers returns the total number of customers.
func (s *Store) CountCustomers(ctx context.Context) (int, error) {
	return s.scanCount(ctx, `SELECT COUNT(*) FROM customers`)
}

// CountMessagesSince returns the number of messages created at or after
// the given time.
func (s *Store) CountMessagesSince(ctx context.Context, since time.Time) (int, error) {
	return s.scanCount(ctx, `SELECT COUNT(*) FROM messages WHERE created_at >= $1`, since)
}

// CountActiveConversations returns the number of open conversations.
func (s *Store) CountActiveConversations(ctx context.Context) (int, error) {
	return s.scanCount(ctx, `SELECT COUNT(*) FROM conversations WHERE is_active`)
}

func (s *Store) scanCount(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("conversation: count: %w", err)
	}
	return n, nil
}

// MessagesPerDay returns message volume grouped by calendar day since the
// given time. Days with no traffic are absent; callers fill gaps.
func (s *Store) MessagesPerDay(ctx context.Context, since time.Time) ([]DayCount, error) {
	query := `
		SELECT to_char(created_at::date, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM messages
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day
	`
	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("conversation: messages per day: %w", err)
	}
	defer rows.Close()

	var out []DayCount
	for rows.Next() {
		var dc DayCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return nil, fmt.Errorf("conversation: scan day count: %w", err)
		}
		out = append(out, dc)
	}
	return out, rows.Err()
}

// DirectionCounts returns the inbound/outbound message split since the
// given time.
func (s *Store) DirectionCounts(ctx context.Context, since time.Time) ([]SplitCount, error) {
	return s.scanSplit(ctx, `
		SELECT direction, COUNT(*)
		FROM messages
		WHERE created_at >= $1
		GROUP BY direction
	`, since)
}

// TypeCounts returns the text/image message split since the given time.
func (s *Store) TypeCounts(ctx context.Context, since time.Time) ([]SplitCount, error) {
	return s.scanSplit(ctx, `
		SELECT type, COUNT(*)
		FROM messages
		WHERE created_at >= $1
		GROUP BY type
	`, since)
}

func (s *Store) scanSplit(ctx context.Context, query string, args ...any) ([]SplitCount, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("conversation: split counts: %w", err)
	}
	defer rows.Close()

	var out []SplitCount
	for rows.Next() {
		var sc SplitCount
		if err := rows.Scan(&sc.Name, &sc.Value); err != nil {
			return nil, fmt.Errorf("conversation: scan split: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

// TopCustomers ranks customers by message volume since the given time.
func (s *Store) TopCustomers(ctx context.Context, since time.Time, limit int) ([]TopCustomer, error) {
	query := `
		SELECT COALESCE(c.name, c.phone_number), c.phone_number, COUNT(m.id) AS messages
		FROM messages m
		JOIN customers c ON c.id = m.customer_id
		WHERE m.created_at >= $1
		GROUP BY c.id, c.name, c.phone_number
		ORDER BY messages DESC
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: top customers: %w", err)
	}
	defer rows.Close()

	var out []TopCustomer
	for rows.Next() {
		var tc TopCustomer
		if err := rows.Scan(&tc.Name, &tc.PhoneNumber, &tc.Messages); err != nil {
			return nil, fmt.Errorf("conversation: scan top customer: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// ListCustomers returns customers newest-first, optionally filtered by a
// phone-number or name substring, with message counts and the most
// recently touched conversation.
func (s *Store) ListCustomers(ctx context.Context, search string) ([]CustomerSummary, error) {
	query := `
		SELECT c.id, c.phone_number, COALESCE(c.name, ''), c.created_at,
			(SELECT COUNT(*) FROM messages m WHERE m.customer_id = c.id),
			latest.id, latest.last_message_at
		FROM customers c
		LEFT JOIN LATERAL (
			SELECT v.id, v.last_message_at
			FROM conversations v
			WHERE v.customer_id = c.id
			ORDER BY v.last_message_at DESC
			LIMIT 1
		) latest ON TRUE
		WHERE $1 = '' OR c.phone_number LIKE '%' || $1 || '%' OR c.name ILIKE '%' || $1 || '%'
		ORDER BY c.created_at DESC
	`
	rows, err := s.pool.Query(ctx, query, search)
	if err != nil {
		return nil, fmt.Errorf("conversation: list customers: %w", err)
	}
	defer rows.Close()

	var out []CustomerSummary
	for rows.Next() {
		var cs CustomerSummary
		var convID *uuid.UUID
		var lastAt *time.Time
		if err := rows.Scan(&cs.ID, &cs.PhoneNumber, &cs.Name, &cs.CreatedAt, &cs.MessageCount, &convID, &lastAt); err != nil {
			return nil, fmt.Errorf("conversation: scan customer summary: %w", err)
		}
		cs.LastConversationID = convID
		cs.LastMessageAt = lastAt
		out = append(out, cs)
	}
	return out, rows.Err()
}

// ListConversations returns a page of conversations ordered by recency,
// optionally filtered by customer phone or name, plus the unpaginated
// total for the same filter.
func (s *Store) ListConversations(ctx context.Context, page, limit int, search string) ([]ConversationSummary, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	total, err := s.scanCount(ctx, `
		SELECT COUNT(*)
		FROM conversations v
		JOIN customers c ON c.id = v.customer_id
		WHERE $1 = '' OR c.phone_number LIKE '%' || $1 || '%' OR c.name ILIKE '%' || $1 || '%'
	`, search)
	if err != nil {
		return nil, 0, err
	}

	query := `
		SELECT v.id, v.customer_id, v.started_at, v.last_message_at, v.message_count, v.is_active,
			c.id, c.phone_number, COALESCE(c.name, ''), c.created_at,
			last.id, last.direction, last.type, COALESCE(last.content, ''), COALESCE(last.media_url, ''), last.created_at
		FROM conversations v
		JOIN customers c ON c.id = v.customer_id
		LEFT JOIN LATERAL (
			SELECT m.id, m.direction, m.type, m.content, m.media_url, m.created_at
			FROM messages m
			WHERE m.conversation_id = v.id
			ORDER BY m.created_at DESC, m.seq DESC
			LIMIT 1
		) last ON TRUE
		WHERE $1 = '' OR c.phone_number LIKE '%' || $1 || '%' OR c.name ILIKE '%' || $1 || '%'
		ORDER BY v.last_message_at DESC
		OFFSET $2 LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, search, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("conversation: list conversations: %w", err)
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var cs ConversationSummary
		var lastID *uuid.UUID
		var lastDirection, lastType, lastContent, lastMedia *string
		var lastCreated *time.Time
		err := rows.Scan(&cs.ID, &cs.CustomerID, &cs.StartedAt, &cs.LastMessageAt, &cs.MessageCount, &cs.IsActive,
			&cs.Customer.ID, &cs.Customer.PhoneNumber, &cs.Customer.Name, &cs.Customer.CreatedAt,
			&lastID, &lastDirection, &lastType, &lastContent, &lastMedia, &lastCreated)
		if err != nil {
			return nil, 0, fmt.Errorf("conversation: scan conversation summary: %w", err)
		}
		if lastID != nil {
			cs.LastMessage = &MessageRecord{
				ID:             *lastID,
				CustomerID:     cs.CustomerID,
				ConversationID: cs.ID,
				Direction:      deref(lastDirection),
				Type:           deref(lastType),
				Content:        deref(lastContent),
				MediaURL:       deref(lastMedia),
				CreatedAt:      derefTime(lastCreated),
			}
		}
		out = append(out, cs)
	}
	return out, total, rows.Err()
}

// GetConversationDetail loads one conversation with its customer and the
// full message transcript in creation order. Returns ErrNotFound for an
// unknown id.
func (s *Store) GetConversationDetail(ctx context.Context, id uuid.UUID) (ConversationDetail, error) {
	query := `
		SELECT v.id, v.customer_id, v.started_at, v.last_message_at, v.message_count, v.is_active,
			c.id, c.phone_number, COALESCE(c.name, ''), c.created_at
		FROM conversations v
		JOIN customers c ON c.id = v.customer_id
		WHERE v.id = $1
	`
	var d ConversationDetail
	err := s.pool.QueryRow(ctx, query, id).
		Scan(&d.ID, &d.CustomerID, &d.StartedAt, &d.LastMessageAt, &d.MessageCount, &d.IsActive,
			&d.Customer.ID, &d.Customer.PhoneNumber, &d.Customer.Name, &d.Customer.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ConversationDetail{}, ErrNotFound
	}
	if err != nil {
		return ConversationDetail{}, fmt.Errorf("conversation: get conversation: %w", err)
	}

	msgQuery := `
		SELECT id, customer_id, conversation_id, direction, type, COALESCE(content, ''), COALESCE(media_url, ''), created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.pool.Query(ctx, msgQuery, id)
	if err != nil {
		return ConversationDetail{}, fmt.Errorf("conversation: list messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m MessageRecord
		if err := rows.Scan(&m.ID, &m.CustomerID, &m.ConversationID, &m.Direction, &m.Type, &m.Content, &m.MediaURL, &m.CreatedAt); err != nil {
			return ConversationDetail{}, fmt.Errorf("conversation: scan message: %w", err)
		}
		d.Messages = append(d.Messages, m)
	}
	return d, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
