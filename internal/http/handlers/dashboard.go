// Package handlers implements the admin dashboard API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PKOOOO/whatsapp-ai-sdk/internal/botconfig"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/conversation"
	"github.com/PKOOOO/whatsapp-ai-sdk/pkg/logging"
)

// ConversationStore is the read surface the dashboard needs from the
// conversation store.
type ConversationStore interface {
	CountCustomers(ctx context.Context) (int, error)
	CountMessagesSince(ctx context.Context, since time.Time) (int, error)
	CountActiveConversations(ctx context.Context) (int, error)
	MessagesPerDay(ctx context.Context, since time.Time) ([]conversation.DayCount, error)
	DirectionCounts(ctx context.Context, since time.Time) ([]conversation.SplitCount, error)
	TypeCounts(ctx context.Context, since time.Time) ([]conversation.SplitCount, error)
	TopCustomers(ctx context.Context, since time.Time, limit int) ([]conversation.TopCustomer, error)
	ListCustomers(ctx context.Context, search string) ([]conversation.CustomerSummary, error)
	ListConversations(ctx context.Context, page, limit int, search string) ([]conversation.ConversationSummary, int, error)
	GetConversationDetail(ctx context.Context, id uuid.UUID) (conversation.ConversationDetail, error)
}

// SettingsStore reads and writes the singleton bot configuration.
type SettingsStore interface {
	Get(ctx context.Context) (botconfig.Settings, error)
	Update(ctx context.Context, settings botconfig.Settings) (botconfig.Settings, error)
}

// DashboardHandler serves the admin dashboard endpoints.
type DashboardHandler struct {
	store    ConversationStore
	settings SettingsStore
	logger   *logging.Logger
}

// NewDashboardHandler creates a dashboard handler.
func NewDashboardHandler(store ConversationStore, settings SettingsStore, logger *logging.Logger) *DashboardHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &DashboardHandler{store: store, settings: settings, logger: logger}
}

// Routes mounts all dashboard endpoints on the given router.
func (h *DashboardHandler) Routes(r chi.Router) {
	r.Get("/stats", h.GetStats)
	r.Get("/analytics", h.GetAnalytics)
	r.Get("/conversations", h.ListConversations)
	r.Get("/conversations/{conversationID}", h.GetConversation)
	r.Get("/customers", h.ListCustomers)
	r.Get("/settings", h.GetSettings)
	r.Post("/settings", h.UpdateSettings)
}

// StatsResponse is the dashboard overview payload.
type StatsResponse struct {
	TotalCustomers      int                     `json:"totalCustomers"`
	MessagesToday       int                     `json:"messagesToday"`
	ActiveConversations int                     `json:"activeConversations"`
	BotActive           bool                    `json:"botActive"`
	DailyMessages       []conversation.DayCount `json:"dailyMessages"`
}

// GetStats returns the dashboard overview.
// GET /dashboard/stats
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	now := time.Now()
	today := now.Truncate(24 * time.Hour)
	weekAgo := today.AddDate(0, 0, -6)

	var resp StatsResponse
	var err error
	if resp.TotalCustomers, err = h.store.CountCustomers(ctx); err != nil {
		h.serverError(w, "count customers", err)
		return
	}
	if resp.MessagesToday, err = h.store.CountMessagesSince(ctx, today); err != nil {
		h.serverError(w, "count messages today", err)
		return
	}
	if resp.ActiveConversations, err = h.store.CountActiveConversations(ctx); err != nil {
		h.serverError(w, "count active conversations", err)
		return
	}

	days, err := h.store.MessagesPerDay(ctx, weekAgo)
	if err != nil {
		h.serverError(w, "messages per day", err)
		return
	}
	resp.DailyMessages = fillDays(weekAgo, 7, days)

	settings, err := h.settings.Get(ctx)
	if err != nil {
		h.serverError(w, "load settings", err)
		return
	}
	resp.BotActive = settings.IsActive

	writeJSON(w, http.StatusOK, resp)
}

// AnalyticsResponse is the analytics payload.
type AnalyticsResponse struct {
	Days          int                       `json:"days"`
	DailyMessages []conversation.DayCount   `json:"dailyMessages"`
	Directions    []conversation.SplitCount `json:"directions"`
	Types         []conversation.SplitCount `json:"types"`
	TopCustomers  []conversation.TopCustomer `json:"topCustomers"`
}

// GetAnalytics returns message volume breakdowns over a trailing window.
// GET /dashboard/analytics?days=N
func (h *DashboardHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	days := queryInt(r, "days", 7)
	if days < 1 {
		days = 7
	}
	if days > 90 {
		days = 90
	}
	since := time.Now().Truncate(24 * time.Hour).AddDate(0, 0, -(days - 1))

	resp := AnalyticsResponse{Days: days}
	daily, err := h.store.MessagesPerDay(ctx, since)
	if err != nil {
		h.serverError(w, "messages per day", err)
		return
	}
	resp.DailyMessages = fillDays(since, days, daily)

	if resp.Directions, err = h.store.DirectionCounts(ctx, since); err != nil {
		h.serverError(w, "direction counts", err)
		return
	}
	if resp.Types, err = h.store.TypeCounts(ctx, since); err != nil {
		h.serverError(w, "type counts", err)
		return
	}
	if resp.TopCustomers, err = h.store.TopCustomers(ctx, since, 10); err != nil {
		h.serverError(w, "top customers", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// ConversationListResponse is a page of conversations.
type ConversationListResponse struct {
	Conversations []conversation.ConversationSummary `json:"conversations"`
	Total         int                                `json:"total"`
	Page          int                                `json:"page"`
	Limit         int                                `json:"limit"`
}

// ListConversations returns a page of conversations ordered by recency.
// GET /dashboard/conversations?page=&limit=&search=
func (h *DashboardHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 10)
	if limit > 100 {
		limit = 100
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	items, total, err := h.store.ListConversations(r.Context(), page, limit, search)
	if err != nil {
		h.serverError(w, "list conversations", err)
		return
	}
	if items == nil {
		items = []conversation.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, ConversationListResponse{
		Conversations: items,
		Total:         total,
		Page:          page,
		Limit:         limit,
	})
}

// GetConversation returns one conversation with its full transcript.
// GET /dashboard/conversations/{conversationID}
func (h *DashboardHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "conversationID"))
	if err != nil {
		http.Error(w, "invalid conversation id", http.StatusBadRequest)
		return
	}

	detail, err := h.store.GetConversationDetail(r.Context(), id)
	if errors.Is(err, conversation.ErrNotFound) {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.serverError(w, "get conversation", err)
		return
	}
	if detail.Messages == nil {
		detail.Messages = []conversation.MessageRecord{}
	}
	writeJSON(w, http.StatusOK, detail)
}

// CustomerListResponse is the customer directory payload.
type CustomerListResponse struct {
	Customers []conversation.CustomerSummary `json:"customers"`
	Total     int                            `json:"total"`
}

// ListCustomers returns the customer directory.
// GET /dashboard/customers?search=
func (h *DashboardHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	items, err := h.store.ListCustomers(r.Context(), search)
	if err != nil {
		h.serverError(w, "list customers", err)
		return
	}
	if items == nil {
		items = []conversation.CustomerSummary{}
	}
	writeJSON(w, http.StatusOK, CustomerListResponse{Customers: items, Total: len(items)})
}

// GetSettings returns the bot configuration, creating it with defaults on
// first read.
// GET /dashboard/settings
func (h *DashboardHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.Get(r.Context())
	if err != nil {
		h.serverError(w, "load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettingsRequest is the settings update payload.
type UpdateSettingsRequest struct {
	BotName        string `json:"botName"`
	SystemPrompt   string `json:"systemPrompt"`
	WelcomeMessage string `json:"welcomeMessage"`
	MaxTokens      int    `json:"maxTokens"`
	IsActive       bool   `json:"isActive"`
}

// UpdateSettings overwrites the bot configuration.
// POST /dashboard/settings
func (h *DashboardHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.MaxTokens <= 0 {
		http.Error(w, "maxTokens must be positive", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.SystemPrompt) == "" {
		http.Error(w, "systemPrompt is required", http.StatusBadRequest)
		return
	}

	updated, err := h.settings.Update(r.Context(), botconfig.Settings{
		BotName:        req.BotName,
		SystemPrompt:   req.SystemPrompt,
		WelcomeMessage: req.WelcomeMessage,
		MaxTokens:      req.MaxTokens,
		IsActive:       req.IsActive,
	})
	if err != nil {
		h.serverError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *DashboardHandler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("dashboard query failed", "op", op, "error", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

// fillDays expands sparse per-day counts into a dense window of n days
// starting at since, zero-filling days with no traffic.
func fillDays(since time.Time, n int, counts []conversation.DayCount) []conversation.DayCount {
	byDay := make(map[string]int, len(counts))
	for _, dc := range counts {
		byDay[dc.Date] = dc.Count
	}
	out := make([]conversation.DayCount, 0, n)
	for i := 0; i < n; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		out = append(out, conversation.DayCount{Date: day, Count: byDay[day]})
	}
	return out
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
