package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/PKOOOO/whatsapp-ai-sdk/internal/botconfig"
	"github.com/PKOOOO/whatsapp-ai-sdk/internal/conversation"
)

type fakeConversationStore struct {
	customers     int
	messagesToday int
	activeConvs   int
	daily         []conversation.DayCount
	directions    []conversation.SplitCount
	types         []conversation.SplitCount
	top           []conversation.TopCustomer
	customerList  []conversation.CustomerSummary
	convList      []conversation.ConversationSummary
	convTotal     int
	detail        conversation.ConversationDetail
	detailErr     error

	gotPage, gotLimit int
	gotSearch         string
}

func (f *fakeConversationStore) CountCustomers(ctx context.Context) (int, error) {
	return f.customers, nil
}

func (f *fakeConversationStore) CountMessagesSince(ctx context.Context, since time.Time) (int, error) {
	return f.messagesToday, nil
}

func (f *fakeConversationStore) CountActiveConversations(ctx context.Context) (int, error) {
	return f.activeConvs, nil
}

func (f *fakeConversationStore) MessagesPerDay(ctx context.Context, since time.Time) ([]conversation.DayCount, error) {
	return f.daily, nil
}

func (f *fakeConversationStore) DirectionCounts(ctx context.Context, since time.Time) ([]conversation.SplitCount, error) {
	return f.directions, nil
}

func (f *fakeConversationStore) TypeCounts(ctx context.Context, since time.Time) ([]conversation.SplitCount, error) {
	return f.types, nil
}

func (f *fakeConversationStore) TopCustomers(ctx context.Context, since time.Time, limit int) ([]conversation.TopCustomer, error) {
	return f.top, nil
}

func (f *fakeConversationStore) ListCustomers(ctx context.Context, search string) ([]conversation.CustomerSummary, error) {
	f.gotSearch = search
	return f.customerList, nil
}

func (f *fakeConversationStore) ListConversations(ctx context.Context, page, limit int, search string) ([]conversation.ConversationSummary, int, error) {
	f.gotPage, f.gotLimit, f.gotSearch = page, limit, search
	return f.convList, f.convTotal, nil
}

func (f *fakeConversationStore) GetConversationDetail(ctx context.Context, id uuid.UUID) (conversation.ConversationDetail, error) {
	if f.detailErr != nil {
		return conversation.ConversationDetail{}, f.detailErr
	}
	return f.detail, nil
}

type fakeSettingsStore struct {
	settings botconfig.Settings
	getErr   error
	updated  *botconfig.Settings
}

func (f *fakeSettingsStore) Get(ctx context.Context) (botconfig.Settings, error) {
	return f.settings, f.getErr
}

func (f *fakeSettingsStore) Update(ctx context.Context, s botconfig.Settings) (botconfig.Settings, error) {
	f.updated = &s
	s.UpdatedAt = time.Now()
	return s, nil
}

func newTestRouter(store *fakeConversationStore, settings *fakeSettingsStore) http.Handler {
	h := NewDashboardHandler(store, settings, nil)
	r := chi.NewRouter()
	r.Route("/dashboard", h.Routes)
	return r
}

func TestGetStats(t *testing.T) {
	store := &fakeConversationStore{
		customers:     12,
		messagesToday: 4,
		activeConvs:   3,
		daily: []conversation.DayCount{
			{Date: time.Now().Format("2006-01-02"), Count: 4},
		},
	}
	settings := &fakeSettingsStore{settings: botconfig.Settings{IsActive: true}}
	router := newTestRouter(store, settings)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.TotalCustomers != 12 || resp.MessagesToday != 4 || resp.ActiveConversations != 3 || !resp.BotActive {
		t.Errorf("unexpected stats: %+v", resp)
	}
	if len(resp.DailyMessages) != 7 {
		t.Fatalf("expected dense 7-day window, got %d entries", len(resp.DailyMessages))
	}
	if resp.DailyMessages[6].Count != 4 {
		t.Errorf("today's count = %d, want 4", resp.DailyMessages[6].Count)
	}
	for _, dc := range resp.DailyMessages[:6] {
		if dc.Count != 0 {
			t.Errorf("expected zero-filled day, got %+v", dc)
		}
	}
}

func TestGetAnalyticsWindowClamped(t *testing.T) {
	store := &fakeConversationStore{
		directions: []conversation.SplitCount{{Name: "INBOUND", Value: 5}},
		types:      []conversation.SplitCount{{Name: "TEXT", Value: 5}},
	}
	router := newTestRouter(store, &fakeSettingsStore{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/analytics?days=500", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp AnalyticsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Days != 90 || len(resp.DailyMessages) != 90 {
		t.Errorf("days = %d, daily entries = %d, want clamp to 90", resp.Days, len(resp.DailyMessages))
	}
	if len(resp.Directions) != 1 || resp.Directions[0].Name != "INBOUND" {
		t.Errorf("unexpected directions: %+v", resp.Directions)
	}
}

func TestListConversationsPassesPagination(t *testing.T) {
	store := &fakeConversationStore{convTotal: 42}
	router := newTestRouter(store, &fakeSettingsStore{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/conversations?page=3&limit=20&search=555", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.gotPage != 3 || store.gotLimit != 20 || store.gotSearch != "555" {
		t.Errorf("pagination not threaded: page=%d limit=%d search=%q", store.gotPage, store.gotLimit, store.gotSearch)
	}
	var resp ConversationListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 42 || resp.Conversations == nil {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	store := &fakeConversationStore{detailErr: conversation.ErrNotFound}
	router := newTestRouter(store, &fakeSettingsStore{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/conversations/"+uuid.NewString(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetConversationBadID(t *testing.T) {
	router := newTestRouter(&fakeConversationStore{}, &fakeSettingsStore{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/conversations/not-a-uuid", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetConversationDetail(t *testing.T) {
	convID := uuid.New()
	store := &fakeConversationStore{detail: conversation.ConversationDetail{
		Conversation: conversation.Conversation{ID: convID, MessageCount: 2},
		Customer:     conversation.Customer{PhoneNumber: "15551234567"},
		Messages: []conversation.MessageRecord{
			{Direction: conversation.DirectionInbound, Content: "Hi"},
			{Direction: conversation.DirectionOutbound, Content: "Hello!"},
		},
	}}
	router := newTestRouter(store, &fakeSettingsStore{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/conversations/"+convID.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp conversation.ConversationDetail
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != convID || len(resp.Messages) != 2 {
		t.Errorf("unexpected detail: %+v", resp)
	}
}

func TestListCustomers(t *testing.T) {
	store := &fakeConversationStore{customerList: []conversation.CustomerSummary{
		{Customer: conversation.Customer{PhoneNumber: "15551234567"}, MessageCount: 6},
	}}
	router := newTestRouter(store, &fakeSettingsStore{})

	req := httptest.NewRequest(http.MethodGet, "/dashboard/customers?search=maya", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.gotSearch != "maya" {
		t.Errorf("search = %q", store.gotSearch)
	}
	var resp CustomerListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || resp.Customers[0].MessageCount != 6 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestGetSettings(t *testing.T) {
	settings := &fakeSettingsStore{settings: botconfig.Settings{
		BotName:   botconfig.DefaultBotName,
		MaxTokens: botconfig.DefaultMaxTokens,
		IsActive:  true,
	}}
	router := newTestRouter(&fakeConversationStore{}, settings)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/settings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp botconfig.Settings
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.BotName != botconfig.DefaultBotName || resp.MaxTokens != botconfig.DefaultMaxTokens {
		t.Errorf("unexpected settings: %+v", resp)
	}
}

func TestUpdateSettings(t *testing.T) {
	settings := &fakeSettingsStore{}
	router := newTestRouter(&fakeConversationStore{}, settings)

	body := `{"botName":"Helper","systemPrompt":"Be nice.","welcomeMessage":"Hi!","maxTokens":512,"isActive":false}`
	req := httptest.NewRequest(http.MethodPost, "/dashboard/settings", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if settings.updated == nil {
		t.Fatal("update not invoked")
	}
	if settings.updated.BotName != "Helper" || settings.updated.MaxTokens != 512 || settings.updated.IsActive {
		t.Errorf("unexpected update: %+v", settings.updated)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	router := newTestRouter(&fakeConversationStore{}, &fakeSettingsStore{})

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"zero max tokens", `{"systemPrompt":"x","maxTokens":0}`},
		{"empty system prompt", `{"systemPrompt":"  ","maxTokens":512}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/dashboard/settings", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestServerErrorPath(t *testing.T) {
	settings := &fakeSettingsStore{getErr: errors.New("db down")}
	router := newTestRouter(&fakeConversationStore{}, settings)

	req := httptest.NewRequest(http.MethodGet, "/dashboard/settings", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
