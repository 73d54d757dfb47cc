package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultGraphAPIBase = "https://graph.facebook.com/v19.0"
	defaultHTTPTimeout  = 15 * time.Second

	messagingProduct = "whatsapp"
)

// Client sends messages via the WhatsApp Cloud API. It carries no retry
// logic; callers decide what a failed call means.
type Client struct {
	token         string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
}

// NewClient creates a new Cloud API client for one business phone number.
func NewClient(token, phoneNumberID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &Client{
		token:         token,
		phoneNumberID: phoneNumberID,
		baseURL:       defaultGraphAPIBase,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// SetBaseURL overrides the Graph API base URL (useful for testing).
func (c *Client) SetBaseURL(base string) {
	c.baseURL = base
}

// SendText sends a plain text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	payload := sendTextRequest{
		MessagingProduct: messagingProduct,
		To:               to,
		Type:             "text",
		Text:             sendTextBody{Body: body},
	}
	var resp SendResponse
	if err := c.post(ctx, "send_text", c.messagesURL(), payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 {
		return "", transportErr("send_text", 0, errors.New("response carried no message id"))
	}
	return resp.Messages[0].ID, nil
}

// MarkRead acknowledges an inbound message as read.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	payload := markReadRequest{
		MessagingProduct: messagingProduct,
		Status:           "read",
		MessageID:        messageID,
	}
	var resp SendResponse
	return c.post(ctx, "mark_read", c.messagesURL(), payload, &resp)
}

// MediaURL resolves a media id to its retrievable (time-limited) URL.
func (c *Client) MediaURL(ctx context.Context, mediaID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/%s", c.baseURL, mediaID), nil)
	if err != nil {
		return "", transportErr("media_url", 0, err)
	}
	c.authorize(req)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportErr("media_url", 0, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", transportErr("media_url", httpResp.StatusCode, err)
	}

	var resp MediaResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", transportErr("media_url", httpResp.StatusCode, err)
	}
	if resp.Error != nil {
		return "", transportErr("media_url", httpResp.StatusCode, fmt.Errorf("api error %d: %s", resp.Error.Code, resp.Error.Message))
	}
	if httpResp.StatusCode != http.StatusOK {
		return "", transportErr("media_url", httpResp.StatusCode, fmt.Errorf("unexpected status: %s", string(raw)))
	}
	if resp.URL == "" {
		return "", transportErr("media_url", httpResp.StatusCode, errors.New("response carried no url"))
	}
	return resp.URL, nil
}

// DownloadMedia fetches the raw bytes behind a resolved media URL.
func (c *Client) DownloadMedia(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, transportErr("download_media", 0, err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportErr("download_media", 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, transportErr("download_media", resp.StatusCode, errors.New("unexpected status"))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportErr("download_media", resp.StatusCode, err)
	}
	return data, nil
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

func (c *Client) post(ctx context.Context, op, url string, payload any, out *SendResponse) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return transportErr(op, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return transportErr(op, 0, err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return transportErr(op, 0, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return transportErr(op, httpResp.StatusCode, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return transportErr(op, httpResp.StatusCode, err)
	}
	if out.Error != nil {
		return transportErr(op, httpResp.StatusCode, fmt.Errorf("api error %d: %s", out.Error.Code, out.Error.Message))
	}
	if httpResp.StatusCode != http.StatusOK {
		return transportErr(op, httpResp.StatusCode, fmt.Errorf("unexpected status: %s", string(raw)))
	}
	return nil
}
