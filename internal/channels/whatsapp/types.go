package whatsapp

import "time"

// WebhookEvent is the top-level structure received from Meta's webhook.
type WebhookEvent struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry represents a single entry in the webhook payload.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change wraps one field-level change notification.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the messages and contact profiles for a change.
type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Metadata         Metadata  `json:"metadata"`
	Contacts         []Contact `json:"contacts"`
	Messages         []Message `json:"messages"`
	Statuses         []Status  `json:"statuses"`
}

// Metadata identifies the business phone number the event belongs to.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact carries the sender's contact profile.
type Contact struct {
	WaID    string  `json:"wa_id"`
	Profile Profile `json:"profile"`
}

// Profile is the platform-supplied display name.
type Profile struct {
	Name string `json:"name"`
}

// Message is one inbound message in a webhook delivery.
type Message struct {
	From      string     `json:"from"`
	ID        string     `json:"id"`
	Timestamp string     `json:"timestamp"`
	Type      string     `json:"type"`
	Text      *TextBody  `json:"text,omitempty"`
	Image     *ImageBody `json:"image,omitempty"`
}

// TextBody is the payload of a text message.
type TextBody struct {
	Body string `json:"body"`
}

// ImageBody is the payload of an image message.
type ImageBody struct {
	ID       string `json:"id"`
	Caption  string `json:"caption"`
	MimeType string `json:"mime_type"`
	SHA256   string `json:"sha256"`
}

// Status is a delivery-status callback entry (sent, delivered, read).
type Status struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RecipientID string `json:"recipient_id"`
}

// sendTextRequest is the payload for sending a text message.
type sendTextRequest struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Text             sendTextBody `json:"text"`
}

type sendTextBody struct {
	Body string `json:"body"`
}

// markReadRequest acknowledges an inbound message as read.
type markReadRequest struct {
	MessagingProduct string `json:"messaging_product"`
	Status           string `json:"status"`
	MessageID        string `json:"message_id"`
}

// SendResponse is the Cloud API response after sending a message.
type SendResponse struct {
	Messages []SentMessage `json:"messages"`
	Error    *APIError     `json:"error,omitempty"`
}

// SentMessage holds the provider-assigned message id.
type SentMessage struct {
	ID string `json:"id"`
}

// MediaResponse is the Cloud API response for a media lookup.
type MediaResponse struct {
	URL      string    `json:"url"`
	MimeType string    `json:"mime_type"`
	SHA256   string    `json:"sha256"`
	FileSize int64     `json:"file_size"`
	ID       string    `json:"id"`
	Error    *APIError `json:"error,omitempty"`
}

// APIError represents an error object returned by the Graph API.
type APIError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	FBTraceID string `json:"fbtrace_id"`
}

// InboundMessage is the normalized result of extracting a message from
// a webhook event.
type InboundMessage struct {
	From         string
	MessageID    string
	Type         string
	Text         string
	ImageID      string
	ImageCaption string
	ImageMime    string
	ContactName  string
	Timestamp    time.Time
}
