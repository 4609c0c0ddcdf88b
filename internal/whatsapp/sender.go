// Package whatsapp sends replies through the WhatsApp Cloud API and
// normalizes inbound webhook payloads.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// errOutsideSessionWindow is the provider code returned when more than
// 24 hours have passed since the user's last message; only pre-approved
// template messages may be sent then.
const errOutsideSessionWindow = 131047

const defaultBaseURL = "https://graph.facebook.com"

// SendResult is the provider's response payload for a delivered message.
type SendResult struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
	// UsedTemplate reports that delivery fell back to the template
	// message because the session window had expired.
	UsedTemplate bool `json:"-"`
}

// DeliveryError is a non-recoverable provider or transport failure.
type DeliveryError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("whatsapp delivery failed (status %d, code %d): %s", e.StatusCode, e.Code, e.Message)
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type Sender struct {
	httpClient       *http.Client
	baseURL          string
	accessToken      string
	phoneNumberID    string
	apiVersion       string
	templateName     string
	defaultRecipient string
}

type SenderOption func(*Sender)

// WithBaseURL overrides the Graph API host, used in tests.
func WithBaseURL(url string) SenderOption {
	return func(s *Sender) { s.baseURL = url }
}

func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *Sender) { s.httpClient = c }
}

func NewSender(accessToken, phoneNumberID, apiVersion, templateName, defaultRecipient string, opts ...SenderOption) *Sender {
	s := &Sender{
		httpClient:       &http.Client{Timeout: 15 * time.Second},
		baseURL:          defaultBaseURL,
		accessToken:      accessToken,
		phoneNumberID:    phoneNumberID,
		apiVersion:       apiVersion,
		templateName:     templateName,
		defaultRecipient: defaultRecipient,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send posts a free-text message to the recipient. When the provider
// rejects it because the session window expired, it retries once with
// the pre-approved template. Any other failure surfaces to the caller.
func (s *Sender) Send(ctx context.Context, recipient, text string) (*SendResult, error) {
	to := recipient
	if to == "" {
		to = s.defaultRecipient
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]any{"body": text},
	}

	res, err := s.post(ctx, payload)
	if err == nil {
		return res, nil
	}

	var de *DeliveryError
	if errors.As(err, &de) && de.Code == errOutsideSessionWindow {
		slog.WarnContext(ctx, "Session window expired, falling back to template message",
			"recipient", to,
			"template", s.templateName)
		return s.sendTemplate(ctx, to)
	}

	return nil, err
}

// sendTemplate delivers the pre-approved re-engagement template, the
// only message type the provider accepts outside the session window.
func (s *Sender) sendTemplate(ctx context.Context, to string) (*SendResult, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "template",
		"template": map[string]any{
			"name":     s.templateName,
			"language": map[string]any{"code": "en_US"},
			"components": []map[string]any{
				{
					"type": "body",
					"parameters": []map[string]any{
						{"type": "text", "text": "Hey, please respond so I can continue sending messages!"},
					},
				},
			},
		},
	}

	res, err := s.post(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("template fallback: %w", err)
	}
	res.UsedTemplate = true
	return res, nil
}

func (s *Sender) post(ctx context.Context, payload map[string]any) (*SendResult, error) {
	url := fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.apiVersion, s.phoneNumberID)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &DeliveryError{StatusCode: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DeliveryError{StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		var ae apiError
		_ = json.Unmarshal(respBody, &ae)
		return nil, &DeliveryError{
			StatusCode: resp.StatusCode,
			Code:       ae.Error.Code,
			Message:    ae.Error.Message,
		}
	}

	var res SendResult
	if err := json.Unmarshal(respBody, &res); err != nil {
		return nil, &DeliveryError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response: %v", err)}
	}
	return &res, nil
}
