package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"expensebot/internal/pipeline"
	"expensebot/internal/whatsapp"
)

type stubPipeline struct {
	result  *pipeline.Result
	err     error
	lastMsg whatsapp.InboundMessage
	handled int
}

func (s *stubPipeline) Handle(_ context.Context, msg whatsapp.InboundMessage) (*pipeline.Result, error) {
	s.handled++
	s.lastMsg = msg
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func cloudBody(from, text string) string {
	return fmt.Sprintf(`{"entry":[{"changes":[{"value":{"messages":[{"from":%q,"text":{"body":%q}}]}}]}]}`, from, text)
}

func TestVerifySucceeds(t *testing.T) {
	h := NewWebhookHandler(&stubPipeline{}, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret-token&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "12345" {
		t.Fatalf("expected challenge echoed, got %q", got)
	}
}

func TestVerifyRejectsBadToken(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"wrong token", "hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=secret-token&hub.challenge=12345"},
		{"missing params", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewWebhookHandler(&stubPipeline{}, "secret-token")

			req := httptest.NewRequest(http.MethodGet, "/webhook?"+tc.query, nil)
			rec := httptest.NewRecorder()
			h.Verify(rec, req)

			if rec.Code != http.StatusForbidden {
				t.Fatalf("expected 403, got %d", rec.Code)
			}
		})
	}
}

func TestReceiveCloudPayload(t *testing.T) {
	stub := &stubPipeline{result: &pipeline.Result{
		Outcome: pipeline.OutcomeAdded,
		Reply:   "Expense added successfully ✅",
	}}
	h := NewWebhookHandler(stub, "secret-token")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(cloudBody("15551234567", "spent 50 on lunch")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastMsg.Sender != "15551234567" || stub.lastMsg.Text != "spent 50 on lunch" {
		t.Fatalf("unexpected message passed to pipeline: %+v", stub.lastMsg)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["outcome"] != "added" {
		t.Fatalf("expected outcome added, got %q", resp["outcome"])
	}
	if resp["message"] == "" {
		t.Fatal("expected reply message in response")
	}
}

func TestReceiveFormPayload(t *testing.T) {
	stub := &stubPipeline{result: &pipeline.Result{
		Outcome: pipeline.OutcomeQueryAnswered,
		Reply:   "You have spent a total of 100 Rs on food.\n",
	}}
	h := NewWebhookHandler(stub, "secret-token")

	form := url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"how much on food"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.lastMsg.Sender != "whatsapp:+15551234567" {
		t.Fatalf("unexpected sender: %q", stub.lastMsg.Sender)
	}
}

func TestReceiveStatusOnlyEnvelopeIsAcknowledged(t *testing.T) {
	stub := &stubPipeline{}
	h := NewWebhookHandler(stub, "secret-token")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"entry":[{"changes":[{"value":{"statuses":[{"id":"wamid.X"}]}}]}]}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.handled != 0 {
		t.Fatal("pipeline should not run for status-only deliveries")
	}
}

func TestReceiveFormPayloadMissingBodyIsRejected(t *testing.T) {
	stub := &stubPipeline{}
	h := NewWebhookHandler(stub, "secret-token")

	form := url.Values{"From": {"whatsapp:+15551234567"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for form payload without body, got %d", rec.Code)
	}
	if stub.handled != 0 {
		t.Fatal("pipeline should not run for incomplete form payloads")
	}
}

func TestReceiveMalformedPayload(t *testing.T) {
	stub := &stubPipeline{}
	h := NewWebhookHandler(stub, "secret-token")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if stub.handled != 0 {
		t.Fatal("pipeline should not run for malformed payloads")
	}
}

func TestReceiveStorageFault(t *testing.T) {
	stub := &stubPipeline{err: errors.New("disk full")}
	h := NewWebhookHandler(stub, "secret-token")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(cloudBody("15551234567", "spent 50 on lunch")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "disk full") {
		t.Fatal("internal error detail must not leak to the caller")
	}
}

func TestReceiveDeliveryFailureReportsOutcome(t *testing.T) {
	stub := &stubPipeline{result: &pipeline.Result{
		Outcome:     pipeline.OutcomeAdded,
		Reply:       "Expense added successfully ✅",
		DeliveryErr: errors.New("send failed"),
	}}
	h := NewWebhookHandler(stub, "secret-token")

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(cloudBody("15551234567", "spent 50 on lunch")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp["outcome"] != "added" {
		t.Fatalf("business outcome must be reported even on delivery failure, got %q", resp["outcome"])
	}
}

func TestServerRoutes(t *testing.T) {
	stub := &stubPipeline{result: &pipeline.Result{Outcome: pipeline.OutcomeUnrecognized, Reply: "Could not understand your request. Please try again."}}
	srv := NewServer(":0", NewWebhookHandler(stub, "secret-token"))
	defer srv.Shutdown(context.Background())

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("readyz request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from readyz, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/webhook", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for DELETE, got %d", resp.StatusCode)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter()
	defer rl.stop()

	for i := 0; i < 60; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("request 61 should be rejected")
	}
	if !rl.allow("5.6.7.8") {
		t.Fatal("other clients should be unaffected")
	}
}
