package whatsapp

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// InboundMessage is the provider-independent view of one webhook
// delivery: who sent it and what they said.
type InboundMessage struct {
	Sender string
	Text   string
}

// ErrNoMessage marks a well-formed cloud envelope that carries no text
// message, such as a delivery receipt. ErrIncompleteForm marks a form
// envelope missing its sender or body; unlike status-only cloud
// deliveries these are validation faults, not ignorable events.
var (
	ErrNoMessage      = errors.New("payload contains no message body")
	ErrIncompleteForm = errors.New("form payload missing sender or body")
)

// cloudEnvelope is the Meta webhook shape:
// entry[].changes[].value.messages[].{from, text.body}.
type cloudEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseCloudPayload extracts the first text message from a Meta-style
// nested webhook body. Status-only deliveries (no messages array) yield
// ErrNoMessage.
func ParseCloudPayload(body []byte) (InboundMessage, error) {
	var env cloudEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return InboundMessage{}, err
	}

	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.From == "" || msg.Text.Body == "" {
					continue
				}
				return InboundMessage{Sender: msg.From, Text: msg.Text.Body}, nil
			}
		}
	}
	return InboundMessage{}, ErrNoMessage
}

// ParseFormPayload extracts sender and text from the flat From/Body
// form-field envelope used by Twilio-style providers.
func ParseFormPayload(form url.Values) (InboundMessage, error) {
	from := strings.TrimSpace(form.Get("From"))
	body := strings.TrimSpace(form.Get("Body"))
	if from == "" || body == "" {
		return InboundMessage{}, ErrIncompleteForm
	}
	return InboundMessage{Sender: from, Text: body}, nil
}
