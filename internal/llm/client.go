// Package llm talks to an OpenAI-compatible chat-completion endpoint to
// classify inbound messages and extract structured expense data. Every
// call degrades to an "absent" result on failure; the returned error is
// diagnostic only and carries the fault kind for logging.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"expensebot/internal/core"
)

// FaultKind distinguishes why a completion call produced no usable
// result. The pipeline collapses all kinds to one user-facing reply but
// keeps the reason for diagnosis.
type FaultKind string

const (
	FaultTransport FaultKind = "transport" // network error, timeout, non-success status
	FaultProtocol  FaultKind = "protocol"  // response present but not in the expected shape
)

// Fault wraps the underlying error with its kind.
type Fault struct {
	Kind FaultKind
	Err  error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s fault: %v", f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

type Client struct {
	client *openai.Client
	model  string
}

// New builds a client against the configured completion endpoint. The
// base URL points at any OpenAI-compatible provider.
func New(apiKey, baseURL, model string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

const classifyPrompt = `You are an assistant that determines if the user wants to add an expense or query past expenses.

- If the user is reporting a new expense (e.g., "I spent 100 on lunch", "Bought groceries for 500"), classify it as 'add'.
- If the user is asking about past expenses (e.g., "How much did I spend on food?", "Show my transactions"), classify it as 'query'.
- Respond with ONLY one word: 'add', 'query' or 'none'. Do not explain.`

// ClassifyIntent labels a message as add, query or unknown. Any
// transport or protocol fault, and any response outside the expected
// vocabulary, maps to IntentUnknown; the call never fails the caller.
func (c *Client) ClassifyIntent(ctx context.Context, message string) (core.Intent, error) {
	content, err := c.complete(ctx, classifyPrompt, message)
	if err != nil {
		return core.IntentUnknown, err
	}

	switch strings.ToLower(strings.TrimSpace(content)) {
	case "add":
		return core.IntentAdd, nil
	case "query":
		return core.IntentQuery, nil
	case "none":
		return core.IntentUnknown, nil
	default:
		return core.IntentUnknown, &Fault{Kind: FaultProtocol, Err: fmt.Errorf("unexpected classification %q", content)}
	}
}

const termPrompt = `Extract the expense category or item name from the user's query.

- If the user asks "How much did I spend on food?", return "food".
- If they ask "How much for a dustbin?", return "dustbin".
- If no category or item is found, return "unknown".

Respond with ONLY the extracted term (no explanations).`

// ExtractTerm pulls a single search term out of a query-type message.
// An empty string means the term could not be determined. No retries.
func (c *Client) ExtractTerm(ctx context.Context, message string) (string, error) {
	content, err := c.complete(ctx, termPrompt, message)
	if err != nil {
		return "", err
	}

	term := strings.ToLower(strings.TrimSpace(content))
	if term == "unknown" || term == "" {
		return "", nil
	}
	return term, nil
}

const extractPrompt = `Extract expense details from user input and return a JSON object with keys: amount, category, description, date. Use an empty string for anything the user did not state.`

// ExtractExpense pulls structured fields out of an add-type message.
// The model may wrap its JSON in prose, so the first balanced {...}
// substring of the reply is parsed. A nil result means extraction
// failed. A missing or empty date is substituted with the reference
// date; anything else goes through relative-date resolution.
func (c *Client) ExtractExpense(ctx context.Context, message string, ref time.Time) (*core.ExtractedExpense, error) {
	content, err := c.complete(ctx, extractPrompt, message)
	if err != nil {
		return nil, err
	}

	extracted, err := parseExpenseReply(content)
	if err != nil {
		return nil, &Fault{Kind: FaultProtocol, Err: err}
	}

	if strings.TrimSpace(extracted.Date) == "" {
		extracted.Date = ref.Format(core.DateLayout)
	} else {
		extracted.Date = core.ResolveRelativeDate(extracted.Date, ref)
	}

	return extracted, nil
}

// complete issues a single-turn completion and returns the raw reply
// text. All failure modes come back as a *Fault.
func (c *Client) complete(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", &Fault{Kind: FaultTransport, Err: err}
	}

	if len(resp.Choices) == 0 {
		return "", &Fault{Kind: FaultProtocol, Err: fmt.Errorf("no choices in completion response")}
	}

	return resp.Choices[0].Message.Content, nil
}
