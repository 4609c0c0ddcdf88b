package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"expensebot/internal/core"
)

// parseExpenseReply isolates the best-effort structured extraction from
// the model's free-text reply. The reply is untrusted: the JSON may be
// wrapped in prose, field types vary between runs (amount arrives as a
// number or a numeric string), and fields may be missing entirely.
func parseExpenseReply(reply string) (*core.ExtractedExpense, error) {
	raw, ok := firstJSONObject(reply)
	if !ok {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("parse extracted JSON: %w", err)
	}

	return &core.ExtractedExpense{
		Amount:      numberValue(fields["amount"]),
		Category:    stringValue(fields["category"]),
		Description: stringValue(fields["description"]),
		Date:        stringValue(fields["date"]),
	}, nil
}

// firstJSONObject returns the first balanced {...} substring, tracking
// string literals so braces inside values do not break the depth count.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func numberValue(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		cleaned := strings.TrimSpace(strings.TrimPrefix(val, "Rs"))
		cleaned = strings.Trim(cleaned, " $€₹")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return f
		}
	}
	return 0
}
