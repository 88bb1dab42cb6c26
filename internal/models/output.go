package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// OutputKind tags the shape a reasoning step returned.
type OutputKind string

const (
	OutputText        OutputKind = "text"
	OutputStructured  OutputKind = "structured"
	OutputParseFailed OutputKind = "parse_failed"
)

// ReasoningOutput is resolved once at the executor boundary so synthesis never
// inspects raw shapes.
type ReasoningOutput struct {
	Kind OutputKind  `json:"kind"`
	Text string      `json:"text,omitempty"`
	Data interface{} `json:"data,omitempty"`
	Raw  string      `json:"raw,omitempty"`
}

var (
	jsonBlockPattern     = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?([\\[{].*[\\]}])\\s*```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseReasoningOutput normalizes whatever an executor returned. Strings that
// look like JSON are decoded; a decode failure degrades to ParseFailed.
func ParseReasoningOutput(raw interface{}) ReasoningOutput {
	switch v := raw.(type) {
	case nil:
		return ReasoningOutput{Kind: OutputText}
	case string:
		return parseString(v)
	case []byte:
		return parseString(string(v))
	case json.RawMessage:
		return parseString(string(v))
	default:
		// Round-trip through JSON so structs and maps end up in one generic shape.
		data, err := json.Marshal(v)
		if err != nil {
			return ReasoningOutput{Kind: OutputParseFailed, Raw: fmt.Sprintf("%v", v)}
		}
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return ReasoningOutput{Kind: OutputParseFailed, Raw: string(data)}
		}
		return ReasoningOutput{Kind: OutputStructured, Data: generic}
	}
}

func parseString(s string) ReasoningOutput {
	trimmed := strings.TrimSpace(s)
	candidate := ""
	if m := jsonBlockPattern.FindStringSubmatch(trimmed); len(m) > 1 {
		candidate = m[1]
	} else if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		candidate = trimmed
	}
	if candidate == "" {
		return ReasoningOutput{Kind: OutputText, Text: s}
	}

	candidate = trailingCommaPattern.ReplaceAllString(candidate, "$1")
	var data interface{}
	if err := json.Unmarshal([]byte(candidate), &data); err != nil {
		return ReasoningOutput{Kind: OutputParseFailed, Raw: s}
	}
	return ReasoningOutput{Kind: OutputStructured, Data: data}
}

// Payload returns the most useful raw value for scanning and raw-data output.
func (o ReasoningOutput) Payload() interface{} {
	switch o.Kind {
	case OutputStructured:
		return o.Data
	case OutputParseFailed:
		return o.Raw
	default:
		return o.Text
	}
}

// ExtractText pulls human-readable text out of the output: plain text, a
// {text} or {content} object, or the last of a list of exchanged messages.
// Anything else is stringified.
func (o ReasoningOutput) ExtractText() string {
	switch o.Kind {
	case OutputText, "":
		return o.Text
	case OutputParseFailed:
		return o.Raw
	}
	if o.Data == nil {
		return ""
	}

	if text, ok := textFrom(o.Data); ok {
		return text
	}
	data, err := json.Marshal(o.Data)
	if err != nil {
		return fmt.Sprintf("%v", o.Data)
	}
	return string(data)
}

func textFrom(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]interface{}:
		for _, key := range []string{"text", "content"} {
			if s, ok := t[key].(string); ok {
				return s, true
			}
		}
		if msgs, ok := t["messages"].([]interface{}); ok {
			return lastMessage(msgs)
		}
	case []interface{}:
		return lastMessage(t)
	}
	return "", false
}

func lastMessage(msgs []interface{}) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if s, ok := textFrom(msgs[i]); ok {
			return s, true
		}
	}
	return "", false
}
