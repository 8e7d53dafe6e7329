package chatproxy

import (
	"bytes"
	"encoding/json"
)

// RoleUser is the only role this client ever sends.
const RoleUser = "user"

// ChatMessage is one turn of a chat-completion payload.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body posted to the backend.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
}

func newChatRequest(message, model string) ChatRequest {
	return ChatRequest{
		Model:    model,
		Messages: []ChatMessage{{Role: RoleUser, Content: message}},
	}
}

// chatResponse holds the backend answer without trusting its shape. Fields
// are looked up by exact key as the payload is walked.
type chatResponse struct {
	raw json.RawMessage
}

func (r *chatResponse) UnmarshalJSON(data []byte) error {
	r.raw = append(r.raw[:0], data...)
	return nil
}

// reply picks choices[0].message.content, then message, then "".
// Empty candidates (null, "", false, 0) fall through to the next one.
func (r chatResponse) reply() string {
	choice := firstElement(objectField(r.raw, "choices"))
	content := objectField(objectField(choice, "message"), "content")
	if s, ok := text(content); ok {
		return s
	}
	if s, ok := text(objectField(r.raw, "message")); ok {
		return s
	}
	return ""
}

// objectField returns raw[name] when raw is a JSON object, nil otherwise.
func objectField(raw json.RawMessage, name string) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj[name]
}

// firstElement returns raw[0] when raw is a non-empty JSON array.
func firstElement(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) == 0 {
		return nil
	}
	return arr[0]
}

// text renders a reply candidate. Strings are decoded; any other non-empty
// value is returned as compact JSON text.
func text(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil || s == "" {
			return "", false
		}
		return s, true
	case 'n', 'f':
		// null, false
		return "", false
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil || f == 0 {
			return "", false
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", false
	}
	return buf.String(), true
}
