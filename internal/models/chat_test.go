package models

import (
	"encoding/json"
	"testing"
)

func TestChatRequest_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"string message", `{"message": "Hello"}`, "Hello", false},
		{"turn object", `{"message": {"role": "user", "content": "Hello"}}`, "Hello", false},
		{"missing field", `{}`, "", false},
		{"null message", `{"message": null}`, "", false},
		{"number", `{"message": 42}`, "", true},
		{"array", `{"message": ["Hello"]}`, "", true},
		{"not json", `message=Hello`, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var req ChatRequest
			err := json.Unmarshal([]byte(tc.body), &req)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got message %q", req.Message)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Message != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, req.Message)
			}
		})
	}
}

func TestChatExchange_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(ChatExchange{OwnerID: "u1", Message: "Hello", Reply: "Hi there"})
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var fields map[string]interface{}
	json.Unmarshal(data, &fields)
	for _, key := range []string{"id", "userId", "message", "reply", "createdAt"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("expected field %q in %s", key, data)
		}
	}
}
