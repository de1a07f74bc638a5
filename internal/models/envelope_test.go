package models

import "testing"

func TestOKResult(t *testing.T) {
	res := OKResult(map[string]interface{}{"id": "123"})

	if !res.Success {
		t.Error("expected Success to be true")
	}
	if res.Error != "" {
		t.Errorf("expected empty Error, got %q", res.Error)
	}
	if res.Data == nil {
		t.Error("expected Data to be set")
	}
}

func TestFailResult(t *testing.T) {
	res := FailResult("channel not found")

	if res.Success {
		t.Error("expected Success to be false")
	}
	if res.Data != nil {
		t.Errorf("expected nil Data, got %v", res.Data)
	}
	if res.Error != "channel not found" {
		t.Errorf("expected error message to be preserved, got %q", res.Error)
	}
}

func TestFailResult_EmptyMessage(t *testing.T) {
	res := FailResult("")

	if res.Error == "" {
		t.Error("expected a fallback error message for empty input")
	}
}

func TestConnection_Credential(t *testing.T) {
	tests := []struct {
		name   string
		conn   *Connection
		key    string
		want   string
		wantOK bool
	}{
		{
			name:   "present string",
			conn:   &Connection{Credentials: JSONB{"botToken": "xoxb-123"}},
			key:    "botToken",
			want:   "xoxb-123",
			wantOK: true,
		},
		{
			name:   "missing key",
			conn:   &Connection{Credentials: JSONB{"botToken": "xoxb-123"}},
			key:    "apiKey",
			wantOK: false,
		},
		{
			name:   "non-string value",
			conn:   &Connection{Credentials: JSONB{"botToken": 42}},
			key:    "botToken",
			wantOK: false,
		},
		{
			name:   "empty string value",
			conn:   &Connection{Credentials: JSONB{"botToken": ""}},
			key:    "botToken",
			wantOK: false,
		},
		{
			name:   "nil credentials",
			conn:   &Connection{},
			key:    "botToken",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.conn.Credential(tt.key)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
