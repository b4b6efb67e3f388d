package model

import (
	"encoding/json"
	"testing"
)

func TestValidTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusStopped, true},
		{StatusCompleted, StatusRunning, false},
		{StatusFailed, StatusCompleted, false},
		{StatusStopped, StatusRunning, false},
		{"unknown", StatusCompleted, false},
	}

	for _, tt := range tests {
		if got := ValidTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	a, b := NewID(), NewID()
	if a == b {
		t.Error("NewID returned duplicate ids")
	}
	if len(a) != 26 {
		t.Errorf("ULID length = %d, want 26", len(a))
	}
}

func TestEventRoundTrip(t *testing.T) {
	ev := NewLogUpdateEvent("ppe_v1", []string{"epoch 1", "epoch 2"})

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	if decoded.Type != EventLogUpdate {
		t.Errorf("Type = %q, want log_update", decoded.Type)
	}

	data, err := decoded.LogUpdate()
	if err != nil {
		t.Fatalf("LogUpdate: %v", err)
	}
	if data.Name != "ppe_v1" || len(data.Lines) != 2 {
		t.Errorf("data = %+v", data)
	}
}

func TestCompletionDecodeError(t *testing.T) {
	ev := Event{Type: EventJobCompleted, Data: json.RawMessage(`[1,2,3]`)}
	if _, err := ev.Completion(); err == nil {
		t.Error("expected decode error for non-object payload")
	}
}
