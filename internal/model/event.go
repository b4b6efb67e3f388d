package model

import (
	"encoding/json"
	"fmt"
)

// Event type constants as they appear on the wire.
const (
	EventJobCompleted         = "job_completed"
	EventExportCompleted      = "export_completed"
	EventCalibrationCompleted = "calibration_completed"
	EventLogUpdate            = "log_update"
)

// Event is a discrete, typed notification delivered over the event stream.
// Data is kept raw so that unknown event types pass through untouched and
// subscribers decode only the types they understand.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// CompletionData is the payload for job_completed, export_completed and
// calibration_completed events.
type CompletionData struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// LogUpdateData is the payload for log_update events.
type LogUpdateData struct {
	Name  string   `json:"name"`
	Lines []string `json:"lines"`
}

// NewCompletionEvent builds a completion event of the given type for a named job.
func NewCompletionEvent(eventType, name string) Event {
	data, _ := json.Marshal(CompletionData{Name: name, Status: StatusCompleted})
	return Event{Type: eventType, Data: data}
}

// NewLogUpdateEvent builds a log_update event carrying new output lines.
func NewLogUpdateEvent(name string, lines []string) Event {
	data, _ := json.Marshal(LogUpdateData{Name: name, Lines: lines})
	return Event{Type: EventLogUpdate, Data: data}
}

// Completion decodes the event payload as completion data.
func (e Event) Completion() (CompletionData, error) {
	var d CompletionData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return d, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return d, nil
}

// LogUpdate decodes the event payload as log update data.
func (e Event) LogUpdate() (LogUpdateData, error) {
	var d LogUpdateData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return d, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return d, nil
}
