package models

// EventLevel grades a pipeline event
type EventLevel string

const (
	EventLevelDebug EventLevel = "debug"
	EventLevelInfo  EventLevel = "info"
	EventLevelWarn  EventLevel = "warn"
	EventLevelError EventLevel = "error"
)

// Event is a structured notification emitted by the core
type Event struct {
	Level     EventLevel     `json:"level"`
	Component string         `json:"component"`
	Stage     string         `json:"stage"`
	Customer  string         `json:"customer,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}
