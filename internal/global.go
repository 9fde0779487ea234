package internal

import (
	"time"
)

// Record is the structured projection of one event log entry.
type Record struct {
	Timestamp time.Time
	Provider  string
	Computer  string
	ProcessID uint32
	EventID   uint16
	Message   string
	Channel   string
}

// Plugin interface that all plugins must implement
type Plugin interface {
	Name() string
	Init(config map[string]any) error
	Exit() error
}
