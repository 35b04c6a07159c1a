package notify

import (
	"context"
	"time"
)

// Level is the severity of a notice
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a transient, non-blocking message for the user and operators
type Notice struct {
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	SubjectID string    `json:"subject_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Time      time.Time `json:"time"`
	Err       error     `json:"-"`
}

// Notifier is the sink sync failures are reported to. Notify must not
// block the caller for long and must not panic.
type Notifier interface {
	Notify(ctx context.Context, notice Notice)
}

// NotifierFunc adapts a function to the Notifier interface
type NotifierFunc func(ctx context.Context, notice Notice)

// Notify calls f(ctx, notice)
func (f NotifierFunc) Notify(ctx context.Context, notice Notice) {
	f(ctx, notice)
}

// Multi fans one notice out to several sinks
type Multi []Notifier

// Notify delivers the notice to every non-nil sink in order
func (m Multi) Notify(ctx context.Context, notice Notice) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, notice)
		}
	}
}

// Discard drops every notice
var Discard Notifier = NotifierFunc(func(context.Context, Notice) {})
