// Package notification delivers trading alerts to external channels
// (Telegram, webhooks). Only confirmed events go out: entries, exits, and
// operational warnings, never per-symbol evaluations.
package notification

import (
	"context"
	"log"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier logs alerts instead of delivering them (development default).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// TextAdapter exposes a Notifier as a plain-text sender for the trade layer.
type TextAdapter struct {
	Notifier Notifier
	Title    string
}

func (a TextAdapter) Send(ctx context.Context, text string) error {
	return a.Notifier.Send(ctx, Alert{Level: AlertInfo, Title: a.Title, Message: text})
}

// Fanout delivers every alert to all backends, returning the first error.
type Fanout []Notifier

func (f Fanout) Send(ctx context.Context, alert Alert) error {
	var first error
	for _, n := range f {
		if err := n.Send(ctx, alert); err != nil && first == nil {
			first = err
		}
	}
	return first
}
