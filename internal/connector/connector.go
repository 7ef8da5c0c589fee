package connector

import "context"

// MessageRef is an opaque reference to a message previously delivered to a
// chat platform. ChatID and MessageID are platform-specific strings.
type MessageRef struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// Button is an inline action attached to an outbound message. Data is the
// callback payload the platform echoes back when the button is pressed.
type Button struct {
	Label string
	Data  string
}

// OutboundMessage is a message sent to a chat platform. Content is standard
// Markdown; each notifier converts it to its platform's markup.
type OutboundMessage struct {
	ChatID  string
	Content string
	Buttons []Button // one button per row
}

// Notifier is the outbound half of a chat platform. All three operations may
// fail independently; callers treat delivery as best-effort.
type Notifier interface {
	// Send delivers a message and returns a reference for later Edit/Delete.
	Send(ctx context.Context, msg OutboundMessage) (MessageRef, error)
	// Edit replaces the content of a previously sent message.
	Edit(ctx context.Context, ref MessageRef, content string) error
	// Delete retracts a previously sent message.
	Delete(ctx context.Context, ref MessageRef) error
}
