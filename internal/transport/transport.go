// Package transport defines the chat transport contract the core
// consumes, plus a concrete long-polling HTTP adapter so the module runs
// end to end. The wire-level bot API itself is an external collaborator;
// this package only formalizes its shape.
package transport

import "context"

// Keyboard is an optional set of reply buttons attached to an outbound
// message.
type Keyboard struct {
	Buttons [][]string
}

// RawLocation is the location payload as the chat transport delivers it.
type RawLocation struct {
	Latitude            float64
	Longitude           float64
	HorizontalAccuracy  *float64
	Heading             *float64
	Speed               *float64
}

// InboundEvent is one message or edited_message carrying a location share,
// an update, or a plain command.
type InboundEvent struct {
	ChatID         int64
	MessageID      int64
	IsEdit         bool
	Location       *RawLocation
	LivePeriodSecs *int
	Command        string
}

// ChatTransport is the contract the core depends on for sending and
// receiving chat messages. Implementations own their own connection
// lifecycle; Events must keep delivering until ctx passed to Run is
// canceled.
type ChatTransport interface {
	// Send delivers text to chatID, with an optional keyboard.
	Send(ctx context.Context, chatID int64, text string, keyboard *Keyboard) error

	// Run starts the transport's receive loop; it blocks until ctx is
	// canceled or an unrecoverable error occurs.
	Run(ctx context.Context) error

	// Events returns the channel inbound events are delivered on. Valid
	// only after Run has been called.
	Events() <-chan InboundEvent
}
