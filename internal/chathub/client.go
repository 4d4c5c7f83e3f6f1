package chathub

import "context"

// Frame types written to stream clients.
const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Envelope is one outbound frame.
type Envelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Code  string      `json:"code,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Inbound is a frame sent by the client. Only streams that accept writes
// (room chat, echo boards) read it.
type Inbound struct {
	Content string `json:"content"`
}

// InboundHandler processes a client frame. A returned error is written back
// to the same client as an error frame; the stream stays open.
type InboundHandler func(ctx context.Context, in Inbound) error

// ErrorFrame converts a handler error into the frame sent to the client.
type ErrorFrame func(err error) Envelope

func defaultErrorFrame(err error) Envelope {
	return Envelope{Type: FrameError, Code: "error", Error: err.Error()}
}
