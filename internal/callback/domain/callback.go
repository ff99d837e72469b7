package domain

import (
	"errors"
	"time"
)

// Outcome is what happened to an accepted callback request.
type Outcome string

const (
	// OutcomeQueued means the message was handed to the command workers.
	OutcomeQueued Outcome = "queued"
	// OutcomeDuplicate means the message id was seen within the
	// idempotency window and was dropped.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the message type carries no command.
	OutcomeIgnored Outcome = "ignored"
)

// EchoResponse is the body returned for a URL-verification request.
type EchoResponse struct {
	Body string
	XML  bool
}

// CommandJob is one text message waiting for a reply.
type CommandJob struct {
	MessageID  string
	FromUser   string
	Content    string
	ReceivedAt time.Time
}

var (
	// ErrQueueFull means the command workers cannot take more work. The
	// platform should redeliver.
	ErrQueueFull = errors.New("command queue is full")
	// ErrMalformedMessage means a decrypted body is not a callback message.
	ErrMalformedMessage = errors.New("malformed callback message")
)
