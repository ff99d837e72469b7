package usecase

import (
	"context"

	"attendance-bridge/internal/callback/domain"
	"attendance-bridge/pkg/wecom"
)

// CallbackUsecase defines the interface for the inbound webhook
type CallbackUsecase interface {
	// VerifyURL answers the platform's URL-verification handshake. The
	// envelope's Ciphertext is the echostr parameter.
	VerifyURL(ctx context.Context, env wecom.Envelope) (*domain.EchoResponse, error)

	// HandleMessage verifies, decrypts and deduplicates one callback body and
	// hands text messages to the command workers. env carries the query
	// parameters; its Ciphertext is taken from body.
	HandleMessage(ctx context.Context, env wecom.Envelope, body []byte) (domain.Outcome, error)
}

// JobQueue accepts command jobs without blocking.
type JobQueue interface {
	QueueJob(job domain.CommandJob) bool
}

// Settings are the tenant credentials the webhook checks against.
type Settings struct {
	Token    string
	CorpID   string
	Key      []byte
	EchoMode string
}
