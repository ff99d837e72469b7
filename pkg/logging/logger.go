// Package logging holds the logger every component of the bridge writes
// through. The poll cycle, the callback pipeline and the CLI receive a Logger
// from the composition root and never reach for a global.
package logging

import "context"

// Logger writes leveled records with attached fields. Fields are passed as
// alternating names and values after the message; the request context goes
// first so handlers can pick up request-scoped values.
//
//	log.Warn(ctx, "no recipient for subject", "subject", id)
//
// Components tag themselves once with With("component", name) and keep the
// returned logger.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger
}
