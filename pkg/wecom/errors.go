package wecom

import (
	"errors"
	"fmt"
)

var (
	ErrMissingParameter  = errors.New("missing signature parameter")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrInvalidKey        = errors.New("invalid encoding AES key")
	ErrTenantMismatch    = errors.New("tenant id mismatch")
)

// Decryption failure reasons.
const (
	ReasonBase64         = "base64"
	ReasonBlockSize      = "block size"
	ReasonPadding        = "padding"
	ReasonLength         = "length"
	ReasonTenantMismatch = "tenant mismatch"
)

// DecryptionError reports why an encrypted payload was rejected. A tenant
// mismatch also satisfies errors.Is(err, ErrTenantMismatch).
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decrypt: %s: %v", e.Reason, e.Err)
	}
	return "decrypt: " + e.Reason
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// APIError is a non-zero errcode returned by the chat platform API.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("wecom api error %d: %s", e.Code, e.Message)
}

// tokenExpired reports whether the errcode means the access token must be
// reacquired.
func (e *APIError) tokenExpired() bool {
	switch e.Code {
	case 40001, 40014, 42001:
		return true
	}
	return false
}
