package domain

import (
	"context"
	"errors"
	"fmt"
)

// ContentCipher defines the contract for the note content envelope.
// Envelopes have the form base64(iv) ":" base64(ciphertext||tag).
type ContentCipher interface {
	// Encrypt seals plaintext into an envelope. The empty string is returned unchanged.
	Encrypt(ctx context.Context, plaintext string) (string, error)

	// Decrypt recovers plaintext from an envelope. It never fails: anything that cannot be
	// opened is returned as-is and treated as legacy unencrypted content.
	Decrypt(ctx context.Context, envelope string) string

	// Open is Decrypt with the outcome made explicit.
	Open(ctx context.Context, envelope string) DecryptResult

	// IsEncrypted reports whether content looks like an envelope. It does not verify the tag.
	IsEncrypted(content string) bool
}

// DecryptStatus describes how Open produced its content.
type DecryptStatus int

const (
	// DecryptEmpty means the input was empty and nothing was attempted.
	DecryptEmpty DecryptStatus = iota
	// Decrypted means the tag verified and Content is the recovered plaintext.
	Decrypted
	// PassthroughLegacy means the input was returned unchanged.
	PassthroughLegacy
)

func (s DecryptStatus) String() string {
	switch s {
	case DecryptEmpty:
		return "empty"
	case Decrypted:
		return "decrypted"
	case PassthroughLegacy:
		return "passthrough"
	default:
		return "unknown"
	}
}

// DecryptResult is the outcome of opening an envelope.
type DecryptResult struct {
	Status  DecryptStatus
	Content string
	// Reason is set for passthrough results. It is diagnostic only.
	Reason string
}

// ErrEncryptionFailed is the only error callers see for a failed encryption of non-empty
// content, apart from configuration problems. The cause is logged, never wrapped.
var ErrEncryptionFailed = errors.New("Encryption failed")

// KeyProblem classifies a ConfigurationError.
type KeyProblem int

const (
	KeyNotConfigured KeyProblem = iota + 1
	KeyWrongLength
	KeyInvalidHex
)

// ConfigurationError reports a missing or malformed shared secret. It is fatal and never
// retried.
type ConfigurationError struct {
	Problem KeyProblem
	Length  int
}

func (e *ConfigurationError) Error() string {
	switch e.Problem {
	case KeyNotConfigured:
		return "ENCRYPTION_KEY is not configured"
	case KeyWrongLength:
		return fmt.Sprintf("encryption key must be 64 hex characters (256 bits), got %d", e.Length)
	case KeyInvalidHex:
		return "encryption key is not valid hexadecimal"
	default:
		return "invalid encryption key configuration"
	}
}

// IsConfigurationError reports whether err is, or wraps, a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}
