package crypto

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

const (
	ivSize    = 12
	tagSize   = 16
	separator = ":"
)

// Envelope implements domain.ContentCipher with AES-256-GCM.
type Envelope struct {
	keys   *KeyCache
	logger *slog.Logger
}

var _ domain.ContentCipher = (*Envelope)(nil)

func NewEnvelope(keys *KeyCache, logger *slog.Logger) *Envelope {
	if logger == nil {
		logger = slog.Default()
	}
	return &Envelope{keys: keys, logger: logger}
}

// Encrypt seals plaintext under a fresh random IV.
func (e *Envelope) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := e.keys.AEAD()
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to encrypt content", slog.String("error", err.Error()))
		if domain.IsConfigurationError(err) {
			return "", err
		}
		return "", domain.ErrEncryptionFailed
	}

	iv := make([]byte, ivSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		e.logger.ErrorContext(ctx, "Failed to encrypt content",
			slog.String("error", fmt.Sprintf("iv generation failure: %v", err)))
		return "", domain.ErrEncryptionFailed
	}

	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	result := base64.StdEncoding.EncodeToString(iv) + separator + base64.StdEncoding.EncodeToString(sealed)

	e.logger.DebugContext(ctx, "Content encrypted successfully",
		slog.Int("plaintext_length", len(plaintext)),
		slog.Int("encrypted_length", len(result)),
	)
	return result, nil
}

// Decrypt returns the plaintext of an envelope, or the input unchanged.
func (e *Envelope) Decrypt(ctx context.Context, envelope string) string {
	return e.Open(ctx, envelope).Content
}

// Open decrypts an envelope and reports what happened. It never fails: a missing separator,
// bad base64, a wrong key, a tag mismatch or a key import problem all yield a passthrough
// result carrying the original input.
func (e *Envelope) Open(ctx context.Context, envelope string) domain.DecryptResult {
	if envelope == "" {
		return domain.DecryptResult{Status: domain.DecryptEmpty}
	}

	ivPart, sealedPart, ok := splitEnvelope(envelope)
	if !ok {
		e.logger.WarnContext(ctx, "Invalid envelope format, returning content as-is (possibly unencrypted legacy data)")
		return passthrough(envelope, "format mismatch")
	}

	plaintext, err := e.open(ivPart, sealedPart)
	if err != nil {
		e.logger.ErrorContext(ctx, "Failed to decrypt content", slog.String("error", err.Error()))
		e.logger.WarnContext(ctx, "Returning content as-is (possibly unencrypted legacy data)")
		return passthrough(envelope, err.Error())
	}

	e.logger.DebugContext(ctx, "Content decrypted successfully",
		slog.Int("ciphertext_length", len(envelope)),
		slog.Int("plaintext_length", len(plaintext)),
	)
	return domain.DecryptResult{Status: domain.Decrypted, Content: plaintext}
}

func (e *Envelope) open(ivPart, sealedPart string) (string, error) {
	aead, err := e.keys.AEAD()
	if err != nil {
		return "", err
	}

	iv, err := base64.StdEncoding.DecodeString(ivPart)
	if err != nil {
		return "", fmt.Errorf("crypto: iv base64 decode failure: %w", err)
	}
	if len(iv) != aead.NonceSize() {
		return "", fmt.Errorf("crypto: iv must be %d bytes, got %d", aead.NonceSize(), len(iv))
	}

	sealed, err := base64.StdEncoding.DecodeString(sealedPart)
	if err != nil {
		return "", fmt.Errorf("crypto: ciphertext base64 decode failure: %w", err)
	}
	if len(sealed) < tagSize {
		return "", errors.New("crypto: ciphertext too short")
	}

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", errors.New("crypto: integrity violation - authentication tag mismatch")
	}
	return string(plaintext), nil
}

// IsEncrypted reports whether content has the envelope shape: two non-empty parts around a
// single separator, the first decoding to exactly one IV. No decryption is attempted.
func (e *Envelope) IsEncrypted(content string) bool {
	return IsEncrypted(content)
}

// IsEncrypted is the package-level form of Envelope.IsEncrypted.
func IsEncrypted(content string) bool {
	if content == "" {
		return false
	}
	if strings.Count(content, separator) != 1 {
		return false
	}
	ivPart, sealedPart, _ := strings.Cut(content, separator)
	if ivPart == "" || sealedPart == "" {
		return false
	}
	iv, err := base64.StdEncoding.DecodeString(ivPart)
	if err != nil {
		return false
	}
	return len(iv) == ivSize
}

// splitEnvelope splits on the first separator and requires both halves to be non-empty.
func splitEnvelope(s string) (string, string, bool) {
	ivPart, sealedPart, found := strings.Cut(s, separator)
	if !found || ivPart == "" || sealedPart == "" {
		return "", "", false
	}
	return ivPart, sealedPart, true
}

func passthrough(original, reason string) domain.DecryptResult {
	return domain.DecryptResult{Status: domain.PassthroughLegacy, Content: original, Reason: reason}
}
