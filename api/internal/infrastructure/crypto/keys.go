package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/backsnote/backsnote/api/internal/core/domain"
)

const (
	keySize    = 32 // AES-256
	keyHexSize = keySize * 2
)

// KeyCache owns the shared secret and the AEAD built from it.
// The AEAD is assigned at most once, on the first successful import, and reused for the
// lifetime of the process. Failed imports are not cached.
type KeyCache struct {
	secretHex string
	logger    *slog.Logger

	mu      sync.Mutex
	aead    cipher.AEAD
	imports int
}

func NewKeyCache(secretHex string, logger *slog.Logger) *KeyCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyCache{secretHex: secretHex, logger: logger}
}

// HexKey returns the configured secret without validating its length.
func (k *KeyCache) HexKey() (string, error) {
	if k.secretHex == "" {
		return "", &domain.ConfigurationError{Problem: domain.KeyNotConfigured}
	}
	return k.secretHex, nil
}

// AEAD returns the cached AES-256-GCM handle, importing the key on first use.
// Concurrent first callers block on the same import and observe the same handle.
func (k *KeyCache) AEAD() (cipher.AEAD, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.aead != nil {
		return k.aead, nil
	}

	keyHex, err := k.HexKey()
	if err != nil {
		return nil, err
	}

	key, err := decodeKey(keyHex)
	if err != nil {
		return nil, err
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: block cipher failure: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: GCM failure: %w", err)
	}

	k.aead = aead
	k.imports++
	k.logger.Debug("Encryption key imported and cached")
	return aead, nil
}

// ValidateKey applies the same checks as the first import, without caching anything.
func ValidateKey(secretHex string) error {
	if secretHex == "" {
		return &domain.ConfigurationError{Problem: domain.KeyNotConfigured}
	}
	key, err := decodeKey(secretHex)
	if err != nil {
		return err
	}
	for i := range key {
		key[i] = 0
	}
	return nil
}

func decodeKey(secretHex string) ([]byte, error) {
	if len(secretHex) != keyHexSize {
		return nil, &domain.ConfigurationError{Problem: domain.KeyWrongLength, Length: len(secretHex)}
	}
	key, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, &domain.ConfigurationError{Problem: domain.KeyInvalidHex, Length: len(secretHex)}
	}
	return key, nil
}

// GenerateEncryptionKey returns a fresh random 256-bit key as 64 lowercase hex characters.
// It is meant for provisioning, not for the request path.
func GenerateEncryptionKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("crypto: key generation failure: %w", err)
	}
	return hex.EncodeToString(key), nil
}
