package crypto_test

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/backsnote/backsnote/api/internal/core/domain"
	"github.com/backsnote/backsnote/api/internal/infrastructure/crypto"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnvelope(t *testing.T, keyHex string) *crypto.Envelope {
	t.Helper()
	return crypto.NewEnvelope(crypto.NewKeyCache(keyHex, quietLogger()), quietLogger())
}

// generateTestKey creates a random 256-bit AES key in hex
func generateTestKey(t *testing.T) string {
	t.Helper()
	key, err := crypto.GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("Failed to generate test key: %v", err)
	}
	return key
}

// ==============================================================================
// 1. Round Trip
// ==============================================================================

func TestEnvelope_RoundTrip(t *testing.T) {
	env := newEnvelope(t, testKey)
	ctx := context.Background()

	cases := map[string]string{
		"empty":     "",
		"ascii":     "Hello, World!",
		"accented":  "Hello, World! 123 áéíóú",
		"emoji":     "notes 📝 with ✨ sparkles",
		"multiline": "line one\nline two\n\ttabbed",
		"colons":    "a:b:c",
		"large":     strings.Repeat("A", 100000),
	}

	for name, plaintext := range cases {
		t.Run(name, func(t *testing.T) {
			sealed, err := env.Encrypt(ctx, plaintext)
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if got := env.Decrypt(ctx, sealed); got != plaintext {
				t.Errorf("Round-trip failed: got %d chars, want %d", len(got), len(plaintext))
			}
		})
	}
}

func TestEnvelope_EmptyInputs(t *testing.T) {
	// No key configured: empty content must not touch the key.
	env := newEnvelope(t, "")
	ctx := context.Background()

	sealed, err := env.Encrypt(ctx, "")
	if err != nil {
		t.Fatalf("Encrypt(\"\") returned error: %v", err)
	}
	if sealed != "" {
		t.Errorf("Encrypt(\"\") = %q, want empty", sealed)
	}

	res := env.Open(ctx, "")
	if res.Status != domain.DecryptEmpty || res.Content != "" {
		t.Errorf("Open(\"\") = %+v, want empty result", res)
	}
}

// ==============================================================================
// 2. Envelope Format
// ==============================================================================

func TestEnvelope_Format(t *testing.T) {
	env := newEnvelope(t, testKey)
	plaintext := "Hello, World!"

	sealed, err := env.Encrypt(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	parts := strings.Split(sealed, ":")
	if len(parts) != 2 {
		t.Fatalf("Expected exactly one separator, got %d parts in %q", len(parts), sealed)
	}

	iv, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("IV segment is not standard base64: %v", err)
	}
	if len(iv) != 12 {
		t.Errorf("IV length = %d, want 12", len(iv))
	}

	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("Ciphertext segment is not standard base64: %v", err)
	}
	if len(ct) != len(plaintext)+16 {
		t.Errorf("Ciphertext length = %d, want plaintext + 16-byte tag (%d)", len(ct), len(plaintext)+16)
	}
}

// ==============================================================================
// 3. IV Uniqueness
// ==============================================================================

func TestEnvelope_IV_Uniqueness(t *testing.T) {
	env := newEnvelope(t, generateTestKey(t))
	ctx := context.Background()

	seen := make(map[string]bool)
	ivs := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sealed, err := env.Encrypt(ctx, "identical-plaintext")
		if err != nil {
			t.Fatalf("Encrypt #%d failed: %v", i, err)
		}
		if seen[sealed] {
			t.Fatalf("Identical envelope produced at iteration %d", i)
		}
		seen[sealed] = true

		iv, _, _ := strings.Cut(sealed, ":")
		if ivs[iv] {
			t.Fatalf("IV reuse detected at iteration %d", i)
		}
		ivs[iv] = true

		if got := env.Decrypt(ctx, sealed); got != "identical-plaintext" {
			t.Fatalf("Decrypt #%d = %q", i, got)
		}
	}
}

// ==============================================================================
// 4. Fail-Open Decryption
// ==============================================================================

func TestEnvelope_Decrypt_Passthrough(t *testing.T) {
	env := newEnvelope(t, testKey)
	ctx := context.Background()

	sealed, err := env.Encrypt(ctx, "sensitive-data")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	ivPart, ctPart, _ := strings.Cut(sealed, ":")

	// Flip one character inside the ciphertext segment.
	tampered := []byte(ctPart)
	if tampered[0] == 'A' {
		tampered[0] = 'B'
	} else {
		tampered[0] = 'A'
	}

	cases := map[string]string{
		"legacy plain text":   "This is unencrypted legacy data",
		"invalid envelope":    "not:valid",
		"leading separator":   ":abc",
		"trailing separator":  "abc:",
		"only separator":      ":",
		"tampered ciphertext": ivPart + ":" + string(tampered),
		"swapped segments":    ctPart + ":" + ivPart,
		"extra separator":     sealed + ":extra",
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			res := env.Open(ctx, input)
			if res.Status != domain.PassthroughLegacy {
				t.Errorf("Status = %v, want passthrough", res.Status)
			}
			if res.Content != input {
				t.Errorf("Content = %q, want input unchanged", res.Content)
			}
			if got := env.Decrypt(ctx, input); got != input {
				t.Errorf("Decrypt = %q, want input unchanged", got)
			}
		})
	}
}

func TestEnvelope_Decrypt_WrongKey(t *testing.T) {
	ctx := context.Background()
	sealed, err := newEnvelope(t, generateTestKey(t)).Encrypt(ctx, "for another key")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	res := newEnvelope(t, generateTestKey(t)).Open(ctx, sealed)
	if res.Status != domain.PassthroughLegacy || res.Content != sealed {
		t.Fatalf("Decrypt with wrong key = %+v, want passthrough of input", res)
	}
}

func TestEnvelope_Decrypt_MissingKeyFallsBack(t *testing.T) {
	ctx := context.Background()
	sealed, err := newEnvelope(t, testKey).Encrypt(ctx, "written before the key went missing")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	res := newEnvelope(t, "").Open(ctx, sealed)
	if res.Status != domain.PassthroughLegacy || res.Content != sealed {
		t.Fatalf("Open without key = %+v, want passthrough of input", res)
	}
	if res.Reason == "" {
		t.Error("Expected a passthrough reason")
	}
}

func TestEnvelope_Open_Decrypted(t *testing.T) {
	env := newEnvelope(t, testKey)
	ctx := context.Background()

	sealed, _ := env.Encrypt(ctx, "hello")
	res := env.Open(ctx, sealed)
	if res.Status != domain.Decrypted || res.Content != "hello" || res.Reason != "" {
		t.Fatalf("Open = %+v, want decrypted hello", res)
	}
}

// ==============================================================================
// 5. Key Validation
// ==============================================================================

func TestEnvelope_Encrypt_ConfigurationErrors(t *testing.T) {
	cases := []struct {
		name    string
		key     string
		problem domain.KeyProblem
	}{
		{"missing", "", domain.KeyNotConfigured},
		{"short", "shortkey", domain.KeyWrongLength},
		{"128-bit", strings.Repeat("ab", 16), domain.KeyWrongLength},
		{"non-hex", strings.Repeat("zz", 32), domain.KeyInvalidHex},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newEnvelope(t, tc.key).Encrypt(context.Background(), "test")
			if err == nil {
				t.Fatal("Encrypt succeeded with an invalid key")
			}
			var cfgErr *domain.ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected *domain.ConfigurationError, got %T: %v", err, err)
			}
			if cfgErr.Problem != tc.problem {
				t.Errorf("Problem = %v, want %v", cfgErr.Problem, tc.problem)
			}
			if err := crypto.ValidateKey(tc.key); err == nil {
				t.Error("ValidateKey accepted an invalid key")
			}
		})
	}
}

func TestConfigurationError_Messages(t *testing.T) {
	missing := (&domain.ConfigurationError{Problem: domain.KeyNotConfigured}).Error()
	short := (&domain.ConfigurationError{Problem: domain.KeyWrongLength, Length: 8}).Error()
	if missing == short {
		t.Fatal("Missing and wrong-length keys must produce distinct messages")
	}
	if !strings.Contains(short, "64") {
		t.Errorf("Wrong-length message should name the required length: %q", short)
	}
}

func TestValidateKey_AcceptsUpperCase(t *testing.T) {
	if err := crypto.ValidateKey(strings.ToUpper(testKey)); err != nil {
		t.Fatalf("ValidateKey rejected upper-case hex: %v", err)
	}
}

func TestKeyCache_HexKey(t *testing.T) {
	if _, err := crypto.NewKeyCache("", quietLogger()).HexKey(); !domain.IsConfigurationError(err) {
		t.Fatalf("HexKey on empty secret = %v, want configuration error", err)
	}
	got, err := crypto.NewKeyCache(testKey, quietLogger()).HexKey()
	if err != nil || got != testKey {
		t.Fatalf("HexKey = %q, %v", got, err)
	}
}

// ==============================================================================
// 6. Key Cache Concurrency
// ==============================================================================

func TestKeyCache_SingleImport(t *testing.T) {
	keys := crypto.NewKeyCache(testKey, quietLogger())
	env := crypto.NewEnvelope(keys, quietLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sealed, err := env.Encrypt(ctx, "concurrent")
			if err != nil {
				errs <- err
				return
			}
			if env.Decrypt(ctx, sealed) != "concurrent" {
				errs <- errors.New("round-trip mismatch")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent call failed: %v", err)
	}
	if n := keys.ImportCount(); n != 1 {
		t.Fatalf("Key imported %d times, want 1", n)
	}
}

func TestKeyCache_FailedImportNotCached(t *testing.T) {
	keys := crypto.NewKeyCache("shortkey", quietLogger())
	for i := 0; i < 3; i++ {
		if _, err := keys.AEAD(); err == nil {
			t.Fatal("AEAD succeeded with a short key")
		}
	}
	if n := keys.ImportCount(); n != 0 {
		t.Fatalf("ImportCount = %d after failures, want 0", n)
	}
}

// ==============================================================================
// 7. Key Generation
// ==============================================================================

var lowerHex = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestGenerateEncryptionKey(t *testing.T) {
	first := generateTestKey(t)
	second := generateTestKey(t)

	if !lowerHex.MatchString(first) {
		t.Errorf("Key %q is not 64 lowercase hex characters", first)
	}
	if first == second {
		t.Error("Two generated keys are identical")
	}
	if err := crypto.ValidateKey(first); err != nil {
		t.Errorf("Generated key failed validation: %v", err)
	}
}

// ==============================================================================
// 8. Format Detection
// ==============================================================================

func TestIsEncrypted(t *testing.T) {
	env := newEnvelope(t, testKey)
	sealed, err := env.Encrypt(context.Background(), "x")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty", "", false},
		{"plain text", "Hello, World!", false},
		{"envelope", sealed, true},
		{"invalid with colon", "not:valid", false},
		{"two separators", sealed + ":x", false},
		{"empty ciphertext", strings.SplitN(sealed, ":", 2)[0] + ":", false},
		{"bad base64 iv", "!!!!!!!!!!!!!!!!:abcd", false},
		{"16-byte iv", base64.StdEncoding.EncodeToString(make([]byte, 16)) + ":abcd", false},
		{"12-byte iv, unverified", base64.StdEncoding.EncodeToString(make([]byte, 12)) + ":abcd", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := env.IsEncrypted(tc.content); got != tc.want {
				t.Errorf("IsEncrypted(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}
