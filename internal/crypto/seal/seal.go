// Package seal provides authenticated encryption for bridge credential
// material. Encrypted tokens are stored at rest in the AppView database;
// plaintext tokens must never be persisted or logged.
package seal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	// minSecretLength is the minimum accepted length for the configured
	// seal secret. Shorter secrets are a configuration error.
	minSecretLength = 16

	// keySize is the AES-256 key size in bytes.
	keySize = 32
)

// scrypt cost parameters. Derivation happens once per process at
// construction, so a deliberately slow setting is affordable.
const (
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// saltPrefix provides domain separation for the derived salt so the same
// secret used elsewhere never yields the same key.
var saltPrefix = []byte("skybridge.seal.v1")

// ConfigError reports an unusable seal secret. It only occurs at
// construction time; callers should treat it as fatal rather than
// degrading per-call.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("seal misconfigured: %s", e.Reason)
}

// Cipher encrypts and decrypts credential tokens using AES-256-GCM.
// The key is derived once from the configured secret via scrypt with a
// fixed secret-derived salt, so the same secret always yields the same
// key across restarts.
type Cipher struct {
	key []byte
}

// NewCipher derives the encryption key from the configured secret.
// A missing or short secret yields a ConfigError.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, &ConfigError{Reason: "seal secret not configured"}
	}
	if len(secret) < minSecretLength {
		return nil, &ConfigError{Reason: fmt.Sprintf("seal secret too short: need at least %d characters", minSecretLength)}
	}

	// Deterministic salt derived from the secret itself. The salt's job
	// here is domain separation, not per-key uniqueness: the process has
	// exactly one key and it must be reproducible from config alone.
	salt := sha256.Sum256(append(saltPrefix, []byte(secret)...))

	key, err := scrypt.Key([]byte(secret), salt[:], scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive seal key: %w", err)
	}

	return &Cipher{key: key}, nil
}

// Encrypt seals a plaintext token.
//
// Output format: base64url(nonce || ciphertext || tag)
// - nonce: 12 bytes (GCM standard nonce size)
// - tag: 16 bytes (GCM authentication tag)
//
// Everything needed to decrypt travels with the ciphertext.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext is required")
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	// GCM.Seal appends the ciphertext and tag to the nonce
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)

	return encodeToken(sealed), nil
}

// Decrypt opens a sealed token. Tampered, truncated, or misencoded
// input fails with an error; garbage is never returned.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", fmt.Errorf("ciphertext is required")
	}

	raw, err := decodeToken(ciphertext)
	if err != nil {
		return "", fmt.Errorf("invalid token encoding: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize+gcm.Overhead() {
		return "", fmt.Errorf("invalid token: too short")
	}

	nonce := raw[:nonceSize]
	sealed := raw[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt token: %w", err)
	}

	return string(plaintext), nil
}
