// Package crypto resolves the submitter private key, supporting an
// encrypted-at-rest key file so the raw key never has to live in config.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// kdfIterations follows the OWASP minimum for PBKDF2-HMAC-SHA256.
	kdfIterations = 480_000
	saltLen       = 16
	aesKeyLen     = 32
	keyfileV1     = 1
)

// keyfile is the on-disk format produced by SealKey. All binary fields are
// base64 standard encoding.
type keyfile struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	Nonce   string `json:"nonce"`
	Sealed  string `json:"sealed"`
}

// KeySource carries the places LoadKey may resolve a private key from.
type KeySource struct {
	// RawHex is a hex-encoded private key, with or without 0x prefix. Wins
	// when non-empty.
	RawHex string

	// KeyfilePath points at a file produced by SealKey.
	KeyfilePath string

	// Passphrase decrypts the keyfile.
	Passphrase string
}

// SealKey encrypts a hex-encoded private key under a passphrase using
// PBKDF2-HMAC-SHA256 and AES-256-GCM, returning the keyfile JSON.
func SealKey(privateKeyHex, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("crypto: passphrase must not be empty")
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("crypto: expected 32-byte key, got %d bytes", len(raw))
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: generating salt: %w", err)
	}

	gcm, err := gcmFor(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: generating nonce: %w", err)
	}

	out := keyfile{
		Version: keyfileV1,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Nonce:   base64.StdEncoding.EncodeToString(nonce),
		Sealed:  base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, raw, nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// OpenKey decrypts a keyfile, returning the hex-encoded private key without
// a 0x prefix.
func OpenKey(data []byte, passphrase string) (string, error) {
	if passphrase == "" {
		return "", errors.New("crypto: passphrase must not be empty")
	}

	var kf keyfile
	if err := json.Unmarshal(data, &kf); err != nil {
		return "", fmt.Errorf("crypto: parsing keyfile: %w", err)
	}
	if kf.Version != keyfileV1 {
		return "", fmt.Errorf("crypto: unsupported keyfile version %d", kf.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(kf.Salt)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding salt: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(kf.Nonce)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding nonce: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(kf.Sealed)
	if err != nil {
		return "", fmt.Errorf("crypto: decoding sealed key: %w", err)
	}

	gcm, err := gcmFor(passphrase, salt)
	if err != nil {
		return "", err
	}

	raw, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decryption failed (wrong passphrase?): %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// LoadKey resolves the submitter key: raw hex first, keyfile second.
func LoadKey(src KeySource) (string, error) {
	if src.RawHex != "" {
		k := strings.TrimPrefix(src.RawHex, "0x")
		if _, err := hex.DecodeString(k); err != nil {
			return "", fmt.Errorf("crypto: raw key is not valid hex: %w", err)
		}
		return k, nil
	}

	if src.KeyfilePath != "" {
		data, err := os.ReadFile(src.KeyfilePath)
		if err != nil {
			return "", fmt.Errorf("crypto: reading keyfile: %w", err)
		}
		return OpenKey(data, src.Passphrase)
	}

	return "", errors.New("crypto: no key source configured (set raw key or keyfile path)")
}

func gcmFor(passphrase string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(passphrase), salt, kdfIterations, aesKeyLen, sha256.New)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: creating GCM: %w", err)
	}
	return gcm, nil
}
