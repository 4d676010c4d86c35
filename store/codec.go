package store

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/hkdf"
)

// blobEnvelope is the persisted shape of the main blob and every backup
// slot. Each blob is self-describing so backups written under a different
// compression/encryption configuration still decode.
type blobEnvelope struct {
	Compressed bool   `json:"compressed"`
	Encrypted  bool   `json:"encrypted"`
	Payload    []byte `json:"payload"`
}

// codec runs the serialize → compress → encrypt pipeline and its inverse.
// A codec with a nil key operates in degraded mode: encryption requested by
// configuration is silently skipped (the caller logs the downgrade once).
type codec struct {
	compress bool
	encrypt  bool
	key      []byte // 32 bytes, nil when the keystore is unavailable
}

// deriveKey expands a machine-bound secret into an AES-256 key.
func deriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: empty key material", ErrEncryptionFailed)
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("swipephoto/session-store/v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("%w: derive key: %w", ErrEncryptionFailed, err)
	}
	return key, nil
}

// seal runs the forward pipeline on serialized state bytes.
func (c *codec) seal(plain []byte) (blobEnvelope, error) {
	env := blobEnvelope{Payload: plain}

	if c.compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(env.Payload); err != nil {
			return blobEnvelope{}, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
		}
		if err := zw.Close(); err != nil {
			return blobEnvelope{}, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
		}
		env.Payload = buf.Bytes()
		env.Compressed = true
	}

	if c.encrypt && c.key != nil {
		sealed, err := c.sealAESGCM(env.Payload)
		if err != nil {
			return blobEnvelope{}, err
		}
		env.Payload = sealed
		env.Encrypted = true
	}
	return env, nil
}

// open runs the inverse pipeline, driven by the envelope's own flags rather
// than the current configuration.
func (c *codec) open(env blobEnvelope) ([]byte, error) {
	payload := env.Payload

	if env.Encrypted {
		if c.key == nil {
			return nil, fmt.Errorf("%w: no key available for encrypted blob", ErrEncryptionFailed)
		}
		plain, err := c.openAESGCM(payload)
		if err != nil {
			return nil, err
		}
		payload = plain
	}

	if env.Compressed {
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
		}
		plain, err := io.ReadAll(zr)
		if cerr := zr.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCompressionFailed, err)
		}
		payload = plain
	}
	return payload, nil
}

// sealAESGCM encrypts plain with AES-256-GCM, prepending the nonce.
func (c *codec) sealAESGCM(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce: %w", ErrEncryptionFailed, err)
	}
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func (c *codec) openAESGCM(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: sealed blob too short", ErrEncryptionFailed)
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return plain, nil
}
