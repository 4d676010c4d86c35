package store

import "errors"

// Typed store errors. Callers match with errors.Is; lower-level causes are
// wrapped so the chain stays inspectable.
var (
	// ErrStorageUnavailable indicates the underlying medium is inaccessible.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrEncryptionFailed indicates the encrypt/decrypt step failed.
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrCompressionFailed indicates the compress/decompress step failed.
	ErrCompressionFailed = errors.New("compression failed")

	// ErrQuotaExceeded indicates the serialized blob exceeds the configured
	// size ceiling. Raised before anything is written.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrSerializationFailed indicates the state could not be encoded or
	// decoded as JSON.
	ErrSerializationFailed = errors.New("serialization failed")

	// ErrDataCorrupted indicates a persisted record is structurally invalid
	// or missing required fields.
	ErrDataCorrupted = errors.New("data corrupted")

	// ErrVersionMismatch indicates a persisted schema version outside the
	// engine's known set.
	ErrVersionMismatch = errors.New("schema version mismatch")

	// ErrRecordNotFound is returned by backends when a key has no record.
	ErrRecordNotFound = errors.New("record not found")
)
