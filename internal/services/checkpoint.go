package services

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"

	domain "github.com/yungbote/namespace-orchestrator/internal/domain/namespaces"
)

const checkpointDigestBytes = 16

// CheckpointHasher mints checkpoint identifiers and encryption-key fingerprints.
// Checkpoint contents are opaque here; identifiers only need to be unique and well formed.
type CheckpointHasher struct {
	masterKey []byte
	random    io.Reader
}

func NewCheckpointHasher(masterKey string) *CheckpointHasher {
	return &CheckpointHasher{masterKey: []byte(masterKey), random: rand.Reader}
}

// NewCheckpointHash returns the initial checkpoint id of a namespace.
func (h *CheckpointHasher) NewCheckpointHash(ownerID, baseVersion string, at time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := io.ReadFull(h.random, nonce); err != nil {
		return "", fmt.Errorf("checkpoint nonce: %w", err)
	}
	return checkpointID([]byte("create"), []byte(ownerID), []byte(baseVersion), timeBytes(at), nonce), nil
}

// MergedCheckpointHash derives the target of a merge from its source and operation.
func (h *CheckpointHasher) MergedCheckpointHash(sourceHash string, operationID uuid.UUID) string {
	return checkpointID([]byte("merge"), []byte(sourceHash), operationID[:])
}

// FallbackCheckpointHash names the restored checkpoint for a fallback version of a namespace.
func (h *CheckpointHasher) FallbackCheckpointHash(namespaceID uuid.UUID, version string) string {
	return checkpointID([]byte("fallback"), namespaceID[:], []byte(version))
}

// NewEncryptionKeyHash derives a per-namespace data key from the master key with HKDF and
// returns only its fingerprint. The key itself is never stored.
func (h *CheckpointHasher) NewEncryptionKeyHash(ownerID string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(h.random, salt); err != nil {
		return "", fmt.Errorf("key salt: %w", err)
	}
	kdf := hkdf.New(newBlake2b256, h.masterKey, salt, []byte("nsorch:namespace-key:"+ownerID))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return "", fmt.Errorf("derive key: %w", err)
	}
	sum := blake2b.Sum256(key)
	return "ekh_" + hex.EncodeToString(sum[:]), nil
}

func newBlake2b256() hash.Hash {
	d, _ := blake2b.New256(nil)
	return d
}

func checkpointID(parts ...[]byte) string {
	d, _ := blake2b.New(checkpointDigestBytes, nil)
	for _, p := range parts {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(len(p)))
		d.Write(n[:])
		d.Write(p)
	}
	return domain.CheckpointPrefix + hex.EncodeToString(d.Sum(nil))
}

func timeBytes(t time.Time) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(t.UnixNano()))
	return b[:]
}
