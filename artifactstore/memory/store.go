package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
)

// ErrArtifactNotFound is returned when an artifact is not found
var ErrArtifactNotFound = errors.New("artifact not found")

// MemoryStore implements the artifact store interface using in-memory
// storage. Used only for testing and development mode.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string][]byte
}

// New creates a new memory-based artifact store
func New() *MemoryStore {
	return &MemoryStore{
		artifacts: make(map[string][]byte),
	}
}

// Put stores artifact content under objectKey and returns its sha256
// checksum. Tests use it to stage artifacts the resolver should find.
func (s *MemoryStore) Put(objectKey string, content []byte) string {
	hash := sha256.Sum256(content)

	s.mu.Lock()
	s.artifacts[objectKey] = content
	s.mu.Unlock()

	return hex.EncodeToString(hash[:])
}

// DownloadURL returns a synthetic URL for a stored artifact.
func (s *MemoryStore) DownloadURL(
	_ context.Context,
	objectKey string,
) (string, error) {
	s.mu.RLock()
	_, exists := s.artifacts[objectKey]
	s.mu.RUnlock()

	if !exists {
		return "", ErrArtifactNotFound
	}

	return "memory://artifacts/" + objectKey, nil
}

// Clear removes all artifacts from memory (useful for testing)
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	s.artifacts = make(map[string][]byte)
	s.mu.Unlock()
}
