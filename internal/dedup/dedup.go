// Package dedup suppresses repeated processing of identical message text
// across channels and time. Deduplication is keyed on a hash of normalized
// text; near-duplicate (fuzzy) matching is left as an extension point.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/anichkay-yyy/client-pipeline/internal/repository"
)

var whitespaceRE = regexp.MustCompile(`\s+`)

// Hash returns the deterministic content hash of a message text: trimmed,
// lowercased, whitespace collapsed, SHA-256 hex digest.
func Hash(text string) string {
	normalized := whitespaceRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Store answers whether a content hash has been seen before, backed by the
// hash index over the messages table.
type Store struct {
	messages repository.MessageRepository
	logger   *zap.Logger
}

func NewStore(messages repository.MessageRepository, logger *zap.Logger) *Store {
	return &Store{messages: messages, logger: logger}
}

// IsDuplicate reports whether any message other than excludeID already carries
// the hash. An index failure is surfaced to the caller, which fails the
// ingest; novelty is never decided without the index.
func (s *Store) IsDuplicate(textHash string, excludeID int64) (bool, error) {
	exists, err := s.messages.HashExists(textHash, excludeID)
	if err != nil {
		s.logger.Error("Dedup index check failed", zap.Error(err), zap.String("text_hash", textHash[:12]))
		return false, err
	}
	return exists, nil
}

// LeadExists reports whether a lead was already created for any message with
// the same hash. This is the final guard against double outreach: ambiguity
// here means classification is skipped, never forced.
func (s *Store) LeadExists(textHash string) (bool, error) {
	return s.messages.LeadExistsForHash(textHash)
}
