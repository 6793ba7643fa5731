// Package cache keys finished generations so repeating the same prompt
// in a conversation replays the finalized reply instead of re-streaming.
package cache

import (
	"crypto/sha256"
	"fmt"
	"time"

	"GameForge/internal/session"
)

// Entry is one cached finalized reply.
type Entry struct {
	Message  session.ChatMessage
	StoredAt time.Time
}

// Key derives a cache key from the conversation and prompt.
func Key(conversationID, prompt string) string {
	h := sha256.New()
	h.Write([]byte(conversationID))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return fmt.Sprintf("%x", h.Sum(nil))
}
