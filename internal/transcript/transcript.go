// Package transcript keeps the per-user chat history for the current
// process. Nothing here is persisted: a restart starts every conversation
// fresh, matching the single-page app this backend serves.
package transcript

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jamesbond008/mungers-mind/internal/advisor"
)

type Role string

const (
	RoleInquirer Role = "inquirer"
	RoleAdvisor  Role = "advisor"
)

// Entry is one chat turn. Entries are immutable once appended; the ID is a
// monotonic ULID, so creation order and lexical order agree and the ID can
// be handed to an external exporter as a stable reference.
type Entry struct {
	ID        string                `json:"id"`
	Role      Role                  `json:"role"`
	Text      string                `json:"text"`
	Payload   *advisor.AdviceResult `json:"payload,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

type Book struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	entries map[string][]Entry
}

func NewBook() *Book {
	return &Book{
		entropy: ulid.Monotonic(rand.Reader, 0),
		entries: make(map[string][]Entry),
	}
}

func (b *Book) Append(userID string, role Role, text string, payload *advisor.AdviceResult) Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now().UTC()
	entry := Entry{
		ID:        ulid.MustNew(ulid.Timestamp(now), b.entropy).String(),
		Role:      role,
		Text:      text,
		Payload:   payload,
		CreatedAt: now,
	}
	b.entries[userID] = append(b.entries[userID], entry)
	return entry
}

// List returns the user's turns in append order.
func (b *Book) List(userID string) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.entries[userID]
	result := make([]Entry, len(entries))
	copy(result, entries)
	return result
}

// Get looks up one turn by ID within the user's own transcript.
func (b *Book) Get(userID, entryID string) (Entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.entries[userID] {
		if entry.ID == entryID {
			return entry, true
		}
	}
	return Entry{}, false
}

// Len reports how many turns the user's transcript holds.
func (b *Book) Len(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries[userID])
}
