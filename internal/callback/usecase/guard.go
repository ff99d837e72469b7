package usecase

import (
	"sync"
	"time"
)

// DefaultDedupTTL is how long a message id is remembered.
const DefaultDedupTTL = 10 * time.Second

type seenMessage struct {
	id     string
	seenAt time.Time
}

// IdempotencyGuard drops redeliveries of the same message id within a short
// window. It is not a replay defense; signatures are.
//
// Entries are kept in arrival order, so expiry only ever looks at the head
// of the queue.
type IdempotencyGuard struct {
	ttl time.Duration

	mu    sync.Mutex
	ids   map[string]time.Time
	queue []seenMessage
	head  int
}

func NewIdempotencyGuard(ttl time.Duration) *IdempotencyGuard {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &IdempotencyGuard{
		ttl: ttl,
		ids: make(map[string]time.Time),
	}
}

// IsDuplicate reports whether messageID was already registered within the
// TTL and registers it if not. The check and the registration are atomic.
func (g *IdempotencyGuard) IsDuplicate(messageID string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.evict(now)

	if _, ok := g.ids[messageID]; ok {
		return true
	}
	g.ids[messageID] = now
	g.queue = append(g.queue, seenMessage{id: messageID, seenAt: now})
	return false
}

// Forget removes messageID so a redelivery is processed again.
func (g *IdempotencyGuard) Forget(messageID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	// The queue entry stays until it expires; evict skips ids whose
	// registration no longer matches.
	delete(g.ids, messageID)
}

// Len returns the number of registered ids.
func (g *IdempotencyGuard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.ids)
}

func (g *IdempotencyGuard) evict(now time.Time) {
	cutoff := now.Add(-g.ttl)
	for g.head < len(g.queue) {
		entry := g.queue[g.head]
		if entry.seenAt.After(cutoff) {
			break
		}
		if seenAt, ok := g.ids[entry.id]; ok && seenAt.Equal(entry.seenAt) {
			delete(g.ids, entry.id)
		}
		g.queue[g.head] = seenMessage{}
		g.head++
	}

	// Compact once the consumed prefix dominates.
	if g.head > 64 && g.head*2 >= len(g.queue) {
		g.queue = append(g.queue[:0], g.queue[g.head:]...)
		g.head = 0
	}
}
