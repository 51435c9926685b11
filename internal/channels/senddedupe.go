package channels

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// SendDeduper suppresses identical outbound messages fired at the same chat
// within a short window. Retried flushes and crossed state transitions can
// both try to deliver the same text; the guest should see it once.
type SendDeduper struct {
	mu       sync.Mutex
	recent   map[string]time.Time // fingerprint → last send
	order    []string             // insertion order for capacity eviction
	capacity int
	window   time.Duration
	now      func() time.Time
}

// NewSendDeduper creates a deduper holding at most capacity fingerprints,
// suppressing repeats within window.
func NewSendDeduper(capacity int, window time.Duration) *SendDeduper {
	return &SendDeduper{
		recent:   make(map[string]time.Time, capacity),
		capacity: capacity,
		window:   window,
		now:      time.Now,
	}
}

// ShouldSend records the message and reports whether it should go out.
// Returns false for a repeat of the same (channel, chat, kind, text) inside
// the window; a repeat outside the window refreshes the entry and sends.
func (d *SendDeduper) ShouldSend(channel, chatID, kind, text string) bool {
	fp := fingerprint(channel, chatID, kind, text)

	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.recent[fp]; ok {
		if now.Sub(last) < d.window {
			return false
		}
		d.recent[fp] = now
		return true
	}

	if len(d.recent) >= d.capacity {
		// Evict the oldest recorded fingerprint.
		for len(d.order) > 0 {
			oldest := d.order[0]
			d.order = d.order[1:]
			if _, ok := d.recent[oldest]; ok {
				delete(d.recent, oldest)
				break
			}
		}
	}
	d.recent[fp] = now
	d.order = append(d.order, fp)
	return true
}

func fingerprint(channel, chatID, kind, text string) string {
	h := sha256.New()
	h.Write([]byte(channel))
	h.Write([]byte{0})
	h.Write([]byte(chatID))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
