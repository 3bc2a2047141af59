// Package notify carries notification requests from the orchestration core
// to the external presentation collaborator (toast/OS notification renderer).
// The core only decides that a notification should happen and with what
// content; rendering is out of scope.
package notify

import (
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind classifies the presentation weight of a notification.
type Kind string

const (
	// KindCelebration is the full celebratory presentation for received funds.
	KindCelebration Kind = "celebration"
	// KindInfo is a lightweight acknowledgement (e.g. a sent payment settled).
	KindInfo Kind = "info"
	// KindSuccess confirms a background operation (e.g. deposits claimed).
	KindSuccess Kind = "success"
	// KindError reports a non-blocking failure (e.g. a claim attempt failed).
	KindError Kind = "error"
)

// Notification is one user-facing notification request.
type Notification struct {
	Kind  Kind   `json:"kind"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Sink receives notification requests. Implementations must be safe for
// concurrent use; the event dispatcher publishes from its own goroutine.
type Sink interface {
	Publish(n Notification)
}

// MemorySink buffers notifications until the presentation layer drains them.
// The buffer is bounded; when full, the oldest entry is dropped.
type MemorySink struct {
	mu   sync.Mutex
	buf  []Notification
	size int
}

// NewMemorySink returns a sink holding at most size pending notifications.
func NewMemorySink(size int) *MemorySink {
	if size <= 0 {
		size = 64
	}
	return &MemorySink{size: size}
}

// Publish appends a notification, evicting the oldest when the buffer is full.
func (s *MemorySink) Publish(n Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) >= s.size {
		s.buf = s.buf[1:]
	}
	s.buf = append(s.buf, n)
}

// Drain returns and clears all pending notifications in publish order.
func (s *MemorySink) Drain() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buf
	s.buf = nil
	if out == nil {
		out = []Notification{}
	}
	return out
}

// Pending returns the number of buffered notifications.
func (s *MemorySink) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// satPrinter renders thousands-separated sat amounts for notification bodies.
var satPrinter = message.NewPrinter(language.English)

// FormatSats renders an amount like "12,345 sats" / "1 sat".
func FormatSats(sats uint64) string {
	if sats == 1 {
		return satPrinter.Sprintf("%d sat", sats)
	}
	return satPrinter.Sprintf("%d sats", sats)
}
