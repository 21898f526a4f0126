package mailbox

import "sync"

// Mailbox holds at most one pending clipboard payload. Writes replace the
// payload, reads return it and leave the slot empty.
type Mailbox struct {
	mu      sync.Mutex
	payload string
	version uint64
}

func New() *Mailbox {
	return &Mailbox{}
}

// Write replaces the pending payload and returns the new version.
func (m *Mailbox) Write(text string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = text
	m.version++
	return m.version
}

// ReadAndClear returns the pending payload and the version that produced it.
// Capture and reset happen under a single lock acquisition.
func (m *Mailbox) ReadAndClear() (string, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text := m.payload
	m.payload = ""
	return text, m.version
}

func (m *Mailbox) Version() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Pending reports whether a non-empty payload is waiting to be read.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.payload != ""
}
