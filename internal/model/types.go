package model

import "time"

type MailboxOp string

const (
	OpWrite MailboxOp = "write"
	OpRead  MailboxOp = "read"
)

// MailboxEvent is journal metadata for one mailbox operation. The payload
// text itself is never recorded.
type MailboxEvent struct {
	EventID    string
	InstanceID string
	Op         MailboxOp
	Version    uint64
	SizeBytes  int
	At         time.Time
}
