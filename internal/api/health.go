package api

import "time"

type HealthResponse struct {
	SchemaVersion  string    `json:"schema_version"`
	GeneratedAt    time.Time `json:"generated_at"`
	Status         string    `json:"status"`
	InstanceID     string    `json:"instance_id"`
	MailboxVersion uint64    `json:"mailbox_version"`
	Pending        bool      `json:"pending"`
}
