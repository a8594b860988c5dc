package callrecord

import "time"

// CallRecord is one row per transcription session, opened when the session
// starts and closed when it ends. Transcription text is never stored here.
type CallRecord struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	CallID     string     `gorm:"not null;index" json:"call_id"`
	TenantUUID string     `gorm:"index" json:"tenant_uuid"`
	Backend    string     `gorm:"not null" json:"backend"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}
