package logging

import "time"

// #region event-kind
// Audit event kinds written to evaluation_log.
const (
	EventVersionCreated = "version_created"
	EventOutputCreated  = "output_created"
	EventConflict       = "version_conflict"
	EventRejected       = "evaluation_rejected"
	EventUnrated        = "unrated_values"
)
// #endregion event-kind

// #region audit-entry
// AuditEntry is a single row in the evaluation_log table.
type AuditEntry struct {
	OutputID      string
	VersionNumber int // 0 when no version is involved
	Event         string
	Actor         string
	Detail        string // free text or JSON
	CreatedAt     time.Time
}
// #endregion audit-entry
