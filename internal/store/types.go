package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound reports a missing output or version.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict reports a version number that was taken by a concurrent
	// writer, or a write that lost the database lock. Callers may retry.
	ErrConflict = errors.New("store: version conflict")
)

// #region output
// Output is the (project, zone, standard) grouping that owns a version lineage.
type Output struct {
	ID         string
	ProjectID  string
	ZoneID     string
	StandardID string
	AnalystID  string
	CreatedAt  time.Time
}
// #endregion output

// #region version-record
// VersionRecord is one immutable evaluation version. Content is the frozen
// JSON snapshot; the summary columns duplicate parts of it for listing.
type VersionRecord struct {
	ID              string
	OutputID        string
	Number          int
	Content         []byte
	Digest          string
	Total           int
	Class           string
	Stress          string
	Recommendations string
	CreatedBy       string
	CreatedAt       time.Time
}
// #endregion version-record
