// Package survey holds the field-survey records the engine reads from the
// surrounding application: projects, zones, datapoints and users.
package survey

import "time"

// Project groups the fields and zones of one survey job.
type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Client string `json:"client,omitempty"`
	Place  string `json:"place,omitempty"`
}

// Zone is a surveyed area within a project field.
type Zone struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Field     string `json:"field,omitempty"`
	Name      string `json:"name"`
}

// Datapoint is one measurement event. Values are operator-entered raw
// readings keyed by parameter code; ratings are never stored here.
type Datapoint struct {
	ID        string            `json:"id"`
	ZoneID    string            `json:"zone_id"`
	Timestamp time.Time         `json:"timestamp"`
	Values    map[string]string `json:"values"`
}

// User identifies the analyst stamping an evaluation.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email,omitempty"`
}
