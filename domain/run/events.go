package run

import (
	"time"

	"neurodyn/domain/core"
)

// Cohort event kinds
const (
	EventSubjectComputed = "subject_computed"
	EventSubjectCached   = "subject_cached"
	EventSubjectFailed   = "subject_failed"
	EventCohortComplete  = "cohort_complete"
)

// CohortEvent reports progress of a cohort run. Subject fields are empty on
// the final cohort_complete event.
type CohortEvent struct {
	CohortID  core.CohortID   `json:"cohort_id"`
	EventType string          `json:"event_type"`
	SubjectID core.SubjectID  `json:"subject_id,omitempty"`
	Group     core.GroupLabel `json:"group,omitempty"`
	RunID     core.RunID      `json:"run_id,omitempty"`
	Lambda    float64         `json:"lambda,omitempty"`
	Error     string          `json:"error,omitempty"`
	Done      int             `json:"done"`
	Total     int             `json:"total"`
	Progress  float64         `json:"progress"`
	Timestamp time.Time       `json:"timestamp"`
}
