package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// v7 keeps run listings sortable by creation; v4 is the fallback
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID     ID
	SubjectID ID
	CohortID  ID
)

// String conversions for domain IDs
func (id RunID) String() string     { return ID(id).String() }
func (id SubjectID) String() string { return ID(id).String() }
func (id CohortID) String() string  { return ID(id).String() }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseSubjectID parses a string into SubjectID
func ParseSubjectID(s string) (SubjectID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("subject ID cannot be empty")
	}
	return SubjectID(strings.TrimSpace(s)), nil
}

// GroupLabel is a cohort classification such as HC, MCI or AD.
type GroupLabel string

const (
	GroupHC  GroupLabel = "HC"
	GroupMCI GroupLabel = "MCI"
	GroupAD  GroupLabel = "AD"
)

func (g GroupLabel) String() string { return string(g) }
