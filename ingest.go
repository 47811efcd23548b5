package idedocs

import (
	"context"
	"time"
)

// IngestState is the state of an ingestion run.
type IngestState string

// Ingest states. Completed and failed are terminal.
const (
	IngestPending    IngestState = "pending"
	IngestInProgress IngestState = "in_progress"
	IngestCompleted  IngestState = "completed"
	IngestFailed     IngestState = "failed"
)

// Terminal reports whether no transition out of s is allowed.
func (s IngestState) Terminal() bool {
	return s == IngestCompleted || s == IngestFailed
}

// CanTransition reports whether an ingest record may move from one state to
// another: pending -> in_progress -> {completed, failed}. A pending run may
// also fail before it starts.
func CanTransition(from, to IngestState) bool {
	switch from {
	case IngestPending:
		return to == IngestInProgress || to == IngestFailed
	case IngestInProgress:
		return to == IngestCompleted || to == IngestFailed
	}
	return false
}

// IngestStatus tracks an ingestion run for a tool. Only the owner that
// created the record may transition it.
type IngestStatus struct {
	ID              string      `json:"id"`
	ToolID          string      `json:"toolId"`
	Owner           string      `json:"-"`
	State           IngestState `json:"state"`
	ChunksProcessed int         `json:"chunksProcessed"`
	Error           string      `json:"error,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// IngestTransition describes a state change requested by an owner.
type IngestTransition struct {
	State           IngestState
	ChunksProcessed int
	Error           string
}

// IngestService represents a service for managing ingestion runs.
type IngestService interface {
	// CreateIngestStatus creates a pending record owned by status.Owner.
	CreateIngestStatus(ctx context.Context, status *IngestStatus) error

	// FindIngestStatusByID retrieves a record by ID.
	// Returns ENOTFOUND if record does not exist.
	FindIngestStatusByID(ctx context.Context, id string) (*IngestStatus, error)

	// FindIngestStatuses retrieves the records of a tool, newest first.
	FindIngestStatuses(ctx context.Context, toolID string) ([]*IngestStatus, error)

	// TransitionIngestStatus applies tr to the record.
	// Returns EINVALID for a transition CanTransition rejects and ECONFLICT
	// if owner did not create the record or it changed concurrently.
	TransitionIngestStatus(ctx context.Context, id, owner string, tr IngestTransition) (*IngestStatus, error)
}
