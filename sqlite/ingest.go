package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ idedocs.IngestService = (*IngestService)(nil)

// IngestService implements idedocs.IngestService using SQLite.
type IngestService struct {
	db *DB
}

// NewIngestService creates a new IngestService.
func NewIngestService(db *DB) *IngestService {
	return &IngestService{db: db}
}

const ingestColumns = "id, tool_id, owner, state, chunks_processed, error, created_at, updated_at"

// CreateIngestStatus creates a pending record.
func (s *IngestService) CreateIngestStatus(ctx context.Context, status *idedocs.IngestStatus) error {
	if status.ToolID == "" {
		return idedocs.Errorf(idedocs.EINVALID, "ingest tool ID required")
	}
	if status.Owner == "" {
		return idedocs.Errorf(idedocs.EINVALID, "ingest owner required")
	}

	status.ID = uuid.New().String()
	status.State = idedocs.IngestPending
	status.ChunksProcessed = 0
	status.Error = ""
	now := time.Now().UTC()
	status.CreatedAt = now
	status.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_statuses (id, tool_id, owner, state, chunks_processed, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?, ?)
	`, status.ID, status.ToolID, status.Owner, string(status.State),
		formatTime(status.CreatedAt), formatTime(status.UpdatedAt))

	return err
}

// FindIngestStatusByID retrieves a record by ID.
func (s *IngestService) FindIngestStatusByID(ctx context.Context, id string) (*idedocs.IngestStatus, error) {
	status, err := scanIngestStatus(s.db.QueryRowContext(ctx, "SELECT "+ingestColumns+" FROM ingest_statuses WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, idedocs.Errorf(idedocs.ENOTFOUND, "ingest status not found")
	}
	return status, err
}

// FindIngestStatuses retrieves the records of a tool, newest first.
func (s *IngestService) FindIngestStatuses(ctx context.Context, toolID string) ([]*idedocs.IngestStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ingestColumns+" FROM ingest_statuses WHERE tool_id = ? ORDER BY created_at DESC, rowid DESC", toolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []*idedocs.IngestStatus
	for rows.Next() {
		status, err := scanIngestStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

// TransitionIngestStatus applies tr to the record. The update only succeeds
// if the stored state is still the one the transition was checked against.
func (s *IngestService) TransitionIngestStatus(ctx context.Context, id, owner string, tr idedocs.IngestTransition) (*idedocs.IngestStatus, error) {
	status, err := s.FindIngestStatusByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if status.Owner != owner {
		return nil, idedocs.Errorf(idedocs.ECONFLICT, "ingest %s is owned by another run", id)
	}
	if !idedocs.CanTransition(status.State, tr.State) {
		return nil, idedocs.Errorf(idedocs.EINVALID, "cannot move ingest from %s to %s", status.State, tr.State)
	}

	from := status.State
	status.State = tr.State
	status.ChunksProcessed = tr.ChunksProcessed
	status.Error = tr.Error
	status.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE ingest_statuses
		SET state = ?, chunks_processed = ?, error = ?, updated_at = ?
		WHERE id = ? AND owner = ? AND state = ?
	`, string(status.State), status.ChunksProcessed, status.Error, formatTime(status.UpdatedAt),
		id, owner, string(from))
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, idedocs.Errorf(idedocs.ECONFLICT, "ingest %s changed concurrently", id)
	}

	return status, nil
}

func scanIngestStatus(row scanner) (*idedocs.IngestStatus, error) {
	var status idedocs.IngestStatus
	var state, createdAt, updatedAt string

	if err := row.Scan(&status.ID, &status.ToolID, &status.Owner, &state, &status.ChunksProcessed,
		&status.Error, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	status.State = idedocs.IngestState(state)

	var err error
	if status.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if status.UpdatedAt, err = parseRFC3339(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &status, nil
}
