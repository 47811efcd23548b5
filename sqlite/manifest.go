package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/fwojciec/idedocs"
)

// Compile-time interface verification.
var _ idedocs.ManifestService = (*ManifestService)(nil)

// ManifestService implements idedocs.ManifestService using SQLite. A
// manifest is stored as a JSON document, one per tool.
type ManifestService struct {
	db *DB
}

// NewManifestService creates a new ManifestService.
func NewManifestService(db *DB) *ManifestService {
	return &ManifestService{db: db}
}

// SaveManifest replaces the stored manifest of m.ToolID.
func (s *ManifestService) SaveManifest(ctx context.Context, m *idedocs.IDEManifest) error {
	if m.ToolID == "" {
		return idedocs.Errorf(idedocs.EINVALID, "manifest tool ID required")
	}
	if !m.PreferredFormat.Valid() {
		return idedocs.Errorf(idedocs.EINVALID, "manifest format %q is not supported", m.PreferredFormat)
	}

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO manifests (tool_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (tool_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, m.ToolID, string(data), formatTime(m.LastUpdated))
	return err
}

// FindManifest retrieves the manifest of a tool.
func (s *ManifestService) FindManifest(ctx context.Context, toolID string) (*idedocs.IDEManifest, error) {
	var data string
	err := s.db.QueryRowContext(ctx, "SELECT data FROM manifests WHERE tool_id = ?", toolID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, idedocs.Errorf(idedocs.ENOTFOUND, "manifest not found")
	}
	if err != nil {
		return nil, err
	}

	var m idedocs.IDEManifest
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, idedocs.Errorf(idedocs.EINTERNAL, "corrupt manifest of tool %s: %v", toolID, err)
	}
	return &m, nil
}
