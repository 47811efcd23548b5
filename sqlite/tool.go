package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ idedocs.ToolService = (*ToolService)(nil)

// ToolService implements idedocs.ToolService using SQLite.
type ToolService struct {
	db *DB
}

// NewToolService creates a new ToolService.
func NewToolService(db *DB) *ToolService {
	return &ToolService{db: db}
}

const toolColumns = "id, name, seed_urls, allowed_patterns, doc_version, created_at, updated_at"

// CreateTool creates a new tool.
func (s *ToolService) CreateTool(ctx context.Context, tool *idedocs.Tool) error {
	if err := tool.Validate(); err != nil {
		return err
	}
	if err := s.checkNameFree(ctx, tool.Name, ""); err != nil {
		return err
	}

	seeds, patterns, err := marshalURLs(tool.SeedURLs, tool.AllowedPatterns)
	if err != nil {
		return err
	}

	tool.ID = uuid.New().String()
	now := time.Now().UTC()
	tool.CreatedAt = now
	tool.UpdatedAt = now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tools (id, name, seed_urls, allowed_patterns, doc_version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, tool.ID, tool.Name, seeds, patterns, tool.DocVersion,
		formatTime(tool.CreatedAt), formatTime(tool.UpdatedAt))

	return err
}

// FindToolByID retrieves a tool by ID.
func (s *ToolService) FindToolByID(ctx context.Context, id string) (*idedocs.Tool, error) {
	tool, err := scanTool(s.db.QueryRowContext(ctx, "SELECT "+toolColumns+" FROM tools WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, idedocs.Errorf(idedocs.ENOTFOUND, "tool not found")
	}
	return tool, err
}

// FindTools retrieves tools matching the filter.
func (s *ToolService) FindTools(ctx context.Context, filter idedocs.ToolFilter) ([]*idedocs.Tool, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + toolColumns + " FROM tools WHERE 1=1")

	if filter.ID != nil {
		query.WriteString(" AND id = ?")
		args = append(args, *filter.ID)
	}
	if filter.Name != nil {
		query.WriteString(" AND name = ?")
		args = append(args, *filter.Name)
	}

	query.WriteString(" ORDER BY name ASC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tools []*idedocs.Tool
	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, err
		}
		tools = append(tools, tool)
	}

	return tools, rows.Err()
}

// UpdateTool updates an existing tool.
func (s *ToolService) UpdateTool(ctx context.Context, id string, upd idedocs.ToolUpdate) (*idedocs.Tool, error) {
	tool, err := s.FindToolByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		tool.Name = *upd.Name
	}
	if upd.SeedURLs != nil {
		tool.SeedURLs = upd.SeedURLs
	}
	if upd.AllowedPatterns != nil {
		tool.AllowedPatterns = upd.AllowedPatterns
	}
	if upd.DocVersion != nil {
		tool.DocVersion = *upd.DocVersion
	}

	if err := tool.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkNameFree(ctx, tool.Name, id); err != nil {
		return nil, err
	}

	seeds, patterns, err := marshalURLs(tool.SeedURLs, tool.AllowedPatterns)
	if err != nil {
		return nil, err
	}
	tool.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, `
		UPDATE tools
		SET name = ?, seed_urls = ?, allowed_patterns = ?, doc_version = ?, updated_at = ?
		WHERE id = ?
	`, tool.Name, seeds, patterns, tool.DocVersion, formatTime(tool.UpdatedAt), id)
	if err != nil {
		return nil, err
	}

	return tool, nil
}

// DeleteTool permanently removes a tool. Chunks, ingest runs, manifests and
// conversations of the tool are removed with it.
func (s *ToolService) DeleteTool(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tools WHERE id = ?", id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return idedocs.Errorf(idedocs.ENOTFOUND, "tool not found")
	}

	return nil
}

func (s *ToolService) checkNameFree(ctx context.Context, name, exceptID string) error {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM tools WHERE name = ? AND id != ?", name, exceptID).Scan(&n)
	if err != nil {
		return err
	}
	if n > 0 {
		return idedocs.Errorf(idedocs.ECONFLICT, "tool %q already exists", name)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTool(row scanner) (*idedocs.Tool, error) {
	var tool idedocs.Tool
	var seeds, patterns, createdAt, updatedAt string

	if err := row.Scan(&tool.ID, &tool.Name, &seeds, &patterns, &tool.DocVersion, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(seeds), &tool.SeedURLs); err != nil {
		return nil, idedocs.Errorf(idedocs.EINTERNAL, "corrupt seed URLs of tool %s: %v", tool.ID, err)
	}
	if err := json.Unmarshal([]byte(patterns), &tool.AllowedPatterns); err != nil {
		return nil, idedocs.Errorf(idedocs.EINTERNAL, "corrupt patterns of tool %s: %v", tool.ID, err)
	}
	if len(tool.AllowedPatterns) == 0 {
		tool.AllowedPatterns = nil
	}

	var err error
	if tool.CreatedAt, err = parseRFC3339(createdAt, "created_at"); err != nil {
		return nil, err
	}
	if tool.UpdatedAt, err = parseRFC3339(updatedAt, "updated_at"); err != nil {
		return nil, err
	}
	return &tool, nil
}

func marshalURLs(seeds, patterns []string) (string, string, error) {
	if patterns == nil {
		patterns = []string{}
	}
	s, err := json.Marshal(seeds)
	if err != nil {
		return "", "", err
	}
	p, err := json.Marshal(patterns)
	if err != nil {
		return "", "", err
	}
	return string(s), string(p), nil
}
