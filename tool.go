package idedocs

import (
	"context"
	"time"
)

// Tool represents a software product whose documentation is ingested,
// e.g. an editor or an AI coding agent.
type Tool struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	SeedURLs        []string  `json:"seedUrls"`
	AllowedPatterns []string  `json:"allowedPatterns,omitempty"`
	DocVersion      string    `json:"docVersion,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Validate returns an error if the tool contains invalid fields.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return Errorf(EINVALID, "tool name required")
	}
	if len(t.SeedURLs) == 0 {
		return Errorf(EINVALID, "tool seed URL required")
	}
	for _, u := range t.SeedURLs {
		if u == "" {
			return Errorf(EINVALID, "tool seed URL must not be empty")
		}
	}
	return nil
}

// ToolService represents a service for managing tools.
type ToolService interface {
	// CreateTool creates a new tool.
	// Returns ECONFLICT if a tool with the same name exists.
	CreateTool(ctx context.Context, tool *Tool) error

	// FindToolByID retrieves a tool by ID.
	// Returns ENOTFOUND if tool does not exist.
	FindToolByID(ctx context.Context, id string) (*Tool, error)

	// FindTools retrieves tools matching the filter.
	FindTools(ctx context.Context, filter ToolFilter) ([]*Tool, error)

	// UpdateTool updates an existing tool.
	// Returns ENOTFOUND if tool does not exist.
	UpdateTool(ctx context.Context, id string, upd ToolUpdate) (*Tool, error)

	// DeleteTool permanently removes a tool and all associated chunks.
	// Returns ENOTFOUND if tool does not exist.
	DeleteTool(ctx context.Context, id string) error
}

// ToolFilter represents a filter for FindTools.
type ToolFilter struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// ToolUpdate represents fields that can be updated on a tool.
type ToolUpdate struct {
	Name            *string  `json:"name"`
	SeedURLs        []string `json:"seedUrls"`
	AllowedPatterns []string `json:"allowedPatterns"`
	DocVersion      *string  `json:"docVersion"`
}
