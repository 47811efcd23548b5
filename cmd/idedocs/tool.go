package main

import (
	"fmt"
	"strings"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/crawl"
)

// Run executes the add command.
func (c *AddCmd) Run(deps *Dependencies) error {
	// Validate patterns before anything is stored.
	if _, err := crawl.CompilePatterns(c.Pattern); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return err
	}

	if c.Preview {
		urls, err := deps.Sitemaps.DiscoverURLs(deps.Ctx, c.URLs[0])
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
			return err
		}
		for _, u := range urls {
			fmt.Fprintln(deps.Stdout, u)
		}
		return nil
	}

	if c.Force {
		existing, err := deps.Tools.FindTools(deps.Ctx, idedocs.ToolFilter{Name: &c.Name})
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
			return err
		}
		if len(existing) > 0 {
			if err := deps.Tools.DeleteTool(deps.Ctx, existing[0].ID); err != nil {
				fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
				return err
			}
		}
	}

	tool := &idedocs.Tool{
		Name:            c.Name,
		SeedURLs:        c.URLs,
		AllowedPatterns: c.Pattern,
		DocVersion:      c.Version,
	}
	if err := deps.Tools.CreateTool(deps.Ctx, tool); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		if idedocs.ErrorCode(err) == idedocs.ECONFLICT {
			fmt.Fprintln(deps.Stderr, "Hint: Use --force to replace it")
		}
		return err
	}

	fmt.Fprintf(deps.Stdout, "Added tool %q (%s)\n", tool.Name, tool.ID)
	fmt.Fprintf(deps.Stdout, "Run 'idedocs ingest %s' to fetch its documentation.\n", tool.Name)
	return nil
}

// Run executes the list command.
func (c *ListCmd) Run(deps *Dependencies) error {
	tools, err := deps.Tools.FindTools(deps.Ctx, idedocs.ToolFilter{})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return err
	}

	if len(tools) == 0 {
		fmt.Fprintln(deps.Stdout, "No tools found. Use 'idedocs add' to register one.")
		return nil
	}

	for _, t := range tools {
		line := fmt.Sprintf("%s  %s  %s", t.ID, t.Name, strings.Join(t.SeedURLs, ","))
		if t.DocVersion != "" {
			line += "  v" + t.DocVersion
		}
		fmt.Fprintln(deps.Stdout, line)
	}
	return nil
}

// Run executes the delete command.
func (c *DeleteCmd) Run(deps *Dependencies) error {
	if !c.Force {
		fmt.Fprintf(deps.Stderr, "error: use --force to confirm deletion\n")
		return idedocs.Errorf(idedocs.EINVALID, "use --force to confirm deletion")
	}

	tool, err := findTool(deps, c.Name)
	if err != nil {
		return err
	}
	if err := deps.Tools.DeleteTool(deps.Ctx, tool.ID); err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "Deleted tool %q\n", tool.Name)
	return nil
}

// findTool resolves a tool by name, then by ID. Failures are reported on
// stderr.
func findTool(deps *Dependencies, nameOrID string) (*idedocs.Tool, error) {
	tools, err := deps.Tools.FindTools(deps.Ctx, idedocs.ToolFilter{Name: &nameOrID})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return nil, err
	}
	if len(tools) > 0 {
		return tools[0], nil
	}

	tool, err := deps.Tools.FindToolByID(deps.Ctx, nameOrID)
	if idedocs.ErrorCode(err) == idedocs.ENOTFOUND {
		fmt.Fprintf(deps.Stderr, "error: tool %q not found. Use 'idedocs list' to see available tools.\n", nameOrID)
		return nil, idedocs.Errorf(idedocs.ENOTFOUND, "tool %q not found", nameOrID)
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return nil, err
	}
	return tool, nil
}
