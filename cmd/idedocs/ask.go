package main

import (
	"fmt"

	"github.com/fwojciec/idedocs"
)

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	tool, err := findTool(deps, c.Name)
	if err != nil {
		return err
	}

	resp, err := deps.Asker.Ask(deps.Ctx, idedocs.AskRequest{
		ToolID:         tool.ID,
		Message:        c.Question,
		ConversationID: c.Conversation,
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		if hint := idedocs.RetryAfterHint(err); hint > 0 {
			fmt.Fprintf(deps.Stderr, "Hint: Try again in %s\n", hint)
		}
		return err
	}

	fmt.Fprintln(deps.Stdout, resp.Response)
	if c.Sources && len(resp.Sources) > 0 {
		fmt.Fprintln(deps.Stdout)
		for _, s := range resp.Sources {
			if s.Section != "" {
				fmt.Fprintf(deps.Stdout, "[%d] %s (%s) %.2f\n", s.Index, s.URL, s.Section, s.Score)
			} else {
				fmt.Fprintf(deps.Stdout, "[%d] %s %.2f\n", s.Index, s.URL, s.Score)
			}
		}
	}
	fmt.Fprintf(deps.Stderr, "conversation %s, confidence %s\n", resp.ConversationID, resp.Metadata.Confidence)
	return nil
}
