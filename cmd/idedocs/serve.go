package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/validate"
)

const validateTask = "validate manifests"

// Run executes the validate command.
func (c *ValidateCmd) Run(deps *Dependencies) error {
	if c.Schedule == "" {
		report, err := deps.Validator.Run(deps.Ctx)
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
			return err
		}
		printValidation(deps, report)
		return nil
	}

	if err := scheduleValidation(deps, c.Schedule); err != nil {
		return err
	}
	deps.Scheduler.Start()
	fmt.Fprintf(deps.Stdout, "Validating manifests on schedule %q. Press Ctrl+C to stop.\n", c.Schedule)

	<-deps.Ctx.Done()
	return stopScheduler(deps)
}

// Run executes the serve command.
func (c *ServeCmd) Run(deps *Dependencies) error {
	if c.Validate != "" {
		if err := scheduleValidation(deps, c.Validate); err != nil {
			return err
		}
		deps.Scheduler.Start()
	}

	addr, stop, err := deps.Serve(c.Addr)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %v\n", err)
		if c.Validate != "" {
			_ = stopScheduler(deps)
		}
		return err
	}
	fmt.Fprintf(deps.Stdout, "Serving on http://%s\n", addr)

	<-deps.Ctx.Done()
	fmt.Fprintln(deps.Stdout, "Shutting down")
	err = stop()
	if c.Validate != "" {
		if serr := stopScheduler(deps); err == nil {
			err = serr
		}
	}
	return err
}

func scheduleValidation(deps *Dependencies, schedule string) error {
	err := deps.Scheduler.Add(schedule, validateTask, func(ctx context.Context) error {
		_, err := deps.Validator.Run(ctx)
		return err
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
	}
	return err
}

func stopScheduler(deps *Dependencies) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return deps.Scheduler.Stop(ctx)
}

func printValidation(deps *Dependencies, report *validate.Report) {
	for _, tr := range report.Tools {
		if tr.Err != nil {
			fmt.Fprintf(deps.Stdout, "%s  %s  %s\n", tr.ToolID, tr.Outcome, idedocs.ErrorMessage(tr.Err))
			continue
		}
		fmt.Fprintf(deps.Stdout, "%s  %s\n", tr.ToolID, tr.Outcome)
	}
	fmt.Fprintf(deps.Stdout, "%d updated, %d unchanged, %d skipped, %d failed in %s\n",
		report.Updated, report.Unchanged, report.Skipped, report.Failed, report.Duration.Round(time.Millisecond))
}
