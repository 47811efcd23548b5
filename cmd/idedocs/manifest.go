package main

import (
	"encoding/json"
	"fmt"

	"github.com/fwojciec/idedocs"
	"github.com/fwojciec/idedocs/format"
	"github.com/fwojciec/idedocs/ingest"
)

// Run executes the detect command. The result is printed, not stored.
func (c *DetectCmd) Run(deps *Dependencies) error {
	tool, err := findTool(deps, c.Name)
	if err != nil {
		return err
	}

	chunks, err := deps.Chunks.FindChunks(deps.Ctx, idedocs.ChunkFilter{ToolID: &tool.ID})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return err
	}
	if len(chunks) == 0 {
		fmt.Fprintf(deps.Stderr, "error: no documentation stored for %q. Run 'idedocs ingest %s' first.\n", tool.Name, tool.Name)
		return idedocs.Errorf(idedocs.EINVALID, "no documentation stored for %s", tool.Name)
	}

	res, err := deps.Detector.DetectFormat(deps.Ctx, tool.ID, format.Sample(chunks, ingest.DefaultSampleChars))
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return err
	}

	fmt.Fprintf(deps.Stdout, "%s  confidence %d  via %v\n", res.PreferredFormat, res.ConfidenceScore, res.DetectionMethodsUsed)
	for _, f := range res.FallbackFormats {
		fmt.Fprintf(deps.Stdout, "  fallback %s  confidence %d\n", f.Format, f.Confidence)
	}
	return nil
}

// Run executes the manifest command.
func (c *ManifestCmd) Run(deps *Dependencies) error {
	tool, err := findTool(deps, c.Name)
	if err != nil {
		return err
	}

	m, err := deps.Manifests.FindManifest(deps.Ctx, tool.ID)
	if idedocs.ErrorCode(err) == idedocs.ENOTFOUND {
		fmt.Fprintf(deps.Stderr, "error: no manifest for %q. Run 'idedocs ingest %s' first.\n", tool.Name, tool.Name)
		return err
	}
	if err != nil {
		fmt.Fprintf(deps.Stderr, "error: %s\n", idedocs.ErrorMessage(err))
		return err
	}

	enc := json.NewEncoder(deps.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
