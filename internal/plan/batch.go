package plan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klytics/xladjust/internal/workbook"
)

// ErrOutputCollision is returned by ApplyBatch when two workbooks would be
// written to the same file in OutDir.
var ErrOutputCollision = errors.New("output name collision")

// FileResult is the outcome of applying a plan to one workbook in a batch.
type FileResult struct {
	File     string       `json:"file"`
	Output   string       `json:"output,omitempty"`
	Status   string       `json:"status"` // "ok" or "error"
	Inserted int          `json:"inserted"`
	Steps    []StepResult `json:"steps,omitempty"`
	Error    string       `json:"error,omitempty"`
	Err      error        `json:"-"`
}

// BatchOptions controls ApplyBatch.
type BatchOptions struct {
	// OutDir receives adjusted copies named like their sources. Empty saves in place.
	OutDir      string
	Save        workbook.SaveOptions
	Concurrency int
	// Progress, when set, is called once per file as it finishes.
	Progress func(done, total int, r FileResult)
}

// ApplyBatch applies p to every file independently. A failing workbook is
// recorded and the batch moves on. Results are in the order of files.
func (e *Executor) ApplyBatch(ctx context.Context, p *Plan, files []string, opts BatchOptions) ([]FileResult, error) {
	if opts.OutDir != "" {
		if err := checkOutputs(files, opts.OutDir); err != nil {
			return nil, err
		}
		if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
			return nil, fmt.Errorf("could not create output directory %s: %w", opts.OutDir, err)
		}
	}
	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}

	results := make([]FileResult, len(files))
	var (
		mu   sync.Mutex
		done int
		wg   sync.WaitGroup
	)
	sem := make(chan struct{}, workers)

	for i, file := range files {
		wg.Add(1)
		go func(idx int, f string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			r := e.applyOne(ctx, p, f, opts)

			mu.Lock()
			results[idx] = r
			done++
			if opts.Progress != nil {
				opts.Progress(done, len(files), r)
			}
			mu.Unlock()
		}(i, file)
	}
	wg.Wait()

	return results, nil
}

func (e *Executor) applyOne(ctx context.Context, p *Plan, file string, opts BatchOptions) FileResult {
	r := FileResult{File: file, Status: "ok"}
	if opts.OutDir != "" {
		r.Output = outputPath(opts.OutDir, file)
	}
	if err := ctx.Err(); err != nil {
		r.Status, r.Error, r.Err = "error", err.Error(), err
		return r
	}

	steps, err := e.ApplyFile(ctx, p, file, r.Output, opts.Save)
	r.Steps = steps
	r.Inserted = Inserted(steps)
	if err != nil {
		r.Status, r.Error, r.Err = "error", err.Error(), err
		e.Logger.Warn("workbook failed", "file", file, "err", err)
	}
	return r
}

func outputPath(outDir, file string) string {
	return filepath.Join(outDir, filepath.Base(file))
}

// checkOutputs rejects batches where two sources share a base name, since
// their copies in outDir would overwrite each other.
func checkOutputs(files []string, outDir string) error {
	seen := make(map[string]string, len(files))
	for _, f := range files {
		out := outputPath(outDir, f)
		if prev, ok := seen[out]; ok {
			return fmt.Errorf("%w: %s and %s would both be written to %s — rename one or run them in separate batches",
				ErrOutputCollision, prev, f, out)
		}
		seen[out] = f
	}
	return nil
}

// Failed returns the results whose status is "error".
func Failed(results []FileResult) []FileResult {
	var failed []FileResult
	for _, r := range results {
		if r.Status != "ok" {
			failed = append(failed, r)
		}
	}
	return failed
}
