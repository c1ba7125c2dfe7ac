package asc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrCancelled marks files that were never started because the run was cancelled.
var ErrCancelled = errors.New("analysis cancelled")

// Input is one file of a batch. Open is called from the worker that analyses it.
type Input struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// Result is the outcome for one input. Exactly one of Report and Err is meaningful.
type Result struct {
	Name   string
	Report FileReport
	Err    error
}

// AnalyzeAll analyses every input in its own task and returns once all tasks are done.
// Results keep the input order. A failing or panicking file only fails its own Result.
func AnalyzeAll(ctx context.Context, inputs []Input, opts Options) []Result {
	results := make([]Result, len(inputs))
	workers := opts.Workers
	if workers <= 0 || workers > len(inputs) {
		workers = len(inputs)
	}
	semaphore := make(chan struct{}, max(workers, 1))

	var wg sync.WaitGroup
	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in Input) {
			defer wg.Done()
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				results[i] = Result{Name: in.Name, Err: fmt.Errorf("%s: %w", in.Name, ErrCancelled)}
				report(opts, results[i])
				return
			}
			defer func() { <-semaphore }()
			results[i] = analyzeInput(ctx, in, opts)
			report(opts, results[i])
		}(i, in)
	}
	wg.Wait()
	return results
}

func report(opts Options, res Result) {
	if opts.Progress != nil {
		opts.Progress(res)
	}
}

func analyzeInput(ctx context.Context, in Input, opts Options) (res Result) {
	res.Name = in.Name
	defer func() {
		if r := recover(); r != nil {
			res = Result{Name: in.Name, Err: fmt.Errorf("failed to process %s: %v", in.Name, r)}
		}
	}()
	if ctx.Err() != nil {
		res.Err = fmt.Errorf("%s: %w", in.Name, ErrCancelled)
		return
	}
	rc, err := in.Open()
	if err != nil {
		res.Err = fmt.Errorf("failed to open %s: %w", in.Name, err)
		return
	}
	defer rc.Close()
	rep, err := AnalyzeFile(in.Name, rc, opts)
	if err != nil {
		res.Err = fmt.Errorf("failed to process %s: %w", in.Name, err)
		return
	}
	res.Report = rep
	return
}
