package search

import (
	"context"
	"runtime"
	"sync"

	"quietlibrary/config"
)

// extractJob is one file handed to the extraction pool.
type extractJob struct {
	Path string
}

// ExtractResult is the per-file outcome of pooled extraction. Docs holds the
// index rows for the file; Err is set when every extraction path failed.
type ExtractResult struct {
	Path string
	Docs []IndexDocument
	Err  error
}

// extractWorkerCount sizes the pool. Extraction is a mix of disk I/O and
// parsing, and the native PDF path is serialized anyway, so the count stays
// modest.
func extractWorkerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	n := runtime.NumCPU()
	if n < config.MinExtractWorkers {
		n = config.MinExtractWorkers
	}
	if n > config.MaxExtractWorkers {
		n = config.MaxExtractWorkers
	}
	return n
}

// extractAll runs extraction for every path through a bounded worker pool and
// streams results to onResult in completion order. onResult runs on the
// collector goroutine, so it may touch shared state without locking. The
// pool drains early when ctx is cancelled.
func (c *Context) extractAll(ctx context.Context, paths []string, workers int, onResult func(ExtractResult)) {
	if len(paths) == 0 {
		return
	}

	jobs := make(chan extractJob, len(paths))
	results := make(chan ExtractResult, extractWorkerCount(workers))

	var wg sync.WaitGroup
	for i := 0; i < extractWorkerCount(workers); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				docs, err := c.extractForIndex(job.Path)
				select {
				case results <- ExtractResult{Path: job.Path, Docs: docs, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- extractJob{Path: path}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		onResult(res)
	}
}
