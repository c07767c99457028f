package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"

	"github.com/jdxj/ncmconv/internal/ncm"
)

const releaseTimeout = 5 * time.Second

// ConvertFunc converts a single file.
type ConvertFunc func(ctx context.Context, input string) (*ncm.Output, error)

// Result is the outcome of one file. Exactly one of Output and Err is set.
type Result struct {
	File   string
	Output *ncm.Output
	Err    error
}

func (r Result) OK() bool {
	return r.Err == nil
}

type Summary struct {
	Total   int
	Success int
	Fail    int
}

func (s Summary) String() string {
	return fmt.Sprintf("Total: %d | Success: %d | Fail: %d", s.Total, s.Success, s.Fail)
}

// WorkerCount keeps a couple of cpus free on bigger machines and never goes below one.
func WorkerCount(cpus int) int {
	if cpus >= 4 {
		return cpus - 2
	}
	if cpus-1 < 1 {
		return 1
	}
	return cpus - 1
}

// Runner fans files out to a bounded pool and collects results in completion order.
type Runner struct {
	Workers int
	Convert ConvertFunc
	Log     *log.Entry
}

// Run converts every file. onResult is called from the calling goroutine only,
// once per file, as results complete.
func (r *Runner) Run(ctx context.Context, files []string, onResult func(Result)) (Summary, error) {
	summary := Summary{Total: len(files)}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return summary, err
	}
	defer func() {
		if err := pool.ReleaseTimeout(releaseTimeout); err != nil {
			r.logger().WithError(err).Warn("worker pool did not stop in time")
		}
	}()

	results := make(chan Result, len(files))
	wg := sync.WaitGroup{}
	for _, p := range files {
		in := p
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results <- r.convert(ctx, in)
		})
		if err != nil {
			wg.Done()
			results <- Result{File: in, Err: err}
		}
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.OK() {
			summary.Success++
		} else {
			summary.Fail++
		}
		if onResult != nil {
			onResult(res)
		}
	}
	return summary, nil
}

func (r *Runner) convert(ctx context.Context, input string) (res Result) {
	res.File = input
	defer func() {
		if v := recover(); v != nil {
			r.logger().WithField("file", input).Errorf("conversion panicked: %v", v)
			res.Output = nil
			res.Err = fmt.Errorf("panic: %v", v)
		}
	}()

	res.Output, res.Err = r.Convert(ctx, input)
	if res.Err != nil {
		res.Output = nil
	}
	return res
}

func (r *Runner) logger() *log.Entry {
	if r.Log != nil {
		return r.Log
	}
	return log.NewEntry(log.StandardLogger())
}
