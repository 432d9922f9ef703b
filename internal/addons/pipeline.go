package addons

import (
	"context"
	"fmt"
)

// execContext tells runPipeline where a stage runs
type execContext int

const (
	onCaller execContext = iota
	onScheduler
)

// stage is one step of a pipeline. Returning done stops the pipeline
// early without error.
type stage[S any] struct {
	name string
	exec execContext
	run  func(ctx context.Context, st *S) (done bool, err error)
}

// runPipeline runs stages in order, each in its declared context. The
// caller's goroutine serves as the background context, so the pipeline
// must not be started from the scheduler.
func runPipeline[S any](ctx context.Context, sched Scheduler, st *S, stages ...stage[S]) error {
	for _, s := range stages {
		var (
			done bool
			err  error
		)
		switch s.exec {
		case onScheduler:
			if perr := postWait(ctx, sched, func() { done, err = s.run(ctx, st) }); perr != nil {
				return perr
			}
		default:
			if err := ctx.Err(); err != nil {
				return err
			}
			done, err = s.run(ctx, st)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		if done {
			return nil
		}
	}
	return nil
}
