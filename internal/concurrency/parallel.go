package concurrency

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"
)

// ParallelOptions configura el fan-out.
type ParallelOptions struct {
	// MaxWorkers limits in-flight branches. 0 launches every branch at once.
	MaxWorkers int

	// BranchTimeout is the deadline applied to each branch on its own.
	// 0 means the branch only ends with the parent context.
	BranchTimeout time.Duration
}

// DefaultOptions devuelve opciones predeterminadas: unbounded join-all, 30s per branch.
func DefaultOptions() ParallelOptions {
	return ParallelOptions{
		MaxWorkers:    0,
		BranchTimeout: 30 * time.Second,
	}
}

// Outcome is the settled state of one branch.
type Outcome[R any] struct {
	Index   int
	Value   R
	Err     error
	Elapsed time.Duration
}

// PanicError is recorded for a branch that panicked.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("branch panicked: %v", e.Value)
}

// ErrBranchTimeout is wrapped into the error of a branch that hit its own deadline.
var ErrBranchTimeout = errors.New("branch deadline exceeded")

// ProcessParallel runs itemFunc for every item and waits for all of them to settle.
// A failing, panicking or slow branch never cancels its siblings; its error lands
// in its Outcome. Outcomes are returned in input order.
func ProcessParallel[T any, R any](
	ctx context.Context,
	items []T,
	opts ParallelOptions,
	itemFunc func(ctx context.Context, index int, item T) (R, error),
) []Outcome[R] {
	out := make([]Outcome[R], len(items))
	if len(items) == 0 {
		return out
	}

	var sem chan struct{}
	if opts.MaxWorkers > 0 && opts.MaxWorkers < len(items) {
		sem = make(chan struct{}, opts.MaxWorkers)
	}

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if sem != nil {
				select {
				case sem <- struct{}{}:
					defer func() { <-sem }()
				case <-ctx.Done():
					out[i] = Outcome[R]{Index: i, Err: ctx.Err()}
					return
				}
			}
			out[i] = runBranch(ctx, i, items[i], opts.BranchTimeout, itemFunc)
		}(i)
	}
	wg.Wait()

	return out
}

// Both runs two heterogeneous tasks concurrently. Values only come back through
// the outcomes: a task abandoned on timeout yields its zero value and an error.
func Both[A any, B any](
	ctx context.Context,
	opts ParallelOptions,
	fa func(ctx context.Context) (A, error),
	fb func(ctx context.Context) (B, error),
) (Outcome[A], Outcome[B]) {
	outcomes := ProcessParallel(ctx, []int{0, 1}, opts, func(ctx context.Context, _ int, which int) (any, error) {
		if which == 0 {
			return fa(ctx)
		}
		return fb(ctx)
	})
	return narrow[A](outcomes[0]), narrow[B](outcomes[1])
}

func narrow[R any](o Outcome[any]) Outcome[R] {
	out := Outcome[R]{Index: o.Index, Err: o.Err, Elapsed: o.Elapsed}
	if v, ok := o.Value.(R); ok && o.Err == nil {
		out.Value = v
	}
	return out
}

// Errors collects the non-nil branch errors.
func Errors[R any](outcomes []Outcome[R]) []error {
	var errs []error
	for _, o := range outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

type branchResult[R any] struct {
	value R
	err   error
}

func runBranch[T any, R any](
	parent context.Context,
	index int,
	item T,
	timeout time.Duration,
	itemFunc func(ctx context.Context, index int, item T) (R, error),
) Outcome[R] {
	start := time.Now()

	ctx := parent
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, timeout)
		defer cancel()
	}

	done := make(chan branchResult[R], 1)
	go func() {
		var res branchResult[R]
		defer func() {
			if r := recover(); r != nil {
				res = branchResult[R]{err: &PanicError{Value: r, Stack: debug.Stack()}}
			}
			done <- res
		}()
		res.value, res.err = itemFunc(ctx, index, item)
	}()

	// A branch that ignores its context is abandoned once the deadline passes.
	select {
	case res := <-done:
		return Outcome[R]{Index: index, Value: res.value, Err: res.err, Elapsed: time.Since(start)}
	case <-ctx.Done():
		// the branch may have settled at the same instant
		select {
		case res := <-done:
			return Outcome[R]{Index: index, Value: res.value, Err: res.err, Elapsed: time.Since(start)}
		default:
		}
		err := ctx.Err()
		if parent.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s", ErrBranchTimeout, timeout)
		}
		return Outcome[R]{Index: index, Err: err, Elapsed: time.Since(start)}
	}
}
