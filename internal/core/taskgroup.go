package core

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Policy decides what a TaskGroup does with siblings once a task fails
type Policy int

const (
	// RunAll lets every task finish so each one reports its own status
	RunAll Policy = iota
	// CancelOnFailure cancels the group context after the first failure.
	// Tasks still run to their own completion; they see ctx.Done()
	CancelOnFailure
)

// Result is the exit code of one task in a group
type Result struct {
	Name string
	Code int
}

// Results are kept in the order tasks were started
type Results []Result

// Code is the aggregate exit code: 0 when every task succeeded, otherwise
// the code of the first failed task in start order
func (rs Results) Code() int {
	for _, r := range rs {
		if r.Code != 0 {
			return r.Code
		}
	}
	return 0
}

// Failed lists the names of the failed tasks
func (rs Results) Failed() []string {
	var names []string
	for _, r := range rs {
		if r.Code != 0 {
			names = append(names, r.Name)
		}
	}
	return names
}

// errTaskFailed cancels a CancelOnFailure group. Exit codes travel in
// Results, never as errors
var errTaskFailed = errors.New("task failed")

// TaskGroup runs a fixed set of tasks concurrently and joins all of them
type TaskGroup struct {
	ctx    context.Context
	policy Policy
	eg     *errgroup.Group

	mu      sync.Mutex
	results Results
}

// NewTaskGroup creates a group whose tasks share a context derived from ctx.
// Under RunAll the context is never cancelled by the group
func NewTaskGroup(ctx context.Context, policy Policy) *TaskGroup {
	g := &TaskGroup{ctx: ctx, policy: policy}
	if policy == CancelOnFailure {
		g.eg, g.ctx = errgroup.WithContext(ctx)
	} else {
		g.eg = &errgroup.Group{}
	}
	return g
}

// Go starts task in its own goroutine. Tasks start in call order
func (g *TaskGroup) Go(name string, task func(ctx context.Context) int) {
	g.mu.Lock()
	idx := len(g.results)
	g.results = append(g.results, Result{Name: name})
	g.mu.Unlock()

	g.eg.Go(func() error {
		code := task(g.ctx)

		g.mu.Lock()
		g.results[idx].Code = code
		g.mu.Unlock()

		if code != 0 && g.policy == CancelOnFailure {
			return errTaskFailed
		}
		return nil
	})
}

// Wait blocks until every task has returned and reports their results
func (g *TaskGroup) Wait() Results {
	// The only error is errTaskFailed; the codes already say which task
	_ = g.eg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return append(Results(nil), g.results...)
}

// Aggregate folds exit codes the same way Results.Code does
func Aggregate(codes ...int) int {
	for _, code := range codes {
		if code != 0 {
			return code
		}
	}
	return 0
}
