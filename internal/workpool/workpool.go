// Package workpool bounds how many blocking jobs (ffmpeg processes,
// inference calls) run at once.
//
// Waiting for a slot honours the caller's context, so a client that goes away
// while queued never starts work. Once a job holds a slot it runs with a
// context detached from cancellation and is allowed to finish.
package workpool

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool is a named counting semaphore with in-flight accounting.
type Pool struct {
	name     string
	size     int64
	sem      *semaphore.Weighted
	inFlight atomic.Int64
	waiting  atomic.Int64
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	Name     string `json:"name"`
	Size     int    `json:"size"`
	InFlight int    `json:"in_flight"`
	Waiting  int    `json:"waiting"`
}

// New creates a pool allowing size concurrent jobs. Sizes below 1 are raised to 1.
func New(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		name: name,
		size: int64(size),
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// Name returns the pool name.
func (p *Pool) Name() string { return p.name }

// Do waits for a free slot and runs fn in the calling goroutine.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	p.waiting.Add(1)
	err := p.sem.Acquire(ctx, 1)
	p.waiting.Add(-1)
	if err != nil {
		return fmt.Errorf("%s pool: waiting for slot: %w", p.name, err)
	}
	defer p.sem.Release(1)

	p.inFlight.Add(1)
	defer p.inFlight.Add(-1)

	return fn(context.WithoutCancel(ctx))
}

// Stats reports the pool's current occupancy.
func (p *Pool) Stats() Stats {
	return Stats{
		Name:     p.name,
		Size:     int(p.size),
		InFlight: int(p.inFlight.Load()),
		Waiting:  int(p.waiting.Load()),
	}
}

// Run is Do for jobs that produce a value.
func Run[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}
