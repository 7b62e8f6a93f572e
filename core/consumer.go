package core

import (
	"context"
	"fmt"
	"time"
)

// Consumer runs jobs from a fixed set of categories on the goroutine that
// calls it. It is the only way CategoryMainThread jobs execute, and it is
// how a host loop lends its own goroutine to the Center.
//
// A Consumer is not safe for concurrent use; each goroutine that pumps jobs
// should own its own Consumer.
type Consumer struct {
	center     *Center
	categories []Category
	ctx        context.Context
}

// NewConsumer creates a Consumer for categories, which defaults to
// CategoryMainThread. It panics on an invalid category.
func NewConsumer(center *Center, categories ...Category) *Consumer {
	if center == nil {
		panic("jobcenter: NewConsumer with nil center")
	}
	if len(categories) == 0 {
		categories = []Category{CategoryMainThread}
	}
	for _, cat := range categories {
		if !cat.Valid() {
			panic(fmt.Errorf("%w: %d", ErrInvalidCategory, int(cat)))
		}
	}
	return &Consumer{
		center:     center,
		categories: append([]Category(nil), categories...),
		ctx:        context.Background(),
	}
}

// WithContext returns a copy of the Consumer that passes ctx to job bodies.
func (c *Consumer) WithContext(ctx context.Context) *Consumer {
	cp := *c
	cp.ctx = ctx
	return &cp
}

func (c *Consumer) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

// Consume runs at most one ready job and reports whether it did.
func (c *Consumer) Consume() bool {
	job, ok := c.center.claim(c.categories)
	if !ok {
		return false
	}
	job.invoke(c.ctx, ConsumerExecutorID)
	return true
}

// ConsumeAll runs jobs until none of the Consumer's categories has a ready
// job, and returns how many ran. Jobs made ready by the ones it runs are
// consumed too.
func (c *Consumer) ConsumeAll() int {
	n := 0
	for c.Consume() {
		n++
	}
	return n
}

// ConsumeFor runs jobs until the queues are empty or budget has elapsed.
// A job that starts before the deadline always runs to completion.
func (c *Consumer) ConsumeFor(budget time.Duration) int {
	deadline := time.Now().Add(budget)
	n := 0
	for time.Now().Before(deadline) && c.Consume() {
		n++
	}
	return n
}
