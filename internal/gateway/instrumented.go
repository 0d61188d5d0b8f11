package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// QueryObserver receives timings for every gateway call.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// Instrumented bounds each call with a timeout, records its latency and classifies
// backend failures as ErrUnavailable.
type Instrumented struct {
	next     Gateway
	timeout  time.Duration
	observer QueryObserver
}

// NewInstrumented decorates next. A zero timeout disables the deadline.
func NewInstrumented(next Gateway, timeout time.Duration, observer QueryObserver) *Instrumented {
	return &Instrumented{next: next, timeout: timeout, observer: observer}
}

// Query implements Gateway.
func (g *Instrumented) Query(ctx context.Context, table string, q Query, dest interface{}) error {
	ctx, done := g.begin(ctx, "select", table)
	err := g.next.Query(ctx, table, q, dest)
	done()
	return classify("select", table, err)
}

// Insert implements Gateway.
func (g *Instrumented) Insert(ctx context.Context, table string, row Row) (string, error) {
	ctx, done := g.begin(ctx, "insert", table)
	id, err := g.next.Insert(ctx, table, row)
	done()
	return id, classify("insert", table, err)
}

// Update implements Gateway.
func (g *Instrumented) Update(ctx context.Context, table string, match Match, patch Row) (int64, error) {
	ctx, done := g.begin(ctx, "update", table)
	rows, err := g.next.Update(ctx, table, match, patch)
	done()
	return rows, classify("update", table, err)
}

func (g *Instrumented) begin(ctx context.Context, op, table string) (context.Context, func()) {
	start := time.Now()
	cancel := context.CancelFunc(func() {})
	if g.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
	}
	return ctx, func() {
		cancel()
		if g.observer != nil {
			g.observer.ObserveDBQuery(op+":"+table, time.Since(start))
		}
	}
}

func classify(op, table string, err error) error {
	if err == nil || errors.Is(err, ErrDuplicate) || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, op, table, err)
}
