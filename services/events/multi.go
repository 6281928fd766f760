// Package eventsvc holds the sinks of ledger mutation events.
package eventsvc

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/bursar/core"
)

// Multi fans events out to every publisher, returning the first failure once all were tried.
type Multi []core.EventPublisher

var _ core.EventPublisher = (Multi)(nil) // interface compliance check

func (m Multi) Publish(ctx context.Context, events ...core.Event) error {
	var firstErr error
	for _, p := range m {
		if err := p.Publish(ctx, events...); err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "publishing to %T", p)
		}
	}
	return firstErr
}

// Close closes the publishers holding connections.
func (m Multi) Close() error {
	var firstErr error
	for _, p := range m {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []core.Event
}

var _ core.EventPublisher = (*Recorder)(nil) // interface compliance check

func (r *Recorder) Publish(_ context.Context, events ...core.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, events...)
	return nil
}

// Types lists the types of the recorded events, in publish order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.Events))
	for _, evt := range r.Events {
		types = append(types, evt.Type)
	}
	return types
}
