// Package publisher fans game events out to external subscribers.
package publisher

import (
	"context"

	"github.com/foursigma/foursigma/internal/domain/model"
)

// Publisher delivers a processed event to the outside world.
type Publisher interface {
	Publish(ctx context.Context, e model.Event) error
	Close()
}

// Nop discards events. It is used when no broker is configured.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, model.Event) error { return nil }

// Close implements Publisher.
func (Nop) Close() {}

// Subject returns the broker subject for an event kind, e.g.
// "foursigma.session.finished".
func Subject(prefix string, kind model.EventKind) string {
	if prefix == "" {
		return string(kind)
	}
	return prefix + "." + string(kind)
}
