// Package eventbus defines the contract for the pluggable buses serveflow
// publishes request lifecycle events on. Each binding (channel, file, nats)
// lives in its own sub-package and registers itself with the registry.
package eventbus

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Bus combines the publisher and subscriber pair produced by a builder.
// The engine only publishes; the subscriber side is exposed so embedders
// can consume the lifecycle stream in-process.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close releases both sides of the bus. In-memory buses where publisher
// and subscriber are the same value are closed once.
func (b Bus) Close() error {
	var errs []error
	if b.Publisher != nil {
		errs = append(errs, b.Publisher.Close())
	}
	if b.Subscriber != nil && !sameCloser(b.Publisher, b.Subscriber) {
		errs = append(errs, b.Subscriber.Close())
	}
	return errors.Join(errs...)
}

func sameCloser(pub message.Publisher, sub message.Subscriber) bool {
	p, ok := any(pub).(message.Subscriber)
	return ok && any(p) == any(sub)
}

// Builder creates a bus from the configuration. Each binding package
// provides a Builder and registers it under its system name.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Bus, error)

// Config provides the configuration values bindings need, without
// depending on the engine's full config package.
type Config interface {
	// GetEventBusSystem returns the binding name ("channel", "file", "nats").
	GetEventBusSystem() string

	// GetEventTopic returns the topic lifecycle events are published on.
	GetEventTopic() string

	// GetEventFile returns the path used by the file binding.
	GetEventFile() string

	// GetNATSURL returns the server URL used by the nats binding.
	GetNATSURL() string
}
