// Package channel provides an in-memory Go channel event bus for serveflow.
// It is the default binding, suited to tests and single-process embedders.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/drblury/serveflow/eventbus"
)

// BusName is the name used to register this binding.
const BusName = "channel"

// Factory allows overriding the channel creation for testing.
var Factory = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	eventbus.Register(BusName, Build)
}

// Build creates a new in-memory channel bus. Events published before any
// subscriber attaches are dropped, which suits fire-and-forget lifecycle
// records.
func Build(ctx context.Context, cfg eventbus.Config, logger watermill.LoggerAdapter) (eventbus.Bus, error) {
	pub, sub := Factory(gochannel.Config{}, logger)
	return eventbus.Bus{
		Publisher:  pub,
		Subscriber: sub,
	}, nil
}
