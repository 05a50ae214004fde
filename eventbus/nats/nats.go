// Package nats provides a NATS Core event bus for serveflow, for shipping
// request lifecycle events across process boundaries.
package nats

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/serveflow/eventbus"
)

// BusName is the name used to register this binding.
const BusName = "nats"

// connectTimeout bounds the initial dial so a missing broker fails boot
// quickly instead of hanging the embedder.
const connectTimeout = 5 * time.Second

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return wmnats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return wmnats.NewSubscriber(cfg, logger)
}

// Register registers the NATS bus with the default registry. Call it from
// an init() in an importing package, or explicitly before NewServer.
func Register() {
	eventbus.Register(BusName, Build)
}

// Build creates a new NATS bus.
func Build(ctx context.Context, cfg eventbus.Config, logger watermill.LoggerAdapter) (eventbus.Bus, error) {
	url := cfg.GetNATSURL()
	marshaler := &wmnats.NATSMarshaler{}
	options := []nc.Option{
		nc.Name("serveflow"),
		nc.Timeout(connectTimeout),
		nc.RetryOnFailedConnect(true),
	}

	publisher, err := PublisherFactory(
		wmnats.PublisherConfig{
			URL:         url,
			Marshaler:   marshaler,
			NatsOptions: options,
		},
		logger,
	)
	if err != nil {
		return eventbus.Bus{}, err
	}

	subscriber, err := SubscriberFactory(
		wmnats.SubscriberConfig{
			URL:         url,
			Unmarshaler: marshaler,
			NatsOptions: options,
		},
		logger,
	)
	if err != nil {
		return eventbus.Bus{}, err
	}

	return eventbus.Bus{
		Publisher:  publisher,
		Subscriber: subscriber,
	}, nil
}
