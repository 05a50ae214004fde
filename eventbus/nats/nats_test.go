package nats

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/serveflow/eventbus"
)

type testConfig struct {
	url string
}

func (c testConfig) GetEventBusSystem() string { return BusName }
func (c testConfig) GetEventTopic() string     { return "test.topic" }
func (c testConfig) GetEventFile() string      { return "" }
func (c testConfig) GetNATSURL() string        { return c.url }

type stubPublisher struct{ message.Publisher }

func (stubPublisher) Close() error { return nil }

type stubSubscriber struct{ message.Subscriber }

func (stubSubscriber) Close() error { return nil }

func TestRegister_AddsBusToDefaultRegistry(t *testing.T) {
	Register()
	assert.True(t, eventbus.DefaultRegistry.Has(BusName))
}

func TestBuild_PassesURLToFactories(t *testing.T) {
	origPub, origSub := PublisherFactory, SubscriberFactory
	t.Cleanup(func() { PublisherFactory, SubscriberFactory = origPub, origSub })

	var pubCfg wmnats.PublisherConfig
	var subCfg wmnats.SubscriberConfig
	PublisherFactory = func(cfg wmnats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		pubCfg = cfg
		return stubPublisher{}, nil
	}
	SubscriberFactory = func(cfg wmnats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		subCfg = cfg
		return stubSubscriber{}, nil
	}

	bus, err := Build(context.Background(), testConfig{url: "nats://broker:4222"}, watermill.NopLogger{})
	require.NoError(t, err)
	defer bus.Close()

	assert.Equal(t, "nats://broker:4222", pubCfg.URL)
	assert.Equal(t, "nats://broker:4222", subCfg.URL)
	assert.NotNil(t, bus.Publisher)
	assert.NotNil(t, bus.Subscriber)
}
