package runtime

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	idspkg "github.com/drblury/serveflow/internal/runtime/ids"
	"github.com/drblury/serveflow/internal/runtime/jsoncodec"
)

// Metadata keys set on every lifecycle event message, so subscribers can
// filter without decoding the payload.
const (
	MetadataKeyRequestID = "serveflow_request_id"
	MetadataKeyRoute     = "serveflow_route"
	MetadataKeyStatus    = "serveflow_status"
)

// RequestEvent is the lifecycle record published to the event bus after a
// request completes, including aborted and failed requests.
type RequestEvent struct {
	ID         string    `json:"id"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Route      string    `json:"route,omitempty"`
	Status     int       `json:"status"`
	Error      string    `json:"error,omitempty"`
	Aborted    bool      `json:"aborted,omitempty"`
	RemoteAddr string    `json:"remote_addr,omitempty"`
	BytesOut   int64     `json:"bytes_out,omitempty"`
	ElapsedNs  int64     `json:"elapsed_ns"`
	At         time.Time `json:"at"`
}

func newRequestEvent(req *Request, rep *Reply, status int, reqErr error, aborted bool, elapsed time.Duration) RequestEvent {
	event := RequestEvent{
		ID:         req.ID,
		Method:     req.Method,
		Path:       req.Path,
		Status:     status,
		Aborted:    aborted,
		RemoteAddr: req.RemoteAddr(),
		BytesOut:   rep.wrote,
		ElapsedNs:  int64(elapsed),
		At:         time.Now().UTC(),
	}
	if req.route != nil {
		event.Route = req.route.Pattern()
	}
	if reqErr != nil {
		event.Error = reqErr.Error()
	}
	return event
}

// NewMessageFromEvent converts a RequestEvent into a Watermill message
// with the standard metadata for subscriber-side filtering.
func NewMessageFromEvent(event RequestEvent) (*message.Message, error) {
	payload, err := jsoncodec.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request event: %w", err)
	}

	msg := message.NewMessage(idspkg.New(), payload)
	msg.Metadata.Set(MetadataKeyRequestID, event.ID)
	if event.Route != "" {
		msg.Metadata.Set(MetadataKeyRoute, event.Route)
	}
	msg.Metadata.Set(MetadataKeyStatus, strconv.Itoa(event.Status))
	return msg, nil
}

// PublishEvent marshals the event and publishes it to the provided topic.
func PublishEvent(ctx context.Context, publisher message.Publisher, topic string, event RequestEvent) error {
	if publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	if topic == "" {
		return errspkg.ErrTopicRequired
	}

	msg, err := NewMessageFromEvent(event)
	if err != nil {
		return err
	}

	if ctx != nil {
		msg.SetContext(ctx)
	}

	return publisher.Publish(topic, msg)
}

// PublishEvent emits the event using the server publisher and configured
// topic, so embedders can publish their own records onto the same stream.
func (s *Server) PublishEvent(ctx context.Context, event RequestEvent) error {
	if s == nil || s.publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	return PublishEvent(ctx, s.publisher, s.eventTopic(), event)
}
