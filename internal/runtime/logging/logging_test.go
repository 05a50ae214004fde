package logging

import (
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedLine struct {
	level  string
	msg    string
	err    error
	fields watermill.LogFields
}

// captureAdapter records every line so assertions can inspect them.
type captureAdapter struct {
	lines  *[]capturedLine
	fields watermill.LogFields
}

func newCaptureAdapter() *captureAdapter {
	return &captureAdapter{lines: &[]capturedLine{}}
}

func (c *captureAdapter) record(level, msg string, err error, fields watermill.LogFields) {
	merged := c.fields.Add(fields)
	*c.lines = append(*c.lines, capturedLine{level: level, msg: msg, err: err, fields: merged})
}

func (c *captureAdapter) Error(msg string, err error, fields watermill.LogFields) {
	c.record("error", msg, err, fields)
}
func (c *captureAdapter) Info(msg string, fields watermill.LogFields)  { c.record("info", msg, nil, fields) }
func (c *captureAdapter) Debug(msg string, fields watermill.LogFields) { c.record("debug", msg, nil, fields) }
func (c *captureAdapter) Trace(msg string, fields watermill.LogFields) { c.record("trace", msg, nil, fields) }

func (c *captureAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &captureAdapter{lines: c.lines, fields: c.fields.Add(fields)}
}

func TestWatermillServiceLogger_ForwardsLevelsAndFields(t *testing.T) {
	adapter := newCaptureAdapter()
	logger := NewWatermillServiceLogger(adapter)

	logger.Info("started", LogFields{"port": 8080})
	logger.Debug("probing", nil)
	boom := errors.New("boom")
	logger.Error("failed", boom, LogFields{"attempt": 2})

	lines := *adapter.lines
	require.Len(t, lines, 3)

	assert.Equal(t, "info", lines[0].level)
	assert.Equal(t, "started", lines[0].msg)
	assert.Equal(t, 8080, lines[0].fields["port"])

	assert.Equal(t, "debug", lines[1].level)

	assert.Equal(t, "error", lines[2].level)
	assert.Equal(t, boom, lines[2].err)
}

func TestWatermillServiceLogger_WithAccumulatesFields(t *testing.T) {
	adapter := newCaptureAdapter()
	logger := NewWatermillServiceLogger(adapter).With(LogFields{"request_id": "r-1"})

	logger.Info("handled", LogFields{"status": 200})

	lines := *adapter.lines
	require.Len(t, lines, 1)
	assert.Equal(t, "r-1", lines[0].fields["request_id"])
	assert.Equal(t, 200, lines[0].fields["status"])
}

func TestNewSlogServiceLogger_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewSlogServiceLogger(nil) })
	assert.Panics(t, func() { NewWatermillServiceLogger(nil) })
	assert.Panics(t, func() { NewWatermillAdapter(nil) })
}

func TestNewSlogServiceLogger_WritesStructuredOutput(t *testing.T) {
	var buf strings.Builder
	logger := NewSlogServiceLogger(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.Info("request completed", LogFields{"status": 200})

	out := buf.String()
	assert.Contains(t, out, "request completed")
	assert.Contains(t, out, "status")
}

func TestNewWatermillAdapter_RoundTrip(t *testing.T) {
	capture := newCaptureAdapter()
	service := NewWatermillServiceLogger(capture)
	adapter := NewWatermillAdapter(service)

	adapter.With(watermill.LogFields{"topic": "events"}).Info("published", watermill.LogFields{"count": 1})

	lines := *capture.lines
	require.Len(t, lines, 1)
	assert.Equal(t, "events", lines[0].fields["topic"])
	assert.Equal(t, 1, lines[0].fields["count"])
}
