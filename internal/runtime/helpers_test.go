package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	configpkg "github.com/drblury/serveflow/internal/runtime/config"
	loggingpkg "github.com/drblury/serveflow/internal/runtime/logging"
)

func testLogger() loggingpkg.ServiceLogger {
	return loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestServer(t *testing.T, conf *configpkg.Config) *Server {
	t.Helper()
	if conf == nil {
		conf = &configpkg.Config{AppName: "test"}
	}
	return NewServer(conf, testLogger(), context.Background(), ServerDeps{})
}

// newTestExchange builds a request/reply pair detached from a server, for
// unit tests of hooks and replies.
func newTestExchange(method, target string, body io.Reader) (*Request, *Reply, *httptest.ResponseRecorder) {
	raw := httptest.NewRequest(method, target, body)
	rec := httptest.NewRecorder()
	req := newRequest(raw, "test-request", nil, testLogger())
	rep := newReply(rec, nil)
	return req, rep, rec
}
