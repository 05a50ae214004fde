package runtime

import (
	"fmt"
	"net/http"
	"strconv"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	"github.com/drblury/serveflow/internal/runtime/jsoncodec"
)

// Reply accumulates the response until it is written exactly once. Status
// and header mutations after the write panic; Send after the write returns
// ErrReplyAlreadySent. The lifecycle checks Sent after every phase and
// hook, so an early Send skips everything that would otherwise follow.
type Reply struct {
	status int
	body   any
	sent   bool
	wrote  int64

	w      http.ResponseWriter
	scope  *Scope
	values map[string]any
}

func newReply(w http.ResponseWriter, scope *Scope) *Reply {
	return &Reply{w: w, scope: scope}
}

// Status sets the response status code. The default is 200.
func (r *Reply) Status(code int) *Reply {
	if r.sent {
		panic(errspkg.ErrReplyAlreadySent)
	}
	r.status = code
	return r
}

// StatusCode returns the status the reply will be (or was) written with.
func (r *Reply) StatusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Header sets a response header, replacing any existing value.
func (r *Reply) Header(key, value string) *Reply {
	if r.sent {
		panic(errspkg.ErrReplyAlreadySent)
	}
	r.w.Header().Set(key, value)
	return r
}

// Headers exposes the live response header map.
func (r *Reply) Headers() http.Header {
	return r.w.Header()
}

// Sent reports whether the response has been written.
func (r *Reply) Sent() bool {
	return r.sent
}

// writtenStatus is the status actually put on the wire, 0 when nothing
// was written.
func (r *Reply) writtenStatus() int {
	if !r.sent {
		return 0
	}
	return r.status
}

// Body returns the payload recorded for serialization. Before the handler
// runs it is nil; after an explicit Send it is whatever was sent.
func (r *Reply) Body() any {
	return r.body
}

// Send serializes the payload and writes the response immediately,
// bypassing the remaining lifecycle states. Calling it twice returns
// ErrReplyAlreadySent.
func (r *Reply) Send(payload any) error {
	if r.sent {
		return errspkg.ErrReplyAlreadySent
	}
	body, contentType, err := serializePayload(payload)
	if err != nil {
		return err
	}
	r.body = payload
	return r.write(r.StatusCode(), body, contentType)
}

// Redirect writes a redirect response with the given status and target.
// A zero status defaults to 302.
func (r *Reply) Redirect(status int, location string) error {
	if r.sent {
		return errspkg.ErrReplyAlreadySent
	}
	if status == 0 {
		status = http.StatusFound
	}
	r.w.Header().Set("Location", location)
	return r.write(status, nil, "")
}

// Get resolves a reply-scope decoration. Factory decorations are
// instantiated once per reply and cached.
func (r *Reply) Get(name string) (any, error) {
	if r.values != nil {
		if v, ok := r.values[name]; ok {
			return v, nil
		}
	}
	dec, ok := r.scope.decorators.lookupReply(name)
	if !ok {
		return nil, fmt.Errorf("%w: reply decoration %q", errspkg.ErrDecoratorNotFound, name)
	}
	v := dec.instantiate()
	if r.values == nil {
		r.values = map[string]any{}
	}
	r.values[name] = v
	return v, nil
}

// writeJSON writes v as a JSON body with the given status. Used for error
// envelopes and the orchestrated send state.
func (r *Reply) writeJSON(status int, v any) error {
	if r.sent {
		return errspkg.ErrReplyAlreadySent
	}
	body, err := jsoncodec.Marshal(v)
	if err != nil {
		return err
	}
	return r.write(status, body, "application/json; charset=utf-8")
}

func (r *Reply) write(status int, body []byte, defaultContentType string) error {
	if r.sent {
		return errspkg.ErrReplyAlreadySent
	}
	header := r.w.Header()
	if defaultContentType != "" && header.Get("Content-Type") == "" {
		header.Set("Content-Type", defaultContentType)
	}
	if len(body) > 0 {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}
	r.status = status
	r.w.WriteHeader(status)
	r.sent = true
	if len(body) > 0 {
		n, err := r.w.Write(body)
		r.wrote = int64(n)
		if err != nil {
			return fmt.Errorf("serveflow: writing response body: %w", err)
		}
	}
	return nil
}

// serializePayload turns a handler payload into wire bytes and the content
// type used when none is set explicitly. Byte slices and strings bypass
// JSON encoding.
func serializePayload(payload any) ([]byte, string, error) {
	switch v := payload.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "application/octet-stream", nil
	case string:
		return []byte(v), "text/plain; charset=utf-8", nil
	default:
		body, err := jsoncodec.Marshal(payload)
		if err != nil {
			return nil, "", fmt.Errorf("serveflow: serializing response payload: %w", err)
		}
		return body, "application/json; charset=utf-8", nil
	}
}
