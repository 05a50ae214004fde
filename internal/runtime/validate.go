package runtime

import (
	"errors"
	"fmt"
	"strings"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	"github.com/drblury/serveflow/internal/runtime/schema"
)

// validateRequest checks the declared request sections in order: params,
// query, headers, body. The first failing section aborts with its full
// violation list; later sections are not evaluated.
func (r *Route) validateRequest(req *Request) error {
	cs := r.compiled
	if cs == nil {
		return nil
	}
	if cs.params != nil {
		if err := validateSection(cs.params, "params", paramsDocument(req)); err != nil {
			return err
		}
	}
	if cs.query != nil {
		if err := validateSection(cs.query, "query", queryDocument(req)); err != nil {
			return err
		}
	}
	if cs.headers != nil {
		if err := validateSection(cs.headers, "headers", headerDocument(req)); err != nil {
			return err
		}
	}
	if cs.body != nil {
		if err := validateSection(cs.body, "body", req.Body); err != nil {
			return err
		}
	}
	return nil
}

func validateSection(compiled *schema.Compiled, section string, doc any) error {
	err := compiled.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		ve.Section = section
		return ve
	}
	return err
}

// validateResponse checks the payload against the response schema declared
// for the exact status code. A mismatch is an internal failure, not a
// client error: the declared contract was broken by the handler. Byte and
// string payloads bypass validation the same way they bypass
// serialization.
func (r *Route) validateResponse(status int, payload any) error {
	cs := r.compiled
	if cs == nil || len(cs.response) == 0 {
		return nil
	}
	compiled, ok := cs.response[status]
	if !ok {
		return nil
	}
	switch payload.(type) {
	case []byte, string:
		return nil
	}
	if err := compiled.Validate(payload); err != nil {
		return fmt.Errorf("%w: status %d: %v", errspkg.ErrResponseInvalid, status, err)
	}
	return nil
}

// paramsDocument shapes route parameters for validation. Parameters stay
// strings; schemas declare string types and patterns.
func paramsDocument(req *Request) any {
	doc := make(map[string]any, len(req.Params))
	for k, v := range req.Params {
		doc[k] = v
	}
	return doc
}

// queryDocument flattens the query string: single values become strings,
// repeated keys become arrays.
func queryDocument(req *Request) any {
	values := req.QueryValues()
	doc := make(map[string]any, len(values))
	for k, vs := range values {
		if len(vs) == 1 {
			doc[k] = vs[0]
		} else {
			doc[k] = vs
		}
	}
	return doc
}

// headerDocument lowercases header names and joins repeated values, the
// shape header schemas are written against.
func headerDocument(req *Request) any {
	header := req.Raw().Header
	doc := make(map[string]any, len(header))
	for k, vs := range header {
		doc[strings.ToLower(k)] = strings.Join(vs, ", ")
	}
	return doc
}
