package runtime

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	"github.com/drblury/serveflow/internal/runtime/jsoncodec"
)

// BodyParser turns a request body into the value stored on Request.Body.
// Parsers run in the bodyParse state, after preParsing hooks.
type BodyParser func(req *Request, body io.Reader) (any, error)

// BodyParsers maps media types to parsers. application/json ships built
// in; embedders register further types at boot. Media types with a +json
// structured suffix fall back to the JSON parser.
type BodyParsers struct {
	parsers map[string]BodyParser
}

func newBodyParsers() *BodyParsers {
	return &BodyParsers{
		parsers: map[string]BodyParser{
			"application/json": parseJSONBody,
		},
	}
}

// Register adds a parser for a media type, replacing any existing one.
func (p *BodyParsers) Register(contentType string, parser BodyParser) error {
	if contentType == "" {
		return errspkg.ErrContentTypeRequired
	}
	if parser == nil {
		return errspkg.ErrParserRequired
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	p.parsers[mediaType] = parser
	return nil
}

// Lookup resolves the parser for a Content-Type header value.
func (p *BodyParsers) Lookup(contentType string) (BodyParser, bool) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	if parser, ok := p.parsers[mediaType]; ok {
		return parser, true
	}
	if strings.HasSuffix(mediaType, "+json") {
		parser, ok := p.parsers["application/json"]
		return parser, ok
	}
	return nil, false
}

// parse reads and decodes the request body in place. Requests without a
// body pass through untouched. An unknown content type yields 415, a body
// over limit 413 and a parser failure 400.
func (p *BodyParsers) parse(req *Request, rep *Reply, limit int64) error {
	raw := req.Raw()
	if raw.Body == nil || raw.Body == http.NoBody {
		return nil
	}
	switch req.Method {
	case http.MethodGet, http.MethodHead:
		return nil
	}
	if raw.ContentLength == 0 {
		return nil
	}

	contentType := raw.Header.Get("Content-Type")
	if contentType == "" {
		return newStatusError(http.StatusUnsupportedMediaType)
	}
	parser, ok := p.Lookup(contentType)
	if !ok {
		return newStatusError(http.StatusUnsupportedMediaType)
	}

	body := raw.Body
	if limit > 0 {
		body = http.MaxBytesReader(rep.w, raw.Body, limit)
	}
	parsed, err := parser(req, body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return newStatusError(http.StatusRequestEntityTooLarge)
		}
		return WrapHTTPError(http.StatusBadRequest, "Invalid request body", err)
	}
	req.Body = parsed
	return nil
}

func parseJSONBody(req *Request, body io.Reader) (any, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	req.rawBody = data
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := jsoncodec.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}
