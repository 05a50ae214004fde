package runtime

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
)

func parseBody(t *testing.T, method, contentType, body string, limit int64) (*Request, error) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, rep, _ := newTestExchange(method, "/", reader)
	if contentType != "" {
		req.Raw().Header.Set("Content-Type", contentType)
	}
	parsers := newBodyParsers()
	return req, parsers.parse(req, rep, limit)
}

func TestBodyParsers_JSONBodyIsParsed(t *testing.T) {
	req, err := parseBody(t, http.MethodPost, "application/json", `{"name":"gadget"}`, 0)
	require.NoError(t, err)

	body, ok := req.Body.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gadget", body["name"])
	assert.Equal(t, []byte(`{"name":"gadget"}`), req.RawBody())
}

func TestBodyParsers_GetRequestsSkipParsing(t *testing.T) {
	req, err := parseBody(t, http.MethodGet, "application/json", `{"ignored":true}`, 0)
	require.NoError(t, err)
	assert.Nil(t, req.Body)
}

func TestBodyParsers_UnknownContentTypeIs415(t *testing.T) {
	_, err := parseBody(t, http.MethodPost, "application/msgpack", "data", 0)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnsupportedMediaType, httpErr.StatusCode)
}

func TestBodyParsers_MissingContentTypeIs415(t *testing.T) {
	_, err := parseBody(t, http.MethodPost, "", "data", 0)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnsupportedMediaType, httpErr.StatusCode)
}

func TestBodyParsers_OversizeBodyIs413(t *testing.T) {
	_, err := parseBody(t, http.MethodPost, "application/json", `{"padding":"0123456789"}`, 4)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, httpErr.StatusCode)
}

func TestBodyParsers_MalformedJSONIs400(t *testing.T) {
	_, err := parseBody(t, http.MethodPost, "application/json", `{"broken`, 0)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "Invalid request body", httpErr.Message)
}

func TestBodyParsers_StructuredSuffixFallsBackToJSON(t *testing.T) {
	req, err := parseBody(t, http.MethodPost, "application/vnd.widget+json", `{"v":1}`, 0)
	require.NoError(t, err)

	body, ok := req.Body.(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, body["v"])
}

func TestBodyParsers_MediaTypeParametersIgnored(t *testing.T) {
	req, err := parseBody(t, http.MethodPost, "application/json; charset=utf-8", `{"v":1}`, 0)
	require.NoError(t, err)
	assert.NotNil(t, req.Body)
}

func TestBodyParsers_RegisterCustomParser(t *testing.T) {
	parsers := newBodyParsers()
	require.NoError(t, parsers.Register("text/csv", func(req *Request, body io.Reader) (any, error) {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		return strings.Split(strings.TrimSpace(string(data)), ","), nil
	}))

	req, rep, _ := newTestExchange(http.MethodPost, "/", strings.NewReader("a,b,c"))
	req.Raw().Header.Set("Content-Type", "text/csv")
	require.NoError(t, parsers.parse(req, rep, 0))
	assert.Equal(t, []string{"a", "b", "c"}, req.Body)
}

func TestBodyParsers_RegisterValidation(t *testing.T) {
	parsers := newBodyParsers()
	assert.ErrorIs(t, parsers.Register("", nil), errspkg.ErrContentTypeRequired)
	assert.ErrorIs(t, parsers.Register("text/csv", nil), errspkg.ErrParserRequired)
}
