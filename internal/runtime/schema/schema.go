// Package schema compiles JSON Schema documents and validates requests and
// responses against them. Compiled validators are cached by schema id so
// routes sharing a schema pay the compilation cost once.
package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
	"github.com/drblury/serveflow/internal/runtime/jsoncodec"
)

// Violation describes a single constraint failure inside a validated
// document. Path is a JSON pointer into the document, Code the schema
// keyword class reported by the validator.
type Violation struct {
	Path    string `json:"path"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationError carries the complete set of violations found in one
// document. Section names the part of the request it belongs to (body,
// query, params, headers) when set by the caller.
type ValidationError struct {
	Section    string      `json:"-"`
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	switch len(e.Violations) {
	case 0:
		return "serveflow: validation failed"
	case 1:
		v := e.Violations[0]
		if v.Path == "" {
			return fmt.Sprintf("serveflow: validation failed: %s", v.Message)
		}
		return fmt.Sprintf("serveflow: validation failed: %s: %s", v.Path, v.Message)
	default:
		return fmt.Sprintf("serveflow: validation failed: %d violations", len(e.Violations))
	}
}

// Compiled is a ready-to-use validator for one schema document.
type Compiled struct {
	ID     string
	schema *gojsonschema.Schema
}

// Validate checks doc against the compiled schema. It returns nil when the
// document conforms, a *ValidationError listing every violation when it does
// not, and a plain error when the document cannot be inspected at all.
func (s *Compiled) Validate(doc any) error {
	normalized, err := jsoncodec.Normalize(doc)
	if err != nil {
		return fmt.Errorf("serveflow: document is not valid JSON: %w", err)
	}

	result, err := s.schema.Validate(gojsonschema.NewGoLoader(normalized))
	if err != nil {
		return fmt.Errorf("serveflow: schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]Violation, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, Violation{
			Path:    pointerFor(desc),
			Message: desc.Description(),
			Code:    desc.Type(),
		})
	}
	return &ValidationError{Violations: violations}
}

// pointerFor converts the validator's dotted field notation into a JSON
// pointer. Required-property failures are reported on the parent object, so
// the missing property name is appended to point at the absent field.
func pointerFor(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if field == "(root)" {
		field = ""
	}

	var b strings.Builder
	if field != "" {
		for _, seg := range strings.Split(field, ".") {
			b.WriteString("/")
			b.WriteString(seg)
		}
	}
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			b.WriteString("/")
			b.WriteString(prop)
		}
	}
	return b.String()
}

// Compiler registers shared schemas and compiles route schemas against them.
// Registration happens during boot; lookups may run concurrently while
// serving.
type Compiler struct {
	mu     sync.RWMutex
	shared map[string]any
	cache  map[string]*Compiled
}

// NewCompiler returns an empty schema compiler.
func NewCompiler() *Compiler {
	return &Compiler{
		shared: make(map[string]any),
		cache:  make(map[string]*Compiled),
	}
}

// AddSchema registers a shared schema addressable by its $id. Every schema
// compiled afterwards can reference it with $ref. Documents without $id or
// with an id already taken are rejected.
func (c *Compiler) AddSchema(doc any) error {
	normalized, err := jsoncodec.Normalize(doc)
	if err != nil {
		return fmt.Errorf("serveflow: schema document is not valid JSON: %w", err)
	}

	id := documentID(normalized)
	if id == "" {
		return errspkg.ErrSchemaID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.shared[id]; exists {
		return fmt.Errorf("%w: %q", errspkg.ErrSchemaDuplicate, id)
	}
	c.shared[id] = normalized
	return nil
}

// Compile builds a validator for doc. Documents carrying $id are cached; the
// same id returns the previously compiled validator. Anonymous documents are
// compiled fresh each call, which suits per-route schemas compiled once at
// registration.
func (c *Compiler) Compile(doc any) (*Compiled, error) {
	normalized, err := jsoncodec.Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("serveflow: schema document is not valid JSON: %w", err)
	}

	id := documentID(normalized)
	if id != "" {
		c.mu.RLock()
		cached, ok := c.cache[id]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}
	}

	compiled, err := c.compileDocument(id, normalized)
	if err != nil {
		return nil, err
	}

	if id != "" {
		c.mu.Lock()
		c.cache[id] = compiled
		c.mu.Unlock()
	}
	return compiled, nil
}

// CompileByID returns the validator for a schema previously registered with
// AddSchema, compiling it on first use.
func (c *Compiler) CompileByID(id string) (*Compiled, error) {
	c.mu.RLock()
	cached, hit := c.cache[id]
	source, known := c.shared[id]
	c.mu.RUnlock()

	if hit {
		return cached, nil
	}
	if !known {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrSchemaNotFound, id)
	}

	compiled, err := c.compileDocument(id, source)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[id] = compiled
	c.mu.Unlock()
	return compiled, nil
}

// HasSchema reports whether a shared schema with the given id is registered.
func (c *Compiler) HasSchema(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.shared[id]
	return ok
}

func (c *Compiler) compileDocument(id string, normalized any) (*Compiled, error) {
	loader := gojsonschema.NewSchemaLoader()

	c.mu.RLock()
	for sharedID, source := range c.shared {
		if sharedID == id {
			continue
		}
		if err := loader.AddSchemas(gojsonschema.NewGoLoader(source)); err != nil {
			c.mu.RUnlock()
			return nil, fmt.Errorf("serveflow: shared schema %q: %w", sharedID, err)
		}
	}
	c.mu.RUnlock()

	compiled, err := loader.Compile(gojsonschema.NewGoLoader(normalized))
	if err != nil {
		return nil, fmt.Errorf("serveflow: schema compile: %w", err)
	}
	return &Compiled{ID: id, schema: compiled}, nil
}

func documentID(normalized any) string {
	doc, ok := normalized.(map[string]any)
	if !ok {
		return ""
	}
	if id, ok := doc["$id"].(string); ok {
		return id
	}
	// Draft-04 documents carry their identifier in "id".
	if id, ok := doc["id"].(string); ok {
		return id
	}
	return ""
}
