package runtime

import (
	"fmt"
	"sort"

	errspkg "github.com/drblury/serveflow/internal/runtime/errors"
)

// decoration is one named addition to a scope namespace. Either value or
// factory is set; factory decorations produce one instance per request or
// reply.
type decoration struct {
	value   any
	factory func() any
}

func (d decoration) instantiate() any {
	if d.factory != nil {
		return d.factory()
	}
	return d.value
}

// Decorators holds the three decoration namespaces of a scope: server,
// request and reply. A child delegates lookups to its parent instead of
// copying, so decorations added to the parent after the child exists are
// still visible below. Registration is boot-time only; lookups on the hot
// path read frozen maps.
type Decorators struct {
	parent  *Decorators
	server  map[string]decoration
	request map[string]decoration
	reply   map[string]decoration
}

func newDecorators() *Decorators {
	return &Decorators{
		server:  map[string]decoration{},
		request: map[string]decoration{},
		reply:   map[string]decoration{},
	}
}

func (d *Decorators) createChild() *Decorators {
	child := newDecorators()
	child.parent = d
	return child
}

// RegisterServer adds a shared value to the server namespace. The name
// must be unused across the whole delegation chain.
func (d *Decorators) RegisterServer(name string, value any) error {
	if err := d.checkName(name, d.HasServer); err != nil {
		return err
	}
	d.server[name] = decoration{value: value}
	return nil
}

// RegisterRequest adds a shared value to the request namespace.
func (d *Decorators) RegisterRequest(name string, value any) error {
	if err := d.checkName(name, d.HasRequest); err != nil {
		return err
	}
	d.request[name] = decoration{value: value}
	return nil
}

// RegisterRequestFactory adds a per-request decoration: the factory runs
// once per request on first access.
func (d *Decorators) RegisterRequestFactory(name string, factory func() any) error {
	if factory == nil {
		return errspkg.ErrDecoratorFactory
	}
	if err := d.checkName(name, d.HasRequest); err != nil {
		return err
	}
	d.request[name] = decoration{factory: factory}
	return nil
}

// RegisterReply adds a shared value to the reply namespace.
func (d *Decorators) RegisterReply(name string, value any) error {
	if err := d.checkName(name, d.HasReply); err != nil {
		return err
	}
	d.reply[name] = decoration{value: value}
	return nil
}

// RegisterReplyFactory adds a per-reply decoration.
func (d *Decorators) RegisterReplyFactory(name string, factory func() any) error {
	if factory == nil {
		return errspkg.ErrDecoratorFactory
	}
	if err := d.checkName(name, d.HasReply); err != nil {
		return err
	}
	d.reply[name] = decoration{factory: factory}
	return nil
}

func (d *Decorators) checkName(name string, taken func(string) bool) error {
	if name == "" {
		return errspkg.ErrDecoratorNameRequired
	}
	if taken(name) {
		return fmt.Errorf("%w: %q", errspkg.ErrDecoratorConflict, name)
	}
	return nil
}

// Server resolves a server decoration through the delegation chain.
func (d *Decorators) Server(name string) (any, bool) {
	for cur := d; cur != nil; cur = cur.parent {
		if dec, ok := cur.server[name]; ok {
			return dec.value, true
		}
	}
	return nil, false
}

// HasServer reports whether the name is taken anywhere in the chain.
func (d *Decorators) HasServer(name string) bool {
	_, ok := d.Server(name)
	return ok
}

// HasRequest reports whether a request decoration exists in the chain.
func (d *Decorators) HasRequest(name string) bool {
	_, ok := d.lookupRequest(name)
	return ok
}

// HasReply reports whether a reply decoration exists in the chain.
func (d *Decorators) HasReply(name string) bool {
	_, ok := d.lookupReply(name)
	return ok
}

func (d *Decorators) lookupRequest(name string) (decoration, bool) {
	for cur := d; cur != nil; cur = cur.parent {
		if dec, ok := cur.request[name]; ok {
			return dec, true
		}
	}
	return decoration{}, false
}

func (d *Decorators) lookupReply(name string) (decoration, bool) {
	for cur := d; cur != nil; cur = cur.parent {
		if dec, ok := cur.reply[name]; ok {
			return dec, true
		}
	}
	return decoration{}, false
}

// ServerNames lists the server decorations visible from this scope.
func (d *Decorators) ServerNames() []string {
	return d.names(func(cur *Decorators) map[string]decoration { return cur.server })
}

// RequestNames lists the request decorations visible from this scope.
func (d *Decorators) RequestNames() []string {
	return d.names(func(cur *Decorators) map[string]decoration { return cur.request })
}

// ReplyNames lists the reply decorations visible from this scope.
func (d *Decorators) ReplyNames() []string {
	return d.names(func(cur *Decorators) map[string]decoration { return cur.reply })
}

func (d *Decorators) names(namespace func(*Decorators) map[string]decoration) []string {
	seen := map[string]struct{}{}
	for cur := d; cur != nil; cur = cur.parent {
		for name := range namespace(cur) {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
