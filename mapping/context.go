package mapping

import (
	"reflect"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

const pathCacheSize = 2048

// Context is the metadata registry. Entity metadata is built once per type
// (concurrent requests for the same type are deduplicated) and resolved paths
// are cached, so pipeline rendering stays a pure in-memory lookup.
type Context struct {
	mu       sync.RWMutex
	entities map[reflect.Type]*Entity
	group    singleflight.Group
	paths    *lru.TwoQueueCache[string, Path]
}

// NewContext creates an empty metadata registry.
func NewContext() (*Context, error) {
	paths, err := lru.New2Q[string, Path](pathCacheSize)
	if err != nil {
		return nil, errors.Wrap(err, "mapping: path cache")
	}
	return &Context{
		entities: make(map[reflect.Type]*Entity),
		paths:    paths,
	}, nil
}

// Entity returns the metadata for domainType, building it on first use.
// domainType may be a value, a pointer, or a reflect.Type.
func (c *Context) Entity(domainType any) (*Entity, error) {
	t, ok := domainType.(reflect.Type)
	if !ok {
		t = reflect.TypeOf(domainType)
	}
	if t == nil {
		return nil, errors.New("mapping: nil domain type")
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	c.mu.RLock()
	e, hit := c.entities[t]
	c.mu.RUnlock()
	if hit {
		return e, nil
	}

	v, err, _ := c.group.Do(t.String(), func() (any, error) {
		built, err := newEntity(t)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entities[t] = built
		c.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Entity), nil
}

// Path is the result of resolving a dotted property path: the wire-level
// target with every resolvable segment renamed, unresolvable segments kept
// literal.
type Path struct {
	raw      string
	target   string
	resolved bool
	leaf     Property
}

// Raw returns the property path as given.
func (p Path) Raw() string { return p.raw }

// Target returns the mapped wire-level path.
func (p Path) Target() string { return p.target }

// Resolved reports whether every segment mapped against metadata.
func (p Path) Resolved() bool { return p.resolved }

// Leaf returns the final segment's property metadata, valid only when the
// path fully resolved.
func (p Path) Leaf() Property { return p.leaf }

// Resolve maps a dotted property path against entity's metadata. Segments
// without a matching property pass through literally and mark the path
// unresolved; it is the caller's policy (strict vs relaxed) whether that is
// an error.
func (c *Context) Resolve(entity *Entity, path string) (Path, error) {
	if entity == nil {
		return Path{}, errors.New("mapping: nil entity")
	}
	if path == "" {
		return Path{}, errors.New("mapping: empty path")
	}

	key := entity.typ.String() + "\x00" + path
	if p, ok := c.paths.Get(key); ok {
		return p, nil
	}

	p := c.resolve(entity, path)
	c.paths.Add(key, p)
	return p, nil
}

func (c *Context) resolve(entity *Entity, path string) Path {
	segments := strings.Split(path, ".")
	targets := make([]string, 0, len(segments))

	resolved := true
	var leaf Property
	current := entity

	for i, seg := range segments {
		if current == nil {
			resolved = false
			targets = append(targets, seg)
			continue
		}
		prop, ok := current.Property(seg)
		if !ok {
			resolved = false
			targets = append(targets, seg)
			current = nil
			continue
		}
		targets = append(targets, prop.FieldName)
		leaf = prop

		current = nil
		if prop.IsEntity() && i < len(segments)-1 {
			if next, err := c.Entity(prop.Type); err == nil {
				current = next
			}
		}
	}

	p := Path{raw: path, target: strings.Join(targets, "."), resolved: resolved}
	if resolved {
		p.leaf = leaf
	}
	return p
}
