package mapping

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	Street string `bson:"street"`
	City   string // no tag, lowercased by convention
}

type person struct {
	ID        string    `bson:"_id"`
	FirstName string    `bson:"fname"`
	Age       int       `bson:"age"`
	Home      address   `bson:"home"`
	Visited   []address `bson:"visited"`
	Secret    string    `bson:"-"`
	hidden    string
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	c, err := NewContext()
	require.NoError(t, err)
	return c
}

func TestEntityMetadata(t *testing.T) {
	c := newTestContext(t)
	e, err := c.Entity(person{})
	require.NoError(t, err)

	assert.Equal(t, "person", e.Name())

	p, ok := e.Property("FirstName")
	require.True(t, ok)
	assert.Equal(t, "fname", p.FieldName)
	assert.False(t, p.IsEntity())

	p, ok = e.Property("Home")
	require.True(t, ok)
	assert.Equal(t, "home", p.FieldName)
	assert.True(t, p.IsEntity())

	// slices of structs still descend
	p, ok = e.Property("Visited")
	require.True(t, ok)
	assert.True(t, p.IsEntity())

	// skipped fields do not appear
	_, ok = e.Property("Secret")
	assert.False(t, ok)
	_, ok = e.Property("hidden")
	assert.False(t, ok)
}

func TestEntityUntaggedFieldUsesLowercaseName(t *testing.T) {
	c := newTestContext(t)
	e, err := c.Entity(address{})
	require.NoError(t, err)
	p, ok := e.Property("City")
	require.True(t, ok)
	assert.Equal(t, "city", p.FieldName)
}

func TestEntityLookupIsCaseInsensitive(t *testing.T) {
	c := newTestContext(t)
	e, err := c.Entity(person{})
	require.NoError(t, err)
	p, ok := e.Property("firstname")
	require.True(t, ok)
	assert.Equal(t, "fname", p.FieldName)
}

func TestEntityAcceptsPointersAndTypes(t *testing.T) {
	c := newTestContext(t)
	byValue, err := c.Entity(person{})
	require.NoError(t, err)
	byPointer, err := c.Entity(&person{})
	require.NoError(t, err)
	byType, err := c.Entity(reflect.TypeOf(person{}))
	require.NoError(t, err)

	assert.Same(t, byValue, byPointer)
	assert.Same(t, byValue, byType)
}

func TestEntityRejectsNonStruct(t *testing.T) {
	c := newTestContext(t)
	_, err := c.Entity(42)
	require.Error(t, err)
	_, err = c.Entity(nil)
	require.Error(t, err)
}

func TestResolveSimplePath(t *testing.T) {
	c := newTestContext(t)
	e, err := c.Entity(person{})
	require.NoError(t, err)

	p, err := c.Resolve(e, "FirstName")
	require.NoError(t, err)
	assert.True(t, p.Resolved())
	assert.Equal(t, "fname", p.Target())
	assert.Equal(t, "FirstName", p.Raw())
}

func TestResolveNestedPath(t *testing.T) {
	c := newTestContext(t)
	e, err := c.Entity(person{})
	require.NoError(t, err)

	p, err := c.Resolve(e, "Home.Street")
	require.NoError(t, err)
	assert.True(t, p.Resolved())
	assert.Equal(t, "home.street", p.Target())

	p, err = c.Resolve(e, "Visited.City")
	require.NoError(t, err)
	assert.True(t, p.Resolved())
	assert.Equal(t, "visited.city", p.Target())
}

// A segment without metadata passes through literally; the rest of the path
// keeps its literal form too since there is nothing to descend into.
func TestResolveUnresolvedSegments(t *testing.T) {
	c := newTestContext(t)
	e, err := c.Entity(person{})
	require.NoError(t, err)

	p, err := c.Resolve(e, "nickname")
	require.NoError(t, err)
	assert.False(t, p.Resolved())
	assert.Equal(t, "nickname", p.Target())

	p, err = c.Resolve(e, "Home.zipcode")
	require.NoError(t, err)
	assert.False(t, p.Resolved())
	assert.Equal(t, "home.zipcode", p.Target())
}

func TestResolveValidation(t *testing.T) {
	c := newTestContext(t)
	e, err := c.Entity(person{})
	require.NoError(t, err)

	_, err = c.Resolve(nil, "x")
	require.Error(t, err)
	_, err = c.Resolve(e, "")
	require.Error(t, err)
}

func TestResolveIsCached(t *testing.T) {
	c := newTestContext(t)
	e, err := c.Entity(person{})
	require.NoError(t, err)

	first, err := c.Resolve(e, "Home.Street")
	require.NoError(t, err)
	second, err := c.Resolve(e, "Home.Street")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEntityConcurrentAccess(t *testing.T) {
	c := newTestContext(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := c.Entity(person{})
			assert.NoError(t, err)
			p, err := c.Resolve(e, "Home.Street")
			assert.NoError(t, err)
			assert.Equal(t, "home.street", p.Target())
		}()
	}
	wg.Wait()
}
