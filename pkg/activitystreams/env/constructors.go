package env

import (
	"sort"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
)

// Constructor creates objects of a single type
type Constructor struct {
	t *types.ASType
}

func (c Constructor) Type() *types.ASType {
	return c.t
}

// New creates an object of the constructor's type. An empty id leaves the
// object without an @id.
func (c Constructor) New(id string, decorators ...objects.DecoratorFunc) (*objects.ASObj, error) {
	return objects.Create(id, c.t.Tag(), decorators...)
}

func (e *Environment) Constructor(name string) (Constructor, error) {
	uri, ok := e.constructorIDs[name]
	if !ok {
		return Constructor{}, errors.NewUnknownTypeError(name)
	}

	for _, v := range e.vocabs {
		if t, found := v.Lookup(uri); found {
			return Constructor{t: t}, nil
		}
	}

	return Constructor{}, errors.NewUnknownTypeError(uri)
}

// Construct creates an object using the named constructor
func (e *Environment) Construct(name, id string, decorators ...objects.DecoratorFunc) (*objects.ASObj, error) {
	c, err := e.Constructor(name)
	if err != nil {
		return nil, err
	}
	return c.New(id, decorators...)
}

func (e *Environment) ConstructorNames() []string {
	names := make([]string, 0, len(e.constructorIDs))
	for name := range e.constructorIDs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
