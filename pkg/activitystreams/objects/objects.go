package objects

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
)

const (
	KeyID      string = "@id"
	KeyType    string = "@type"
	KeyContext string = "@context"
)

// ASObj is the general ActivityStreams object. The json it wraps is copied on
// the way in and on the way out, so an ASObj can never be changed once it has
// been created. Use With to derive a modified copy.
type ASObj struct {
	jsobj map[string]any
	types []string
}

type DecoratorFunc func(jsobj map[string]any)

// New wraps a deep copy of value. The value must carry a @type that is either a
// string or a non empty list of strings.
func New(value map[string]any) (*ASObj, error) {
	if value == nil {
		return nil, errors.NewMalformedDocumentError("an activitystreams object must be a json object")
	}

	jsobj, _ := DeepCopy(value).(map[string]any)

	declared, err := declaredTypes(jsobj)
	if err != nil {
		return nil, err
	}

	if id, ok := jsobj[KeyID]; ok {
		if _, isString := id.(string); !isString {
			return nil, errors.NewMalformedDocumentError(fmt.Sprintf("@id must be a string, not %T", id))
		}
	}

	return &ASObj{
		jsobj: jsobj,
		types: declared,
	}, nil
}

func NewFromJSON(body []byte) (*ASObj, error) {
	var value any

	err := json.Unmarshal(body, &value)
	if err != nil {
		return nil, errors.NewMalformedDocumentError(fmt.Sprintf("failed to unmarshal object: %s", err.Error()))
	}

	jsobj, ok := value.(map[string]any)
	if !ok {
		return nil, errors.NewMalformedDocumentError(fmt.Sprintf("an activitystreams object must be a json object, not %T", value))
	}

	return New(jsobj)
}

// Create builds an object of a single type from decorators. An empty id leaves
// the object without an @id.
func Create(id, typeTag string, decorators ...DecoratorFunc) (*ASObj, error) {
	return build(id, typeTag, decorators)
}

// CreateMulti builds an object declaring several types at once
func CreateMulti(id string, typeTags []string, decorators ...DecoratorFunc) (*ASObj, error) {
	tags := make([]any, 0, len(typeTags))
	for _, t := range typeTags {
		tags = append(tags, t)
	}
	return build(id, tags, decorators)
}

func build(id string, typeTag any, decorators []DecoratorFunc) (*ASObj, error) {
	jsobj := map[string]any{}

	for _, decorator := range decorators {
		decorator(jsobj)
	}

	jsobj[KeyType] = typeTag
	if id != "" {
		jsobj[KeyID] = id
	}

	return New(jsobj)
}

func declaredTypes(jsobj map[string]any) ([]string, error) {
	typeValue, ok := jsobj[KeyType]
	if !ok {
		return nil, errors.NewMalformedDocumentError("object has no @type")
	}

	switch t := typeValue.(type) {
	case string:
		if t == "" {
			return nil, errors.NewMalformedDocumentError("@type must not be empty")
		}
		return []string{t}, nil
	case []string:
		if len(t) == 0 {
			return nil, errors.NewMalformedDocumentError("@type must list at least one type")
		}
		for _, s := range t {
			if s == "" {
				return nil, errors.NewMalformedDocumentError("@type must not contain empty type names")
			}
		}
		return append([]string{}, t...), nil
	case []any:
		if len(t) == 0 {
			return nil, errors.NewMalformedDocumentError("@type must list at least one type")
		}
		declared := make([]string, 0, len(t))
		for _, item := range t {
			s, isString := item.(string)
			if !isString || s == "" {
				return nil, errors.NewMalformedDocumentError(fmt.Sprintf("@type may only contain strings, found %T", item))
			}
			declared = append(declared, s)
		}
		return declared, nil
	default:
		return nil, errors.NewMalformedDocumentError(fmt.Sprintf("@type must be a string or a list of strings, not %T", typeValue))
	}
}

func (o *ASObj) ID() string {
	id, _ := o.jsobj[KeyID].(string)
	return id
}

// Types returns the type identifiers declared in @type, in declaration order
func (o *ASObj) Types() []string {
	return append([]string{}, o.types...)
}

// Get returns a copy of the value stored under key. Values that are objects
// with a @type of their own are returned as a new *ASObj each time.
func (o *ASObj) Get(key string) (any, bool) {
	value, ok := o.jsobj[key]
	if !ok {
		return nil, false
	}

	if m, isMap := value.(map[string]any); isMap {
		if _, typed := m[KeyType]; typed {
			if nested, err := New(m); err == nil {
				return nested, true
			}
		}
	}

	return DeepCopy(value), true
}

// Object returns the nested typed object stored under key
func (o *ASObj) Object(key string) (*ASObj, bool) {
	value, ok := o.Get(key)
	if !ok {
		return nil, false
	}

	nested, ok := value.(*ASObj)
	return nested, ok
}

func (o *ASObj) GetString(key string) (string, bool) {
	s, ok := o.jsobj[key].(string)
	return s, ok
}

func (o *ASObj) Has(key string) bool {
	_, ok := o.jsobj[key]
	return ok
}

func (o *ASObj) Keys() []string {
	keys := make([]string, 0, len(o.jsobj))
	for k := range o.jsobj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// JSON returns a deep copy of the wrapped json. Callers are free to modify it.
func (o *ASObj) JSON() map[string]any {
	jsobj, _ := DeepCopy(o.jsobj).(map[string]any)
	return jsobj
}

func (o *ASObj) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.jsobj)
}

// With returns a new object with the decorators applied to a copy of this one
func (o *ASObj) With(decorators ...DecoratorFunc) (*ASObj, error) {
	jsobj := o.JSON()
	for _, decorator := range decorators {
		decorator(jsobj)
	}
	return New(jsobj)
}

// Equal reports whether both objects wrap equal json
func (o *ASObj) Equal(other *ASObj) bool {
	if o == nil || other == nil {
		return o == other
	}

	a, errA := json.Marshal(o.jsobj)
	b, errB := json.Marshal(other.jsobj)

	return errA == nil && errB == nil && slices.Equal(a, b)
}

func P(name string, value any) DecoratorFunc {
	return func(jsobj map[string]any) {
		jsobj[name] = DeepCopy(value)
	}
}

func Context(urls ...string) DecoratorFunc {
	return func(jsobj map[string]any) {
		if len(urls) == 1 {
			jsobj[KeyContext] = urls[0]
			return
		}

		ctx := make([]any, 0, len(urls))
		for _, u := range urls {
			ctx = append(ctx, u)
		}
		jsobj[KeyContext] = ctx
	}
}

// Without removes a field
func Without(name string) DecoratorFunc {
	return func(jsobj map[string]any) {
		delete(jsobj, name)
	}
}
