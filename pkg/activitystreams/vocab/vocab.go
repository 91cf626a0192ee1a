package vocab

import (
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
)

// Vocabulary maps known type ids to their ASType. It is read only once created.
type Vocabulary struct {
	name    string
	types   []*types.ASType
	byURI   map[string]*types.ASType
	byShort map[string]*types.ASType
}

// New creates a vocabulary from a list of types. When the same URI is listed
// more than once the first definition is kept.
func New(ts ...*types.ASType) *Vocabulary {
	return NewNamed("", ts...)
}

func NewNamed(name string, ts ...*types.ASType) *Vocabulary {
	v := &Vocabulary{
		name:    name,
		types:   make([]*types.ASType, 0, len(ts)),
		byURI:   make(map[string]*types.ASType, len(ts)),
		byShort: make(map[string]*types.ASType, len(ts)),
	}

	for _, t := range ts {
		if t == nil {
			continue
		}

		if _, exists := v.byURI[t.ID()]; exists {
			continue
		}

		v.types = append(v.types, t)
		v.byURI[t.ID()] = t

		if short := t.ShortID(); short != "" {
			if _, exists := v.byShort[short]; !exists {
				v.byShort[short] = t
			}
		}
	}

	return v
}

func (v *Vocabulary) Name() string {
	return v.name
}

func (v *Vocabulary) Lookup(uri string) (*types.ASType, bool) {
	t, ok := v.byURI[uri]
	return t, ok
}

func (v *Vocabulary) LookupShort(short string) (*types.ASType, bool) {
	t, ok := v.byShort[short]
	return t, ok
}

// Types returns the types of the vocabulary in the order they were defined
func (v *Vocabulary) Types() []*types.ASType {
	return append([]*types.ASType{}, v.types...)
}

func (v *Vocabulary) Len() int {
	return len(v.types)
}

// ShortIDs maps the short id of every type in v that has one to the type's URI.
// A non empty prefix is joined to the short ids as "prefix:short".
func ShortIDs(v *Vocabulary, prefix string) map[string]string {
	ids := make(map[string]string, v.Len())

	for _, t := range v.types {
		short := t.ShortID()
		if short == "" {
			continue
		}

		if prefix != "" {
			short = prefix + ":" + short
		}

		ids[short] = t.ID()
	}

	return ids
}

// Merge combines maps into a new one. Keys in later maps replace earlier ones.
func Merge(maps ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
