package types

import (
	"fmt"
	"sync"
)

// ASType is a @type that an ActivityStreams object might take on. Objects can
// list several types under @type, so the inheritance model is a graph of
// explicit parent references rather than a single chain.
type ASType struct {
	id      string
	shortID string
	notes   string
	core    bool
	parents []*ASType

	chainOnce sync.Once
	chain     []*ASType
}

type ASTypeDecoratorFunc func(t *ASType)

// New creates an ASType identified by uri. Parents must already exist when a
// type is created and they can not be changed afterwards.
func New(uri string, parents []*ASType, decorators ...ASTypeDecoratorFunc) *ASType {
	t := &ASType{
		id:      uri,
		parents: make([]*ASType, 0, len(parents)),
	}

	for _, p := range parents {
		if p != nil {
			t.parents = append(t.parents, p)
		}
	}

	for _, decorator := range decorators {
		decorator(t)
	}

	return t
}

func Short(name string) ASTypeDecoratorFunc {
	return func(t *ASType) {
		t.shortID = name
	}
}

func Notes(text string) ASTypeDecoratorFunc {
	return func(t *ASType) {
		t.notes = text
	}
}

// Core marks the type as a member of the core vocabulary
func Core() ASTypeDecoratorFunc {
	return func(t *ASType) {
		t.core = true
	}
}

func (t *ASType) ID() string {
	return t.id
}

func (t *ASType) ShortID() string {
	return t.shortID
}

func (t *ASType) Notes() string {
	return t.notes
}

func (t *ASType) IsCore() bool {
	return t.core
}

func (t *ASType) Parents() []*ASType {
	return append([]*ASType{}, t.parents...)
}

// Tag returns the identifier to use for this type in a serialized @type field.
// Core types are written by their short id, extension types by their URI.
func (t *ASType) Tag() string {
	if t.core && t.shortID != "" {
		return t.shortID
	}
	return t.id
}

func (t *ASType) String() string {
	if t.shortID != "" {
		return fmt.Sprintf("<ASType %s>", t.shortID)
	}
	return fmt.Sprintf("<ASType %s>", t.id)
}

// Chain returns this type followed by all of its ancestors, most specific first
func (t *ASType) Chain() []*ASType {
	t.chainOnce.Do(func() {
		t.chain = chain(t)
	})

	return append([]*ASType{}, t.chain...)
}

// Is reports whether other is this type or one of its ancestors
func (t *ASType) Is(other *ASType) bool {
	if other == nil {
		return false
	}

	t.chainOnce.Do(func() {
		t.chain = chain(t)
	})

	for _, a := range t.chain {
		if a.id == other.id {
			return true
		}
	}

	return false
}

func IDs(ts []*ASType) []string {
	ids := make([]string, 0, len(ts))
	for _, t := range ts {
		ids = append(ids, t.id)
	}
	return ids
}
