package dispatch

import (
	"context"
	"fmt"

	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
)

type Strategy int

const (
	One Strategy = iota
	Map
	Fold
)

func (s Strategy) String() string {
	switch s {
	case One:
		return "handle_one"
	case Map:
		return "handle_map"
	case Fold:
		return "handle_fold"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// MethodID identifies a capability that handlers can be registered for. Two
// method ids are different methods even when they share a name.
type MethodID struct {
	name        string
	description string
	strategy    Strategy
}

func NewMethodID(name, description string, strategy Strategy) *MethodID {
	return &MethodID{
		name:        name,
		description: description,
		strategy:    strategy,
	}
}

func (m *MethodID) Name() string {
	return m.name
}

func (m *MethodID) Description() string {
	return m.description
}

func (m *MethodID) Strategy() Strategy {
	return m.strategy
}

func (m *MethodID) String() string {
	return fmt.Sprintf("<MethodID %s (%s)>", m.name, m.strategy)
}

type Handler func(ctx context.Context, obj *objects.ASObj, args ...any) (any, error)

type FoldHandler func(ctx context.Context, acc any, obj *objects.ASObj, args ...any) (any, error)

// Fallback is called by HandleOne when no registered handler matches
type Fallback func(ctx context.Context, obj *objects.ASObj) (any, error)

type Registration[H any] struct {
	Type    *types.ASType
	Handler H
}

func Register[H any](t *types.ASType, handler H) Registration[H] {
	return Registration[H]{Type: t, Handler: handler}
}

// Target is an object together with the types its @type resolved to
type Target struct {
	Object *objects.ASObj
	Types  []*types.ASType
}

// Halt ends a fold early. The wrapped value becomes the result of the fold.
type Halt struct {
	Value any
}

func Stop(value any) Halt {
	return Halt{Value: value}
}
