package dispatch

import (
	"context"
	"slices"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
)

type match[H any] struct {
	position int
	handler  H
}

// Matches returns the handlers registered for a type in the linearization,
// ordered by the position of that type. Registrations for the same type keep
// the order they were given in.
func Matches[H any](regs []Registration[H], linearization []*types.ASType) []H {
	positions := types.Positions(linearization)

	matched := make([]match[H], 0, len(regs))
	for _, r := range regs {
		if r.Type == nil {
			continue
		}

		if pos, ok := positions[r.Type.ID()]; ok {
			matched = append(matched, match[H]{position: pos, handler: r.Handler})
		}
	}

	slices.SortStableFunc(matched, func(a, b match[H]) int {
		return a.position - b.position
	})

	handlers := make([]H, 0, len(matched))
	for _, m := range matched {
		handlers = append(handlers, m.handler)
	}

	return handlers
}

// HandleOne calls the handler registered for the most specific type of the
// target. When nothing matches the fallback is called with the object alone,
// or, without a fallback, a NoMethodFoundError is returned.
func HandleOne(ctx context.Context, method string, regs []Registration[Handler], target Target, fallback Fallback, args ...any) (any, error) {
	handlers := Matches(regs, types.Linearize(target.Types...))

	if len(handlers) == 0 {
		if fallback != nil {
			return fallback(ctx, target.Object)
		}
		return nil, errors.NewNoMethodFoundError(method, declared(target))
	}

	return handlers[0](ctx, target.Object, args...)
}

// HandleMap calls every matching handler, most specific type first, and
// returns their results in the same order
func HandleMap(ctx context.Context, regs []Registration[Handler], target Target, args ...any) ([]any, error) {
	handlers := Matches(regs, types.Linearize(target.Types...))
	results := make([]any, 0, len(handlers))

	for _, h := range handlers {
		result, err := h(ctx, target.Object, args...)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return results, nil
}

// HandleFold threads an accumulator through the matching handlers, most
// specific type first. A handler returning a Halt ends the fold.
func HandleFold(ctx context.Context, regs []Registration[FoldHandler], target Target, initial any, args ...any) (any, error) {
	handlers := Matches(regs, types.Linearize(target.Types...))
	acc := initial

	for _, h := range handlers {
		result, err := h(ctx, acc, target.Object, args...)
		if err != nil {
			return nil, err
		}

		switch halt := result.(type) {
		case Halt:
			return halt.Value, nil
		case *Halt:
			if halt == nil {
				return nil, nil
			}
			return halt.Value, nil
		}

		acc = result
	}

	return acc, nil
}

func declared(target Target) []string {
	if target.Object != nil {
		return target.Object.Types()
	}
	return types.IDs(target.Types)
}
