package env

import (
	"fmt"

	"github.com/diwise/activitystreams/pkg/activitystreams/dispatch"
	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/jsonld"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
	"github.com/diwise/activitystreams/pkg/activitystreams/vocab"
)

type Option func(e *Environment) error

func Vocabularies(vocabs ...*vocab.Vocabulary) Option {
	return func(e *Environment) error {
		for _, v := range vocabs {
			if v != nil {
				e.vocabs = append(e.vocabs, v)
			}
		}
		return nil
	}
}

// Method registers a handler for a first-match or map method at a type
func Method(m *dispatch.MethodID, t *types.ASType, h dispatch.Handler) Option {
	return func(e *Environment) error {
		if err := checkRegistration(m, t, h == nil); err != nil {
			return err
		}

		if m.Strategy() == dispatch.Fold {
			return errors.NewStrategyMismatchError(
				fmt.Sprintf("%s needs a fold handler, got a plain handler for %s", m, t),
			)
		}

		e.addMethod(m)
		e.handlers[m] = append(e.handlers[m], dispatch.Register(t, h))

		return nil
	}
}

// FoldMethod registers a fold handler at a type
func FoldMethod(m *dispatch.MethodID, t *types.ASType, h dispatch.FoldHandler) Option {
	return func(e *Environment) error {
		if err := checkRegistration(m, t, h == nil); err != nil {
			return err
		}

		if m.Strategy() != dispatch.Fold {
			return errors.NewStrategyMismatchError(
				fmt.Sprintf("%s does not fold, got a fold handler for %s", m, t),
			)
		}

		e.addMethod(m)
		e.folds[m] = append(e.folds[m], dispatch.Register(t, h))

		return nil
	}
}

// ShortIDs replaces the map used to resolve short type names to URIs. Without
// it every short id in the vocabularies is used.
func ShortIDs(ids map[string]string) Option {
	return func(e *Environment) error {
		if ids != nil {
			e.shortIDs = vocab.Merge(ids)
		}
		return nil
	}
}

// Constructors replaces the map of constructor names to type URIs
func Constructors(names map[string]string) Option {
	return func(e *Environment) error {
		if names != nil {
			e.constructorIDs = vocab.Merge(names)
		}
		return nil
	}
}

func ImpliedContext(url string) Option {
	return func(e *Environment) error {
		e.impliedContext = url
		return nil
	}
}

func DocumentLoader(loader jsonld.DocumentLoader) Option {
	return func(e *Environment) error {
		e.loader = loader
		return nil
	}
}

func checkRegistration(m *dispatch.MethodID, t *types.ASType, missingHandler bool) error {
	if m == nil {
		return errors.NewInvalidDefinitionError("a method id is required to register a handler")
	}

	if t == nil {
		return errors.NewInvalidDefinitionError(fmt.Sprintf("a type is required to register a handler for %s", m))
	}

	if missingHandler {
		return errors.NewInvalidDefinitionError(fmt.Sprintf("missing handler for %s at %s", m, t))
	}

	return nil
}
