package objectstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/diwise/activitystreams/internal/pkg/infrastructure/storage"
	"github.com/diwise/activitystreams/pkg/activitystreams/dispatch"
	"github.com/diwise/activitystreams/pkg/activitystreams/env"
	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
	"github.com/diwise/activitystreams/pkg/activitystreams/vocab"
)

var (
	Insert   = dispatch.NewMethodID("insert", "Store an object that does not exist yet", dispatch.One)
	Update   = dispatch.NewMethodID("update", "Replace a stored object", dispatch.One)
	Upsert   = dispatch.NewMethodID("upsert", "Store an object, replacing any previous version", dispatch.One)
	Delete   = dispatch.NewMethodID("delete", "Remove a stored object", dispatch.One)
	Validate = dispatch.NewMethodID("validate", "Collect the problems with an object", dispatch.Fold)
	Describe = dispatch.NewMethodID("describe", "Describe an object, one line per type it is", dispatch.Map)
)

type storeFunc func(ctx context.Context, id string, document map[string]any) error

// storeMethod returns a handler that writes the exported object and hands back
// the object that was stored
func storeMethod(write storeFunc) dispatch.Handler {
	return func(ctx context.Context, obj *objects.ASObj, args ...any) (any, error) {
		if obj.ID() == "" {
			return nil, errors.NewBadRequestDataError("an object needs an @id to be stored")
		}

		err := write(ctx, obj.ID(), obj.JSON())
		if err != nil {
			return nil, err
		}

		return obj, nil
	}
}

func deleteMethod(s storage.Store) dispatch.Handler {
	return func(ctx context.Context, obj *objects.ASObj, args ...any) (any, error) {
		return obj, s.Delete(ctx, obj.ID())
	}
}

func problems(acc any) []string {
	if p, ok := acc.([]string); ok {
		return p
	}
	return []string{}
}

const missingID string = "@id is required"

// requireID is registered at every root type, so a document declaring types
// below more than one root reaches it more than once
func requireID(ctx context.Context, acc any, obj *objects.ASObj, args ...any) (any, error) {
	p := problems(acc)
	if obj.ID() == "" && !slices.Contains(p, missingID) {
		p = append(p, missingID)
	}
	return p, nil
}

func requireProperties(t *types.ASType, rule ValidationRule) dispatch.FoldHandler {
	return func(ctx context.Context, acc any, obj *objects.ASObj, args ...any) (any, error) {
		p := problems(acc)

		for _, property := range rule.Required {
			if !obj.Has(property) {
				p = append(p, fmt.Sprintf("%s requires property %s", t.Tag(), property))
			}
		}

		if rule.Final {
			return dispatch.Stop(p), nil
		}

		return p, nil
	}
}

func describeType(t *types.ASType) dispatch.Handler {
	return func(ctx context.Context, obj *objects.ASObj, args ...any) (any, error) {
		if t.Notes() == "" {
			return t.Tag(), nil
		}
		return fmt.Sprintf("%s: %s", t.Tag(), t.Notes()), nil
	}
}

func lookupType(ref string, shortIDs map[string]string, vocabs []*vocab.Vocabulary) (*types.ASType, bool) {
	if uri, ok := shortIDs[ref]; ok {
		ref = uri
	}

	for _, v := range vocabs {
		if t, ok := v.Lookup(ref); ok {
			return t, true
		}
	}

	return nil, false
}

// methodOptions registers the storage methods at every root type, the
// description of every type and the configured validation rules
func methodOptions(vocabs []*vocab.Vocabulary, shortIDs map[string]string, rules []ValidationRule, s storage.Store) ([]env.Option, error) {
	options := []env.Option{}

	for _, v := range vocabs {
		for _, t := range v.Types() {
			options = append(options, env.Method(Describe, t, describeType(t)))

			if len(t.Parents()) > 0 {
				continue
			}

			options = append(options,
				env.Method(Insert, t, storeMethod(s.Create)),
				env.Method(Update, t, storeMethod(s.Replace)),
				env.Method(Upsert, t, storeMethod(s.Put)),
				env.Method(Delete, t, deleteMethod(s)),
				env.FoldMethod(Validate, t, requireID),
			)
		}
	}

	for _, rule := range rules {
		t, ok := lookupType(rule.Type, shortIDs, vocabs)
		if !ok {
			return nil, fmt.Errorf("validation rule for %s: %w", rule.Type, errors.NewUnknownTypeError(rule.Type))
		}

		options = append(options, env.FoldMethod(Validate, t, requireProperties(t, rule)))
	}

	return options, nil
}
