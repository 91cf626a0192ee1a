package env

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/diwise/activitystreams/pkg/activitystreams/dispatch"
	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/jsonld"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
	"github.com/diwise/activitystreams/pkg/activitystreams/vocab"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TraceAttributeMethod   string = "method"
	TraceAttributeStrategy string = "strategy"
	TraceAttributeObjectID string = "object-id"
)

var tracer = otel.Tracer("activitystreams/env")

// Environment ties vocabularies, short ids and method handlers together. It is
// immutable once created and safe for concurrent use.
type Environment struct {
	vocabs         []*vocab.Vocabulary
	shortIDs       map[string]string
	constructorIDs map[string]string

	methods  []*dispatch.MethodID
	handlers map[*dispatch.MethodID][]dispatch.Registration[dispatch.Handler]
	folds    map[*dispatch.MethodID][]dispatch.Registration[dispatch.FoldHandler]

	impliedContext string
	loader         jsonld.DocumentLoader
}

func New(options ...Option) (*Environment, error) {
	e := &Environment{
		handlers: map[*dispatch.MethodID][]dispatch.Registration[dispatch.Handler]{},
		folds:    map[*dispatch.MethodID][]dispatch.Registration[dispatch.FoldHandler]{},
	}

	for _, option := range options {
		if err := option(e); err != nil {
			return nil, err
		}
	}

	if e.shortIDs == nil {
		e.shortIDs = e.vocabShortIDs()
	}

	if e.constructorIDs == nil {
		e.constructorIDs = e.vocabShortIDs()
	}

	if e.loader == nil {
		e.loader = jsonld.NewStaticLoader(nil)
	}

	return e, nil
}

func (e *Environment) vocabShortIDs() map[string]string {
	ids := make([]map[string]string, 0, len(e.vocabs))
	for _, v := range e.vocabs {
		ids = append(ids, vocab.ShortIDs(v, ""))
	}
	return vocab.Merge(ids...)
}

func (e *Environment) addMethod(m *dispatch.MethodID) {
	for _, known := range e.methods {
		if known == m {
			return
		}
	}
	e.methods = append(e.methods, m)
}

func (e *Environment) Vocabularies() []*vocab.Vocabulary {
	return append([]*vocab.Vocabulary{}, e.vocabs...)
}

// ResolveType maps a type identifier, short id or URI, to the type it names
func (e *Environment) ResolveType(id string) (*types.ASType, error) {
	uri := id
	if full, ok := e.shortIDs[id]; ok {
		uri = full
	}

	for _, v := range e.vocabs {
		if t, ok := v.Lookup(uri); ok {
			return t, nil
		}
	}

	return nil, errors.NewUnknownTypeError(id)
}

// Resolve returns the types declared by obj. Every declared type must resolve.
func (e *Environment) Resolve(obj *objects.ASObj) ([]*types.ASType, error) {
	declared := obj.Types()
	resolved := make([]*types.ASType, 0, len(declared))

	for _, id := range declared {
		t, err := e.ResolveType(id)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, t)
	}

	return resolved, nil
}

// Linearize returns the dispatch order for obj, most specific type first
func (e *Environment) Linearize(obj *objects.ASObj) ([]*types.ASType, error) {
	resolved, err := e.Resolve(obj)
	if err != nil {
		return nil, err
	}
	return types.Linearize(resolved...), nil
}

func (e *Environment) ImpliedContext() string {
	return e.impliedContext
}

func (e *Environment) Loader() jsonld.DocumentLoader {
	return e.loader
}

func (e *Environment) LoadContexts(ctx context.Context, obj *objects.ASObj) ([]*jsonld.RemoteDocument, error) {
	return jsonld.LoadContexts(ctx, e.loader, obj, e.impliedContext)
}

func (e *Environment) target(obj *objects.ASObj) (dispatch.Target, error) {
	if obj == nil {
		return dispatch.Target{}, errors.NewMalformedDocumentError("cannot dispatch on a missing object")
	}

	resolved, err := e.Resolve(obj)
	if err != nil {
		return dispatch.Target{}, err
	}

	return dispatch.Target{Object: obj, Types: resolved}, nil
}

func (e *Environment) startInvocation(ctx context.Context, m *dispatch.MethodID, obj *objects.ASObj) (context.Context, trace.Span) {
	objectID := ""
	if obj != nil {
		objectID = obj.ID()
	}

	ctx, span := tracer.Start(ctx, "invoke-method",
		trace.WithAttributes(
			attribute.String(TraceAttributeMethod, m.Name()),
			attribute.String(TraceAttributeStrategy, m.Strategy().String()),
			attribute.String(TraceAttributeObjectID, objectID),
		),
	)

	log := logging.GetFromContext(ctx)
	log.Debug("invoking method", slog.String("method", m.Name()), slog.String("strategy", m.Strategy().String()), slog.String("object_id", objectID))

	return ctx, span
}

func requireStrategy(m *dispatch.MethodID, s dispatch.Strategy) error {
	if m == nil {
		return errors.NewInvalidDefinitionError("a method id is required")
	}

	if m.Strategy() != s {
		return errors.NewStrategyMismatchError(fmt.Sprintf("%s can not be invoked as %s", m, s))
	}

	return nil
}

// InvokeOne calls the most specific handler registered for m
func (e *Environment) InvokeOne(ctx context.Context, m *dispatch.MethodID, obj *objects.ASObj, args ...any) (any, error) {
	return e.invokeOne(ctx, m, obj, nil, args...)
}

// InvokeOneOr is InvokeOne with a fallback that is called when no handler matches
func (e *Environment) InvokeOneOr(ctx context.Context, m *dispatch.MethodID, obj *objects.ASObj, fallback dispatch.Fallback, args ...any) (any, error) {
	return e.invokeOne(ctx, m, obj, fallback, args...)
}

func (e *Environment) invokeOne(ctx context.Context, m *dispatch.MethodID, obj *objects.ASObj, fallback dispatch.Fallback, args ...any) (result any, err error) {
	if err = requireStrategy(m, dispatch.One); err != nil {
		return nil, err
	}

	ctx, span := e.startInvocation(ctx, m, obj)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	target, err := e.target(obj)
	if err != nil {
		return nil, err
	}

	result, err = dispatch.HandleOne(ctx, m.Name(), e.handlers[m], target, fallback, args...)
	return result, err
}

// InvokeMap calls every handler registered for m and collects the results
func (e *Environment) InvokeMap(ctx context.Context, m *dispatch.MethodID, obj *objects.ASObj, args ...any) (results []any, err error) {
	if err = requireStrategy(m, dispatch.Map); err != nil {
		return nil, err
	}

	ctx, span := e.startInvocation(ctx, m, obj)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	target, err := e.target(obj)
	if err != nil {
		return nil, err
	}

	results, err = dispatch.HandleMap(ctx, e.handlers[m], target, args...)
	return results, err
}

// InvokeFold folds initial through every handler registered for m
func (e *Environment) InvokeFold(ctx context.Context, m *dispatch.MethodID, obj *objects.ASObj, initial any, args ...any) (result any, err error) {
	if err = requireStrategy(m, dispatch.Fold); err != nil {
		return nil, err
	}

	ctx, span := e.startInvocation(ctx, m, obj)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	target, err := e.target(obj)
	if err != nil {
		return nil, err
	}

	result, err = dispatch.HandleFold(ctx, e.folds[m], target, initial, args...)
	return result, err
}

// Invoke calls a method by its name using the strategy of the method. A fold
// takes its initial value from the first argument.
func (e *Environment) Invoke(ctx context.Context, name string, obj *objects.ASObj, args ...any) (any, error) {
	m, err := e.lookupMethod(name)
	if err != nil {
		return nil, err
	}

	return e.invoke(ctx, m, obj, args...)
}

func (e *Environment) invoke(ctx context.Context, m *dispatch.MethodID, obj *objects.ASObj, args ...any) (any, error) {
	switch m.Strategy() {
	case dispatch.Map:
		return e.InvokeMap(ctx, m, obj, args...)
	case dispatch.Fold:
		var initial any
		if len(args) > 0 {
			initial, args = args[0], args[1:]
		}
		return e.InvokeFold(ctx, m, obj, initial, args...)
	default:
		return e.InvokeOne(ctx, m, obj, args...)
	}
}

type MethodFunc func(ctx context.Context, obj *objects.ASObj, args ...any) (any, error)

// Method returns a function bound to the method with the given name
func (e *Environment) Method(name string) (MethodFunc, error) {
	m, err := e.lookupMethod(name)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, obj *objects.ASObj, args ...any) (any, error) {
		return e.invoke(ctx, m, obj, args...)
	}, nil
}

// MethodNames returns the sorted names of all methods with registered handlers
func (e *Environment) MethodNames() []string {
	seen := map[string]struct{}{}
	names := make([]string, 0, len(e.methods))

	for _, m := range e.methods {
		if _, ok := seen[m.Name()]; ok {
			continue
		}
		seen[m.Name()] = struct{}{}
		names = append(names, m.Name())
	}

	sort.Strings(names)
	return names
}

func (e *Environment) lookupMethod(name string) (*dispatch.MethodID, error) {
	var found *dispatch.MethodID

	for _, m := range e.methods {
		if m.Name() != name {
			continue
		}

		if found != nil {
			return nil, errors.NewAmbiguousMethodError(name)
		}
		found = m
	}

	if found == nil {
		return nil, errors.NewNoMethodFoundError(name, nil)
	}

	return found, nil
}
