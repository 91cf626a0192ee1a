package objectstore

import (
	"context"
	goerrors "errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/diwise/activitystreams/internal/pkg/application/subscriptions"
	"github.com/diwise/activitystreams/internal/pkg/infrastructure/storage"
	"github.com/diwise/activitystreams/pkg/activitystreams/dispatch"
	"github.com/diwise/activitystreams/pkg/activitystreams/env"
	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/jsonld"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const TraceAttributeObjectID string = "object-id"

var tracer = otel.Tracer("activitystreams/objectstore")

type ObjectStore interface {
	CreateObject(ctx context.Context, obj *objects.ASObj) (*objects.ASObj, error)
	RetrieveObject(ctx context.Context, id string) (*objects.ASObj, error)
	UpdateObject(ctx context.Context, obj *objects.ASObj, upsert bool) (*objects.ASObj, error)
	DeleteObject(ctx context.Context, id string) error
	QueryObjects(ctx context.Context, typeName string) ([]*objects.ASObj, error)
	DescribeObject(ctx context.Context, id string) ([]string, error)

	RetrieveTypes(ctx context.Context) []types.Description
	RetrieveTypeChain(ctx context.Context, typeName string) ([]types.Description, error)
	RetrieveContext(ctx context.Context, contextID string) (any, error)

	Environment() *env.Environment
}

type Option func(*app)

func WithNotifier(n subscriptions.Notifier) Option {
	return func(a *app) {
		a.notifier = n
	}
}

func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *app) {
		a.registerer = reg
	}
}

// WithDocumentLoader is consulted for contexts that are not served locally
func WithDocumentLoader(loader jsonld.DocumentLoader) Option {
	return func(a *app) {
		a.remote = loader
	}
}

type app struct {
	cfg      *Config
	env      *env.Environment
	store    storage.Store
	notifier subscriptions.Notifier
	metrics  *metrics

	registerer prometheus.Registerer
	remote     jsonld.DocumentLoader
}

// New builds the environment described by cfg, with vocabulary and context
// files read from fsys, and binds its storage methods to s
func New(ctx context.Context, cfg *Config, fsys fs.FS, s storage.Store, options ...Option) (ObjectStore, error) {
	a := &app{
		cfg:   cfg,
		store: s,
	}

	for _, option := range options {
		option(a)
	}

	var err error

	a.metrics, err = newMetrics(a.registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	vocabs, shortIDs, err := cfg.LoadVocabularies(fsys)
	if err != nil {
		return nil, err
	}

	documents, err := cfg.LoadContexts(fsys)
	if err != nil {
		return nil, err
	}

	loader := jsonld.NewStaticLoader(documents)
	if a.remote != nil {
		loader = jsonld.Chain(loader, a.remote)
	}

	methods, err := methodOptions(vocabs, shortIDs, cfg.Validation, s)
	if err != nil {
		return nil, err
	}

	envOptions := append([]env.Option{
		env.Vocabularies(vocabs...),
		env.ShortIDs(shortIDs),
		env.ImpliedContext(cfg.ImpliedContext),
		env.DocumentLoader(loader),
	}, methods...)

	a.env, err = env.New(envOptions...)
	if err != nil {
		return nil, err
	}

	logging.GetFromContext(ctx).Info("object store environment ready", "vocabularies", len(vocabs), "methods", strings.Join(a.env.MethodNames(), ","))

	return a, nil
}

func (a *app) Environment() *env.Environment {
	return a.env
}

func (a *app) startSpan(ctx context.Context, name, id string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String(TraceAttributeObjectID, id)))
}

// validate runs the validation fold and reports every problem found at once
func (a *app) validate(ctx context.Context, obj *objects.ASObj) error {
	result, err := a.env.InvokeFold(ctx, Validate, obj, []string{})
	if err != nil {
		return err
	}

	if p := problems(result); len(p) > 0 {
		return errors.NewBadRequestDataError(fmt.Sprintf("invalid object: %s", strings.Join(p, "; ")))
	}

	return nil
}

func (a *app) CreateObject(ctx context.Context, obj *objects.ASObj) (result *objects.ASObj, err error) {
	if obj.ID() == "" {
		obj, err = obj.With(objects.P(objects.KeyID, "urn:uuid:"+uuid.New().String()))
		if err != nil {
			return nil, err
		}
	}

	ctx, span := a.startSpan(ctx, "create-object", obj.ID())
	defer func() {
		a.metrics.observe("create", err)
		tracing.RecordAnyErrorAndEndSpan(err, span)
	}()

	if err = a.validate(ctx, obj); err != nil {
		return nil, err
	}

	result, err = a.invokeStore(ctx, Insert, obj)
	if err != nil {
		return nil, err
	}

	if a.notifier != nil {
		a.notifier.ObjectCreated(ctx, result)
	}

	return result, nil
}

func (a *app) RetrieveObject(ctx context.Context, id string) (result *objects.ASObj, err error) {
	ctx, span := a.startSpan(ctx, "retrieve-object", id)
	defer func() {
		a.metrics.observe("retrieve", err)
		tracing.RecordAnyErrorAndEndSpan(err, span)
	}()

	document, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	return objects.New(document)
}

func (a *app) UpdateObject(ctx context.Context, obj *objects.ASObj, upsert bool) (result *objects.ASObj, err error) {
	operation, method := "update", Update
	if upsert {
		operation, method = "upsert", Upsert
	}

	ctx, span := a.startSpan(ctx, operation+"-object", obj.ID())
	defer func() {
		a.metrics.observe(operation, err)
		tracing.RecordAnyErrorAndEndSpan(err, span)
	}()

	if err = a.validate(ctx, obj); err != nil {
		return nil, err
	}

	result, err = a.invokeStore(ctx, method, obj)
	if err != nil {
		return nil, err
	}

	if a.notifier != nil {
		a.notifier.ObjectUpdated(ctx, result)
	}

	return result, nil
}

func (a *app) DeleteObject(ctx context.Context, id string) (err error) {
	ctx, span := a.startSpan(ctx, "delete-object", id)
	defer func() {
		a.metrics.observe("delete", err)
		tracing.RecordAnyErrorAndEndSpan(err, span)
	}()

	document, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}

	obj, err := objects.New(document)
	if err != nil {
		return err
	}

	deleted, err := a.invokeStore(ctx, Delete, obj)
	if err != nil {
		// objects whose types are no longer known can still be removed
		if goerrors.Is(err, errors.ErrUnknownType) {
			return a.store.Delete(ctx, id)
		}
		return err
	}

	if a.notifier != nil {
		a.notifier.ObjectDeleted(ctx, deleted)
	}

	return nil
}

func (a *app) invokeStore(ctx context.Context, method *dispatch.MethodID, obj *objects.ASObj) (*objects.ASObj, error) {
	result, err := a.env.InvokeOne(ctx, method, obj)
	if err != nil {
		return nil, err
	}

	stored, ok := result.(*objects.ASObj)
	if !ok {
		return nil, errors.NewInternalError(fmt.Sprintf("%s returned %T instead of an object", method.Name(), result), "")
	}

	return stored, nil
}

// QueryObjects lists the stored objects that are of typeName, directly or
// through inheritance. An empty typeName lists every object.
func (a *app) QueryObjects(ctx context.Context, typeName string) (result []*objects.ASObj, err error) {
	ctx, span := tracer.Start(ctx, "query-objects", trace.WithAttributes(attribute.String("type", typeName)))
	defer func() {
		a.metrics.observe("query", err)
		tracing.RecordAnyErrorAndEndSpan(err, span)
	}()

	var wanted *types.ASType
	if typeName != "" {
		wanted, err = a.env.ResolveType(typeName)
		if err != nil {
			return nil, err
		}
	}

	documents, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}

	logger := logging.GetFromContext(ctx)
	result = make([]*objects.ASObj, 0, len(documents))

	for _, document := range documents {
		obj, err := objects.New(document)
		if err != nil {
			logger.Warn("skipping malformed object", "err", err.Error())
			continue
		}

		if wanted == nil {
			result = append(result, obj)
			continue
		}

		linearization, err := a.env.Linearize(obj)
		if err != nil {
			logger.Debug("skipping object with unknown types", "id", obj.ID(), "err", err.Error())
			continue
		}

		for _, t := range linearization {
			if t.ID() == wanted.ID() {
				result = append(result, obj)
				break
			}
		}
	}

	return result, nil
}

func (a *app) DescribeObject(ctx context.Context, id string) ([]string, error) {
	obj, err := a.RetrieveObject(ctx, id)
	if err != nil {
		return nil, err
	}

	results, err := a.env.InvokeMap(ctx, Describe, obj)
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprint(r))
	}

	return lines, nil
}

func (a *app) RetrieveTypes(ctx context.Context) []types.Description {
	descriptions := []types.Description{}
	for _, v := range a.env.Vocabularies() {
		descriptions = append(descriptions, types.Describe(v.Types())...)
	}
	return descriptions
}

func (a *app) RetrieveTypeChain(ctx context.Context, typeName string) ([]types.Description, error) {
	t, err := a.env.ResolveType(typeName)
	if err != nil {
		return nil, err
	}

	return types.Describe(t.Chain()), nil
}

func (a *app) RetrieveContext(ctx context.Context, contextID string) (any, error) {
	url, ok := a.cfg.ContextURL(contextID)
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no context with id %s found", contextID))
	}

	doc, err := a.env.Loader().LoadDocument(ctx, url)
	if err != nil {
		return nil, err
	}

	return doc.Document, nil
}
