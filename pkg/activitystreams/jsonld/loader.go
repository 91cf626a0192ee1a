package jsonld

import (
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const TraceAttributeDocumentURL string = "document-url"

var tracer = otel.Tracer("activitystreams/jsonld")

// RemoteDocument is a json-ld document as returned by a DocumentLoader
type RemoteDocument struct {
	DocumentURL string
	ContextURL  string
	Document    any
}

type DocumentLoader interface {
	LoadDocument(ctx context.Context, url string) (*RemoteDocument, error)
}

type LoaderFunc func(ctx context.Context, url string) (*RemoteDocument, error)

func (f LoaderFunc) LoadDocument(ctx context.Context, url string) (*RemoteDocument, error) {
	return f(ctx, url)
}

type staticLoader struct {
	documents map[string]any
}

// NewStaticLoader serves a fixed set of documents keyed by url. Urls that are
// not in the set are reported as not found.
func NewStaticLoader(documents map[string]any) DocumentLoader {
	l := &staticLoader{documents: make(map[string]any, len(documents))}
	for u, doc := range documents {
		l.documents[u] = objects.DeepCopy(doc)
	}
	return l
}

func (l *staticLoader) LoadDocument(ctx context.Context, url string) (*RemoteDocument, error) {
	doc, ok := l.documents[url]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no document available for %s", url))
	}

	return &RemoteDocument{DocumentURL: url, Document: objects.DeepCopy(doc)}, nil
}

// Chain tries each loader in turn until one of them has the document. Errors
// other than not found end the search.
func Chain(loaders ...DocumentLoader) DocumentLoader {
	return LoaderFunc(func(ctx context.Context, url string) (*RemoteDocument, error) {
		var err error = errors.NewNotFoundError(fmt.Sprintf("no document available for %s", url))

		for _, l := range loaders {
			var doc *RemoteDocument
			doc, err = l.LoadDocument(ctx, url)
			if err == nil {
				return doc, nil
			}

			if !isNotFound(err) {
				return nil, err
			}
		}

		return nil, err
	})
}

type HTTPLoaderOption func(*httpLoader)

func WithHTTPClient(client *http.Client) HTTPLoaderOption {
	return func(l *httpLoader) {
		l.client = client
	}
}

// WithFallback sets a loader to consult when a document can not be fetched
func WithFallback(fallback DocumentLoader) HTTPLoaderOption {
	return func(l *httpLoader) {
		l.fallback = fallback
	}
}

type httpLoader struct {
	client   *http.Client
	fallback DocumentLoader

	mu    sync.Mutex
	cache map[string]*RemoteDocument
	group singleflight.Group
}

// NewHTTPLoader fetches documents over http and remembers every document it
// has fetched. Concurrent requests for the same url share a single fetch.
func NewHTTPLoader(options ...HTTPLoaderOption) DocumentLoader {
	l := &httpLoader{
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache: map[string]*RemoteDocument{},
	}

	for _, option := range options {
		option(l)
	}

	return l
}

func (l *httpLoader) LoadDocument(ctx context.Context, url string) (*RemoteDocument, error) {
	if doc, ok := l.cached(url); ok {
		return doc, nil
	}

	result, err, _ := l.group.Do(url, func() (any, error) {
		doc, err := l.fetch(ctx, url)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.cache[url] = doc
		l.mu.Unlock()

		return doc, nil
	})

	if err != nil {
		if l.fallback != nil {
			logging.GetFromContext(ctx).Debug("fetch failed, trying fallback loader", "url", url, "err", err.Error())
			return l.fallback.LoadDocument(ctx, url)
		}
		return nil, err
	}

	return clone(result.(*RemoteDocument)), nil
}

func (l *httpLoader) cached(url string) (*RemoteDocument, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, ok := l.cache[url]
	if !ok {
		return nil, false
	}

	return clone(doc), true
}

func (l *httpLoader) fetch(ctx context.Context, url string) (doc *RemoteDocument, err error) {
	ctx, span := tracer.Start(ctx, "load-document",
		trace.WithAttributes(attribute.String(TraceAttributeDocumentURL, url)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		err = fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrBadRequest)
		return nil, err
	}

	req.Header.Add("Accept", "application/ld+json, application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		err = fmt.Errorf("failed to fetch %s: %w", url, err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response body: %w", err)
		return nil, err
	}

	if resp.StatusCode == http.StatusNotFound {
		err = errors.NewNotFoundError(fmt.Sprintf("no document found at %s", url))
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("unexpected response code %d when loading %s (%w)", resp.StatusCode, url, errors.ErrInternal)
		return nil, err
	}

	var document any
	err = json.Unmarshal(body, &document)
	if err != nil {
		err = errors.NewMalformedDocumentError(fmt.Sprintf("document at %s is not valid json: %s", url, err.Error()))
		return nil, err
	}

	documentURL := url
	if resp.Request != nil && resp.Request.URL != nil {
		documentURL = resp.Request.URL.String()
	}

	return &RemoteDocument{DocumentURL: documentURL, Document: document}, nil
}

func clone(doc *RemoteDocument) *RemoteDocument {
	return &RemoteDocument{
		DocumentURL: doc.DocumentURL,
		ContextURL:  doc.ContextURL,
		Document:    objects.DeepCopy(doc.Document),
	}
}

func isNotFound(err error) bool {
	return goerrors.Is(err, errors.ErrNotFound)
}
