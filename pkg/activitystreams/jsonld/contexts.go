package jsonld

import (
	"context"
	"fmt"
	"slices"

	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"golang.org/x/sync/errgroup"
)

const ActivityStreamsContext string = "https://www.w3.org/ns/activitystreams"

// Expander turns a compacted document into its expanded json-ld form
type Expander interface {
	Expand(ctx context.Context, obj *objects.ASObj) ([]any, error)
}

// ContextURLs lists the remote contexts referenced by the @context of obj, in
// the order they are given. Embedded context definitions are skipped. A non
// empty implied context is appended unless it is already referenced.
func ContextURLs(obj *objects.ASObj, implied string) []string {
	urls := []string{}

	if value, ok := obj.Get(objects.KeyContext); ok {
		switch c := value.(type) {
		case string:
			urls = append(urls, c)
		case []string:
			urls = append(urls, c...)
		case []any:
			for _, item := range c {
				if s, isString := item.(string); isString {
					urls = append(urls, s)
				}
			}
		}
	}

	if implied != "" && !slices.Contains(urls, implied) {
		urls = append(urls, implied)
	}

	return urls
}

// LoadContexts loads every context referenced by obj concurrently. The result
// is in the same order as ContextURLs.
func LoadContexts(ctx context.Context, loader DocumentLoader, obj *objects.ASObj, implied string) ([]*RemoteDocument, error) {
	if loader == nil {
		return nil, fmt.Errorf("no document loader configured")
	}

	urls := ContextURLs(obj, implied)
	documents := make([]*RemoteDocument, len(urls))

	g, ctx := errgroup.WithContext(ctx)

	for i, u := range urls {
		g.Go(func() error {
			doc, err := loader.LoadDocument(ctx, u)
			if err != nil {
				return fmt.Errorf("failed to load context %s: %w", u, err)
			}
			documents[i] = doc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return documents, nil
}
