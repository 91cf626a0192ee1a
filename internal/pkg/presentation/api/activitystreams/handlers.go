package activitystreams

import (
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/activitystreams/internal/pkg/application/objectstore"
	"github.com/diwise/activitystreams/internal/pkg/presentation/api/activitystreams/auth"
	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TraceAttributeObjectID   string = "object-id"
	TraceAttributeObjectType string = "object-type"
)

const apiBase string = "/activitystreams/v1"

func RegisterHandlers(ctx context.Context, r chi.Router, middleware []func(http.Handler) http.Handler, policies io.Reader, app objectstore.ObjectStore) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	middleware = append(middleware,
		Logger(logging.GetFromContext(ctx)),
		RequiredContentTypes([]string{"application/json", "application/ld+json", "application/activity+json"}),
	)

	r.Route(apiBase, func(r chi.Router) {
		r.Use(middleware...)

		r.Route("/objects", func(r chi.Router) {
			r.Get("/", NewQueryObjectsHandler(app, authenticator))
			r.Post("/", NewCreateObjectHandler(app, authenticator))

			r.Route("/{objectId}", func(r chi.Router) {
				r.Get("/", NewRetrieveObjectHandler(app, authenticator))
				r.Put("/", NewUpdateObjectHandler(app, authenticator))
				r.Delete("/", NewDeleteObjectHandler(app, authenticator))

				r.Get("/describe", NewDescribeObjectHandler(app, authenticator))
			})
		})

		r.Route("/types", func(r chi.Router) {
			r.Get("/", NewRetrieveTypesHandler(app, authenticator))
			r.Get("/{typeName}/chain", NewRetrieveTypeChainHandler(app, authenticator))
		})

		r.Get("/jsonldContexts/{contextId}", NewServeContextHandler(app))
	})

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			}
		})
	}
}

func traceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

func addLabelIfError(err error, labeler *otelhttp.Labeler) {
	if err != nil && labeler != nil {
		labeler.Add(attribute.Bool("error", true))
	}
}

// mapToProblemReport writes the problem report that corresponds to err
func mapToProblemReport(w http.ResponseWriter, err error, traceID string) {
	var noMethod *errors.NoMethodFoundError

	switch {
	case goerrors.Is(err, errors.ErrNotFound):
		errors.ReportNotFoundError(w, err.Error(), traceID)
	case goerrors.Is(err, errors.ErrAlreadyExists):
		errors.ReportNewAlreadyExistsError(w, err.Error(), traceID)
	case goerrors.Is(err, errors.ErrBadRequest),
		goerrors.Is(err, errors.ErrUnknownType),
		goerrors.Is(err, errors.ErrMalformedDocument):
		errors.ReportNewBadRequestData(w, err.Error(), traceID)
	case goerrors.Is(err, errors.ErrInvalidRequest):
		errors.ReportNewInvalidRequest(w, err.Error(), traceID)
	case goerrors.As(err, &noMethod):
		errors.ReportNewBadRequestData(w, fmt.Sprintf("objects of types %s are not supported", strings.Join(noMethod.Types, ", ")), traceID)
	default:
		errors.ReportNewInternalError(w, err.Error(), traceID)
	}
}

// checkAccess hides the reason for a denied request from the client
func checkAccess(ctx context.Context, w http.ResponseWriter, r *http.Request, authenticator auth.Enticator, objectTypes []string) error {
	err := authenticator.CheckAccess(ctx, r, objectTypes)
	if err != nil {
		logging.GetFromContext(ctx).Warn("access not granted", "err", err.Error())

		if r.Header.Get("Authorization") == "" {
			errors.ReportUnauthorizedRequest(w, "missing authorization header", traceID(ctx))
		} else {
			errors.ReportNotFoundError(w, "not found", traceID(ctx))
		}
	}
	return err
}
