package activitystreams

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/diwise/activitystreams/internal/pkg/application/objectstore"
	"github.com/diwise/activitystreams/internal/pkg/presentation/api/activitystreams/auth"
	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("activitystreams/api/objects")

func objectID(r *http.Request) (string, error) {
	id, err := url.PathUnescape(chi.URLParam(r, "objectId"))
	if err != nil {
		return "", errors.NewInvalidRequestError(fmt.Sprintf("malformed object id: %s", err.Error()))
	}
	return id, nil
}

func readObject(r *http.Request) (*objects.ASObj, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("unable to read request body: %s", err.Error()))
	}

	return objects.NewFromJSON(body)
}

func writeJSON(w http.ResponseWriter, code int, contentType string, value any) error {
	body, err := json.Marshal(value)
	if err != nil {
		return err
	}

	w.Header().Add("Content-Type", contentType)
	w.WriteHeader(code)
	w.Write(body)

	return nil
}

func responseContentType(r *http.Request) string {
	if accept := r.Header.Get("Accept"); accept == "application/activity+json" || accept == "application/json" {
		return accept
	}
	return "application/ld+json"
}

// NewCreateObjectHandler handles POST requests that store new objects
func NewCreateObjectHandler(app objectstore.ObjectStore, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "create-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		labeler, _ := otelhttp.LabelerFromContext(ctx)
		defer func() { addLabelIfError(err, labeler) }()

		obj, err := readObject(r)
		if err != nil {
			errors.ReportNewInvalidRequest(w, fmt.Sprintf("unable to decode request payload: %s", err.Error()), traceID(ctx))
			return
		}

		if err = checkAccess(ctx, w, r, authenticator, obj.Types()); err != nil {
			return
		}

		created, err := app.CreateObject(ctx, obj)
		if err != nil {
			logging.GetFromContext(ctx).Error("create object failed", "err", err.Error())
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		span.SetAttributes(attribute.String(TraceAttributeObjectID, created.ID()))

		w.Header().Add("Location", apiBase+"/objects/"+url.PathEscape(created.ID()))
		w.WriteHeader(http.StatusCreated)
	})
}

// NewQueryObjectsHandler lists stored objects, optionally only those of a type
func NewQueryObjectsHandler(app objectstore.ObjectStore, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		typeName := r.URL.Query().Get("type")

		ctx, span := tracer.Start(r.Context(), "query-objects", trace.WithAttributes(attribute.String(TraceAttributeObjectType, typeName)))
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		requestedTypes := []string{}
		if typeName != "" {
			requestedTypes = append(requestedTypes, typeName)
		}

		if err = checkAccess(ctx, w, r, authenticator, requestedTypes); err != nil {
			return
		}

		found, err := app.QueryObjects(ctx, typeName)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		err = writeJSON(w, http.StatusOK, responseContentType(r), found)
		if err != nil {
			logging.GetFromContext(ctx).Error("failed to marshal objects", "err", err.Error())
		}
	})
}

func NewRetrieveObjectHandler(app objectstore.ObjectStore, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "retrieve-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		id, err := objectID(r)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		span.SetAttributes(attribute.String(TraceAttributeObjectID, id))

		obj, retrieveErr := app.RetrieveObject(ctx, id)
		if retrieveErr != nil {
			if err = checkAccess(ctx, w, r, authenticator, nil); err != nil {
				return
			}
			err = retrieveErr
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		if err = checkAccess(ctx, w, r, authenticator, obj.Types()); err != nil {
			return
		}

		err = writeJSON(w, http.StatusOK, responseContentType(r), obj)
		if err != nil {
			logging.GetFromContext(ctx).Error("failed to marshal object", "err", err.Error())
		}
	})
}

// NewUpdateObjectHandler replaces a stored object. With ?upsert=true a missing
// object is created instead.
func NewUpdateObjectHandler(app objectstore.ObjectStore, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "update-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		id, err := objectID(r)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		span.SetAttributes(attribute.String(TraceAttributeObjectID, id))

		obj, err := readObject(r)
		if err != nil {
			errors.ReportNewInvalidRequest(w, fmt.Sprintf("unable to decode request payload: %s", err.Error()), traceID(ctx))
			return
		}

		if obj.ID() == "" {
			obj, err = obj.With(objects.P(objects.KeyID, id))
			if err != nil {
				mapToProblemReport(w, err, traceID(ctx))
				return
			}
		} else if obj.ID() != id {
			err = errors.NewBadRequestDataError(fmt.Sprintf("object id %s does not match %s", obj.ID(), id))
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		if err = checkAccess(ctx, w, r, authenticator, obj.Types()); err != nil {
			return
		}

		upsert := r.URL.Query().Get("upsert") == "true"

		_, err = app.UpdateObject(ctx, obj, upsert)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

func NewDeleteObjectHandler(app objectstore.ObjectStore, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "delete-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		id, err := objectID(r)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		span.SetAttributes(attribute.String(TraceAttributeObjectID, id))

		if err = checkAccess(ctx, w, r, authenticator, nil); err != nil {
			return
		}

		err = app.DeleteObject(ctx, id)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// NewDescribeObjectHandler returns one line per type the object is, most
// specific type first
func NewDescribeObjectHandler(app objectstore.ObjectStore, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "describe-object")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		id, err := objectID(r)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		if err = checkAccess(ctx, w, r, authenticator, nil); err != nil {
			return
		}

		lines, err := app.DescribeObject(ctx, id)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		err = writeJSON(w, http.StatusOK, "application/json", lines)
		if err != nil {
			logging.GetFromContext(ctx).Error("failed to marshal description", "err", err.Error())
		}
	})
}
