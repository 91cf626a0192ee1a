package activitystreams

import (
	"net/http"
	"net/url"

	"github.com/diwise/activitystreams/internal/pkg/application/objectstore"
	"github.com/diwise/activitystreams/internal/pkg/presentation/api/activitystreams/auth"
	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRetrieveTypesHandler handles GET requests for the types known by the
// configured vocabularies
func NewRetrieveTypesHandler(app objectstore.ObjectStore, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()

		labeler, _ := otelhttp.LabelerFromContext(ctx)
		defer func() { addLabelIfError(err, labeler) }()

		if err = checkAccess(ctx, w, r, authenticator, nil); err != nil {
			return
		}

		err = writeJSON(w, http.StatusOK, "application/json", app.RetrieveTypes(ctx))
		if err != nil {
			logging.GetFromContext(ctx).Error("retrieve types: failed to marshal type list to json", "err", err.Error())
		}
	})
}

// NewRetrieveTypeChainHandler returns a type followed by its ancestors in
// the order handlers are looked up
func NewRetrieveTypeChainHandler(app objectstore.ObjectStore, authenticator auth.Enticator) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()

		labeler, _ := otelhttp.LabelerFromContext(ctx)
		defer func() { addLabelIfError(err, labeler) }()

		typeName, err := url.PathUnescape(chi.URLParam(r, "typeName"))
		if err != nil {
			errors.ReportNewInvalidRequest(w, "malformed type name", traceID(ctx))
			return
		}

		if err = checkAccess(ctx, w, r, authenticator, []string{typeName}); err != nil {
			return
		}

		chain, err := app.RetrieveTypeChain(ctx, typeName)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		err = writeJSON(w, http.StatusOK, "application/json", chain)
		if err != nil {
			logging.GetFromContext(ctx).Error("retrieve type chain: failed to marshal chain to json", "err", err.Error())
		}
	})
}
