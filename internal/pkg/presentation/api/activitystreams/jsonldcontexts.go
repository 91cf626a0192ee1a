package activitystreams

import (
	"net/http"

	"github.com/diwise/activitystreams/internal/pkg/application/objectstore"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
)

// NewServeContextHandler serves the json-ld contexts that are configured
// with a local copy
func NewServeContextHandler(app objectstore.ObjectStore) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		contextID := chi.URLParam(r, "contextId")

		document, err := app.RetrieveContext(ctx, contextID)
		if err != nil {
			mapToProblemReport(w, err, traceID(ctx))
			return
		}

		logging.GetFromContext(ctx).Debug("context requested from client", "context", contextID)

		err = writeJSON(w, http.StatusOK, "application/ld+json", document)
		if err != nil {
			logging.GetFromContext(ctx).Error("failed to marshal context", "err", err.Error())
		}
	})
}
