package objectstore

import (
	goerrors "errors"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	operations *prometheus.CounterVec
}

// newMetrics creates the operation counters and registers them with reg. A nil
// registry keeps the counters unregistered.
func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "activitystreams",
			Subsystem: "objectstore",
			Name:      "operations_total",
			Help:      "Total object store operations by operation and result",
		}, []string{"operation", "result"}),
	}

	if reg != nil {
		if err := reg.Register(m.operations); err != nil {
			return nil, err
		}
	}

	return m, nil
}

func (m *metrics) observe(operation string, err error) {
	m.operations.WithLabelValues(operation, result(err)).Inc()
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case goerrors.Is(err, errors.ErrNotFound):
		return "not_found"
	case goerrors.Is(err, errors.ErrAlreadyExists):
		return "conflict"
	case goerrors.Is(err, errors.ErrBadRequest),
		goerrors.Is(err, errors.ErrMalformedDocument),
		goerrors.Is(err, errors.ErrUnknownType):
		return "invalid"
	default:
		return "error"
	}
}
