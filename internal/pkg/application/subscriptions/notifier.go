package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

type Notifier interface {
	Start() error
	Stop() error

	ObjectCreated(ctx context.Context, obj *objects.ASObj)
	ObjectUpdated(ctx context.Context, obj *objects.ASObj)
	ObjectDeleted(ctx context.Context, obj *objects.ASObj)
}

var tracer = otel.Tracer("activitystreams/notifier")

type action func()

type publishFunc func(ctx context.Context, body []byte) error

type notifier struct {
	started bool
	publish publishFunc

	queue chan action
}

// NewNotifier posts notifications to an http endpoint
func NewNotifier(ctx context.Context, endpoint string) (Notifier, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("a notification endpoint is required")
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	return newNotifier(func(ctx context.Context, body []byte) error {
		return postNotification(ctx, httpClient, endpoint, body)
	}), nil
}

// NewNATSNotifier publishes notifications on a nats subject
func NewNATSNotifier(ctx context.Context, nc *nats.Conn, subject string) (Notifier, error) {
	if nc == nil || subject == "" {
		return nil, fmt.Errorf("a nats connection and a subject are required")
	}

	return newNotifier(func(ctx context.Context, body []byte) error {
		msg := nats.NewMsg(subject)
		msg.Header.Set("Content-Type", "application/activity+json")
		msg.Data = body

		if err := nc.PublishMsg(msg); err != nil {
			return fmt.Errorf("failed to publish notification (%w)", err)
		}
		return nil
	}), nil
}

func newNotifier(publish publishFunc) *notifier {
	return &notifier{
		publish: publish,
		queue:   make(chan action, 32),
	}
}

func (n *notifier) Start() error {
	if n.started {
		return fmt.Errorf("already started")
	}

	n.started = true

	go n.run()

	return nil
}

func (n *notifier) Stop() error {
	if n.started {
		resultChan := make(chan bool)

		n.queue <- func() {
			// close the queue to signal the consumers that we are going out of business
			close(n.queue)
			resultChan <- true
		}

		<-resultChan
		n.started = false
	}
	return nil
}

func (n *notifier) ObjectCreated(ctx context.Context, obj *objects.ASObj) {
	n.enqueue(ctx, ActivityCreate, obj)
}

func (n *notifier) ObjectUpdated(ctx context.Context, obj *objects.ASObj) {
	n.enqueue(ctx, ActivityUpdate, obj)
}

func (n *notifier) ObjectDeleted(ctx context.Context, obj *objects.ASObj) {
	n.enqueue(ctx, ActivityDelete, obj)
}

func (n *notifier) enqueue(ctx context.Context, activityType string, obj *objects.ASObj) {
	if !n.started {
		return
	}

	var err error

	logger := logging.GetFromContext(ctx)

	ctx, span := tracer.Start(
		tracing.ExtractHeaders(context.Background(), tracing.InjectHeaders(ctx)),
		"notify",
	)

	n.queue <- func() {
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		var notification *objects.ASObj
		notification, err = NewNotification(activityType, obj)
		if err != nil {
			logger.Error("failed to create notification", "err", err.Error())
			return
		}

		var body []byte
		body, err = json.MarshalIndent(notification, "", " ")
		if err != nil {
			logger.Error("failed to marshal notification", "err", err.Error())
			return
		}

		err = n.publish(ctx, body)
		if err != nil {
			logger.Error("failed to publish notification", "err", err.Error())
		}
	}
}

func postNotification(ctx context.Context, httpClient *http.Client, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("unable to create new request (%w)", err)
	}

	req.Header.Add("Content-Type", "application/activity+json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request (%w)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notification endpoint returned status code %d", resp.StatusCode)
	}

	return nil
}

func (n *notifier) run() {
	// repeat until the queue is closed
	for action := range n.queue {
		if action == nil {
			return
		}

		action()
	}
}
