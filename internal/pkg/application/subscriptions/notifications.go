package subscriptions

import (
	"time"

	"github.com/diwise/activitystreams/pkg/activitystreams/jsonld"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/google/uuid"
)

const (
	ActivityCreate string = "Create"
	ActivityUpdate string = "Update"
	ActivityDelete string = "Delete"
)

// NewNotification wraps obj in an activity describing what happened to it
func NewNotification(activityType string, obj *objects.ASObj) (*objects.ASObj, error) {
	return objects.Create(
		"urn:uuid:"+uuid.New().String(),
		activityType,
		objects.Context(jsonld.ActivityStreamsContext),
		objects.P("published", time.Now().UTC().Format(time.RFC3339Nano)),
		objects.P("object", obj),
	)
}
