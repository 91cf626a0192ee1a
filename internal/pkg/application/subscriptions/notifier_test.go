package subscriptions

import (
	"context"
	"net/http"
	"testing"

	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns

var method = expects.RequestMethod
var bodyContaining = expects.RequestBodyContaining

func TestSingleNotificationOnCreate(t *testing.T) {
	is := is.New(t)
	const objectID string = "urn:note:mynote"

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			bodyContaining(objectID),
			bodyContaining(`"@type": "Create"`),
		),
		Returns(
			response.Code(http.StatusOK),
		),
	)
	defer s.Close()

	ctx := context.Background()
	n, err := NewNotifier(ctx, s.URL())
	is.NoErr(err)

	n.Start()

	note, err := objects.Create(objectID, "Note", objects.P("content", "hello"))
	is.NoErr(err)

	n.ObjectCreated(ctx, note)

	n.Stop()

	is.Equal(s.RequestCount(), 1)
}

func TestNoNotificationsBeforeStart(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, method(http.MethodPost)),
		Returns(response.Code(http.StatusOK)),
	)
	defer s.Close()

	ctx := context.Background()
	n, err := NewNotifier(ctx, s.URL())
	is.NoErr(err)

	note, err := objects.Create("urn:note:1", "Note")
	is.NoErr(err)

	n.ObjectUpdated(ctx, note)
	n.Stop()

	is.Equal(s.RequestCount(), 0)
}

func TestNotificationWrapsObject(t *testing.T) {
	is := is.New(t)

	note, err := objects.Create("urn:note:1", "Note", objects.P("content", "hello"))
	is.NoErr(err)

	notification, err := NewNotification(ActivityDelete, note)
	is.NoErr(err)

	is.Equal(notification.Types(), []string{"Delete"})

	wrapped, ok := notification.Object("object")
	is.True(ok)
	is.True(wrapped.Equal(note))

	published, ok := notification.GetString("published")
	is.True(ok)
	is.True(published != "")
}
