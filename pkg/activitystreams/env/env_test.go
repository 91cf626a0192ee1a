package env

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/diwise/activitystreams/pkg/activitystreams/dispatch"
	aserrors "github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/jsonld"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
	"github.com/diwise/activitystreams/pkg/activitystreams/vocab"
	"github.com/matryer/is"
)

func fakeTypeURI(name string) string {
	return "http://example.org/ns#" + name
}

var (
	asObject     = types.New(fakeTypeURI("object"), nil, types.Short("Object"), types.Core())
	asLink       = types.New(fakeTypeURI("link"), nil, types.Short("Link"), types.Core())
	asActivity   = types.New(fakeTypeURI("activity"), []*types.ASType{asObject}, types.Short("Activity"), types.Core())
	asPost       = types.New(fakeTypeURI("post"), []*types.ASType{asActivity}, types.Short("Post"), types.Core())
	asDelete     = types.New(fakeTypeURI("delete"), []*types.ASType{asActivity}, types.Short("Delete"), types.Core())
	asCollection = types.New(fakeTypeURI("collection"), []*types.ASType{asObject}, types.Short("Collection"), types.Core())
	asOrdered    = types.New(fakeTypeURI("orderedcollection"), []*types.ASType{asCollection}, types.Short("OrderedCollection"), types.Core())
	asPage       = types.New(fakeTypeURI("collectionpage"), []*types.ASType{asCollection}, types.Short("CollectionPage"), types.Core())
	asOrderedPg  = types.New(fakeTypeURI("orderedcollectionpage"), []*types.ASType{asOrdered, asPage}, types.Short("OrderedCollectionPage"), types.Core())

	asWidget      = types.New(fakeTypeURI("widget"), []*types.ASType{asObject}, types.Short("Widget"))
	asFancyWidget = types.New(fakeTypeURI("fancywidget"), []*types.ASType{asWidget}, types.Short("FancyWidget"))

	exampleVocab = vocab.New(
		asObject, asLink,
		asActivity, asPost, asDelete,
		asCollection, asOrdered, asPage, asOrderedPg,
		asWidget, asFancyWidget,
	)
)

var (
	save          = dispatch.NewMethodID("save", "Save things", dispatch.One)
	getThings     = dispatch.NewMethodID("get_things", "Build up a map of stuff", dispatch.Map)
	combineThings = dispatch.NewMethodID("combine", "combine things", dispatch.Fold)
)

type saved struct {
	how string
	obj *objects.ASObj
}

func saveAs(how string) dispatch.Handler {
	return func(ctx context.Context, obj *objects.ASObj, args ...any) (any, error) {
		db := args[0].(map[string]saved)
		db[obj.ID()] = saved{how: how, obj: obj}
		return nil, nil
	}
}

func constant(value string) dispatch.Handler {
	return func(ctx context.Context, obj *objects.ASObj, args ...any) (any, error) {
		return value, nil
	}
}

func chant(line string) dispatch.FoldHandler {
	return func(ctx context.Context, acc any, obj *objects.ASObj, args ...any) (any, error) {
		return fmt.Sprintf("%s%s%s\n", acc, args[0], line), nil
	}
}

func methodEnv(is *is.I, extra ...Option) *Environment {
	options := []Option{
		Vocabularies(exampleVocab),
		Method(save, asObject, saveAs("saved as object")),
		Method(save, asWidget, saveAs("saved as widget")),
		Method(getThings, asObject, constant("objects are fun")),
		Method(getThings, asActivity, constant("activities are neat")),
		Method(getThings, asPost, constant("posts are cool")),
		FoldMethod(combineThings, asCollection, chant("%s, my friend, and remember us collected")),
		FoldMethod(combineThings, asOrdered, chant(", my dear, and cherish the order")),
		FoldMethod(combineThings, asOrderedPg, chant(", my sweet, a new page is turning")),
	}

	e, err := New(append(options, extra...)...)
	is.NoErr(err)

	return e
}

func TestConstructorAccess(t *testing.T) {
	is := is.New(t)
	e := methodEnv(is)

	widget, err := e.Construct("Widget", "", objects.P("foo", "bar"))
	is.NoErr(err)

	foo, _ := widget.GetString("foo")
	is.Equal(foo, "bar")
	is.Equal(widget.Types(), []string{fakeTypeURI("widget")}) // extension types are written by URI

	resolved, err := e.Resolve(widget)
	is.NoErr(err)
	is.Equal(resolved, []*types.ASType{asWidget})

	c, err := e.Constructor("Widget")
	is.NoErr(err)
	is.Equal(c.Type(), asWidget)

	note, err := e.Construct("Post", "fooid:0808")
	is.NoErr(err)
	is.Equal(note.Types(), []string{"Post"}) // core types are written by their short id
	is.Equal(note.ID(), "fooid:0808")

	_, err = e.Construct("Gadget", "")
	is.True(errors.Is(err, aserrors.ErrUnknownType))

	is.Equal(len(e.ConstructorNames()), exampleVocab.Len())
}

func TestInvokeOne(t *testing.T) {
	is := is.New(t)
	e := methodEnv(is)
	ctx := context.Background()
	db := map[string]saved{}

	widget, _ := e.Construct("Widget", "fooid:12345")
	_, err := e.InvokeOne(ctx, save, widget, db)
	is.NoErr(err)
	is.Equal(db["fooid:12345"].how, "saved as widget")
	is.True(db["fooid:12345"].obj == widget)

	object, _ := e.Construct("Object", "fooid:00001")
	_, err = e.InvokeOne(ctx, save, object, db)
	is.NoErr(err)
	is.Equal(db["fooid:00001"].how, "saved as object")

	collection, _ := e.Construct("Collection", "fooid:8888")
	_, err = e.Invoke(ctx, "save", collection, db)
	is.NoErr(err)
	is.Equal(db["fooid:8888"].how, "saved as object")
}

func TestInvokeOneWithoutMatchingHandler(t *testing.T) {
	is := is.New(t)
	e := methodEnv(is)
	ctx := context.Background()

	link, _ := e.Construct("Link", "fooid:link")

	_, err := e.InvokeOne(ctx, save, link, map[string]saved{})
	is.True(errors.Is(err, aserrors.ErrNoMethodFound))

	result, err := e.InvokeOneOr(ctx, save, link, func(ctx context.Context, obj *objects.ASObj) (any, error) {
		return "fallback for " + obj.ID(), nil
	})
	is.NoErr(err)
	is.Equal(result, "fallback for fooid:link")
}

func TestInvokeMap(t *testing.T) {
	is := is.New(t)
	e := methodEnv(is)
	ctx := context.Background()

	widget, _ := e.Construct("Widget", "fooid:12345")
	result, err := e.InvokeMap(ctx, getThings, widget)
	is.NoErr(err)
	is.Equal(result, []any{"objects are fun"})

	activity, _ := e.Construct("Activity", "fooid:0202")
	result, err = e.InvokeMap(ctx, getThings, activity)
	is.NoErr(err)
	is.Equal(result, []any{"activities are neat", "objects are fun"})

	del, _ := e.Construct("Delete", "fooid:0303")
	result, err = e.InvokeMap(ctx, getThings, del)
	is.NoErr(err)
	is.Equal(result, []any{"activities are neat", "objects are fun"})

	post, _ := e.Construct("Post", "fooid:0808")
	mapped, err := e.Invoke(ctx, "get_things", post)
	is.NoErr(err)
	is.Equal(mapped, []any{"posts are cool", "activities are neat", "objects are fun"})

	link, _ := e.Construct("Link", "fooid:link")
	result, err = e.InvokeMap(ctx, getThings, link)
	is.NoErr(err)
	is.Equal(len(result), 0) // no handlers is not an error for map
}

func TestInvokeFold(t *testing.T) {
	is := is.New(t)
	e := methodEnv(is)
	ctx := context.Background()

	page, _ := e.Construct("OrderedCollectionPage", "fooid:page")
	result, err := e.InvokeFold(ctx, combineThings, page, "", "Hey")
	is.NoErr(err)
	is.Equal(result, ""+
		"Hey, my sweet, a new page is turning\n"+
		"Hey, my dear, and cherish the order\n"+
		"Hey%s, my friend, and remember us collected\n")

	combine, err := e.Method("combine")
	is.NoErr(err)

	collection, _ := e.Construct("Collection", "fooid:8888")
	result, err = combine(ctx, collection, "Chant: ", "Yo")
	is.NoErr(err)
	is.Equal(result, "Chant: Yo%s, my friend, and remember us collected\n") // first argument is the initial value

	widget, _ := e.Construct("Widget", "fooid:12345")
	result, err = e.InvokeFold(ctx, combineThings, widget, "untouched", "Hey")
	is.NoErr(err)
	is.Equal(result, "untouched")
}

func TestInvokeWithWrongStrategyFails(t *testing.T) {
	is := is.New(t)
	e := methodEnv(is)
	ctx := context.Background()

	widget, _ := e.Construct("Widget", "fooid:12345")

	_, err := e.InvokeMap(ctx, save, widget)
	is.True(errors.Is(err, aserrors.ErrStrategyMismatch))

	_, err = e.InvokeOne(ctx, combineThings, widget)
	is.True(errors.Is(err, aserrors.ErrStrategyMismatch))
}

func TestRegisteringWrongHandlerKindFails(t *testing.T) {
	is := is.New(t)

	_, err := New(Vocabularies(exampleVocab), FoldMethod(save, asObject, chant("nope")))
	is.True(errors.Is(err, aserrors.ErrStrategyMismatch))

	_, err = New(Vocabularies(exampleVocab), Method(combineThings, asObject, constant("nope")))
	is.True(errors.Is(err, aserrors.ErrStrategyMismatch))

	_, err = New(Method(save, nil, constant("nope")))
	is.True(errors.Is(err, aserrors.ErrInvalidDefinition))
}

func TestUnknownTypesCannotBeDispatched(t *testing.T) {
	is := is.New(t)
	e := methodEnv(is)

	gadget, err := objects.Create("fooid:gadget", "Gadget")
	is.NoErr(err)

	_, err = e.InvokeOne(context.Background(), save, gadget, map[string]saved{})
	is.True(errors.Is(err, aserrors.ErrUnknownType))

	_, err = e.Linearize(gadget)
	is.True(errors.Is(err, aserrors.ErrUnknownType))
}

func TestResolveByShortIDOrURI(t *testing.T) {
	is := is.New(t)
	e := methodEnv(is)

	byShort, err := e.ResolveType("Widget")
	is.NoErr(err)
	byURI, err := e.ResolveType(fakeTypeURI("widget"))
	is.NoErr(err)
	is.Equal(byShort, byURI)

	multi, err := objects.CreateMulti("fooid:multi", []string{"FancyWidget", fakeTypeURI("orderedcollectionpage")})
	is.NoErr(err)

	lin, err := e.Linearize(multi)
	is.NoErr(err)
	is.Equal(types.IDs(lin), types.IDs([]*types.ASType{
		asFancyWidget, asWidget, asOrderedPg, asOrdered, asPage, asCollection, asObject,
	}))
}

func TestPrefixedShortIDs(t *testing.T) {
	is := is.New(t)

	e, err := New(
		Vocabularies(exampleVocab),
		ShortIDs(vocab.ShortIDs(exampleVocab, "ex")),
	)
	is.NoErr(err)

	_, err = e.ResolveType("ex:Widget")
	is.NoErr(err)

	_, err = e.ResolveType("Widget")
	is.True(errors.Is(err, aserrors.ErrUnknownType)) // only the prefixed ids are known

	_, err = e.Construct("Widget", "")
	is.NoErr(err) // constructors still default to the plain short ids
}

func TestMethodNames(t *testing.T) {
	is := is.New(t)
	e := methodEnv(is)

	is.Equal(e.MethodNames(), []string{"combine", "get_things", "save"})

	_, err := e.Method("explode")
	is.True(errors.Is(err, aserrors.ErrNoMethodFound))
}

func TestAmbiguousMethodNames(t *testing.T) {
	is := is.New(t)

	otherSave := dispatch.NewMethodID("save", "Save things elsewhere", dispatch.One)
	e := methodEnv(is, Method(otherSave, asObject, constant("saved elsewhere")))

	_, err := e.Invoke(context.Background(), "save", nil)
	is.True(errors.Is(err, aserrors.ErrAmbiguousMethod))

	widget, _ := e.Construct("Widget", "fooid:12345")
	result, err := e.InvokeOne(context.Background(), otherSave, widget)
	is.NoErr(err)
	is.Equal(result, "saved elsewhere") // methods are told apart by identity, not by name
}

func TestLoadContexts(t *testing.T) {
	is := is.New(t)

	e := methodEnv(is,
		ImpliedContext(jsonld.ActivityStreamsContext),
		DocumentLoader(jsonld.NewStaticLoader(map[string]any{
			jsonld.ActivityStreamsContext: map[string]any{"@context": map[string]any{}},
		})),
	)
	is.Equal(e.ImpliedContext(), jsonld.ActivityStreamsContext)

	widget, _ := e.Construct("Widget", "fooid:12345")
	docs, err := e.LoadContexts(context.Background(), widget)
	is.NoErr(err)
	is.Equal(len(docs), 1)
	is.Equal(docs[0].DocumentURL, jsonld.ActivityStreamsContext)
}
