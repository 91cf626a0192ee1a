package vocab

import (
	"bytes"
	"errors"
	"testing"

	aserrors "github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
	"github.com/matryer/is"
)

func asURI(name string) string {
	return "https://www.w3.org/ns/activitystreams#" + name
}

var (
	object   = types.New(asURI("Object"), nil, types.Short("Object"), types.Core())
	activity = types.New(asURI("Activity"), []*types.ASType{object}, types.Short("Activity"), types.Core())
	arrive   = types.New(asURI("Arrive"), []*types.ASType{activity}, types.Short("Arrive"), types.Core())
	anon     = types.New("http://example.org/ns#anonymous", []*types.ASType{object})

	coreVocab = NewNamed("core", object, activity, arrive, anon)
)

func TestLookup(t *testing.T) {
	is := is.New(t)

	found, ok := coreVocab.Lookup(asURI("Activity"))
	is.True(ok)
	is.Equal(found, activity)

	found, ok = coreVocab.LookupShort("Arrive")
	is.True(ok)
	is.Equal(found, arrive)

	_, ok = coreVocab.Lookup("Activity")
	is.True(!ok) // short ids are not URIs

	is.Equal(coreVocab.Len(), 4)
	is.Equal(coreVocab.Name(), "core")
}

func TestDuplicateURIKeepsFirstDefinition(t *testing.T) {
	is := is.New(t)

	other := types.New(asURI("Object"), nil, types.Short("Thing"))
	v := New(object, other)

	is.Equal(v.Len(), 1)
	found, _ := v.Lookup(asURI("Object"))
	is.Equal(found, object)
}

func TestShortIDs(t *testing.T) {
	is := is.New(t)

	ids := ShortIDs(coreVocab, "")
	is.Equal(len(ids), 3) // the anonymous type has no short id
	is.Equal(ids["Arrive"], asURI("Arrive"))

	prefixed := ShortIDs(coreVocab, "as")
	is.Equal(prefixed["as:Object"], asURI("Object"))
}

func TestMergeLetsLaterMapsWin(t *testing.T) {
	is := is.New(t)

	merged := Merge(map[string]string{"a": "1", "b": "2"}, map[string]string{"b": "3"})
	is.Equal(merged, map[string]string{"a": "1", "b": "3"})
}

func TestLoadDefinition(t *testing.T) {
	is := is.New(t)

	v, err := LoadDefinition(bytes.NewBufferString(checkupDefinition), coreVocab)
	is.NoErr(err)

	is.Equal(v.Name(), "checkup")
	is.Equal(v.Len(), 4)

	checkIn, ok := v.LookupShort("CheckIn")
	is.True(ok)
	is.Equal(checkIn.Notes(), "Check in to a location.")
	is.True(!checkIn.IsCore()) // extension vocabularies are not core
	is.Equal(checkIn.Chain(), []*types.ASType{checkIn, arrive, activity, object})

	royal, _ := v.LookupShort("RoyalStatus")
	coupon, _ := v.LookupShort("Coupon")
	is.Equal(royal.Parents(), []*types.ASType{coupon, object}) // parents may be defined later in the file
}

func TestLoadDefinitionWithUnknownParentFails(t *testing.T) {
	is := is.New(t)

	_, err := LoadDefinition(bytes.NewBufferString(checkupDefinition))
	is.True(errors.Is(err, aserrors.ErrUnknownType))
}

func TestLoadDefinitionWithCycleFails(t *testing.T) {
	is := is.New(t)

	_, err := LoadDefinition(bytes.NewBufferString(cyclicDefinition))
	is.True(errors.Is(err, aserrors.ErrCyclicTypeGraph))
}

func TestLoadDefinitionWithMissingIDFails(t *testing.T) {
	is := is.New(t)

	_, err := LoadDefinition(bytes.NewBufferString("name: broken\ntypes:\n  - short: Nameless\n"))
	is.True(errors.Is(err, aserrors.ErrInvalidDefinition))

	_, err = LoadDefinition(bytes.NewBufferString("types: [this is not a list of types"))
	is.True(errors.Is(err, aserrors.ErrInvalidDefinition))
}

const checkupDefinition string = `
name: checkup
types:
  - id: http://checkup.example/ns#CheckIn
    short: CheckIn
    parents: [Arrive]
    notes: Check in to a location.
  - id: http://checkup.example/ns#RoyalStatus
    short: RoyalStatus
    parents: [Coupon, "https://www.w3.org/ns/activitystreams#Object"]
    notes: How royal you are at a given location!
  - id: http://checkup.example/ns#Coupon
    short: Coupon
    parents: [Object]
  - id: http://checkup.example/ns#Stamp
`

const cyclicDefinition string = `
name: cyclic
types:
  - id: http://example.org/ns#a
    parents: ["http://example.org/ns#c"]
  - id: http://example.org/ns#b
    parents: ["http://example.org/ns#a"]
  - id: http://example.org/ns#c
    parents: ["http://example.org/ns#b"]
`

func TestCoreVocabulary(t *testing.T) {
	is := is.New(t)

	core, err := Core()
	is.NoErr(err)
	is.Equal(core.Name(), "activitystreams")

	ocp, ok := core.LookupShort("OrderedCollectionPage")
	is.True(ok)
	is.True(ocp.IsCore())
	is.Equal(ocp.Tag(), "OrderedCollectionPage")

	block, ok := core.Lookup("http://www.w3.org/ns/activitystreams#Block")
	is.True(ok)
	is.Equal(types.IDs(block.Chain())[1], "http://www.w3.org/ns/activitystreams#Ignore")

	again, _ := Core()
	is.True(again == core) // built once
}
