package objectstore

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/matryer/is"
)

func TestLoadConfig(t *testing.T) {
	is, cfg := setupConfigTest(t, configFile)

	is.Equal(cfg.ImpliedContext, "https://www.w3.org/ns/activitystreams")
	is.Equal(len(cfg.Vocabularies), 1) // should find a single vocabulary
	is.Equal(cfg.Vocabularies[0].Prefix, "checkup")
	is.Equal(cfg.Storage.Driver, StorageMemory) // memory is the default driver
}

func TestLoadValidationRules(t *testing.T) {
	is, cfg := setupConfigTest(t, configFile)

	is.Equal(len(cfg.Validation), 3)
	is.Equal(cfg.Validation[0].Type, "Note")
	is.Equal(cfg.Validation[0].Required, []string{"content"})
	is.True(cfg.Validation[2].Final)
}

func TestLoadContextConfig(t *testing.T) {
	is, cfg := setupConfigTest(t, configFile)

	url, ok := cfg.ContextURL("checkup")
	is.True(ok)
	is.Equal(url, "https://checkup.example/ns/context.jsonld")

	_, ok = cfg.ContextURL("unknown")
	is.True(!ok)
}

func TestConfigWithUnknownStorageDriverFails(t *testing.T) {
	is := is.New(t)

	_, err := LoadConfiguration(bytes.NewBufferString("storage:\n  driver: mongo\n"))
	is.True(err != nil) // unknown driver should be rejected
}

func TestConfigWithSQLiteNeedsPath(t *testing.T) {
	is := is.New(t)

	_, err := LoadConfiguration(bytes.NewBufferString("storage:\n  driver: sqlite\n"))
	is.True(err != nil) // sqlite without a path should be rejected

	cfg, err := LoadConfiguration(bytes.NewBufferString("storage:\n  driver: sqlite\n  path: /tmp/objects.db\n"))
	is.NoErr(err)
	is.Equal(cfg.Storage.Path, "/tmp/objects.db")
}

func TestConfigWithNATSNeedsSubject(t *testing.T) {
	is := is.New(t)

	_, err := LoadConfiguration(bytes.NewBufferString("notifications:\n  nats:\n    url: nats://localhost:4222\n"))
	is.True(err != nil)
}

func TestConfigWithIncompleteVocabularyFails(t *testing.T) {
	is := is.New(t)

	_, err := LoadConfiguration(bytes.NewBufferString("vocabularies:\n  - prefix: nopath\n"))
	is.True(err != nil)
}

func TestLoadVocabulariesStartsWithCore(t *testing.T) {
	is, cfg := setupConfigTest(t, configFile)

	vocabs, shortIDs, err := cfg.LoadVocabularies(testFS())
	is.NoErr(err)

	is.Equal(len(vocabs), 2)
	is.Equal(vocabs[0].Name(), "activitystreams")
	is.Equal(vocabs[1].Name(), "checkup")

	is.Equal(shortIDs["checkup:CheckIn"], "http://checkup.example/ns#CheckIn")
	is.Equal(shortIDs["Note"], "http://www.w3.org/ns/activitystreams#Note")

	_, unprefixed := shortIDs["CheckIn"]
	is.True(!unprefixed) // prefixed vocabularies only register prefixed short ids
}

func TestLoadVocabulariesWithMissingFileFails(t *testing.T) {
	is := is.New(t)

	cfg := &Config{Vocabularies: []VocabularyConfig{{Path: "vocabularies/missing.yaml"}}}
	_, _, err := cfg.LoadVocabularies(fstest.MapFS{})
	is.True(err != nil)
}

func TestLoadContexts(t *testing.T) {
	is, cfg := setupConfigTest(t, configFile)

	documents, err := cfg.LoadContexts(testFS())
	is.NoErr(err)

	doc, ok := documents["https://checkup.example/ns/context.jsonld"].(map[string]any)
	is.True(ok)
	is.True(doc["@context"] != nil)
}

func setupConfigTest(t *testing.T, data string) (*is.I, *Config) {
	is := is.New(t)
	cfg, err := LoadConfiguration(bytes.NewBufferString(data))
	is.NoErr(err)

	return is, cfg
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"vocabularies/checkup.yaml": &fstest.MapFile{Data: []byte(checkupVocabulary)},
		"contexts/checkup.jsonld":   &fstest.MapFile{Data: []byte(checkupContext)},
	}
}

var configFile string = `
impliedContext: https://www.w3.org/ns/activitystreams
vocabularies:
  - path: vocabularies/checkup.yaml
    prefix: checkup
contexts:
  - id: checkup
    url: https://checkup.example/ns/context.jsonld
    path: contexts/checkup.jsonld
validation:
  - type: Note
    required: [content]
  - type: Activity
    required: [actor]
  - type: checkup:CheckIn
    required: [location]
    final: true
`

var checkupVocabulary string = `
name: checkup
types:
  - id: http://checkup.example/ns#CheckIn
    short: CheckIn
    parents: [Arrive]
    notes: Check in to a location.
  - id: http://checkup.example/ns#Coupon
    short: Coupon
    parents: [Object]
  - id: http://checkup.example/ns#RoyalStatus
    short: RoyalStatus
    parents: [Object]
`

var checkupContext string = `{
  "@context": {
    "checkup": "http://checkup.example/ns#",
    "CheckIn": "checkup:CheckIn"
  }
}`
