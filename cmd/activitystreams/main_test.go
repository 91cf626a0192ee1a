package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/diwise/activitystreams/internal/pkg/application/objectstore"
	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var method = expects.RequestMethod
var bodyContaining = expects.RequestBodyContaining

func TestCreatedObjectIsAnnounced(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	ms := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			bodyContaining("urn:checkin:1"),
		),
		Returns(
			response.Code(http.StatusOK),
		),
	)
	defer ms.Close()

	handler, shutdown, err := initialize(ctx, defaultFlags(), newTestConfig(is, ms.URL()))
	is.NoErr(err)

	ts := httptest.NewServer(handler)
	defer ts.Close()

	resp, _ := testRequest(is, ts, http.MethodPost, "/activitystreams/v1/objects", bytes.NewBufferString(checkInJSON))
	is.Equal(resp.StatusCode, http.StatusCreated)

	resp, body := testRequest(is, ts, http.MethodGet, "/activitystreams/v1/objects?type=Arrive", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, "Acme Cafe"))

	resp, body = testRequest(is, ts, http.MethodGet, "/metrics", nil)
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, `activitystreams_objectstore_operations_total{operation="create",result="ok"} 1`))

	shutdown()

	is.Equal(ms.RequestCount(), 1) // one notification per created object
}

func TestShippedConfigurationLoads(t *testing.T) {
	is := is.New(t)

	flags := defaultFlags()
	flags[configPath] = "../../assets/config/activitystreams.yaml"
	flags[opaPath] = "../../assets/config/authz.rego"
	flags[assetsPath] = "../../assets/config"

	cfg, err := loadAppConfig(flags)
	is.NoErr(err)
	defer cfg.opaConfig.Close()

	vocabs, shortIDs, err := cfg.storeConfig.LoadVocabularies(cfg.assets)
	is.NoErr(err)
	is.Equal(len(vocabs), 2)
	is.Equal(shortIDs["checkup:CheckIn"], "http://checkup.example/ns#CheckIn")

	contexts, err := cfg.storeConfig.LoadContexts(cfg.assets)
	is.NoErr(err)
	is.Equal(len(contexts), 1)
}

func testRequest(is *is.I, ts *httptest.Server, method, path string, body io.Reader) (*http.Response, string) {
	req, _ := http.NewRequest(method, ts.URL+path, body)
	req.Header.Add("Content-Type", "application/ld+json")
	req.Header.Add("Authorization", "Bearer letmein")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	return resp, string(respBody)
}

func newTestConfig(is *is.I, notificationEndpoint string) *AppConfig {
	cfg, err := objectstore.LoadConfiguration(bytes.NewBufferString(fmt.Sprintf(configFileFmt, notificationEndpoint)))
	is.NoErr(err)

	return &AppConfig{
		storeConfig: cfg,
		opaConfig:   io.NopCloser(bytes.NewBufferString(opaModule)),
		assets: fstest.MapFS{
			"vocabularies/checkup.yaml": &fstest.MapFile{Data: []byte(checkupVocabulary)},
		},
	}
}

var configFileFmt string = `
vocabularies:
  - path: vocabularies/checkup.yaml
notifications:
  endpoint: %s
storage:
  driver: memory
`

var checkupVocabulary string = `
name: checkup
types:
  - id: http://checkup.example/ns#CheckIn
    short: CheckIn
    parents: [Arrive]
`

var checkInJSON string = `{"@id":"urn:checkin:1","@type":"CheckIn","location":"Acme Cafe"}`

const opaModule string = `
package activitystreams.authz

import rego.v1

default allow := false

allow := response if {
	input.token == "letmein"
	response := {}
}
`
