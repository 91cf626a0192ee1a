package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/diwise/activitystreams/pkg/activitystreams/errors"
	"github.com/diwise/activitystreams/pkg/activitystreams/objects"
	"github.com/diwise/activitystreams/pkg/activitystreams/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const apiBase string = "/activitystreams/v1"

type ObjectStoreClient interface {
	CreateObject(ctx context.Context, obj *objects.ASObj, headers map[string][]string) (string, error)
	RetrieveObject(ctx context.Context, objectID string, headers map[string][]string) (*objects.ASObj, error)
	UpdateObject(ctx context.Context, obj *objects.ASObj, headers map[string][]string) error
	DeleteObject(ctx context.Context, objectID string, headers map[string][]string) error
	QueryObjects(ctx context.Context, typeName string, headers map[string][]string) ([]*objects.ASObj, error)
	RetrieveTypeChain(ctx context.Context, typeName string, headers map[string][]string) ([]types.Description, error)
}

func Debug(enabled string) func(*osClient) {
	return func(c *osClient) {
		c.debug = (enabled == "true")
	}
}

func WithHTTPClient(httpClient *http.Client) func(*osClient) {
	return func(c *osClient) {
		c.httpClient = httpClient
	}
}

func NewObjectStoreClient(baseURL string, options ...func(*osClient)) ObjectStoreClient {
	c := &osClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeObjectID string = "object-id"
	TraceAttributeTypeName string = "type-name"
)

var tracer = otel.Tracer("activitystreams-client")

type osClient struct {
	baseURL    string
	httpClient *http.Client
	debug      bool
}

func objectURL(baseURL, objectID string) string {
	return baseURL + apiBase + "/objects/" + url.PathEscape(objectID)
}

func (c osClient) CreateObject(ctx context.Context, obj *objects.ASObj, headers map[string][]string) (location string, err error) {
	ctx, span := tracer.Start(ctx, "create-object",
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, obj.ID())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	body, err := obj.MarshalJSON()
	if err != nil {
		return "", err
	}

	resp, respBody, err := c.call(ctx, http.MethodPost, c.baseURL+apiBase+"/objects", bytes.NewBuffer(body), headers)
	if err != nil {
		return "", err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		err = errors.NewErrorFromProblemReport(resp.StatusCode, resp.Header.Get("Content-Type"), respBody)
		return "", err
	}

	if resp.StatusCode != http.StatusCreated {
		err = fmt.Errorf("unexpected response code %d (%w)", resp.StatusCode, errors.ErrInternal)
		return "", err
	}

	location = resp.Header.Get("Location")
	if location == "" {
		if obj.ID() == "" {
			err = fmt.Errorf("object store did not return the location of the new object (%w)", errors.ErrInternal)
			return "", err
		}

		logging.GetFromContext(ctx).Warn("object store failed to provide a location header with created response")
		location = apiBase + "/objects/" + url.PathEscape(obj.ID())
	}

	return location, nil
}

func (c osClient) RetrieveObject(ctx context.Context, objectID string, headers map[string][]string) (obj *objects.ASObj, err error) {
	ctx, span := tracer.Start(ctx, "retrieve-object",
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, objectID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp, respBody, err := c.call(ctx, http.MethodGet, objectURL(c.baseURL, objectID), nil, headers)
	if err != nil {
		return nil, err
	}

	if err = checkStatus(resp, respBody, http.StatusOK); err != nil {
		return nil, err
	}

	obj, err = objects.NewFromJSON(respBody)
	return obj, err
}

func (c osClient) UpdateObject(ctx context.Context, obj *objects.ASObj, headers map[string][]string) (err error) {
	ctx, span := tracer.Start(ctx, "update-object",
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, obj.ID())),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if obj.ID() == "" {
		err = errors.NewBadRequestDataError("an object must have an @id to be updated")
		return err
	}

	body, err := obj.MarshalJSON()
	if err != nil {
		return err
	}

	resp, respBody, err := c.call(ctx, http.MethodPut, objectURL(c.baseURL, obj.ID()), bytes.NewBuffer(body), headers)
	if err != nil {
		return err
	}

	err = checkStatus(resp, respBody, http.StatusNoContent)
	return err
}

func (c osClient) DeleteObject(ctx context.Context, objectID string, headers map[string][]string) (err error) {
	ctx, span := tracer.Start(ctx, "delete-object",
		trace.WithAttributes(attribute.String(TraceAttributeObjectID, objectID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp, respBody, err := c.call(ctx, http.MethodDelete, objectURL(c.baseURL, objectID), nil, headers)
	if err != nil {
		return err
	}

	err = checkStatus(resp, respBody, http.StatusNoContent)
	return err
}

func (c osClient) QueryObjects(ctx context.Context, typeName string, headers map[string][]string) (result []*objects.ASObj, err error) {
	ctx, span := tracer.Start(ctx, "query-objects",
		trace.WithAttributes(attribute.String(TraceAttributeTypeName, typeName)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	endpoint := c.baseURL + apiBase + "/objects"
	if typeName != "" {
		endpoint += "?type=" + url.QueryEscape(typeName)
	}

	resp, respBody, err := c.call(ctx, http.MethodGet, endpoint, nil, headers)
	if err != nil {
		return nil, err
	}

	if err = checkStatus(resp, respBody, http.StatusOK); err != nil {
		return nil, err
	}

	var documents []map[string]any
	err = json.Unmarshal(respBody, &documents)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		return nil, err
	}

	result = make([]*objects.ASObj, 0, len(documents))
	for _, doc := range documents {
		var obj *objects.ASObj
		obj, err = objects.New(doc)
		if err != nil {
			return nil, err
		}
		result = append(result, obj)
	}

	return result, nil
}

func (c osClient) RetrieveTypeChain(ctx context.Context, typeName string, headers map[string][]string) (chain []types.Description, err error) {
	ctx, span := tracer.Start(ctx, "retrieve-type-chain",
		trace.WithAttributes(attribute.String(TraceAttributeTypeName, typeName)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	resp, respBody, err := c.call(
		ctx, http.MethodGet, c.baseURL+apiBase+"/types/"+url.PathEscape(typeName)+"/chain", nil, headers,
	)
	if err != nil {
		return nil, err
	}

	if err = checkStatus(resp, respBody, http.StatusOK); err != nil {
		return nil, err
	}

	err = json.Unmarshal(respBody, &chain)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		return nil, err
	}

	return chain, nil
}

func checkStatus(resp *http.Response, respBody []byte, expected int) error {
	if resp.StatusCode == expected {
		return nil
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode <= http.StatusInternalServerError {
		return errors.NewErrorFromProblemReport(resp.StatusCode, contentType, respBody)
	}

	return fmt.Errorf("unexpected response code %d (%w)", resp.StatusCode, errors.ErrInternal)
}

func (c osClient) call(ctx context.Context, method, endpoint string, body io.Reader, headers map[string][]string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	req.Header.Add("Accept", "application/ld+json")
	if body != nil {
		req.Header.Add("Content-Type", "application/ld+json")
	}

	for header, headerValue := range headers {
		for _, val := range headerValue {
			req.Header.Add(header, val)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if c.debug && resp.StatusCode >= http.StatusBadRequest {
		if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
			reqbytes, _ := httputil.DumpRequest(req, false)
			respbytes, _ := httputil.DumpResponse(resp, false)

			log := logging.GetFromContext(ctx)
			log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
		}
	}

	return resp, respBody, nil
}
