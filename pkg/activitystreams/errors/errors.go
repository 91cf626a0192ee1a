package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

var ErrMalformedDocument = fmt.Errorf("malformed document")
var ErrUnknownType = fmt.Errorf("unknown type")
var ErrNoMethodFound = fmt.Errorf("no method found")
var ErrCyclicTypeGraph = fmt.Errorf("cyclic type graph")
var ErrStrategyMismatch = fmt.Errorf("strategy mismatch")
var ErrAmbiguousMethod = fmt.Errorf("ambiguous method")
var ErrInvalidDefinition = fmt.Errorf("invalid vocabulary definition")

var ErrAlreadyExists = fmt.Errorf("already exists")
var ErrInternal = fmt.Errorf("internal error")
var ErrNotFound = fmt.Errorf("not found")
var ErrBadRequest = fmt.Errorf("bad request")
var ErrInvalidRequest = fmt.Errorf("invalid request")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func NewMalformedDocumentError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrMalformedDocument,
	}
}

func NewUnknownTypeError(typeID string) error {
	return &myError{
		msg:    fmt.Sprintf("unknown type \"%s\"", typeID),
		target: ErrUnknownType,
	}
}

func NewCyclicTypeGraphError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrCyclicTypeGraph,
	}
}

func NewStrategyMismatchError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrStrategyMismatch,
	}
}

func NewAmbiguousMethodError(name string) error {
	return &myError{
		msg:    fmt.Sprintf("more than one method is named \"%s\"", name),
		target: ErrAmbiguousMethod,
	}
}

func NewInvalidDefinitionError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrInvalidDefinition,
	}
}

func NewAlreadyExistsError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrAlreadyExists,
	}
}

func NewBadRequestDataError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrBadRequest,
	}
}

func NewInvalidRequestError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrInvalidRequest,
	}
}

func NewNotFoundError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNotFound,
	}
}

// NoMethodFoundError is returned when a first-match dispatch finds no handler
// registered for any type in the linearization of the target object
type NoMethodFoundError struct {
	Method string
	Types  []string
}

func (e NoMethodFoundError) Error() string {
	return fmt.Sprintf("no method \"%s\" found for types [%s]", e.Method, strings.Join(e.Types, ", "))
}

func (e NoMethodFoundError) Is(target error) bool { return target == ErrNoMethodFound }

func NewNoMethodFoundError(method string, types []string) error {
	return &NoMethodFoundError{
		Method: method,
		Types:  append([]string{}, types...),
	}
}

const problemTypeBase string = "https://diwise.io/activitystreams/errors/"

func NewErrorFromProblemReport(code int, contentType string, body []byte) error {
	report := &struct {
		Type   string `json:"type"`
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}{}

	err := json.Unmarshal(body, report)
	if err != nil {
		return fmt.Errorf("failed to process problem report: %s", err.Error())
	}

	if code == http.StatusNotFound || report.Type == problemTypeBase+"ResourceNotFound" {
		return NewNotFoundError(report.Detail)
	}

	if report.Type == problemTypeBase+"BadRequestData" {
		return NewBadRequestDataError(report.Detail)
	}

	if report.Type == problemTypeBase+"InvalidRequest" {
		return NewInvalidRequestError(report.Detail)
	}

	if report.Type == problemTypeBase+"AlreadyExists" {
		return NewAlreadyExistsError(report.Detail)
	}

	return NewInternalError(
		fmt.Sprintf("[code: %d] unknown problem report of type \"%s\" with detail \"%s\" received",
			code, report.Type, report.Detail,
		),
		"",
	)
}

//ProblemDetails stores details about a certain problem according to RFC7807
//See https://tools.ietf.org/html/rfc7807
type ProblemDetails interface {
	ContentType() string
	Type() string
	Title() string
	Detail() string
	MarshalJSON() ([]byte, error)
	WriteResponse(w http.ResponseWriter)
}

//ProblemDetailsImpl is an implementation of the ProblemDetails interface
type ProblemDetailsImpl struct {
	typ     string
	title   string
	detail  string
	code    int
	traceID string
}

const (
	//ProblemReportContentType as required by https://tools.ietf.org/html/rfc7807
	ProblemReportContentType string = "application/problem+json"
)

func newProblem(name, title, detail string, code int, traceID string) ProblemDetailsImpl {
	return ProblemDetailsImpl{
		typ:     problemTypeBase + name,
		title:   title,
		detail:  detail,
		code:    code,
		traceID: traceID,
	}
}

//ReportNewAlreadyExistsError reports that the request tries to create an already existing object
func ReportNewAlreadyExistsError(w http.ResponseWriter, detail, traceID string) {
	p := newProblem("AlreadyExists", "Already Exists", detail, http.StatusConflict, traceID)
	p.WriteResponse(w)
}

//NewBadRequestData creates a problem report about input data which does not meet the requirements of the operation
func NewBadRequestData(detail, traceID string) ProblemDetails {
	p := newProblem("BadRequestData", "Bad Request Data", detail, http.StatusBadRequest, traceID)
	return &p
}

//ReportNewBadRequestData reports that the request includes input data which does not meet the requirements of the operation
func ReportNewBadRequestData(w http.ResponseWriter, detail, traceID string) {
	NewBadRequestData(detail, traceID).WriteResponse(w)
}

//ReportNewInvalidRequest reports that the request is syntactically invalid or includes wrong content
func ReportNewInvalidRequest(w http.ResponseWriter, detail, traceID string) {
	p := newProblem("InvalidRequest", "Invalid Request", detail, http.StatusBadRequest, traceID)
	p.WriteResponse(w)
}

//InternalError reports that there has been an error during the operation execution
type InternalError struct {
	ProblemDetailsImpl
}

func (ie InternalError) Error() string {
	return ie.detail
}

func (ie InternalError) Is(target error) bool { return target == ErrInternal }

//NewInternalError creates and returns a new instance of an InternalError with the supplied problem detail
func NewInternalError(detail, traceID string) *InternalError {
	return &InternalError{
		ProblemDetailsImpl: newProblem("InternalError", "Internal Error", detail, http.StatusInternalServerError, traceID),
	}
}

//ReportNewInternalError creates an InternalError instance and sends it to the supplied http.ResponseWriter
func ReportNewInternalError(w http.ResponseWriter, detail, traceID string) {
	ie := NewInternalError(detail, traceID)
	ie.WriteResponse(w)
}

//ReportNotFoundError reports that the request failed with a not found error of some kind
func ReportNotFoundError(w http.ResponseWriter, detail, traceID string) {
	p := newProblem("ResourceNotFound", "Not Found", detail, http.StatusNotFound, traceID)
	p.WriteResponse(w)
}

func ReportUnauthorizedRequest(w http.ResponseWriter, detail, traceID string) {
	p := newProblem("UnauthorizedRequest", "Unauthorized Request", detail, http.StatusUnauthorized, traceID)
	p.WriteResponse(w)
}

func (p *ProblemDetailsImpl) Type() string   { return p.typ }
func (p *ProblemDetailsImpl) Title() string  { return p.title }
func (p *ProblemDetailsImpl) Detail() string { return p.detail }

//ContentType returns the ContentType to be used when returning this problem
func (p *ProblemDetailsImpl) ContentType() string {
	return ProblemReportContentType
}

//MarshalJSON is called when a ProblemDetailsImpl instance should be serialized to JSON
func (p *ProblemDetailsImpl) MarshalJSON() ([]byte, error) {
	var traceID *string

	if p.traceID != "" {
		traceID = &p.traceID
	}

	j, err := json.Marshal(struct {
		Type    string  `json:"type"`
		Title   string  `json:"title"`
		Detail  string  `json:"detail"`
		TraceID *string `json:"traceID,omitempty"`
	}{
		Type:    p.typ,
		Title:   p.title,
		Detail:  p.detail,
		TraceID: traceID,
	})
	if err != nil {
		return nil, err
	}

	return j, nil
}

//ResponseCode returns the HTTP response code to be used when returning a specific problem
func (p *ProblemDetailsImpl) ResponseCode() int {

	if p.code != 0 {
		return p.code
	}

	return http.StatusBadRequest
}

//WriteResponse writes the contents of this instance to a http.ResponseWriter
func (p *ProblemDetailsImpl) WriteResponse(w http.ResponseWriter) {
	w.Header().Add("Content-Type", p.ContentType())
	w.Header().Add("Content-Language", "en")
	w.WriteHeader(p.ResponseCode())

	pdbytes, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		w.Write(pdbytes)
	}
}
