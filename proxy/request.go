package proxy

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"golang.org/x/net/http/httpguts"
)

const (
	// EventHeader carries the percent encoded json of the event, minus its
	// body.
	EventHeader = "x-apigateway-event"

	// ContextHeader carries the percent encoded json of the InvocationContext.
	ContextHeader = "x-apigateway-context"
)

// LocalRequest describes the http request sent to the backing listener for
// one invocation.
type LocalRequest struct {
	Method   string
	Path     string
	Header   http.Header
	Body     []byte
	Endpoint string
}

// NewLocalRequest translates an invocation into a request against the
// listener bound at endpoint. The event is not modified.
func NewLocalRequest(inv Invocation, endpoint string) (*LocalRequest, error) {
	method, err := ParseHttpMethod(inv.Event.HTTPMethod)
	if err != nil {
		return nil, errors.Wrap(err, "invalid event")
	}

	body, err := makeEventBody(inv.Event)
	if err != nil {
		return nil, err
	}

	header := makeEventHeader(inv.Event)
	if err := validateHeader(header); err != nil {
		return nil, err
	}

	if len(body) > 0 && header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.Itoa(len(body)))
	}

	eventValue, err := encodeEvent(inv.Event)
	if err != nil {
		return nil, err
	}
	header.Set(EventHeader, eventValue)

	contextValue, err := encodeHeaderValue(inv.Context)
	if err != nil {
		return nil, errors.Wrap(err, "failed encoding invocation context")
	}
	header.Set(ContextHeader, contextValue)

	return &LocalRequest{
		Method:   method.String(),
		Path:     makeEventPath(inv.Event),
		Header:   header,
		Body:     body,
		Endpoint: endpoint,
	}, nil
}

// HTTPRequest builds the *http.Request for r. The endpoint travels in the
// request context and is picked up when the local client dials.
func (r *LocalRequest) HTTPRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(withEndpoint(ctx, r.Endpoint), r.Method, "http://localhost"+r.Path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed building request for '%s %s'", r.Method, r.Path)
	}

	req.Header = r.Header.Clone()

	if len(r.Body) > 0 {
		req.Body = newBodyReader(r.Body)
		req.ContentLength = int64(len(r.Body))
		req.GetBody = func() (io.ReadCloser, error) { return newBodyReader(r.Body), nil }
	}

	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
	}

	return req, nil
}

// makeEventBody decodes the event body into raw bytes.
func makeEventBody(event events.APIGatewayProxyRequest) ([]byte, error) {
	if !event.IsBase64Encoded {
		return []byte(event.Body), nil
	}

	b, err := base64.StdEncoding.DecodeString(event.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to decode event body")
	}

	return b, nil
}

// makeEventHeader merges the single and multi value headers of the event.
// Multi value entries win when a name appears in both.
func makeEventHeader(event events.APIGatewayProxyRequest) http.Header {
	header := make(http.Header, len(event.Headers)+len(event.MultiValueHeaders)+3)

	for name, values := range event.MultiValueHeaders {
		for _, v := range values {
			header.Add(name, v)
		}
	}

	for name, v := range event.Headers {
		if len(header.Values(name)) == 0 {
			header.Set(name, v)
		}
	}

	return header
}

// validateHeader rejects names and values that can't be written on the wire.
func validateHeader(header http.Header) error {
	for name, values := range header {
		if !httpguts.ValidHeaderFieldName(name) {
			return errors.Errorf("invalid event header name %q", name)
		}

		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return errors.Errorf("invalid event header value for %q", name)
			}
		}
	}

	return nil
}

// makeEventPath combines the event path and query parameters into a request
// uri.
func makeEventPath(event events.APIGatewayProxyRequest) string {
	values := url.Values{}

	for k, vs := range event.MultiValueQueryStringParameters {
		for _, v := range vs {
			values.Add(k, v)
		}
	}

	for k, v := range event.QueryStringParameters {
		if _, ok := values[k]; !ok {
			values.Set(k, v)
		}
	}

	u := url.URL{Path: event.Path, RawQuery: values.Encode()}
	return u.RequestURI()
}

// encodeEvent serializes the event without its body.
func encodeEvent(event events.APIGatewayProxyRequest) (string, error) {
	event.Body = ""

	b, err := json.Marshal(event)
	if err != nil {
		return "", errors.Wrap(err, "failed encoding event")
	}

	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(b, &fields); err != nil {
		return "", errors.Wrap(err, "failed encoding event")
	}
	delete(fields, "body")

	return encodeHeaderValue(fields)
}

func encodeHeaderValue(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return encodeURIComponent(string(b)), nil
}

// encodeURIComponent percent encodes s the way browsers encode a uri
// component: spaces become %20 and !'()* are left alone.
func encodeURIComponent(s string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(s), "+", "%20")

	return uriComponentReplacer.Replace(escaped)
}

var uriComponentReplacer = strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")

// decodeHeaderValue reverses encodeHeaderValue into v.
func decodeHeaderValue(s string, v interface{}) error {
	raw, err := url.PathUnescape(s)
	if err != nil {
		return errors.Wrap(err, "failed percent decoding header")
	}

	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return errors.Wrap(err, "failed unmarshalling header")
	}

	return nil
}

func newBodyReader(b []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(b))
}
