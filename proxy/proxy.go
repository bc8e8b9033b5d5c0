package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Guard decides whether an invocation may be processed. Acquire returns false
// when the request id was already acquired. ctx is the invocation's context.
type Guard interface {
	Acquire(ctx context.Context, id string) (bool, error)
}

// Proxy answers lambda invocations by replaying them as http requests against
// a handler served from a local unix socket.
//
// Example:
//
//	router := mux.NewRouter()
//	router.HandleFunc("/hello", hello).Methods("GET")
//
//	p := proxy.New(proxy.Middleware(router))
//	defer p.Close()
//
//	lambda.Start(p.Handle)
type Proxy struct {
	listener   *Listener
	client     *http.Client
	translator *ResponseTranslator

	binaryMimeTypes BinaryMimeTypes
	folder          HeaderFolder
	socketDir       string
	guard           Guard
	metrics         *Metrics
	log             *zap.Logger
	testMode        bool
}

// Option configures a Proxy.
type Option func(*Proxy)

// WithBinaryMimeTypes sets the mime types whose responses are base64 encoded.
// A nil list keeps the defaults, an empty list disables base64 encoding.
func WithBinaryMimeTypes(types []string) Option {
	return func(p *Proxy) {
		if types != nil {
			p.binaryMimeTypes = append(BinaryMimeTypes{}, types...)
		}
	}
}

// WithHeaderFolder sets how multi valued response headers are folded.
func WithHeaderFolder(folder HeaderFolder) Option {
	return func(p *Proxy) {
		p.folder = folder
	}
}

// WithSocketDir sets the directory the listener socket is created in.
func WithSocketDir(dir string) Option {
	return func(p *Proxy) {
		p.socketDir = dir
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Proxy) {
		p.log = log
	}
}

// WithMetrics records invocation metrics into m.
func WithMetrics(m *Metrics) Option {
	return func(p *Proxy) {
		p.metrics = m
	}
}

// WithGuard rejects invocations whose request id the guard has already seen.
func WithGuard(guard Guard) Option {
	return func(p *Proxy) {
		p.guard = guard
	}
}

// WithTestMode enables the faults carried by an Invocation.
func WithTestMode(enabled bool) Option {
	return func(p *Proxy) {
		p.testMode = enabled
	}
}

// New returns a proxy serving handler. The listener is bound on the first
// invocation.
func New(handler http.Handler, opts ...Option) *Proxy {
	p := &Proxy{
		binaryMimeTypes: DefaultBinaryMimeTypes(),
		folder:          BinaryCaseFolder{},
		log:             zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.listener = NewListener(handler, p.socketDir, p.log)
	p.listener.onRebind = p.metrics.recordRebind
	p.client = newLocalClient()
	p.translator = &ResponseTranslator{
		BinaryMimeTypes: p.binaryMimeTypes,
		Folder:          p.folder,
	}

	return p
}

// BinaryMimeTypes returns a copy of the configured binary mime types.
func (p *Proxy) BinaryMimeTypes() BinaryMimeTypes {
	return append(BinaryMimeTypes{}, p.binaryMimeTypes...)
}

// IsListening returns true once the backing listener is serving.
func (p *Proxy) IsListening() bool {
	return p.listener.IsReady()
}

// Close shuts the backing listener down.
func (p *Proxy) Close() error {
	return p.listener.Close()
}

// Handle is the lambda handler. The invocation context is read from ctx.
func (p *Proxy) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	return p.HandleInvocation(ctx, Invocation{
		Event:   event,
		Context: NewInvocationContext(ctx),
	})
}

// HandleInvocation forwards inv to the backing handler and returns its reply.
// Every failure after the listener is up is mapped to a reply; an error is
// only returned when the listener can't be bound.
func (p *Proxy) HandleInvocation(ctx context.Context, inv Invocation) (events.APIGatewayProxyResponse, error) {
	start := time.Now()

	if !p.listener.IsReady() {
		if err := p.listener.EnsureReady(ctx); err != nil {
			p.log.Error("failed starting listener", zap.Error(err))
			return events.APIGatewayProxyResponse{}, errors.Wrap(err, "failed starting listener")
		}
	}

	response := p.forward(ctx, inv)

	p.metrics.recordInvocation(response.StatusCode, time.Since(start))
	p.log.Debug("invocation complete",
		zap.String("request_id", inv.Context.AwsRequestID),
		zap.String("method", inv.Event.HTTPMethod),
		zap.String("path", inv.Event.Path),
		zap.Int("status", response.StatusCode),
		zap.Duration("duration", time.Since(start)))

	return response, nil
}

func (p *Proxy) forward(ctx context.Context, inv Invocation) events.APIGatewayProxyResponse {
	if response, ok := p.acquire(ctx, inv); !ok {
		return response
	}

	req, err := p.prepare(ctx, inv)
	if err != nil {
		p.log.Error("failed preparing local request", zap.Error(err))
		return errorResponse(http.StatusInternalServerError, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Error("local request failed", zap.String("path", req.URL.Path), zap.Error(err))
		return errorResponse(http.StatusBadGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.log.Error("failed reading local response", zap.String("path", req.URL.Path), zap.Error(err))
		return errorResponse(http.StatusBadGateway, err)
	}

	response, err := p.translator.Translate(resp.StatusCode, resp.Header, body)
	if err != nil {
		p.log.Error("failed translating local response", zap.String("path", req.URL.Path), zap.Error(err))
		return errorResponse(http.StatusBadGateway, err)
	}

	return response
}

// acquire checks the invocation against the guard. The reply is only
// meaningful when ok is false.
func (p *Proxy) acquire(ctx context.Context, inv Invocation) (response events.APIGatewayProxyResponse, ok bool) {
	id := inv.Context.AwsRequestID
	if p.guard == nil || id == "" {
		return response, true
	}

	available, err := p.guard.Acquire(ctx, id)
	if err != nil {
		p.log.Error("invocation guard failed", zap.String("request_id", id), zap.Error(err))
		return errorResponse(http.StatusInternalServerError, err), false
	}

	if !available {
		p.log.Warn("duplicate invocation", zap.String("request_id", id))
		return errorResponse(http.StatusConflict, fmt.Errorf("duplicate invocation %s", id)), false
	}

	return response, true
}

func (p *Proxy) prepare(ctx context.Context, inv Invocation) (*http.Request, error) {
	if p.testMode && inv.Faults.FailPrepare {
		return nil, errors.New("injected failure preparing local request")
	}

	local, err := NewLocalRequest(inv, p.listener.Path())
	if err != nil {
		return nil, err
	}

	if p.testMode && inv.Faults.ResetConnection {
		ctx = withConnectionReset(ctx)
	}

	return local.HTTPRequest(ctx)
}
