package proxy

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
)

type eventKey struct{}

type invocationContextKey struct{}

// Middleware decodes the event and invocation context headers set by the
// proxy and attaches them to the request context. Requests without the
// headers, or with headers that don't decode, pass through untouched.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if v := r.Header.Get(EventHeader); v != "" {
			event := new(events.APIGatewayProxyRequest)
			if err := decodeHeaderValue(v, event); err == nil {
				ctx = context.WithValue(ctx, eventKey{}, event)
			}
		}

		if v := r.Header.Get(ContextHeader); v != "" {
			ictx := new(InvocationContext)
			if err := decodeHeaderValue(v, ictx); err == nil {
				ctx = context.WithValue(ctx, invocationContextKey{}, ictx)
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// EventFromRequest returns the event attached by Middleware. The event has no
// body, the request body carries it.
func EventFromRequest(r *http.Request) (*events.APIGatewayProxyRequest, bool) {
	event, ok := r.Context().Value(eventKey{}).(*events.APIGatewayProxyRequest)
	return event, ok
}

// ContextFromRequest returns the invocation context attached by Middleware.
func ContextFromRequest(r *http.Request) (*InvocationContext, bool) {
	ictx, ok := r.Context().Value(invocationContextKey{}).(*InvocationContext)
	return ictx, ok
}
