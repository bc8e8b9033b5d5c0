package proxy

import (
	"context"
	"net"
	"net/http"
	"syscall"

	"github.com/pkg/errors"
)

type endpointKey struct{}

type resetKey struct{}

func withEndpoint(ctx context.Context, endpoint string) context.Context {
	return context.WithValue(ctx, endpointKey{}, endpoint)
}

func withConnectionReset(ctx context.Context) context.Context {
	return context.WithValue(ctx, resetKey{}, true)
}

// newLocalClient returns a client that dials the unix socket named in each
// request's context. Connections are never reused between requests.
func newLocalClient() *http.Client {
	dialer := &net.Dialer{}

	transport := &http.Transport{
		DisableKeepAlives:  true,
		DisableCompression: true,
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			endpoint, _ := ctx.Value(endpointKey{}).(string)
			if endpoint == "" {
				return nil, errors.New("no local endpoint in request context")
			}

			conn, err := dialer.DialContext(ctx, "unix", endpoint)
			if err != nil {
				return nil, err
			}

			if reset, _ := ctx.Value(resetKey{}).(bool); reset {
				conn.Close()
				return &resetConn{Conn: conn}, nil
			}

			return conn, nil
		},
	}

	return &http.Client{Transport: transport}
}

// resetConn fails every read and write as if the peer reset the connection.
type resetConn struct {
	net.Conn
}

func (c *resetConn) Read([]byte) (int, error) {
	return 0, c.opError("read")
}

func (c *resetConn) Write([]byte) (int, error) {
	return 0, c.opError("write")
}

func (c *resetConn) opError(op string) error {
	return &net.OpError{Op: op, Net: "unix", Addr: c.Conn.RemoteAddr(), Err: syscall.ECONNRESET}
}
