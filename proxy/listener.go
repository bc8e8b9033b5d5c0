package proxy

import (
	"context"
	"net"
	"net/http"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ListenerState is the lifecycle state of a Listener.
type ListenerState int

const (
	Unbound ListenerState = iota
	Starting
	Ready
	Closed
)

func (state ListenerState) String() string {
	switch state {
	case Unbound:
		return "unbound"
	case Starting:
		return "starting"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	}

	return "unknown"
}

// maxRebinds bounds how many fresh endpoints a single bind tries after
// address in use errors.
const maxRebinds = 8

// ErrListenerClosed is returned by EnsureReady once the listener is closed.
var ErrListenerClosed = errors.New("listener closed")

// bindAttempt is shared by every EnsureReady caller waiting on one bind.
type bindAttempt struct {
	done chan struct{}
	err  error
}

// Listener owns the http server that serves the local requests. It binds
// lazily to a unix socket and moves to a new socket path whenever the current
// one is taken.
//
// State moves Unbound -> Starting -> Ready. A failed bind drops back to
// Unbound and Close moves any state to Closed.
//
// A server that stops serving on its own does not go from Ready straight to
// Starting. It drops to Unbound on a fresh path, and the next EnsureReady
// rebinds through Unbound -> Starting -> Ready. Until then IsReady is false.
type Listener struct {
	handler   http.Handler
	socketDir string
	log       *zap.Logger

	mu       sync.Mutex
	state    ListenerState
	path     string
	server   *http.Server
	listener net.Listener
	attempt  *bindAttempt

	onRebind   func()
	listenFunc func(network, address string) (net.Listener, error)
}

// NewListener returns an unbound listener serving handler from a socket in
// socketDir.
func NewListener(handler http.Handler, socketDir string, log *zap.Logger) *Listener {
	if log == nil {
		log = zap.NewNop()
	}

	l := &Listener{
		handler:   handler,
		socketDir: socketDir,
		log:       log,
		state:     Unbound,
	}

	l.path = MakeSocketPath(socketDir)
	l.server = l.newServer()

	return l
}

// listen is used internally to assist stubs on net.Listen for testing
func (l *Listener) listen(network, address string) (net.Listener, error) {
	if l.listenFunc != nil {
		return l.listenFunc(network, address)
	}

	return net.Listen(network, address)
}

func (l *Listener) newServer() *http.Server {
	return &http.Server{Handler: l.handler}
}

// State returns the current lifecycle state.
func (l *Listener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// IsReady returns true if the listener is bound and serving.
func (l *Listener) IsReady() bool {
	return l.State() == Ready
}

// Path returns the current socket path.
func (l *Listener) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.path
}

// EnsureReady binds the listener unless it is already serving. Concurrent
// callers share a single bind. The returned error is only non nil when no
// endpoint could be bound, which the caller can't recover from.
func (l *Listener) EnsureReady(ctx context.Context) error {
	l.mu.Lock()

	switch l.state {
	case Ready:
		l.mu.Unlock()
		return nil
	case Closed:
		l.mu.Unlock()
		return ErrListenerClosed
	case Starting:
		attempt := l.attempt
		l.mu.Unlock()
		return attempt.wait(ctx)
	}

	attempt := &bindAttempt{done: make(chan struct{})}
	l.attempt = attempt
	l.state = Starting
	l.mu.Unlock()

	err := l.bind()

	l.mu.Lock()
	switch {
	case l.state == Closed:
		err = ErrListenerClosed
	case err != nil:
		l.state = Unbound
	}
	attempt.err = err
	close(attempt.done)
	l.mu.Unlock()

	return err
}

func (attempt *bindAttempt) wait(ctx context.Context) error {
	select {
	case <-attempt.done:
		return attempt.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// bind listens on the current path, moving to a fresh path on address in use
// errors, and starts serving. The listener is Ready before the server starts.
func (l *Listener) bind() error {
	for rebinds := 0; ; rebinds++ {
		l.mu.Lock()
		path, server := l.path, l.server
		l.mu.Unlock()

		ln, err := l.listen("unix", path)
		if err == nil {
			l.mu.Lock()
			if l.state == Closed {
				l.mu.Unlock()
				ln.Close()
				return ErrListenerClosed
			}
			l.listener = ln
			l.state = Ready
			l.mu.Unlock()

			l.log.Debug("listener ready", zap.String("path", path))
			go l.serve(server, ln)
			return nil
		}

		if !errors.Is(err, syscall.EADDRINUSE) || rebinds >= maxRebinds {
			return errors.Wrapf(err, "failed binding listener to %s", path)
		}

		next := MakeSocketPath(l.socketDir)
		l.log.Warn("listener address in use, rebinding",
			zap.String("path", path),
			zap.String("next", next),
			zap.Error(err))

		server.Close()

		l.mu.Lock()
		l.path = next
		l.server = l.newServer()
		onRebind := l.onRebind
		l.mu.Unlock()

		if onRebind != nil {
			onRebind()
		}
	}
}

// serve runs server on ln. If it stops with an error while ln is still the
// current listener, the listener is moved to Unbound on a fresh path.
func (l *Listener) serve(server *http.Server, ln net.Listener) {
	err := server.Serve(ln)
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener != ln || l.state != Ready {
		return
	}

	l.log.Error("listener stopped serving, rebinding on next invocation",
		zap.String("path", l.path),
		zap.Error(err))

	ln.Close()
	l.listener = nil
	l.state = Unbound
	l.path = MakeSocketPath(l.socketDir)
	l.server = l.newServer()

	if l.onRebind != nil {
		l.onRebind()
	}
}

// Close stops the server, removes the socket and marks the listener closed.
// Closing twice is a no-op.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.state == Closed {
		l.mu.Unlock()
		return nil
	}

	l.state = Closed
	server, ln := l.server, l.listener
	l.listener = nil
	l.mu.Unlock()

	err := server.Close()
	if ln != nil {
		ln.Close()
	}

	return errors.Wrap(err, "failed closing listener")
}
