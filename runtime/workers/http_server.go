package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HTTPServer serves the API until its context ends, then shuts down gracefully.
type HTTPServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
	log             *slog.Logger
}

func NewHTTPServer(address string, handler http.Handler, shutdownTimeout time.Duration, log *slog.Logger) *HTTPServer {
	return &HTTPServer{
		server:          &http.Server{Addr: address, Handler: handler},
		shutdownTimeout: shutdownTimeout,
		log:             log,
	}
}

func (w *HTTPServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", w.server.Addr, err)
	}
	return w.Serve(ctx, listener)
}

// Serve runs on an existing listener. Request contexts derive from ctx:
// Shutdown does not track hijacked websocket connections, so cancelling ctx
// is what detaches their live queries.
func (w *HTTPServer) Serve(ctx context.Context, listener net.Listener) error {
	w.server.BaseContext = func(net.Listener) context.Context { return ctx }

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", listener.Addr().String())
		errChan <- w.server.Serve(listener)
	}()

	select {
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()
	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.log.Warn("HTTP server did not stop cleanly", "error", err)
	}
	return nil
}
