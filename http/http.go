package httpx

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
)

// Addr is the fixed listen address: all interfaces, port 8000.
const Addr = ":8000"

// StartHTTPServer binds addr and serves handler on it in the background.
// A bind failure is returned to the caller; later serve errors are logged.
func StartHTTPServer(addr string, handler http.Handler, logger *slog.Logger) (*http.Server, net.Listener, error) {
	if addr == "" {
		addr = Addr
	}
	srv := &http.Server{
		Handler:  handler,
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		logger.Debug("http server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
		}
	}()
	return srv, ln, nil
}
