// README: HTTP server lifecycle; serves the router until the context is cancelled.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"velo/internal/logger"
)

type Server struct {
	srv *http.Server
	log logger.ILogger
}

func NewServer(addr string, handler http.Handler, log logger.ILogger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Run blocks until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}
