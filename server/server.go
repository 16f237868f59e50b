// Package server exposes a session over HTTP and pushes its events to
// websocket clients.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/papertrader/internal/logging"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/session"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	sess *session.Session
	log  zerolog.Logger
	mux  *http.ServeMux
	hub  *hub

	// history backs /api/equity and /api/history; nil serves empty lists
	history *journal.Memory

	unsubscribe func()
}

// New builds the HTTP API for sess and subscribes the websocket hub to its
// events. Call Close to drop the subscription and disconnect clients.
func New(sess *session.Session, logger *zerolog.Logger) *Server {
	s := &Server{
		sess: sess,
		log:  zerolog.Nop(),
		mux:  http.NewServeMux(),
	}
	if logger != nil {
		s.log = logging.WithComponent(*logger, "server")
	}
	s.hub = newHub(s.log)
	s.unsubscribe = sess.Subscribe(s.hub.broadcast)
	s.routes()
	return s
}

// SetHistory points the history endpoints at the in-process journal the
// session's ledger writes to. Call it before serving.
func (s *Server) SetHistory(h *journal.Memory) {
	s.history = h
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("GET /api/state", s.handleState)
	s.mux.HandleFunc("GET /api/bars", s.handleBars)
	s.mux.HandleFunc("GET /api/markers", s.handleMarkers)
	s.mux.HandleFunc("GET /api/indicators", s.handleIndicator)
	s.mux.HandleFunc("GET /api/symbols", s.handleSymbols)
	s.mux.HandleFunc("POST /api/symbol", s.handleSelectSymbol)

	s.mux.HandleFunc("GET /api/replay", s.handleReplay)
	s.mux.HandleFunc("POST /api/replay/play", s.handlePlay)
	s.mux.HandleFunc("POST /api/replay/pause", s.handlePause)
	s.mux.HandleFunc("POST /api/replay/step", s.handleStep)
	s.mux.HandleFunc("POST /api/replay/seek", s.handleSeek)
	s.mux.HandleFunc("POST /api/replay/speed", s.handleSpeed)
	s.mux.HandleFunc("POST /api/replay/reset", s.handleReset)
	s.mux.HandleFunc("POST /api/replay/exit", s.handleExit)

	s.mux.HandleFunc("POST /api/broker/connect", s.handleConnect(true))
	s.mux.HandleFunc("POST /api/broker/disconnect", s.handleConnect(false))

	s.mux.HandleFunc("GET /api/trades", s.handleTrades)
	s.mux.HandleFunc("GET /api/trades/{id}", s.handleTrade)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("GET /api/equity", s.handleEquity)
	s.mux.HandleFunc("POST /api/trades", s.handlePlace)
	s.mux.HandleFunc("POST /api/trades/{id}/close", s.handleClose)
	s.mux.HandleFunc("POST /api/trades/close-all", s.handleCloseAll)

	s.mux.HandleFunc("POST /api/risk", s.handleRisk)
	s.mux.HandleFunc("POST /api/drawings/clear", s.handleClearDrawings)

	s.mux.HandleFunc("GET /ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	r = r.WithContext(s.log.WithContext(r.Context()))

	s.mux.ServeHTTP(rec, r)

	s.log.Debug().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", rec.status).
		Dur("duration", time.Since(start)).
		Msg("request")
}

// Close unsubscribes from the session and disconnects websocket clients.
func (s *Server) Close() {
	s.unsubscribe()
	s.hub.close()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", ln.Addr().String()).Msg("server starting")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("server exited")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrader take over the connection.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("server: response writer cannot hijack")
	}
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
