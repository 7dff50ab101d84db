package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rzbill/multiflow/internal/device"
	"github.com/rzbill/multiflow/internal/inspect"
	"github.com/rzbill/multiflow/internal/runtime"
	"github.com/rzbill/multiflow/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	logger log.Logger

	mu  sync.Mutex
	lis net.Listener
}

func New(rt *runtime.Runtime, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()
	s := &Server{rt: rt, logger: logger.WithComponent("http")}
	mux.HandleFunc("GET /v1/healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/devices", s.handleDevices)
	mux.HandleFunc("GET /v1/devices/{minor}", s.handleDevice)
	mux.Handle("GET /metrics", rt.Metrics().Handler())

	mc := rt.Config().Metrics
	h := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		RequestLogger(s.logger),
		RateLimit(mc.RequestsPerSecond, mc.Burst),
	)
	s.srv = &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Handler returns the routing handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is done.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()
	s.logger.Info("status endpoint listening", log.Str("addr", l.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the listening address once serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_serving")
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	f, err := inspect.NewFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, map[string]any{"devices": f.Apply(s.rt.Registry().Stats())})
}

func (s *Server) handleDevice(w http.ResponseWriter, r *http.Request) {
	minor, err := strconv.Atoi(r.PathValue("minor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid minor")
		return
	}
	st, err := s.rt.Registry().Device(minor)
	if errors.Is(err, device.ErrDeviceNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, st)
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON writes a JSON response with the given data.
func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
