package delivery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Route paths.
const (
	LocalPath  = "/api/local"
	ProxyPath  = "/api/proxy"
	HealthPath = "/healthz"
)

// Options configures the delivery service.
type Options struct {
	Addr              string
	LocalRoots        []string
	AllowOrigin       string
	ProxyTimeout      time.Duration
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// Client overrides the upstream HTTP client used by the proxy.
	Client *http.Client
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.AllowOrigin == "" {
		o.AllowOrigin = "*"
	}
	if o.ReadHeaderTimeout <= 0 {
		o.ReadHeaderTimeout = 10 * time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 5 * time.Second
	}
	if o.Client == nil {
		o.Client = &http.Client{Timeout: o.ProxyTimeout}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// NewRouter builds the HTTP routes.
func NewRouter(opts Options) http.Handler {
	opts = opts.withDefaults()
	log := opts.Logger

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	local := NewLocalHandler(opts.LocalRoots, opts.AllowOrigin, log.Named("local"))
	proxy := NewProxyHandler(opts.Client, opts.AllowOrigin, log.Named("proxy"))

	r.Get(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, LocalPath, local)
	r.Method(http.MethodGet, ProxyPath, proxy)
	r.Options(LocalPath, preflight(opts.AllowOrigin))
	r.Options(ProxyPath, preflight(opts.AllowOrigin))
	return r
}

func preflight(allowOrigin string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Range")
		h.Set("Access-Control-Expose-Headers", "Content-Range, Content-Length, Accept-Ranges")
		w.WriteHeader(http.StatusNoContent)
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
			)
		})
	}
}

// Server runs the delivery service until its context is cancelled.
type Server struct {
	opts Options
	http *http.Server
	log  *zap.Logger
}

// NewServer creates a server for opts.
func NewServer(opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		opts: opts,
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
		},
		log: opts.Logger,
	}
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()
	s.log.Info("delivery service listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	<-errCh
	s.log.Info("delivery service stopped")
	return nil
}
