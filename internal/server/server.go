package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dedupe-go/internal/dedupe"
)

const shutdownTimeout = 10 * time.Second

// Options configures the HTTP layer.
type Options struct {
	MediaPrefix  string
	StaticPrefix string
	MaxAge       int
	StripVary    bool
	Gzip         bool

	// RedirectTTL enables caching of resolved stale names for this long.
	// Saves made outside this server are not seen until an entry expires.
	// Zero disables the cache.
	RedirectTTL time.Duration
}

// Server serves stored files over HTTP and accepts uploads into the media
// storage. Responses for content-addressable mounts are marked immutable,
// and requests for names that were since deduplicated are redirected.
type Server struct {
	media      dedupe.Storage
	static     dedupe.Storage
	classifier *dedupe.Classifier
	opts       Options
	logger     dedupe.Logger
	registry   *prometheus.Registry
	metrics    *Metrics
	redirects  *bigcache.BigCache // nil when caching is disabled
	engine     *gin.Engine
}

// New creates a Server. static may be nil when no static mount is configured.
// The redirect cache, if enabled, runs until ctx is done or Close is called.
func New(ctx context.Context, media, static dedupe.Storage, opts Options, logger dedupe.Logger) (*Server, error) {
	if media == nil {
		return nil, fmt.Errorf("media storage required")
	}
	opts.MediaPrefix = dedupe.EnsureLeadingTrailingSlash(opts.MediaPrefix)
	if opts.MediaPrefix == "/" {
		return nil, fmt.Errorf("media prefix must include a path component, for example /media/")
	}
	mounts := []dedupe.Mount{{Prefix: opts.MediaPrefix, Storage: media}}

	if static != nil {
		opts.StaticPrefix = dedupe.EnsureLeadingTrailingSlash(opts.StaticPrefix)
		if opts.StaticPrefix == "/" {
			return nil, fmt.Errorf("static prefix must include a path component")
		}
		if strings.HasPrefix(opts.StaticPrefix, opts.MediaPrefix) || strings.HasPrefix(opts.MediaPrefix, opts.StaticPrefix) {
			return nil, fmt.Errorf("static prefix %s and media prefix %s overlap", opts.StaticPrefix, opts.MediaPrefix)
		}
		mounts = append(mounts, dedupe.Mount{Prefix: opts.StaticPrefix, Storage: static})
	}

	var redirects *bigcache.BigCache
	if opts.RedirectTTL > 0 {
		cacheConfig := bigcache.DefaultConfig(opts.RedirectTTL)
		cacheConfig.Shards = 64
		cacheConfig.CleanWindow = time.Minute
		cacheConfig.Verbose = false
		var err error
		redirects, err = bigcache.New(ctx, cacheConfig)
		if err != nil {
			return nil, fmt.Errorf("creating redirect cache: %w", err)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &Server{
		media:      media,
		static:     static,
		classifier: dedupe.NewClassifier(mounts...),
		opts:       opts,
		logger:     logger,
		registry:   registry,
		metrics:    NewMetrics(registry),
		redirects:  redirects,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		RequestLogger(s.logger),
		s.metrics.Middleware(s.classifier),
		RedirectStale(s.classifier, s.redirects, s.logger),
		CacheControl(s.classifier, s.opts.MaxAge),
	)

	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	media := s.opts.MediaPrefix + "*name"
	engine.GET(media, s.serveFile(s.media))
	engine.HEAD(media, s.serveFile(s.media))
	engine.PUT(media, s.upload)

	if s.static != nil {
		static := s.opts.StaticPrefix + "*name"
		engine.GET(static, s.serveFile(s.static))
		engine.HEAD(static, s.serveFile(s.static))
	}
	return engine
}

// Classifier returns the classifier built from the configured mounts.
func (s *Server) Classifier() *dedupe.Classifier {
	return s.classifier
}

// Handler returns the complete HTTP handler, including compression and
// Vary stripping when enabled.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.engine
	if s.opts.Gzip {
		h = gzhttp.GzipHandler(h)
	}
	if s.opts.StripVary {
		h = StripVary(s.classifier, h)
	}
	return h
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr, "media_prefix", s.opts.MediaPrefix)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Close releases the redirect cache.
func (s *Server) Close() error {
	if s.redirects == nil {
		return nil
	}
	return s.redirects.Close()
}
