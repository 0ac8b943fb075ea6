package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/gin-gonic/gin"

	"dedupe-go/internal/dedupe"
)

// ImmutableCacheControl is sent for files that never change: ten years,
// the maximum most caches honor.
const ImmutableCacheControl = "public, max-age=315360000, immutable"

// RequestLogger logs every request after it has been handled.
func RequestLogger(logger dedupe.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			args = append(args, "errors", c.Errors.String())
		}
		switch status := c.Writer.Status(); {
		case status >= 500:
			logger.Error("http request", args...)
		case status >= 400:
			logger.Warn("http request", args...)
		default:
			logger.Info("http request", args...)
		}
	}
}

// CacheControl sets Cache-Control on successful file responses: immutable
// for files the classifier says never change, max-age seconds otherwise.
// Other responses under a mount get no Cache-Control header at all.
func CacheControl(classifier *dedupe.Classifier, maxAge int) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Next()
			return
		}
		if _, _, ok := classifier.Match(c.Request.URL.Path); !ok {
			c.Next()
			return
		}

		value := fmt.Sprintf("public, max-age=%d", maxAge)
		if classifier.IsImmutable(c.Request.URL.Path) {
			value = ImmutableCacheControl
		}
		c.Writer = &cacheControlWriter{ResponseWriter: c.Writer, value: value}
		c.Next()
	}
}

// cacheControlWriter decides on the header as late as possible, so a status
// changed by an outer middleware is still taken into account.
type cacheControlWriter struct {
	gin.ResponseWriter
	value string
}

func (w *cacheControlWriter) decide(status int) {
	if w.Written() {
		return
	}
	switch status {
	case http.StatusOK, http.StatusPartialContent, http.StatusNotModified:
		w.Header().Set("Cache-Control", w.value)
	default:
		w.Header().Del("Cache-Control")
	}
}

func (w *cacheControlWriter) WriteHeader(code int) {
	w.decide(code)
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheControlWriter) WriteHeaderNow() {
	w.decide(w.Status())
	w.ResponseWriter.WriteHeaderNow()
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	w.decide(w.Status())
	return w.ResponseWriter.Write(b)
}

func (w *cacheControlWriter) WriteString(s string) (int, error) {
	w.decide(w.Status())
	return w.ResponseWriter.WriteString(s)
}

// RedirectStale replaces an unwritten 404 under a content-addressable mount
// with a 302 to the latest unique name recorded for the requested name.
// With a cache, resolved names are kept until they expire; lookups that find
// nothing are never cached.
func RedirectStale(classifier *dedupe.Classifier, cache *bigcache.BigCache, logger dedupe.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Status() != http.StatusNotFound || c.Writer.Written() {
			return
		}
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			return
		}
		mount, name, ok := classifier.Match(c.Request.URL.Path)
		if !ok {
			return
		}
		storage, ok := mount.Storage.(dedupe.ContentAddressable)
		if !ok {
			return
		}

		unique, err := resolveUnique(c.Request.Context(), storage, cache, mount.Prefix+name, name)
		if err != nil {
			if !errors.Is(err, dedupe.ErrNotFound) {
				logger.Error("resolving stale name", "name", name, "error", err)
			}
			return
		}
		if unique == name {
			return
		}

		logger.Debug("redirecting stale name", "name", name, "unique_name", unique)
		c.Redirect(http.StatusFound, mount.Prefix+unique)
	}
}

func resolveUnique(ctx context.Context, storage dedupe.ContentAddressable, cache *bigcache.BigCache, key, name string) (string, error) {
	if cache == nil {
		return storage.LatestUniqueName(ctx, name)
	}
	if cached, err := cache.Get(key); err == nil {
		return string(cached), nil
	}

	unique, err := storage.LatestUniqueName(ctx, name)
	if err != nil {
		return "", err
	}
	// A full cache only costs a lookup next time.
	_ = cache.Set(key, []byte(unique))
	return unique, nil
}

// StripVary removes the Vary header from responses for files under a mount.
// It wraps the whole handler so headers added by compression are removed too.
func StripVary(classifier *dedupe.Classifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := classifier.Match(r.URL.Path); ok {
			w = &varyStripper{ResponseWriter: w}
		}
		next.ServeHTTP(w, r)
	})
}

type varyStripper struct {
	http.ResponseWriter
}

func (w *varyStripper) WriteHeader(code int) {
	w.Header().Del("Vary")
	w.ResponseWriter.WriteHeader(code)
}

func (w *varyStripper) Write(b []byte) (int, error) {
	w.Header().Del("Vary")
	return w.ResponseWriter.Write(b)
}

func (w *varyStripper) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *varyStripper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
