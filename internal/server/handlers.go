package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/gin-gonic/gin"

	"dedupe-go/internal/dedupe"
)

// UploadResponse is the body returned for a successful upload.
type UploadResponse struct {
	Name     string `json:"name"`
	Original string `json:"original"`
}

// serveFile streams the file named by the route's wildcard. A missing file
// only sets the 404 status so RedirectStale can still replace the response.
func (s *Server) serveFile(storage dedupe.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := strings.TrimPrefix(c.Param("name"), "/")
		if err := dedupe.ValidateName(name); err != nil {
			c.Status(http.StatusNotFound)
			return
		}

		rc, err := storage.Open(c.Request.Context(), name)
		if err != nil {
			if dedupe.IsNotFound(err) {
				c.Status(http.StatusNotFound)
				return
			}
			s.logger.Error("opening file", "name", name, "error", err)
			c.Status(http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(c.Writer, c.Request, path.Base(name), time.Time{}, rs)
			return
		}

		if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
			c.Header("Content-Type", ct)
		}
		c.Status(http.StatusOK)
		if c.Request.Method == http.MethodHead {
			return
		}
		if _, err := io.Copy(c.Writer, rc); err != nil {
			s.logger.Warn("streaming file", "name", name, "error", err)
		}
	}
}

// upload saves the request body into the media storage.
func (s *Server) upload(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("name"), "/")

	stored, err := s.media.Save(c.Request.Context(), name, c.Request.Body)
	if err != nil {
		if errors.Is(err, dedupe.ErrInvalidName) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("upload failed", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}

	// A cached redirect for this name may now point at older content.
	if s.redirects != nil {
		if err := s.redirects.Delete(s.opts.MediaPrefix + name); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			s.logger.Warn("invalidating redirect cache", "name", name, "error", err)
		}
	}

	s.metrics.uploads.Inc()
	c.JSON(http.StatusCreated, UploadResponse{Name: stored, Original: name})
}
