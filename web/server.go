// Package web hosts the public redirector for generated links and a
// small key-guarded JSON API for the dashboard.
package web

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dhanushrs1/HDC-File/lib/deeplink"
	"github.com/dhanushrs1/HDC-File/repository"
)

const (
	defaultLogLimit = 20
	maxLogLimit     = 100
	shutdownGrace   = 5 * time.Second
)

type filesIndex interface {
	ByID(ctx context.Context, messageID int64) (*repository.File, error)
	IncrementViews(ctx context.Context, messageID int64) error
	TotalStats(ctx context.Context) (count int64, size int64, err error)
	TopViewed(ctx context.Context, limit int64) ([]repository.File, error)
}

type accessLogbook interface {
	Insert(ctx context.Context, fileID int64, ip, userAgent string) error
	Recent(ctx context.Context, limit int64) ([]repository.AccessLog, error)
}

type userCounter interface {
	Count(ctx context.Context) (int64, error)
}

type downloadCounters interface {
	DailyCounts(ctx context.Context) (today, yesterday, dayBefore int64, err error)
}

// Server wraps the gin engine with the repositories the endpoints read.
type Server struct {
	files       filesIndex
	logs        accessLogbook
	users       userCounter
	analytics   downloadCounters
	codec       *deeplink.Codec
	botUsername string
	channelID   int64
	adminKey    string
	log         *zap.Logger

	httpServer *http.Server
}

func NewServer(
	addr string,
	files filesIndex,
	logs accessLogbook,
	users userCounter,
	analytics downloadCounters,
	codec *deeplink.Codec,
	botUsername string,
	channelID int64,
	adminKey string,
	log *zap.Logger,
) *Server {
	s := &Server{
		files:       files,
		logs:        logs,
		users:       users,
		analytics:   analytics,
		codec:       codec,
		botUsername: botUsername,
		channelID:   channelID,
		adminKey:    adminKey,
		log:         log.Named("web"),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.log))

	engine.GET("/health", s.handleHealth)
	engine.GET("/", s.handleRedirect)
	engine.GET("/file/:id", s.handleFile)

	api := engine.Group("/api", s.requireAdminKey)
	api.GET("/stats", s.handleStats)
	api.GET("/access-logs", s.handleAccessLogs)

	s.httpServer = &http.Server{Addr: addr, Handler: engine}
	return s
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	s.log.Info("listening on http", zap.String("addr", s.httpServer.Addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRedirect is the landing page for generated links: the ?start
// payload travels on to the bot untouched. Single-file payloads leave
// a mark in the access log on the way through.
func (s *Server) handleRedirect(c *gin.Context) {
	payload := strings.TrimSpace(c.Query("start"))
	if payload == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "bot": "https://t.me/" + s.botUsername})
		return
	}
	if ids, err := s.codec.Decode(payload); err == nil && len(ids) == 1 {
		s.logAccess(c, int64(ids[0]))
	}
	c.Redirect(http.StatusFound, deeplink.BotLink(s.botUsername, payload))
}

// handleFile sends the visitor to the stored message in the private
// channel. Only members of the storage channel can open the target,
// which is exactly who this route is for.
func (s *Server) handleFile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file id must be numeric"})
		return
	}
	file, err := s.files.ByID(c.Request.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if err != nil {
		s.log.Error("file lookup failed", zap.Int64("file_id", id), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
		return
	}
	s.logAccess(c, file.ID)
	c.Redirect(http.StatusFound, deeplink.ChannelMessageLink(s.channelID, int(file.ID)))
}

func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()

	userCount, err := s.users.Count(ctx)
	if err != nil {
		s.abortStorage(c, "user count failed", err)
		return
	}
	fileCount, fileSize, err := s.files.TotalStats(ctx)
	if err != nil {
		s.abortStorage(c, "file totals failed", err)
		return
	}
	today, yesterday, dayBefore, err := s.analytics.DailyCounts(ctx)
	if err != nil {
		s.abortStorage(c, "daily counts failed", err)
		return
	}
	topViewed, err := s.files.TopViewed(ctx, 10)
	if err != nil {
		s.abortStorage(c, "top viewed failed", err)
		return
	}

	top := make([]gin.H, 0, len(topViewed))
	for _, file := range topViewed {
		top = append(top, gin.H{
			"file_id":   file.ID,
			"file_name": file.FileName,
			"views":     file.ViewCount,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"users": userCount,
		"files": gin.H{"count": fileCount, "total_size": fileSize},
		"downloads": gin.H{
			"today":      today,
			"yesterday":  yesterday,
			"day_before": dayBefore,
		},
		"top_files": top,
	})
}

func (s *Server) handleAccessLogs(c *gin.Context) {
	limit := int64(defaultLogLimit)
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if parsed > maxLogLimit {
			parsed = maxLogLimit
		}
		limit = parsed
	}

	entries, err := s.logs.Recent(c.Request.Context(), limit)
	if err != nil {
		s.abortStorage(c, "recent accesses failed", err)
		return
	}
	logs := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		logs = append(logs, gin.H{
			"file_id":    entry.FileID,
			"file_name":  entry.FileName,
			"ip":         entry.IP,
			"user_agent": entry.UserAgent,
			"timestamp":  entry.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(logs), "logs": logs})
}

// requireAdminKey guards the dashboard API. With no key configured the
// API pretends not to exist.
func (s *Server) requireAdminKey(c *gin.Context) {
	if s.adminKey == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	key := c.GetHeader("X-Admin-Key")
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
		return
	}
	c.Next()
}

// logAccess appends an access-log entry and bumps the view counter.
// Both are best effort: a logging hiccup must not break the redirect.
func (s *Server) logAccess(c *gin.Context, fileID int64) {
	ctx := c.Request.Context()
	if err := s.logs.Insert(ctx, fileID, clientIP(c), c.Request.UserAgent()); err != nil {
		s.log.Warn("access log write failed", zap.Int64("file_id", fileID), zap.Error(err))
	}
	if err := s.files.IncrementViews(ctx, fileID); err != nil {
		s.log.Warn("view counter update failed", zap.Int64("file_id", fileID), zap.Error(err))
	}
}

func (s *Server) abortStorage(c *gin.Context, msg string, err error) {
	s.log.Error(msg, zap.Error(err))
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
}

// clientIP prefers the first X-Forwarded-For hop, the address the
// reverse proxy saw, over the proxy's own.
func clientIP(c *gin.Context) string {
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return c.ClientIP()
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
			zap.String("ip", clientIP(c)),
		)
	}
}
