package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/vincentbai/urltrail/internal/apperrors"
	"github.com/vincentbai/urltrail/internal/history"
	"github.com/vincentbai/urltrail/internal/logging"
	"github.com/vincentbai/urltrail/internal/models"
	"github.com/vincentbai/urltrail/internal/presenter"
	"github.com/vincentbai/urltrail/internal/relay"
)

const maxEventBytes = 1 << 20

type Server struct {
	relay    *relay.Relay
	history  *history.Store
	location *time.Location
	address  string
	server   *http.Server
	now      func() time.Time
}

func NewServer(r *relay.Relay, store *history.Store, address string, location *time.Location) *Server {
	if location == nil {
		location = time.Local
	}
	return &Server{
		relay:    r,
		history:  store,
		location: location,
		address:  address,
		now:      time.Now,
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// handleEvents accepts one observer message. The tab id comes from the path,
// as the extension transport would supply the sender's tab.
func (s *Server) handleEvents(c *gin.Context) {
	tabID, ok := tabParam(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxEventBytes))
	if err != nil || !gjson.ValidBytes(body) {
		abortWithError(c, apperrors.BadRequest("invalid_json", "Invalid JSON format", err))
		return
	}
	if messageType := gjson.GetBytes(body, "type").String(); messageType != models.MessageTypeURLChange {
		log.WithFields(log.Fields{"tab": tabID, "type": messageType}).Debug("ignoring message")
		c.Status(http.StatusNoContent)
		return
	}

	var msg models.Message
	if err := json.Unmarshal(body, &msg); err != nil {
		abortWithError(c, apperrors.BadRequest("invalid_json", "Invalid JSON format", err))
		return
	}
	if err := s.relay.OnURLChanged(c.Request.Context(), tabID, msg); err != nil {
		if errors.Is(err, relay.ErrInvalidEvent) {
			abortWithError(c, apperrors.New(http.StatusUnprocessableEntity, "invalid_event", "Invalid event", err))
			return
		}
		abortWithError(c, apperrors.Internal("Failed to store event", err))
		return
	}
	c.Status(http.StatusNoContent) // success, no body
}

func (s *Server) handleTabClosed(c *gin.Context) {
	tabID, ok := tabParam(c)
	if !ok {
		return
	}
	if err := s.relay.OnTabClosed(c.Request.Context(), tabID); err != nil {
		abortWithError(c, apperrors.Internal("Failed to evict tab", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleHistory(c *gin.Context) {
	panel, ok := s.panel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, panel.Log(c.Request.Context()))
}

func (s *Server) handleRows(c *gin.Context) {
	panel, ok := s.panel(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, panel.Rows(c.Request.Context()))
}

func (s *Server) handleDeleteEntry(c *gin.Context) {
	panel, ok := s.panel(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		abortWithError(c, apperrors.BadRequest("invalid_index", "index must be an integer", err))
		return
	}
	if err := panel.Delete(c.Request.Context(), index); err != nil {
		if errors.Is(err, history.ErrIndexOutOfRange) {
			abortWithError(c, apperrors.NotFound("entry_not_found", "No history entry at that index", err))
			return
		}
		abortWithError(c, apperrors.Internal("Failed to delete entry", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleClear(c *gin.Context) {
	panel, ok := s.panel(c)
	if !ok {
		return
	}
	confirmed, _ := strconv.ParseBool(c.Query("confirm"))
	if err := panel.Clear(c.Request.Context(), confirmed); err != nil {
		if errors.Is(err, presenter.ErrNotConfirmed) {
			abortWithError(c, apperrors.New(http.StatusConflict, "confirmation_required", presenter.ClearPrompt, err))
			return
		}
		abortWithError(c, apperrors.Internal("Failed to clear history", err))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleExport(c *gin.Context) {
	panel, ok := s.panel(c)
	if !ok {
		return
	}
	export, err := panel.Export(c.Request.Context(), s.now())
	if err != nil {
		abortWithError(c, apperrors.Internal("Failed to export history", err))
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	c.Data(http.StatusOK, "application/json", export.Data)
}

// panel builds a presenter for the tab in the path. Opening and copying are
// local-user actions, so the HTTP surface has neither.
func (s *Server) panel(c *gin.Context) (*presenter.Panel, bool) {
	tabID, ok := tabParam(c)
	if !ok {
		return nil, false
	}
	return presenter.NewPanel(s.history, tabID,
		presenter.WithLocation(s.location),
		presenter.WithOpener(nil),
		presenter.WithCopier(nil),
	), true
}

func tabParam(c *gin.Context) (int, bool) {
	tabID, err := models.ParseTabID(c.Param("tab"))
	if err != nil {
		abortWithError(c, apperrors.BadRequest("invalid_tab", "tab id must be a non-negative integer", err))
		return 0, false
	}
	return tabID, true
}

func abortWithError(c *gin.Context, err *apperrors.AppError) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(err.HTTPStatusCode, err)
}

func (s *Server) setupRoutes() *gin.Engine {
	engine := gin.New()
	engine.Use(logging.GinLogrusLogger(), logging.GinLogrusRecovery(), metricsMiddleware())

	engine.GET("/healthz", s.handleHealthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	tabs := engine.Group("/tabs/:tab")
	tabs.POST("/events", s.handleEvents)
	tabs.DELETE("", s.handleTabClosed)
	tabs.GET("/history", s.handleHistory)
	tabs.GET("/rows", s.handleRows)
	tabs.DELETE("/history/:index", s.handleDeleteEntry)
	tabs.POST("/clear", s.handleClear)
	tabs.GET("/export", s.handleExport)
	return engine
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.setupRoutes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("urltrail relay listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")
	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownContext); err != nil {
		return err
	}
	log.Println("Server exited")
	return nil
}

// Start serves until SIGINT or SIGTERM.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return s.Serve(ctx)
}
