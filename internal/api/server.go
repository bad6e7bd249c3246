// Package api exposes the webhook server. Handlers validate and
// acknowledge fast; the actual comment and merge processing happens on
// background goroutines so host webhook timeouts never fire.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/docsync/internal/hosting"
)

// processTimeout bounds one background comment or merge processing run.
const processTimeout = 5 * time.Minute

// Events is the part of the coordinator the webhook server drives.
type Events interface {
	HandleCommentEvent(ctx context.Context, prID, commentText, author string) (string, error)
	HandleMergeEvent(ctx context.Context, prID, diffSummary string) (*hosting.PullRequestRef, error)
}

// Server represents the API server
type Server struct {
	echo   *echo.Echo
	port   int
	events Events
	secret string

	// dispatch runs background processing; tests replace it with a
	// synchronous version.
	dispatch func(func())
}

// NewServer creates a new API server. secret guards the webhook
// endpoints; empty disables verification (local development only).
func NewServer(port int, events Events, secret string) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	server := &Server{
		echo:     e,
		port:     port,
		events:   events,
		secret:   secret,
		dispatch: func(f func()) { go f() },
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.POST("/webhook/github", s.GitHubWebhookHandler)
	v1.POST("/webhook/gitlab", s.GitLabWebhookHandler)
}

// Start begins the API server
func (s *Server) Start() error {
	// Start server in a goroutine
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}

// processComment runs one comment command in the background.
func (s *Server) processComment(prID, body, author string) {
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		if _, err := s.events.HandleCommentEvent(ctx, prID, body, author); err != nil {
			log.Error().Err(err).Str("pr", prID).Msg("comment processing failed")
		}
	})
}

// processMerge forwards a merged pull request to the sync flow.
func (s *Server) processMerge(prID string) {
	s.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		if _, err := s.events.HandleMergeEvent(ctx, prID, ""); err != nil {
			log.Error().Err(err).Str("pr", prID).Msg("merge processing failed")
		}
	})
}
