// Package server wires the HTTP surface: the verified interactions
// endpoint, the OAuth redirect, static pages, and health.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"steam-party-bot/internal/config"
	"steam-party-bot/internal/discord"
	"steam-party-bot/internal/handler"
	"steam-party-bot/internal/pkg/db"
	"steam-party-bot/internal/service"
)

// Server is the HTTP server hosting the bot's webhook surface.
type Server struct {
	engine          *gin.Engine
	http            *http.Server
	interactions    *handler.InteractionHandler
	links           *service.LinkService
	pool            *db.Pool
	followupTimeout time.Duration
}

// New builds the server and registers all routes.
func New(cfg *config.Config, interactions *handler.InteractionHandler, links *service.LinkService, pool *db.Pool) (*Server, error) {
	publicKey, err := discord.ParsePublicKey(cfg.Discord.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("invalid discord public key: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		engine:       engine,
		interactions: interactions,
		links:        links,
		pool:         pool,
		// Deferred follow-up work includes the whole search resolution.
		followupTimeout: cfg.Party.ResolveTimeout + 30*time.Second,
	}

	engine.POST("/interactions", discord.VerifyMiddleware(publicKey), s.handleInteractions)
	engine.GET("/api/auth/discord/redirect", s.handleOAuthRedirect)
	engine.GET("/healthz", s.handleHealth)

	// Static success/landing pages at the root, behind the API routes.
	engine.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.Server.StaticDir))))

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleInteractions processes one verified interaction delivery. The
// initial response is written synchronously; deferred follow-up work runs
// on its own context so it survives the request ending.
func (s *Server) handleInteractions(c *gin.Context) {
	var in discord.Interaction
	if err := c.ShouldBindJSON(&in); err != nil {
		log.Warn().Err(err).Msg("Failed to parse interaction")
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed interaction payload"})
		return
	}

	resp, followup, err := s.interactions.Handle(c.Request.Context(), &in)
	if err != nil {
		log.Error().Err(err).Int("type", int(in.Type)).Msg("Rejected interaction")
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown interaction"})
		return
	}

	c.JSON(http.StatusOK, resp)

	if followup != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), s.followupTimeout)
			defer cancel()
			followup(ctx)
		}()
	}
}

// handleOAuthRedirect completes the Steam linking flow and lands the user
// on a static result page.
func (s *Server) handleOAuthRedirect(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.Redirect(http.StatusFound, "/")
		return
	}

	if _, err := s.links.CompleteLink(c.Request.Context(), code); err != nil {
		if errors.Is(err, service.ErrNoSteamConnection) {
			log.Warn().Msg("OAuth completed but no Steam connection on account")
		} else {
			log.Error().Err(err).Msg("Failed to complete Steam link")
		}
		c.Redirect(http.StatusFound, "/error.html")
		return
	}

	c.Redirect(http.StatusFound, "/success.html")
}

// handleHealth reports process and database health.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.pool.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLogger logs each request at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("Request handled")
	}
}
