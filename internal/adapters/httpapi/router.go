// Package httpapi wires the gin router: the lifecycle webhook ingress, the
// backfill read surface, the push-channel endpoint and operational routes.
package httpapi

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/livescribe/livescribe/internal/adapters/push"
	"github.com/livescribe/livescribe/internal/app"
	"github.com/livescribe/livescribe/internal/config"
	"github.com/livescribe/livescribe/internal/core"
)

// Deps carries everything the router serves.
type Deps struct {
	Manager     *app.SessionManager
	Meetings    core.MeetingStore
	Transcripts core.TranscriptStore
	Hub         *push.Hub
	Push        *push.Controller
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	h := &handlers{deps: deps}

	api := r.Group("/api")
	api.POST("/hooks/session", h.handleNotification)
	api.GET("/meetings/:externalID", h.handleMeeting)
	api.GET("/meetings/:externalID/transcript", h.handleTranscript)
	api.GET("/meetings/:externalID/participants", h.handleParticipants)
	api.GET("/live/stats", h.handleStats)

	r.GET("/ws/live/:externalID", func(c *gin.Context) {
		deps.Push.HandleLive(ctx, c)
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "httpapi").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
