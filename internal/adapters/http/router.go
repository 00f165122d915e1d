package http

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Pairup/internal/adapters/rtc"
	"github.com/dkeye/Pairup/internal/adapters/signal"
	"github.com/dkeye/Pairup/internal/app/orch"
	"github.com/dkeye/Pairup/internal/config"
	"github.com/dkeye/Pairup/internal/core"
	"github.com/dkeye/Pairup/internal/domain"
)

const visitorKey = "visitor"

// Deps is everything the HTTP surface talks to.
type Deps struct {
	Orch    *orch.Orchestrator
	Signal  *signal.SignalWSController
	Tracker core.Tracker
	Stats   core.AnalyticsReader
	// Health is probed by /healthz; nil means always healthy.
	Health func(ctx context.Context) error
}

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware keeps an anonymous visitor token in the session
// cookie. It only feeds analytics; matching uses per-socket connection ids.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		token, _ := session.Get(visitorKey).(string)
		if token == "" {
			token = genClientToken()
			session.Set(visitorKey, token)
			if err := session.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
			}
		}
		c.Set("client_token", token)
		c.Next()
	}
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

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("PairupSessions", store))
	r.Use(ClientTokenMiddleware())

	if st, err := os.Stat(cfg.StaticPath); err == nil && st.IsDir() {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(filepath.Join(cfg.StaticPath, "index.html"))
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	r.GET("/healthz", func(c *gin.Context) {
		if deps.Health != nil {
			hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Health(hctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": deps.Orch.Registry.Count(),
			"sessions":    deps.Orch.Sessions.Count(),
		})
	})

	api := r.Group("/api")

	api.GET("/channels", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Orch.Catalog.Channels())
	})

	api.GET("/topics", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Orch.Catalog.Topics())
	})

	iceServers := rtc.ICEServers(cfg.ICEServers)
	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceServers})
	})

	// GET /api/queues/:channel/:mode/:topic reports the waiting count of one scope
	api.GET("/queues/:channel/:mode/:topic", func(c *gin.Context) {
		scope, n, err := deps.Orch.QueueSize(c.Request.Context(), c.Param("channel"), c.Param("mode"), c.Param("topic"))
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Str("scope", scope.String()).Msg("queue size")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"channel": scope.Channel,
			"mode":    scope.Mode,
			"topic":   scope.Topic,
			"waiting": n,
		})
	})

	api.POST("/analytics/visit", func(c *gin.Context) {
		var req struct {
			Page     string `json:"page"`
			Referrer string `json:"referrer"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Page == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "page is required"})
			return
		}
		if deps.Tracker != nil {
			deps.Tracker.TrackVisit(core.VisitEvent{
				Page:      req.Page,
				UserAgent: c.Request.UserAgent(),
				Referrer:  req.Referrer,
				Visitor:   c.GetString("client_token"),
				CreatedAt: time.Now(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	api.GET("/analytics/stats", func(c *gin.Context) {
		if deps.Stats == nil {
			c.JSON(http.StatusOK, core.AnalyticsSummary{ConnectionsByMode: map[domain.Mode]int64{}})
			return
		}
		sum, err := deps.Stats.Summary(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("analytics summary")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stats unavailable"})
			return
		}
		c.JSON(http.StatusOK, sum)
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("visitor", c.GetString("client_token")).Msg("ws signal endpoint hit")
		deps.Signal.HandleSignal(ctx, c)
	})

	return r
}
