package http

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/adapters/signal"
	"github.com/dkeye/voicerooms/internal/app/orch"
	"github.com/dkeye/voicerooms/internal/auth"
	"github.com/dkeye/voicerooms/internal/config"
	"github.com/dkeye/voicerooms/internal/federation"
	"github.com/dkeye/voicerooms/internal/metrics"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// AdminMiddleware guards operator routes with a static bearer token. An empty
// token disables the routes entirely.
func AdminMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := auth.TokenFromHeader(c.GetHeader("Authorization"))
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   gin.H{"code": "unauthorized", "message": "admin token required"},
			})
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, verifier *auth.Verifier) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(metrics.HTTPMetricsMiddleware())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("VoiceSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"status": "ok"}})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(o, verifier, signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		SendBuffer: cfg.SendBuffer,
	})
	h := &Handlers{Orch: o}

	r.GET(federation.RoomsPath, h.FederationRooms)

	api := r.Group("/api")
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client_token", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	admin := api.Group("", AdminMiddleware(cfg.AdminToken))
	admin.GET("/rooms", h.ListRooms)
	admin.GET("/rooms/:id", h.GetRoom)
	admin.POST("/rooms/:id/lock", h.LockRoom)
	admin.POST("/rooms/:id/unlock", h.UnlockRoom)
	admin.DELETE("/rooms/:id", h.DeleteRoom)
	admin.GET("/relay/stats", h.RelayStats)

	return r
}
