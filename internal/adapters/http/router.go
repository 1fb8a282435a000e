// Package http serves the local control and status API of the client.
package http

import (
	"github.com/dkeye/meetclient/internal/config"
	"github.com/dkeye/meetclient/internal/core"
	"github.com/dkeye/meetclient/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const (
	sessionName   = "meetclient"
	requestHeader = "X-Request-ID"
)

// RequestIDMiddleware tags every request with an id, reusing the caller's.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestHeader, id)
		c.Next()
	}
}

type Handler struct {
	Coord   Coordinator
	Host    core.HostAPI
	Limiter *CallRateLimiter
	secret  string
}

func SetupRouter(cfg *config.Config, coord Coordinator, host core.HostAPI, m *metrics.Metrics) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())

	key := cfg.Secret
	if key == "" {
		key = uuid.NewString()
	}
	store := cookie.NewStore([]byte(key))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))

	h := &Handler{
		Coord:   coord,
		Host:    host,
		Limiter: NewCallRateLimiter(3, callRateWindow),
		secret:  cfg.Secret,
	}

	if m != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	api.POST("/session", h.login)
	api.DELETE("/session", h.logout)

	authed := api.Group("", h.requireSession)
	authed.GET("/status", h.status)

	calls := authed.Group("/calls")
	calls.POST("", h.initiateCall)
	calls.POST("/answer", h.answerCall)
	calls.POST("/reject", h.rejectCall)
	calls.POST("/cancel", h.cancelCall)
	calls.POST("/end", h.endCall)
	calls.GET("/history", h.callHistory)

	authed.POST("/publish/:slot", h.publish)
	authed.DELETE("/publish/:slot", h.unpublish)

	meetings := authed.Group("/meetings")
	meetings.POST("/leave", h.leaveMeeting)
	meetings.POST("/:id/join", h.joinMeeting)
	meetings.GET("/:id/waiting-room", h.waitingRoom)
	meetings.POST("/:id/waiting-room/:user/admit", h.admit)
	meetings.POST("/:id/waiting-room/:user/reject", h.rejectWaiting)
	meetings.POST("/:id/mute-all", h.muteAll)
	meetings.POST("/:id/co-hosts/:user", h.addCoHost)
	meetings.DELETE("/:id/co-hosts/:user", h.removeCoHost)
	meetings.GET("/:id/participants", h.participants)
	meetings.DELETE("/:id/participants/:user", h.removeParticipant)

	log.Info().Str("module", "adapters.http").Bool("auth", cfg.Secret != "").Msg("router setup")
	return r
}
