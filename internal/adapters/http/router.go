package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/lobby/internal/adapters/pubsub"
	"github.com/dkeye/lobby/internal/adapters/signal"
	"github.com/dkeye/lobby/internal/adapters/ws"
	"github.com/dkeye/lobby/internal/app/orch"
	"github.com/dkeye/lobby/internal/codec"
	"github.com/dkeye/lobby/internal/config"
	"github.com/dkeye/lobby/internal/core"
	"github.com/dkeye/lobby/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type topicRequest struct {
	Topic string `json:"topic" binding:"max=256"`
}

func newEngine(cfg *config.ServerConfig) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	return r
}

// SetupDiscoveryRouter serves discovery plus the read-mostly admin API and
// metrics. gatherer may be nil, in which case /metrics is not mounted.
func SetupDiscoveryRouter(cfg *config.ServerConfig, o *orch.Orchestrator, gatherer prometheus.Gatherer) *gin.Engine {
	r := newEngine(cfg)

	r.GET(ws.DiscoveryPath, func(c *gin.Context) {
		reply := o.OnDiscoveryRequest(domain.Identity(c.ClientIP()))
		payload, err := codec.Encode(reply)
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("encode discovery reply")
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "application/json", payload)
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Registry.Rooms())
	})

	api.GET("/rooms/:name", func(c *gin.Context) {
		name := domain.CanonicalRoomName(c.Param("name"))
		room, ok := o.Registry.Room(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrUnknownRoom.Error()})
			return
		}
		c.JSON(http.StatusOK, core.RoomDetail{
			RoomInfo: core.RoomInfo{Name: room.Name, Topic: room.Topic, MemberCount: len(room.Members)},
			Members:  room.MemberNames(),
		})
	})

	api.PUT("/rooms/:name/topic", func(c *gin.Context) {
		var req topicRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		name := domain.CanonicalRoomName(c.Param("name"))
		if err := o.Registry.SetTopic(name, req.Topic); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrUnknownRoom) {
				status = http.StatusNotFound
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.GET("/members", func(c *gin.Context) {
		c.JSON(http.StatusOK, o.Registry.Members())
	})

	log.Info().Str("module", "adapters.http").Msg("discovery router setup")
	return r
}

func SetupCommandRouter(ctx context.Context, cfg *config.ServerConfig, ctl *signal.Controller) *gin.Engine {
	r := newEngine(cfg)
	r.GET(ws.CommandPath, func(c *gin.Context) {
		ctl.HandleCommand(ctx, c)
	})
	return r
}

func SetupBroadcastRouter(ctx context.Context, cfg *config.ServerConfig, hub *pubsub.Hub) *gin.Engine {
	r := newEngine(cfg)
	r.GET(ws.BroadcastPath, func(c *gin.Context) {
		hub.HandleSubscribe(ctx, c)
	})
	return r
}
