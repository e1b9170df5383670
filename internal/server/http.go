package server

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/merchantscaravan/caravan-server/internal/room"
	"github.com/merchantscaravan/caravan-server/internal/watchers"
)

const roomPasswordHeader = "X-Room-Password"

// ResultLister reads finished games back for the API.
type ResultLister interface {
	RecentResults(ctx context.Context, limit int) ([]room.GameResult, error)
}

// StatsSource reports per-game statistics of a room.
type StatsSource interface {
	Stats(roomID string) (watchers.Stats, bool)
}

// RouterConfig holds the optional parts of the HTTP API.
type RouterConfig struct {
	AllowedOrigins []string
	Results        ResultLister
	Stats          StatsSource
}

type api struct {
	manager *room.Manager
	results ResultLister
	stats   StatsSource
	logger  *zap.Logger
}

// NewRouter builds the HTTP API. A nil hub leaves /ws unregistered.
func NewRouter(manager *room.Manager, hub *Hub, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &api{manager: manager, results: cfg.Results, stats: cfg.Stats, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	r.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	r.GET("/healthz", a.health)

	rooms := r.Group("/rooms")
	{
		rooms.POST("", a.createRoom)
		rooms.GET("", a.listRooms)
		rooms.GET("/:id", a.getRoom)
		rooms.DELETE("/:id", a.deleteRoom)
		rooms.GET("/:id/replay", a.getReplay)
		rooms.GET("/:id/stats", a.getStats)
	}
	r.GET("/results", a.listResults)

	if hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			hub.ServeWS(c.Writer, c.Request)
		})
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", roomPasswordHeader},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(HTTPStatus(err), gin.H{
		"error": err.Error(),
		"code":  StatusFromError(err).Code().String(),
	})
}

func (a *api) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"rooms":  a.manager.RoomCount(),
	})
}

func (a *api) createRoom(c *gin.Context) {
	var req room.RoomOptions
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	r, err := a.manager.CreateRoom(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": r.Summary()})
}

func (a *api) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": a.manager.ListRooms()})
}

// getRoom returns the listing entry and the public projection. Hands are
// never included.
func (a *api) getRoom(c *gin.Context) {
	r, ok := a.manager.GetRoom(c.Param("id"))
	if !ok {
		abortWithError(c, room.ErrRoomNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"room":  r.Summary(),
		"state": r.State(""),
	})
}

// deleteRoom tears a room down. Password-protected rooms require the
// password in the X-Room-Password header.
func (a *api) deleteRoom(c *gin.Context) {
	r, ok := a.manager.GetRoom(c.Param("id"))
	if !ok {
		abortWithError(c, room.ErrRoomNotFound)
		return
	}
	if err := r.CheckPassword(c.GetHeader(roomPasswordHeader)); err != nil {
		a.logger.Warn("room delete refused",
			zap.String("room_id", r.ID()),
			zap.String("remote", c.ClientIP()),
		)
		abortWithError(c, err)
		return
	}
	if !a.manager.RemoveRoom(r.ID()) {
		abortWithError(c, room.ErrRoomNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// getReplay returns one snapshot of the room's current or last game, or
// only the snapshot count when no index is given.
func (a *api) getReplay(c *gin.Context) {
	r, ok := a.manager.GetRoom(c.Param("id"))
	if !ok {
		abortWithError(c, room.ErrRoomNotFound)
		return
	}
	replay := r.Replay()
	if replay == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no game has been played in this room"})
		return
	}

	raw, ok := c.GetQuery("index")
	if !ok {
		c.JSON(http.StatusOK, gin.H{"size": replay.Size()})
		return
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "index must be an integer"})
		return
	}
	snap, ok := replay.At(index)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot out of range", "size": replay.Size()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"size": replay.Size(), "snapshot": snap})
}

func (a *api) getStats(c *gin.Context) {
	if a.stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "statistics disabled"})
		return
	}
	if _, ok := a.manager.GetRoom(c.Param("id")); !ok {
		abortWithError(c, room.ErrRoomNotFound)
		return
	}
	stats, ok := a.stats.Stats(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no game has been played in this room"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (a *api) listResults(c *gin.Context) {
	if a.results == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "result storage disabled"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}
	results, err := a.results.RecentResults(c.Request.Context(), limit)
	if err != nil {
		a.logger.Error("failed to load results", zap.Error(err))
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
