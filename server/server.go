// Package server exposes published room snapshots over HTTP for debugging
// and accepts host connections over websocket.
package server

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/nstehr/creep/creep-core/agent"
	"github.com/nstehr/creep/creep-core/ipc"
	"github.com/nstehr/creep/creep-core/model"
	"github.com/nstehr/creep/creep-core/rules"
)

// BridgeFunc takes over a host transport until it closes.
type BridgeFunc func(t ipc.Transport)

var upgrader = websocket.Upgrader{
	// The host shim is not a browser; origin checks don't apply.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type roomResponse struct {
	Room     string         `json:"room"`
	Tick     int            `json:"tick"`
	Walkable int            `json:"walkable"`
	Exits    []model.Coord  `json:"exits"`
	Tiles    map[string]int `json:"tiles"`
}

type tileResponse struct {
	Room     string      `json:"room"`
	Tick     int         `json:"tick"`
	Coord    model.Coord `json:"coord"`
	Index    int         `json:"index"`
	Code     int         `json:"code"`
	Terrain  string      `json:"terrain"`
	Walkable bool        `json:"walkable"`
}

type selectResponse struct {
	Room  string        `json:"room"`
	Tick  int           `json:"tick"`
	Where string        `json:"where"`
	Count int           `json:"count"`
	Tiles []model.Coord `json:"tiles"`
}

func SetupRouter(rooms *agent.Registry, engine *rules.Engine, bridge BridgeFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "rooms": rooms.Len()})
	})
	r.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": rooms.Rooms()})
	})
	r.GET("/rooms/:name", roomHandler(rooms, engine))
	r.GET("/rooms/:name/tiles/:x/:y", tileHandler(rooms))
	r.GET("/rooms/:name/select", selectHandler(rooms))

	if bridge != nil {
		r.GET("/bridge", bridgeHandler(bridge))
	}
	return r
}

func lookup(c *gin.Context, rooms *agent.Registry) (model.RoomSnapshot, bool) {
	name := c.Param("name")
	snap, ok := rooms.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown room " + name})
	}
	return snap, ok
}

func roomHandler(rooms *agent.Registry, engine *rules.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := lookup(c, rooms)
		if !ok {
			return
		}
		cls, err := engine.Classify(snap)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, roomResponse{
			Room:     snap.Name(),
			Tick:     snap.Tick(),
			Walkable: snap.Terrain().WalkableCount(),
			Exits:    snap.Terrain().Exits(),
			Tiles:    cls.Counts(),
		})
	}
}

func tileHandler(rooms *agent.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := lookup(c, rooms)
		if !ok {
			return
		}
		x, errX := strconv.Atoi(c.Param("x"))
		y, errY := strconv.Atoi(c.Param("y"))
		if errX != nil || errY != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "x and y must be integers"})
			return
		}
		coord, err := model.NewCoord(x, y)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		flag := snap.At(coord)
		c.JSON(http.StatusOK, tileResponse{
			Room:     snap.Name(),
			Tick:     snap.Tick(),
			Coord:    coord,
			Index:    coord.Index(),
			Code:     int(flag),
			Terrain:  flag.String(),
			Walkable: flag.Walkable(),
		})
	}
}

func selectHandler(rooms *agent.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap, ok := lookup(c, rooms)
		if !ok {
			return
		}
		where := c.Query("where")
		if where == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "where is required"})
			return
		}
		tiles, err := rules.Select(snap, where)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if tiles == nil {
			tiles = []model.Coord{}
		}
		c.JSON(http.StatusOK, selectResponse{
			Room:  snap.Name(),
			Tick:  snap.Tick(),
			Where: where,
			Count: len(tiles),
			Tiles: tiles,
		})
	}
}

func bridgeHandler(bridge BridgeFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		slog.Info("websocket bridge connected", "remote", c.Request.RemoteAddr)
		bridge(ipc.NewWebsocketTransport(conn))
	}
}
