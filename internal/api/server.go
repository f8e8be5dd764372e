package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"garo-monitor/internal/collector"
	"garo-monitor/internal/station"
	"garo-monitor/internal/storage"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router    *gin.Engine
	server    *http.Server
	collector *collector.Collector
	gateway   *station.CommitGateway
	db        *storage.Database
	port      int
}

type ServerConfig struct {
	Port      int
	Collector *collector.Collector
	Gateway   *station.CommitGateway
	Database  *storage.Database
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:    router,
		collector: cfg.Collector,
		gateway:   cfg.Gateway,
		db:        cfg.Database,
		port:      cfg.Port,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api/v1")
	{
		api.GET("/status", s.statusHandler)
		api.GET("/stations", s.stationsHandler)
		api.GET("/stations/:id", s.stationHandler)
		api.GET("/stations/:id/readings", s.readingsHandler)
		api.GET("/stations/:id/stats/daily", s.dailyStatsHandler)
		api.GET("/stations/:id/config", s.getConfigHandler)
		api.PUT("/stations/:id/config", s.updateConfigHandler)
	}
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	log.Printf("API server starting on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) healthHandler(c *gin.Context) {
	status := s.collector.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"running":   status.Running,
		"stations":  status.Stations,
		"last_sync": status.LastSync,
		"timestamp": time.Now(),
	})
}

func (s *Server) statusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.collector.Status())
}

func (s *Server) stationsHandler(c *gin.Context) {
	snapshots := s.collector.Latest()
	if len(snapshots) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No data available yet",
		})
		return
	}

	out := make([]*station.Snapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		out = append(out, snap)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) stationHandler(c *gin.Context) {
	snap := s.collector.LatestFor(c.Param("id"))
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown station"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) readingsHandler(c *gin.Context) {
	stationID := c.Param("id")
	fromStr := c.Query("from")
	toStr := c.Query("to")
	limitStr := c.DefaultQuery("limit", "100")

	var limit int
	fmt.Sscanf(limitStr, "%d", &limit)
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	if fromStr != "" && toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' date format"})
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' date format"})
			return
		}

		readings, err := s.db.GetReadingsByRange(stationID, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, readings)
		return
	}

	readings, err := s.db.GetReadingsWithLimit(stationID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, readings)
}

func (s *Server) dailyStatsHandler(c *gin.Context) {
	dateStr := c.DefaultQuery("date", time.Now().Format("2006-01-02"))
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format"})
		return
	}

	stats, err := s.db.GetDailyStats(c.Param("id"), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) getConfigHandler(c *gin.Context) {
	snap := s.collector.LatestFor(c.Param("id"))
	if snap == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown station"})
		return
	}
	if !snap.ConfigOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Configuration not available this cycle",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"config":        snap.Config,
		"writable_keys": station.WritableKeys(),
	})
}

type configUpdateRequest struct {
	Key   string  `json:"key" binding:"required"`
	Value float64 `json:"value"`
}

// updateConfigHandler writes one configuration value through the commit
// gateway. The station's answer decides the HTTP status: accepted 200,
// rejected 409 with the station's reason verbatim, still pending 202.
func (s *Server) updateConfigHandler(c *gin.Context) {
	var req configUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.gateway.Commit(c.Request.Context(), c.Param("id"), req.Key, req.Value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch result.Outcome {
	case station.CommitAccepted:
		c.JSON(http.StatusOK, result)
	case station.CommitRejected:
		c.JSON(http.StatusConflict, result)
	default:
		c.JSON(http.StatusAccepted, result)
	}
}
