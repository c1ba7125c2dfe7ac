package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// NewEngine builds the gin engine with every API route registered under /api.
func NewEngine(h *Handler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(CORSMiddleware(corsOrigins))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", h.Ping)
		apiGroup.GET("/questions", h.GetQuestions)
		apiGroup.POST("/training/submissions", h.Submit)
		apiGroup.GET("/training/records", h.GetRecords)
		apiGroup.GET("/training/records/:subject", h.GetRecord)
		apiGroup.GET("/training/warnings", h.GetWarnings)
		apiGroup.GET("/roster", h.GetRoster)
		apiGroup.POST("/traces/analyze", h.AnalyzeTraces)
	}

	r.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API route not found"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}
