package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// RegisterStatsRoutes registers the aggregate counts endpoint.
//
// GET /events/stats
// - Always 200; counts are best-effort and capped
func RegisterStatsRoutes(r gin.IRoutes, svc EventService) {
	r.GET("/events/stats", func(c *gin.Context) {
		st := svc.Stats(c.Request.Context())

		c.JSON(http.StatusOK, models.StatsResponse{
			Pending:      st.Pending,
			Acknowledged: st.Acknowledged,
			Total:        st.Total,
		})
	})
}
