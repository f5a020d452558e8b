package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/leadscout/engine"
	"github.com/use-agent/leadscout/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Status is "rate_limited" while the browser session is cooling down after
// a rate-limit page and "degraded" when more than 80% of slots are busy.
func Health(pool *engine.SlotPool, session *engine.Session, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		slots := pool.Stats()
		ps := models.PoolStats{Capacity: pool.Capacity(), Slots: make([]models.SlotStats, len(slots))}
		for i, s := range slots {
			if s.Busy {
				ps.InUse++
			}
			ps.Slots[i] = models.SlotStats{ID: s.ID, Busy: s.Busy, Uses: s.Uses, Failures: s.Failures}
		}

		var ss models.SessionStats
		if session != nil {
			st := session.Standing()
			ss = models.SessionStats{RateLimitStrikes: st.Strikes, CoolingDown: st.CoolingDown}
			if st.CoolingDown {
				ss.CooldownLeft = st.CooldownLeft.Round(time.Second).String()
			}
		}

		status := "healthy"
		switch {
		case ss.CoolingDown:
			status = "rate_limited"
		case ps.Capacity > 0 && ps.InUse > int(float64(ps.Capacity)*0.8):
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			PoolStats:    ps,
			SessionStats: ss,
			Version:      Version,
		})
	}
}
