package handler

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// SystemHandler serves health and readiness endpoints.
type SystemHandler struct {
	db          *sqlx.DB
	redisClient *redis.Client
	logger      Logger
	startTime   time.Time
}

// NewSystemHandler creates a SystemHandler.
func NewSystemHandler(db *sqlx.DB, redisClient *redis.Client, log Logger) *SystemHandler {
	return &SystemHandler{
		db:          db,
		redisClient: redisClient,
		logger:      log,
		startTime:   time.Now(),
	}
}

// Health reports liveness.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready reports readiness: the database and redis must both answer pings.
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"database": "ok",
		"redis":    "ok",
	}
	status := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("Database ping failed", map[string]interface{}{"error": err.Error()})
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	if err := h.redisClient.Ping(r.Context()).Err(); err != nil {
		h.logger.Error("Redis ping failed", map[string]interface{}{"error": err.Error()})
		checks["redis"] = "unavailable"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, checks)
}
