package routes

import (
	"ShadowStream/streamvault/internal/stream"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type statusResponse struct {
	Ok            bool                   `json:"ok"`
	Uptime        string                 `json:"uptime"`
	BotConnected  bool                   `json:"bot_connected"`
	DownloadPools int                    `json:"download_pools"`
	FilesIndexed  int64                  `json:"files_indexed"`
	Streams       stream.MetricsSnapshot `json:"streams"`
	Timestamp     time.Time              `json:"timestamp"`
}

func (e *allRoutes) LoadStatus(r *Route) {
	log := e.log.Named("Status")
	defer log.Info("Loaded status route")
	r.Engine.GET("/status", e.statusHandler(log))
}

func (e *allRoutes) statusHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := e.deps.Store.Count(c.Request.Context())
		if err != nil {
			log.Warn("Count query failed for status", zap.Error(err))
			count = -1
		}
		c.JSON(http.StatusOK, statusResponse{
			Ok:            true,
			Uptime:        time.Since(startTime).Round(time.Second).String(),
			BotConnected:  e.deps.Ready(),
			DownloadPools: e.deps.PoolSize(),
			FilesIndexed:  count,
			Streams:       stream.Stats().Snapshot(),
			Timestamp:     time.Now().UTC(),
		})
	}
}
