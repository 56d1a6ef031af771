package routes

import (
	"ShadowStream/streamvault/internal/types"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Version is stamped by the build; the default marks dev builds.
var Version = "dev"

func (e *allRoutes) LoadHome(r *Route) {
	defer e.log.Named("Home").Info("Loaded home route")
	r.Engine.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, types.RootResponse{
			Message: "StreamVault is up",
			Ok:      true,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: Version,
		})
	})
}
