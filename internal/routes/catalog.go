package routes

import (
	"ShadowStream/streamvault/config"
	"ShadowStream/streamvault/internal/database"
	"ShadowStream/streamvault/internal/utils"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultPerPage = 50
	maxPerPage     = 100
	maxSearchHits  = 50
)

// catalogEntry is one catalog row plus its synthesized stream URL.
type catalogEntry struct {
	database.ArchivedFile
	StreamURL string `json:"stream_url"`
}

type catalogResponse struct {
	Total   int64          `json:"total"`
	Page    int64          `json:"page"`
	PerPage int64          `json:"per_page"`
	Files   []catalogEntry `json:"files"`
}

func (e *allRoutes) LoadCatalog(r *Route) {
	log := e.log.Named("Catalog")
	defer log.Info("Loaded catalog routes")
	api := r.Engine.Group("/api")
	api.GET("/catalog", e.catalogHandler(log))
	api.GET("/search", e.searchHandler(log))
}

func (e *allRoutes) catalogHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := queryInt64(c, "page", 1)
		if page < 1 {
			page = 1
		}
		perPage := queryInt64(c, "per_page", defaultPerPage)
		if perPage < 1 {
			perPage = defaultPerPage
		}
		if perPage > maxPerPage {
			perPage = maxPerPage
		}

		files, err := e.deps.Store.Catalog(c.Request.Context(), page, perPage)
		if err != nil {
			log.Error("Catalog query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		total, err := e.deps.Store.Count(c.Request.Context())
		if err != nil {
			log.Error("Count query failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, catalogResponse{
			Total:   total,
			Page:    page,
			PerPage: perPage,
			Files:   withStreamURLs(files),
		})
	}
}

func (e *allRoutes) searchHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("q"))
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
			return
		}
		files, err := e.deps.Store.Search(c.Request.Context(), query, maxSearchHits)
		if err != nil {
			log.Error("Search query failed", zap.String("query", query), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"query": query,
			"files": withStreamURLs(files),
		})
	}
}

func withStreamURLs(files []database.ArchivedFile) []catalogEntry {
	entries := make([]catalogEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, catalogEntry{
			ArchivedFile: f,
			StreamURL:    StreamURL(f.ChannelID, f.MessageID),
		})
	}
	return entries
}

// StreamURL builds the public playback URL for an archived file. channelID
// is the raw MTProto ID; the URL carries the -100 form players and bots
// pass around.
func StreamURL(channelID int64, messageID int) string {
	return fmt.Sprintf("%s/stream/%d/%d", config.ValueOf.Host, utils.BotAPIChannelID(channelID), messageID)
}

func queryInt64(c *gin.Context, name string, fallback int64) int64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}
