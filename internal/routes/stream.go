package routes

import (
	"ShadowStream/streamvault/internal/bot"
	"ShadowStream/streamvault/internal/database"
	"ShadowStream/streamvault/internal/httprange"
	"ShadowStream/streamvault/internal/utils"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (e *allRoutes) LoadStream(r *Route) {
	log := e.log.Named("Stream")
	defer log.Info("Loaded stream route")
	handler := e.streamHandler(log)
	r.Engine.GET("/stream/:channelID/:messageID", handler)
	r.Engine.HEAD("/stream/:channelID/:messageID", handler)
}

func (e *allRoutes) streamHandler(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		channelID, err := strconv.ParseInt(c.Param("channelID"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
			return
		}
		// URLs carry the -100 form; the store and upstream use the raw ID.
		channelID = utils.RawChannelID(channelID)
		messageID, err := strconv.Atoi(c.Param("messageID"))
		if err != nil || messageID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
			return
		}

		// The store decides existence. A miss answers here, before anything
		// touches the upstream.
		record, err := e.deps.Store.GetByMessageID(c.Request.Context(), channelID, messageID)
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		if err != nil {
			log.Error("Store lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		size := record.SizeBytes
		rng, err := httprange.Parse(c.GetHeader("Range"), size)
		if err != nil {
			c.Header("Content-Range", httprange.UnsatisfiableContentRange(size))
			c.JSON(http.StatusRequestedRangeNotSatisfiable, gin.H{"error": "requested range not satisfiable"})
			return
		}

		status := http.StatusOK
		if !rng.Full {
			status = http.StatusPartialContent
		}
		contentType := record.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		// Written only on the paths that answer with the body's status;
		// error answers below must not carry partial-content headers.
		writeHeaders := func() {
			c.Header("Accept-Ranges", "bytes")
			c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", record.DisplayName))
			if !rng.Full {
				c.Header("Content-Range", rng.ContentRange())
			}
		}

		length := rng.End - rng.Start + 1
		if size == 0 {
			// Nothing to fetch; answer the empty body directly.
			writeHeaders()
			c.Header("Content-Length", "0")
			c.Status(status)
			return
		}

		if c.Request.Method == http.MethodHead {
			writeHeaders()
			c.Header("Content-Length", strconv.FormatInt(length, 10))
			c.Header("Content-Type", contentType)
			c.Status(status)
			return
		}

		if !e.deps.Ready() {
			c.Header("Retry-After", "5")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream session not ready"})
			return
		}

		file, err := e.deps.Streamer.Resolve(c.Request.Context(), channelID, messageID)
		if errors.Is(err, bot.ErrMessageGone) {
			c.JSON(http.StatusNotFound, gin.H{"error": "file not found"})
			return
		}
		if err != nil {
			log.Error("Failed to resolve file location",
				zap.Int64("channelID", channelID), zap.Int("messageID", messageID), zap.Error(err))
			c.Header("Retry-After", "5")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "upstream unavailable"})
			return
		}

		log.Debug("Serving range",
			zap.Int("messageID", messageID),
			zap.Int64("start", rng.Start), zap.Int64("end", rng.End), zap.Int64("size", size))

		writeHeaders()
		reader := e.deps.Streamer.Stream(c.Request.Context(), channelID, messageID, file, rng.Start, rng.End)
		defer reader.Close()
		c.DataFromReader(status, length, contentType, reader, nil)
	}
}
