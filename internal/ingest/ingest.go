// Package ingest drives the Telegram-side conversations: direct uploads,
// external URL downloads, and the catalog management commands.
package ingest

import (
	"ShadowStream/streamvault/internal/database"

	"github.com/AnimeKaizoku/cacher"
	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/dispatcher/handlers"
	"github.com/celestix/gotgproto/dispatcher/handlers/filters"
	"go.uber.org/zap"
)

type handler struct {
	db  *database.DB
	log *zap.Logger

	uploads *cacher.Cacher[int64, *pendingUpload]
	urls    *cacher.Cacher[int64, *pendingURL]
	deletes *cacher.Cacher[int64, *pendingDelete]
}

// Register wires every ingest handler into the client's dispatcher.
// Command handlers come first; the generic media and text handlers catch
// whatever falls through.
func Register(client *gotgproto.Client, db *database.DB, log *zap.Logger) {
	h := &handler{
		db:      db,
		log:     log.Named("Ingest"),
		uploads: newUploadStates(),
		urls:    newURLStates(),
		deletes: newDeleteStates(),
	}

	d := client.Dispatcher
	d.AddHandler(handlers.NewCommand("start", h.start))
	d.AddHandler(handlers.NewCommand("help", h.help))
	d.AddHandler(handlers.NewCommand("catalog", h.catalog))
	d.AddHandler(handlers.NewCommand("search", h.search))
	d.AddHandler(handlers.NewCommand("delete", h.delete))
	d.AddHandler(handlers.NewCommand("skip", h.skipName))
	d.AddHandler(handlers.NewCommand("cancel", h.cancel))
	d.AddHandler(handlers.NewCallbackQuery(filters.CallbackQuery.Prefix("dl:"), h.qualityChosen))
	d.AddHandler(handlers.NewCallbackQuery(filters.CallbackQuery.Prefix("del:"), h.deleteConfirmed))
	d.AddHandler(handlers.NewMessage(filters.Message.Media, h.incomingMedia))
	d.AddHandler(handlers.NewMessage(filters.Message.Text, h.incomingText))

	h.log.Info("Handlers registered")
}
