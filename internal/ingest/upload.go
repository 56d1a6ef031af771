package ingest

import (
	"ShadowStream/streamvault/config"
	"ShadowStream/streamvault/internal/bot"
	"ShadowStream/streamvault/internal/database"
	"ShadowStream/streamvault/internal/routes"
	"ShadowStream/streamvault/internal/utils"
	"ShadowStream/streamvault/internal/ytdl"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/celestix/gotgproto/dispatcher"
	"github.com/celestix/gotgproto/ext"
	"github.com/dustin/go-humanize"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// incomingMedia starts the direct-upload conversation: remember the media
// message and ask for a display name.
func (h *handler) incomingMedia(ctx *ext.Context, u *ext.Update) error {
	m := u.EffectiveMessage
	if m == nil || !isPrivate(m.PeerID) {
		return nil
	}
	userID := senderID(u)
	if userID == 0 {
		return nil
	}

	document, ok := documentFromMedia(m.Media)
	if !ok {
		_, err := ctx.Reply(u, ext.ReplyTextString("Send a video, audio or document file."), nil)
		if err != nil {
			return err
		}
		return dispatcher.EndGroups
	}
	if reason := mediaCapError(document); reason != "" {
		_, err := ctx.Reply(u, ext.ReplyTextString(reason), nil)
		if err != nil {
			return err
		}
		return dispatcher.EndGroups
	}

	name := fileNameFromDocument(document)
	h.uploads.Set(userID, &pendingUpload{
		ChatID:        userID,
		MessageID:     m.ID,
		SuggestedName: name,
		SizeBytes:     document.Size,
		MimeType:      document.MimeType,
		Kind:          bot.KindFromDocument(document),
		Duration:      bot.DurationFromDocument(document),
		FileUniqueID:  strconv.FormatInt(document.ID, 10),
	})
	h.log.Info("Upload pending name",
		zap.Int64("userID", userID), zap.String("suggested", name))

	_, err := ctx.Reply(u, ext.ReplyTextString(fmt.Sprintf(
		"Got it. Send a display name for this file, or /skip to keep %q.", name)), nil)
	if err != nil {
		return err
	}
	return dispatcher.EndGroups
}

// incomingText closes a pending naming conversation or starts a URL
// download. Anything else gets a gentle hint.
func (h *handler) incomingText(ctx *ext.Context, u *ext.Update) error {
	m := u.EffectiveMessage
	if m == nil || !isPrivate(m.PeerID) {
		return nil
	}
	userID := senderID(u)
	if userID == 0 {
		return nil
	}
	if strings.HasPrefix(m.Text, "/") {
		// Only the dynamic confirm command falls through to here; every
		// fixed command has its own handler.
		if strings.HasPrefix(m.Text, confirmDeletePrefix) {
			return h.confirmDeleteCommand(ctx, u, userID, m.Text)
		}
		return nil
	}

	if _, ok := h.uploads.Get(userID); ok {
		name := strings.TrimSpace(m.Text)
		if name == "" {
			return nil
		}
		return h.finalizeUpload(ctx, u, userID, name)
	}
	if ytdl.IsSupportedURL(m.Text) {
		return h.handleURL(ctx, u, userID, strings.TrimSpace(m.Text))
	}

	_, err := ctx.Reply(u, ext.ReplyTextString(
		"Send me a file or a YouTube link to archive it. /help for commands."), nil)
	if err != nil {
		return err
	}
	return dispatcher.EndGroups
}

// skipName finalizes a pending upload with the file's own name.
func (h *handler) skipName(ctx *ext.Context, u *ext.Update) error {
	userID := senderID(u)
	st, ok := h.uploads.Get(userID)
	if !ok {
		_, err := ctx.Reply(u, ext.ReplyTextString("Nothing pending. Send a file first."), nil)
		if err != nil {
			return err
		}
		return dispatcher.EndGroups
	}
	return h.finalizeUpload(ctx, u, userID, st.SuggestedName)
}

// finalizeUpload forwards the media into the archive channel, indexes it,
// and replies with the playback URL.
func (h *handler) finalizeUpload(ctx *ext.Context, u *ext.Update, userID int64, name string) error {
	st, ok := h.uploads.Get(userID)
	if !ok {
		return dispatcher.EndGroups
	}
	h.uploads.Delete(userID)

	archiveID := config.ValueOf.LogChannelID
	msgID, err := bot.ForwardToArchive(ctx, st.ChatID, st.MessageID, archiveID)
	if err != nil {
		h.log.Error("Failed to forward to archive", zap.Int64("userID", userID), zap.Error(err))
		_, rerr := ctx.Reply(u, ext.ReplyTextString("Failed to archive the file. Try again."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}

	record := &database.ArchivedFile{
		MessageID:       msgID,
		ChannelID:       archiveID,
		FileUniqueID:    st.FileUniqueID,
		DisplayName:     name,
		SizeBytes:       st.SizeBytes,
		MimeType:        st.MimeType,
		Kind:            st.Kind,
		DurationSeconds: st.Duration,
		Source:          database.SourceDirectUpload,
		UploadedBy:      userID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.db.PutFile(ctx, record); err != nil {
		h.log.Error("Failed to index file", zap.Int("msgID", msgID), zap.Error(err))
		_, rerr := ctx.Reply(u, ext.ReplyTextString(
			"Archived, but indexing failed. The file is safe; try re-sending it."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}

	_, err = ctx.Reply(u, ext.ReplyTextString(fmt.Sprintf(
		"Archived %q (%s).\nStream: %s",
		name, humanize.Bytes(uint64(st.SizeBytes)), routes.StreamURL(archiveID, msgID))), nil)
	if err != nil {
		return err
	}
	return dispatcher.EndGroups
}

// cancel drops every pending conversation for the user.
func (h *handler) cancel(ctx *ext.Context, u *ext.Update) error {
	userID := senderID(u)
	h.uploads.Delete(userID)
	h.urls.Delete(userID)
	h.deletes.Delete(userID)
	_, err := ctx.Reply(u, ext.ReplyTextString("Cancelled."), nil)
	if err != nil {
		return err
	}
	return dispatcher.EndGroups
}

func isPrivate(peer tg.PeerClass) bool {
	_, ok := peer.(*tg.PeerUser)
	return ok
}

func senderID(u *ext.Update) int64 {
	if user := u.EffectiveUser(); user != nil {
		return user.GetID()
	}
	return 0
}

// mediaCapError checks an incoming document against the ingest caps. Both
// ingest paths enforce the same size and duration limits; the duration
// check only applies to media that declares one.
func mediaCapError(document *tg.Document) string {
	if document.Size > config.ValueOf.MaxFileSize() {
		return fmt.Sprintf("File too large: %s (limit %s).",
			humanize.Bytes(uint64(document.Size)),
			humanize.Bytes(uint64(config.ValueOf.MaxFileSize())))
	}
	if maxDur := config.ValueOf.MaxVideoDuration(); bot.DurationFromDocument(document) > maxDur {
		return fmt.Sprintf("Video too long: %s (limit %s).",
			utils.TimeFormat(uint64(bot.DurationFromDocument(document))),
			utils.TimeFormat(uint64(maxDur)))
	}
	return ""
}

func documentFromMedia(media tg.MessageMediaClass) (*tg.Document, bool) {
	mm, ok := media.(*tg.MessageMediaDocument)
	if !ok {
		return nil, false
	}
	docClass, ok := mm.GetDocument()
	if !ok {
		return nil, false
	}
	return docClass.AsNotEmpty()
}

func fileNameFromDocument(document *tg.Document) string {
	for _, attribute := range document.Attributes {
		if name, ok := attribute.(*tg.DocumentAttributeFilename); ok {
			return name.FileName
		}
	}
	return "file_" + strconv.FormatInt(document.ID, 10)
}
