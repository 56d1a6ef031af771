package ingest

import (
	"ShadowStream/streamvault/config"
	"ShadowStream/streamvault/internal/bot"
	"ShadowStream/streamvault/internal/database"
	"ShadowStream/streamvault/internal/routes"
	"ShadowStream/streamvault/internal/utils"
	"ShadowStream/streamvault/internal/ytdl"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/celestix/gotgproto/dispatcher"
	"github.com/celestix/gotgproto/ext"
	"github.com/dustin/go-humanize"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/styling"
	"github.com/gotd/td/telegram/uploader"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const probeTimeout = 90 * time.Second

// handleURL probes an external video and offers the quality choices that
// fit within the configured caps.
func (h *handler) handleURL(ctx *ext.Context, u *ext.Update, userID int64, rawURL string) error {
	h.log.Info("Probing external URL", zap.Int64("userID", userID))

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	probe, err := ytdl.ProbeURL(probeCtx, h.log, rawURL)
	cancel()
	if err != nil {
		_, rerr := ctx.Reply(u, ext.ReplyTextString(
			"Could not read that link. Make sure it is a public video."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}

	if maxDur := config.ValueOf.MaxVideoDuration(); probe.DurationSeconds > maxDur {
		_, rerr := ctx.Reply(u, ext.ReplyTextString(fmt.Sprintf(
			"Video too long: %s (limit %s).",
			utils.TimeFormat(uint64(probe.DurationSeconds)), utils.TimeFormat(uint64(maxDur)))), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}

	var buttons []tg.KeyboardButtonClass
	for _, height := range probe.Heights {
		size := probe.SizeByHeight[height]
		if size > 0 && size > config.ValueOf.MaxFileSize() {
			continue
		}
		label := fmt.Sprintf("%dp", height)
		if size > 0 {
			label = fmt.Sprintf("%dp (~%s)", height, humanize.Bytes(uint64(size)))
		}
		buttons = append(buttons, &tg.KeyboardButtonCallback{
			Text: label,
			Data: []byte("dl:" + strconv.Itoa(height)),
		})
	}
	if len(buttons) == 0 {
		_, rerr := ctx.Reply(u, ext.ReplyTextString(fmt.Sprintf(
			"Every available quality exceeds the %s size limit.",
			humanize.Bytes(uint64(config.ValueOf.MaxFileSize())))), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}

	prompt, err := ctx.Reply(u, ext.ReplyTextString(fmt.Sprintf(
		"%s\nDuration: %s\nPick a quality:",
		probe.Title, utils.TimeFormat(uint64(probe.DurationSeconds)))),
		&ext.ReplyOpts{Markup: &tg.ReplyInlineMarkup{
			Rows: []tg.KeyboardButtonRow{{Buttons: buttons}},
		}})
	if err != nil {
		return err
	}

	h.urls.Set(userID, &pendingURL{
		URL:       rawURL,
		Probe:     probe,
		ChatID:    userID,
		PromptID:  prompt.ID,
		RequestAt: time.Now(),
	})
	return dispatcher.EndGroups
}

// qualityChosen runs the download-and-archive pipeline after a quality tap.
func (h *handler) qualityChosen(ctx *ext.Context, u *ext.Update) error {
	q := u.CallbackQuery
	if q == nil {
		return nil
	}
	userID := q.UserID
	st, ok := h.urls.Get(userID)
	if !ok {
		answer := &tg.MessagesSetBotCallbackAnswerRequest{QueryID: q.QueryID}
		answer.SetMessage("This request expired. Send the link again.")
		answer.SetAlert(true)
		_, err := ctx.Raw.MessagesSetBotCallbackAnswer(ctx, answer)
		return err
	}
	height, err := strconv.Atoi(strings.TrimPrefix(string(q.Data), "dl:"))
	if err != nil {
		return nil
	}
	h.urls.Delete(userID)

	if _, err := ctx.Raw.MessagesSetBotCallbackAnswer(ctx, &tg.MessagesSetBotCallbackAnswerRequest{
		QueryID: q.QueryID,
	}); err != nil {
		h.log.Warn("Failed to ack callback", zap.Error(err))
	}

	edit := func(text string) {
		req := &tg.MessagesEditMessageRequest{ID: st.PromptID}
		req.SetMessage(text)
		if _, err := ctx.EditMessage(st.ChatID, req); err != nil {
			h.log.Debug("Progress edit failed", zap.Error(err))
		}
	}

	edit(fmt.Sprintf("Downloading %s at %dp...", st.Probe.Title, height))

	// Scratch space lives for this pipeline only. The deferred removal is
	// the cleanup guarantee for every exit path below.
	tmpDir, err := os.MkdirTemp("", "streamvault-*")
	if err != nil {
		edit("Download failed: no scratch space.")
		return dispatcher.EndGroups
	}
	defer os.RemoveAll(tmpDir)

	path, err := ytdl.Download(ctx, h.log, st.URL, height, tmpDir)
	if err != nil {
		edit("Download failed. The video may be restricted.")
		return dispatcher.EndGroups
	}
	info, err := os.Stat(path)
	if err != nil {
		edit("Download failed.")
		return dispatcher.EndGroups
	}
	if info.Size() > config.ValueOf.MaxFileSize() {
		edit(fmt.Sprintf("Downloaded file is %s, over the %s limit.",
			humanize.Bytes(uint64(info.Size())),
			humanize.Bytes(uint64(config.ValueOf.MaxFileSize()))))
		return dispatcher.EndGroups
	}

	edit("Uploading to the archive...")
	msg, err := h.uploadToArchive(ctx, st, path, info.Size(), height)
	if err != nil {
		h.log.Error("Failed to archive downloaded video", zap.Error(err))
		edit("Upload to the archive failed. Try again later.")
		return dispatcher.EndGroups
	}

	archiveID := config.ValueOf.LogChannelID
	record := &database.ArchivedFile{
		MessageID:       msg.ID,
		ChannelID:       archiveID,
		FileUniqueID:    archivedDocumentID(msg),
		DisplayName:     st.Probe.Title,
		SizeBytes:       info.Size(),
		MimeType:        "video/mp4",
		Kind:            database.KindVideo,
		DurationSeconds: st.Probe.DurationSeconds,
		QualityLabel:    fmt.Sprintf("%dp", height),
		Source:          database.SourceExternalURL,
		ExternalURL:     st.URL,
		UploadedBy:      userID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := h.db.PutFile(ctx, record); err != nil {
		h.log.Error("Failed to index downloaded video", zap.Error(err))
		edit("Archived, but indexing failed. Send the link again.")
		return dispatcher.EndGroups
	}

	edit(fmt.Sprintf("Archived %q at %dp (%s).\nStream: %s",
		st.Probe.Title, height, humanize.Bytes(uint64(info.Size())),
		routes.StreamURL(archiveID, msg.ID)))
	return dispatcher.EndGroups
}

// uploadToArchive pushes the downloaded file into the archive channel and
// returns the created channel message.
func (h *handler) uploadToArchive(ctx *ext.Context, st *pendingURL, path string, size int64, height int) (*tg.Message, error) {
	archiveID := config.ValueOf.LogChannelID
	channel, err := bot.GetChannelPeer(ctx, ctx.Raw, ctx.PeerStorage, archiveID)
	if err != nil {
		return nil, err
	}

	up := uploader.NewUploader(ctx.Raw).
		WithPartSize(uploader.MaximumPartSize).
		WithProgress(&uploadProgress{
			ctx:     ctx,
			chatID:  st.ChatID,
			msgID:   st.PromptID,
			total:   size,
			limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		})
	f, err := up.FromPath(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	name := filepath.Base(path)
	document := message.UploadedDocument(f, styling.Plain(st.Probe.Title)).
		MIME("video/mp4").
		Filename(name).
		Attributes(&tg.DocumentAttributeVideo{
			Duration:          float64(st.Probe.DurationSeconds),
			SupportsStreaming: true,
		})

	sender := message.NewSender(ctx.Raw).WithUploader(up)
	updates, err := sender.To(&tg.InputPeerChannel{
		ChannelID:  channel.ChannelID,
		AccessHash: channel.AccessHash,
	}).Media(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("send to archive: %w", err)
	}
	msg, ok := newChannelMessage(updates)
	if !ok {
		return nil, fmt.Errorf("sent but no channel message in updates")
	}
	return msg, nil
}

// uploadProgress edits the status message at most once a second.
type uploadProgress struct {
	ctx     *ext.Context
	chatID  int64
	msgID   int
	total   int64
	limiter *rate.Limiter
}

func (p *uploadProgress) Chunk(_ context.Context, state uploader.ProgressState) error {
	if p.total <= 0 || !p.limiter.Allow() {
		return nil
	}
	percent := state.Uploaded * 100 / p.total
	req := &tg.MessagesEditMessageRequest{ID: p.msgID}
	req.SetMessage(fmt.Sprintf("Uploading to the archive... %d%%", percent))
	if _, err := p.ctx.EditMessage(p.chatID, req); err != nil {
		// Telegram rejects no-op edits; never fail the upload over status
		// text.
		return nil
	}
	return nil
}

func newChannelMessage(updates tg.UpdatesClass) (*tg.Message, bool) {
	container, ok := updates.(*tg.Updates)
	if !ok {
		return nil, false
	}
	for _, upd := range container.Updates {
		if created, ok := upd.(*tg.UpdateNewChannelMessage); ok {
			if msg, ok := created.Message.(*tg.Message); ok {
				return msg, true
			}
		}
	}
	return nil, false
}

func archivedDocumentID(msg *tg.Message) string {
	document, ok := documentFromMedia(msg.Media)
	if !ok {
		return ""
	}
	return strconv.FormatInt(document.ID, 10)
}
