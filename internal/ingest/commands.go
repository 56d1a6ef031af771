package ingest

import (
	"ShadowStream/streamvault/config"
	"ShadowStream/streamvault/internal/database"
	"ShadowStream/streamvault/internal/routes"
	"ShadowStream/streamvault/internal/utils"
	"fmt"
	"strconv"
	"strings"

	"github.com/celestix/gotgproto/dispatcher"
	"github.com/celestix/gotgproto/ext"
	"github.com/dustin/go-humanize"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

const listPageSize = 10

const confirmDeletePrefix = "/confirm_delete_"

func (h *handler) start(ctx *ext.Context, u *ext.Update) error {
	_, err := ctx.Reply(u, ext.ReplyTextString(
		"Hi! Send me a file or a YouTube link and I will archive it and give you a direct stream URL.\n\n/help for the full command list."), nil)
	if err != nil {
		return err
	}
	return dispatcher.EndGroups
}

func (h *handler) help(ctx *ext.Context, u *ext.Update) error {
	_, err := ctx.Reply(u, ext.ReplyTextString(
		"Send a file to archive it, or a YouTube link to download and archive it.\n\n"+
			"/catalog [page] - your archived files\n"+
			"/search <text> - find files by name\n"+
			"/delete <id> - remove a file from the catalog\n"+
			"/skip - keep the original file name\n"+
			"/cancel - abort the current operation"), nil)
	if err != nil {
		return err
	}
	return dispatcher.EndGroups
}

func (h *handler) catalog(ctx *ext.Context, u *ext.Update) error {
	userID := senderID(u)
	page := int64(1)
	if arg := commandArgs(u.EffectiveMessage.Text); arg != "" {
		if n, err := strconv.ParseInt(arg, 10, 64); err == nil && n > 0 {
			page = n
		}
	}
	files, err := h.db.ListByUser(ctx, userID, page, listPageSize)
	if err != nil {
		h.log.Error("Catalog query failed", zap.Int64("userID", userID), zap.Error(err))
		_, rerr := ctx.Reply(u, ext.ReplyTextString("Could not load your catalog. Try again."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}
	if len(files) == 0 {
		text := "Your catalog is empty. Send me a file to start."
		if page > 1 {
			text = fmt.Sprintf("No files on page %d.", page)
		}
		_, rerr := ctx.Reply(u, ext.ReplyTextString(text), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your files (page %d):\n\n", page)
	for _, f := range files {
		writeEntry(&b, f)
	}
	if len(files) == listPageSize {
		fmt.Fprintf(&b, "More: /catalog %d", page+1)
	}
	_, err = ctx.Reply(u, ext.ReplyTextString(b.String()), nil)
	if err != nil {
		return err
	}
	return dispatcher.EndGroups
}

func (h *handler) search(ctx *ext.Context, u *ext.Update) error {
	query := commandArgs(u.EffectiveMessage.Text)
	if query == "" {
		_, err := ctx.Reply(u, ext.ReplyTextString("Usage: /search <text>"), nil)
		if err != nil {
			return err
		}
		return dispatcher.EndGroups
	}
	files, err := h.db.Search(ctx, query, listPageSize)
	if err != nil {
		h.log.Error("Search failed", zap.String("query", query), zap.Error(err))
		_, rerr := ctx.Reply(u, ext.ReplyTextString("Search failed. Try again."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}
	if len(files) == 0 {
		_, rerr := ctx.Reply(u, ext.ReplyTextString(fmt.Sprintf("Nothing matches %q.", query)), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Matches for %q:\n\n", query)
	for _, f := range files {
		writeEntry(&b, f)
	}
	_, err = ctx.Reply(u, ext.ReplyTextString(b.String()), nil)
	if err != nil {
		return err
	}
	return dispatcher.EndGroups
}

func (h *handler) delete(ctx *ext.Context, u *ext.Update) error {
	userID := senderID(u)
	arg := commandArgs(u.EffectiveMessage.Text)
	msgID, err := strconv.Atoi(arg)
	if err != nil || msgID <= 0 {
		_, rerr := ctx.Reply(u, ext.ReplyTextString(
			"Usage: /delete <id>\nThe id is shown in /catalog."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}

	record, err := h.db.GetByMessageID(ctx, config.ValueOf.LogChannelID, msgID)
	if err != nil {
		_, rerr := ctx.Reply(u, ext.ReplyTextString("No such file in the catalog."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}
	if record.UploadedBy != userID {
		_, rerr := ctx.Reply(u, ext.ReplyTextString("You can only delete files you archived."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}

	h.deletes.Set(userID, &pendingDelete{MessageID: msgID})
	_, err = ctx.Reply(u, ext.ReplyTextString(fmt.Sprintf(
		"Remove %q from the catalog? The stream URL will stop working.\nTap Delete or send %s%d.",
		record.DisplayName, confirmDeletePrefix, msgID)),
		&ext.ReplyOpts{Markup: &tg.ReplyInlineMarkup{
			Rows: []tg.KeyboardButtonRow{{Buttons: []tg.KeyboardButtonClass{
				&tg.KeyboardButtonCallback{Text: "Delete", Data: []byte("del:" + arg)},
				&tg.KeyboardButtonCallback{Text: "Keep", Data: []byte("del:0")},
			}}},
		}})
	if err != nil {
		return err
	}
	return dispatcher.EndGroups
}

// confirmDeleteCommand is the text twin of the inline Delete button, for
// clients where tapping buttons is awkward.
func (h *handler) confirmDeleteCommand(ctx *ext.Context, u *ext.Update, userID int64, text string) error {
	msgID, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSpace(text), confirmDeletePrefix))
	if err != nil || msgID <= 0 {
		return nil
	}
	st, ok := h.deletes.Get(userID)
	if !ok || st.MessageID != msgID {
		_, rerr := ctx.Reply(u, ext.ReplyTextString(
			"Nothing to confirm. Start with /delete <id>."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}
	h.deletes.Delete(userID)

	if err := h.db.SoftDelete(ctx, config.ValueOf.LogChannelID, msgID); err != nil {
		h.log.Error("Soft delete failed", zap.Int("msgID", msgID), zap.Error(err))
		_, rerr := ctx.Reply(u, ext.ReplyTextString("Delete failed. Try again."), nil)
		if rerr != nil {
			return rerr
		}
		return dispatcher.EndGroups
	}
	h.log.Info("File removed from catalog", zap.Int("msgID", msgID), zap.Int64("userID", userID))
	_, err2 := ctx.Reply(u, ext.ReplyTextString("Removed from the catalog."), nil)
	if err2 != nil {
		return err2
	}
	return dispatcher.EndGroups
}

func (h *handler) deleteConfirmed(ctx *ext.Context, u *ext.Update) error {
	q := u.CallbackQuery
	if q == nil {
		return nil
	}
	userID := q.UserID
	msgID, err := strconv.Atoi(strings.TrimPrefix(string(q.Data), "del:"))
	if err != nil {
		return nil
	}

	answer := func(text string) error {
		req := &tg.MessagesSetBotCallbackAnswerRequest{QueryID: q.QueryID}
		req.SetMessage(text)
		_, err := ctx.Raw.MessagesSetBotCallbackAnswer(ctx, req)
		return err
	}

	if msgID == 0 {
		h.deletes.Delete(userID)
		return answer("Kept.")
	}
	st, ok := h.deletes.Get(userID)
	if !ok || st.MessageID != msgID {
		return answer("This confirmation expired.")
	}
	h.deletes.Delete(userID)

	if err := h.db.SoftDelete(ctx, config.ValueOf.LogChannelID, msgID); err != nil {
		h.log.Error("Soft delete failed", zap.Int("msgID", msgID), zap.Error(err))
		return answer("Delete failed. Try again.")
	}
	h.log.Info("File removed from catalog", zap.Int("msgID", msgID), zap.Int64("userID", userID))
	return answer("Removed from the catalog.")
}

func writeEntry(b *strings.Builder, f database.ArchivedFile) {
	fmt.Fprintf(b, "%s (%s", f.DisplayName, humanize.Bytes(uint64(f.SizeBytes)))
	if f.DurationSeconds > 0 {
		fmt.Fprintf(b, ", %s", utils.TimeFormat(uint64(f.DurationSeconds)))
	}
	fmt.Fprintf(b, ")\nid: %d\n%s\n\n", f.MessageID, routes.StreamURL(f.ChannelID, f.MessageID))
}

// commandArgs returns the text after the command word.
func commandArgs(text string) string {
	parts := strings.SplitN(strings.TrimSpace(text), " ", 2)
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
