package bot

import (
	"ShadowStream/streamvault/internal/cache"
	"ShadowStream/streamvault/internal/database"
	"ShadowStream/streamvault/internal/types"
	"ShadowStream/streamvault/internal/utils"
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/ext"
	"github.com/celestix/gotgproto/storage"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// ErrMessageGone reports that the archived message no longer exists or
// carries no streamable media.
var ErrMessageGone = errors.New("message deleted or has no media")

// ResolveFile returns the file location and metadata for an archived
// message, consulting the locator cache first. channelID is the raw
// MTProto channel ID.
func ResolveFile(ctx context.Context, client *gotgproto.Client, channelID int64, messageID int) (*types.File, error) {
	log := utils.Logger.Named("ResolveFile")
	key := cache.LocatorKey(channelID, messageID)

	var cached types.File
	if err := cache.GetCache().Get(key, &cached); err == nil {
		log.Debug("Using cached file location",
			zap.Int64("channelID", channelID), zap.Int("messageID", messageID))
		return &cached, nil
	}

	log.Debug("Fetching file location from Telegram",
		zap.Int64("channelID", channelID), zap.Int("messageID", messageID))

	message, err := GetMessage(ctx, client, channelID, messageID)
	if err != nil {
		return nil, err
	}
	file, err := fileFromMedia(message.Media)
	if err != nil {
		return nil, err
	}
	if err := cache.GetCache().Set(key, file, cache.LocatorTTL); err != nil {
		log.Warn("Failed to cache file location (continuing without cache)", zap.Error(err))
	}
	return file, nil
}

// RefreshFile re-resolves the file location bypassing the cache. Used when
// the upstream rejects the cached reference as expired.
func RefreshFile(ctx context.Context, client *gotgproto.Client, channelID int64, messageID int) (*types.File, error) {
	utils.Logger.Named("ResolveFile").Info("Refreshing expired file reference",
		zap.Int64("channelID", channelID), zap.Int("messageID", messageID))
	cache.GetCache().Delete(cache.LocatorKey(channelID, messageID))
	return ResolveFile(ctx, client, channelID, messageID)
}

// GetMessage fetches a single message from a channel.
func GetMessage(ctx context.Context, client *gotgproto.Client, channelID int64, messageID int) (*tg.Message, error) {
	channel, err := GetChannelPeer(ctx, client.API(), client.PeerStorage, channelID)
	if err != nil {
		return nil, fmt.Errorf("get channel peer: %w", err)
	}
	res, err := client.API().ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
		Channel: channel,
		ID:      []tg.InputMessageClass{&tg.InputMessageID{ID: messageID}},
	})
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", messageID, err)
	}
	messages, ok := res.(*tg.MessagesChannelMessages)
	if !ok || len(messages.Messages) == 0 {
		return nil, ErrMessageGone
	}
	message, ok := messages.Messages[0].(*tg.Message)
	if !ok {
		return nil, ErrMessageGone
	}
	return message, nil
}

// fileFromMedia extracts the streamable document from message media. The
// archive holds documents only (video, audio, files); anything else is
// treated as gone.
func fileFromMedia(media tg.MessageMediaClass) (*types.File, error) {
	doc, ok := media.(*tg.MessageMediaDocument)
	if !ok {
		return nil, ErrMessageGone
	}
	docClass, ok := doc.GetDocument()
	if !ok {
		return nil, ErrMessageGone
	}
	document, ok := docClass.AsNotEmpty()
	if !ok {
		return nil, ErrMessageGone
	}
	var fileName string
	for _, attribute := range document.Attributes {
		if name, ok := attribute.(*tg.DocumentAttributeFilename); ok {
			fileName = name.FileName
			break
		}
	}
	return &types.File{
		Location: document.AsInputDocumentFileLocation(),
		FileSize: document.Size,
		FileName: fileName,
		MimeType: document.MimeType,
		ID:       document.ID,
		DCID:     document.DCID,
	}, nil
}

// KindFromDocument classifies a document by its attributes.
func KindFromDocument(document *tg.Document) string {
	for _, attribute := range document.Attributes {
		switch attribute.(type) {
		case *tg.DocumentAttributeVideo:
			return database.KindVideo
		case *tg.DocumentAttributeAudio:
			return database.KindAudio
		}
	}
	return database.KindDocument
}

// DurationFromDocument reports the media duration in seconds, if any.
func DurationFromDocument(document *tg.Document) int64 {
	for _, attribute := range document.Attributes {
		switch attr := attribute.(type) {
		case *tg.DocumentAttributeVideo:
			return int64(attr.Duration)
		case *tg.DocumentAttributeAudio:
			return int64(attr.Duration)
		}
	}
	return 0
}

// GetChannelPeer gets an InputChannel for a raw channel ID, using
// PeerStorage as an in-memory cache to avoid repeated API calls.
func GetChannelPeer(ctx context.Context, api *tg.Client, peerStorage *storage.PeerStorage, channelID int64) (*tg.InputChannel, error) {
	// gotgproto stores channel peers at BotAPI-format (-100<id>) keys.
	cachedInputPeer := peerStorage.GetInputPeerById(utils.BotAPIChannelID(channelID))

	switch peer := cachedInputPeer.(type) {
	case *tg.InputPeerEmpty:
		break
	case *tg.InputPeerChannel:
		return &tg.InputChannel{
			ChannelID:  peer.ChannelID,
			AccessHash: peer.AccessHash,
		}, nil
	default:
		return nil, errors.New("unexpected type of input peer")
	}

	channels, err := api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: channelID}})
	if err != nil {
		return nil, err
	}
	if len(channels.GetChats()) == 0 {
		return nil, errors.New("no channels found")
	}
	channel, ok := channels.GetChats()[0].(*tg.Channel)
	if !ok {
		return nil, errors.New("type assertion to *tg.Channel failed")
	}

	peerStorage.AddPeer(channel.GetID(), channel.AccessHash, storage.TypeChannel, "")
	return channel.AsInput(), nil
}

// ForwardToArchive forwards a user's message into the archive channel and
// returns the new message ID there.
func ForwardToArchive(ctx *ext.Context, fromChatID int64, messageID int, archiveChannelID int64) (int, error) {
	fromPeer := ctx.PeerStorage.GetInputPeerById(fromChatID)
	if fromPeer.Zero() {
		return 0, fmt.Errorf("fromChatID %d is not a valid peer", fromChatID)
	}
	toPeer, err := GetChannelPeer(ctx, ctx.Raw, ctx.PeerStorage, archiveChannelID)
	if err != nil {
		return 0, err
	}
	update, err := ctx.Raw.MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		RandomID: []int64{rand.Int63()},
		FromPeer: fromPeer,
		ID:       []int{messageID},
		ToPeer:   &tg.InputPeerChannel{ChannelID: toPeer.ChannelID, AccessHash: toPeer.AccessHash},
	})
	if err != nil {
		return 0, fmt.Errorf("forward message: %w", err)
	}
	msgID, ok := NewChannelMessageID(update)
	if !ok {
		return 0, fmt.Errorf("forward succeeded but no new message id in updates")
	}
	return msgID, nil
}

// NewChannelMessageID digs the ID of a freshly created channel message out
// of an updates container.
func NewChannelMessageID(updates tg.UpdatesClass) (int, bool) {
	container, ok := updates.(*tg.Updates)
	if !ok {
		return 0, false
	}
	for _, u := range container.Updates {
		if created, ok := u.(*tg.UpdateNewChannelMessage); ok {
			if msg, ok := created.Message.(*tg.Message); ok {
				return msg.ID, true
			}
		}
	}
	return 0, false
}
