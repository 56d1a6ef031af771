package bot

import (
	"ShadowStream/streamvault/config"
	"ShadowStream/streamvault/internal/utils"
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"github.com/gotd/td/telegram/dcs"
	"go.uber.org/zap"
	"golang.org/x/net/proxy"
)

// Client is the process-wide authenticated Telegram client. Started once;
// every stream and ingest path shares it.
var Client *gotgproto.Client

// sessionFile holds the MTProto auth key. Must stay owner-only.
const sessionFile = "streamvault.session"

// StartClient connects and authenticates the bot. The session persists in a
// sqlite file in the working directory, so restarts do not re-authenticate.
func StartClient(log *zap.Logger) (*gotgproto.Client, error) {
	log = log.Named("Bot")
	log.Sugar().Infof("Starting client (token: %s)", utils.MaskToken(config.ValueOf.BotToken))

	var sessionType sessionMaker.SessionConstructor
	if config.ValueOf.SessionString != "" {
		sessionType = sessionMaker.PyrogramSession(config.ValueOf.SessionString).Name("streamvault")
	} else {
		sessionType = sessionMaker.SqlSession(sqlite.Open(sessionFile))
	}

	resolver, err := dcResolver(log)
	if err != nil {
		return nil, err
	}

	client, err := gotgproto.NewClient(
		int(config.ValueOf.ApiID),
		config.ValueOf.ApiHash,
		gotgproto.ClientTypeBot(config.ValueOf.BotToken),
		&gotgproto.ClientOpts{
			Session:          sessionType,
			Resolver:         resolver,
			DisableCopyright: true,
			Middlewares:      GetFloodMiddleware(log),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("start client: %w", err)
	}

	Client = client
	log.Sugar().Infof("Connected as @%s", client.Self.Username)

	if config.ValueOf.SessionString == "" {
		if err := os.Chmod(sessionFile, 0o600); err != nil {
			log.Warn("Failed to restrict session file permissions", zap.Error(err))
		}
	}

	// Resolve the archive channel once so its peer lands in storage before
	// the first stream or forward needs it.
	if _, err := GetChannelPeer(client.CreateContext(), client.API(), client.PeerStorage, config.ValueOf.LogChannelID); err != nil {
		log.Warn("Archive channel not resolvable yet; send /start in the channel once",
			zap.Int64("channelID", config.ValueOf.LogChannelID), zap.Error(err))
	}

	return client, nil
}

// Ready reports whether the shared client is connected. The stream route
// answers 503 until this turns true.
func Ready() bool {
	return Client != nil
}

// dcResolver builds the transport resolver, routing through a SOCKS5 proxy
// when PROXY_URL is set.
func dcResolver(log *zap.Logger) (dcs.Resolver, error) {
	if config.ValueOf.ProxyURL == "" {
		return dcs.DefaultResolver(), nil
	}
	u, err := url.Parse(config.ValueOf.ProxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse PROXY_URL: %w", err)
	}
	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}
	dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 dialer: %w", err)
	}
	contextDialer, ok := dialer.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer does not support context dialing")
	}
	log.Sugar().Infof("Routing Telegram traffic through %s", utils.MaskURL(config.ValueOf.ProxyURL))
	return dcs.Plain(dcs.PlainOptions{Dial: contextDialer.DialContext}), nil
}

// Idle blocks until the client disconnects or ctx is cancelled.
func Idle(ctx context.Context, client *gotgproto.Client) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Idle()
	}()
	select {
	case <-ctx.Done():
	case <-done:
	}
}
