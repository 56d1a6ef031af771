package config

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	defaultPort             int   = 7860
	defaultDev              bool  = false
	defaultLogLevel               = "info"
	defaultMongoDBName            = "streamvault"
	defaultGetFileTimeout   int   = 60
	defaultMaxFileSizeMB    int64 = 500
	defaultMaxDurationHours int64 = 2
)

var ValueOf = &config{
	Port:                defaultPort,
	Dev:                 defaultDev,
	LogLevel:            defaultLogLevel,
	MongoDBName:         defaultMongoDBName,
	GetFileTimeout:      defaultGetFileTimeout,
	MaxFileSizeMB:       defaultMaxFileSizeMB,
	MaxVideoDurationHrs: defaultMaxDurationHours,
}

type config struct {
	ApiID               int32  `envconfig:"API_ID" required:"true"`
	ApiHash             string `envconfig:"API_HASH" required:"true"`
	BotToken            string `envconfig:"BOT_TOKEN" required:"true"`
	SessionString       string `envconfig:"SESSION_STRING"`
	LogChannelID        int64  `envconfig:"LOG_CHANNEL_ID" required:"true"`
	MongoURL            string `envconfig:"MONGO_URL" required:"true"`
	MongoDBName         string `envconfig:"MONGO_DB_NAME" default:"streamvault"`
	Port                int    `envconfig:"PORT" default:"7860"`
	Host                string `envconfig:"URL"`
	ProxyURL            string `envconfig:"PROXY_URL"`
	YtdlCookies         string `envconfig:"YTDL_COOKIES"`
	GetFileTimeout      int    `envconfig:"TG_GETFILE_TIMEOUT" default:"60"`
	MaxFileSizeMB       int64  `envconfig:"MAX_FILE_SIZE_MB" default:"500"`
	MaxVideoDurationHrs int64  `envconfig:"MAX_VIDEO_DURATION_HOURS" default:"2"`
	Dev                 bool   `envconfig:"DEV" default:"false"`
	LogLevel            string `envconfig:"LOG_LEVEL" default:"info"`
}

// MaxFileSize is the ingest cap in bytes.
func (c *config) MaxFileSize() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// MaxVideoDuration is the ingest cap in seconds.
func (c *config) MaxVideoDuration() int64 {
	return c.MaxVideoDurationHrs * 3600
}

func (c *config) loadFromEnvFile(log *zap.Logger) {
	envPath := filepath.Clean("streamvault.env")
	log.Sugar().Infof("Trying to load ENV vars from %s", envPath)
	err := godotenv.Load(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Sugar().Infof("ENV file not found: %s", envPath)
			log.Sugar().Info("Falling back to the process environment. Ignore this when deploying with injected env vars.")
		} else {
			log.Fatal("Unknown error while parsing env file.", zap.Error(err))
		}
	}
}

func SetFlagsFromConfig(cmd *cobra.Command) {
	cmd.Flags().Int32("api-id", ValueOf.ApiID, "Telegram API ID")
	cmd.Flags().String("api-hash", ValueOf.ApiHash, "Telegram API Hash")
	cmd.Flags().String("bot-token", ValueOf.BotToken, "Telegram Bot Token")
	cmd.Flags().Int64("log-channel", ValueOf.LogChannelID, "Archive channel ID")
	cmd.Flags().String("mongo-url", ValueOf.MongoURL, "MongoDB connection string")
	cmd.Flags().String("mongo-db", ValueOf.MongoDBName, "MongoDB database name")
	cmd.Flags().IntP("port", "p", ValueOf.Port, "Server port")
	cmd.Flags().String("url", ValueOf.Host, "Public base URL used in stream links")
	cmd.Flags().String("proxy-url", ValueOf.ProxyURL, "SOCKS5 proxy URL for Telegram")
	cmd.Flags().Bool("dev", ValueOf.Dev, "Enable development mode")
}

func (c *config) loadConfigFromArgs(cmd *cobra.Command) {
	if cmd.Flags().Changed("api-id") {
		apiID, _ := cmd.Flags().GetInt32("api-id")
		os.Setenv("API_ID", strconv.Itoa(int(apiID)))
	}
	if cmd.Flags().Changed("api-hash") {
		apiHash, _ := cmd.Flags().GetString("api-hash")
		os.Setenv("API_HASH", apiHash)
	}
	if cmd.Flags().Changed("bot-token") {
		botToken, _ := cmd.Flags().GetString("bot-token")
		os.Setenv("BOT_TOKEN", botToken)
	}
	if cmd.Flags().Changed("log-channel") {
		logChannelID, _ := cmd.Flags().GetInt64("log-channel")
		os.Setenv("LOG_CHANNEL_ID", strconv.FormatInt(logChannelID, 10))
	}
	if cmd.Flags().Changed("mongo-url") {
		mongoURL, _ := cmd.Flags().GetString("mongo-url")
		os.Setenv("MONGO_URL", mongoURL)
	}
	if cmd.Flags().Changed("mongo-db") {
		mongoDB, _ := cmd.Flags().GetString("mongo-db")
		os.Setenv("MONGO_DB_NAME", mongoDB)
	}
	if cmd.Flags().Changed("port") {
		port, _ := cmd.Flags().GetInt("port")
		os.Setenv("PORT", strconv.Itoa(port))
	}
	if cmd.Flags().Changed("url") {
		host, _ := cmd.Flags().GetString("url")
		os.Setenv("URL", host)
	}
	if cmd.Flags().Changed("proxy-url") {
		proxyURL, _ := cmd.Flags().GetString("proxy-url")
		os.Setenv("PROXY_URL", proxyURL)
	}
	if cmd.Flags().Changed("dev") {
		dev, _ := cmd.Flags().GetBool("dev")
		os.Setenv("DEV", strconv.FormatBool(dev))
	}
}

func (c *config) setupEnvVars(log *zap.Logger, cmd *cobra.Command) {
	c.loadFromEnvFile(log)
	c.loadConfigFromArgs(cmd)
	err := envconfig.Process("", c)
	if err != nil {
		log.Fatal("Error while parsing env variables", zap.Error(err))
	}
	if c.Host == "" {
		ip, err := getInternalIP()
		if err != nil {
			log.Error("Error while getting IP", zap.Error(err))
			ip = "localhost"
		}
		c.Host = "http://" + ip + ":" + strconv.Itoa(c.Port)
		log.Sugar().Info("URL not set, automatically set to " + c.Host)
	}
	c.Host = strings.TrimSuffix(c.Host, "/")
}

func Load(log *zap.Logger, cmd *cobra.Command) {
	log = log.Named("Config")
	defer log.Info("Loaded config")
	ValueOf.setupEnvVars(log, cmd)
	// The archive channel ID may arrive in BotAPI form (-100xxxxxxxxxx) or
	// as the raw MTProto ID. Normalize to raw; stream URLs synthesize the
	// BotAPI form back so links round-trip through the stream route.
	ValueOf.LogChannelID = stripChannelID(ValueOf.LogChannelID)
	log.Sugar().Infof("Archive channel configured: %d", ValueOf.LogChannelID)
	if ValueOf.GetFileTimeout <= 0 {
		log.Sugar().Infof("TG_GETFILE_TIMEOUT must be positive, defaulting to %d", defaultGetFileTimeout)
		ValueOf.GetFileTimeout = defaultGetFileTimeout
	}
	if ValueOf.MaxFileSizeMB <= 0 {
		ValueOf.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	if ValueOf.MaxVideoDurationHrs <= 0 {
		ValueOf.MaxVideoDurationHrs = defaultMaxDurationHours
	}
}

// stripChannelID converts a BotAPI-form channel ID (-100xxxxxxxxxx) to the
// raw MTProto channel ID. Raw IDs pass through unchanged.
func stripChannelID(id int64) int64 {
	if id >= 0 {
		return id
	}
	s := strconv.FormatInt(-id, 10)
	if strings.HasPrefix(s, "100") && len(s) > 3 {
		raw, err := strconv.ParseInt(s[3:], 10, 64)
		if err == nil {
			return raw
		}
	}
	return -id
}

// https://stackoverflow.com/a/23558495/15807350
func getInternalIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.New("no internet connection")
	}
	defer conn.Close()
	localAddr := conn.LocalAddr().(*net.UDPAddr)
	return localAddr.IP.String(), nil
}
