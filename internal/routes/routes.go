package routes

import (
	"ShadowStream/streamvault/internal/database"
	"ShadowStream/streamvault/internal/types"
	"context"
	"io"
	"reflect"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Store is the slice of the metadata store the HTTP layer needs.
type Store interface {
	GetByMessageID(ctx context.Context, channelID int64, msgID int) (*database.ArchivedFile, error)
	Catalog(ctx context.Context, page, perPage int64) ([]database.ArchivedFile, error)
	Search(ctx context.Context, query string, limit int64) ([]database.ArchivedFile, error)
	Count(ctx context.Context) (int64, error)
}

// Streamer resolves archived messages and opens healing range readers.
type Streamer interface {
	Resolve(ctx context.Context, channelID int64, messageID int) (*types.File, error)
	Stream(ctx context.Context, channelID int64, messageID int, file *types.File, start, end int64) io.ReadCloser
}

// Deps carries everything the route handlers depend on. Handlers only see
// interfaces, so tests swap in fakes.
type Deps struct {
	Store    Store
	Streamer Streamer
	// Ready reports whether the Telegram client is connected.
	Ready func() bool
	// PoolSize reports how many DC download sessions exist.
	PoolSize func() int
}

type Route struct {
	Name   string
	Engine *gin.Engine
}

func (r *Route) Init(engine *gin.Engine) {
	r.Engine = engine
}

type allRoutes struct {
	log  *zap.Logger
	deps Deps
}

var startTime = time.Now()

// Load registers every route on the engine. Each exported method on
// allRoutes taking a *Route is a route loader; reflection walks them so
// adding a file with a LoadX method is all a new route needs.
func Load(log *zap.Logger, r *gin.Engine, deps Deps) {
	log = log.Named("Routes")
	defer log.Sugar().Info("Loaded all API routes")

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:  []string{"Range", "Content-Type"},
		ExposeHeaders: []string{"Content-Length", "Content-Range", "Accept-Ranges"},
		MaxAge:        12 * time.Hour,
	}))

	route := &Route{Name: "/", Engine: r}
	route.Init(r)
	all := &allRoutes{log: log, deps: deps}
	Type := reflect.TypeOf(all)
	Value := reflect.ValueOf(all)
	for i := 0; i < Type.NumMethod(); i++ {
		Type.Method(i).Func.Call([]reflect.Value{Value, reflect.ValueOf(route)})
	}
}
