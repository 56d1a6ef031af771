package cache

import (
	"ShadowStream/streamvault/internal/types"
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/coocood/freecache"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Resolved file locations are cached briefly: Telegram file references last
// roughly an hour, so a short TTL keeps API traffic down without serving
// stale references for long. The self-heal path bypasses the cache anyway.
const LocatorTTL = 240 // seconds

var cache *Cache

type Cache struct {
	cache *freecache.Cache
	mu    sync.RWMutex
	log   *zap.Logger
}

func InitCache(log *zap.Logger) {
	log = log.Named("cache")
	gob.Register(types.File{})
	gob.Register(tg.InputDocumentFileLocation{})
	defer log.Sugar().Info("Initialized")
	cache = &Cache{cache: freecache.NewCache(32 * 1024 * 1024), log: log}
}

func GetCache() *Cache {
	return cache
}

// LocatorKey builds the cache key for a resolved file location.
func LocatorKey(channelID int64, messageID int) string {
	return fmt.Sprintf("locator:%d:%d", channelID, messageID)
}

func (c *Cache) Get(key string, value *types.File) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, err := c.cache.Get([]byte(key))
	if err != nil {
		return err
	}
	return gob.NewDecoder(bytes.NewReader(data)).Decode(value)
}

func (c *Cache) Set(key string, value *types.File, expireSeconds int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return err
	}
	return c.cache.Set([]byte(key), buf.Bytes(), expireSeconds)
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Del([]byte(key))
}
