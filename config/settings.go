package config

import (
	"os"
	"strconv"
	"time"
)

var (
	AppVersion             = "v1.0.0"
	AppPort                = "3000"
	AppDebug               = false
	AppBasicAuthCredential []string
	AppBasePath            = ""
	AppTrustedProxies      []string

	PathStorages = "storages"
	PathTemp     = "statics/temp"

	// CacheBackend selects where search caches are persisted: "file" or "valkey".
	CacheBackend = "file"

	ValkeyAddress   = "localhost:6379"
	ValkeyPassword  = ""
	ValkeyDB        = 0
	ValkeyKeyPrefix = "azsticker"

	PinterestCacheFile     = "pinterest-cache.json"
	PinterestGifCacheFile  = "pinterest-gif-cache.json"
	PinterestCacheTTL      = 30 * time.Minute
	PinterestMaxResults    = 5
	PinterestSearchTimeout = 60 * time.Second
	PinterestGalleryDL     = "gallery-dl"
	PinterestGifSuffix     = "gif animated"
	PinterestMinQueryLen   = 3

	// JanitorSchedule is a robfig/cron spec (seconds field enabled).
	JanitorSchedule   = "0 */5 * * * *"
	JanitorTempMaxAge = 2 * time.Hour

	InstagramYtDlp             = "yt-dlp"
	InstagramMaxFileSize int64 = 100 * 1024 * 1024 // 100MB
	InstagramTimeout           = 5 * time.Minute

	HealthCheckInterval = 10 * time.Minute

	FetchWorkerPoolSize  = 8
	FetchWorkerQueueSize = 64
)

func init() {
	// Fetch pool env vars
	if val := os.Getenv("FETCH_WORKER_POOL_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			FetchWorkerPoolSize = parsed
		}
	}
	if val := os.Getenv("FETCH_WORKER_QUEUE_SIZE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			FetchWorkerQueueSize = parsed
		}
	}
}
