package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	globalConfig "github.com/AzielCF/az-sticker/config"
	"github.com/AzielCF/az-sticker/domains/health"
	domainInstagram "github.com/AzielCF/az-sticker/domains/instagram"
	domainPinterest "github.com/AzielCF/az-sticker/domains/pinterest"
	"github.com/AzielCF/az-sticker/infrastructure/gallerydl"
	"github.com/AzielCF/az-sticker/infrastructure/searchcache"
	"github.com/AzielCF/az-sticker/infrastructure/valkey"
	"github.com/AzielCF/az-sticker/infrastructure/ytdlp"
	"github.com/AzielCF/az-sticker/pkg/fetchpool"
	"github.com/AzielCF/az-sticker/pkg/metrics"
	"github.com/AzielCF/az-sticker/pkg/utils"
	"github.com/AzielCF/az-sticker/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Infrastructure
	vkClient  *valkey.Client
	recorder  *metrics.Recorder
	fetchPool *fetchpool.Pool

	// Usecase
	searchUsecase    domainPinterest.ISearchUsecase
	janitorUsecase   domainPinterest.IJanitorUsecase
	instagramUsecase domainInstagram.IInstagramUsecase
	healthUsecase    health.IHealthUsecase

	appCtx    context.Context
	appCancel context.CancelFunc
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "az-sticker",
	Short: "Pinterest and Instagram media fetcher for sticker bots",
	Long: `az-sticker searches Pinterest images and GIFs through gallery-dl, rotates
cached results per query, and downloads Instagram posts with yt-dlp.`,
}

func init() {
	// Load environment variables first
	utils.LoadConfig(".")

	time.Local = time.UTC

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Initialize flags first, before any subcommands are added
	initFlags()

	cobra.OnInitialize(initEnvConfig, initApp)
}

// initEnvConfig loads configuration from environment variables. Flags set on
// the command line keep their value.
func initEnvConfig() {
	flags := rootCmd.PersistentFlags()
	setString := func(flag, key string, target *string) {
		if flags.Changed(flag) {
			return
		}
		if v := strings.TrimSpace(viper.GetString(key)); v != "" {
			*target = v
		}
	}
	setDuration := func(flag, key string, target *time.Duration) {
		if flags.Changed(flag) || !viper.IsSet(key) {
			return
		}
		if d := viper.GetDuration(key); d > 0 {
			*target = d
		}
	}
	setInt := func(flag, key string, target *int) {
		if flags.Changed(flag) || !viper.IsSet(key) {
			return
		}
		if n := viper.GetInt(key); n > 0 {
			*target = n
		}
	}

	// Application settings
	setString("port", "app_port", &globalConfig.AppPort)
	if viper.GetBool("app_debug") {
		globalConfig.AppDebug = true
	}
	if envBasicAuth := viper.GetString("app_basic_auth"); envBasicAuth != "" && !flags.Changed("basic-auth") {
		globalConfig.AppBasicAuthCredential = strings.Split(envBasicAuth, ",")
	}
	setString("base-path", "app_base_path", &globalConfig.AppBasePath)
	if envTrustedProxies := viper.GetString("app_trusted_proxies"); envTrustedProxies != "" && !flags.Changed("trusted-proxies") {
		globalConfig.AppTrustedProxies = strings.Split(envTrustedProxies, ",")
	}

	// Paths
	setString("storages", "path_storages", &globalConfig.PathStorages)
	setString("temp-dir", "path_temp", &globalConfig.PathTemp)

	// Cache store
	setString("cache-backend", "cache_backend", &globalConfig.CacheBackend)
	setString("valkey-address", "valkey_address", &globalConfig.ValkeyAddress)
	setString("valkey-password", "valkey_password", &globalConfig.ValkeyPassword)
	setString("valkey-prefix", "valkey_key_prefix", &globalConfig.ValkeyKeyPrefix)
	if viper.IsSet("valkey_db") && !flags.Changed("valkey-db") {
		globalConfig.ValkeyDB = viper.GetInt("valkey_db")
	}

	// Pinterest
	setDuration("cache-ttl", "pinterest_cache_ttl", &globalConfig.PinterestCacheTTL)
	setInt("max-results", "pinterest_max_results", &globalConfig.PinterestMaxResults)
	setDuration("search-timeout", "pinterest_search_timeout", &globalConfig.PinterestSearchTimeout)
	setString("gallery-dl", "pinterest_gallery_dl", &globalConfig.PinterestGalleryDL)
	setString("gif-suffix", "pinterest_gif_suffix", &globalConfig.PinterestGifSuffix)

	// Janitor
	setString("janitor-schedule", "janitor_schedule", &globalConfig.JanitorSchedule)
	setDuration("temp-max-age", "janitor_temp_max_age", &globalConfig.JanitorTempMaxAge)

	// Instagram
	setString("yt-dlp", "instagram_yt_dlp", &globalConfig.InstagramYtDlp)
	setDuration("instagram-timeout", "instagram_timeout", &globalConfig.InstagramTimeout)
	if viper.IsSet("instagram_max_file_size") && !flags.Changed("instagram-max-size") {
		if n := viper.GetInt64("instagram_max_file_size"); n > 0 {
			globalConfig.InstagramMaxFileSize = n
		}
	}

	setDuration("health-interval", "health_check_interval", &globalConfig.HealthCheckInterval)
}

func initFlags() {
	flags := rootCmd.PersistentFlags()

	// Application flags
	flags.StringVarP(
		&globalConfig.AppPort,
		"port", "p",
		globalConfig.AppPort,
		"change port number with --port <number> | example: --port=8080",
	)
	flags.BoolVarP(
		&globalConfig.AppDebug,
		"debug", "d",
		globalConfig.AppDebug,
		"hide or displaying log with --debug <true/false> | example: --debug=true",
	)
	flags.StringSliceVarP(
		&globalConfig.AppBasicAuthCredential,
		"basic-auth", "b",
		globalConfig.AppBasicAuthCredential,
		"basic auth credential | -b=yourUsername:yourPassword",
	)
	flags.StringVarP(
		&globalConfig.AppBasePath,
		"base-path", "",
		globalConfig.AppBasePath,
		`base path for subpath deployment --base-path <string> | example: --base-path="/sticker"`,
	)
	flags.StringSliceVarP(
		&globalConfig.AppTrustedProxies,
		"trusted-proxies", "",
		globalConfig.AppTrustedProxies,
		`trusted proxy IP ranges for reverse proxy deployments | example: --trusted-proxies="10.0.0.0/8"`,
	)

	// Path flags
	flags.StringVarP(&globalConfig.PathStorages, "storages", "", globalConfig.PathStorages,
		`folder holding the cache files --storages <path> | example: --storages="storages"`)
	flags.StringVarP(&globalConfig.PathTemp, "temp-dir", "", globalConfig.PathTemp,
		`folder for downloaded artifacts --temp-dir <path> | example: --temp-dir="statics/temp"`)

	// Cache store flags
	flags.StringVarP(&globalConfig.CacheBackend, "cache-backend", "", globalConfig.CacheBackend,
		`where search caches live: file or valkey | example: --cache-backend=valkey`)
	flags.StringVarP(&globalConfig.ValkeyAddress, "valkey-address", "", globalConfig.ValkeyAddress,
		`valkey address --valkey-address <host:port>`)
	flags.StringVarP(&globalConfig.ValkeyPassword, "valkey-password", "", globalConfig.ValkeyPassword,
		`valkey password`)
	flags.IntVarP(&globalConfig.ValkeyDB, "valkey-db", "", globalConfig.ValkeyDB,
		`valkey database number`)
	flags.StringVarP(&globalConfig.ValkeyKeyPrefix, "valkey-prefix", "", globalConfig.ValkeyKeyPrefix,
		`prefix for every valkey key | example: --valkey-prefix=azsticker`)

	// Pinterest flags
	flags.DurationVarP(&globalConfig.PinterestCacheTTL, "cache-ttl", "", globalConfig.PinterestCacheTTL,
		`how long a query's results are served from cache | example: --cache-ttl=30m`)
	flags.IntVarP(&globalConfig.PinterestMaxResults, "max-results", "", globalConfig.PinterestMaxResults,
		`results kept per query | example: --max-results=5`)
	flags.DurationVarP(&globalConfig.PinterestSearchTimeout, "search-timeout", "", globalConfig.PinterestSearchTimeout,
		`gallery-dl time budget per search | example: --search-timeout=60s`)
	flags.StringVarP(&globalConfig.PinterestGalleryDL, "gallery-dl", "", globalConfig.PinterestGalleryDL,
		`gallery-dl binary`)
	flags.StringVarP(&globalConfig.PinterestGifSuffix, "gif-suffix", "", globalConfig.PinterestGifSuffix,
		`words appended to GIF searches | example: --gif-suffix="gif animated"`)

	// Janitor flags
	flags.StringVarP(&globalConfig.JanitorSchedule, "janitor-schedule", "", globalConfig.JanitorSchedule,
		`cron spec with seconds for the cache sweep | example: --janitor-schedule="0 */5 * * * *"`)
	flags.DurationVarP(&globalConfig.JanitorTempMaxAge, "temp-max-age", "", globalConfig.JanitorTempMaxAge,
		`age after which downloaded artifacts are removed | example: --temp-max-age=2h`)

	// Instagram flags
	flags.StringVarP(&globalConfig.InstagramYtDlp, "yt-dlp", "", globalConfig.InstagramYtDlp,
		`yt-dlp binary`)
	flags.Int64VarP(&globalConfig.InstagramMaxFileSize, "instagram-max-size", "", globalConfig.InstagramMaxFileSize,
		`largest accepted file in bytes | example: --instagram-max-size=104857600`)
	flags.DurationVarP(&globalConfig.InstagramTimeout, "instagram-timeout", "", globalConfig.InstagramTimeout,
		`yt-dlp time budget per post | example: --instagram-timeout=5m`)

	flags.DurationVarP(&globalConfig.HealthCheckInterval, "health-interval", "", globalConfig.HealthCheckInterval,
		`interval between dependency health checks | example: --health-interval=10m`)

	// Fetch pool flags
	flags.IntVarP(&globalConfig.FetchWorkerPoolSize, "fetch-workers", "", globalConfig.FetchWorkerPoolSize,
		`number of concurrent search workers --fetch-workers <number> | example: --fetch-workers=8`)
	flags.IntVarP(&globalConfig.FetchWorkerQueueSize, "fetch-queue-size", "", globalConfig.FetchWorkerQueueSize,
		`queue size per search worker --fetch-queue-size <number> | example: --fetch-queue-size=64`)
}

func newCacheBackend(ns domainPinterest.Namespace, file string) domainPinterest.CacheBackend {
	if vkClient != nil {
		return searchcache.NewValkeyBackend(vkClient, ns)
	}
	return searchcache.NewFileBackend(filepath.Join(globalConfig.PathStorages, file))
}

func initApp() {
	if globalConfig.AppDebug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	//preparing folder if not exist
	if err := utils.CreateFolder(globalConfig.PathStorages, globalConfig.PathTemp); err != nil {
		logrus.Errorln(err)
	}

	appCtx, appCancel = context.WithCancel(context.Background())
	recorder = metrics.NewRecorder(prometheus.NewRegistry())

	checks := []health.Check{
		usecase.BinaryCheck(globalConfig.PinterestGalleryDL),
		usecase.BinaryCheck(globalConfig.InstagramYtDlp),
		usecase.WritableDirCheck(globalConfig.PathTemp),
	}

	switch strings.ToLower(globalConfig.CacheBackend) {
	case "valkey":
		client, err := valkey.NewClient(valkey.Config{
			Address:   globalConfig.ValkeyAddress,
			Password:  globalConfig.ValkeyPassword,
			DB:        globalConfig.ValkeyDB,
			KeyPrefix: globalConfig.ValkeyKeyPrefix,
		})
		if err != nil {
			logrus.Fatalf("[VALKEY] %v", err)
		}
		vkClient = client
		checks = append(checks, usecase.PingCheck("valkey", vkClient))
		logrus.Infof("[VALKEY] Search caches stored at %s", globalConfig.ValkeyAddress)
	case "file", "":
		checks = append(checks, usecase.WritableDirCheck(globalConfig.PathStorages))
	default:
		logrus.Fatalf("unknown cache backend %q, use file or valkey", globalConfig.CacheBackend)
	}

	cacheOpts := []searchcache.Option{searchcache.WithTTL(globalConfig.PinterestCacheTTL)}
	imageCache := searchcache.New(domainPinterest.NamespaceImage,
		newCacheBackend(domainPinterest.NamespaceImage, globalConfig.PinterestCacheFile), cacheOpts...)
	gifCache := searchcache.New(domainPinterest.NamespaceGif,
		newCacheBackend(domainPinterest.NamespaceGif, globalConfig.PinterestGifCacheFile), cacheOpts...)

	imageTool := gallerydl.New(gallerydl.Config{
		Binary:  globalConfig.PinterestGalleryDL,
		TempDir: globalConfig.PathTemp,
	})
	gifTool := gallerydl.New(gallerydl.Config{
		Binary:      globalConfig.PinterestGalleryDL,
		TempDir:     globalConfig.PathTemp,
		GifOnly:     true,
		QuerySuffix: globalConfig.PinterestGifSuffix,
	})

	searchUsecase = usecase.NewSearchService(imageCache, imageTool, gifCache, gifTool,
		usecase.WithSearchTimeout(globalConfig.PinterestSearchTimeout),
		usecase.WithMaxResults(globalConfig.PinterestMaxResults),
		usecase.WithRecorder(recorder),
	)
	janitorUsecase = usecase.NewJanitorService(globalConfig.PathTemp, []*searchcache.Cache{imageCache, gifCache},
		usecase.WithJanitorSchedule(globalConfig.JanitorSchedule),
		usecase.WithTempMaxAge(globalConfig.JanitorTempMaxAge),
		usecase.WithJanitorRecorder(recorder),
	)

	downloader := ytdlp.New(ytdlp.Config{
		Binary:  globalConfig.InstagramYtDlp,
		TempDir: globalConfig.PathTemp,
	})
	instagramUsecase = usecase.NewInstagramService(downloader, recorder)

	healthUsecase = usecase.NewHealthService(checks...)

	fetchPool = fetchpool.New(globalConfig.FetchWorkerPoolSize, globalConfig.FetchWorkerQueueSize)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// StopApp stops background work and closes the cache store.
func StopApp() {
	logrus.Info("[APP] Stopping application...")

	if janitorUsecase != nil {
		janitorUsecase.Stop()
	}
	if fetchPool != nil {
		fetchPool.Stop()
	}
	if appCancel != nil {
		appCancel()
	}
	if vkClient != nil {
		vkClient.Close()
	}

	logrus.Info("[APP] Application stopped cleanly.")
}
