package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	ginGzip "github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	cachecontrol "go.eigsys.de/gin-cachecontrol/v2"
	"go.uber.org/zap"

	"biowordle/internal/dictionary"
	"biowordle/internal/game"
	"biowordle/internal/store"
	"biowordle/internal/words"
)

// App holds everything the handlers share.
type App struct {
	Words      game.WordSource
	Library    game.Library
	Dictionary game.Dictionary
	KV         game.KeyValue
	Scores     game.ScoreSink
	Guesses    game.GuessLog
	Reveal     game.Reveal
	Now        func() time.Time

	// storeCleanup drops saved games older than maxAge. Nil for stores that
	// do not need it.
	storeCleanup func(ctx context.Context, maxAge time.Duration) (int, error)

	WordsLoaded    int
	AcceptedWords  int
	StoreName      string
	SessionMutex   sync.RWMutex
	GameSessions   map[string]*playerSession
	LimiterMutex   sync.Mutex
	LimiterMap     map[string]*clientLimiter
	StartTime      time.Time
	IsProduction   bool
	CookieMaxAge   time.Duration
	SessionTimeout time.Duration
	StaticCacheAge time.Duration
	RateLimitRPS   int
	RateLimitBurst int
}

func main() {
	_ = godotenv.Load()

	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

// run loads the word data, opens the store and serves until ctx is done or
// the process is signalled.
func run(ctx context.Context, cfg *Config) error {
	l, err := newLogger(cfg.production, cfg.verbose)
	if err != nil {
		return err
	}
	logger = l
	defer func() { _ = logger.Sync() }()

	if cfg.production {
		gin.SetMode(gin.ReleaseMode)
	}
	logInfo("Starting BioWordle in %s mode", map[bool]string{true: "production", false: "development"}[cfg.production])

	app, closeStore, err := newAppFromConfig(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go app.janitor(ctx, time.Minute)

	return startServer(ctx, app.setupRouter(), cfg.addr())
}

// newAppFromConfig wires the word schedule, store and dictionary named by
// cfg. The returned func releases the store.
func newAppFromConfig(cfg *Config) (*App, func(), error) {
	entries, err := words.Load(cfg.wordsPath)
	if err != nil {
		return nil, nil, err
	}
	var accepted []string
	if cfg.acceptedPath != "" {
		accepted, err = words.LoadAccepted(cfg.acceptedPath)
		if err != nil {
			return nil, nil, err
		}
	}
	schedule := words.New(entries, accepted, logger.Named("words"))
	logInfo("Loaded %d scheduled words and %d accepted words", schedule.Len(), schedule.AcceptedLen())

	app := newApp(schedule)
	app.StoreName = cfg.store
	app.IsProduction = cfg.production
	app.CookieMaxAge = cfg.cookieMaxAge
	app.SessionTimeout = cfg.sessionTimeout
	app.StaticCacheAge = cfg.staticCacheAge
	app.RateLimitRPS = cfg.rateLimitRPS
	app.RateLimitBurst = cfg.rateLimitBurst

	if cfg.dictionaryURL != "" {
		app.Dictionary = dictionary.New(dictionary.Config{
			BaseURL:   cfg.dictionaryURL,
			Timeout:   cfg.dictionaryTimeout,
			CacheSize: cfg.dictionaryCache,
		}, nil, logger.Named("dictionary"))
	} else {
		logWarn("No dictionary configured, only listed words will be accepted")
	}

	closeStore := func() {}
	switch cfg.store {
	case StoreMemory:
		app.KV = store.NewMemory()
	case StoreFile:
		if !dirExists(cfg.dataDir) {
			logInfo("Creating session directory %s", cfg.dataDir)
		}
		fkv, err := store.NewFileKV(cfg.dataDir, logger.Named("store"))
		if err != nil {
			return nil, nil, err
		}
		app.KV = fkv
		app.storeCleanup = func(_ context.Context, maxAge time.Duration) (int, error) {
			return fkv.Cleanup(maxAge)
		}
	case StoreSQLite:
		db, err := store.OpenSQLite(cfg.dbPath)
		if err != nil {
			return nil, nil, err
		}
		app.KV = db
		app.Scores = db
		app.Guesses = db
		app.storeCleanup = db.Cleanup
		closeStore = func() {
			if err := db.Close(); err != nil {
				logWarn("Failed to close database: %v", err)
			}
		}
	}
	logInfo("Saving games to %s store", cfg.store)
	return app, closeStore, nil
}

// newApp returns an App with defaults for everything but the word source.
func newApp(schedule *words.Schedule) *App {
	return &App{
		Words:          schedule,
		Library:        schedule,
		KV:             store.NewMemory(),
		Reveal:         game.NewReveal(),
		Now:            time.Now,
		WordsLoaded:    schedule.Len(),
		AcceptedWords:  schedule.AcceptedLen(),
		StoreName:      StoreMemory,
		GameSessions:   make(map[string]*playerSession),
		LimiterMap:     make(map[string]*clientLimiter),
		StartTime:      time.Now(),
		CookieMaxAge:   24 * time.Hour,
		SessionTimeout: 2 * time.Hour,
		StaticCacheAge: 5 * time.Minute,
		RateLimitRPS:   5,
		RateLimitBurst: 10,
	}
}

func (app *App) setupRouter() *gin.Engine {
	router := gin.Default()

	router.Use(requestIDMiddleware())
	router.Use(ginGzip.Gzip(ginGzip.DefaultCompression,
		ginGzip.WithExcludedExtensions([]string{".svg", ".ico", ".png", ".jpg", ".jpeg", ".gif"}),
		ginGzip.WithExcludedPaths([]string{RouteReveal})))

	if err := router.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logWarn("Failed to set trusted proxies: %v", err)
	}

	router.Use(func(c *gin.Context) {
		app.applyCacheHeaders(c)
	})

	limited := app.rateLimitMiddleware()

	router.GET(RouteHome, app.gameStateHandler)
	router.GET(RouteGameState, app.gameStateHandler)
	router.POST(RouteLetter, limited, app.letterHandler)
	router.POST(RouteDelete, limited, app.deleteHandler)
	router.POST(RouteSubmit, limited, app.submitHandler)
	router.POST(RouteGuess, limited, app.guessHandler)
	router.GET(RouteReveal, limited, app.revealHandler)
	router.GET(RouteShare, limited, app.shareHandler)
	router.GET(RouteHealthz, app.healthzHandler)

	return router
}

func startServer(ctx context.Context, router *gin.Engine, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigint)
		select {
		case <-sigint:
			logInfo("Shutdown signal received, shutting down server gracefully...")
		case <-ctx.Done():
			logInfo("Context cancelled, shutting down server...")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logWarn("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	logInfo("Server starting on http://%s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-idleConnsClosed
	logInfo("Server shutdown complete")
	return nil
}

// applyCacheHeaders keeps game responses out of caches. In production the
// share image may be cached privately since it only changes once per day.
func (app *App) applyCacheHeaders(c *gin.Context) {
	if app.IsProduction && strings.HasPrefix(c.Request.URL.Path, RouteShare) {
		cachecontrol.New(cachecontrol.Config{
			Private: true,
			MaxAge:  cachecontrol.Duration(app.StaticCacheAge),
		})(c)
		c.Header("Vary", "Cookie")
		return
	}
	cachecontrol.New(cachecontrol.Config{
		NoStore:        true,
		NoCache:        true,
		MustRevalidate: true,
	})(c)
}

// janitor prunes idle sessions and old saved games every interval until ctx
// is done.
func (app *App) janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if n := app.cleanupOldSessions(); n > 0 {
			logInfo("Dropped %d idle session%s", n, plural(n))
		}
		app.pruneLimiters(app.SessionTimeout)
		if app.storeCleanup == nil {
			continue
		}
		n, err := app.storeCleanup(ctx, app.CookieMaxAge)
		if err != nil {
			logWarn("Store cleanup failed: %v", err)
			continue
		}
		if n > 0 {
			logInfo("Removed %d saved game%s older than %v", n, plural(n), app.CookieMaxAge)
		}
	}
}

// sessionLogger tags engine logs with the player's session.
func sessionLogger(sessionID string) *zap.Logger {
	return logger.With(zap.String("session_id", sessionID))
}
