package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni/v2"
	"go.etcd.io/bbolt"
	"golang.org/x/time/rate"

	"fknsrs.biz/p/ytmeta/handlers"
	"fknsrs.biz/p/ytmeta/internal/config"
	"fknsrs.biz/p/ytmeta/internal/configreader"
	"fknsrs.biz/p/ytmeta/internal/ctxclock"
	"fknsrs.biz/p/ytmeta/internal/ctxconfig"
	"fknsrs.biz/p/ytmeta/internal/ctxdb"
	"fknsrs.biz/p/ytmeta/internal/ctxhttpclient"
	"fknsrs.biz/p/ytmeta/internal/ctxlogger"
	"fknsrs.biz/p/ytmeta/internal/ctxquota"
	"fknsrs.biz/p/ytmeta/internal/ctxtimer"
	"fknsrs.biz/p/ytmeta/internal/httpcache"
	"fknsrs.biz/p/ytmeta/internal/logrusstackhook"
	"fknsrs.biz/p/ytmeta/internal/quota"
	"fknsrs.biz/p/ytmeta/internal/schema"
	"fknsrs.biz/p/ytmeta/internal/sqlitelogger"
	"fknsrs.biz/p/ytmeta/internal/syncer"
	"fknsrs.biz/p/ytmeta/internal/ytapi"
)

func init() {
	sorm.SetParameterPrefix("?")
}

var cfg = config.Config{
	LogLevel:             logrus.InfoLevel,
	LogDebugLevels:       config.LevelList{logrus.DebugLevel, logrus.TraceLevel},
	LogQueries:           config.LogQueries{Enabled: true, SlowerThan: time.Millisecond * 100},
	LogSORM:              false,
	ApplicationAddr:      ":8080",
	ApplicationDatabase:  "database.db",
	ApplicationCachePath: "cache.db",
	APIPageSize:          ytapi.DefaultPageSize,
	QuotaLogEvery:        quota.DefaultLogEvery,
	SeedChannelsFile:     "seed_channels.csv",
	SeedVideosFile:       "seed_videos.csv",
}

func init() {
	for _, configPath := range []string{"config.toml", "config.yaml", "config.yml"} {
		if st, err := os.Stat(configPath); err == nil && st != nil && !st.IsDir() {
			cfg.Config = configPath
		}
	}
}

type simpleQueryLogger struct {
	logger *logrus.Logger
}

func (s *simpleQueryLogger) LogQuery(query string, args []interface{}) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query start")
}

func (s *simpleQueryLogger) LogQueryAfter(query string, args []interface{}, duration time.Duration, err error) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.duration":   duration,
		"db.error":      err,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query finish")
}

func main() {
	// optional; only fills in environment variables that are not already set
	godotenv.Load()

	if err := configreader.Read(os.Args[0], os.Args[1:], os.Environ(), &cfg); err != nil {
		panic(err)
	}

	ctx := context.Background()
	ctx = ctxconfig.WithConfig(ctx, cfg)
	ctx = ctxclock.WithClock(ctx, ctxclock.NewRealClock())

	logger := logrus.New()

	logger.SetLevel(cfg.LogLevel)
	if len(cfg.LogDebugLevels) > 0 {
		logger.AddHook(logrusstackhook.NewStackHook(cfg.LogDebugLevels, nil))
	}

	logger.WithFields(logrus.Fields{
		"config.config":                 cfg.Config,
		"config.log_level":              cfg.LogLevel,
		"config.log_queries":            cfg.LogQueries,
		"config.application_addr":       cfg.ApplicationAddr,
		"config.application_database":   cfg.ApplicationDatabase,
		"config.application_cache_path": cfg.ApplicationCachePath,
		"config.api_page_size":          cfg.APIPageSize,
		"config.quota_budget":           cfg.Budget(),
		"config.channel_refresh":        cfg.ChannelMaxAge(),
		"config.video_refresh_tiers":    cfg.VideoRefreshTiers,
		"config.seed_reload_interval":   cfg.SeedReloadInterval(),
		"config.seed_channels_file":     cfg.SeedChannelsFile,
		"config.seed_videos_file":       cfg.SeedVideosFile,
	}).Info("program starting")

	if cfg.LogSORM {
		sorm.SetQueryLogger(&simpleQueryLogger{logger})
	}

	ctx = ctxlogger.WithLogger(ctx, logger)

	dbDriver := "sqlite3"

	if !cfg.LogQueries.IsZero() {
		dbDriver = "sqlite3:logged"

		sql.Register(dbDriver, sqlitelogger.New(
			dbDriver,
			&sqlite3.SQLiteDriver{},
			&sqlitelogger.BasicFilter{
				LogSlowerThan: cfg.LogQueries.SlowerThan,
				IgnorePackageStackFrames: []string{
					// standard library
					"database/sql",
					"net/http",
					"runtime",
					// libraries
					"github.com/gorilla/mux",
					"github.com/shogo82148/go-sql-proxy",
					"github.com/urfave/negroni/v2",
					// middleware
					"fknsrs.biz/p/ytmeta/internal/ctxclock",
					"fknsrs.biz/p/ytmeta/internal/ctxdb",
					"fknsrs.biz/p/ytmeta/internal/ctxlogger",
					"fknsrs.biz/p/ytmeta/internal/ctxtimer",
					"fknsrs.biz/p/ytmeta/internal/sqlitelogger",
					// main
					"main",
				},
			},
		))
	}

	db, err := sql.Open(dbDriver, cfg.ApplicationDatabase)
	if err != nil {
		logger.WithError(err).Error("could not open database")
		os.Exit(1)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error("could not connect to database")
		os.Exit(1)
	}

	if err := schema.Migrate(ctx, db); err != nil {
		logger.WithError(err).Error("could not migrate database schema")
		os.Exit(1)
	}

	ctx = ctxdb.WithDB(ctx, db)

	cacheDB, err := bbolt.Open(cfg.ApplicationCachePath, 0600, nil)
	if err != nil {
		logger.WithError(err).Error("could not open http cache")
		os.Exit(1)
	}
	defer cacheDB.Close()

	ctx = ctxhttpclient.WithHTTPClient(ctx, &http.Client{
		Transport: httpcache.NewTransport(nil, httpcache.NewBBoltStorage(cacheDB), time.Minute),
	})

	// exhaustion is fatal by design: flush, release the store, and stop
	// before the provider-imposed limit is silently exceeded
	governor := quota.NewGovernor(cfg.Budget(), cfg.QuotaLogEvery, func() {
		cacheDB.Close()
		db.Close()
		os.Exit(0)
	})

	ctx = ctxquota.WithGovernor(ctx, governor)

	clientOptions := []ytapi.Option{ytapi.WithPageSize(cfg.APIPageSize)}
	if cfg.APIBaseURL != "" {
		clientOptions = append(clientOptions, ytapi.WithBaseURL(cfg.APIBaseURL))
	}
	if cfg.APIRequestsPerSecond > 0 {
		clientOptions = append(clientOptions, ytapi.WithRateLimiter(
			rate.NewLimiter(rate.Limit(cfg.APIRequestsPerSecond), cfg.APIRequestsPerSecond),
		))
	}

	runner := &syncer.Runner{
		Client:             ytapi.NewClient(cfg.APIKey, clientOptions...),
		ChannelMaxAge:      cfg.ChannelMaxAge(),
		Tiers:              cfg.VideoRefreshTiers,
		SeedReloadInterval: cfg.SeedReloadInterval(),
		SeedChannelsFile:   cfg.SeedChannelsFile,
		SeedVideosFile:     cfg.SeedVideosFile,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	workers := []worker{
		{
			name: "sync",
			run:  runner.Run,
		},
		{
			name: "status",
			run: func(ctx context.Context) error {
				return runStatusWorker(ctx, cfg.ApplicationAddr)
			},
		},
	}

	if err := runAllWorkers(ctx, workers); err != nil {
		logger.WithError(err).Error("worker failed")
		os.Exit(1)
	}

	logger.Info("program stopping")
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

func runAllWorkers(ctx context.Context, workers []worker) error {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var wg sync.WaitGroup
	errs := make([]error, len(workers))

	for id, w := range workers {
		wg.Add(1)

		go func(id int, w worker) {
			defer wg.Done()

			l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
				"worker.id":   id + 1,
				"worker.name": w.name,
			})

			if err := w.run(ctxlogger.WithLogger(ctx, l)); err != nil {
				l.WithError(err).Error("worker failed")

				errs[id] = fmt.Errorf("worker %d (%s) failed: %w", id+1, w.name, err)

				cancel(errs[id])
			} else {
				l.Info("worker finished")
			}
		}(id, w)
	}

	wg.Wait()

	return errors.Join(errs...)
}

func runStatusWorker(ctx context.Context, addr string) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{
		"args.addr": addr,
	}).Info("running status worker")

	m := mux.NewRouter()

	m.Methods(http.MethodGet).Path("/").HandlerFunc(handlers.Index)
	m.Methods(http.MethodGet).Path("/channels").HandlerFunc(handlers.Channels)
	m.Methods(http.MethodGet).Path("/channels/{id}/videos").HandlerFunc(handlers.ChannelVideos)
	m.Methods(http.MethodGet).Path("/videos").HandlerFunc(handlers.Videos)
	m.Methods(http.MethodGet).Path("/videos/{id}/comments").HandlerFunc(handlers.VideoComments)

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseFunc(ctxlogger.Register(l))
	n.UseFunc(ctxtimer.Register(nil))
	n.UseFunc(ctxclock.Register(ctxclock.GetClock(ctx)))
	n.UseFunc(ctxconfig.Register(ctxconfig.GetConfig(ctx)))
	n.UseFunc(ctxdb.Register(ctxdb.GetDB(ctx)))
	n.UseFunc(ctxquota.Register(ctxquota.GetGovernor(ctx)))
	n.UseFunc(ctxtimer.AddLoggerHooks())
	n.UseFunc(ctxclock.AddLoggerHooks())
	n.UseFunc(ctxlogger.Log())
	n.UseHandler(m)

	s := &http.Server{
		Addr:        addr,
		Handler:     n,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		l.Info("starting server")
		errs <- s.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if err == http.ErrServerClosed {
			return nil
		}

		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}
