package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

type App struct {
	logger         *zap.Logger
	config         *Config
	server         *http.Server
	closers        []func() error
	cleanups       []func()
	queueConsumers []func(context.Context) error
}

// storageSet gathers the primary storage with its optional change queue and consumers.
type storageSet struct {
	storage   BookStorage
	queue     Queuer
	consumers []func(context.Context) error
	closers   []func() error
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	clock := NewClock(config.IsProduction)
	logWriter := NewRSyncWriter(config, clock)
	logger, flusher := SetupLogging(config, logWriter, NewTickClock(clock))
	cleanups := []func(){
		func() {
			if err := flusher(); err != nil {
				fmt.Println("error during logs flushing: ", err)
			}
		},
		func() {
			if err := logWriter.Close(); err != nil {
				fmt.Println("error during closing of log file: ", err)
			}
		},
	}

	stores, err := setupStorage(context.Background(), logger, config)
	if err != nil {
		logger.Error("failed to setup storage", zap.Error(err))
		for _, f := range cleanups {
			f()
		}
		return nil, err
	}

	bookService := NewBookService(logger, config, NewISBNGenerator(config.Catalogue.ISBNPrefix), stores.storage, stores.queue)
	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
			backend:   config.Storage.Backend,
		},
		clock,
		NewIDsHandler(),
		bookService,
	)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	middlewaresPublic, middlewaresOps := apiService.MiddlewaresStacks()
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public: middlewaresPublic.Chain,
			ops:    middlewaresOps.Chain,
		},
	)
	// Wrap the router with the default http timeout handler.
	routerWithTimeout := http.TimeoutHandler(
		router,
		config.Server.RequestTimeout,
		"Timeout. Processing taking too long. Please reach out to support.")

	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        routerWithTimeout,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
		ConnContext:    SaveConnInContext,
	}

	return &App{
		logger:         logger,
		config:         config,
		server:         srv,
		closers:        stores.closers,
		cleanups:       cleanups,
		queueConsumers: stores.consumers,
	}, nil
}

// setupStorage connects the configured backend. With mirroring enabled every
// change is queued on redis and replayed into the bolt database.
func setupStorage(ctx context.Context, logger *zap.Logger, config *Config) (*storageSet, error) {
	set := &storageSet{}
	switch config.Storage.Backend {
	case BackendMemory:
		set.storage = NewMemoryBookStorage(logger)

	case BackendBolt:
		db, err := GetBoltDBClient(config)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to boltDB server: %s", err)
		}
		set.storage = NewBoltBookStorage(logger, &config.BoltDB, db)
		set.closers = append(set.closers, db.Close)

	case BackendRedis:
		client, err := GetRedisClient(config)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis server: %s", err)
		}
		set.storage = NewRedisBookStorage(logger, client)
		set.closers = append(set.closers, client.Close)
		if config.Storage.Mirror {
			if err = set.mirrorInto(logger, config, client); err != nil {
				set.close(logger)
				return nil, err
			}
		}

	case BackendPostgres:
		pool, err := GetPostgresPool(ctx, config)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres server: %s", err)
		}
		set.storage = NewPostgresBookStorage(logger, &config.Postgres, pool)
		set.closers = append(set.closers, func() error { pool.Close(); return nil })

	default:
		return nil, fmt.Errorf("unsupported storage backend %q", config.Storage.Backend)
	}

	logger.Info("storage ready", zap.String("storage.backend", config.Storage.Backend), zap.Bool("storage.mirror", config.Storage.Mirror))
	return set, nil
}

func (set *storageSet) mirrorInto(logger *zap.Logger, config *Config, client *redis.Client) error {
	db, err := GetBoltDBClient(config)
	if err != nil {
		return fmt.Errorf("failed to connect to boltDB server: %s", err)
	}
	set.closers = append(set.closers, db.Close)
	set.queue = NewRedisQueue(client)
	consumer := NewMirrorConsumer(logger, set.queue, NewBoltBookStorage(logger, &config.BoltDB, db))
	set.consumers = append(set.consumers, func(ctx context.Context) error {
		return consumer.Consume(ctx)
	})
	return nil
}

func (set *storageSet) close(logger *zap.Logger) {
	for i := len(set.closers) - 1; i >= 0; i-- {
		if err := set.closers[i](); err != nil {
			logger.Error("failed to close storage", zap.Error(err))
		}
	}
}

// Run starts the api web server and a goroutine which is responsible to stop it.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.run(nCtx)
}

// run serves until ctx is done or a goroutine fails. Storages are closed
// only once the server and every consumer have returned.
func (app *App) run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(app.ConsumeQueues(gCtx, g))
	g.Go(app.Serve())
	g.Go(app.Stop(ctx, gCtx))

	err := g.Wait()
	app.closeStorages()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// closeStorages releases the storages in reverse order of opening.
func (app *App) closeStorages() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Error("failed to close storage", zap.Error(err))
		}
	}
}

// Clean calls all registered cleanups functions.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		f()
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the server graceful shutdown.
// A brutal shutdown follows when the graceful one did not complete. It always
// returns nil so the errgroup only reports the `Serve` result.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("api server stopping. reason: requested to stop")
		} else {
			app.logger.Info("api server stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()
		err := app.server.Shutdown(sCtx)
		switch {
		case err == nil, errors.Is(err, http.ErrServerClosed):
			app.logger.Info("api server graceful shutdown succeeded")
		case errors.Is(err, context.DeadlineExceeded):
			app.logger.Info("api server graceful shutdown timed out")
		default:
			app.logger.Info("api server graceful shutdown failed", zap.Error(err))
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Info("api server going to force shutdown", zap.Error(app.server.Close()))
		}

		return nil
	}
}

// ConsumeQueues runs all queue consumers into separate controlled goroutines.
func (app *App) ConsumeQueues(gCtx context.Context, g *errgroup.Group) func() error {
	return func() error {
		for _, consume := range app.queueConsumers {
			consume := consume
			g.Go(func() error {
				return consume(gCtx)
			})
		}
		return nil
	}
}
