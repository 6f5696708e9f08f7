package bootstrap

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/forbearing/crudgate/auth"
	"github.com/forbearing/crudgate/cache"
	"github.com/forbearing/crudgate/config"
	"github.com/forbearing/crudgate/crud"
	"github.com/forbearing/crudgate/dialect"
	"github.com/forbearing/crudgate/logger"
	pkgzap "github.com/forbearing/crudgate/logger/zap"
	"github.com/forbearing/crudgate/metrics"
	"github.com/forbearing/crudgate/middleware"
	"github.com/forbearing/crudgate/ratelimit"
	"github.com/forbearing/crudgate/rbac"
	"github.com/forbearing/crudgate/router"
	"github.com/forbearing/crudgate/schema"
	"github.com/forbearing/crudgate/validate"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	initialized bool
	mu          sync.Mutex
)

// components holds everything Init wires up, threaded into router.Init
// once every collaborator is constructed. db is kept separately since
// it is an implementation detail router.Dependencies has no need of.
var (
	components router.Dependencies
	db         *gorm.DB
)

// Bootstrap constructs every component in dependency order and mounts
// the single dispatch route, mirroring the teacher's two-phase
// Register/Init convention: config and logging first, everything that
// depends on them second.
func Bootstrap() error {
	_, _ = maxprocs.Set(maxprocs.Logger(zap.S().Infof))

	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil
	}

	Register(
		config.Init,
		initLogger,
		metrics.Init,
	)
	if err := Init(); err != nil {
		return err
	}

	Register(
		initDatabase,
		initAuth,
		initRBAC,
		initCache,
		initRateLimit,
		initRouter,
	)
	if err := Init(); err != nil {
		return err
	}

	initialized = true
	return nil
}

func initLogger() error {
	l, err := pkgzap.Init(config.App.Logging)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(l)
	RegisterCleanup(pkgzap.Sync)
	return nil
}

func initDatabase() error {
	conn, dialt, err := dialect.Connect(config.App)
	if err != nil {
		return err
	}
	db = conn
	sqlDB, err := db.DB()
	if err == nil {
		RegisterCleanup(func() {
			if cerr := sqlDB.Close(); cerr != nil {
				zap.L().Error("db close failed", zap.Error(cerr))
			}
		})
	}

	inspect := schema.New(dialt, db)
	vcfg := validate.DefaultConfig()
	engine := crud.New(db, inspect, vcfg)

	components.Engine = engine
	components.Inspect = inspect
	components.Validate = vcfg
	return nil
}

func initAuth() error {
	jwtIssuer := auth.NewJWTIssuer(
		config.App.Auth.JWTSecret,
		config.App.Auth.JWTExpiration,
		config.App.Auth.JWTIssuer,
		config.App.Auth.JWTAudience,
	)

	var lookup auth.UserLookup
	if config.App.Auth.UseDatabaseAuth {
		lookup = auth.NewGormUserLookup(db, config.App.Auth.UsersTable)
	}

	components.Auth = auth.New(config.App.Auth, lookup, jwtIssuer)
	return nil
}

func initRBAC() error {
	components.RBAC = rbac.New(config.App.Roles.Rules)
	return nil
}

func initCache() error {
	if !config.App.Cache.Enable {
		return nil
	}
	mgr, err := cache.NewFromConfig(config.App.Cache)
	if err != nil {
		return err
	}
	RegisterCleanup(func() {
		if cerr := mgr.Close(); cerr != nil {
			zap.L().Error("cache close failed", zap.Error(cerr))
		}
	})
	components.Cache = mgr
	return nil
}

func initRateLimit() error {
	if !config.App.RateLimit.Enable {
		return nil
	}
	limiter, err := ratelimit.NewFromConfig(config.App.RateLimit)
	if err != nil {
		return err
	}
	RegisterCleanup(func() {
		if cerr := limiter.Close(); cerr != nil {
			zap.L().Error("rate limiter close failed", zap.Error(cerr))
		}
	})
	components.Limiter = limiter
	return nil
}

func initRouter() error {
	components.Config = config.App
	components.Monitor = metrics.NewMonitor(config.App.Monitoring, zap.L())
	components.ReqLog = logger.NewRequestLogger(zap.L(), config.App.Logging)

	middleware.Register(
		middleware.RequestID(),
		middleware.CORS(),
		middleware.Recovery(zap.L(), false),
		middleware.Timeout(config.App.Server.RequestTimeout),
		middleware.RequestSizeLimit(config.App.Server.MaxBodyBytes),
		middleware.SecurityHeaders(nil),
	)

	engine, err := router.Init(&components)
	if err != nil {
		return err
	}
	_ = engine
	RegisterCleanup(func() { router.Stop(config.App.Server.ShutdownGrace) })
	return nil
}

// Run starts the HTTP server and blocks until a shutdown signal or a
// fatal error from a registered background task.
func Run() error {
	defer Cleanup()

	RegisterGo(func() error {
		return router.Run(config.App.Server.Listen)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	errCh := make(chan error, 1)

	go func() {
		errCh <- Go()
	}()
	select {
	case sig := <-sigCh:
		zap.S().Infow("canceled by signal", "signal", sig)
		return nil
	case err := <-errCh:
		return err
	}
}
