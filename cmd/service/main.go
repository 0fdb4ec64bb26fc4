package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/cache"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/importer"
	"github.com/antonio-alexander/go-attendance/internal/logic"
	"github.com/antonio-alexander/go-attendance/internal/service"
	"github.com/antonio-alexander/go-attendance/internal/sql"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/antonio-alexander/go-stash/memory"
	"github.com/antonio-alexander/go-stash/redis"
	"github.com/pkg/errors"
)

var (
	Version   string
	GitCommit string
	GitBranch string
)

func init() {
	if Version = data.Version; Version == "" {
		Version = "<no_version_provided>"
	}
	if GitCommit = data.GitCommit; GitCommit == "" {
		GitCommit = "<no_git_commit>"
	}
	if GitBranch = data.GitBranch; GitBranch == "" {
		GitBranch = "<no_git_branch>"
	}
}

func main() {
	pwd, _ := os.Getwd()
	args := os.Args[1:]
	envs, err := internal.LoadEnvs(os.Environ())
	if err != nil {
		os.Stderr.WriteString(err.Error())
		os.Exit(1)
	}
	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal, syscall.SIGINT, syscall.SIGTERM)
	if err := Main(pwd, args, envs, osSignal); err != nil {
		os.Stderr.WriteString(err.Error())
		os.Exit(1)
	}
}

func createStore(envs map[string]string, parameters ...any) (interface {
	internal.Configurer
	internal.Opener
	internal.Clearer
	sql.Sql
}, error) {
	switch storeType := envs["STORE_TYPE"]; storeType {
	default:
		return nil, errors.Errorf("unsupported store type: %s", storeType)
	case "", "mysql":
		return sql.NewMySql(parameters...), nil
	case "gorm-postgres":
		return sql.NewGorm(append(parameters, sql.DialectPostgres)...), nil
	case "gorm-mysql":
		return sql.NewGorm(append(parameters, sql.DialectMySql)...), nil
	case "gorm-sqlite":
		return sql.NewGorm(append(parameters, sql.DialectSqlite)...), nil
	case "memory":
		return sql.NewMemory(parameters...), nil
	}
}

func createCache(envs map[string]string, parameters ...any) interface {
	internal.Configurer
	internal.Opener
	internal.Clearer
	cache.Cache
} {
	switch envs["CACHE_TYPE"] {
	default:
		return nil
	case "memory":
		return cache.NewMemory(parameters...)
	case "redis":
		return cache.NewRedis(parameters...)
	case "stash-memory":
		return cache.NewStash(append(parameters, memory.New())...)
	case "stash-redis":
		return cache.NewStash(append(parameters, redis.New())...)
	}
}

func Main(pwd string, args []string, envs map[string]string, osSignal chan os.Signal) error {
	var wg sync.WaitGroup

	//create context
	ctx, cancel := internal.LaunchContext(&wg, osSignal)
	defer cancel()

	// create utilities
	logger := utilities.NewLogger()
	if err := logger.Configure(envs); err != nil {
		return err
	}
	defer logger.Close(context.Background())
	timers := utilities.NewTimers()
	counter := utilities.NewCounter()

	//print version info
	logger.Info(ctx, "server: go-attendance v%s (%s) built from: %s",
		Version, GitCommit, GitBranch)

	//create store, configure and open
	store, err := createStore(envs, logger)
	if err != nil {
		return err
	}
	if err := store.Configure(envs); err != nil {
		return err
	}
	if err := store.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Error(context.Background(), "error while closing store: %s", err)
		}
	}()

	// create cache
	cache := createCache(envs, logger)
	if cache != nil {
		if err := cache.Configure(envs); err != nil {
			return err
		}
		if err := cache.Open(ctx); err != nil {
			return err
		}
		defer func() {
			if err := cache.Close(context.Background()); err != nil {
				logger.Error(context.Background(), "error while closing cache: %s", err)
			}
		}()
	}

	//create importer, configure and open
	importer := importer.NewImporter(logger)
	if err := importer.Configure(envs); err != nil {
		return err
	}
	if err := importer.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := importer.Close(context.Background()); err != nil {
			logger.Error(context.Background(), "error while closing importer: %s", err)
		}
	}()

	//create logic, configure and open
	parameters := []any{store, importer, counter, logger}
	if cache != nil {
		parameters = append(parameters, cache)
	}
	logic := logic.NewLogic(parameters...)
	if err := logic.Configure(envs); err != nil {
		return err
	}
	if err := logic.Open(ctx); err != nil {
		return err
	}
	defer func() {
		if err := logic.Close(context.Background()); err != nil {
			logger.Error(context.Background(), "error while closing logic: %s", err)
		}
	}()

	//create service, configure and open
	parameters = []any{logic, logger, counter, timers}
	if cache != nil {
		parameters = append(parameters, cache)
	}
	service := service.NewService(parameters...)
	if err := service.Configure(envs); err != nil {
		return err
	}
	if err := service.Open(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	wg.Wait()
	if err := service.Close(context.Background()); err != nil {
		logger.Error(context.Background(), "error while closing service: %s", err)
	}
	return nil
}
