package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/cache"
	"github.com/antonio-alexander/go-attendance/internal/client"
	"github.com/antonio-alexander/go-attendance/internal/data"
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

type scenarioConfig struct {
	Scenario       string        `env:"SCENARIO"`
	Clients        int           `env:"N_CLIENTS, default=2"`
	ReadInterval   time.Duration `env:"SCENARIO_READ_INTERVAL, default=1s"`
	UpdateInterval time.Duration `env:"SCENARIO_UPDATE_INTERVAL, default=2s"`
	Duration       time.Duration `env:"SCENARIO_DURATION, default=10s"`
	SeedEmployees  int           `env:"SCENARIO_SEED_EMPLOYEES, default=25"`
}

func main() {
	args := os.Args[1:]
	envs, err := internal.LoadEnvs(os.Environ())
	if err != nil {
		os.Stderr.WriteString(err.Error())
		os.Exit(1)
	}
	osSignal := make(chan os.Signal, 1)
	signal.Notify(osSignal, syscall.SIGINT, syscall.SIGTERM)
	if err := Main(args, envs, osSignal); err != nil {
		os.Stderr.WriteString(err.Error())
		os.Exit(1)
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

// determine hit/miss ratio with concurrent reads when
// invalidating the cache, possibly overall benchmark too
func scenarioStampedingHerd(ctx context.Context, config scenarioConfig, logger utilities.Logger,
	clients ...client.Client) error {
	const correlationId string = "scenario_stampeding_herd"
	const minClients int = 2

	var wg sync.WaitGroup

	if len(clients) < minClients {
		return errors.New("not enough clients provided")
	}

	//generate context
	ctx = internal.CtxWithCorrelationId(ctx, correlationId)

	// create employee using the first client
	name := "Herd " + internal.GenerateId()[:8]
	status := data.StatusPresent
	employeeCreated, err := clients[0].EmployeeCreate(ctx, data.EmployeePartial{
		Name:             &name,
		AttendanceStatus: &status,
	})
	if err != nil {
		return err
	}
	id := employeeCreated.Id
	defer func(id int64) {
		_ = clients[0].EmployeeDelete(ctx, id)
		logger.Info(ctx, "deleted employee: %d", id)
	}(id)
	logger.Info(ctx, "created employee: %d", id)

	//generate start/stop channels
	start, stop := make(chan struct{}), make(chan struct{})

	//create writer go routine, it flips the attendance status
	wg.Add(1)
	go func(ctx context.Context, client client.Client) {
		defer wg.Done()
		ctx = internal.CtxWithCorrelationId(ctx, correlationId)
		statuses := []string{data.StatusLate, data.StatusPresent}
		updateEmployeeFx := func(ctx context.Context, status string) error {
			_, result, err := client.EmployeeUpdate(ctx, id,
				data.EmployeePartial{AttendanceStatus: &status})
			if err != nil {
				return err
			}
			return result.Err()
		}
		tUpdate := time.NewTicker(config.UpdateInterval)
		defer tUpdate.Stop()
		<-start
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			case <-tUpdate.C:
				if err := updateEmployeeFx(ctx, statuses[i%len(statuses)]); err != nil {
					logger.Error(ctx, "error while updating employee: %s", err)
				}
			}
		}
	}(ctx, clients[0])

	//create reader go routines
	for i := 1; i < len(clients); i++ {
		wg.Add(1)
		go func(ctx context.Context, clientNumber int, client client.Client) {
			defer wg.Done()

			correlationId := fmt.Sprintf("scenario_stampeding_herd_%d", clientNumber)
			ctx = internal.CtxWithCorrelationId(ctx, correlationId)
			readEmployeeFx := func(ctx context.Context) error {
				if _, err := client.EmployeeRead(ctx, id); err != nil {
					return err
				}
				return nil
			}
			tRead := time.NewTicker(config.ReadInterval)
			defer tRead.Stop()
			<-start
			for {
				select {
				case <-stop:
					return
				case <-tRead.C:
					if err := readEmployeeFx(ctx); err != nil {
						logger.Error(ctx, "error while reading employee: %s", err)
					}
				}
			}
		}(ctx, i, clients[i])
	}

	//clear cache counters and start the go routines
	if err := clients[0].CacheClear(ctx); err != nil {
		return err
	}
	if err := clients[0].CacheCountersClear(ctx); err != nil {
		return err
	}
	close(start)

	//allow go routines to run
	select {
	case <-ctx.Done():
	case <-time.After(config.Duration):
	}

	//stop go routines
	close(stop)
	wg.Wait()

	//use initial client to get hit/miss ratios from server
	cacheCounters, err := clients[0].CacheCountersRead(ctx)
	if err != nil {
		return err
	}
	hit := cacheCounters.CounterHits[fmt.Sprintf("employee_%d", id)]
	miss := cacheCounters.CounterMisses[fmt.Sprintf("employee_%d", id)]
	total := hit + miss
	if total == 0 {
		logger.Info(ctx, "no cache reads were counted")
		return nil
	}
	logger.Info(ctx, "cache hit miss ratio (%d/%d): %0.2f%%",
		hit, total, float64(hit)/float64(total)*100)
	return nil
}

// scenarioSeed creates employees spread over today and yesterday with
// random statuses, then logs the dashboard.
func scenarioSeed(ctx context.Context, config scenarioConfig, logger utilities.Logger,
	client client.Client) error {
	const correlationId string = "scenario_seed"

	ctx = internal.CtxWithCorrelationId(ctx, correlationId)
	statuses := []string{data.StatusPresent, data.StatusLate, data.StatusAbsent}
	departments := []string{"Engineering", "Finance", "Operations", "Sales"}
	now := time.Now()
	for i := range config.SeedEmployees {
		name := fmt.Sprintf("Employee %03d", i+1)
		email := fmt.Sprintf("employee%03d@example.com", i+1)
		department := departments[rand.IntN(len(departments))]
		status := statuses[rand.IntN(len(statuses))]
		clockInTime := now.Add(-time.Duration(rand.IntN(36)) * time.Hour).Unix()
		employee, err := client.EmployeeCreate(ctx, data.EmployeePartial{
			Name:             &name,
			Email:            &email,
			Department:       &department,
			ClockInTime:      &clockInTime,
			AttendanceStatus: &status,
		})
		if err != nil {
			return err
		}
		logger.Debug(ctx, "created employee: %d", employee.Id)
	}
	attendance, err := client.Dashboard(ctx, time.Time{}, "")
	if err != nil {
		return err
	}
	dashboard := attendance.Dashboard
	logger.Info(ctx, "dashboard (%s, %s): total %d, present %d, late %d, absent %d",
		dashboard.ReferenceDate, dashboard.AbsentPolicy, dashboard.Total,
		dashboard.PresentToday, dashboard.LateToday, dashboard.AbsentToday)
	return nil
}

func Main(args []string, envs map[string]string, osSignal chan (os.Signal)) error {
	var clients []client.Client
	var config scenarioConfig
	var wg sync.WaitGroup

	//create context
	ctx, cancel := internal.LaunchContext(&wg, osSignal)
	defer cancel()

	// create logger
	logger := utilities.NewLogger()
	if err := logger.Configure(envs); err != nil {
		return err
	}
	defer logger.Close(context.Background())
	if err := internal.ProcessEnvs(envs, &config); err != nil {
		return err
	}

	//print version info
	logger.Info(ctx, "scenarios: go-attendance v%s (%s) built from: %s",
		Version, GitCommit, GitBranch)

	for range config.Clients {
		parameters := []any{logger}

		//create cache
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
					logger.Error(ctx, "error while closing cache: %s", err)
				}
			}()
			parameters = append(parameters, cache)
		}

		//create client
		client := client.NewClient(parameters...)
		if err := client.Configure(envs); err != nil {
			return err
		}
		if err := client.Open(ctx); err != nil {
			return err
		}
		defer func() {
			if err := client.Close(context.Background()); err != nil {
				logger.Error(ctx, "error while closing client: %s", err)
			}
		}()
		clients = append(clients, client)
	}
	if len(clients) == 0 {
		return errors.New("at least one client is required")
	}

	// execute scenario
	switch scenario := config.Scenario; scenario {
	default:
		return errors.Errorf("unsupported scenario: %s", scenario)
	case "stampeding_herd":
		logger.Info(ctx, "executing %s scenario", scenario)
		if err := scenarioStampedingHerd(ctx, config, logger, clients...); err != nil {
			logger.Error(ctx, "error while executing %s scenario: %s", scenario, err)
		}
	case "seed":
		logger.Info(ctx, "executing %s scenario", scenario)
		if err := scenarioSeed(ctx, config, logger, clients[0]); err != nil {
			logger.Error(ctx, "error while executing %s scenario: %s", scenario, err)
		}
	}
	cancel()
	wg.Wait()
	return nil
}
