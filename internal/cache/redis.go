package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/redis/go-redis/v9"
)

const (
	hashKeyEmployees       string = "attendance_employees"
	hashKeySearch          string = "attendance_search"
	hashKeyInProgress      string = "attendance_in_progress"
	hashKeyInProgressMutex string = "attendance_in_progress_mutex"
)

const scriptUnlock string = `
local key = KEYS[1]
local expected_value = ARGV[1]

if redis.call('GET', key) == expected_value then
	return redis.call('DEL', key)
end
return 0
`

type redisCache struct {
	sync.WaitGroup
	sync.Mutex
	redisClient *redis.Client
	config      struct {
		Cache              config
		Address            string        `env:"REDIS_ADDRESS, default=localhost"`
		Port               string        `env:"REDIS_PORT, default=6379"`
		Password           string        `env:"REDIS_PASSWORD"`
		Database           int           `env:"REDIS_DATABASE, default=0"`
		Timeout            time.Duration `env:"REDIS_TIMEOUT, default=10s"`
		MutexExpiration    time.Duration `env:"REDIS_MUTEX_EXPIRATION, default=10s"`
		MutexRetryInterval time.Duration `env:"REDIS_MUTEX_RETRY_INTERVAL, default=100ms"`
	}
	ctx       context.Context
	ctxCancel context.CancelFunc
	utilities.Logger
}

func NewRedis(parameters ...any) interface {
	internal.Configurer
	internal.Opener
	internal.Clearer
	Cache
} {
	c := &redisCache{}
	for _, parameter := range parameters {
		switch p := parameter.(type) {
		case utilities.Logger:
			c.Logger = p
		}
	}
	if c.Logger == nil {
		c.Logger = utilities.NewNopLogger()
	}
	return c
}

func (c *redisCache) launchPruneInProgress() {
	started := make(chan struct{})
	c.Add(1)
	go func() {
		defer c.Done()

		pruneFx := func() {
			var fieldsToDelete []string

			token, err := c.lockInProgress(c.ctx)
			if err != nil {
				return
			}
			defer c.unlockInProgress(c.ctx, token)
			values, err := c.redisClient.HGetAll(c.ctx, hashKeyInProgress).Result()
			if err != nil {
				c.Error(c.ctx, "error while reading in progress: %s", err)
				return
			}
			for field, value := range values {
				t, _ := strconv.ParseInt(value, 10, 64)
				if time.Since(time.Unix(0, t)) > c.config.Cache.InProgressTTL {
					fieldsToDelete = append(fieldsToDelete, field)
				}
			}
			if len(fieldsToDelete) > 0 {
				_, _ = c.redisClient.HDel(c.ctx, hashKeyInProgress, fieldsToDelete...).Result()
			}
		}
		tPrune := time.NewTicker(c.config.Cache.InProgressPruneInterval)
		defer tPrune.Stop()
		close(started)
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-tPrune.C:
				pruneFx()
			}
		}
	}()
	<-started
}

// lockInProgress acquires a mutex shared by every process using the same
// redis database, the returned token must be provided to unlock it.
func (c *redisCache) lockInProgress(ctx context.Context) (string, error) {
	token := internal.GenerateId()
	lockFx := func() (bool, error) {
		return c.redisClient.SetNX(ctx, hashKeyInProgressMutex,
			token, c.config.MutexExpiration).Result()
	}
	if ok, err := lockFx(); err != nil || ok {
		return token, err
	}
	tRetry := time.NewTicker(c.config.MutexRetryInterval)
	defer tRetry.Stop()
	for {
		select {
		case <-tRetry.C:
			if ok, err := lockFx(); err != nil || ok {
				return token, err
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (c *redisCache) unlockInProgress(ctx context.Context, token string) {
	item, err := c.redisClient.Eval(ctx, scriptUnlock,
		[]string{hashKeyInProgressMutex}, token).Result()
	if err != nil {
		c.Error(ctx, "error while unlocking in progress mutex: %s", err)
		return
	}
	if i, ok := item.(int64); !ok || i != 1 {
		c.Warn(ctx, "in progress mutex expired before it was unlocked")
	}
}

func (c *redisCache) setInProgress(ctx context.Context, field string, errSet, errAlreadySet error) error {
	token, err := c.lockInProgress(ctx)
	if err != nil {
		return err
	}
	defer c.unlockInProgress(ctx, token)
	set, err := c.redisClient.HSetNX(ctx, hashKeyInProgress, field,
		fmt.Sprint(time.Now().UnixNano())).Result()
	if err != nil {
		return fmt.Errorf("error while setting %s in progress: %w", field, err)
	}
	if !set {
		return errAlreadySet
	}
	return errSet
}

func (c *redisCache) Configure(envs map[string]string) error {
	if err := internal.ProcessEnvs(envs, &c.config); err != nil {
		return err
	}
	if c.config.Cache.InProgressPruneInterval <= 0 {
		c.config.Cache.InProgressPruneInterval = 10 * time.Second
	}
	if c.config.MutexRetryInterval <= 0 {
		c.config.MutexRetryInterval = 100 * time.Millisecond
	}
	return nil
}

func (c *redisCache) Open(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()

	if c.redisClient != nil {
		return nil
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(c.config.Address, c.config.Port),
		Password: c.config.Password,
		DB:       c.config.Database,
	})
	ctxPing, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	if err := redisClient.Ping(ctxPing).Err(); err != nil {
		_ = redisClient.Close()
		return err
	}
	c.redisClient = redisClient
	c.ctx, c.ctxCancel = context.WithCancel(context.Background())
	if c.config.Cache.InProgressEnabled {
		c.launchPruneInProgress()
	}
	return nil
}

func (c *redisCache) Close(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()

	if c.redisClient == nil {
		return nil
	}
	c.ctxCancel()
	c.Wait()
	if err := c.redisClient.Close(); err != nil {
		c.Error(ctx, "error while shutting down redis client: %s", err)
	}
	c.redisClient = nil
	return nil
}

func (c *redisCache) Clear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	_, err := c.redisClient.Del(ctx, hashKeyEmployees, hashKeySearch,
		hashKeyInProgress, hashKeyInProgressMutex).Result()
	return err
}

func (c *redisCache) EmployeeRead(ctx context.Context, id int64) (*data.Employee, error) {
	key := fmt.Sprint(id)
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	value, err := c.redisClient.HGet(ctx, hashKeyEmployees, key).Result()
	if err != nil {
		switch {
		default:
			return nil, err
		case errors.Is(err, redis.Nil):
			if !c.config.Cache.InProgressEnabled {
				return nil, ErrEmployeeNotCached
			}
			return nil, c.setInProgress(ctx, key,
				ErrEmployeeReadSet, ErrEmployeeReadAlreadySet)
		}
	}
	employee := &data.Employee{}
	if err := employee.UnmarshalBinary([]byte(value)); err != nil {
		return nil, err
	}
	return employee, nil
}

func (c *redisCache) searchMiss(ctx context.Context, searchKey string) error {
	if !c.config.Cache.InProgressEnabled {
		return ErrEmployeeSearchNotCached
	}
	return c.setInProgress(ctx, searchKey,
		ErrEmployeesSearchSet, ErrEmployeesSearchAlreadySet)
}

// EmployeesRead returns the cached employees of search in id order; an
// empty value is a cached search that selected nothing.
func (c *redisCache) EmployeesRead(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	searchKey, err := search.ToKey()
	if err != nil {
		return nil, err
	}
	value, err := c.redisClient.HGet(ctx, hashKeySearch, searchKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, c.searchMiss(ctx, searchKey)
		}
		return nil, err
	}
	if value == "" {
		return []*data.Employee{}, nil
	}
	ids := strings.Split(value, ",")
	values, err := c.redisClient.HMGet(ctx, hashKeyEmployees, ids...).Result()
	if err != nil {
		return nil, err
	}
	employees := make([]*data.Employee, 0, len(values))
	for _, value := range values {
		s, ok := value.(string)
		if !ok {
			return nil, c.searchMiss(ctx, searchKey)
		}
		employee := &data.Employee{}
		if err := employee.UnmarshalBinary([]byte(s)); err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	data.SortEmployees(employees)
	return employees, nil
}

func (c *redisCache) EmployeesWrite(ctx context.Context, search data.EmployeeSearch, employees ...*data.Employee) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	searchKey, err := search.ToKey()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(employees))
	values := make([]any, 0, 2*len(employees))
	for _, employee := range employees {
		bytes, err := employee.MarshalBinary()
		if err != nil {
			return err
		}
		id := fmt.Sprint(employee.Id)
		values = append(values, id, string(bytes))
		ids = append(ids, id)
	}
	if _, err := c.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) > 0 {
			pipe.HSet(ctx, hashKeyEmployees, values...)
		}
		pipe.HSet(ctx, hashKeySearch, searchKey, strings.Join(ids, ","))
		if c.config.Cache.InProgressEnabled {
			pipe.HDel(ctx, hashKeyInProgress, append(ids, searchKey)...)
		}
		return nil
	}); err != nil {
		return err
	}
	return nil
}

func (c *redisCache) EmployeesDelete(ctx context.Context, e ...int64) error {
	var ids []string

	if len(e) == 0 {
		return nil
	}
	for _, id := range e {
		ids = append(ids, fmt.Sprint(id))
	}
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	if _, err := c.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, hashKeyEmployees, ids...)
		if c.config.Cache.InProgressEnabled {
			pipe.HDel(ctx, hashKeyInProgress, ids...)
		}
		return nil
	}); err != nil {
		return err
	}
	return nil
}

func (c *redisCache) SearchesClear(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	_, err := c.redisClient.Del(ctx, hashKeySearch).Result()
	return err
}
