package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/antonio-alexander/go-stash"
)

const stashKeySearches string = "attendance_searches"

// stashIds is the value stored for a search key and for the index of
// search keys.
type stashIds struct {
	Ids  []int64  `json:"ids,omitempty"`
	Keys []string `json:"keys,omitempty"`
}

func (s *stashIds) MarshalBinary() ([]byte, error) {
	return json.Marshal(s)
}

func (s *stashIds) UnmarshalBinary(byts []byte) error {
	return json.Unmarshal(byts, s)
}

type stashCache struct {
	mutex sync.Mutex
	stash interface {
		stash.Configurer
		stash.Parameterizer
		stash.Initializer
		stash.Shutdowner
	}
	stash.Stasher
	logger utilities.Logger
}

// NewStash wraps a go-stash backend (memory or redis) given as one of the
// parameters. It doesn't track in-progress reads, every miss is
// ErrEmployeeNotCached or ErrEmployeeSearchNotCached.
func NewStash(parameters ...any) interface {
	internal.Configurer
	internal.Opener
	internal.Clearer
	Cache
} {
	c := &stashCache{}
	for _, parameter := range parameters {
		switch p := parameter.(type) {
		case utilities.Logger:
			c.logger = p
		case interface {
			stash.Configurer
			stash.Parameterizer
			stash.Initializer
			stash.Shutdowner
			stash.Stasher
		}:
			c.stash = p
			c.Stasher = p
		}
	}
	if c.logger == nil {
		c.logger = utilities.NewNopLogger()
	}
	if c.stash != nil {
		c.stash.SetParameters(parameters...)
	}
	return c
}

func stashEmployeeKey(id int64) string {
	return fmt.Sprintf("employee:%d", id)
}

func stashSearchKey(search data.EmployeeSearch) (string, error) {
	key, err := search.ToKey()
	if err != nil {
		return "", err
	}
	return "search:" + key, nil
}

func (c *stashCache) Configure(envs map[string]string) error {
	if c.stash == nil {
		return nil
	}
	return c.stash.Configure(envs)
}

func (c *stashCache) Open(ctx context.Context) error {
	if c.stash == nil {
		return ErrStashNotSet
	}
	return c.stash.Initialize()
}

func (c *stashCache) Close(ctx context.Context) error {
	if c.stash == nil {
		return nil
	}
	return c.stash.Shutdown()
}

func (c *stashCache) Clear(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.Stasher.Clear()
}

func (c *stashCache) EmployeeRead(ctx context.Context, id int64) (*data.Employee, error) {
	employee := &data.Employee{}
	if err := c.Stasher.Read(stashEmployeeKey(id), employee); err != nil {
		c.logger.Trace(ctx, "cache miss for employee: %d", id)
		return nil, ErrEmployeeNotCached
	}
	c.logger.Trace(ctx, "cache hit for employee: %d", id)
	return employee, nil
}

// EmployeesRead returns the cached employees of search in id order; a
// search referencing an evicted employee is removed and reported as a
// miss.
func (c *stashCache) EmployeesRead(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error) {
	key, err := stashSearchKey(search)
	if err != nil {
		return nil, err
	}
	ids := &stashIds{}
	if err := c.Stasher.Read(key, ids); err != nil {
		c.logger.Trace(ctx, "cache miss for employee search: %s", key)
		return nil, ErrEmployeeSearchNotCached
	}
	employees := make([]*data.Employee, 0, len(ids.Ids))
	for _, id := range ids.Ids {
		employee := &data.Employee{}
		if err := c.Stasher.Read(stashEmployeeKey(id), employee); err != nil {
			c.logger.Trace(ctx, "cache miss for employee search: %s", key)
			if err := c.Stasher.Delete(key); err != nil {
				c.logger.Error(ctx, "error while deleting search (%s): %s", key, err)
			}
			return nil, ErrEmployeeSearchNotCached
		}
		employees = append(employees, employee)
	}
	data.SortEmployees(employees)
	c.logger.Trace(ctx, "cache hit for employee search: %s", key)
	return employees, nil
}

func (c *stashCache) EmployeesWrite(ctx context.Context, search data.EmployeeSearch, employees ...*data.Employee) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key, err := stashSearchKey(search)
	if err != nil {
		return err
	}
	ids := &stashIds{Ids: make([]int64, 0, len(employees))}
	for _, employee := range employees {
		if _, err := c.Stasher.Write(stashEmployeeKey(employee.Id), employee); err != nil {
			c.logger.Error(ctx, "error while writing employee (%d): %s", employee.Id, err)
			return err
		}
		ids.Ids = append(ids.Ids, employee.Id)
	}
	if _, err := c.Stasher.Write(key, ids); err != nil {
		c.logger.Error(ctx, "error while writing search (%s): %s", key, err)
		return err
	}
	index := &stashIds{}
	if err := c.Stasher.Read(stashKeySearches, index); err != nil {
		index = &stashIds{}
	}
	for _, k := range index.Keys {
		if k == key {
			return nil
		}
	}
	index.Keys = append(index.Keys, key)
	if _, err := c.Stasher.Write(stashKeySearches, index); err != nil {
		c.logger.Error(ctx, "error while writing search index: %s", err)
		return err
	}
	return nil
}

func (c *stashCache) EmployeesDelete(ctx context.Context, ids ...int64) error {
	for _, id := range ids {
		if err := c.Stasher.Delete(stashEmployeeKey(id)); err != nil {
			c.logger.Trace(ctx, "employee (%d) not cached: %s", id, err)
			continue
		}
		c.logger.Trace(ctx, "evicted cached employee: %d", id)
	}
	return nil
}

func (c *stashCache) SearchesClear(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	index := &stashIds{}
	if err := c.Stasher.Read(stashKeySearches, index); err != nil {
		return nil
	}
	for _, key := range index.Keys {
		if err := c.Stasher.Delete(key); err != nil {
			c.logger.Trace(ctx, "search (%s) not cached: %s", key, err)
		}
	}
	if err := c.Stasher.Delete(stashKeySearches); err != nil {
		c.logger.Error(ctx, "error while deleting search index: %s", err)
	}
	return nil
}
