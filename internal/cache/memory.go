package cache

import (
	"context"
	"sync"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/utilities"
)

type memoryCache struct {
	sync.RWMutex
	sync.WaitGroup
	employees  map[int64]*data.Employee      //map[id]employee
	searches   map[string]map[int64]struct{} //map[search][id]
	inProgress struct {
		sync.Mutex
		employeeRead   map[int64]int64  //map[id]unix nano
		employeeSearch map[string]int64 //map[search]unix nano
	}
	config    config
	ctx       context.Context
	ctxCancel context.CancelFunc
	utilities.Logger
}

func NewMemory(parameters ...any) interface {
	internal.Configurer
	internal.Opener
	internal.Clearer
	Cache
} {
	c := &memoryCache{
		employees: make(map[int64]*data.Employee),
		searches:  make(map[string]map[int64]struct{}),
	}
	c.inProgress.employeeRead = make(map[int64]int64)
	c.inProgress.employeeSearch = make(map[string]int64)
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

func (c *memoryCache) launchPruneInProgress() {
	started := make(chan struct{})
	c.Add(1)
	go func() {
		defer c.Done()

		pruneFx := func() {
			c.inProgress.Lock()
			defer c.inProgress.Unlock()

			for key, t := range c.inProgress.employeeRead {
				if time.Since(time.Unix(0, t)) > c.config.InProgressTTL {
					delete(c.inProgress.employeeRead, key)
				}
			}
			for key, t := range c.inProgress.employeeSearch {
				if time.Since(time.Unix(0, t)) > c.config.InProgressTTL {
					delete(c.inProgress.employeeSearch, key)
				}
			}
		}
		tPrune := time.NewTicker(c.config.InProgressPruneInterval)
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

func (c *memoryCache) Configure(envs map[string]string) error {
	c.Lock()
	defer c.Unlock()

	if err := internal.ProcessEnvs(envs, &c.config); err != nil {
		return err
	}
	if c.config.InProgressPruneInterval <= 0 {
		c.config.InProgressPruneInterval = 10 * time.Second
	}
	return nil
}

func (c *memoryCache) Open(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()

	if c.ctx != nil {
		return nil
	}
	c.ctx, c.ctxCancel = context.WithCancel(context.Background())
	if c.config.InProgressEnabled {
		c.launchPruneInProgress()
	}
	return nil
}

func (c *memoryCache) Close(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()

	if c.ctx == nil {
		return nil
	}
	c.ctxCancel()
	c.Wait()
	c.ctx, c.ctxCancel = nil, nil
	return nil
}

func (c *memoryCache) Clear(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()

	c.employees = make(map[int64]*data.Employee)
	c.searches = make(map[string]map[int64]struct{})
	c.inProgress.Lock()
	defer c.inProgress.Unlock()
	c.inProgress.employeeRead = make(map[int64]int64)
	c.inProgress.employeeSearch = make(map[string]int64)
	return nil
}

func (c *memoryCache) EmployeeRead(ctx context.Context, id int64) (*data.Employee, error) {
	c.RLock()
	defer c.RUnlock()

	employee, ok := c.employees[id]
	if !ok {
		if !c.config.InProgressEnabled {
			return nil, ErrEmployeeNotCached
		}
		c.inProgress.Lock()
		defer c.inProgress.Unlock()
		if _, ok := c.inProgress.employeeRead[id]; ok {
			return nil, ErrEmployeeReadAlreadySet
		}
		c.inProgress.employeeRead[id] = time.Now().UnixNano()
		return nil, ErrEmployeeReadSet
	}
	return data.CopyEmployee(employee), nil
}

func (c *memoryCache) searchMiss(searchKey string) error {
	if !c.config.InProgressEnabled {
		return ErrEmployeeSearchNotCached
	}
	c.inProgress.Lock()
	defer c.inProgress.Unlock()
	if _, ok := c.inProgress.employeeSearch[searchKey]; ok {
		return ErrEmployeesSearchAlreadySet
	}
	c.inProgress.employeeSearch[searchKey] = time.Now().UnixNano()
	return ErrEmployeesSearchSet
}

// EmployeesRead returns the cached employees of search in id order; a
// search referencing an evicted employee is a miss.
func (c *memoryCache) EmployeesRead(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error) {
	c.RLock()
	defer c.RUnlock()

	searchKey, err := search.ToKey()
	if err != nil {
		return nil, err
	}
	ids, ok := c.searches[searchKey]
	if !ok {
		return nil, c.searchMiss(searchKey)
	}
	employees := make([]*data.Employee, 0, len(ids))
	for id := range ids {
		e, ok := c.employees[id]
		if !ok {
			return nil, c.searchMiss(searchKey)
		}
		employees = append(employees, data.CopyEmployee(e))
	}
	data.SortEmployees(employees)
	return employees, nil
}

func (c *memoryCache) EmployeesWrite(ctx context.Context, search data.EmployeeSearch, employees ...*data.Employee) error {
	c.Lock()
	defer c.Unlock()

	searchKey, err := search.ToKey()
	if err != nil {
		return err
	}
	ids := make(map[int64]struct{}, len(employees))
	for _, e := range employees {
		employee := data.CopyEmployee(e)
		c.employees[employee.Id] = employee
		ids[employee.Id] = struct{}{}
	}
	c.searches[searchKey] = ids
	c.inProgress.Lock()
	defer c.inProgress.Unlock()
	delete(c.inProgress.employeeSearch, searchKey)
	for id := range ids {
		delete(c.inProgress.employeeRead, id)
	}
	return nil
}

func (c *memoryCache) EmployeesDelete(ctx context.Context, ids ...int64) error {
	c.Lock()
	defer c.Unlock()

	for _, id := range ids {
		delete(c.employees, id)
	}
	c.inProgress.Lock()
	defer c.inProgress.Unlock()
	for _, id := range ids {
		delete(c.inProgress.employeeRead, id)
	}
	return nil
}

func (c *memoryCache) SearchesClear(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()

	c.searches = make(map[string]map[int64]struct{})
	c.inProgress.Lock()
	defer c.inProgress.Unlock()
	c.inProgress.employeeSearch = make(map[string]int64)
	return nil
}
