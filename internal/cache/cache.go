package cache

import (
	"context"
	"errors"
	"time"

	"github.com/antonio-alexander/go-attendance/internal/data"
)

var (
	ErrEmployeeNotCached         = errors.New("employee not cached")
	ErrEmployeeSearchNotCached   = errors.New("employee search not cached")
	ErrEmployeeReadSet           = errors.New("employee not cached, read set")
	ErrEmployeeReadAlreadySet    = errors.New("employee not cached, read already set")
	ErrEmployeesSearchSet        = errors.New("employees search not cached, read set")
	ErrEmployeesSearchAlreadySet = errors.New("employees search not cached, read already set")
	ErrStashNotSet               = errors.New("stash not set")
)

// Cache holds employees by id and the ids selected by a search. When
// in-progress tracking is enabled, the first miss for a key reports
// ErrEmployeeReadSet (or ErrEmployeesSearchSet) and subsequent misses
// report the AlreadySet variant until the key is written or its ttl
// elapses.
type Cache interface {
	EmployeeRead(ctx context.Context, id int64) (*data.Employee, error)
	EmployeesRead(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error)
	EmployeesWrite(ctx context.Context, search data.EmployeeSearch, employees ...*data.Employee) error
	EmployeesDelete(ctx context.Context, ids ...int64) error

	// SearchesClear removes every cached search, any mutation can
	// change which employees a search selects.
	SearchesClear(ctx context.Context) error
}

// IsMiss reports whether err only means the value wasn't cached.
func IsMiss(err error) bool {
	switch {
	default:
		return false
	case errors.Is(err, ErrEmployeeNotCached),
		errors.Is(err, ErrEmployeeSearchNotCached),
		errors.Is(err, ErrEmployeeReadSet),
		errors.Is(err, ErrEmployeeReadAlreadySet),
		errors.Is(err, ErrEmployeesSearchSet),
		errors.Is(err, ErrEmployeesSearchAlreadySet):
		return true
	}
}

type config struct {
	InProgressPruneInterval time.Duration `env:"CACHE_PRUNE_INTERVAL, default=10s"`
	InProgressTTL           time.Duration `env:"CACHE_SET_READ_TTL, default=10s"`
	InProgressEnabled       bool          `env:"CACHE_ENABLE_IN_PROGRESS"`
}
