package logic

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/attendance"
	"github.com/antonio-alexander/go-attendance/internal/cache"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/importer"
	"github.com/antonio-alexander/go-attendance/internal/report"
	"github.com/antonio-alexander/go-attendance/internal/sql"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/pkg/errors"
)

type Logic interface {
	EmployeeCreate(ctx context.Context, employeePartial data.EmployeePartial) (*data.Employee, error)
	EmployeeRead(ctx context.Context, id int64) (*data.Employee, error)
	EmployeesSearch(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error)
	EmployeeUpdate(ctx context.Context, id int64, employeePartial data.EmployeePartial) (*data.Employee, data.UpdateResult, error)
	EmployeeDelete(ctx context.Context, id int64) error

	// Dashboard aggregates every employee as of referenceDate (now when
	// zero) and selects the employees whose name contains search.
	Dashboard(ctx context.Context, referenceDate time.Time, search string) (*data.Attendance, error)

	// Report writes every employee as csv to w and returns the name
	// the report should be saved as.
	Report(ctx context.Context, w io.Writer) (string, error)

	// EmployeeImport fetches a person and inserts it as a new employee,
	// nothing is inserted when the result is a failure.
	EmployeeImport(ctx context.Context) *data.ImportResult

	Now() time.Time
	Location() *time.Location
}

type logic struct {
	sync.RWMutex
	sql.Sql
	utilities.Logger
	cache    cache.Cache
	counter  utilities.Counter
	importer importer.Importer
	clock    internal.Clock
	location *time.Location
	config   struct {
		CacheEnabled      bool   `env:"LOGIC_CACHE_ENABLED"`
		MutateDisabled    bool   `env:"MUTATE_DISABLED"`
		Timezone          string `env:"ATTENDANCE_TIMEZONE, default=Local"`
		AbsentPolicy      string `env:"ATTENDANCE_ABSENT_POLICY, default=refined"`
		SanitizeAllFields bool   `env:"REPORT_SANITIZE_ALL_FIELDS, default=true"`
	}
}

func NewLogic(parameters ...any) interface {
	internal.Configurer
	internal.Opener
	Logic
} {
	l := &logic{
		clock:    internal.SystemClock,
		location: time.Local,
	}
	for _, parameter := range parameters {
		switch v := parameter.(type) {
		case sql.Sql:
			l.Sql = v
		case cache.Cache:
			l.cache = v
		case importer.Importer:
			l.importer = v
		case utilities.Counter:
			l.counter = v
		case utilities.Logger:
			l.Logger = v
		case internal.Clock:
			l.clock = v
		}
	}
	if l.Logger == nil {
		l.Logger = utilities.NewNopLogger()
	}
	if l.counter == nil {
		l.counter = utilities.NewCounter()
	}
	return l
}

func (l *logic) Configure(envs map[string]string) error {
	l.Lock()
	defer l.Unlock()

	return internal.ProcessEnvs(envs, &l.config)
}

func (l *logic) Open(ctx context.Context) error {
	l.Lock()
	defer l.Unlock()

	if l.Sql == nil {
		return errors.New("logic requires a store")
	}
	location, err := time.LoadLocation(l.config.Timezone)
	if err != nil {
		return errors.Wrapf(err, "unable to load timezone %q", l.config.Timezone)
	}
	l.location = location
	if l.config.CacheEnabled && l.cache == nil {
		l.Warn(ctx, "cache enabled, but no cache provided")
		l.config.CacheEnabled = false
	}
	if l.config.CacheEnabled {
		l.Info(ctx, "cache enabled")
	}
	if l.config.MutateDisabled {
		l.Info(ctx, "mutation disabled")
	}
	return nil
}

func (l *logic) Close(ctx context.Context) error {
	return nil
}

func (l *logic) Now() time.Time {
	return l.clock().In(l.Location())
}

func (l *logic) Location() *time.Location {
	l.RLock()
	defer l.RUnlock()

	return l.location
}

func (l *logic) invalidate(ctx context.Context, ids ...int64) {
	if !l.config.CacheEnabled {
		return
	}
	if len(ids) > 0 {
		if err := l.cache.EmployeesDelete(ctx, ids...); err != nil {
			l.Error(ctx, "error while deleting employees %v from cache: %s", ids, err)
		}
	}
	if err := l.cache.SearchesClear(ctx); err != nil {
		l.Error(ctx, "error while clearing searches from cache: %s", err)
	}
}

func (l *logic) EmployeeCreate(ctx context.Context, employeePartial data.EmployeePartial) (*data.Employee, error) {
	l.RLock()
	defer l.RUnlock()

	if l.config.MutateDisabled {
		return nil, data.ErrMutationDisabled
	}
	if err := employeePartial.Validate(); err != nil {
		return nil, err
	}
	if employeePartial.ClockInTime == nil {
		clockInTime := l.clock().Unix()
		employeePartial.ClockInTime = &clockInTime
	}
	employee, err := l.Sql.EmployeeCreate(ctx, employeePartial)
	if err != nil {
		return nil, err
	}
	l.invalidate(ctx)
	l.Debug(ctx, "created employee %d", employee.Id)
	return employee, nil
}

func (l *logic) EmployeeRead(ctx context.Context, id int64) (*data.Employee, error) {
	l.RLock()
	defer l.RUnlock()

	key := fmt.Sprintf("employee_%d", id)
	if l.config.CacheEnabled {
		employee, err := l.cache.EmployeeRead(ctx, id)
		if err == nil {
			l.counter.IncrementHit(key)
			return employee, nil
		}
		if !cache.IsMiss(err) {
			l.Error(ctx, "error while reading employee (%d) from cache: %s", id, err)
		}
	}
	l.counter.IncrementMiss(key)
	employee, err := l.Sql.EmployeeRead(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.config.CacheEnabled {
		if err := l.cache.EmployeesWrite(ctx, data.EmployeeSearch{Ids: []int64{id}}, employee); err != nil {
			l.Error(ctx, "error while writing employee (%d) to cache: %s", id, err)
		}
	}
	return employee, nil
}

func (l *logic) EmployeesSearch(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error) {
	l.RLock()
	defer l.RUnlock()

	return l.employeesSearch(ctx, search)
}

func (l *logic) employeesSearch(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error) {
	searchKey, err := search.ToKey()
	if err != nil {
		return nil, err
	}
	key := "search_" + searchKey
	if l.config.CacheEnabled {
		employees, err := l.cache.EmployeesRead(ctx, search)
		if err == nil {
			l.counter.IncrementHit(key)
			return employees, nil
		}
		if !cache.IsMiss(err) {
			l.Error(ctx, "error while reading employees from cache: %s", err)
		}
	}
	l.counter.IncrementMiss(key)
	employees, err := l.Sql.EmployeesSearch(ctx, search)
	if err != nil {
		return nil, err
	}
	if l.config.CacheEnabled {
		if err := l.cache.EmployeesWrite(ctx, search, employees...); err != nil {
			l.Error(ctx, "error while writing employees to cache: %s", err)
		}
	}
	return employees, nil
}

func (l *logic) EmployeeUpdate(ctx context.Context, id int64, employeePartial data.EmployeePartial) (*data.Employee, data.UpdateResult, error) {
	l.RLock()
	defer l.RUnlock()

	if l.config.MutateDisabled {
		return nil, data.UpdateResultUpdated, data.ErrMutationDisabled
	}
	if err := employeePartial.Validate(); err != nil {
		return nil, data.UpdateResultUpdated, err
	}
	employee, result, err := l.Sql.EmployeeUpdate(ctx, id, employeePartial)
	if err != nil {
		return nil, result, err
	}
	switch result {
	case data.UpdateResultUpdated:
		l.invalidate(ctx, id)
		l.Debug(ctx, "updated employee %d", id)
	case data.UpdateResultNotFound:
		l.invalidate(ctx, id)
		fallthrough
	default:
		l.Debug(ctx, "update of employee %d: %s", id, result)
	}
	return employee, result, nil
}

func (l *logic) EmployeeDelete(ctx context.Context, id int64) error {
	l.RLock()
	defer l.RUnlock()

	if l.config.MutateDisabled {
		return data.ErrMutationDisabled
	}
	if err := l.Sql.EmployeeDelete(ctx, id); err != nil {
		if errors.Is(err, data.ErrEmployeeNotFound) {
			l.invalidate(ctx, id)
		}
		return err
	}
	l.invalidate(ctx, id)
	l.Debug(ctx, "deleted employee %d", id)
	return nil
}

func (l *logic) Dashboard(ctx context.Context, referenceDate time.Time, search string) (*data.Attendance, error) {
	l.RLock()
	defer l.RUnlock()

	if referenceDate.IsZero() {
		referenceDate = l.clock()
	}
	referenceDate = referenceDate.In(l.location)
	employees, err := l.employeesSearch(ctx, data.EmployeeSearch{})
	if err != nil {
		return nil, err
	}
	policy := data.AtoAbsentPolicy(l.config.AbsentPolicy)
	return attendance.Compute(employees, referenceDate, policy, search), nil
}

func (l *logic) Report(ctx context.Context, w io.Writer) (string, error) {
	l.RLock()
	defer l.RUnlock()

	employees, err := l.employeesSearch(ctx, data.EmployeeSearch{})
	if err != nil {
		return "", err
	}
	if err := report.Write(w, employees, report.Options{
		Location:          l.location,
		SanitizeAllFields: l.config.SanitizeAllFields,
	}); err != nil {
		return "", errors.Wrap(err, "unable to write report")
	}
	l.Debug(ctx, "generated report of %d employees", len(employees))
	return report.Filename(l.clock().In(l.location)), nil
}

func (l *logic) EmployeeImport(ctx context.Context) *data.ImportResult {
	// EmployeeCreate takes the read lock itself, so it's released before
	// the insert
	l.RLock()
	mutateDisabled, employeeImporter := l.config.MutateDisabled, l.importer
	l.RUnlock()

	if mutateDisabled {
		return data.ImportFailed(data.ImportFailureMutationDisabled, data.ErrMutationDisabled)
	}
	if employeeImporter == nil {
		return data.ImportFailed(data.ImportFailureFetchFailed, errors.New("import not configured"))
	}
	person, err := employeeImporter.Fetch(ctx)
	if err != nil {
		l.Warn(ctx, "unable to fetch employee to import: %s", err)
		return data.ImportFailed(importer.FailureFromError(err), err)
	}
	employeePartial, err := importer.ToEmployeePartial(person, l.clock())
	if err != nil {
		l.Warn(ctx, "unable to import person %d: %s", person.Id, err)
		return data.ImportFailed(importer.FailureFromError(err), err)
	}
	employee, err := l.EmployeeCreate(ctx, employeePartial)
	if err != nil {
		l.Error(ctx, "unable to insert imported person %d: %s", person.Id, err)
		if errors.Is(err, data.ErrMutationDisabled) {
			return data.ImportFailed(data.ImportFailureMutationDisabled, err)
		}
		return data.ImportFailed(data.ImportFailureInsertFailed, err)
	}
	l.Info(ctx, "imported person %d as employee %d", person.Id, employee.Id)
	return &data.ImportResult{Employee: employee}
}
