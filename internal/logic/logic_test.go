package logic_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/cache"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/importer"
	"github.com/antonio-alexander/go-attendance/internal/logic"
	"github.com/antonio-alexander/go-attendance/internal/report"
	"github.com/antonio-alexander/go-attendance/internal/sql"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/stretchr/testify/assert"
)

var today = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

type fakeImporter struct {
	person *data.ExternalPerson
	err    error
}

func (f *fakeImporter) Fetch(ctx context.Context) (*data.ExternalPerson, error) {
	return f.person, f.err
}

type logicTest struct {
	store interface {
		internal.Clearer
		sql.Sql
	}
	importer *fakeImporter
	counter  utilities.Counter
	logic    interface {
		internal.Configurer
		internal.Opener
		logic.Logic
	}
}

func newLogicTest(t *testing.T, envs map[string]string) *logicTest {
	clock := internal.Clock(func() time.Time { return today })
	store := sql.NewMemory(clock)
	employeeCache := cache.NewMemory()
	fakeImporter := &fakeImporter{}
	counter := utilities.NewCounter()
	l := logic.NewLogic(store, employeeCache, fakeImporter, counter, clock)
	configuration := map[string]string{"ATTENDANCE_TIMEZONE": "UTC"}
	for key, value := range envs {
		configuration[key] = value
	}
	err := employeeCache.Configure(configuration)
	assert.Nil(t, err)
	err = employeeCache.Open(context.TODO())
	assert.Nil(t, err)
	t.Cleanup(func() {
		_ = employeeCache.Close(context.TODO())
	})
	err = l.Configure(configuration)
	assert.Nil(t, err)
	err = l.Open(context.TODO())
	assert.Nil(t, err)
	return &logicTest{
		store:    store,
		importer: fakeImporter,
		counter:  counter,
		logic:    l,
	}
}

func strPtr(s string) *string {
	return &s
}

func int64Ptr(i int64) *int64 {
	return &i
}

func (l *logicTest) seed(t *testing.T) []*data.Employee {
	var employees []*data.Employee

	for _, partial := range []data.EmployeePartial{
		{Name: strPtr("Alice"), AttendanceStatus: strPtr(data.StatusPresent), ClockInTime: int64Ptr(today.Add(-time.Hour).Unix())},
		{Name: strPtr("Bob"), AttendanceStatus: strPtr(data.StatusLate), ClockInTime: int64Ptr(today.Unix())},
		{Name: strPtr("Carol"), AttendanceStatus: strPtr(data.StatusAbsent), ClockInTime: int64Ptr(today.AddDate(0, 0, -1).Unix())},
	} {
		employee, err := l.logic.EmployeeCreate(context.TODO(), partial)
		assert.Nil(t, err)
		employees = append(employees, employee)
	}
	return employees
}

func TestCrud(t *testing.T) {
	ctx := context.TODO()
	l := newLogicTest(t, map[string]string{"LOGIC_CACHE_ENABLED": "true"})

	// create defaults the clock in time to now
	employee, err := l.logic.EmployeeCreate(ctx, data.EmployeePartial{Name: strPtr("Ada")})
	assert.Nil(t, err)
	if !assert.NotNil(t, employee) {
		return
	}
	assert.Equal(t, today.Unix(), employee.ClockInTime)

	// the second read is a cache hit
	_, err = l.logic.EmployeeRead(ctx, employee.Id)
	assert.Nil(t, err)
	employeeRead, err := l.logic.EmployeeRead(ctx, employee.Id)
	assert.Nil(t, err)
	assert.Equal(t, employee, employeeRead)
	hits, misses := l.counter.Read("employee_1")
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	// searches are invalidated by mutations
	employees, err := l.logic.EmployeesSearch(ctx, data.EmployeeSearch{})
	assert.Nil(t, err)
	assert.Len(t, employees, 1)
	_, err = l.logic.EmployeeCreate(ctx, data.EmployeePartial{Name: strPtr("Grace")})
	assert.Nil(t, err)
	employees, err = l.logic.EmployeesSearch(ctx, data.EmployeeSearch{})
	assert.Nil(t, err)
	assert.Len(t, employees, 2)

	// updates are visible through the cache
	employeeUpdated, result, err := l.logic.EmployeeUpdate(ctx, employee.Id,
		data.EmployeePartial{AttendanceStatus: strPtr(data.StatusLate)})
	assert.Nil(t, err)
	assert.Equal(t, data.UpdateResultUpdated, result)
	assert.Equal(t, data.StatusLate, employeeUpdated.AttendanceStatus)
	employeeRead, err = l.logic.EmployeeRead(ctx, employee.Id)
	assert.Nil(t, err)
	assert.Equal(t, employeeUpdated, employeeRead)

	// delete and confirm gone
	err = l.logic.EmployeeDelete(ctx, employee.Id)
	assert.Nil(t, err)
	_, err = l.logic.EmployeeRead(ctx, employee.Id)
	assert.ErrorIs(t, err, data.ErrEmployeeNotFound)
	err = l.logic.EmployeeDelete(ctx, employee.Id)
	assert.ErrorIs(t, err, data.ErrEmployeeNotFound)
	_, result, err = l.logic.EmployeeUpdate(ctx, employee.Id, data.EmployeePartial{Name: strPtr("x")})
	assert.Nil(t, err)
	assert.Equal(t, data.UpdateResultNotFound, result)
}

func TestValidation(t *testing.T) {
	ctx := context.TODO()
	l := newLogicTest(t, nil)

	_, err := l.logic.EmployeeCreate(ctx, data.EmployeePartial{
		Name:        strPtr(strings.Repeat("a", 256)),
		ClockInTime: int64Ptr(-1),
	})
	var validationError *data.ValidationError
	if assert.True(t, errors.As(err, &validationError)) {
		assert.Contains(t, validationError.Fields, "name")
		assert.Contains(t, validationError.Fields, "clock_in_time")
	}
	employees, err := l.store.EmployeesSearch(ctx, data.EmployeeSearch{})
	assert.Nil(t, err)
	assert.Empty(t, employees)
}

func TestMutateDisabled(t *testing.T) {
	ctx := context.TODO()
	l := newLogicTest(t, map[string]string{"MUTATE_DISABLED": "true"})

	_, err := l.logic.EmployeeCreate(ctx, data.EmployeePartial{Name: strPtr("Ada")})
	assert.ErrorIs(t, err, data.ErrMutationDisabled)
	_, _, err = l.logic.EmployeeUpdate(ctx, 1, data.EmployeePartial{Name: strPtr("Ada")})
	assert.ErrorIs(t, err, data.ErrMutationDisabled)
	err = l.logic.EmployeeDelete(ctx, 1)
	assert.ErrorIs(t, err, data.ErrMutationDisabled)
	result := l.logic.EmployeeImport(ctx)
	assert.False(t, result.Succeeded())
	assert.Equal(t, data.ImportFailureMutationDisabled, result.Failure)
}

func TestDashboard(t *testing.T) {
	ctx := context.TODO()

	for _, policy := range []string{"broad", "refined"} {
		l := newLogicTest(t, map[string]string{
			"ATTENDANCE_ABSENT_POLICY": policy,
			"LOGIC_CACHE_ENABLED":      "true",
		})
		l.seed(t)

		attendance, err := l.logic.Dashboard(ctx, time.Time{}, "")
		assert.Nil(t, err)
		if !assert.NotNil(t, attendance) {
			return
		}
		assert.Equal(t, data.Dashboard{
			Total:         3,
			PresentToday:  1,
			LateToday:     1,
			AbsentToday:   1,
			ReferenceDate: "2026-10-18",
			AbsentPolicy:  data.AbsentPolicy(policy),
		}, attendance.Dashboard)
		assert.Len(t, attendance.Employees, 3)

		// filtering doesn't change the counts
		attendance, err = l.logic.Dashboard(ctx, today, "Bo")
		assert.Nil(t, err)
		assert.Equal(t, 3, attendance.Dashboard.Total)
		assert.Equal(t, "Bo", attendance.Search)
		if assert.Len(t, attendance.Employees, 1) {
			assert.Equal(t, "Bob", attendance.Employees[0].Name)
		}

		// moving the reference date
		attendance, err = l.logic.Dashboard(ctx, today.AddDate(0, 0, 7), "")
		assert.Nil(t, err)
		assert.Equal(t, 3, attendance.Dashboard.Total)
		assert.Zero(t, attendance.Dashboard.PresentToday)
		assert.Zero(t, attendance.Dashboard.LateToday)
	}
}

func TestReport(t *testing.T) {
	ctx := context.TODO()
	l := newLogicTest(t, nil)
	employees := l.seed(t)
	_, _, err := l.logic.EmployeeUpdate(ctx, employees[0].Id, data.EmployeePartial{
		Name:       strPtr("Smith, Alice"),
		Department: strPtr("R&D, Labs"),
	})
	assert.Nil(t, err)

	buffer := &bytes.Buffer{}
	filename, err := l.logic.Report(ctx, buffer)
	assert.Nil(t, err)
	assert.Equal(t, "Attendance_Report_20261018.csv", filename)
	lines := strings.Split(strings.TrimSuffix(buffer.String(), "\n"), "\n")
	if assert.Len(t, lines, 4) {
		assert.Equal(t, report.Header, lines[0])
		assert.Equal(t, "1,Smith Alice,,R&D Labs,2026-10-18 08:30,Present", lines[1])
	}
}

func TestImport(t *testing.T) {
	ctx := context.TODO()
	l := newLogicTest(t, map[string]string{"LOGIC_CACHE_ENABLED": "true"})

	// success
	l.importer.person = &data.ExternalPerson{Id: 1, Name: "Ada Lovelace", Email: "ada@example.com"}
	result := l.logic.EmployeeImport(ctx)
	if assert.True(t, result.Succeeded()) {
		assert.Equal(t, "Ada Lovelace", result.Employee.Name)
		assert.Equal(t, data.DepartmentExternal, result.Employee.Department)
		assert.Equal(t, data.StatusPresent, result.Employee.AttendanceStatus)
		assert.Equal(t, today.Unix(), result.Employee.ClockInTime)
	}
	employees, err := l.logic.EmployeesSearch(ctx, data.EmployeeSearch{})
	assert.Nil(t, err)
	assert.Len(t, employees, 1)

	// a second import inserts a second record
	result = l.logic.EmployeeImport(ctx)
	assert.True(t, result.Succeeded())

	// network failure inserts nothing
	l.importer.person, l.importer.err = nil, &importer.FetchError{
		Failure: data.ImportFailureFetchFailed,
		Err:     errors.New("connection refused"),
	}
	result = l.logic.EmployeeImport(ctx)
	assert.False(t, result.Succeeded())
	assert.Equal(t, data.ImportFailureFetchFailed, result.Failure)
	assert.NotEmpty(t, result.Error)

	// missing fields inserts nothing
	l.importer.person, l.importer.err = &data.ExternalPerson{Id: 2, Name: "No Email"}, nil
	result = l.logic.EmployeeImport(ctx)
	assert.Equal(t, data.ImportFailureMissingFields, result.Failure)
	employees, err = l.logic.EmployeesSearch(ctx, data.EmployeeSearch{})
	assert.Nil(t, err)
	assert.Len(t, employees, 2)
}

func TestImportConfigure(t *testing.T) {
	var wg sync.WaitGroup

	ctx := context.TODO()
	l := newLogicTest(t, map[string]string{})
	l.importer.person = &data.ExternalPerson{Id: 1, Name: "Ada Lovelace", Email: "ada@example.com"}

	// reconfiguring while importing flips the mutation guard, every
	// import either succeeds or is refused
	wg.Add(1)
	go func() {
		defer wg.Done()

		for i := 0; i < 50; i++ {
			_ = l.logic.Configure(map[string]string{
				"ATTENDANCE_TIMEZONE": "UTC",
				"MUTATE_DISABLED":     fmt.Sprint(i%2 == 0),
			})
		}
	}()
	for i := 0; i < 50; i++ {
		result := l.logic.EmployeeImport(ctx)
		if !result.Succeeded() {
			assert.Equal(t, data.ImportFailureMutationDisabled, result.Failure)
		}
	}
	wg.Wait()
}
