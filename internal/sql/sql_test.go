package sql_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/sql"

	"github.com/stretchr/testify/assert"
)

var envs = map[string]string{
	"DATABASE_HOST":            "localhost",
	"DATABASE_PORT":            "3306",
	"DATABASE_NAME":            "attendance",
	"DATABASE_USER":            "mysql",
	"DATABASE_PASSWORD":        "mysql",
	"DATABASE_CONNECT_TIMEOUT": "2s",
	"DATABASE_QUERY_TIMEOUT":   "10s",
	"DATABASE_MIGRATE":         "true",
	"GORM_DIALECT":             "sqlite",
}

func init() {
	for key, value := range internal.Environ(os.Environ()) {
		envs[key] = value
	}
}

type sqlTest struct {
	sql interface {
		internal.Opener
		internal.Configurer
		internal.Clearer
	}
	sql.Sql
}

func newSqlTest(s interface {
	internal.Opener
	internal.Configurer
	internal.Clearer
	sql.Sql
}) *sqlTest {
	return &sqlTest{
		sql: s,
		Sql: s,
	}
}

func strPtr(s string) *string {
	return &s
}

func (s *sqlTest) TestCrud(t *testing.T) {
	ctx := context.TODO()

	// create employee
	clockInTime := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC).Unix()
	name := internal.GenerateId()[:14]
	employeeCreated, err := s.EmployeeCreate(ctx, data.EmployeePartial{
		Name:             &name,
		Email:            strPtr("grace@example.com"),
		Department:       strPtr("Engineering"),
		ClockInTime:      &clockInTime,
		AttendanceStatus: strPtr(data.StatusPresent),
	})
	assert.Nil(t, err)
	if !assert.NotNil(t, employeeCreated) {
		return
	}
	assert.Positive(t, employeeCreated.Id)
	assert.Equal(t, name, employeeCreated.Name)
	assert.Equal(t, "grace@example.com", employeeCreated.Email)
	assert.Equal(t, "Engineering", employeeCreated.Department)
	assert.Equal(t, clockInTime, employeeCreated.ClockInTime)
	assert.Equal(t, data.StatusPresent, employeeCreated.AttendanceStatus)
	id := employeeCreated.Id
	defer func(id int64) {
		_ = s.EmployeeDelete(ctx, id)
	}(id)

	// read employee
	employeeRead, err := s.EmployeeRead(ctx, id)
	assert.Nil(t, err)
	assert.Equal(t, employeeCreated, employeeRead)

	// search employee
	employeesRead, err := s.EmployeesSearch(ctx, data.EmployeeSearch{Ids: []int64{id}})
	assert.Nil(t, err)
	assert.Len(t, employeesRead, 1)
	assert.Contains(t, employeesRead, employeeCreated)

	// update employee
	updatedName := internal.GenerateId()[:14]
	employeeUpdated, result, err := s.EmployeeUpdate(ctx, id, data.EmployeePartial{
		Name:             &updatedName,
		AttendanceStatus: strPtr(data.StatusLate),
	})
	assert.Nil(t, err)
	assert.Equal(t, data.UpdateResultUpdated, result)
	if assert.NotNil(t, employeeUpdated) {
		assert.Equal(t, updatedName, employeeUpdated.Name)
		assert.Equal(t, data.StatusLate, employeeUpdated.AttendanceStatus)
		assert.Equal(t, "grace@example.com", employeeUpdated.Email)
		assert.Equal(t, clockInTime, employeeUpdated.ClockInTime)
	}

	// read employee again
	employeeRead, err = s.EmployeeRead(ctx, id)
	assert.Nil(t, err)
	assert.Equal(t, employeeUpdated, employeeRead)

	// delete employee
	err = s.EmployeeDelete(ctx, id)
	assert.Nil(t, err)

	// confirm gone
	employeeRead, err = s.EmployeeRead(ctx, id)
	assert.ErrorIs(t, err, data.ErrEmployeeNotFound)
	assert.Nil(t, employeeRead)
	err = s.EmployeeDelete(ctx, id)
	assert.ErrorIs(t, err, data.ErrEmployeeNotFound)
	employeeUpdated, result, err = s.EmployeeUpdate(ctx, id, data.EmployeePartial{Name: &name})
	assert.Nil(t, err)
	assert.Equal(t, data.UpdateResultNotFound, result)
	assert.Nil(t, employeeUpdated)
}

func (s *sqlTest) TestDefaults(t *testing.T) {
	ctx := context.TODO()

	before := time.Now().Add(-time.Second).Unix()
	employee, err := s.EmployeeCreate(ctx, data.EmployeePartial{})
	assert.Nil(t, err)
	if !assert.NotNil(t, employee) {
		return
	}
	defer func() {
		_ = s.EmployeeDelete(ctx, employee.Id)
	}()
	assert.Empty(t, employee.Name)
	assert.Empty(t, employee.AttendanceStatus)
	assert.GreaterOrEqual(t, employee.ClockInTime, before)
	assert.LessOrEqual(t, employee.ClockInTime, time.Now().Add(time.Second).Unix())
}

func (s *sqlTest) TestSearch(t *testing.T) {
	ctx := context.TODO()

	err := s.sql.Clear(ctx)
	assert.Nil(t, err)
	var ids []int64
	for _, name := range []string{"Alice Smith", "Bob Jones", "alice cooper"} {
		employee, err := s.EmployeeCreate(ctx, data.EmployeePartial{Name: strPtr(name)})
		assert.Nil(t, err)
		if !assert.NotNil(t, employee) {
			return
		}
		ids = append(ids, employee.Id)
	}

	// all employees in id order
	employees, err := s.EmployeesSearch(ctx, data.EmployeeSearch{})
	assert.Nil(t, err)
	if assert.Len(t, employees, 3) {
		assert.Equal(t, ids[0], employees[0].Id)
		assert.Equal(t, ids[1], employees[1].Id)
		assert.Equal(t, ids[2], employees[2].Id)
	}

	// name filter is case sensitive
	employees, err = s.EmployeesSearch(ctx, data.EmployeeSearch{NameContains: "Alice"})
	assert.Nil(t, err)
	if assert.Len(t, employees, 1) {
		assert.Equal(t, "Alice Smith", employees[0].Name)
	}

	// ids and name combine
	employees, err = s.EmployeesSearch(ctx, data.EmployeeSearch{
		Ids:          []int64{ids[1], ids[2]},
		NameContains: "o",
	})
	assert.Nil(t, err)
	assert.Len(t, employees, 2)
	employees, err = s.EmployeesSearch(ctx, data.EmployeeSearch{
		Ids:          []int64{ids[0]},
		NameContains: "Bob",
	})
	assert.Nil(t, err)
	assert.Empty(t, employees)

	err = s.sql.Clear(ctx)
	assert.Nil(t, err)
	employees, err = s.EmployeesSearch(ctx, data.EmployeeSearch{})
	assert.Nil(t, err)
	assert.NotNil(t, employees)
	assert.Empty(t, employees)
}

func (s *sqlTest) run(t *testing.T) {
	ctx := context.TODO()

	err := s.sql.Configure(envs)
	assert.Nil(t, err)
	if err := s.sql.Open(ctx); err != nil {
		t.Skipf("store unavailable: %s", err)
	}
	defer func() {
		err := s.sql.Close(ctx)
		assert.Nil(t, err)
	}()

	t.Run("Crud", s.TestCrud)
	t.Run("Defaults", s.TestDefaults)
	t.Run("Search", s.TestSearch)
}

func TestSqlMemory(t *testing.T) {
	newSqlTest(sql.NewMemory()).run(t)
}

func TestSqlGormSqlite(t *testing.T) {
	newSqlTest(sql.NewGorm(sql.DialectSqlite)).run(t)
}

func TestSqlMySql(t *testing.T) {
	if testing.Short() {
		t.Skip("mysql requires a running database")
	}
	newSqlTest(sql.NewMySql()).run(t)
}
