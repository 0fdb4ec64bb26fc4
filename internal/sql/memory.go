package sql

import (
	"context"
	"slices"
	"sync"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/attendance"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/utilities"
)

type memory struct {
	sync.RWMutex
	utilities.Logger
	clock     internal.Clock
	employees map[int64]*data.Employee
	lastId    int64
}

// NewMemory creates a store that keeps employees in a map, it's used for
// tests and demos.
func NewMemory(parameters ...any) interface {
	internal.Configurer
	internal.Opener
	internal.Clearer
	Sql
} {
	m := &memory{
		clock:     internal.SystemClock,
		employees: make(map[int64]*data.Employee),
	}
	for _, parameter := range parameters {
		switch v := parameter.(type) {
		case utilities.Logger:
			m.Logger = v
		case internal.Clock:
			m.clock = v
		}
	}
	if m.Logger == nil {
		m.Logger = utilities.NewNopLogger()
	}
	return m
}

func (m *memory) Configure(envs map[string]string) error {
	return nil
}

func (m *memory) Open(ctx context.Context) error {
	return nil
}

func (m *memory) Close(ctx context.Context) error {
	return nil
}

func (m *memory) Clear(ctx context.Context) error {
	m.Lock()
	defer m.Unlock()

	m.employees = make(map[int64]*data.Employee)
	return nil
}

func (m *memory) EmployeeCreate(ctx context.Context, employeePartial data.EmployeePartial) (*data.Employee, error) {
	m.Lock()
	defer m.Unlock()

	m.lastId++
	employee := &data.Employee{
		Id:          m.lastId,
		ClockInTime: m.clock().Unix(),
	}
	employeePartial.Apply(employee)
	m.employees[employee.Id] = employee
	m.Trace(ctx, "created employee %d", employee.Id)
	return data.CopyEmployee(employee), nil
}

func (m *memory) EmployeeRead(ctx context.Context, id int64) (*data.Employee, error) {
	m.RLock()
	defer m.RUnlock()

	employee, ok := m.employees[id]
	if !ok {
		return nil, data.ErrEmployeeNotFound
	}
	return data.CopyEmployee(employee), nil
}

func (m *memory) EmployeesSearch(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error) {
	m.RLock()
	defer m.RUnlock()

	employees := make([]*data.Employee, 0, len(m.employees))
	for id, employee := range m.employees {
		if len(search.Ids) > 0 && !slices.Contains(search.Ids, id) {
			continue
		}
		employees = append(employees, data.CopyEmployee(employee))
	}
	data.SortEmployees(employees)
	return attendance.Filter(employees, search.NameContains), nil
}

func (m *memory) EmployeeUpdate(ctx context.Context, id int64, employeePartial data.EmployeePartial) (*data.Employee, data.UpdateResult, error) {
	m.Lock()
	defer m.Unlock()

	employee, ok := m.employees[id]
	if !ok {
		return nil, data.UpdateResultNotFound, nil
	}
	employeePartial.Apply(employee)
	return data.CopyEmployee(employee), data.UpdateResultUpdated, nil
}

func (m *memory) EmployeeDelete(ctx context.Context, id int64) error {
	m.Lock()
	defer m.Unlock()

	if _, ok := m.employees[id]; !ok {
		return data.ErrEmployeeNotFound
	}
	delete(m.employees, id)
	return nil
}
