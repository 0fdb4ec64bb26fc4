package sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"
)

const (
	databaseIsolation = sql.LevelSerializable
	tableEmployees    = "employees"
	employeeColumns   = "id, name, email, department, clock_in_time, attendance_status"
)

const mysqlSchema string = `CREATE TABLE IF NOT EXISTS employees (
	id BIGINT NOT NULL AUTO_INCREMENT,
	name VARCHAR(255) NULL,
	email VARCHAR(255) NULL,
	department VARCHAR(255) NULL,
	clock_in_time DATETIME NULL,
	attendance_status VARCHAR(32) NULL,
	PRIMARY KEY (id)
);`

// Sql is the record store; results are returned in id order and a failed
// mutation leaves the store unchanged.
type Sql interface {
	EmployeeCreate(ctx context.Context, employeePartial data.EmployeePartial) (*data.Employee, error)
	EmployeeRead(ctx context.Context, id int64) (*data.Employee, error)
	EmployeesSearch(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error)

	// EmployeeUpdate returns a nil error with a result other than
	// UpdateResultUpdated when the employee vanished or the update
	// lost a race with another writer.
	EmployeeUpdate(ctx context.Context, id int64, employeePartial data.EmployeePartial) (*data.Employee, data.UpdateResult, error)
	EmployeeDelete(ctx context.Context, id int64) error
}

type mySql struct {
	sync.RWMutex
	config databaseConfig
	*sql.DB
	utilities.Logger
	clock  internal.Clock
	opened bool
}

func NewMySql(parameters ...any) interface {
	internal.Configurer
	internal.Opener
	internal.Clearer
	Sql
} {
	m := &mySql{clock: internal.SystemClock}
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

func (s *mySql) Configure(envs map[string]string) error {
	s.Lock()
	defer s.Unlock()

	return internal.ProcessEnvs(envs, &s.config)
}

func (s *mySql) Open(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()

	if s.opened {
		return nil
	}
	db, err := sql.Open("mysql", s.config.mysqlDsn())
	if err != nil {
		return err
	}
	ctxPing, cancel := context.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctxPing); err != nil {
		_ = db.Close()
		return err
	}
	if s.config.Migrate {
		if _, err := db.ExecContext(ctx, mysqlSchema); err != nil {
			_ = db.Close()
			return errors.Wrap(err, "unable to migrate schema")
		}
	}
	s.DB = db
	s.opened = true
	s.Debug(ctx, "connected to mysql at %s:%s", s.config.Hostname, s.config.Port)
	return nil
}

func (s *mySql) Close(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()

	if !s.opened {
		return nil
	}
	if err := s.DB.Close(); err != nil {
		s.Error(ctx, "error while closing sql: %s", err)
	}
	s.opened = false
	return nil
}

// Clear removes every employee, it's used by tests and scenarios.
func (s *mySql) Clear(ctx context.Context) error {
	s.RLock()
	defer s.RUnlock()

	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	_, err := s.ExecContext(ctx, "DELETE FROM "+tableEmployees+";")
	return err
}

func (s *mySql) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.QueryTimeout)
}

func (s *mySql) EmployeeCreate(ctx context.Context, employeePartial data.EmployeePartial) (*data.Employee, error) {
	s.RLock()
	defer s.RUnlock()

	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	employee := &data.Employee{ClockInTime: s.clock().Unix()}
	employeePartial.Apply(employee)
	query := fmt.Sprintf(`INSERT INTO %s (name, email, department,
		clock_in_time, attendance_status) VALUES (?, ?, ?, ?, ?);`,
		tableEmployees)
	result, err := s.ExecContext(ctx, query, employee.Name, employee.Email,
		employee.Department, time.Unix(employee.ClockInTime, 0).UTC(),
		employee.AttendanceStatus)
	if err != nil {
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return employeeRead(ctx, s.DB, id)
}

func (s *mySql) EmployeeRead(ctx context.Context, id int64) (*data.Employee, error) {
	s.RLock()
	defer s.RUnlock()

	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	return employeeRead(ctx, s.DB, id)
}

func (s *mySql) EmployeesSearch(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error) {
	s.RLock()
	defer s.RUnlock()

	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	criteria, args := employeeCriteria(search)
	query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY id;`,
		employeeColumns, tableEmployees, criteria)
	rows, err := s.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	employees := []*data.Employee{}
	for rows.Next() {
		employee, err := employeeScan(rows.Scan)
		if err != nil {
			return nil, err
		}
		employees = append(employees, employee)
	}
	return employees, rows.Err()
}

func (s *mySql) EmployeeUpdate(ctx context.Context, id int64, employeePartial data.EmployeePartial) (*data.Employee, data.UpdateResult, error) {
	s.RLock()
	defer s.RUnlock()

	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	tx, err := s.BeginTx(ctx, &sql.TxOptions{Isolation: databaseIsolation})
	if err != nil {
		return nil, data.UpdateResultUpdated, err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.Error(ctx, "error while rolling back update of employee %d: %s", id, err)
		}
	}()
	employee, result, err := employeeUpdate(ctx, tx, id, employeePartial)
	if err != nil {
		if isConflict(err) {
			s.Debug(ctx, "conflict while updating employee %d: %s", id, err)
			return nil, data.UpdateResultConflict, nil
		}
		return nil, data.UpdateResultUpdated, err
	}
	if result != data.UpdateResultUpdated {
		return nil, result, nil
	}
	if err := tx.Commit(); err != nil {
		if isConflict(err) {
			return nil, data.UpdateResultConflict, nil
		}
		return nil, data.UpdateResultUpdated, err
	}
	return employee, data.UpdateResultUpdated, nil
}

func (s *mySql) EmployeeDelete(ctx context.Context, id int64) error {
	s.RLock()
	defer s.RUnlock()

	ctx, cancel := s.queryContext(ctx)
	defer cancel()
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?;`, tableEmployees)
	result, err := s.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return data.ErrEmployeeNotFound
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func employeeRead(ctx context.Context, q queryer, id int64, forUpdate ...bool) (*data.Employee, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`,
		employeeColumns, tableEmployees)
	if len(forUpdate) > 0 && forUpdate[0] {
		query += " FOR UPDATE"
	}
	employee, err := employeeScan(q.QueryRowContext(ctx, query+";", id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, data.ErrEmployeeNotFound
		}
		return nil, err
	}
	return employee, nil
}

func employeeUpdate(ctx context.Context, q queryer, id int64, employeePartial data.EmployeePartial) (*data.Employee, data.UpdateResult, error) {
	var args []any
	var updates []string

	if _, err := employeeRead(ctx, q, id, true); err != nil {
		if errors.Is(err, data.ErrEmployeeNotFound) {
			return nil, data.UpdateResultNotFound, nil
		}
		return nil, data.UpdateResultUpdated, err
	}
	if employeePartial.Name != nil {
		args = append(args, *employeePartial.Name)
		updates = append(updates, "name = ?")
	}
	if employeePartial.Email != nil {
		args = append(args, *employeePartial.Email)
		updates = append(updates, "email = ?")
	}
	if employeePartial.Department != nil {
		args = append(args, *employeePartial.Department)
		updates = append(updates, "department = ?")
	}
	if employeePartial.ClockInTime != nil {
		args = append(args, time.Unix(*employeePartial.ClockInTime, 0).UTC())
		updates = append(updates, "clock_in_time = ?")
	}
	if employeePartial.AttendanceStatus != nil {
		args = append(args, *employeePartial.AttendanceStatus)
		updates = append(updates, "attendance_status = ?")
	}
	if len(updates) > 0 {
		query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?;", tableEmployees,
			strings.Join(updates, ", "))
		args = append(args, id)
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return nil, data.UpdateResultUpdated, err
		}
	}
	employee, err := employeeRead(ctx, q, id)
	if err != nil {
		if errors.Is(err, data.ErrEmployeeNotFound) {
			return nil, data.UpdateResultNotFound, nil
		}
		return nil, data.UpdateResultUpdated, err
	}
	return employee, data.UpdateResultUpdated, nil
}

func employeeCriteria(search data.EmployeeSearch) (string, []any) {
	var args []any
	var criteria []string

	if ids := search.Ids; len(ids) > 0 {
		var parameters []string

		for _, id := range ids {
			args = append(args, id)
			parameters = append(parameters, "?")
		}
		criteria = append(criteria, fmt.Sprintf("id IN(%s)", strings.Join(parameters, ",")))
	}
	if search.NameContains != "" {
		args = append(args, search.NameContains)
		criteria = append(criteria, "LOCATE(?, BINARY name) > 0")
	}
	if len(criteria) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(criteria, " AND "), args
}

// employeeScan scans a row selected with employeeColumns, null columns
// become zero values.
func employeeScan(scanFx func(...any) error) (*data.Employee, error) {
	var name, email, department, attendanceStatus sql.NullString
	var clockInTime sql.NullTime

	employee := new(data.Employee)
	if err := scanFx(
		&employee.Id,
		&name,
		&email,
		&department,
		&clockInTime,
		&attendanceStatus,
	); err != nil {
		return nil, err
	}
	employee.Name = name.String
	employee.Email = email.String
	employee.Department = department.String
	employee.AttendanceStatus = attendanceStatus.String
	if clockInTime.Valid {
		employee.ClockInTime = clockInTime.Time.Unix()
	}
	return employee, nil
}

// isConflict reports whether err is a deadlock or lock wait timeout,
// mysql and postgres are recognized.
func isConflict(err error) bool {
	var mysqlError *mysql.MySQLError
	if errors.As(err, &mysqlError) {
		switch mysqlError.Number {
		case 1205, 1213:
			return true
		}
		return false
	}
	var sqlStateError interface{ SQLState() string }
	if errors.As(err, &sqlStateError) {
		switch sqlStateError.SQLState() {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}
