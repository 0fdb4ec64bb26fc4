package sql

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/attendance"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Dialect selects the database gorm talks to.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySql    Dialect = "mysql"
	DialectSqlite   Dialect = "sqlite"
)

const sqliteMemory string = ":memory:"

type employeeRow struct {
	Id               int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Name             *string    `gorm:"column:name;size:255"`
	Email            *string    `gorm:"column:email;size:255"`
	Department       *string    `gorm:"column:department;size:255"`
	ClockInTime      *time.Time `gorm:"column:clock_in_time"`
	AttendanceStatus *string    `gorm:"column:attendance_status;size:32"`
}

func (employeeRow) TableName() string {
	return tableEmployees
}

func (e *employeeRow) toEmployee() *data.Employee {
	employee := &data.Employee{Id: e.Id}
	if e.Name != nil {
		employee.Name = *e.Name
	}
	if e.Email != nil {
		employee.Email = *e.Email
	}
	if e.Department != nil {
		employee.Department = *e.Department
	}
	if e.ClockInTime != nil {
		employee.ClockInTime = e.ClockInTime.Unix()
	}
	if e.AttendanceStatus != nil {
		employee.AttendanceStatus = *e.AttendanceStatus
	}
	return employee
}

func employeeToRow(employee *data.Employee) *employeeRow {
	name, email, department := employee.Name, employee.Email, employee.Department
	clockInTime := time.Unix(employee.ClockInTime, 0).UTC()
	attendanceStatus := employee.AttendanceStatus
	return &employeeRow{
		Id:               employee.Id,
		Name:             &name,
		Email:            &email,
		Department:       &department,
		ClockInTime:      &clockInTime,
		AttendanceStatus: &attendanceStatus,
	}
}

func partialToUpdates(employeePartial data.EmployeePartial) map[string]any {
	updates := make(map[string]any)
	if employeePartial.Name != nil {
		updates["name"] = *employeePartial.Name
	}
	if employeePartial.Email != nil {
		updates["email"] = *employeePartial.Email
	}
	if employeePartial.Department != nil {
		updates["department"] = *employeePartial.Department
	}
	if employeePartial.ClockInTime != nil {
		updates["clock_in_time"] = time.Unix(*employeePartial.ClockInTime, 0).UTC()
	}
	if employeePartial.AttendanceStatus != nil {
		updates["attendance_status"] = *employeePartial.AttendanceStatus
	}
	return updates
}

type gormSql struct {
	sync.RWMutex
	config struct {
		Database databaseConfig
		Dialect  string `env:"GORM_DIALECT, default=sqlite"`
		Dsn      string `env:"GORM_DSN"`
	}
	dialect Dialect
	db      *gorm.DB
	utilities.Logger
	clock  internal.Clock
	opened bool
}

// NewGorm creates a store backed by gorm; a Dialect parameter takes
// precedence over GORM_DIALECT.
func NewGorm(parameters ...any) interface {
	internal.Configurer
	internal.Opener
	internal.Clearer
	Sql
} {
	g := &gormSql{clock: internal.SystemClock}
	for _, parameter := range parameters {
		switch v := parameter.(type) {
		case utilities.Logger:
			g.Logger = v
		case internal.Clock:
			g.clock = v
		case Dialect:
			g.dialect = v
		}
	}
	if g.Logger == nil {
		g.Logger = utilities.NewNopLogger()
	}
	return g
}

func (g *gormSql) Configure(envs map[string]string) error {
	g.Lock()
	defer g.Unlock()

	if err := internal.ProcessEnvs(envs, &g.config); err != nil {
		return err
	}
	if g.dialect == "" {
		g.dialect = Dialect(strings.ToLower(g.config.Dialect))
	}
	return nil
}

func (g *gormSql) dialector() (gorm.Dialector, error) {
	dsn := g.config.Dsn
	switch g.dialect {
	default:
		return nil, errors.Errorf("unsupported gorm dialect: %q", g.dialect)
	case DialectPostgres:
		if dsn == "" {
			dsn = g.config.Database.postgresDsn()
		}
		return postgres.Open(dsn), nil
	case DialectMySql:
		if dsn == "" {
			dsn = g.config.Database.mysqlDsn()
		}
		return gormmysql.Open(dsn), nil
	case DialectSqlite, "":
		if dsn == "" {
			dsn = sqliteMemory
		}
		return sqlite.Open(dsn), nil
	}
}

func (g *gormSql) Open(ctx context.Context) error {
	g.Lock()
	defer g.Unlock()

	if g.opened {
		return nil
	}
	dialector, err := g.dialector()
	if err != nil {
		return err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if g.dialect == DialectSqlite || g.dialect == "" {
		// every connection to an in-memory database is its own database
		sqlDB.SetMaxOpenConns(1)
	}
	ctxPing, cancel := context.WithTimeout(ctx, g.config.Database.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctxPing); err != nil {
		_ = sqlDB.Close()
		return err
	}
	if g.config.Database.Migrate {
		if err := db.WithContext(ctx).AutoMigrate(&employeeRow{}); err != nil {
			_ = sqlDB.Close()
			return errors.Wrap(err, "unable to migrate schema")
		}
	}
	g.db = db
	g.opened = true
	g.Debug(ctx, "connected to %s via gorm", g.dialect)
	return nil
}

func (g *gormSql) Close(ctx context.Context) error {
	g.Lock()
	defer g.Unlock()

	if !g.opened {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if err != nil {
		g.Error(ctx, "error while closing gorm: %s", err)
	}
	g.opened = false
	return nil
}

func (g *gormSql) Clear(ctx context.Context) error {
	g.RLock()
	defer g.RUnlock()

	return g.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&employeeRow{}).Error
}

func (g *gormSql) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.config.Database.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.config.Database.QueryTimeout)
}

func (g *gormSql) EmployeeCreate(ctx context.Context, employeePartial data.EmployeePartial) (*data.Employee, error) {
	g.RLock()
	defer g.RUnlock()

	ctx, cancel := g.queryContext(ctx)
	defer cancel()
	employee := &data.Employee{ClockInTime: g.clock().Unix()}
	employeePartial.Apply(employee)
	row := employeeToRow(employee)
	row.Id = 0
	if err := g.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row.toEmployee(), nil
}

func (g *gormSql) EmployeeRead(ctx context.Context, id int64) (*data.Employee, error) {
	g.RLock()
	defer g.RUnlock()

	ctx, cancel := g.queryContext(ctx)
	defer cancel()
	row := &employeeRow{}
	if err := g.db.WithContext(ctx).First(row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, data.ErrEmployeeNotFound
		}
		return nil, err
	}
	return row.toEmployee(), nil
}

// EmployeesSearch filters names in go since LIKE isn't case sensitive
// for every dialect.
func (g *gormSql) EmployeesSearch(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error) {
	var rows []*employeeRow

	g.RLock()
	defer g.RUnlock()

	ctx, cancel := g.queryContext(ctx)
	defer cancel()
	tx := g.db.WithContext(ctx).Order("id")
	if len(search.Ids) > 0 {
		tx = tx.Where("id IN ?", search.Ids)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	employees := make([]*data.Employee, 0, len(rows))
	for _, row := range rows {
		employees = append(employees, row.toEmployee())
	}
	return attendance.Filter(employees, search.NameContains), nil
}

func (g *gormSql) EmployeeUpdate(ctx context.Context, id int64, employeePartial data.EmployeePartial) (*data.Employee, data.UpdateResult, error) {
	var employee *data.Employee

	g.RLock()
	defer g.RUnlock()

	ctx, cancel := g.queryContext(ctx)
	defer cancel()
	result := data.UpdateResultUpdated
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &employeeRow{}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = data.UpdateResultNotFound
			}
			return err
		}
		if updates := partialToUpdates(employeePartial); len(updates) > 0 {
			if err := tx.Model(&employeeRow{}).Where("id = ?", id).
				Updates(updates).Error; err != nil {
				return err
			}
		}
		row = &employeeRow{}
		if err := tx.First(row, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = data.UpdateResultNotFound
			}
			return err
		}
		employee = row.toEmployee()
		return nil
	})
	switch {
	case result == data.UpdateResultNotFound:
		return nil, result, nil
	case err != nil && isConflict(err):
		g.Debug(ctx, "conflict while updating employee %d: %s", id, err)
		return nil, data.UpdateResultConflict, nil
	case err != nil:
		return nil, data.UpdateResultUpdated, fmt.Errorf("unable to update employee %d: %w", id, err)
	}
	return employee, data.UpdateResultUpdated, nil
}

func (g *gormSql) EmployeeDelete(ctx context.Context, id int64) error {
	g.RLock()
	defer g.RUnlock()

	ctx, cancel := g.queryContext(ctx)
	defer cancel()
	result := g.db.WithContext(ctx).Delete(&employeeRow{}, id)
	if err := result.Error; err != nil {
		return err
	}
	if result.RowsAffected == 0 {
		return data.ErrEmployeeNotFound
	}
	return nil
}
