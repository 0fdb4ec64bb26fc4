package attendance_test

import (
	"strings"
	"testing"
	"time"

	"github.com/antonio-alexander/go-attendance/internal/attendance"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/report"

	"github.com/stretchr/testify/assert"
)

var (
	today     = time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)
	yesterday = today.AddDate(0, 0, -1)
)

func employee(id int64, name, status string, clockIn time.Time) *data.Employee {
	return &data.Employee{
		Id:               id,
		Name:             name,
		Department:       "Engineering",
		ClockInTime:      clockIn.Unix(),
		AttendanceStatus: status,
	}
}

func fixture() []*data.Employee {
	return []*data.Employee{
		employee(1, "Ada Lovelace", data.StatusPresent, today),
		employee(2, "Grace Hopper", data.StatusLate, today),
		employee(3, "Alan Turing", data.StatusAbsent, yesterday),
	}
}

func TestAggregate(t *testing.T) {
	for _, policy := range []data.AbsentPolicy{data.AbsentPolicyBroad, data.AbsentPolicyRefined} {
		t.Run(string(policy), func(t *testing.T) {
			dashboard := attendance.Aggregate(fixture(), today, policy)
			assert.Equal(t, 3, dashboard.Total)
			assert.Equal(t, 1, dashboard.PresentToday)
			assert.Equal(t, 1, dashboard.LateToday)
			assert.Equal(t, 1, dashboard.AbsentToday)
			assert.Equal(t, "2026-10-18", dashboard.ReferenceDate)
			assert.Equal(t, policy, dashboard.AbsentPolicy)
		})
	}
}

func TestAggregateNil(t *testing.T) {
	employees := []*data.Employee{nil, employee(1, "Ada Lovelace", data.StatusPresent, today), nil}

	// nil employees aren't counted, so the total matches the report's
	// data lines
	dashboard := attendance.Aggregate(employees, today, data.AbsentPolicyRefined)
	assert.Equal(t, 1, dashboard.Total)
	assert.Equal(t, 1, dashboard.PresentToday)
	lines := strings.Split(strings.TrimSpace(string(report.Bytes(employees, report.Options{Location: time.UTC}))), "\n")
	assert.Len(t, lines[1:], dashboard.Total)
}

func TestAggregatePolicies(t *testing.T) {
	employees := append(fixture(),
		employee(4, "Edsger Dijkstra", data.StatusLate, yesterday),
		employee(5, "Barbara Liskov", data.StatusPresent, yesterday),
	)

	// a stale late is absent under both policies, a stale present only
	// under the broad one
	broad := attendance.Aggregate(employees, today, data.AbsentPolicyBroad)
	assert.Equal(t, 5, broad.Total)
	assert.Equal(t, 1, broad.PresentToday)
	assert.Equal(t, 1, broad.LateToday)
	assert.Equal(t, 3, broad.AbsentToday)
	refined := attendance.Aggregate(employees, today, data.AbsentPolicyRefined)
	assert.Equal(t, 5, refined.Total)
	assert.Equal(t, 1, refined.PresentToday)
	assert.Equal(t, 1, refined.LateToday)
	assert.Equal(t, 2, refined.AbsentToday)
}

func TestAggregateReferenceDate(t *testing.T) {
	employees := fixture()
	dashboard := attendance.Aggregate(employees, today.AddDate(0, 0, 7), data.AbsentPolicyRefined)
	assert.Equal(t, len(employees), dashboard.Total)
	assert.Zero(t, dashboard.PresentToday)
	assert.Zero(t, dashboard.LateToday)

	// only the calendar day of the reference date matters
	dashboard = attendance.Aggregate(employees, today.Add(14*time.Hour), data.AbsentPolicyRefined)
	assert.Equal(t, 1, dashboard.PresentToday)
	assert.Equal(t, 1, dashboard.LateToday)
}

func TestAggregateCaseSensitive(t *testing.T) {
	employees := []*data.Employee{
		employee(1, "Ada Lovelace", "present", today),
		employee(2, "Grace Hopper", "LATE", today),
		employee(3, "Alan Turing", "On Leave", today),
	}
	dashboard := attendance.Aggregate(employees, today, data.AbsentPolicyBroad)
	assert.Equal(t, 3, dashboard.Total)
	assert.Zero(t, dashboard.PresentToday)
	assert.Zero(t, dashboard.LateToday)
	assert.Zero(t, dashboard.AbsentToday)
}

func TestAggregateLocation(t *testing.T) {
	// 23:30 UTC on the 17th is already the 18th in Tokyo
	location := time.FixedZone("JST", 9*60*60)
	clockIn := time.Date(2026, time.October, 17, 23, 30, 0, 0, time.UTC)
	employees := []*data.Employee{employee(1, "Ada Lovelace", data.StatusPresent, clockIn)}
	dashboard := attendance.Aggregate(employees, today.In(location), data.AbsentPolicyRefined)
	assert.Equal(t, 1, dashboard.PresentToday)
	dashboard = attendance.Aggregate(employees, today, data.AbsentPolicyRefined)
	assert.Zero(t, dashboard.PresentToday)
}

func TestAggregateEmpty(t *testing.T) {
	dashboard := attendance.Aggregate(nil, today, data.AbsentPolicyRefined)
	assert.Equal(t, data.Dashboard{
		ReferenceDate: "2026-10-18",
		AbsentPolicy:  data.AbsentPolicyRefined,
	}, dashboard)
}

func TestFilter(t *testing.T) {
	employees := append(fixture(), employee(4, "", data.StatusPresent, today))
	assert.Len(t, attendance.Filter(employees, ""), 4)
	filtered := attendance.Filter(employees, "Lovelace")
	if assert.Len(t, filtered, 1) {
		assert.Equal(t, int64(1), filtered[0].Id)
	}
	assert.Empty(t, attendance.Filter(employees, "lovelace"))
	assert.Len(t, attendance.Filter(employees, "A"), 2)
}

func TestCompute(t *testing.T) {
	result := attendance.Compute(fixture(), today, data.AbsentPolicyRefined, "Grace")
	assert.Equal(t, 3, result.Dashboard.Total)
	assert.Equal(t, "Grace", result.Search)
	if assert.Len(t, result.Employees, 1) {
		assert.Equal(t, "Grace Hopper", result.Employees[0].Name)
	}
	result = attendance.Compute(nil, today, data.AbsentPolicyRefined, "")
	assert.NotNil(t, result.Employees)
	assert.Empty(t, result.Employees)
}
