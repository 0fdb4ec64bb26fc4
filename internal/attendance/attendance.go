// Package attendance computes the dashboard counts of the attendance
// register and selects the employees to display; everything in it is a
// pure function of its inputs.
package attendance

import (
	"strings"
	"time"

	"github.com/antonio-alexander/go-attendance/internal/data"
)

// SameDay reports whether a and b fall on the same calendar day in the
// location of b.
func SameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Aggregate counts employees as of referenceDate (only its calendar day,
// in its location, is considered). The daily counts can overlap and are
// not expected to sum to the total.
func Aggregate(employees []*data.Employee, referenceDate time.Time, policy data.AbsentPolicy) data.Dashboard {
	dashboard := data.Dashboard{
		ReferenceDate: referenceDate.Format(data.DateFormat),
		AbsentPolicy:  policy,
	}
	for _, employee := range employees {
		if employee == nil {
			continue
		}
		dashboard.Total++
		today := SameDay(employee.ClockIn(referenceDate.Location()), referenceDate)
		status := employee.AttendanceStatus
		switch {
		case status == data.StatusPresent && today:
			dashboard.PresentToday++
		case status == data.StatusLate && today:
			dashboard.LateToday++
		}
		if absent(status, today, policy) {
			dashboard.AbsentToday++
		}
	}
	return dashboard
}

func absent(status string, today bool, policy data.AbsentPolicy) bool {
	if status == data.StatusAbsent {
		return true
	}
	switch policy {
	case data.AbsentPolicyBroad:
		return !today
	default:
		return !today && status != data.StatusPresent
	}
}

// Filter returns the employees whose name contains search (case
// sensitive); an empty search returns every employee.
func Filter(employees []*data.Employee, search string) []*data.Employee {
	if search == "" {
		return employees
	}
	filtered := make([]*data.Employee, 0, len(employees))
	for _, employee := range employees {
		if employee == nil {
			continue
		}
		if strings.Contains(employee.Name, search) {
			filtered = append(filtered, employee)
		}
	}
	return filtered
}

// Compute aggregates every employee and filters the ones to display.
func Compute(employees []*data.Employee, referenceDate time.Time, policy data.AbsentPolicy, search string) *data.Attendance {
	displayed := Filter(employees, search)
	if displayed == nil {
		displayed = []*data.Employee{}
	}
	return &data.Attendance{
		Dashboard: Aggregate(employees, referenceDate, policy),
		Search:    search,
		Employees: displayed,
	}
}
