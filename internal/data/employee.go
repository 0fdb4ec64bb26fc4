package data

import (
	"cmp"
	"encoding/json"
	"slices"
	"time"
)

type Employee struct {
	Id               int64  `json:"id"`
	Name             string `json:"name"`
	Email            string `json:"email"`
	Department       string `json:"department"`
	ClockInTime      int64  `json:"clock_in_time"` //unix seconds
	AttendanceStatus string `json:"attendance_status"`
}

// ClockIn returns the clock in time in the given location.
func (e *Employee) ClockIn(location *time.Location) time.Time {
	if location == nil {
		location = time.Local
	}
	return time.Unix(e.ClockInTime, 0).In(location)
}

func (e *Employee) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

func (e *Employee) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}

func CopyEmployee(e *Employee) *Employee {
	employee := &Employee{}
	*employee = *e
	return employee
}

// SortEmployees sorts employees in id order.
func SortEmployees(employees []*Employee) {
	slices.SortFunc(employees, func(a, b *Employee) int {
		return cmp.Compare(a.Id, b.Id)
	})
}
