package data

import "encoding/json"

type EmployeePartial struct {
	Name             *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Email            *string `json:"email,omitempty" validate:"omitempty,max=255"`
	Department       *string `json:"department,omitempty" validate:"omitempty,max=255"`
	ClockInTime      *int64  `json:"clock_in_time,omitempty" validate:"omitempty,gte=0"`
	AttendanceStatus *string `json:"attendance_status,omitempty" validate:"omitempty,max=32"` //by convention Present, Late or Absent
}

// Empty reports whether no field is set.
func (e *EmployeePartial) Empty() bool {
	return e.Name == nil && e.Email == nil && e.Department == nil &&
		e.ClockInTime == nil && e.AttendanceStatus == nil
}

// Apply copies the set fields onto employee.
func (e *EmployeePartial) Apply(employee *Employee) {
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
		employee.ClockInTime = *e.ClockInTime
	}
	if e.AttendanceStatus != nil {
		employee.AttendanceStatus = *e.AttendanceStatus
	}
}

// EmployeeToPartial returns a partial with every field of employee set.
func EmployeeToPartial(employee *Employee) EmployeePartial {
	name, email, department := employee.Name, employee.Email, employee.Department
	clockInTime, attendanceStatus := employee.ClockInTime, employee.AttendanceStatus
	return EmployeePartial{
		Name:             &name,
		Email:            &email,
		Department:       &department,
		ClockInTime:      &clockInTime,
		AttendanceStatus: &attendanceStatus,
	}
}

func (e *EmployeePartial) MarshalBinary() ([]byte, error) {
	return json.Marshal(e)
}

func (e *EmployeePartial) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, e)
}
