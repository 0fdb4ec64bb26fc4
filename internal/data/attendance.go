package data

import "strings"

const (
	StatusPresent string = "Present"
	StatusLate    string = "Late"
	StatusAbsent  string = "Absent"
)

// AbsentPolicy selects how absences are counted for a reference date; both
// policies can count an employee as absent who is also counted elsewhere.
type AbsentPolicy string

const (
	// AbsentPolicyBroad counts an employee as absent when their status is
	// Absent or they did not clock in on the reference date.
	AbsentPolicyBroad AbsentPolicy = "broad"

	// AbsentPolicyRefined counts an employee as absent when their status is
	// Absent or they did not clock in on the reference date and their
	// status isn't Present.
	AbsentPolicyRefined AbsentPolicy = "refined"
)

func AtoAbsentPolicy(s string) AbsentPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	default:
		return AbsentPolicyRefined
	case "broad", "a":
		return AbsentPolicyBroad
	}
}

type Dashboard struct {
	Total         int          `json:"total"`
	PresentToday  int          `json:"present_today"`
	LateToday     int          `json:"late_today"`
	AbsentToday   int          `json:"absent_today"`
	ReferenceDate string       `json:"reference_date"` //YYYY-MM-DD
	AbsentPolicy  AbsentPolicy `json:"absent_policy"`
}

// Attendance is the dashboard computed over every employee along with the
// employees selected for display.
type Attendance struct {
	Dashboard Dashboard   `json:"dashboard"`
	Search    string      `json:"search,omitempty"`
	Employees []*Employee `json:"employees"`
}
