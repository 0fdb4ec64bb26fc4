package report

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/antonio-alexander/go-attendance/internal/data"
)

const (
	Header          string = "ID,Name,Email,Department,ClockInTime,Status"
	ClockInFormat   string = "2006-01-02 15:04"
	FilenameFormat  string = "Attendance_Report_20060102"
	ContentType     string = "text/csv"
	FilenameSuffix  string = ".csv"
	fieldSeparator  string = ","
	recordSeparator string = "\n"
)

type Options struct {
	// Location is the time zone clock in times are rendered in, it
	// defaults to time.Local.
	Location *time.Location

	// SanitizeAllFields strips commas from every text field rather
	// than just the name.
	SanitizeAllFields bool
}

// Filename returns the attachment name of a report generated at now.
func Filename(now time.Time) string {
	return now.Format(FilenameFormat) + FilenameSuffix
}

// strip removes the field separator (commas are dropped, not escaped) and
// flattens line breaks so a value can't spill into another column or row.
func strip(s string, commas bool) string {
	if commas {
		s = strings.ReplaceAll(s, fieldSeparator, "")
	}
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

// Line renders a single employee as a report line (without the trailing
// newline).
func Line(employee *data.Employee, options Options) string {
	location := options.Location
	if location == nil {
		location = time.Local
	}
	return strings.Join([]string{
		strconv.FormatInt(employee.Id, 10),
		strip(employee.Name, true),
		strip(employee.Email, options.SanitizeAllFields),
		strip(employee.Department, options.SanitizeAllFields),
		employee.ClockIn(location).Format(ClockInFormat),
		strip(employee.AttendanceStatus, options.SanitizeAllFields),
	}, fieldSeparator)
}

// Write renders the header followed by one line per employee, in the
// order given.
func Write(w io.Writer, employees []*data.Employee, options Options) error {
	writer := bufio.NewWriter(w)
	if _, err := writer.WriteString(Header + recordSeparator); err != nil {
		return err
	}
	for _, employee := range employees {
		if employee == nil {
			continue
		}
		if _, err := writer.WriteString(Line(employee, options) + recordSeparator); err != nil {
			return err
		}
	}
	return writer.Flush()
}

// Bytes is Write into a buffer.
func Bytes(employees []*data.Employee, options Options) []byte {
	builder := &strings.Builder{}
	_ = Write(builder, employees, options)
	return []byte(builder.String())
}
