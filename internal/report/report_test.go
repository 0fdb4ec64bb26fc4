package report_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/report"

	"github.com/stretchr/testify/assert"
)

var clockIn = time.Date(2026, time.October, 18, 9, 5, 0, 0, time.UTC)

func employees() []*data.Employee {
	return []*data.Employee{
		{
			Id:               1,
			Name:             "Lovelace, Ada",
			Email:            "ada@example.com",
			Department:       "Research, Analytical Engines",
			ClockInTime:      clockIn.Unix(),
			AttendanceStatus: data.StatusPresent,
		},
		{
			Id:               2,
			Name:             "Grace Hopper",
			Email:            "grace@example.com",
			Department:       "Compilers",
			ClockInTime:      clockIn.Add(time.Hour).Unix(),
			AttendanceStatus: data.StatusLate,
		},
	}
}

func TestWrite(t *testing.T) {
	buffer := &bytes.Buffer{}
	err := report.Write(buffer, employees(), report.Options{
		Location:          time.UTC,
		SanitizeAllFields: true,
	})
	assert.Nil(t, err)
	lines := strings.Split(strings.TrimSuffix(buffer.String(), "\n"), "\n")
	assert.Equal(t, []string{
		"ID,Name,Email,Department,ClockInTime,Status",
		"1,Lovelace Ada,ada@example.com,Research Analytical Engines,2026-10-18 09:05,Present",
		"2,Grace Hopper,grace@example.com,Compilers,2026-10-18 10:05,Late",
	}, lines)
	for _, line := range lines {
		assert.Equal(t, 5, strings.Count(line, ","))
	}
}

func TestWriteNameOnly(t *testing.T) {
	byts := report.Bytes(employees(), report.Options{Location: time.UTC})
	lines := strings.Split(strings.TrimSuffix(string(byts), "\n"), "\n")
	if assert.Len(t, lines, 3) {
		assert.Equal(t, report.Header, lines[0])
		assert.Equal(t, "1,Lovelace Ada,ada@example.com,Research, Analytical Engines,2026-10-18 09:05,Present", lines[1])
	}
}

func TestWriteEmpty(t *testing.T) {
	assert.Equal(t, report.Header+"\n", string(report.Bytes(nil, report.Options{})))
}

func TestWriteLineBreaks(t *testing.T) {
	employee := &data.Employee{Id: 7, Name: "Ada\nLovelace", ClockInTime: clockIn.Unix()}
	assert.Equal(t, "7,Ada Lovelace,,,2026-10-18 09:05,", report.Line(employee, report.Options{Location: time.UTC}))
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteError(t *testing.T) {
	err := report.Write(failingWriter{}, employees(), report.Options{})
	assert.NotNil(t, err)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "Attendance_Report_20261018.csv", report.Filename(clockIn))
}
