package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/metrics"
	"github.com/antonio-alexander/go-attendance/internal/report"

	"github.com/gorilla/mux"
)

func (s *service) endpointVersion(writer http.ResponseWriter, request *http.Request) {
	fmt.Fprintf(writer,
		"go-attendance\n"+
			"Version: \"%s\"\n"+
			"Git Commit: \"%s\"\n"+
			"Git Branch: \"%s\"\n",
		Version, GitCommit, GitBranch)
}

func decodeRequest(request *http.Request) (*data.Request, error) {
	employeeRequest := &data.Request{}
	byts, err := io.ReadAll(request.Body)
	defer request.Body.Close()
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(byts, employeeRequest); err != nil {
		return nil, badRequest(err)
	}
	return employeeRequest, nil
}

func (s *service) endpointEmployeeCreate(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "employee_create")()
	employeeRequest, err := decodeRequest(request)
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	employee, err := s.EmployeeCreate(ctx, employeeRequest.EmployeePartial)
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	s.handleResponse(writer, nil, &data.Response{
		Employee: employee,
	})
	s.Trace(ctx, "executed employee_create: %d", employee.Id)
}

func (s *service) endpointEmployeeRead(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "employee_read")()
	id, err := idFromPath(mux.Vars(request))
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	employee, err := s.EmployeeRead(ctx, id)
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	s.handleResponse(writer, nil, &data.Response{
		Employee: employee,
	})
	s.Trace(ctx, "executed employee_read: %d", employee.Id)
}

func (s *service) endpointEmployeesSearch(writer http.ResponseWriter, request *http.Request) {
	var search data.EmployeeSearch

	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "employees_search")()
	search.FromParams(request.URL.Query())
	employees, err := s.EmployeesSearch(ctx, search)
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	s.handleResponse(writer, nil, &data.Response{
		Employees: employees,
	})
	s.Trace(ctx, "executed employees_search")
}

func (s *service) endpointEmployeeUpdate(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "employee_update")()
	id, err := idFromPath(mux.Vars(request))
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	employeeRequest, err := decodeRequest(request)
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	employee, result, err := s.EmployeeUpdate(ctx, id, employeeRequest.EmployeePartial)
	if err == nil {
		err = result.Err()
	}
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	s.handleResponse(writer, nil, &data.Response{
		Employee: employee,
	})
	s.Trace(ctx, "executed employee_update: %d", employee.Id)
}

func (s *service) endpointEmployeeDelete(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "employee_delete")()
	id, err := idFromPath(mux.Vars(request))
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	if err := s.EmployeeDelete(ctx, id); err != nil {
		s.handleResponse(writer, err)
		return
	}
	s.handleResponse(writer, nil)
	s.Trace(ctx, "executed employee_delete: %d", id)
}

// referenceDate parses the date parameter in the configured location, it's
// now when absent.
func (s *service) referenceDate(request *http.Request) (time.Time, error) {
	date := request.URL.Query().Get(data.ParameterDate)
	if date == "" {
		return s.Now(), nil
	}
	referenceDate, err := time.ParseInLocation(data.DateFormat, date, s.Location())
	if err != nil {
		return time.Time{}, badRequest(err)
	}
	return referenceDate, nil
}

func (s *service) endpointDashboard(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "dashboard")()
	referenceDate, err := s.referenceDate(request)
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	attendance, err := s.Dashboard(ctx, referenceDate,
		request.URL.Query().Get(data.ParameterSearch))
	if err != nil {
		s.handleResponse(writer, err)
		return
	}
	metrics.ObserveDashboard(attendance.Dashboard, s.Now())
	s.handleResponse(writer, nil, attendance)
	s.Trace(ctx, "executed dashboard")
}

// writeReport renders the report to a buffer so a failure can still be
// reported with an error status.
func (s *service) writeReport(writer http.ResponseWriter, request *http.Request) error {
	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "report")()
	buffer := &bytes.Buffer{}
	filename, err := s.Report(ctx, buffer)
	if err != nil {
		return err
	}
	metrics.ObserveReport()
	writer.Header().Set("Content-Type", report.ContentType)
	writer.Header().Set("Content-Disposition",
		mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	if _, err := buffer.WriteTo(writer); err != nil {
		s.Error(ctx, "error while writing report: %s", err)
	}
	s.Trace(ctx, "executed report: %s", filename)
	return nil
}

func (s *service) endpointReport(writer http.ResponseWriter, request *http.Request) {
	if err := s.writeReport(writer, request); err != nil {
		s.handleResponse(writer, err)
	}
}

// endpointImport always responds with the import result, failures are
// described by it rather than the status code.
func (s *service) endpointImport(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "employee_import")()
	result := s.EmployeeImport(ctx)
	metrics.ObserveImport(result)
	s.handleResponse(writer, nil, result)
	s.Trace(ctx, "executed employee_import: %t", result.Succeeded())
}

func (s *service) endpointCacheClear(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	if s.cache != nil {
		if err := s.cache.Clear(ctx); err != nil {
			s.handleResponse(writer, err)
			return
		}
		s.Trace(ctx, "executed cache_clear")
	}
	s.handleResponse(writer, nil)
}

func (s *service) endpointCacheCountersRead(writer http.ResponseWriter, _ *http.Request) {
	s.handleResponse(writer, nil, s.Counter.ReadAll())
}

func (s *service) endpointCacheCountersClear(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	s.Counter.Reset()
	s.handleResponse(writer, nil)
	s.Trace(ctx, "executed cache_counters_clear")
}

func (s *service) endpointTimersRead(writer http.ResponseWriter, _ *http.Request) {
	s.handleResponse(writer, nil, s.Timers.ReadAll())
}

func (s *service) endpointTimersClear(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	s.Timers.Clear()
	s.handleResponse(writer, nil)
	s.Trace(ctx, "executed timers_clear")
}
