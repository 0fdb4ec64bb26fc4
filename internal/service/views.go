package service

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/metrics"
	"github.com/antonio-alexander/go-attendance/internal/report"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
)

//go:embed templates/*.html
var templates embed.FS

const (
	templateLayout  = "layout.html"
	templateIndex   = "index.html"
	templateDetails = "details.html"
	templateForm    = "form.html"
	templateDelete  = "delete.html"
	templateError   = "error.html"
)

const (
	levelSuccess = "success"
	levelWarning = "warning"
	levelInfo    = "info"
)

// formTimeLayout is the layout of a datetime-local input.
const formTimeLayout string = "2006-01-02T15:04"

type employeeForm struct {
	Id               int64  `schema:"id"`
	Name             string `schema:"name"`
	Email            string `schema:"email"`
	Department       string `schema:"department"`
	ClockInTime      string `schema:"clock_in_time"`
	AttendanceStatus string `schema:"attendance_status"`
}

func employeeToForm(employee *data.Employee, location *time.Location) employeeForm {
	return employeeForm{
		Id:               employee.Id,
		Name:             employee.Name,
		Email:            employee.Email,
		Department:       employee.Department,
		ClockInTime:      employee.ClockIn(location).Format(formTimeLayout),
		AttendanceStatus: employee.AttendanceStatus,
	}
}

// toPartial converts the form into a partial, an empty clock in time is
// left unset.
func (f *employeeForm) toPartial(location *time.Location) (data.EmployeePartial, error) {
	name, email, department := f.Name, f.Email, f.Department
	attendanceStatus := strings.TrimSpace(f.AttendanceStatus)
	employeePartial := data.EmployeePartial{
		Name:             &name,
		Email:            &email,
		Department:       &department,
		AttendanceStatus: &attendanceStatus,
	}
	if clockIn := strings.TrimSpace(f.ClockInTime); clockIn != "" {
		t, err := time.ParseInLocation(formTimeLayout, clockIn, location)
		if err != nil {
			validationError := &data.ValidationError{}
			validationError.Add("clock_in_time", "must be a valid date and time")
			return data.EmployeePartial{}, validationError
		}
		clockInTime := t.Unix()
		employeePartial.ClockInTime = &clockInTime
	}
	return employeePartial, nil
}

type page struct {
	Title      string
	Message    string
	Level      string
	Search     string
	Action     string
	CsrfField  template.HTML
	Attendance *data.Attendance
	Employee   *data.Employee
	Form       employeeForm
	Errors     map[string]string
	Status     int
	Error      string
}

func (s *service) parseViews() (map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"clockIn": func(employee *data.Employee) string {
			return employee.ClockIn(s.Location()).Format(report.ClockInFormat)
		},
		"statuses": func() []string {
			return []string{data.StatusPresent, data.StatusLate, data.StatusAbsent}
		},
		"statusClass": func(status string) string {
			switch status {
			default:
				return "secondary"
			case data.StatusPresent:
				return "success"
			case data.StatusLate:
				return "warning"
			case data.StatusAbsent:
				return "danger"
			}
		},
	}
	views := make(map[string]*template.Template)
	for _, name := range []string{templateIndex, templateDetails, templateForm, templateDelete, templateError} {
		view, err := template.New(name).Funcs(funcs).ParseFS(templates,
			"templates/"+templateLayout, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("unable to parse view %s: %w", name, err)
		}
		views[name] = view
	}
	return views, nil
}

func (s *service) render(writer http.ResponseWriter, request *http.Request, name string, status int, p *page) {
	ctx := internal.CtxFromRequest(request)
	p.CsrfField = csrf.TemplateField(request)
	buffer := &bytes.Buffer{}
	if err := s.views[name].ExecuteTemplate(buffer, templateLayout, p); err != nil {
		s.Error(ctx, "error while rendering %s: %s", name, err)
		http.Error(writer, http.StatusText(http.StatusInternalServerError),
			http.StatusInternalServerError)
		return
	}
	writer.Header().Set("Content-Type", "text/html; charset=utf-8")
	writer.WriteHeader(status)
	if _, err := buffer.WriteTo(writer); err != nil {
		s.Error(ctx, "error while writing %s: %s", name, err)
	}
}

// redirectIndex redirects to the employee list with a flash message.
func redirectIndex(writer http.ResponseWriter, request *http.Request, message, level string) {
	uri := data.RouteViewEmployees
	if message != "" {
		uri += "?" + url.Values{
			data.ParameterMessage: {message},
			data.ParameterLevel:   {level},
		}.Encode()
	}
	http.Redirect(writer, request, uri, http.StatusSeeOther)
}

func (s *service) viewError(writer http.ResponseWriter, request *http.Request, err error) {
	status := errorStatus(err)
	message := "Something went wrong."
	switch status {
	case http.StatusNotFound:
		message = "The employee couldn't be found."
	case http.StatusConflict:
		message = "The employee was changed by someone else, reload it and try again."
	case http.StatusForbidden:
		message = "Changes are disabled."
	case http.StatusBadRequest:
		message = err.Error()
	default:
		s.Error(internal.CtxFromRequest(request), "error while handling view: %s", err)
	}
	s.render(writer, request, templateError, status, &page{
		Title:  http.StatusText(status),
		Status: status,
		Error:  message,
	})
}

func (s *service) viewForbidden(writer http.ResponseWriter, request *http.Request) {
	message := "Forbidden."
	if err := csrf.FailureReason(request); err != nil {
		message = err.Error()
	}
	s.render(writer, request, templateError, http.StatusForbidden, &page{
		Title:  http.StatusText(http.StatusForbidden),
		Status: http.StatusForbidden,
		Error:  message,
	})
}

func (s *service) viewIndex(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "view_index")()
	query := request.URL.Query()
	search := query.Get(data.ParameterSearch)
	attendance, err := s.Dashboard(ctx, s.Now(), search)
	if err != nil {
		s.viewError(writer, request, err)
		return
	}
	metrics.ObserveDashboard(attendance.Dashboard, s.Now())
	level := query.Get(data.ParameterLevel)
	switch level {
	case levelSuccess, levelWarning, levelInfo:
	default:
		level = levelInfo
	}
	s.render(writer, request, templateIndex, http.StatusOK, &page{
		Title:      "Employees",
		Message:    query.Get(data.ParameterMessage),
		Level:      level,
		Search:     search,
		Attendance: attendance,
	})
}

func (s *service) viewDetails(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	id, err := idFromPath(mux.Vars(request))
	if err != nil {
		s.viewError(writer, request, err)
		return
	}
	employee, err := s.EmployeeRead(ctx, id)
	if err != nil {
		s.viewError(writer, request, err)
		return
	}
	s.render(writer, request, templateDetails, http.StatusOK, &page{
		Title:    "Details",
		Employee: employee,
	})
}

func (s *service) decodeForm(request *http.Request) (employeeForm, error) {
	var form employeeForm

	if err := request.ParseForm(); err != nil {
		return form, badRequest(err)
	}
	if err := s.decoder.Decode(&form, request.PostForm); err != nil {
		return form, badRequest(err)
	}
	return form, nil
}

func (s *service) renderForm(writer http.ResponseWriter, request *http.Request, status int, title, action string, form employeeForm, err error) {
	var validationError *data.ValidationError

	p := &page{
		Title:  title,
		Action: action,
		Form:   form,
	}
	if errors.As(err, &validationError) {
		p.Errors = validationError.Fields
	}
	s.render(writer, request, templateForm, status, p)
}

func (s *service) viewCreate(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	if request.Method == http.MethodGet {
		s.renderForm(writer, request, http.StatusOK, "Create",
			data.RouteViewEmployeeCreate, employeeForm{
				ClockInTime:      s.Now().Format(formTimeLayout),
				AttendanceStatus: data.StatusPresent,
			}, nil)
		return
	}
	defer s.startTimer(ctx, "view_create")()
	form, err := s.decodeForm(request)
	if err != nil {
		s.viewError(writer, request, err)
		return
	}
	employeePartial, err := form.toPartial(s.Location())
	if err == nil {
		var employee *data.Employee

		if employee, err = s.EmployeeCreate(ctx, employeePartial); err == nil {
			s.Trace(ctx, "created employee %d from view", employee.Id)
			redirectIndex(writer, request,
				fmt.Sprintf("Employee %q was created.", employee.Name), levelSuccess)
			return
		}
	}
	if data.IsValidationError(err) {
		s.renderForm(writer, request, http.StatusBadRequest, "Create",
			data.RouteViewEmployeeCreate, form, err)
		return
	}
	s.viewError(writer, request, err)
}

func (s *service) viewEdit(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	id, err := idFromPath(mux.Vars(request))
	if err != nil {
		s.viewError(writer, request, err)
		return
	}
	action := fmt.Sprintf(data.RouteViewEmployees+"/%d/edit", id)
	if request.Method == http.MethodGet {
		employee, err := s.EmployeeRead(ctx, id)
		if err != nil {
			s.viewError(writer, request, err)
			return
		}
		s.renderForm(writer, request, http.StatusOK, "Edit", action,
			employeeToForm(employee, s.Location()), nil)
		return
	}
	defer s.startTimer(ctx, "view_edit")()
	form, err := s.decodeForm(request)
	if err != nil {
		s.viewError(writer, request, err)
		return
	}
	if form.Id != id {
		s.viewError(writer, request, data.ErrEmployeeNotFound)
		return
	}
	employeePartial, err := form.toPartial(s.Location())
	if err == nil {
		var employee *data.Employee
		var result data.UpdateResult

		employee, result, err = s.EmployeeUpdate(ctx, id, employeePartial)
		if err == nil {
			err = result.Err()
		}
		if err == nil {
			redirectIndex(writer, request,
				fmt.Sprintf("Employee %q was updated.", employee.Name), levelSuccess)
			return
		}
	}
	if data.IsValidationError(err) {
		s.renderForm(writer, request, http.StatusBadRequest, "Edit", action, form, err)
		return
	}
	s.viewError(writer, request, err)
}

// viewDelete confirms before deleting; deleting an employee that no
// longer exists still redirects to the list.
func (s *service) viewDelete(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	id, err := idFromPath(mux.Vars(request))
	if err != nil {
		s.viewError(writer, request, err)
		return
	}
	if request.Method == http.MethodGet {
		employee, err := s.EmployeeRead(ctx, id)
		if err != nil {
			s.viewError(writer, request, err)
			return
		}
		s.render(writer, request, templateDelete, http.StatusOK, &page{
			Title:    "Delete",
			Action:   fmt.Sprintf(data.RouteViewEmployees+"/%d/delete", id),
			Employee: employee,
		})
		return
	}
	defer s.startTimer(ctx, "view_delete")()
	if err := s.EmployeeDelete(ctx, id); err != nil && !errors.Is(err, data.ErrEmployeeNotFound) {
		s.viewError(writer, request, err)
		return
	}
	redirectIndex(writer, request, "Employee was deleted.", levelSuccess)
}

func (s *service) viewExport(writer http.ResponseWriter, request *http.Request) {
	if err := s.writeReport(writer, request); err != nil {
		s.viewError(writer, request, err)
	}
}

func (s *service) viewImport(writer http.ResponseWriter, request *http.Request) {
	ctx := internal.CtxFromRequest(request)
	defer s.startTimer(ctx, "view_import")()
	result := s.EmployeeImport(ctx)
	metrics.ObserveImport(result)
	if !result.Succeeded() {
		redirectIndex(writer, request,
			fmt.Sprintf("Import failed (%s): %s", result.Failure, result.Error), levelWarning)
		return
	}
	redirectIndex(writer, request,
		fmt.Sprintf("Employee %q was imported.", result.Employee.Name), levelSuccess)
}
