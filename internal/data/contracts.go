package data

const (
	RouteApi             string = "/api"
	RouteEmployees       string = RouteApi + "/employees"
	RouteEmployeesSearch string = RouteEmployees + "/search"
	RouteEmployeesId     string = RouteEmployees + "/{" + PathId + ":[0-9]+}"
	RouteEmployeesIdf    string = RouteEmployees + "/%d"
	RouteDashboard       string = RouteApi + "/dashboard"
	RouteReport          string = RouteApi + "/report"
	RouteImport          string = RouteApi + "/import"
	RouteCache           string = RouteApi + "/cache"
	RouteCacheCounters   string = RouteCache + "/counters"
	RouteTimers          string = RouteApi + "/timers"
	RouteVersion         string = "/version"
	RouteMetrics         string = "/metrics"
)

const (
	RouteViewEmployees      string = "/employees"
	RouteViewEmployeeCreate string = RouteViewEmployees + "/create"
	RouteViewEmployeeExport string = RouteViewEmployees + "/export"
	RouteViewEmployeeImport string = RouteViewEmployees + "/import"
	RouteViewEmployeeId     string = RouteViewEmployees + "/{" + PathId + ":[0-9]+}"
	RouteViewEmployeeEdit   string = RouteViewEmployeeId + "/edit"
	RouteViewEmployeeDelete string = RouteViewEmployeeId + "/delete"
)

const PathId string = "Id"

const (
	ParameterIds     string = "ids"
	ParameterSearch  string = "search"
	ParameterDate    string = "date"
	ParameterMessage string = "message"
	ParameterLevel   string = "level"
)

// DateFormat is the layout of the date query parameter.
const DateFormat string = "2006-01-02"

type Request struct {
	EmployeePartial EmployeePartial `json:"employee_partial"`
}

type Response struct {
	Employee  *Employee   `json:"employee,omitempty"`
	Employees []*Employee `json:"employees,omitempty"`
}
