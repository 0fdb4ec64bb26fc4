package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/cache"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/pkg/errors"
)

type Client interface {
	EmployeeCreate(ctx context.Context,
		employeePartial data.EmployeePartial) (*data.Employee, error)
	EmployeeRead(ctx context.Context, id int64) (*data.Employee, error)
	EmployeesSearch(ctx context.Context,
		search data.EmployeeSearch) ([]*data.Employee, error)
	EmployeeUpdate(ctx context.Context, id int64,
		employeePartial data.EmployeePartial) (*data.Employee, data.UpdateResult, error)
	EmployeeDelete(ctx context.Context, id int64) error
	Dashboard(ctx context.Context, referenceDate time.Time, search string) (*data.Attendance, error)
	Report(ctx context.Context) ([]byte, string, error)
	EmployeeImport(ctx context.Context) (*data.ImportResult, error)
	CacheClear(ctx context.Context) error
	CacheCountersRead(ctx context.Context) (*data.CacheCounters, error)
	CacheCountersClear(ctx context.Context) error
	TimersRead(ctx context.Context) (*data.Timers, error)
	TimersClear(ctx context.Context) error
}

type client struct {
	sync.RWMutex
	config struct {
		Protocol      string        `env:"CLIENT_PROTOCOL, default=http"`
		Address       string        `env:"CLIENT_ADDRESS, default=localhost"`
		Port          string        `env:"CLIENT_PORT, default=8080"`
		Timeout       time.Duration `env:"CLIENT_TIMEOUT, default=10s"`
		SslCaFile     string        `env:"SSL_CA_FILE"`
		SslCrtFile    string        `env:"SSL_CRT_FILE"`
		SslKeyFile    string        `env:"SSL_KEY_FILE"`
		CacheDisabled bool          `env:"CACHE_DISABLED"`
	}
	address string
	cache   cache.Cache
	utilities.Logger
	*http.Client
}

func NewClient(parameters ...any) interface {
	internal.Configurer
	internal.Opener
	Client
} {
	c := &client{Client: &http.Client{}}
	for _, parameter := range parameters {
		switch p := parameter.(type) {
		case cache.Cache:
			c.cache = p
		case utilities.Logger:
			c.Logger = p
		}
	}
	if c.Logger == nil {
		c.Logger = utilities.NewNopLogger()
	}
	return c
}

// statusToError converts an error response into the error the service
// started from, so callers can use errors.Is with the data sentinels.
func statusToError(err error) error {
	var statusError *internal.StatusError
	var response struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}

	if !errors.As(err, &statusError) {
		return err
	}
	_ = json.Unmarshal(statusError.Body, &response)
	switch statusError.StatusCode {
	default:
		return err
	case http.StatusBadRequest:
		if len(response.Fields) > 0 {
			return &data.ValidationError{Fields: response.Fields}
		}
		return err
	case http.StatusNotFound:
		return data.ErrEmployeeNotFound
	case http.StatusConflict:
		return data.ErrEmployeeConflict
	case http.StatusForbidden:
		return data.ErrMutationDisabled
	}
}

func (c *client) doRequest(ctx context.Context, uri, method string, input any, v ...any) error {
	if _, err := internal.DoRequest(ctx, c.Client, uri, method, input, v...); err != nil {
		return statusToError(err)
	}
	return nil
}

func (c *client) cacheEnabled() bool {
	return c.cache != nil && !c.config.CacheDisabled
}

// invalidate removes ids and every cached search, a mutation may change
// the results of any search.
func (c *client) invalidate(ctx context.Context, ids ...int64) {
	if !c.cacheEnabled() {
		return
	}
	if err := c.cache.EmployeesDelete(ctx, ids...); err != nil {
		c.Error(ctx, "error while deleting employees %v from cache: %s", ids, err)
	}
	if err := c.cache.SearchesClear(ctx); err != nil {
		c.Error(ctx, "error while clearing searches from cache: %s", err)
	}
}

func (c *client) Configure(envs map[string]string) error {
	c.Lock()
	defer c.Unlock()

	return internal.ProcessEnvs(envs, &c.config)
}

func (c *client) Open(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()

	switch c.config.Protocol {
	default:
		return errors.Errorf("unsupported protocol: %s", c.config.Protocol)
	case "http", "https":
		c.address = fmt.Sprintf("%s://%s", c.config.Protocol,
			net.JoinHostPort(c.config.Address, c.config.Port))
	}
	if !c.cacheEnabled() {
		c.Info(ctx, "client: cache disabled")
	}
	c.Client.Timeout = c.config.Timeout
	transport, err := internal.GetTransport(c.config.SslCaFile,
		c.config.SslCrtFile, c.config.SslKeyFile)
	if err != nil {
		return err
	}
	c.Client.Transport = transport
	return nil
}

func (c *client) Close(ctx context.Context) error {
	c.Lock()
	defer c.Unlock()

	c.Client.CloseIdleConnections()
	return nil
}

func (c *client) EmployeeCreate(ctx context.Context, employeePartial data.EmployeePartial) (*data.Employee, error) {
	response := &data.Response{}
	uri := c.address + data.RouteEmployees
	if err := c.doRequest(ctx, uri, http.MethodPut,
		&data.Request{EmployeePartial: employeePartial}, response); err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return response.Employee, nil
}

func (c *client) EmployeeRead(ctx context.Context, id int64) (*data.Employee, error) {
	if c.cacheEnabled() {
		employee, err := c.cache.EmployeeRead(ctx, id)
		if err == nil {
			return employee, nil
		}
		if !cache.IsMiss(err) {
			c.Error(ctx, "error while reading employee (%d) from cache: %s", id, err)
		}
	}
	response := &data.Response{}
	uri := fmt.Sprintf(c.address+data.RouteEmployeesIdf, id)
	if err := c.doRequest(ctx, uri, http.MethodGet, nil, response); err != nil {
		return nil, err
	}
	if c.cacheEnabled() {
		if err := c.cache.EmployeesWrite(ctx, data.EmployeeSearch{}, response.Employee); err != nil {
			c.Error(ctx, "error while writing employee (%d) to cache: %s", id, err)
		}
	}
	return response.Employee, nil
}

func (c *client) EmployeesSearch(ctx context.Context, search data.EmployeeSearch) ([]*data.Employee, error) {
	if c.cacheEnabled() {
		employees, err := c.cache.EmployeesRead(ctx, search)
		if err == nil {
			return employees, nil
		}
		if !cache.IsMiss(err) {
			c.Error(ctx, "error while reading employees from cache: %s", err)
		}
	}
	response := &data.Response{}
	uri := c.address + data.RouteEmployeesSearch
	if err := c.doRequest(ctx, uri, http.MethodGet, search.ToParams(), response); err != nil {
		return nil, err
	}
	employees := response.Employees
	if employees == nil {
		employees = []*data.Employee{}
	}
	if c.cacheEnabled() {
		if err := c.cache.EmployeesWrite(ctx, search, employees...); err != nil {
			c.Error(ctx, "error while writing employees to cache: %s", err)
		}
	}
	return employees, nil
}

// EmployeeUpdate reports a missing or concurrently modified employee
// through its result rather than an error.
func (c *client) EmployeeUpdate(ctx context.Context, id int64, employeePartial data.EmployeePartial) (*data.Employee, data.UpdateResult, error) {
	response := &data.Response{}
	uri := fmt.Sprintf(c.address+data.RouteEmployeesIdf, id)
	err := c.doRequest(ctx, uri, http.MethodPost,
		&data.Request{EmployeePartial: employeePartial}, response)
	switch {
	case errors.Is(err, data.ErrEmployeeNotFound):
		c.invalidate(ctx, id)
		return nil, data.UpdateResultNotFound, nil
	case errors.Is(err, data.ErrEmployeeConflict):
		c.invalidate(ctx, id)
		return nil, data.UpdateResultConflict, nil
	case err != nil:
		return nil, data.UpdateResultUpdated, err
	}
	c.invalidate(ctx, id)
	return response.Employee, data.UpdateResultUpdated, nil
}

func (c *client) EmployeeDelete(ctx context.Context, id int64) error {
	uri := fmt.Sprintf(c.address+data.RouteEmployeesIdf, id)
	if err := c.doRequest(ctx, uri, http.MethodDelete, nil); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

// Dashboard reads the dashboard as of referenceDate, a zero date uses the
// service's today.
func (c *client) Dashboard(ctx context.Context, referenceDate time.Time, search string) (*data.Attendance, error) {
	params := url.Values{}
	if !referenceDate.IsZero() {
		params.Set(data.ParameterDate, referenceDate.Format(data.DateFormat))
	}
	if search != "" {
		params.Set(data.ParameterSearch, search)
	}
	attendance := &data.Attendance{}
	uri := c.address + data.RouteDashboard
	if err := c.doRequest(ctx, uri, http.MethodGet, params, attendance); err != nil {
		return nil, err
	}
	return attendance, nil
}

// Report downloads the csv report and returns it with its filename.
func (c *client) Report(ctx context.Context) ([]byte, string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.address+data.RouteReport, nil)
	if err != nil {
		return nil, "", err
	}
	if correlationId := internal.CorrelationIdFromCtx(ctx); correlationId != "" {
		request.Header.Set(internal.HeaderCorrelationId, correlationId)
	}
	response, err := c.Do(request)
	if err != nil {
		return nil, "", err
	}
	defer response.Body.Close()
	byts, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, "", err
	}
	if response.StatusCode != http.StatusOK {
		return nil, "", statusToError(&internal.StatusError{
			StatusCode: response.StatusCode,
			Status:     response.Status,
			Body:       byts,
		})
	}
	_, params, err := mime.ParseMediaType(response.Header.Get("Content-Disposition"))
	if err != nil {
		return nil, "", errors.Wrap(err, "unable to parse content disposition")
	}
	return byts, params["filename"], nil
}

func (c *client) EmployeeImport(ctx context.Context) (*data.ImportResult, error) {
	result := &data.ImportResult{}
	uri := c.address + data.RouteImport
	if err := c.doRequest(ctx, uri, http.MethodPost, nil, result); err != nil {
		return nil, err
	}
	if result.Succeeded() {
		c.invalidate(ctx)
	}
	return result, nil
}

func (c *client) CacheClear(ctx context.Context) error {
	return c.doRequest(ctx, c.address+data.RouteCache, http.MethodDelete, nil)
}

func (c *client) CacheCountersRead(ctx context.Context) (*data.CacheCounters, error) {
	response := &data.CacheCounters{}
	uri := c.address + data.RouteCacheCounters
	if err := c.doRequest(ctx, uri, http.MethodGet, nil, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *client) CacheCountersClear(ctx context.Context) error {
	return c.doRequest(ctx, c.address+data.RouteCacheCounters, http.MethodDelete, nil)
}

func (c *client) TimersRead(ctx context.Context) (*data.Timers, error) {
	response := &data.Timers{}
	uri := c.address + data.RouteTimers
	if err := c.doRequest(ctx, uri, http.MethodGet, nil, response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c *client) TimersClear(ctx context.Context) error {
	return c.doRequest(ctx, c.address+data.RouteTimers, http.MethodDelete, nil)
}
