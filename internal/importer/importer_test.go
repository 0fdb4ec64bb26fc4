package importer_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/importer"

	"github.com/stretchr/testify/assert"
)

type importerTest struct {
	requests atomic.Int64
	handler  func(requests int64, writer http.ResponseWriter, request *http.Request)
	server   *httptest.Server
}

func newImporterTest() *importerTest {
	i := &importerTest{}
	i.server = httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		i.handler(i.requests.Add(1), writer, request)
	}))
	return i
}

func (i *importerTest) newImporter(t *testing.T, handler func(int64, http.ResponseWriter, *http.Request)) importer.Importer {
	i.requests.Store(0)
	i.handler = handler
	imp := importer.NewImporter()
	err := imp.Configure(map[string]string{
		"IMPORT_ADDRESS":        i.server.URL,
		"IMPORT_USER_ID":        "7",
		"IMPORT_TIMEOUT":        "1s",
		"IMPORT_MAX_RETRIES":    "2",
		"IMPORT_RETRY_INTERVAL": "10ms",
	})
	assert.Nil(t, err)
	err = imp.Open(context.TODO())
	assert.Nil(t, err)
	return imp
}

func (i *importerTest) TestFetch(t *testing.T) {
	imp := i.newImporter(t, func(_ int64, writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/users/7" {
			writer.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(writer, `{"id":7,"name":"Ada Lovelace","email":"ada@example.com","phone":"ignored"}`)
	})
	person, err := imp.Fetch(context.TODO())
	assert.Nil(t, err)
	if assert.NotNil(t, person) {
		assert.Equal(t, int64(7), person.Id)
		assert.Equal(t, "Ada Lovelace", person.Name)
		assert.Equal(t, "ada@example.com", person.Email)
	}
}

func (i *importerTest) TestRetry(t *testing.T) {
	imp := i.newImporter(t, func(requests int64, writer http.ResponseWriter, _ *http.Request) {
		if requests == 1 {
			writer.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(writer, `{"id":7,"name":"Ada Lovelace","email":"ada@example.com"}`)
	})
	person, err := imp.Fetch(context.TODO())
	assert.Nil(t, err)
	assert.NotNil(t, person)
	assert.Equal(t, int64(2), i.requests.Load())
}

func (i *importerTest) TestRetryExhausted(t *testing.T) {
	imp := i.newImporter(t, func(_ int64, writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusInternalServerError)
	})
	person, err := imp.Fetch(context.TODO())
	assert.NotNil(t, err)
	assert.Nil(t, person)
	assert.Equal(t, data.ImportFailureFetchFailed, importer.FailureFromError(err))
	assert.Equal(t, int64(3), i.requests.Load())
}

func (i *importerTest) TestNotFound(t *testing.T) {
	imp := i.newImporter(t, func(_ int64, writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusNotFound)
	})
	person, err := imp.Fetch(context.TODO())
	assert.NotNil(t, err)
	assert.Nil(t, person)
	assert.Equal(t, data.ImportFailureFetchFailed, importer.FailureFromError(err))
	assert.Equal(t, int64(1), i.requests.Load())
}

func (i *importerTest) TestMalformed(t *testing.T) {
	imp := i.newImporter(t, func(_ int64, writer http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(writer, `{"id":`)
	})
	person, err := imp.Fetch(context.TODO())
	assert.NotNil(t, err)
	assert.Nil(t, person)
	assert.Equal(t, data.ImportFailureMalformedResponse, importer.FailureFromError(err))
	assert.Equal(t, int64(1), i.requests.Load())
}

func (i *importerTest) TestTooLarge(t *testing.T) {
	imp := i.newImporter(t, func(_ int64, writer http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(writer, `{"id":7,"name":"%s","email":"ada@example.com"}`, strings.Repeat("a", 70000))
	})
	person, err := imp.Fetch(context.TODO())
	assert.NotNil(t, err)
	assert.Nil(t, person)
	assert.Equal(t, data.ImportFailureMalformedResponse, importer.FailureFromError(err))
	assert.Equal(t, int64(1), i.requests.Load())
}

func TestImporter(t *testing.T) {
	i := newImporterTest()
	defer i.server.Close()

	t.Run("Fetch", i.TestFetch)
	t.Run("Retry", i.TestRetry)
	t.Run("Retry Exhausted", i.TestRetryExhausted)
	t.Run("Not Found", i.TestNotFound)
	t.Run("Malformed", i.TestMalformed)
	t.Run("Too Large", i.TestTooLarge)
}

func TestToEmployeePartial(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	partial, err := importer.ToEmployeePartial(&data.ExternalPerson{
		Id:    1,
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
	}, now)
	assert.Nil(t, err)
	employee := &data.Employee{}
	partial.Apply(employee)
	assert.Equal(t, "Ada Lovelace", employee.Name)
	assert.Equal(t, "ada@example.com", employee.Email)
	assert.Equal(t, data.DepartmentExternal, employee.Department)
	assert.Equal(t, data.StatusPresent, employee.AttendanceStatus)
	assert.Equal(t, now.Unix(), employee.ClockInTime)

	_, err = importer.ToEmployeePartial(&data.ExternalPerson{Name: "Ada Lovelace"}, now)
	assert.Equal(t, data.ImportFailureMissingFields, importer.FailureFromError(err))
	_, err = importer.ToEmployeePartial(&data.ExternalPerson{Email: "  "}, now)
	assert.Equal(t, data.ImportFailureMissingFields, importer.FailureFromError(err))
	_, err = importer.ToEmployeePartial(nil, now)
	assert.Equal(t, data.ImportFailureMissingFields, importer.FailureFromError(err))
}
