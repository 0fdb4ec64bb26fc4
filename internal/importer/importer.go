package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/cenkalti/backoff/v5"
)

const routeUsersf string = "/users/%d"

// Importer fetches a single person from the placeholder api.
type Importer interface {
	Fetch(ctx context.Context) (*data.ExternalPerson, error)
}

// FetchError carries the reason a fetch failed.
type FetchError struct {
	Failure data.ImportFailure
	Err     error
}

func (f *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", f.Failure, f.Err)
}

func (f *FetchError) Unwrap() error {
	return f.Err
}

// FailureFromError returns the import failure of err; errors that aren't
// a FetchError (e.g. a cancelled context) are fetch failures.
func FailureFromError(err error) data.ImportFailure {
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		return fetchError.Failure
	}
	return data.ImportFailureFetchFailed
}

type httpImporter struct {
	sync.RWMutex
	config struct {
		Address       string        `env:"IMPORT_ADDRESS, default=https://jsonplaceholder.typicode.com"`
		UserId        int64         `env:"IMPORT_USER_ID, default=1"` //0 selects a random user
		UserIdMax     int64         `env:"IMPORT_USER_ID_MAX, default=10"`
		Timeout       time.Duration `env:"IMPORT_TIMEOUT, default=10s"`
		MaxRetries    uint          `env:"IMPORT_MAX_RETRIES, default=3"`
		RetryInterval time.Duration `env:"IMPORT_RETRY_INTERVAL, default=1s"`
		MaxBytes      int64         `env:"IMPORT_MAX_RESPONSE_BYTES, default=65536"`
	}
	client *http.Client
	utilities.Logger
}

func NewImporter(parameters ...any) interface {
	internal.Configurer
	internal.Opener
	Importer
} {
	i := &httpImporter{client: &http.Client{}}
	for _, parameter := range parameters {
		switch p := parameter.(type) {
		case utilities.Logger:
			i.Logger = p
		case *http.Client:
			i.client = p
		}
	}
	if i.Logger == nil {
		i.Logger = utilities.NewNopLogger()
	}
	return i
}

func (i *httpImporter) Configure(envs map[string]string) error {
	i.Lock()
	defer i.Unlock()

	if err := internal.ProcessEnvs(envs, &i.config); err != nil {
		return err
	}
	if i.config.UserIdMax <= 0 {
		i.config.UserIdMax = 10
	}
	if i.config.MaxBytes <= 0 {
		i.config.MaxBytes = 65536
	}
	return nil
}

func (i *httpImporter) Open(ctx context.Context) error {
	i.Lock()
	defer i.Unlock()

	if i.config.Address == "" {
		return errors.New("import address not configured")
	}
	if i.config.Timeout > 0 {
		i.client.Timeout = i.config.Timeout
	}
	return nil
}

func (i *httpImporter) Close(ctx context.Context) error {
	i.client.CloseIdleConnections()
	return nil
}

func (i *httpImporter) userId() int64 {
	if i.config.UserId > 0 {
		return i.config.UserId
	}
	return rand.Int64N(i.config.UserIdMax) + 1
}

func (i *httpImporter) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	if i.config.RetryInterval > 0 {
		b.InitialInterval = i.config.RetryInterval
	}
	return b
}

func (i *httpImporter) fetch(ctx context.Context, uri string) (*data.ExternalPerson, error) {
	bytes, err := internal.DoRequestLimit(ctx, i.client, i.config.MaxBytes, uri, http.MethodGet, nil)
	if err != nil {
		var statusError *internal.StatusError
		if errors.As(err, &statusError) && !statusError.Temporary() {
			return nil, backoff.Permanent(&FetchError{data.ImportFailureFetchFailed, err})
		}
		if errors.Is(err, internal.ErrResponseTooLarge) {
			return nil, backoff.Permanent(&FetchError{data.ImportFailureMalformedResponse, err})
		}
		return nil, &FetchError{data.ImportFailureFetchFailed, err}
	}
	person := &data.ExternalPerson{}
	if err := json.Unmarshal(bytes, person); err != nil {
		return nil, backoff.Permanent(&FetchError{data.ImportFailureMalformedResponse, err})
	}
	return person, nil
}

func (i *httpImporter) Fetch(ctx context.Context) (*data.ExternalPerson, error) {
	i.RLock()
	defer i.RUnlock()

	uri := strings.TrimRight(i.config.Address, "/") + fmt.Sprintf(routeUsersf, i.userId())
	person, err := backoff.Retry(ctx, func() (*data.ExternalPerson, error) {
		return i.fetch(ctx, uri)
	},
		backoff.WithBackOff(i.newBackOff()),
		backoff.WithMaxTries(i.config.MaxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			i.Debug(ctx, "retrying fetch of %s in %v: %s", uri, next, err)
		}),
	)
	if err != nil {
		i.Error(ctx, "error while fetching %s: %s", uri, err)
		return nil, err
	}
	i.Trace(ctx, "fetched external person %d from %s", person.Id, uri)
	return person, nil
}

// ToEmployeePartial maps an external person onto a new employee that's
// present as of now; name and email are required.
func ToEmployeePartial(person *data.ExternalPerson, now time.Time) (data.EmployeePartial, error) {
	if person == nil {
		return data.EmployeePartial{}, &FetchError{data.ImportFailureMissingFields,
			errors.New("no person")}
	}
	name, email := strings.TrimSpace(person.Name), strings.TrimSpace(person.Email)
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return data.EmployeePartial{}, &FetchError{data.ImportFailureMissingFields,
			fmt.Errorf("missing %s", strings.Join(missing, ", "))}
	}
	department, status := data.DepartmentExternal, data.StatusPresent
	clockInTime := now.Unix()
	return data.EmployeePartial{
		Name:             &name,
		Email:            &email,
		Department:       &department,
		ClockInTime:      &clockInTime,
		AttendanceStatus: &status,
	}, nil
}
