package service

import (
	"context"
	"crypto/rand"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/cache"
	"github.com/antonio-alexander/go-attendance/internal/data"
	"github.com/antonio-alexander/go-attendance/internal/logic"
	"github.com/antonio-alexander/go-attendance/internal/metrics"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

var (
	Version   string
	GitCommit string
	GitBranch string
)

func init() {
	if Version = data.Version; Version == "" {
		Version = "<no_version_provided>"
	}
	if GitCommit = data.GitCommit; GitCommit == "" {
		GitCommit = "<no_git_commit>"
	}
	if GitBranch = data.GitBranch; GitBranch == "" {
		GitBranch = "<no_git_branch>"
	}
}

const csrfKeyLength int = 32

type service struct {
	sync.RWMutex
	sync.WaitGroup
	config struct {
		Address          string        `env:"SERVICE_ADDRESS"`
		Port             string        `env:"SERVICE_PORT, default=8080"`
		ShutdownTimeout  time.Duration `env:"SERVICE_SHUTDOWN_TIMEOUT, default=10s"`
		AllowedOrigins   []string      `env:"SERVICE_CORS_ALLOWED_ORIGINS"`
		AllowedMethods   []string      `env:"SERVICE_CORS_ALLOWED_METHODS"`
		AllowedHeaders   []string      `env:"SERVICE_CORS_ALLOWED_HEADERS"`
		AllowCredentials bool          `env:"SERVICE_CORS_ALLOW_CREDENTIALS"`
		CorsDisabled     bool          `env:"SERVICE_CORS_DISABLED"`
		CorsDebug        bool          `env:"SERVICE_CORS_DEBUG"`
		TimersEnabled    bool          `env:"SERVICE_TIMERS_ENABLED"`
		CsrfKey          string        `env:"SERVICE_CSRF_KEY"`
		CsrfSecure       bool          `env:"SERVICE_CSRF_SECURE"`
		CsrfDisabled     bool          `env:"SERVICE_CSRF_DISABLED"`
	}
	ctx    context.Context
	cancel context.CancelFunc
	*mux.Router
	*http.Server
	decoder *schema.Decoder
	views   map[string]*template.Template
	cache   internal.Clearer
	utilities.Logger
	utilities.Counter
	utilities.Timers
	logic.Logic
}

func NewService(parameters ...any) interface {
	internal.Configurer
	internal.Opener
} {
	router := mux.NewRouter()
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	s := &service{
		Router:  router,
		Server:  &http.Server{Handler: router},
		decoder: decoder,
	}
	for _, parameter := range parameters {
		switch p := parameter.(type) {
		case interface {
			cache.Cache
			internal.Clearer
		}:
			s.cache = p
		case logic.Logic:
			s.Logic = p
		case utilities.Counter:
			s.Counter = p
		case utilities.Timers:
			s.Timers = p
		case utilities.Logger:
			s.Logger = p
		}
	}
	if s.Logger == nil {
		s.Logger = utilities.NewNopLogger()
	}
	if s.Counter == nil {
		s.Counter = utilities.NewCounter()
	}
	if s.Timers == nil {
		s.Timers = utilities.NewTimers()
	}
	return s
}

func (s *service) launchServer() error {
	started := make(chan struct{})
	chErr := make(chan error, 1)
	s.Add(1)
	go func() {
		defer s.WaitGroup.Done()
		defer close(chErr)

		close(started)
		if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			chErr <- err
		}
	}()
	<-started
	select {
	case err := <-chErr:
		//KIM: here we're accounting for a situation where the server closes unexexpectedly
		// but quickly (within a second of starting); this allows us to respond to errors such as
		// the port being already used
		return err
	case <-time.After(time.Second):
		s.Info(s.ctx, "started server: %s", s.Server.Addr)
		return nil
	}
}

// startTimer starts a timer for group if timers are enabled, the returned
// function stops it.
func (s *service) startTimer(ctx context.Context, group string) func() {
	if !s.config.TimersEnabled {
		return func() {}
	}
	index := s.Timers.Start(group)
	return func() {
		elapsedTime := s.Timers.Stop(group, index)
		s.Trace(ctx, "%s took %v", group, time.Duration(elapsedTime))
	}
}

// middlewareMetrics records every routed request by its path template.
func (s *service) middlewareMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		route := request.URL.Path
		if current := mux.CurrentRoute(request); current != nil {
			if pathTemplate, err := current.GetPathTemplate(); err == nil {
				route = pathTemplate
			}
		}
		recorder := &statusRecorder{ResponseWriter: writer}
		tStart := time.Now()
		next.ServeHTTP(recorder, request)
		metrics.ObserveRequest(route, request.Method, recorder.status, time.Since(tStart))
	})
}

func (s *service) csrfKey(ctx context.Context) ([]byte, error) {
	if key := []byte(s.config.CsrfKey); len(key) > 0 {
		if len(key) != csrfKeyLength {
			return nil, errors.Errorf("csrf key must be %d bytes", csrfKeyLength)
		}
		return key, nil
	}
	s.Warn(ctx, "no csrf key configured, forms won't survive a restart")
	key := make([]byte, csrfKeyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// middlewareCsrf protects the html views; the server doesn't terminate
// tls, so requests are marked plaintext unless cookies are secure.
func (s *service) middlewareCsrf(ctx context.Context) (mux.MiddlewareFunc, error) {
	if s.config.CsrfDisabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	key, err := s.csrfKey(ctx)
	if err != nil {
		return nil, err
	}
	protect := csrf.Protect(key,
		csrf.Secure(s.config.CsrfSecure),
		csrf.Path(data.RouteViewEmployees),
		csrf.ErrorHandler(http.HandlerFunc(s.viewForbidden)),
	)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if !s.config.CsrfSecure {
				request = csrf.PlaintextHTTPRequest(request)
			}
			protected.ServeHTTP(writer, request)
		})
	}, nil
}

func (s *service) endpointDefault(writer http.ResponseWriter, request *http.Request) {
	http.Redirect(writer, request, data.RouteViewEmployees, http.StatusFound)
}

func (s *service) buildRoutes(ctx context.Context) error {
	s.Router.Use(s.middlewareMetrics)
	s.Router.HandleFunc("/", s.endpointDefault).Methods(http.MethodGet)
	s.Router.HandleFunc(data.RouteVersion, s.endpointVersion).Methods(http.MethodGet)
	s.Router.Handle(data.RouteMetrics, promhttp.Handler()).Methods(http.MethodGet)

	//api
	s.Router.HandleFunc(data.RouteEmployeesSearch, s.endpointEmployeesSearch).Methods(http.MethodGet)
	s.Router.HandleFunc(data.RouteEmployees, s.endpointEmployeeCreate).Methods(http.MethodPut)
	s.Router.HandleFunc(data.RouteEmployeesId, s.endpointEmployeeRead).Methods(http.MethodGet)
	s.Router.HandleFunc(data.RouteEmployeesId, s.endpointEmployeeUpdate).Methods(http.MethodPost)
	s.Router.HandleFunc(data.RouteEmployeesId, s.endpointEmployeeDelete).Methods(http.MethodDelete)
	s.Router.HandleFunc(data.RouteDashboard, s.endpointDashboard).Methods(http.MethodGet)
	s.Router.HandleFunc(data.RouteReport, s.endpointReport).Methods(http.MethodGet)
	s.Router.HandleFunc(data.RouteImport, s.endpointImport).Methods(http.MethodPost)
	s.Router.HandleFunc(data.RouteCacheCounters, s.endpointCacheCountersRead).Methods(http.MethodGet)
	s.Router.HandleFunc(data.RouteCacheCounters, s.endpointCacheCountersClear).Methods(http.MethodDelete)
	s.Router.HandleFunc(data.RouteCache, s.endpointCacheClear).Methods(http.MethodDelete)
	s.Router.HandleFunc(data.RouteTimers, s.endpointTimersRead).Methods(http.MethodGet)
	s.Router.HandleFunc(data.RouteTimers, s.endpointTimersClear).Methods(http.MethodDelete)

	//views
	middlewareCsrf, err := s.middlewareCsrf(ctx)
	if err != nil {
		return err
	}
	views := s.Router.PathPrefix(data.RouteViewEmployees).Subrouter()
	views.Use(middlewareCsrf)
	views.HandleFunc("", s.viewIndex).Methods(http.MethodGet)
	views.HandleFunc("/create", s.viewCreate).Methods(http.MethodGet, http.MethodPost)
	views.HandleFunc("/export", s.viewExport).Methods(http.MethodGet)
	views.HandleFunc("/import", s.viewImport).Methods(http.MethodPost)
	views.HandleFunc("/{"+data.PathId+":[0-9]+}", s.viewDetails).Methods(http.MethodGet)
	views.HandleFunc("/{"+data.PathId+":[0-9]+}/edit", s.viewEdit).Methods(http.MethodGet, http.MethodPost)
	views.HandleFunc("/{"+data.PathId+":[0-9]+}/delete", s.viewDelete).Methods(http.MethodGet, http.MethodPost)
	return nil
}

func (s *service) Configure(envs map[string]string) error {
	s.Lock()
	defer s.Unlock()

	return internal.ProcessEnvs(envs, &s.config)
}

func (s *service) Open(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()

	if s.Logic == nil {
		return errors.New("service requires logic")
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	views, err := s.parseViews()
	if err != nil {
		return err
	}
	s.views = views
	if err := s.buildRoutes(ctx); err != nil {
		return err
	}
	if !s.config.CorsDisabled {
		s.Server.Handler = cors.New(cors.Options{
			AllowedOrigins:   s.config.AllowedOrigins,
			AllowCredentials: s.config.AllowCredentials,
			AllowedMethods:   s.config.AllowedMethods,
			AllowedHeaders:   s.config.AllowedHeaders,
			Debug:            s.config.CorsDebug,
		}).Handler(s.Router)
	}
	s.Server.Addr = net.JoinHostPort(s.config.Address, s.config.Port)
	return s.launchServer()
}

func (s *service) Close(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()

	if s.cancel == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	if err := s.Server.Shutdown(ctx); err != nil {
		s.Error(ctx, "error while shutting down the server: %s", err)
	}
	s.cancel()
	s.Wait()
	s.cancel = nil
	return nil
}
