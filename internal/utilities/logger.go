package utilities

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/antonio-alexander/go-attendance/internal"

	"github.com/rs/zerolog"
	"gopkg.in/lumberjack.v2"
)

type Level int

const (
	Error Level = 1
	Warn  Level = 2
	Info  Level = 3
	Debug Level = 4
	Trace Level = 5
)

func (l Level) String() string {
	switch l {
	default:
		return ""
	case Error:
		return "error"
	case Warn:
		return "warn"
	case Info:
		return "info"
	case Debug:
		return "debug"
	case Trace:
		return "trace"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	default:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	case Info:
		return zerolog.InfoLevel
	case Debug:
		return zerolog.DebugLevel
	case Trace:
		return zerolog.TraceLevel
	}
}

func AtoLogLevel(a string) Level {
	switch strings.ToLower(strings.TrimSpace(a)) {
	default:
		return Error
	case "warn", "warning":
		return Warn
	case "info":
		return Info
	case "debug":
		return Debug
	case "trace":
		return Trace
	}
}

type Logger interface {
	Error(ctx context.Context, format string, v ...any)
	Warn(ctx context.Context, format string, v ...any)
	Info(ctx context.Context, format string, v ...any)
	Debug(ctx context.Context, format string, v ...any)
	Trace(ctx context.Context, format string, v ...any)
}

type logger struct {
	zerolog.Logger
	output io.Writer
	file   *lumberjack.Logger
	config struct {
		Level          string `env:"LOG_LEVEL, default=error"`
		Pretty         bool   `env:"LOG_PRETTY"`
		File           string `env:"LOG_FILE"`
		FileMaxSize    int    `env:"LOG_FILE_MAX_SIZE, default=100"` //megabytes
		FileMaxBackups int    `env:"LOG_FILE_MAX_BACKUPS, default=3"`
		FileMaxAge     int    `env:"LOG_FILE_MAX_AGE, default=28"` //days
	}
}

// NewLogger creates a logger writing to stdout, or to the first io.Writer
// provided as a parameter.
func NewLogger(parameters ...any) interface {
	internal.Configurer
	internal.Closer
	Logger
} {
	l := &logger{output: os.Stdout}
	for _, parameter := range parameters {
		switch p := parameter.(type) {
		case io.Writer:
			l.output = p
		}
	}
	l.Logger = l.build(Error)
	return l
}

// NewNopLogger returns a logger that discards everything, it's used when
// a component isn't given a logger.
func NewNopLogger() Logger {
	return &logger{Logger: zerolog.Nop()}
}

func (l *logger) build(level Level) zerolog.Logger {
	var writers []io.Writer

	output := l.output
	if l.config.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}
	writers = append(writers, output)
	if l.file != nil {
		writers = append(writers, l.file)
	}
	return zerolog.New(io.MultiWriter(writers...)).
		Level(level.zerolog()).
		With().
		Timestamp().
		Logger()
}

func (l *logger) Configure(envs map[string]string) error {
	if err := internal.ProcessEnvs(envs, &l.config); err != nil {
		return err
	}
	if l.config.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   l.config.File,
			MaxSize:    l.config.FileMaxSize,
			MaxBackups: l.config.FileMaxBackups,
			MaxAge:     l.config.FileMaxAge,
			LocalTime:  true,
		}
	}
	l.Logger = l.build(AtoLogLevel(l.config.Level))
	return nil
}

func (l *logger) Close(ctx context.Context) error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *logger) event(ctx context.Context, e *zerolog.Event) *zerolog.Event {
	if ctx == nil {
		return e
	}
	if correlationId := internal.CorrelationIdFromCtx(ctx); correlationId != "" {
		e = e.Str("correlation_id", correlationId)
	}
	return e
}

func (l *logger) Error(ctx context.Context, format string, v ...any) {
	l.event(ctx, l.Logger.Error()).Msgf(format, v...)
}

func (l *logger) Warn(ctx context.Context, format string, v ...any) {
	l.event(ctx, l.Logger.Warn()).Msgf(format, v...)
}

func (l *logger) Info(ctx context.Context, format string, v ...any) {
	l.event(ctx, l.Logger.Info()).Msgf(format, v...)
}

func (l *logger) Debug(ctx context.Context, format string, v ...any) {
	l.event(ctx, l.Logger.Debug()).Msgf(format, v...)
}

func (l *logger) Trace(ctx context.Context, format string, v ...any) {
	l.event(ctx, l.Logger.Trace()).Msgf(format, v...)
}
