package internal

import (
	"context"
	"time"
)

type Configurer interface {
	Configure(envs map[string]string) error
}

type Opener interface {
	Open(ctx context.Context) error
	Closer
}

type Closer interface {
	Close(ctx context.Context) error
}

type Clearer interface {
	Clear(ctx context.Context) error
}

// Clock returns the current time; components accept one as a parameter
// so tests can pin "now".
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now()
}
