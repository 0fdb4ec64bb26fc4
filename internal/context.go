package internal

import (
	"context"
	"net/http"
	"os"
	"sync"
)

const HeaderCorrelationId string = "Correlation-Id"

type ctxKeyCorrelationId struct{}

func CtxWithCorrelationId(ctx context.Context, correlationId string) context.Context {
	return context.WithValue(ctx, ctxKeyCorrelationId{}, correlationId)
}

func CorrelationIdFromCtx(ctx context.Context) string {
	item := ctx.Value(ctxKeyCorrelationId{})
	correlationId, ok := item.(string)
	if ok {
		return correlationId
	}
	return ""
}

// CtxFromRequest returns the request context carrying the caller's
// correlation id, or a freshly generated one if none was sent.
func CtxFromRequest(request *http.Request) context.Context {
	correlationId := request.Header.Get(HeaderCorrelationId)
	if correlationId == "" {
		correlationId = GenerateId()
	}
	return CtxWithCorrelationId(request.Context(), correlationId)
}

// LaunchContext returns a context that's cancelled when a signal is
// received on osSignal (or cancel is called).
func LaunchContext(wg *sync.WaitGroup, osSignal chan os.Signal) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()

		select {
		case <-ctx.Done():
		case <-osSignal:
			cancel()
		}
	}()
	return ctx, cancel
}
