package utilities_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/antonio-alexander/go-attendance/internal"
	"github.com/antonio-alexander/go-attendance/internal/utilities"

	"github.com/stretchr/testify/assert"
)

func TestLogger(t *testing.T) {
	buffer := &bytes.Buffer{}
	logger := utilities.NewLogger(buffer)
	err := logger.Configure(map[string]string{"LOG_LEVEL": "info"})
	assert.Nil(t, err)

	ctx := internal.CtxWithCorrelationId(context.TODO(), "correlation")
	logger.Info(ctx, "imported employee: %d", 42)
	logger.Debug(ctx, "not logged")
	lines := strings.Split(strings.TrimSpace(buffer.String()), "\n")
	if !assert.Len(t, lines, 1) {
		return
	}
	var entry map[string]any
	err = json.Unmarshal([]byte(lines[0]), &entry)
	assert.Nil(t, err)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "imported employee: 42", entry["message"])
	assert.Equal(t, "correlation", entry["correlation_id"])
	assert.Nil(t, logger.Close(ctx))
}

func TestLogLevel(t *testing.T) {
	assert.Equal(t, utilities.Error, utilities.AtoLogLevel(""))
	assert.Equal(t, utilities.Warn, utilities.AtoLogLevel("WARNING"))
	assert.Equal(t, utilities.Trace, utilities.AtoLogLevel("trace"))
	assert.Equal(t, "debug", utilities.Debug.String())
}

func TestCounter(t *testing.T) {
	var wg sync.WaitGroup

	counter := utilities.NewCounter()
	hit, miss := counter.Read("employee_1")
	assert.Equal(t, -1, hit)
	assert.Equal(t, -1, miss)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			counter.IncrementHit("employee_1")
			counter.IncrementMiss("employee_2")
		}()
	}
	wg.Wait()
	hit, miss = counter.Read("employee_1")
	assert.Equal(t, 10, hit)
	assert.Equal(t, 0, miss)
	counters := counter.ReadAll()
	assert.Equal(t, 10, counters.CounterMisses["employee_2"])
	counter.Reset()
	assert.Empty(t, counter.ReadAll().CounterHits)
}

func TestTimers(t *testing.T) {
	timers := utilities.NewTimers()
	first := timers.Start("employee_read")
	second := timers.Start("employee_read")
	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
	assert.GreaterOrEqual(t, timers.Stop("employee_read", first), int64(0))
	assert.Equal(t, int64(-1), timers.Stop("employee_read", 5))
	assert.Equal(t, int64(-1), timers.Stop("employee_delete", 0))

	// only stopped timers are averaged
	read := timers.ReadAll()
	assert.Equal(t, read.Totals["employee_read"], read.Averages["employee_read"])
	timers.Clear()
	assert.Empty(t, timers.ReadAll().Totals)
}
