package utilities

import (
	"sync"
	"time"

	"github.com/antonio-alexander/go-attendance/internal/data"
)

type timer struct {
	stopTime  int64
	startTime int64
}

type timers struct {
	sync.RWMutex
	timers map[string][]*timer
}

// Timers measures elapsed time per group (e.g. per endpoint).
type Timers interface {
	Start(group string) int
	Stop(group string, index int) int64
	ReadAll() *data.Timers
	Clear()
}

func NewTimers() Timers {
	return &timers{
		timers: make(map[string][]*timer),
	}
}

func (t *timers) Clear() {
	t.Lock()
	defer t.Unlock()

	t.timers = make(map[string][]*timer)
}

func (t *timers) Start(group string) int {
	t.Lock()
	defer t.Unlock()

	if _, found := t.timers[group]; !found {
		t.timers[group] = make([]*timer, 0, 100)
	}
	t.timers[group] = append(t.timers[group],
		&timer{startTime: time.Now().UnixNano()})
	return len(t.timers[group]) - 1
}

// Stop returns the elapsed nanoseconds, or -1 if the timer doesn't exist
// (e.g. the timers were cleared in the meantime).
func (t *timers) Stop(group string, index int) int64 {
	t.Lock()
	defer t.Unlock()

	groupTimers, found := t.timers[group]
	if !found || index < 0 || index >= len(groupTimers) {
		return -1
	}
	groupTimers[index].stopTime = time.Now().UnixNano()
	return groupTimers[index].stopTime - groupTimers[index].startTime
}

func (t *timers) ReadAll() *data.Timers {
	t.RLock()
	defer t.RUnlock()

	totals, averages := make(map[string]int64), make(map[string]int64)
	for group, groupTimers := range t.timers {
		var total, stopped int64

		for _, timer := range groupTimers {
			if timer.stopTime <= 0 {
				continue
			}
			total += timer.stopTime - timer.startTime
			stopped++
		}
		totals[group] = total
		if stopped > 0 {
			averages[group] = total / stopped
		}
	}
	return &data.Timers{
		Totals:   totals,
		Averages: averages,
	}
}
