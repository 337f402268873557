package cpu

import (
	"sync"
	"time"
)

// TimerHz is the rate at which the delay and sound timers count down.
const TimerHz = 60

// Clock delivers timer pulses. Each value received is a number of pulses;
// pulses that arrive while the CPU is busy are folded into one value, so
// none are lost. The CPU drains every pending value at the start of each
// cycle without blocking.
type Clock interface {
	Ticks() <-chan int
}

// post adds n pulses to ch without blocking. A pending value is taken back
// and merged with n when the channel is full.
func post(ch chan int, n int) {
	if n <= 0 {
		return
	}
	for {
		select {
		case ch <- n:
			return
		default:
		}
		select {
		case pending := <-ch:
			n += pending
		default:
		}
	}
}

// TimerClock emits pulses from a wall-clock ticker running on its own goroutine.
type TimerClock struct {
	ticks chan int
	stop  chan struct{}
	once  sync.Once
}

// NewTimerClock starts a clock pulsing hz times per second.
func NewTimerClock(hz int) *TimerClock {
	if hz <= 0 {
		hz = TimerHz
	}
	tc := &TimerClock{
		ticks: make(chan int, 1),
		stop:  make(chan struct{}),
	}
	go tc.loop(time.Second / time.Duration(hz))
	return tc
}

func (tc *TimerClock) loop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			post(tc.ticks, 1)
		case <-tc.stop:
			return
		}
	}
}

func (tc *TimerClock) Ticks() <-chan int {
	return tc.ticks
}

// Stop halts the ticker goroutine. It is safe to call more than once.
// Pulses already posted stay pending.
func (tc *TimerClock) Stop() {
	tc.once.Do(func() {
		close(tc.stop)
	})
}

// ManualClock is a Clock advanced explicitly, for frontends that already
// run a 60 Hz loop and for tests.
type ManualClock struct {
	ticks chan int
}

func NewManualClock() *ManualClock {
	return &ManualClock{ticks: make(chan int, 1)}
}

// Tick queues n pulses.
func (m *ManualClock) Tick(n int) {
	post(m.ticks, n)
}

func (m *ManualClock) Ticks() <-chan int {
	return m.ticks
}
