// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ClockMode selects how the clock paces instruction execution.
type ClockMode int

// Clock modes
const (
	ModeFast     ClockMode = iota // back to back, no throttling
	ModeRealTime                  // paced to the target frequency
	ModeLimited                   // one instruction per coarse sleep
	ModeStepped                   // only on explicit Step calls
)

var clockModeNames = []string{"fast", "realtime", "limited", "stepped"}

func (m ClockMode) String() string {
	if m < 0 || int(m) >= len(clockModeNames) {
		return fmt.Sprintf("ClockMode(%d)", int(m))
	}
	return clockModeNames[m]
}

// ParseClockMode returns the clock mode with the given case-insensitive
// name.
func ParseClockMode(s string) (ClockMode, error) {
	s = strings.ToLower(s)
	for i, n := range clockModeNames {
		if n == s {
			return ClockMode(i), nil
		}
	}
	return 0, fmt.Errorf("%w '%s'", ErrInvalidClockMode, s)
}

// Default target frequencies, in cycles per second.
const (
	DefaultRealTimeFrequency = 4_000_000
	DefaultLimitedFrequency  = 100_000
)

// DefaultStopTimeout bounds how long Stop waits for the execution goroutine.
const DefaultStopTimeout = 2 * time.Second

// EventKind identifies a clock event.
type EventKind int

// Clock events
const (
	EventModeChanged EventKind = iota
	EventStarted
	EventStopped
	EventFrequencySample
	EventFault
)

var eventKindNames = []string{"mode changed", "started", "stopped", "frequency sample", "fault"}

func (k EventKind) String() string {
	return eventKindNames[k]
}

// A ClockEvent describes a change in the clock's state.
type ClockEvent struct {
	Kind         EventKind
	Mode         ClockMode
	Frequency    float64    // target frequency in cycles per second
	Actual       float64    // measured instructions per second
	CycleRate    float64    // measured cycles per second
	Instructions uint64     // total instructions executed by the CPU
	Cycles       uint64     // total cycles consumed by the CPU
	Reason       StopReason // set on EventStopped
	Err          error      // set on EventFault
}

// A ClockObserver receives clock events. Events are delivered on the
// goroutine that caused them, often the execution goroutine, so observers
// must not call back into the clock's Start, Stop, Step or SetMode.
type ClockObserver interface {
	OnClockEvent(e ClockEvent)
}

// ClockObserverFunc adapts a function to the ClockObserver interface.
type ClockObserverFunc func(e ClockEvent)

// OnClockEvent calls f(e).
func (f ClockObserverFunc) OnClockEvent(e ClockEvent) {
	f(e)
}

// Clock drives a CPU by repeatedly executing its instructions under one of
// several pacing modes. At most one execution goroutine is active at a
// time; in Stepped mode instructions run on the caller's goroutine.
type Clock struct {
	StopTimeout time.Duration // bound on Stop's wait for the execution goroutine

	cpu *CPU

	mu       sync.Mutex // serializes Start, Stop, Step and SetMode
	mode     ClockMode
	freq     float64
	stepping bool          // started in Stepped mode
	stop     chan struct{} // closed to ask the execution goroutine to exit
	done     chan struct{} // closed when the execution goroutine exits
	quit     atomic.Bool
	running  atomic.Bool

	errMu sync.Mutex
	err   error

	obsMu     sync.RWMutex
	observers []ClockObserver

	meter freqMeter
}

func newClock(c *CPU) *Clock {
	return &Clock{
		StopTimeout: DefaultStopTimeout,
		cpu:         c,
		mode:        ModeFast,
	}
}

// AddObserver registers an observer for clock events.
func (k *Clock) AddObserver(o ClockObserver) {
	k.obsMu.Lock()
	defer k.obsMu.Unlock()
	k.observers = append(k.observers, o)
}

func (k *Clock) emit(kind EventKind, reason StopReason, err error) {
	k.obsMu.RLock()
	observers := k.observers
	k.obsMu.RUnlock()
	if len(observers) == 0 {
		return
	}

	actual, cycleRate := k.rates()
	e := ClockEvent{
		Kind:         kind,
		Mode:         k.mode,
		Frequency:    k.freq,
		Actual:       actual,
		CycleRate:    cycleRate,
		Instructions: k.cpu.Instructions(),
		Cycles:       k.cpu.Cycles(),
		Reason:       reason,
		Err:          err,
	}
	for _, o := range observers {
		o.OnClockEvent(e)
	}
}

// Mode returns the current clock mode.
func (k *Clock) Mode() ClockMode {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.mode
}

// Frequency returns the target frequency in cycles per second. It is zero
// for modes that have no target.
func (k *Clock) Frequency() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.freq
}

// Running reports whether the clock has been started and has not yet
// stopped.
func (k *Clock) Running() bool {
	return k.running.Load()
}

// Err returns the error that ended the most recent run, if any.
func (k *Clock) Err() error {
	k.errMu.Lock()
	defer k.errMu.Unlock()
	return k.err
}

func (k *Clock) setErr(err error) {
	k.errMu.Lock()
	k.err = err
	k.errMu.Unlock()
}

// SetMode changes the clock mode and target frequency. A frequency of zero
// selects the mode's default. A running clock is stopped, reconfigured and
// started again.
func (k *Clock) SetMode(mode ClockMode, freq float64) error {
	if mode < ModeFast || mode > ModeStepped {
		return fmt.Errorf("%w %d", ErrInvalidClockMode, int(mode))
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	wasRunning := k.running.Load()
	if wasRunning {
		if err := k.stopLocked(); err != nil {
			return err
		}
	}

	if freq <= 0 {
		switch mode {
		case ModeRealTime:
			freq = DefaultRealTimeFrequency
		case ModeLimited:
			freq = DefaultLimitedFrequency
		default:
			freq = 0
		}
	}
	k.mode, k.freq = mode, freq
	k.emit(EventModeChanged, StopNone, nil)

	if wasRunning {
		return k.startLocked()
	}
	return nil
}

// Start resets the clock's counters and places the CPU in the running
// state. Unless the clock is in Stepped mode, it launches the execution
// goroutine.
func (k *Clock) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.startLocked()
}

func (k *Clock) startLocked() error {
	if k.running.Load() {
		return ErrClockRunning
	}
	if err := k.reap(); err != nil {
		return err
	}

	k.setErr(nil)
	k.meter.reset(time.Now(), k.cpu.Instructions(), k.cpu.Cycles())
	k.cpu.resume()
	k.running.Store(true)
	k.emit(EventStarted, StopNone, nil)

	if k.mode == ModeStepped {
		k.stepping = true
		return nil
	}

	r := k.newRunner()
	k.quit.Store(false)
	k.stop = make(chan struct{})
	k.done = make(chan struct{})
	go k.loop(r, k.stop, k.done)
	return nil
}

// reap joins an execution goroutine that has already left its run loop.
func (k *Clock) reap() error {
	if k.done == nil {
		return nil
	}
	if k.running.Load() {
		return ErrClockBusy
	}
	<-k.done
	k.stop, k.done = nil, nil
	return nil
}

func (k *Clock) loop(r runner, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	err := r.run(k, stop)
	if err != nil {
		k.setErr(err)
		k.emit(EventFault, StopFault, err)
	}
	if k.cpu.Running() {
		k.cpu.halt(StopRequested)
	}
	k.running.Store(false)
	k.emit(EventStopped, k.cpu.LastStop(), err)
}

// Stop signals the execution goroutine to exit after its current
// instruction and waits up to StopTimeout for it. The CPU is left stopped.
// Stop is safe to call while the execution goroutine is running.
func (k *Clock) Stop() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stopLocked()
}

func (k *Clock) stopLocked() error {
	if k.stepping {
		k.stepping = false
		k.cpu.halt(StopRequested)
		k.running.Store(false)
		k.emit(EventStopped, StopRequested, nil)
		return nil
	}
	if k.done == nil {
		return nil
	}

	if !k.quit.Swap(true) {
		close(k.stop)
	}

	timeout := k.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-k.done:
	case <-t.C:
		return ErrStopTimeout
	}

	k.stop, k.done = nil, nil
	return nil
}

// Step executes one instruction on the caller's goroutine. It fails with
// ErrClockBusy while the execution goroutine is active. An execution error
// stops the clock and the CPU.
func (k *Clock) Step() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.reap(); err != nil {
		return err
	}

	err := k.cpu.Step()
	if err != nil {
		k.setErr(err)
		k.emit(EventFault, StopFault, err)
	}
	if k.stepping && !k.cpu.Running() {
		k.stepping = false
		k.running.Store(false)
		k.emit(EventStopped, k.cpu.LastStop(), err)
	}
	return err
}

// Wait blocks until the current run ends or ctx is done, and returns the
// error that ended the run.
func (k *Clock) Wait(ctx context.Context) error {
	k.mu.Lock()
	done := k.done
	k.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return k.Err()
}

// ActualFrequency returns the measured instructions per second over the
// most recent window of about one second.
func (k *Clock) ActualFrequency() float64 {
	ips, _ := k.rates()
	return ips
}

// ActualCycleFrequency returns the measured cycles per second over the
// most recent window of about one second.
func (k *Clock) ActualCycleFrequency() float64 {
	_, cps := k.rates()
	return cps
}

func (k *Clock) rates() (ips, cps float64) {
	return k.meter.rates(time.Now(), k.cpu.Instructions(), k.cpu.Cycles())
}

// sample is called periodically by the runners. It closes the measurement
// window once a second and reports the new rates.
func (k *Clock) sample() {
	if k.meter.update(time.Now(), k.cpu.Instructions(), k.cpu.Cycles()) {
		k.emit(EventFrequencySample, StopNone, nil)
	}
}

// freqMeter measures execution rates over a rolling window.
type freqMeter struct {
	mu         sync.Mutex
	start      time.Time
	instrs     uint64
	cycles     uint64
	ips, cps   float64
	haveSample bool
}

const sampleWindow = time.Second

func (m *freqMeter) reset(now time.Time, instrs, cycles uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start, m.instrs, m.cycles = now, instrs, cycles
	m.ips, m.cps, m.haveSample = 0, 0, false
}

func (m *freqMeter) update(now time.Time, instrs, cycles uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	elapsed := now.Sub(m.start)
	if elapsed < sampleWindow {
		return false
	}
	secs := elapsed.Seconds()
	m.ips = float64(instrs-m.instrs) / secs
	m.cps = float64(cycles-m.cycles) / secs
	m.start, m.instrs, m.cycles = now, instrs, cycles
	m.haveSample = true
	return true
}

func (m *freqMeter) rates(now time.Time, instrs, cycles uint64) (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.haveSample {
		return m.ips, m.cps
	}
	secs := now.Sub(m.start).Seconds()
	if secs <= 0 || m.start.IsZero() {
		return 0, 0
	}
	return float64(instrs-m.instrs) / secs, float64(cycles-m.cycles) / secs
}
