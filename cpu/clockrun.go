// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

import (
	"runtime"
	"sync/atomic"
	"time"
)

const (
	// Fast mode yields the goroutine after this many instructions.
	fastYieldInterval = 10000

	// Paced modes check the frequency meter after this many instructions.
	sampleInterval = 1024

	// RealTime waits longer than this sleep first and spin the rest.
	spinThreshold = time.Millisecond

	// RealTime stops trying to catch up once it falls this far behind.
	maxLag = 100 * time.Millisecond
)

// A runner is the execution strategy for one clock mode. It is chosen once
// when the clock starts and runs until the CPU stops, the clock is asked to
// quit, or an instruction fails.
type runner interface {
	run(k *Clock, stop <-chan struct{}) error
}

func (k *Clock) newRunner() runner {
	switch k.mode {
	case ModeRealTime:
		return &realTimeRunner{nsPerCycle: float64(time.Second) / k.freq, rebase: uint64(k.freq)}
	case ModeLimited:
		return &limitedRunner{interval: limitedInterval(k.freq)}
	default:
		return fastRunner{}
	}
}

// limitedInterval converts a frequency to a whole number of milliseconds,
// never less than one.
func limitedInterval(freq float64) time.Duration {
	ms := time.Duration(1000/freq + 0.5)
	if ms < 1 {
		ms = 1
	}
	return ms * time.Millisecond
}

type fastRunner struct{}

func (fastRunner) run(k *Clock, stop <-chan struct{}) error {
	c := k.cpu
	for n := 1; !k.quit.Load() && c.Running(); n++ {
		if err := c.Step(); err != nil {
			return err
		}
		if n == fastYieldInterval {
			n = 0
			runtime.Gosched()
			k.sample()
		}
	}
	return nil
}

// realTimeRunner paces instructions against a wall-clock base. After each
// instruction it waits until the time its cycles are due, sleeping for most
// of a long wait and spinning for the remainder.
type realTimeRunner struct {
	nsPerCycle float64
	rebase     uint64 // cycles between rebases of the time base
}

func (r *realTimeRunner) run(k *Clock, stop <-chan struct{}) error {
	c := k.cpu
	base := time.Now()
	var due uint64 // cycles executed since base

	for n := 1; !k.quit.Load() && c.Running(); n++ {
		before := c.Cycles()
		if err := c.Step(); err != nil {
			return err
		}
		due += c.Cycles() - before

		target := base.Add(time.Duration(float64(due) * r.nsPerCycle))
		wait := time.Until(target)
		switch {
		case wait > spinThreshold:
			if !sleep(stop, wait-spinThreshold) {
				return nil
			}
			spinUntil(target, &k.quit)
		case wait > 0:
			spinUntil(target, &k.quit)
		case wait < -maxLag:
			target, due = time.Now(), 0
			base = target
		}

		if due >= r.rebase {
			base, due = target, 0
		}
		if n == sampleInterval {
			n = 0
			k.sample()
		}
	}
	return nil
}

type limitedRunner struct {
	interval time.Duration
}

func (r *limitedRunner) run(k *Clock, stop <-chan struct{}) error {
	c := k.cpu
	for !k.quit.Load() && c.Running() {
		if err := c.Step(); err != nil {
			return err
		}
		if !sleep(stop, r.interval) {
			return nil
		}
		k.sample()
	}
	return nil
}

// sleep waits for d and reports false if stop closed first.
func sleep(stop <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return true
	}
}

func spinUntil(target time.Time, quit *atomic.Bool) {
	for time.Now().Before(target) && !quit.Load() {
	}
}
