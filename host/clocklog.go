// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"log/slog"

	"github.com/beevik/go8/cpu"
)

// clockLogger writes clock events to a structured logger.
type clockLogger struct {
	log *slog.Logger
}

func (l clockLogger) OnClockEvent(e cpu.ClockEvent) {
	switch e.Kind {
	case cpu.EventModeChanged:
		l.log.Info("clock mode changed", "mode", e.Mode, "frequency", e.Frequency)
	case cpu.EventStarted:
		l.log.Debug("clock started", "mode", e.Mode, "frequency", e.Frequency)
	case cpu.EventStopped:
		l.log.Debug("clock stopped",
			"reason", e.Reason,
			"instructions", e.Instructions,
			"cycles", e.Cycles,
			"cps", int64(e.CycleRate))
	case cpu.EventFrequencySample:
		l.log.Debug("clock sample", "ips", int64(e.Actual), "cps", int64(e.CycleRate))
	case cpu.EventFault:
		l.log.Error("clock fault", "err", e.Err)
	}
}
