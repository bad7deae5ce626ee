/*
 * Copyright (c) 2026. The MZHHC Authors -- All Rights Reserved
 *
 * This file is part of MZHHC project.
 *
 * MZHHC is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as the Free Software Foundation,
 * either version 3 of the License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package pwm implements a proportional-integral regulator whose output is
// rendered as pulse-width modulation of a heating circuit within a fixed
// cycle window. It is pure bookkeeping: no clocks, no I/O, callers pass now.
package pwm

import (
	"math"
	"time"
)

const (
	// First duty computation has no previous sample; assume one minute.
	firstDTMinutes = 1.0
	// Clock jitter guard for back-to-back updates.
	minDTMinutes = 0.1

	// Below this duty a too-short pulse is dropped, above the complement
	// a too-short pause is dropped.
	lowDutyCutoff  = 5.0
	highDutyCutoff = 95.0
)

type Params struct {
	Kp         float64
	Ki         float64
	CycleTime  time.Duration
	MinOnTime  time.Duration
	MinOffTime time.Duration
	// DeadTime is the valve open plus close transit, added on top of the
	// nominal pulse so the circuit actually flows for the time the duty
	// implies.
	DeadTime time.Duration
}

type Regulator struct {
	p Params

	integral   float64
	duty       float64
	onTime     time.Duration
	cycleStart time.Time
	lastUpdate time.Time
}

func NewRegulator(p Params) *Regulator {
	return &Regulator{p: p}
}

// ComputeDuty advances the integral by error over the elapsed minutes and
// returns the clamped duty in [0,100]. The integral itself is clamped to
// +/-100/|Ki| so the I-term alone can never ask for more than a full cycle.
func (r *Regulator) ComputeDuty(err float64, now time.Time) float64 {
	dt := firstDTMinutes
	if !r.lastUpdate.IsZero() {
		dt = now.Sub(r.lastUpdate).Minutes()
		if dt < minDTMinutes {
			dt = minDTMinutes
		}
	}
	r.lastUpdate = now

	r.integral += err * dt
	if r.p.Ki != 0 {
		limit := 100.0 / math.Abs(r.p.Ki)
		r.integral = clamp(r.integral, -limit, limit)
	}

	r.duty = clamp(r.p.Kp*err+r.p.Ki*r.integral, 0.0, 100.0)
	return r.duty
}

// OnTime converts a duty into the pulse length for the current cycle,
// dead-time compensated and snapped to the minimum on/off windows.
func (r *Regulator) OnTime(duty float64) time.Duration {
	on := time.Duration(float64(r.p.CycleTime) * duty / 100.0)
	if on > 0 {
		on += r.p.DeadTime
	}

	if on > 0 && on < r.p.MinOnTime {
		if duty < lowDutyCutoff {
			on = 0
		} else {
			on = r.p.MinOnTime
		}
	}

	if off := r.p.CycleTime - on; off > 0 && off < r.p.MinOffTime {
		if duty > highDutyCutoff {
			on = r.p.CycleTime
		} else {
			on = r.p.CycleTime - r.p.MinOffTime
		}
	}

	if on < 0 {
		on = 0
	}
	if on > r.p.CycleTime {
		on = r.p.CycleTime
	}
	r.onTime = on
	return on
}

// ShouldBeOn places now inside the cycle window. The window restarts once
// the full cycle has elapsed; the pulse occupies the window's head.
func (r *Regulator) ShouldBeOn(now time.Time) bool {
	if r.cycleStart.IsZero() {
		r.cycleStart = now
	}
	elapsed := now.Sub(r.cycleStart)
	if elapsed >= r.p.CycleTime {
		r.cycleStart = now
		elapsed = 0
	}
	return elapsed < r.onTime
}

// Reset drops accumulated state. Used when a zone is switched off so a
// stale integral cannot fire the circuit on re-enable.
func (r *Regulator) Reset() {
	r.integral = 0
	r.duty = 0
	r.onTime = 0
	r.cycleStart = time.Time{}
	r.lastUpdate = time.Time{}
}

func (r *Regulator) Duty() float64 { return r.duty }

func (r *Regulator) Integral() float64 { return r.integral }

func (r *Regulator) CurrentOnTime() time.Duration { return r.onTime }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
