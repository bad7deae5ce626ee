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

package internal

import "time"

// The control core talks to the outside world through these three
// collaborators only. Production implementations live in points/ and
// scheduler.go; tests supply fakes.

// SensorProvider answers the last known value for a named point, or
// reports it unavailable. Reads never block.
type SensorProvider interface {
	Read(pointID string) (float64, bool)
}

// Actuator carries switch and set-point commands to named devices.
// Commands are idempotent; the loop re-issues them every tick.
type Actuator interface {
	Set(deviceID string, on bool) error
	SetSetpoint(deviceID string, temperature float64) error
}

// CancelFunc stops a delayed action. It reports whether the action was
// stopped before it fired.
type CancelFunc func() bool

// Scheduler drives the control loop and delayed actions. OnTick runs fn
// on one goroutine, so at most one tick is in flight.
type Scheduler interface {
	OnTick(period time.Duration, fn func(now time.Time)) (stop func())
	ScheduleOnce(delay time.Duration, fn func()) CancelFunc
}
