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

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hydrozone/mzhhc/internal/config"
	"github.com/hydrozone/mzhhc/internal/db"
	"github.com/hydrozone/mzhhc/internal/logger"
)

type BoilerState int

const (
	BoilerIdle BoilerState = iota
	BoilerRunning
	BoilerPendingShutdown
)

func (s BoilerState) String() string {
	switch s {
	case BoilerRunning:
		return "running"
	case BoilerPendingShutdown:
		return "pending_shutdown"
	}
	return "idle"
}

const (
	// Flow target used when demand is computed without any zone target,
	// which only happens on a degenerate configuration.
	fallbackWarmestTarget = 20.0
	// Set-point changes below this are not re-published.
	setpointTolerance = 0.05
)

// BoilerController drives the heat source. It turns the aggregate zone
// demand into on/off commands and a weather-compensated flow set-point,
// and delays the off command so valves can close while the pump still runs.
type BoilerController struct {
	lock      sync.Mutex
	cfg       *config.HeatSourceConfig
	actuator  Actuator
	scheduler Scheduler
	journal   *db.Journal

	shutdownDelay time.Duration

	state          BoilerState
	targetFlow     float64
	pushedFlow     float64
	pushedValid    bool
	cancelShutdown CancelFunc
}

func NewBoilerController(
	cfg *config.HeatSourceConfig, shutdownDelay time.Duration,
	actuator Actuator, scheduler Scheduler, journal *db.Journal,
) *BoilerController {
	return &BoilerController{
		cfg:           cfg,
		actuator:      actuator,
		scheduler:     scheduler,
		journal:       journal,
		shutdownDelay: shutdownDelay,
		state:         BoilerIdle,
		targetFlow:    *cfg.MinWaterTemp,
	}
}

// Update advances the heat source state with this tick's demand picture.
// demandingTargets holds the target temperature of every zone that wants
// heat right now; an empty slice means no demand. When the outside reading
// is unavailable the previous flow target is kept.
func (b *BoilerController) Update(now time.Time, demandingTargets []float64, outside float64, haveOutside bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	demand := len(demandingTargets) > 0
	warmest := fallbackWarmestTarget
	if demand {
		warmest = demandingTargets[0]
		for _, t := range demandingTargets[1:] {
			if t > warmest {
				warmest = t
			}
		}
	}

	if haveOutside {
		flow := warmest + *b.cfg.HeatingBaseOffset +
			(warmest-outside)*(*b.cfg.WeatherSlopeHeat) + *b.cfg.FlowCurveOffset
		b.targetFlow = clamp(flow, *b.cfg.MinWaterTemp, *b.cfg.MaxWaterTemp)
	}

	if demand {
		if b.state != BoilerRunning {
			from := b.state
			if b.cancelShutdown != nil {
				b.cancelShutdown()
				b.cancelShutdown = nil
			}
			b.state = BoilerRunning
			b.pushedValid = false
			logger.L().Infof("Heat demand on, flow target %.1f (was %v)", b.targetFlow, from)
			b.journalStateLocked(from, BoilerRunning)
		}
		b.commandLocked(true)
		if !b.pushedValid || math.Abs(b.targetFlow-b.pushedFlow) > setpointTolerance {
			b.pushSetpointLocked()
		}
		return
	}

	switch b.state {
	case BoilerRunning:
		b.state = BoilerPendingShutdown
		b.cancelShutdown = b.scheduler.ScheduleOnce(b.shutdownDelay, b.onShutdownTimer)
		logger.L().Infof("Heat demand gone, heat source off in %v", b.shutdownDelay)
		b.journalStateLocked(BoilerRunning, BoilerPendingShutdown)
	case BoilerPendingShutdown:
		// The timer is pending; renewed demand would have canceled it above.
	case BoilerIdle:
		b.commandLocked(false)
	}
}

// onShutdownTimer runs on the scheduler's timer goroutine. Demand may have
// come back between the schedule and the fire, so the state is re-checked
// under the lock and a stale fire is a no-op.
func (b *BoilerController) onShutdownTimer() {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.state != BoilerPendingShutdown {
		return
	}
	b.state = BoilerIdle
	b.cancelShutdown = nil
	b.commandLocked(false)
	logger.L().Info("Heat source switched off")
	b.journalStateLocked(BoilerPendingShutdown, BoilerIdle)
}

func (b *BoilerController) commandLocked(on bool) {
	if b.cfg.EnableTopic == "" {
		return
	}
	if err := b.actuator.Set(b.cfg.EnableTopic, on); err != nil {
		logger.L().Error(err)
	}
}

func (b *BoilerController) pushSetpointLocked() {
	if b.cfg.SetpointTopic != "" {
		if err := b.actuator.SetSetpoint(b.cfg.SetpointTopic, b.targetFlow); err != nil {
			// Not marked as pushed: the next tick retries.
			logger.L().Error(err)
			return
		}
	}
	b.pushedFlow = b.targetFlow
	b.pushedValid = true
	if err := b.journal.Record(db.KindFlowSetpoint, "heat_source", fmt.Sprintf("%.2f", b.targetFlow)); err != nil {
		logger.L().Error(err)
	}
}

func (b *BoilerController) journalStateLocked(from, to BoilerState) {
	if err := b.journal.Record(db.KindBoilerState, "heat_source", from.String()+" -> "+to.String()); err != nil {
		logger.L().Error(err)
	}
}

// Stop cancels a pending shutdown timer. Used on controller teardown.
func (b *BoilerController) Stop() {
	b.lock.Lock()
	defer b.lock.Unlock()
	if b.cancelShutdown != nil {
		b.cancelShutdown()
		b.cancelShutdown = nil
	}
}

func (b *BoilerController) State() BoilerState {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.state
}

func (b *BoilerController) TargetFlow() float64 {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.targetFlow
}
