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
	"sync"
	"time"

	"github.com/hydrozone/mzhhc/internal/config"
	"github.com/hydrozone/mzhhc/internal/pwm"
)

// ZoneController decides whether a single zone wants heat. It holds the
// per-zone control state (target, enable flag, hysteresis latch or PWM
// regulator) and is advanced once per tick with the latest room reading.
type ZoneController struct {
	name      string
	mu        sync.RWMutex
	cfg       *config.ZoneConfig
	regulator *pwm.Regulator
	target    float64
	enabled   bool
	isHeating bool
	lastTemp  float64
	lastSeen  bool
}

func newZoneController(name string, cfg *config.ZoneConfig, valveDeadTime time.Duration) *ZoneController {
	z := &ZoneController{
		name:    name,
		cfg:     cfg,
		target:  *cfg.TargetTemp,
		enabled: true,
	}
	if cfg.ControlMode == config.ModePWM {
		z.regulator = pwm.NewRegulator(
			pwm.Params{
				Kp:         *cfg.PWM.Kp,
				Ki:         *cfg.PWM.Ki,
				CycleTime:  time.Duration(cfg.PWM.CycleTime),
				MinOnTime:  time.Duration(cfg.PWM.MinOnTime),
				MinOffTime: time.Duration(cfg.PWM.MinOffTime),
				DeadTime:   valveDeadTime,
			},
		)
	}
	return z
}

// Evaluate advances the zone control state with the current room reading and
// returns the heat demand. An unavailable reading freezes the state: the
// previous demand is kept and the PWM regulator does not accumulate time.
func (z *ZoneController) Evaluate(current float64, available bool, now time.Time) bool {
	z.mu.Lock()
	defer z.mu.Unlock()

	if !z.enabled {
		z.forceOffLocked()
		return false
	}
	if !available {
		z.lastSeen = false
		return z.isHeating
	}
	z.lastTemp = current
	z.lastSeen = true

	if z.cfg.ControlMode == config.ModePWM {
		z.isHeating = z.pwmDemandLocked(current, now)
	} else {
		z.isHeating = z.bangBangDemandLocked(current)
	}
	return z.isHeating
}

// bangBangDemandLocked applies the hysteresis band. The zone holds its
// previous output while the temperature sits inside (target-h, target+h).
func (z *ZoneController) bangBangDemandLocked(current float64) bool {
	h := *z.cfg.Hysteresis
	if !z.isHeating && current < z.target-h {
		return true
	}
	if z.isHeating && current >= z.target+h {
		return false
	}
	return z.isHeating
}

func (z *ZoneController) pwmDemandLocked(current float64, now time.Time) bool {
	duty := z.regulator.ComputeDuty(z.target-current, now)
	z.regulator.OnTime(duty)
	return z.regulator.ShouldBeOn(now)
}

func (z *ZoneController) forceOffLocked() {
	z.isHeating = false
	if z.regulator != nil {
		z.regulator.Reset()
	}
}

// ForceOff drops the demand immediately and resets the PWM regulator, so a
// re-enabled zone starts from a clean cycle.
func (z *ZoneController) ForceOff() {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.forceOffLocked()
}

// SetTarget updates the target temperature, clamped to the allowed range,
// and returns the value actually applied.
func (z *ZoneController) SetTarget(v float64) float64 {
	clamped := clamp(v, config.MinTargetTemp, config.MaxTargetTemp)
	z.mu.Lock()
	z.target = clamped
	z.mu.Unlock()
	return clamped
}

func (z *ZoneController) SetEnabled(on bool) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.enabled = on
	if !on {
		z.forceOffLocked()
	}
}

func (z *ZoneController) Name() string {
	return z.name
}

func (z *ZoneController) Target() float64 {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.target
}

func (z *ZoneController) Enabled() bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.enabled
}

func (z *ZoneController) IsHeating() bool {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.isHeating
}

// Duty reports the last computed PWM duty cycle, 0 for bang-bang zones.
func (z *ZoneController) Duty() float64 {
	z.mu.RLock()
	defer z.mu.RUnlock()
	if z.regulator == nil {
		return 0
	}
	return z.regulator.Duty()
}

// LastTemperature returns the room reading used on the most recent
// evaluation and whether that reading was available.
func (z *ZoneController) LastTemperature() (float64, bool) {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.lastTemp, z.lastSeen
}

func (z *ZoneController) Mode() string {
	return z.cfg.ControlMode
}

func (z *ZoneController) Valves() []*config.ValveConfig {
	return z.cfg.Valves
}

func (z *ZoneController) RoomSensor() *config.SensorConfig {
	return z.cfg.RoomSensor
}

func (z *ZoneController) SupplySensor() *config.SensorConfig {
	return z.cfg.SupplySensor
}

func (z *ZoneController) ReturnSensor() *config.SensorConfig {
	return z.cfg.ReturnSensor
}
