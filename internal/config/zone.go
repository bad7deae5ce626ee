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

package config

import (
	"time"

	"github.com/pkg/errors"
)

const (
	ModeBangBang = "bang_bang"
	ModePWM      = "pwm"

	defaultTargetTemp = 21.0
	defaultHysteresis = 0.5

	defaultPWMCycleTime  = Duration(20 * time.Minute)
	defaultPWMMinOnTime  = Duration(6 * time.Minute)
	defaultPWMMinOffTime = Duration(5 * time.Minute)
	defaultPWMKp         = 30.0
	defaultPWMKi         = 2.0
)

type ZoneConfig struct {
	// Name is the display name; the map key in Config.Zones is the zone id.
	Name         string         `yaml:"name,omitempty"`
	RoomSensor   *SensorConfig  `yaml:"room_sensor"`
	TargetTemp   *float64       `yaml:"target_temp"`
	ControlMode  string         `yaml:"control_mode"`
	Hysteresis   *float64       `yaml:"hysteresis"`
	PWM          *PWMConfig     `yaml:"pwm,omitempty"`
	Valves       []*ValveConfig `yaml:"valves"`
	SupplySensor *SensorConfig  `yaml:"supply_sensor,omitempty"`
	ReturnSensor *SensorConfig  `yaml:"return_sensor,omitempty"`
}

type PWMConfig struct {
	CycleTime  Duration `yaml:"cycle_time"`
	MinOnTime  Duration `yaml:"min_on_time"`
	MinOffTime Duration `yaml:"min_off_time"`
	Kp         *float64 `yaml:"kp"`
	Ki         *float64 `yaml:"ki"`
}

func NewZoneConfig() *ZoneConfig {
	cfg := &ZoneConfig{
		Valves: make([]*ValveConfig, 0),
	}
	cfg.FillDefaults()
	return cfg
}

func (z *ZoneConfig) FillDefaults() {
	if z.TargetTemp == nil {
		z.TargetTemp = GetPTR(defaultTargetTemp)
	}
	if z.ControlMode == "" {
		z.ControlMode = ModeBangBang
	}
	if z.Hysteresis == nil {
		z.Hysteresis = GetPTR(defaultHysteresis)
	}
	if z.ControlMode == ModePWM && z.PWM == nil {
		z.PWM = &PWMConfig{}
	}
	if z.PWM != nil {
		z.PWM.FillDefaults()
	}
	if z.RoomSensor != nil {
		z.RoomSensor.FillDefaults()
	}
	if z.SupplySensor != nil {
		z.SupplySensor.FillDefaults()
	}
	if z.ReturnSensor != nil {
		z.ReturnSensor.FillDefaults()
	}
	for _, v := range z.Valves {
		v.FillDefaults()
	}
}

func (p *PWMConfig) FillDefaults() {
	if p.CycleTime == 0 {
		p.CycleTime = defaultPWMCycleTime
	}
	if p.MinOnTime == 0 {
		p.MinOnTime = defaultPWMMinOnTime
	}
	if p.MinOffTime == 0 {
		p.MinOffTime = defaultPWMMinOffTime
	}
	if p.Kp == nil {
		p.Kp = GetPTR(defaultPWMKp)
	}
	if p.Ki == nil {
		p.Ki = GetPTR(defaultPWMKi)
	}
}

// validate reports why a zone cannot take part in control. Callers drop
// the zone instead of failing the whole configuration.
func (z *ZoneConfig) validate() error {
	if z.RoomSensor == nil || z.RoomSensor.Topic == "" {
		return errors.New("no room sensor topic")
	}
	switch z.ControlMode {
	case ModeBangBang:
		if *z.Hysteresis <= 0 {
			return errors.Errorf("hysteresis must be positive, got %v", *z.Hysteresis)
		}
	case ModePWM:
		if err := z.PWM.validate(); err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown control mode `%v`", z.ControlMode)
	}

	if *z.TargetTemp < MinTargetTemp {
		z.TargetTemp = GetPTR(MinTargetTemp)
	}
	if *z.TargetTemp > MaxTargetTemp {
		z.TargetTemp = GetPTR(MaxTargetTemp)
	}

	for _, v := range z.Valves {
		if err := v.validate(); err != nil {
			return errors.WithMessage(err, "bad valve")
		}
	}
	if len(z.Valves) == 0 {
		return errors.New("no valves configured")
	}
	return nil
}

func (p *PWMConfig) validate() error {
	if p.CycleTime <= 0 {
		return errors.Errorf("pwm cycle_time must be positive, got %v", p.CycleTime)
	}
	if p.MinOnTime < 0 || p.MinOffTime < 0 {
		return errors.New("pwm min_on_time and min_off_time must not be negative")
	}
	if p.MinOnTime+p.MinOffTime > p.CycleTime {
		return errors.Errorf(
			"pwm min_on_time %v + min_off_time %v exceed cycle_time %v",
			p.MinOnTime, p.MinOffTime, p.CycleTime,
		)
	}
	if *p.Kp < 0 || *p.Ki < 0 {
		return errors.New("pwm gains must not be negative")
	}
	return nil
}
