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

import "github.com/pkg/errors"

const defaultMaxFloorTemp = 30.0

// ValveConfig binds a zone to one heating circuit. The same valve id may
// appear in several zones; such a valve serves a shared sub-circuit.
type ValveConfig struct {
	ValveID      string        `yaml:"valve_id"`
	FloorSensor  *SensorConfig `yaml:"floor_sensor,omitempty"`
	MaxFloorTemp *float64      `yaml:"max_floor_temp"`
}

func (v *ValveConfig) FillDefaults() {
	if v.MaxFloorTemp == nil {
		v.MaxFloorTemp = GetPTR(defaultMaxFloorTemp)
	}
	if v.FloorSensor != nil {
		v.FloorSensor.FillDefaults()
	}
}

func (v *ValveConfig) validate() error {
	if v.ValveID == "" {
		return errors.New("empty valve_id")
	}
	if *v.MaxFloorTemp <= 0 {
		return errors.Errorf("valve `%v`: max_floor_temp must be positive, got %v", v.ValveID, *v.MaxFloorTemp)
	}
	if v.FloorSensor != nil && v.FloorSensor.Topic == "" {
		v.FloorSensor = nil
	}
	return nil
}
