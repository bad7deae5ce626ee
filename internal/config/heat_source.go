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

import "github.com/hydrozone/mzhhc/internal/logger"

const (
	defaultHeatingBaseOffset = 3.0
	defaultWeatherSlopeHeat  = 0.25
	defaultFlowCurveOffset   = 0.0
	defaultMinWaterTemp      = 30.0
	defaultMaxWaterTemp      = 45.0
)

// HeatSourceConfig describes the boiler side: where its commands go and how
// the weather-compensated flow temperature is shaped. Empty topics leave the
// coordinator tracking state without commanding real hardware. The optional
// supply/return/modulation sensors are read-backs from the heat source
// itself, reported in the boiler status and metrics.
type HeatSourceConfig struct {
	EnableTopic       string        `yaml:"enable_topic,omitempty"`
	SetpointTopic     string        `yaml:"setpoint_topic,omitempty"`
	HeatingBaseOffset *float64      `yaml:"heating_base_offset"`
	WeatherSlopeHeat  *float64      `yaml:"weather_slope_heat"`
	FlowCurveOffset   *float64      `yaml:"flow_curve_offset"`
	MinWaterTemp      *float64      `yaml:"min_water_temp"`
	MaxWaterTemp      *float64      `yaml:"max_water_temp"`
	SupplySensor      *SensorConfig `yaml:"supply_sensor,omitempty"`
	ReturnSensor      *SensorConfig `yaml:"return_sensor,omitempty"`
	ModulationSensor  *SensorConfig `yaml:"modulation_sensor,omitempty"`
}

func NewHeatSourceConfig() *HeatSourceConfig {
	cfg := &HeatSourceConfig{}
	cfg.FillDefaults()
	return cfg
}

func (c *HeatSourceConfig) FillDefaults() {
	if c.HeatingBaseOffset == nil {
		c.HeatingBaseOffset = GetPTR(defaultHeatingBaseOffset)
	}
	if c.WeatherSlopeHeat == nil {
		c.WeatherSlopeHeat = GetPTR(defaultWeatherSlopeHeat)
	}
	if c.FlowCurveOffset == nil {
		c.FlowCurveOffset = GetPTR(defaultFlowCurveOffset)
	}
	if c.MinWaterTemp == nil {
		c.MinWaterTemp = GetPTR(defaultMinWaterTemp)
	}
	if c.MaxWaterTemp == nil {
		c.MaxWaterTemp = GetPTR(defaultMaxWaterTemp)
	}
	if c.SupplySensor != nil {
		c.SupplySensor.FillDefaults()
	}
	if c.ReturnSensor != nil {
		c.ReturnSensor.FillDefaults()
	}
	if c.ModulationSensor != nil {
		c.ModulationSensor.FillDefaults()
	}
}

func (c *HeatSourceConfig) validate() {
	if *c.MinWaterTemp > *c.MaxWaterTemp {
		logger.L().Errorf(
			"min_water_temp %v above max_water_temp %v, using defaults %v/%v",
			*c.MinWaterTemp, *c.MaxWaterTemp, defaultMinWaterTemp, defaultMaxWaterTemp,
		)
		c.MinWaterTemp = GetPTR(defaultMinWaterTemp)
		c.MaxWaterTemp = GetPTR(defaultMaxWaterTemp)
	}
	if c.SupplySensor != nil && c.SupplySensor.Topic == "" {
		c.SupplySensor = nil
	}
	if c.ReturnSensor != nil && c.ReturnSensor.Topic == "" {
		c.ReturnSensor = nil
	}
	if c.ModulationSensor != nil && c.ModulationSensor.Topic == "" {
		c.ModulationSensor = nil
	}
}
