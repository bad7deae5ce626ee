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

package metrics

import (
	"net/http"

	"github.com/hydrozone/mzhhc/internal/logger"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mzhhc"

type Metrics struct {
	registry *prometheus.Registry

	ZoneTemperature *prometheus.GaugeVec
	ZoneTarget      *prometheus.GaugeVec
	ZoneDemand      *prometheus.GaugeVec
	ZoneDuty        *prometheus.GaugeVec
	ZoneDeltaT      *prometheus.GaugeVec
	ZonePower       *prometheus.GaugeVec

	OutsideTemperature prometheus.Gauge
	TargetFlowTemp     prometheus.Gauge
	BoilerState        prometheus.Gauge
	BoilerSupplyTemp   prometheus.Gauge
	BoilerReturnTemp   prometheus.Gauge
	BoilerModulation   prometheus.Gauge
	Demand             prometheus.Gauge

	SafetyTrips      *prometheus.CounterVec
	ActuatorFailures prometheus.Counter
	Ticks            prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	zoneGauge := func(name, help string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help},
			[]string{"zone"},
		)
	}

	m.ZoneTemperature = zoneGauge("zone_temperature_celsius", "Last good room temperature per zone.")
	m.ZoneTarget = zoneGauge("zone_target_celsius", "Target temperature per zone.")
	m.ZoneDemand = zoneGauge("zone_demand", "1 while the zone calls for heat.")
	m.ZoneDuty = zoneGauge("zone_duty_percent", "PWM duty cycle per zone.")
	m.ZoneDeltaT = zoneGauge("zone_delta_t_celsius", "Supply minus return temperature per zone.")
	m.ZonePower = zoneGauge("zone_power_kw", "Estimated delivered power per zone.")

	m.OutsideTemperature = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "outside_temperature_celsius", Help: "Last good outside temperature.",
	})
	m.TargetFlowTemp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "target_flow_celsius", Help: "Weather-compensated flow set-point.",
	})
	m.BoilerState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "boiler_state", Help: "0 idle, 1 running, 2 pending shutdown.",
	})
	m.BoilerSupplyTemp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "boiler_supply_celsius", Help: "Heat source supply temperature read-back.",
	})
	m.BoilerReturnTemp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "boiler_return_celsius", Help: "Heat source return temperature read-back.",
	})
	m.BoilerModulation = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "boiler_modulation_percent", Help: "Heat source burner modulation read-back.",
	})
	m.Demand = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "demand", Help: "1 while any zone calls for heat.",
	})

	m.SafetyTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "safety_trips_total", Help: "Floor safety suppressions."},
		[]string{"valve"},
	)
	m.ActuatorFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "actuator_failures_total", Help: "Failed actuator commands.",
	})
	m.Ticks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "ticks_total", Help: "Control loop invocations.",
	})

	m.registry.MustRegister(
		m.ZoneTemperature, m.ZoneTarget, m.ZoneDemand, m.ZoneDuty, m.ZoneDeltaT, m.ZonePower,
		m.OutsideTemperature, m.TargetFlowTemp, m.BoilerState,
		m.BoilerSupplyTemp, m.BoilerReturnTemp, m.BoilerModulation, m.Demand,
		m.SafetyTrips, m.ActuatorFailures, m.Ticks,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr in the background and returns the server
// for shutdown. Empty addr disables exposition.
func (m *Metrics) Serve(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.L().Infof("Metrics listening on %v", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L().Errorf("Metrics server: %v", err)
		}
	}()
	return srv
}
