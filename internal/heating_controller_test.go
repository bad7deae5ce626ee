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
	"encoding/json"
	"testing"
	"time"

	"github.com/hydrozone/mzhhc/internal/config"
	"github.com/hydrozone/mzhhc/internal/db"
	"github.com/hydrozone/mzhhc/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loopConfig() *config.Config {
	cfg := &config.Config{
		MQTTConfig:    config.NewMQTTConfig(),
		OutsideSensor: &config.SensorConfig{Topic: "weather/outside"},
		HeatSource: &config.HeatSourceConfig{
			EnableTopic:      "boiler/enable",
			SetpointTopic:    "boiler/setpoint",
			SupplySensor:     &config.SensorConfig{Topic: "boiler/supply"},
			ReturnSensor:     &config.SensorConfig{Topic: "boiler/return"},
			ModulationSensor: &config.SensorConfig{Topic: "boiler/modulation"},
		},
		Zones: map[string]*config.ZoneConfig{
			"living": {
				RoomSensor: &config.SensorConfig{Topic: "home/living/temp"},
				Valves:     []*config.ValveConfig{{ValveID: "valve/living"}},
			},
			"bath": {
				RoomSensor: &config.SensorConfig{Topic: "home/bath/temp"},
				Valves: []*config.ValveConfig{
					{ValveID: "valve/bath", FloorSensor: &config.SensorConfig{Topic: "home/bath/floor"}},
				},
			},
		},
	}
	cfg.FillDefaults()
	cfg.Validate()
	return cfg
}

type loopHarness struct {
	ctrl    *HeatingController
	sensors *fakeSensors
	act     *fakeActuator
	sched   *fakeScheduler
	journal *db.Journal
}

func newLoopHarness(t *testing.T) *loopHarness {
	t.Helper()
	journal, err := db.OpenJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	h := &loopHarness{
		sensors: &fakeSensors{values: map[string]float64{}},
		act:     &fakeActuator{},
		sched:   &fakeScheduler{},
		journal: journal,
	}
	h.ctrl = NewHeatingController(
		loopConfig(), Deps{
			Sensors:   h.sensors,
			Actuator:  h.act,
			Scheduler: h.sched,
			Journal:   journal,
			Metrics:   metrics.New(),
		},
	)
	return h
}

func (h *loopHarness) kinds(t *testing.T) map[string]int {
	t.Helper()
	events, err := h.journal.Recent(100)
	require.NoError(t, err)
	out := make(map[string]int)
	for _, e := range events {
		out[e.Kind]++
	}
	return out
}

func TestTickColdZoneOpensValveAndStartsBoiler(t *testing.T) {
	h := newLoopHarness(t)
	now := time.Now()
	h.sensors.values["home/living/temp"] = 19.0
	h.sensors.values["home/bath/temp"] = 23.0
	h.sensors.values["weather/outside"] = 0.0

	h.ctrl.Tick(now)

	// Valves are commanded in sorted order, then the heat source.
	require.Len(t, h.act.sets, 3)
	assert.Equal(t, setCall{"valve/bath", false}, h.act.sets[0])
	assert.Equal(t, setCall{"valve/living", true}, h.act.sets[1])
	assert.Equal(t, setCall{"boiler/enable", true}, h.act.sets[2])

	// 21 + 3 + (21-0)*0.25 = 29.25, clamped up to min water 30.0.
	require.Len(t, h.act.setpoints, 1)
	assert.InDelta(t, 30.0, h.act.setpoints[0].value, 1e-9)

	kinds := h.kinds(t)
	assert.Equal(t, 1, kinds[db.KindZoneDemand])
	assert.Equal(t, 1, kinds[db.KindBoilerState])
	assert.Equal(t, 1, kinds[db.KindFlowSetpoint])
}

func TestTickDemandDropClosesValveAndDelaysBoiler(t *testing.T) {
	h := newLoopHarness(t)
	now := time.Now()
	h.sensors.values["home/living/temp"] = 19.0
	h.sensors.values["home/bath/temp"] = 23.0
	h.sensors.values["weather/outside"] = 0.0
	h.ctrl.Tick(now)

	h.sensors.values["home/living/temp"] = 21.5
	h.act.sets = nil
	h.ctrl.Tick(now.Add(30 * time.Second))

	assert.Contains(t, h.act.sets, setCall{"valve/living", false})
	assert.Equal(t, BoilerPendingShutdown, h.ctrl.boiler.State())
	require.Len(t, h.sched.timers, 1)
	assert.Equal(t, 2*time.Minute, h.sched.timers[0].delay)

	h.sched.timers[0].fire()
	assert.Equal(t, BoilerIdle, h.ctrl.boiler.State())
	assert.Contains(t, h.act.sets, setCall{"boiler/enable", false})
}

func TestTickHoldsDemandWhileRoomSensorSilent(t *testing.T) {
	h := newLoopHarness(t)
	now := time.Now()
	h.sensors.values["home/living/temp"] = 19.0
	h.sensors.values["home/bath/temp"] = 23.0
	h.ctrl.Tick(now)
	require.Contains(t, h.act.sets, setCall{"valve/living", true})

	// Reading disappears: the zone keeps its previous demand.
	delete(h.sensors.values, "home/living/temp")
	h.act.sets = nil
	h.ctrl.Tick(now.Add(30 * time.Second))

	assert.Contains(t, h.act.sets, setCall{"valve/living", true})
	assert.Equal(t, BoilerRunning, h.ctrl.boiler.State())
}

func TestTickFloorTripWithholdsOpenUntilFloorCools(t *testing.T) {
	h := newLoopHarness(t)
	now := time.Now()
	h.sensors.values["home/living/temp"] = 23.0
	h.sensors.values["home/bath/temp"] = 19.0
	h.sensors.values["home/bath/floor"] = 30.2

	h.ctrl.Tick(now)

	// No command at all for the tripped valve.
	for _, s := range h.act.sets {
		assert.NotEqual(t, "valve/bath", s.device)
	}
	assert.Equal(t, 1, h.kinds(t)[db.KindSafetyTrip])

	// Still hot on the next tick: suppressed again, but journaled once.
	h.ctrl.Tick(now.Add(30 * time.Second))
	assert.Equal(t, 1, h.kinds(t)[db.KindSafetyTrip])

	// Floor cooled below the limit: the open command goes out.
	h.sensors.values["home/bath/floor"] = 28.0
	h.act.sets = nil
	h.ctrl.Tick(now.Add(time.Minute))
	assert.Contains(t, h.act.sets, setCall{"valve/bath", true})
}

func TestTickReadsHeatSourceReadbacks(t *testing.T) {
	h := newLoopHarness(t)
	h.sensors.values["boiler/supply"] = 42.0
	h.sensors.values["boiler/return"] = 35.5
	h.sensors.values["boiler/modulation"] = 18.0

	bs := h.ctrl.readBoilerPoints()
	assert.True(t, bs.haveSupply)
	assert.Equal(t, 42.0, bs.supply)
	assert.True(t, bs.haveReturn)
	assert.Equal(t, 35.5, bs.ret)
	assert.True(t, bs.haveMod)
	assert.Equal(t, 18.0, bs.modulation)
	assert.False(t, bs.haveOutside)

	// Read-backs are reporting only; warm rooms keep the boiler idle no
	// matter what the boiler sensors say.
	h.sensors.values["home/living/temp"] = 23.0
	h.sensors.values["home/bath/temp"] = 23.0
	h.ctrl.Tick(time.Now())
	assert.Equal(t, BoilerIdle, h.ctrl.boiler.State())
}

func TestControllerDisableForcesZonesOff(t *testing.T) {
	h := newLoopHarness(t)
	now := time.Now()
	h.sensors.values["home/living/temp"] = 19.0
	h.sensors.values["home/bath/temp"] = 19.0
	h.ctrl.Tick(now)
	require.Equal(t, BoilerRunning, h.ctrl.boiler.State())

	h.ctrl.setEnabled("off")
	require.False(t, h.ctrl.Enabled())

	h.act.sets = nil
	h.ctrl.Tick(now.Add(30 * time.Second))

	assert.Contains(t, h.act.sets, setCall{"valve/living", false})
	assert.Contains(t, h.act.sets, setCall{"valve/bath", false})
	assert.Equal(t, BoilerPendingShutdown, h.ctrl.boiler.State())

	h.ctrl.setEnabled("on")
	h.ctrl.Tick(now.Add(time.Minute))
	assert.Equal(t, BoilerRunning, h.ctrl.boiler.State())
}

func TestControllerIgnoresBadEnablePayload(t *testing.T) {
	h := newLoopHarness(t)
	require.True(t, h.ctrl.Enabled())
	h.ctrl.setEnabled("maybe")
	assert.True(t, h.ctrl.Enabled())
}

func TestZoneControlTargetAndEnable(t *testing.T) {
	h := newLoopHarness(t)
	living := h.ctrl.zones["living"]

	h.ctrl.handleZoneControl("living", "target_temp", "23.5")
	assert.Equal(t, 23.5, living.Target())

	// Out-of-range target is clamped, junk is ignored.
	h.ctrl.handleZoneControl("living", "target_temp", "40")
	assert.Equal(t, config.MaxTargetTemp, living.Target())
	h.ctrl.handleZoneControl("living", "target_temp", "warm")
	assert.Equal(t, config.MaxTargetTemp, living.Target())

	h.ctrl.handleZoneControl("living", "enable", "off")
	assert.False(t, living.Enabled())

	// Unknown zones and leaves must not panic.
	h.ctrl.handleZoneControl("attic", "target_temp", "21")
	h.ctrl.handleZoneControl("living", "valve_id", "x")

	assert.GreaterOrEqual(t, h.kinds(t)[db.KindControl], 3)
}

func TestZoneStatusPayload(t *testing.T) {
	cfg := &config.ZoneConfig{
		RoomSensor: &config.SensorConfig{Topic: "t"},
		Valves:     []*config.ValveConfig{{ValveID: "v"}},
	}
	cfg.FillDefaults()
	zone := newZoneController("living", cfg, 0)
	snap := &zoneSnapshot{temperature: 20.4, available: true, demand: true}

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(zoneStatusPayload(zone, snap), &got))

	assert.Equal(t, 20.4, got["temperature"])
	assert.Equal(t, 21.0, got["target"])
	assert.Equal(t, true, got["heating"])
	assert.Equal(t, true, got["enabled"])
	_, hasDuty := got["duty"]
	assert.False(t, hasDuty, "bang-bang zones report no duty")

	// Unavailable reading shows as an explicit null.
	var raw map[string]json.RawMessage
	payload := zoneStatusPayload(zone, &zoneSnapshot{})
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Equal(t, "null", string(raw["temperature"]))
}

func TestBoilerStatusPayload(t *testing.T) {
	b := NewBoilerController(testHeatSource("", ""), time.Minute, &fakeActuator{}, &fakeScheduler{}, nil)

	var got map[string]interface{}
	bs := boilerSnapshot{outside: 3.5, haveOutside: true}
	require.NoError(t, json.Unmarshal(boilerStatusPayload(b, bs), &got))
	assert.Equal(t, "idle", got["state"])
	assert.Equal(t, 30.0, got["target_flow"])
	assert.Equal(t, 3.5, got["outside"])
	assert.Equal(t, false, got["demand"])
	_, hasSupply := got["supply_temperature"]
	assert.False(t, hasSupply, "read-backs stay out of the payload until wired")

	bs = boilerSnapshot{
		supply: 41.5, haveSupply: true,
		ret: 33.0, haveReturn: true,
		modulation: 27.0, haveMod: true,
		demand: true,
	}
	got = map[string]interface{}{}
	require.NoError(t, json.Unmarshal(boilerStatusPayload(b, bs), &got))
	assert.Equal(t, 41.5, got["supply_temperature"])
	assert.Equal(t, 33.0, got["return_temperature"])
	assert.Equal(t, 27.0, got["modulation"])
	assert.Equal(t, true, got["demand"])

	// No outside reading shows as an explicit null.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(boilerStatusPayload(b, bs), &raw))
	assert.Equal(t, "null", string(raw["outside"]))
}

func TestDiagPayloadRounding(t *testing.T) {
	d := computeCircuitDiagnostics(40.07, 28.0)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(diagPayload(&d), &got))
	assert.Equal(t, 12.1, got["delta_t"])
	assert.Equal(t, "warming", got["phase"])
	assert.Equal(t, 1.5, got["flow_lpm"])
	assert.InDelta(t, 1.26, got["power_kw"].(float64), 1e-9)
}
