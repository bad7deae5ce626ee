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
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hydrozone/mzhhc/internal/config"
	"github.com/hydrozone/mzhhc/internal/db"
	"github.com/hydrozone/mzhhc/internal/logger"
	"github.com/hydrozone/mzhhc/internal/metrics"
	"github.com/hydrozone/mzhhc/internal/safe_mqtt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttQoS = 1

	journalRetention     = 30 * 24 * time.Hour
	journalPruneInterval = 24 * time.Hour
	shutdownDumpEvents   = 50
)

// Deps bundles the controller's side-effect surfaces so tests can hand in
// fakes. MQTT may be nil: the loop then runs without status publishing or
// the MQTT control plane.
type Deps struct {
	Sensors   SensorProvider
	Actuator  Actuator
	Scheduler Scheduler
	Journal   *db.Journal
	Metrics   *metrics.Metrics
	MQTT      safe_mqtt.MqttClient
}

// HeatingController owns all mutable control state and drives it from a
// single tick goroutine. Each tick takes a full snapshot (sensor reads and
// zone decisions) before the first actuator command goes out.
type HeatingController struct {
	cfg      *config.Config
	sensors  SensorProvider
	actuator Actuator
	sched    Scheduler
	journal  *db.Journal
	metrics  *metrics.Metrics
	mqtt     safe_mqtt.MqttClient

	zones   map[string]*ZoneController
	arbiter *ValveArbiter
	boiler  *BoilerController
	heatSrc *config.HeatSourceConfig

	mu      sync.Mutex
	enabled bool

	// Tick-goroutine state, no locking needed.
	lastDemand map[string]bool
	lastTrips  map[string]bool
	lastPrune  time.Time
}

type zoneSnapshot struct {
	temperature float64
	available   bool
	demand      bool
	diag        *CircuitDiagnostics
}

// boilerSnapshot carries the tick's heat-source picture: the outside reading
// that shapes the flow target plus the boiler's own read-backs, when wired.
type boilerSnapshot struct {
	outside     float64
	haveOutside bool
	supply      float64
	haveSupply  bool
	ret         float64
	haveReturn  bool
	modulation  float64
	haveMod     bool
	demand      bool
}

func NewHeatingController(cfg *config.Config, deps Deps) *HeatingController {
	c := &HeatingController{
		cfg:        cfg,
		sensors:    deps.Sensors,
		actuator:   &meteredActuator{inner: deps.Actuator, metrics: deps.Metrics},
		sched:      deps.Scheduler,
		journal:    deps.Journal,
		metrics:    deps.Metrics,
		mqtt:       deps.MQTT,
		zones:      make(map[string]*ZoneController),
		arbiter:    newValveArbiter(),
		enabled:    true,
		lastDemand: make(map[string]bool),
		lastTrips:  make(map[string]bool),
	}

	deadTime := time.Duration(cfg.ValveOpenTime) + time.Duration(cfg.ValveCloseTime)
	for id, zcfg := range cfg.Zones {
		c.zones[id] = newZoneController(id, zcfg, deadTime)
		c.arbiter.AddZone(id, zcfg.Valves)
	}

	heatSource := cfg.HeatSource
	if heatSource == nil {
		heatSource = config.NewHeatSourceConfig()
	}
	c.heatSrc = heatSource
	c.boiler = NewBoilerController(
		heatSource, time.Duration(cfg.ValveCloseTime), c.actuator, deps.Scheduler, deps.Journal,
	)

	logger.L().Infof("Controlling %v zones over %v valves", len(c.zones), c.arbiter.ValveCount())
	c.setupControlSubscriptions()
	return c
}

func (c *HeatingController) setupControlSubscriptions() {
	if c.mqtt == nil {
		return
	}
	control := c.cfg.MQTTConfig.ControlTopic
	c.mqtt.SafeSubscribe(control+"/enable", mqttQoS, c.controlUpdateHandler)
	c.mqtt.SafeSubscribe(control+"/log_level", mqttQoS, c.controlUpdateHandler)

	for id := range c.zones {
		group := control + "/zone/" + id + "/"
		c.mqtt.SafeSubscribe(group+"target_temp", mqttQoS, c.zoneControlHandler)
		c.mqtt.SafeSubscribe(group+"enable", mqttQoS, c.zoneControlHandler)
	}
}

// Run drives the control loop until the context is canceled. An immediate
// first tick brings every actuator to a defined state.
func (c *HeatingController) Run(ctx context.Context) {
	c.Tick(time.Now())
	stop := c.sched.OnTick(time.Duration(c.cfg.TickInterval), c.Tick)
	defer stop()

	<-ctx.Done()
	c.boiler.Stop()
	c.dumpJournal()
	logger.L().Info("Control loop stopped")
}

// dumpJournal echoes the newest journal events to the debug log so a crashed
// or stopped installation can be read without opening the database file.
func (c *HeatingController) dumpJournal() {
	events, err := c.journal.Recent(shutdownDumpEvents)
	if err != nil {
		logger.L().Error(err)
		return
	}
	for _, e := range events {
		logger.L().Debugf("journal %v %v `%v`: %v", e.At.Format(time.RFC3339), e.Kind, e.Subject, e.Detail)
	}
}

// Tick runs one control pass.
func (c *HeatingController) Tick(now time.Time) {
	c.metrics.Ticks.Inc()
	enabled := c.Enabled()

	snapshots := make(map[string]*zoneSnapshot, len(c.zones))
	demand := make(map[string]bool, len(c.zones))
	var demandingTargets []float64

	for id, zone := range c.zones {
		current, ok := readPoint(c.sensors, zone.RoomSensor())
		snap := &zoneSnapshot{temperature: current, available: ok}

		if !enabled {
			zone.ForceOff()
		} else {
			if !ok {
				logger.L().Warnf("Zone `%v`: room reading unavailable, holding previous demand", id)
			}
			snap.demand = zone.Evaluate(current, ok, now)
		}

		if sup, okSup := readPoint(c.sensors, zone.SupplySensor()); okSup {
			if ret, okRet := readPoint(c.sensors, zone.ReturnSensor()); okRet {
				d := computeCircuitDiagnostics(sup, ret)
				snap.diag = &d
			}
		}

		demand[id] = snap.demand
		if snap.demand {
			demandingTargets = append(demandingTargets, zone.Target())
		}
		snapshots[id] = snap
	}

	bs := c.readBoilerPoints()
	bs.demand = len(demandingTargets) > 0
	res := c.arbiter.Resolve(demand, c.sensors)

	// Snapshot complete; commands start here.
	c.reportTrips(res.Trips)
	c.commandValves(res.Commands)
	c.boiler.Update(now, demandingTargets, bs.outside, bs.haveOutside)

	c.journalDemandEdges(demand)
	c.publishStatus(snapshots, bs)
	c.updateMetrics(snapshots, bs)
	c.pruneJournal(now)
}

func (c *HeatingController) readBoilerPoints() boilerSnapshot {
	var bs boilerSnapshot
	bs.outside, bs.haveOutside = readPoint(c.sensors, c.cfg.OutsideSensor)
	bs.supply, bs.haveSupply = readPoint(c.sensors, c.heatSrc.SupplySensor)
	bs.ret, bs.haveReturn = readPoint(c.sensors, c.heatSrc.ReturnSensor)
	bs.modulation, bs.haveMod = readPoint(c.sensors, c.heatSrc.ModulationSensor)
	return bs
}

func (c *HeatingController) reportTrips(trips []FloorTrip) {
	tripped := make(map[string]bool, len(trips))
	for _, trip := range trips {
		tripped[trip.ValveID] = true
		if c.lastTrips[trip.ValveID] {
			continue
		}
		logger.L().Warnf(
			"Valve `%v`: floor %.1f at or above limit %.1f, open request withheld",
			trip.ValveID, trip.FloorTemp, trip.Limit,
		)
		c.metrics.SafetyTrips.WithLabelValues(trip.ValveID).Inc()
		detail := fmt.Sprintf("floor %.1f >= %.1f", trip.FloorTemp, trip.Limit)
		if err := c.journal.Record(db.KindSafetyTrip, trip.ValveID, detail); err != nil {
			logger.L().Error(err)
		}
	}
	c.lastTrips = tripped
}

// commandValves re-issues every resolved command each tick; the commands are
// idempotent and a lost publish heals on the next pass.
func (c *HeatingController) commandValves(commands map[string]ValveCommand) {
	ids := make([]string, 0, len(commands))
	for id := range commands {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if err := c.actuator.Set(id, commands[id] == ValveOpen); err != nil {
			logger.L().Error(err)
		}
	}
}

func (c *HeatingController) journalDemandEdges(demand map[string]bool) {
	for id, d := range demand {
		if d == c.lastDemand[id] {
			continue
		}
		state := "off"
		if d {
			state = "on"
		}
		logger.L().Infof("Zone `%v` demand -> %v", id, state)
		if err := c.journal.Record(db.KindZoneDemand, id, state); err != nil {
			logger.L().Error(err)
		}
	}
	c.lastDemand = demand
}

func (c *HeatingController) publishStatus(snapshots map[string]*zoneSnapshot, bs boilerSnapshot) {
	if c.mqtt == nil {
		return
	}
	statusTopic := c.cfg.MQTTConfig.StatusTopic

	for id, zone := range c.zones {
		snap := snapshots[id]
		c.mqtt.SafePublish(statusTopic+"/zone/"+id, mqttQoS, true, zoneStatusPayload(zone, snap))
		if snap.diag != nil {
			c.mqtt.SafePublish(statusTopic+"/zone/"+id+"/diag", mqttQoS, true, diagPayload(snap.diag))
		}
	}

	c.mqtt.SafePublish(statusTopic+"/boiler", mqttQoS, true, boilerStatusPayload(c.boiler, bs))
}

func zoneStatusPayload(zone *ZoneController, snap *zoneSnapshot) []byte {
	report := struct {
		Temperature *float64 `json:"temperature"`
		Target      float64  `json:"target"`
		Heating     bool     `json:"heating"`
		Duty        *float64 `json:"duty,omitempty"`
		Enabled     bool     `json:"enabled"`
	}{
		Target:  zone.Target(),
		Heating: snap.demand,
		Enabled: zone.Enabled(),
	}
	if snap.available {
		report.Temperature = &snap.temperature
	}
	if zone.Mode() == config.ModePWM {
		duty := zone.Duty()
		report.Duty = &duty
	}

	ret, err := json.Marshal(report)
	if err != nil {
		logger.L().Error(err)
	}
	return ret
}

func boilerStatusPayload(b *BoilerController, bs boilerSnapshot) []byte {
	report := struct {
		State      string   `json:"state"`
		TargetFlow float64  `json:"target_flow"`
		Outside    *float64 `json:"outside"`
		Demand     bool     `json:"demand"`
		Supply     *float64 `json:"supply_temperature,omitempty"`
		Return     *float64 `json:"return_temperature,omitempty"`
		Modulation *float64 `json:"modulation,omitempty"`
	}{
		State:      b.State().String(),
		TargetFlow: b.TargetFlow(),
		Demand:     bs.demand,
	}
	if bs.haveOutside {
		report.Outside = &bs.outside
	}
	if bs.haveSupply {
		report.Supply = &bs.supply
	}
	if bs.haveReturn {
		report.Return = &bs.ret
	}
	if bs.haveMod {
		report.Modulation = &bs.modulation
	}

	ret, err := json.Marshal(report)
	if err != nil {
		logger.L().Error(err)
	}
	return ret
}

func diagPayload(d *CircuitDiagnostics) []byte {
	report := struct {
		DeltaT  float64 `json:"delta_t"`
		Phase   string  `json:"phase"`
		FlowLPM float64 `json:"flow_lpm"`
		PowerKW float64 `json:"power_kw"`
	}{
		DeltaT:  math.Round(d.DeltaT*10) / 10,
		Phase:   d.Phase,
		FlowLPM: d.FlowLPM,
		PowerKW: math.Round(d.PowerKW*100) / 100,
	}

	ret, err := json.Marshal(report)
	if err != nil {
		logger.L().Error(err)
	}
	return ret
}

func (c *HeatingController) updateMetrics(snapshots map[string]*zoneSnapshot, bs boilerSnapshot) {
	for id, zone := range c.zones {
		snap := snapshots[id]
		if snap.available {
			c.metrics.ZoneTemperature.WithLabelValues(id).Set(snap.temperature)
		}
		c.metrics.ZoneTarget.WithLabelValues(id).Set(zone.Target())
		c.metrics.ZoneDemand.WithLabelValues(id).Set(boolToGauge(snap.demand))
		if zone.Mode() == config.ModePWM {
			c.metrics.ZoneDuty.WithLabelValues(id).Set(zone.Duty())
		}
		if snap.diag != nil {
			c.metrics.ZoneDeltaT.WithLabelValues(id).Set(snap.diag.DeltaT)
			c.metrics.ZonePower.WithLabelValues(id).Set(snap.diag.PowerKW)
		}
	}

	if bs.haveOutside {
		c.metrics.OutsideTemperature.Set(bs.outside)
	}
	if bs.haveSupply {
		c.metrics.BoilerSupplyTemp.Set(bs.supply)
	}
	if bs.haveReturn {
		c.metrics.BoilerReturnTemp.Set(bs.ret)
	}
	if bs.haveMod {
		c.metrics.BoilerModulation.Set(bs.modulation)
	}
	c.metrics.TargetFlowTemp.Set(c.boiler.TargetFlow())
	c.metrics.BoilerState.Set(float64(c.boiler.State()))
	c.metrics.Demand.Set(boolToGauge(bs.demand))
}

func (c *HeatingController) pruneJournal(now time.Time) {
	if now.Sub(c.lastPrune) < journalPruneInterval {
		return
	}
	c.lastPrune = now
	if n, err := c.journal.PruneBefore(now.Add(-journalRetention)); err != nil {
		logger.L().Error(err)
	} else if n > 0 {
		logger.L().Infof("Pruned %v journal events", n)
	}
}

func (c *HeatingController) controlUpdateHandler(client mqtt.Client, message mqtt.Message) {
	topic := message.Topic()[strings.LastIndex(message.Topic(), "/")+1:]
	logger.L().Infof("Got control request: %v : %v", topic, string(message.Payload()))

	switch topic {
	case "log_level":
		if err := c.cfg.LogLevel.Set(string(message.Payload())); err != nil {
			logger.L().Errorf("Wrong log level `%v`", string(message.Payload()))
		} else {
			logger.SetLogLevel(c.cfg.LogLevel)
			logger.L().Infof("Updated log level to `%v`", c.cfg.LogLevel.String())
		}
	case "enable":
		c.setEnabled(string(message.Payload()))
	default:
		logger.L().Errorf("Unknown control topic: %s", topic)
	}
}

func (c *HeatingController) zoneControlHandler(client mqtt.Client, message mqtt.Message) {
	rest := strings.TrimPrefix(message.Topic(), c.cfg.MQTTConfig.ControlTopic+"/zone/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		logger.L().Errorf("Unroutable zone control topic: %s", message.Topic())
		return
	}
	c.handleZoneControl(parts[0], parts[1], string(message.Payload()))
}

func (c *HeatingController) handleZoneControl(name, leaf, payload string) {
	zone, ok := c.zones[name]
	if !ok {
		logger.L().Errorf("Control request for unknown zone `%v`", name)
		return
	}
	logger.L().Infof("Zone `%v` got control request: %v : %v", name, leaf, payload)

	switch leaf {
	case "target_temp":
		value, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			logger.L().Error(err)
			return
		}
		applied := zone.SetTarget(value)
		if applied != value {
			logger.L().Warnf("Zone `%v` target %.1f out of range, clamped to %.1f", name, value, applied)
		}
		logger.L().Infof("Updated target for zone `%v` to %.1f", name, applied)
		c.journalControl(name, fmt.Sprintf("target_temp %.1f", applied))
	case "enable":
		on, err := parseOnOff(payload)
		if err != nil {
			logger.L().Error(err)
			return
		}
		zone.SetEnabled(on)
		logger.L().Infof("Zone `%v` enabled: %v", name, on)
		c.journalControl(name, "enable "+strconv.FormatBool(on))
	default:
		logger.L().Errorf("Unknown zone control topic: %s", leaf)
	}
}

func (c *HeatingController) setEnabled(val string) {
	on, err := parseOnOff(val)
	if err != nil {
		logger.L().Warnf("Invalid value for enable: %v", val)
		return
	}

	c.mu.Lock()
	changed := c.enabled != on
	c.enabled = on
	c.mu.Unlock()

	active := "OFF"
	if on {
		active = "ON"
	}
	if c.mqtt != nil {
		c.mqtt.SafePublish(c.cfg.MQTTConfig.ControlTopic+"/active", mqttQoS, true, active)
	}

	if changed {
		logger.L().Infof("Controller enabled: %v", on)
		c.journalControl("controller", "enable "+strconv.FormatBool(on))
	}
}

func (c *HeatingController) journalControl(subject, detail string) {
	if err := c.journal.Record(db.KindControl, subject, detail); err != nil {
		logger.L().Error(err)
	}
}

func (c *HeatingController) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func boolToGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// meteredActuator counts publish failures; logging stays at the call sites.
type meteredActuator struct {
	inner   Actuator
	metrics *metrics.Metrics
}

func (a *meteredActuator) Set(deviceID string, on bool) error {
	err := a.inner.Set(deviceID, on)
	if err != nil {
		a.metrics.ActuatorFailures.Inc()
	}
	return err
}

func (a *meteredActuator) SetSetpoint(deviceID string, temperature float64) error {
	err := a.inner.SetSetpoint(deviceID, temperature)
	if err != nil {
		a.metrics.ActuatorFailures.Inc()
	}
	return err
}
