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

// Package points carries temperature readings and actuation commands over
// MQTT. Sensor values arrive asynchronously and are cached; the control
// loop reads the cache synchronously once per tick.
package points

import (
	"sync"
	"time"

	"github.com/hydrozone/mzhhc/internal/config"
	"github.com/hydrozone/mzhhc/internal/logger"
	"github.com/hydrozone/mzhhc/internal/safe_mqtt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

const mqttQoS = 1

type reading struct {
	value float64
	at    time.Time
}

// Provider subscribes configured sensor topics and answers point reads
// from the last decoded values.
type Provider struct {
	lock  sync.RWMutex
	mqtt  safe_mqtt.MqttClient
	subs  map[string]*config.SensorConfig
	cache map[string]reading
}

func NewProvider(client safe_mqtt.MqttClient) *Provider {
	return &Provider{
		mqtt:  client,
		subs:  make(map[string]*config.SensorConfig),
		cache: make(map[string]reading),
	}
}

// Register subscribes one sensor point. Registering the same topic twice is
// allowed; the first decode parameters stay in force.
func (p *Provider) Register(cfg *config.SensorConfig) error {
	if cfg == nil || cfg.Topic == "" {
		return errors.New("sensor config without topic")
	}

	p.lock.Lock()
	if prev, ok := p.subs[cfg.PointID()]; ok {
		p.lock.Unlock()
		if !sameDecode(prev, cfg) {
			logger.L().Warnf("Point `%v` registered twice with different decode parameters, keeping first", cfg.Topic)
		}
		return nil
	}
	p.subs[cfg.PointID()] = cfg
	p.lock.Unlock()

	p.mqtt.SafeSubscribe(cfg.Topic, mqttQoS, p.valueUpdateHandler(cfg))
	logger.L().Debugf("Subscribed point `%v`", cfg.Topic)
	return nil
}

// RegisterAll subscribes every sensor point the configuration names: room,
// floor, supply/return and the outside sensor.
func (p *Provider) RegisterAll(cfg *config.Config) {
	register := func(s *config.SensorConfig) {
		if s == nil || s.Topic == "" {
			return
		}
		if err := p.Register(s); err != nil {
			logger.L().Error(err)
		}
	}

	register(cfg.OutsideSensor)
	if cfg.HeatSource != nil {
		register(cfg.HeatSource.SupplySensor)
		register(cfg.HeatSource.ReturnSensor)
		register(cfg.HeatSource.ModulationSensor)
	}
	for _, z := range cfg.Zones {
		register(z.RoomSensor)
		register(z.SupplySensor)
		register(z.ReturnSensor)
		for _, v := range z.Valves {
			register(v.FloorSensor)
		}
	}
}

func (p *Provider) valueUpdateHandler(cfg *config.SensorConfig) mqtt.MessageHandler {
	return func(client mqtt.Client, message mqtt.Message) {
		t0, err := extractF64PlainOrJson(message, cfg.JSONEntry)
		if err != nil {
			logger.L().Error(err)
			return
		}

		v := t0*(*cfg.Scale) + (*cfg.Offset)
		p.lock.Lock()
		p.cache[cfg.PointID()] = reading{value: v, at: time.Now()}
		p.lock.Unlock()
		logger.L().Debugf("Got value for point %s : %f", cfg.Topic, v)
	}
}

// Read returns the last known value for a point, or unavailable when the
// point never reported or its reading aged out.
func (p *Provider) Read(pointID string) (float64, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	r, ok := p.cache[pointID]
	if !ok {
		return 0, false
	}
	if cfg := p.subs[pointID]; cfg != nil && cfg.MaxAge > 0 && time.Since(r.at) > time.Duration(cfg.MaxAge) {
		return 0, false
	}
	return r.value, true
}

func sameDecode(a, b *config.SensorConfig) bool {
	if (a.JSONEntry == nil) != (b.JSONEntry == nil) {
		return false
	}
	if a.JSONEntry != nil && *a.JSONEntry != *b.JSONEntry {
		return false
	}
	return *a.Scale == *b.Scale && *a.Offset == *b.Offset && a.MaxAge == b.MaxAge
}
