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

package points

import (
	"fmt"
	"time"

	"github.com/hydrozone/mzhhc/internal/safe_mqtt"

	"github.com/pkg/errors"
)

const (
	payloadOn  = "ON"
	payloadOff = "OFF"

	// Commands are re-issued every tick anyway; a publish that cannot
	// complete within this window is reported as failed rather than
	// allowed to stall the loop.
	publishTimeout = 2 * time.Second
)

// Switchboard drives valves and the heat source. Device ids are the MQTT
// command topics the hardware listens on; payloads are retained so devices
// recover their commanded state after broker reconnects.
type Switchboard struct {
	mqtt safe_mqtt.MqttClient
}

func NewSwitchboard(client safe_mqtt.MqttClient) *Switchboard {
	return &Switchboard{mqtt: client}
}

func (s *Switchboard) Set(deviceID string, on bool) error {
	payload := payloadOff
	if on {
		payload = payloadOn
	}
	return s.publish(deviceID, payload)
}

func (s *Switchboard) SetSetpoint(deviceID string, temperature float64) error {
	return s.publish(deviceID, fmt.Sprintf("%.1f", temperature))
}

func (s *Switchboard) publish(topic, payload string) error {
	token := s.mqtt.SafePublish(topic, mqttQoS, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Errorf("publish to `%v` timed out after %v", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "publish `%v` to `%v`", payload, topic)
	}
	return nil
}
