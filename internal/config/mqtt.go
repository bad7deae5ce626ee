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

const (
	defaultMQTTURL      = "tcp://127.0.0.1:1883"
	defaultControlTopic = "mzhhc/control"
	defaultStatusTopic  = "mzhhc/status"
)

type MQTTConfig struct {
	URL          string `yaml:"url"`
	ControlTopic string `yaml:"control_topic"`
	StatusTopic  string `yaml:"status_topic"`
}

func NewMQTTConfig() *MQTTConfig {
	return &MQTTConfig{
		URL:          defaultMQTTURL,
		ControlTopic: defaultControlTopic,
		StatusTopic:  defaultStatusTopic,
	}
}

func (c *MQTTConfig) FillDefaults() {
	if c.URL == "" {
		c.URL = defaultMQTTURL
	}
	if c.ControlTopic == "" {
		c.ControlTopic = defaultControlTopic
	}
	if c.StatusTopic == "" {
		c.StatusTopic = defaultStatusTopic
	}
}
