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
	"strings"

	"github.com/hydrozone/mzhhc/internal/config"

	"github.com/pkg/errors"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// parseOnOff accepts the switch payload spellings seen in the wild.
func parseOnOff(payload string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(payload)) {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	}
	return false, errors.Errorf("not an on/off payload: `%v`", payload)
}

// readPoint resolves an optional sensor against the provider. A missing
// configuration reads as unavailable, same as a silent sensor.
func readPoint(p SensorProvider, cfg *config.SensorConfig) (float64, bool) {
	if cfg == nil || cfg.Topic == "" {
		return 0, false
	}
	return p.Read(cfg.PointID())
}
