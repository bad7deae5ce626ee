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
	"github.com/hydrozone/mzhhc/internal/config"
	"github.com/hydrozone/mzhhc/internal/logger"
)

type ValveCommand int

const (
	ValveClose ValveCommand = iota
	ValveOpen
)

func (c ValveCommand) String() string {
	if c == ValveOpen {
		return "open"
	}
	return "close"
}

// FloorTrip reports a floor temperature at or above the valve's limit while
// some owner zone demanded heat. The open command for that valve is withheld.
type FloorTrip struct {
	ValveID   string
	FloorTemp float64
	Limit     float64
}

type valveEntry struct {
	id           string
	floorSensor  *config.SensorConfig
	maxFloorTemp float64
	owners       map[string]bool
}

// ValveArbiter owns the valve table. Valves are registered per zone at
// startup; a valve shared between zones gets a single entry with the merged
// safety parameters and the union of owner zones. Every tick the arbiter
// turns the per-zone demand set into one command per valve.
type ValveArbiter struct {
	valves map[string]*valveEntry
}

func newValveArbiter() *ValveArbiter {
	return &ValveArbiter{valves: make(map[string]*valveEntry)}
}

// AddZone registers the zone's valves. When two zones disagree on a shared
// valve's parameters the stricter floor limit wins and the first registered
// floor sensor is kept.
func (a *ValveArbiter) AddZone(zoneID string, valves []*config.ValveConfig) {
	for _, v := range valves {
		e, ok := a.valves[v.ValveID]
		if !ok {
			e = &valveEntry{
				id:           v.ValveID,
				floorSensor:  v.FloorSensor,
				maxFloorTemp: *v.MaxFloorTemp,
				owners:       make(map[string]bool),
			}
			a.valves[v.ValveID] = e
		} else {
			if *v.MaxFloorTemp != e.maxFloorTemp {
				logger.L().Warnf(
					"Valve %v: conflicting max_floor_temp %v vs %v, keeping the lower",
					v.ValveID, e.maxFloorTemp, *v.MaxFloorTemp,
				)
				if *v.MaxFloorTemp < e.maxFloorTemp {
					e.maxFloorTemp = *v.MaxFloorTemp
				}
			}
			if v.FloorSensor != nil {
				if e.floorSensor == nil {
					e.floorSensor = v.FloorSensor
				} else if e.floorSensor.Topic != v.FloorSensor.Topic {
					logger.L().Warnf(
						"Valve %v: conflicting floor sensors `%v` vs `%v`, keeping the first",
						v.ValveID, e.floorSensor.Topic, v.FloorSensor.Topic,
					)
				}
			}
		}
		e.owners[zoneID] = true
	}
}

// Resolution carries the outcome of one arbitration pass. A valve absent
// from Commands gets no command this tick: its open request was suppressed
// by the floor limit and whatever state the valve is in stays untouched.
type Resolution struct {
	Commands map[string]ValveCommand
	Trips    []FloorTrip
}

// Resolve maps zone demand onto valve commands. A valve opens when any owner
// zone demands heat, closes when none does. An open request is suppressed
// while the floor sensor reads at or above the limit; an unavailable floor
// sensor does not block heating.
func (a *ValveArbiter) Resolve(demand map[string]bool, sensors SensorProvider) Resolution {
	res := Resolution{Commands: make(map[string]ValveCommand, len(a.valves))}

	for id, e := range a.valves {
		wanted := false
		for owner := range e.owners {
			if demand[owner] {
				wanted = true
				break
			}
		}

		if !wanted {
			res.Commands[id] = ValveClose
			continue
		}

		if floor, ok := readPoint(sensors, e.floorSensor); ok && floor >= e.maxFloorTemp {
			res.Trips = append(res.Trips, FloorTrip{ValveID: id, FloorTemp: floor, Limit: e.maxFloorTemp})
			continue
		}
		res.Commands[id] = ValveOpen
	}
	return res
}

func (a *ValveArbiter) ValveCount() int {
	return len(a.valves)
}
