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

// Heating phase classified from the supply/return spread.
const (
	PhaseColdStart    = "cold_start"
	PhaseWarming      = "warming"
	PhaseNearSetpoint = "near_setpoint"
	PhaseSteady       = "steady"
)

// Specific heat of water, J/(kg*K).
const waterSpecificHeat = 4186.0

// CircuitDiagnostics derives circuit health from the supply/return spread.
// The flow rate is not measured; it is estimated from the spread, so the
// power figure is a rough estimate (underfloor circuits move 1-2 l/min).
type CircuitDiagnostics struct {
	DeltaT  float64
	Phase   string
	FlowLPM float64
	PowerKW float64
}

func computeCircuitDiagnostics(supply, ret float64) CircuitDiagnostics {
	delta := supply - ret

	phase := PhaseSteady
	switch {
	case delta > 15:
		phase = PhaseColdStart
	case delta > 10:
		phase = PhaseWarming
	case delta > 7:
		phase = PhaseNearSetpoint
	}

	flow := 1.0
	switch {
	case delta > 15:
		flow = 2.0
	case delta > 10:
		flow = 1.5
	case delta > 5:
		flow = 1.2
	}

	// P = m_dot * c * dT with water at ~1 kg/l. A negative spread yields a
	// negative estimate, which is left visible: it points at swapped sensors.
	powerKW := (flow / 60.0) * waterSpecificHeat * delta / 1000.0

	return CircuitDiagnostics{DeltaT: delta, Phase: phase, FlowLPM: flow, PowerKW: powerKW}
}
