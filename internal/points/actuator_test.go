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
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitchboardSet(t *testing.T) {
	client := &fakeMQTT{}
	sw := NewSwitchboard(client)

	require.NoError(t, sw.Set("relay/living_loop", true))
	require.NoError(t, sw.Set("relay/living_loop", false))

	require.Len(t, client.published, 2)
	assert.Equal(t, publishRecord{"relay/living_loop", "ON", 1, true}, client.published[0])
	assert.Equal(t, publishRecord{"relay/living_loop", "OFF", 1, true}, client.published[1])
}

func TestSwitchboardSetSetpoint(t *testing.T) {
	client := &fakeMQTT{}
	sw := NewSwitchboard(client)

	require.NoError(t, sw.SetSetpoint("otgw/set/tset", 38.5))

	require.Len(t, client.published, 1)
	assert.Equal(t, "38.5", client.published[0].payload)
}

func TestSwitchboardPublishFailure(t *testing.T) {
	client := &fakeMQTT{pubErr: errors.New("broker gone")}
	sw := NewSwitchboard(client)

	assert.Error(t, sw.Set("relay/x", true))
}

func TestSwitchboardPublishTimeout(t *testing.T) {
	client := &fakeMQTT{pubTimeout: true}
	sw := NewSwitchboard(client)

	assert.Error(t, sw.SetSetpoint("otgw/set/tset", 40.0))
}
