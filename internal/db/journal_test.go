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

package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRecordAndRecent(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Record(KindZoneDemand, "living", "on"))
	require.NoError(t, j.Record(KindBoilerState, "boiler", "running"))
	require.NoError(t, j.Record(KindZoneDemand, "living", "off"))

	events, err := j.Recent(2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// Newest first.
	assert.Equal(t, KindZoneDemand, events[0].Kind)
	assert.Equal(t, "off", events[0].Detail)
	assert.Equal(t, KindBoilerState, events[1].Kind)
	assert.Equal(t, "boiler", events[1].Subject)
}

func TestJournalPrune(t *testing.T) {
	j := openTestJournal(t)

	require.NoError(t, j.Record(KindSafetyTrip, "relay/bath_loop", "floor 30.2 >= 30.0"))

	pruned, err := j.PruneBefore(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, pruned, "fresh events survive the cutoff")

	pruned, err = j.PruneBefore(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, pruned)

	events, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNilJournalIsSafe(t *testing.T) {
	var j *Journal

	assert.NoError(t, j.Record(KindControl, "x", "y"))

	events, err := j.Recent(5)
	assert.NoError(t, err)
	assert.Nil(t, events)

	pruned, err := j.PruneBefore(time.Now())
	assert.NoError(t, err)
	assert.Zero(t, pruned)

	assert.NoError(t, j.Close())
}
