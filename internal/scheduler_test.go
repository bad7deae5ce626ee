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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerSchedulerOnTick(t *testing.T) {
	s := NewTickerScheduler()
	ticks := make(chan time.Time, 16)
	stop := s.OnTick(5*time.Millisecond, func(now time.Time) { ticks <- now })

	select {
	case <-ticks:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never fired")
	}

	stop()
	stop() // second stop is a no-op

	// At most one tick can still be in flight when stop returns.
	time.Sleep(20 * time.Millisecond)
	for len(ticks) > 0 {
		<-ticks
	}
	select {
	case <-ticks:
		t.Fatal("tick delivered after stop")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestTickerSchedulerScheduleOnce(t *testing.T) {
	s := NewTickerScheduler()
	fired := make(chan struct{})
	s.ScheduleOnce(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed action never fired")
	}
}

func TestTickerSchedulerScheduleOnceCancel(t *testing.T) {
	s := NewTickerScheduler()
	var mu sync.Mutex
	fired := false
	cancel := s.ScheduleOnce(200*time.Millisecond, func() {
		mu.Lock()
		fired = true
		mu.Unlock()
	})

	require.True(t, cancel())
	assert.False(t, cancel(), "second cancel reports the timer already gone")

	time.Sleep(300 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.False(t, fired, "canceled action must not run")
}
