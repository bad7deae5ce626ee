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

package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/hydrozone/mzhhc/internal"
	"github.com/hydrozone/mzhhc/internal/config"
	"github.com/hydrozone/mzhhc/internal/db"
	"github.com/hydrozone/mzhhc/internal/logger"
	"github.com/hydrozone/mzhhc/internal/metrics"
	"github.com/hydrozone/mzhhc/internal/points"
	"github.com/hydrozone/mzhhc/internal/safe_mqtt"
)

// Build version, overridden with flag during build.
var version = "devel"

func main() {
	logger.L().Warnf("Multi-Zone Hydronic Heating Controller, version: %+v", version)
	defer logger.Close()

	cfg := config.Get()

	client := safe_mqtt.InitMQTTClient(cfg.MQTTConfig.URL, "mzhhc-"+uuid.New().String())

	provider := points.NewProvider(client)
	provider.RegisterAll(cfg)

	journal, err := db.OpenJournal(cfg.DBFile)
	if err != nil {
		logger.L().Errorf("Event journal disabled: %v", err)
		journal = nil
	}
	defer journal.Close()

	m := metrics.New()
	m.Serve(cfg.MetricsListen)

	ctrl := internal.NewHeatingController(cfg, internal.Deps{
		Sensors:   provider,
		Actuator:  points.NewSwitchboard(client),
		Scheduler: internal.NewTickerScheduler(),
		Journal:   journal,
		Metrics:   m,
		MQTT:      client,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ctrl.Run(ctx)
}
