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

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/hydrozone/mzhhc/internal/logger"

	"github.com/pborman/getopt/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	defaultDBFile     = "~/.mzhhc.db"
	defaultConfigFile = "config.yaml"

	defaultTickInterval   = Duration(30 * time.Second)
	defaultValveOpenTime  = Duration(120 * time.Second)
	defaultValveCloseTime = Duration(120 * time.Second)

	minValveOpenTime  = Duration(30 * time.Second)
	maxValveOpenTime  = Duration(300 * time.Second)
	minValveCloseTime = Duration(60 * time.Second)
	maxValveCloseTime = Duration(300 * time.Second)
)

// Target temperature bounds, applied both to configured values and to
// runtime set-point updates arriving over the control topic.
const (
	MinTargetTemp = 5.0
	MaxTargetTemp = 30.0
)

type Config struct {
	LogLevel       zapcore.Level          `yaml:"log_level"`
	MQTTConfig     *MQTTConfig            `yaml:"mqtt"`
	DBFile         string                 `yaml:"db_file"`
	MetricsListen  string                 `yaml:"metrics_listen,omitempty"`
	TickInterval   Duration               `yaml:"tick_interval"`
	ValveOpenTime  Duration               `yaml:"valve_open_time"`
	ValveCloseTime Duration               `yaml:"valve_close_time"`
	OutsideSensor  *SensorConfig          `yaml:"outside_sensor,omitempty"`
	HeatSource     *HeatSourceConfig      `yaml:"heat_source"`
	Zones          map[string]*ZoneConfig `yaml:"zones"`
}

func defConfig() *Config {
	return &Config{
		Zones:          make(map[string]*ZoneConfig),
		HeatSource:     NewHeatSourceConfig(),
		MQTTConfig:     NewMQTTConfig(),
		DBFile:         defaultDBFile,
		TickInterval:   defaultTickInterval,
		ValveOpenTime:  defaultValveOpenTime,
		ValveCloseTime: defaultValveCloseTime,
	}
}

func GetPTR[T any](v T) *T {
	return &v
}

func prettyPrint(cfg *Config) {
	d, err := yaml.Marshal(cfg)
	if err != nil {
		logger.L().Error("Failed to marshal config for pretty print", err)
		return
	}
	logger.L().Debugf("--- Config ---\n%s\n\n", string(d))
}

func (cfg *Config) FillDefaults() {
	if cfg.MQTTConfig == nil {
		cfg.MQTTConfig = NewMQTTConfig()
	}
	cfg.MQTTConfig.FillDefaults()
	if cfg.HeatSource == nil {
		cfg.HeatSource = NewHeatSourceConfig()
	}
	for _, z := range cfg.Zones {
		z.FillDefaults()
	}
	cfg.HeatSource.FillDefaults()
	if cfg.OutsideSensor != nil {
		cfg.OutsideSensor.FillDefaults()
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.ValveOpenTime <= 0 {
		cfg.ValveOpenTime = defaultValveOpenTime
	}
	if cfg.ValveCloseTime <= 0 {
		cfg.ValveCloseTime = defaultValveCloseTime
	}
}

// Validate normalizes ranges and excludes zones that cannot participate.
// A broken zone is logged and dropped; it never brings the controller down.
func (cfg *Config) Validate() {
	cfg.ValveOpenTime = clampDuration(cfg.ValveOpenTime, minValveOpenTime, maxValveOpenTime)
	cfg.ValveCloseTime = clampDuration(cfg.ValveCloseTime, minValveCloseTime, maxValveCloseTime)
	cfg.HeatSource.validate()

	if cfg.OutsideSensor != nil && cfg.OutsideSensor.Topic == "" {
		logger.L().Error("Outside sensor has no topic, weather compensation will hold its fallback value")
		cfg.OutsideSensor = nil
	}

	for id, z := range cfg.Zones {
		if err := z.validate(); err != nil {
			logger.L().Errorf("Excluding zone `%v` from control: %v", id, err)
			delete(cfg.Zones, id)
		}
	}
	if len(cfg.Zones) == 0 {
		logger.L().Warn("No usable zones configured, controller will idle")
	}
}

func clampDuration(v, lo, hi Duration) Duration {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Get() *Config {
	cfg := defConfig()
	logLevel := getopt.StringLong("log-level", 'l', "", "log levels: debug, info, warn, error, dpanic, panic, fatal")
	configFile := getopt.StringLong("config", 'c', defaultConfigFile, "config file pathname")
	dbFile := getopt.StringLong("db", 'd', "", "DB file pathname, overrides config")
	metricsListen := getopt.StringLong("metrics", 'm', "", "metrics listen address, overrides config")

	getopt.Parse()

	if err := readFile(cfg, *configFile); err != nil {
		log.Panicf("GetConfig: %v", err)
	}

	logger.L().Infof("Using config file `%v`", *configFile)

	if *dbFile != "" {
		cfg.DBFile = *dbFile
	}
	logger.L().Infof("Using DB file `%v`", cfg.DBFile)

	if *metricsListen != "" {
		cfg.MetricsListen = *metricsListen
	}

	cfg.FillDefaults()

	if *logLevel != "" {
		if err := cfg.LogLevel.Set(*logLevel); err != nil {
			logger.L().Errorf("Wrong log level `%v`: %v", *logLevel, err)
		}
	}
	logger.SetLogLevel(cfg.LogLevel)

	cfg.Validate()
	prettyPrint(cfg)

	return cfg
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

func readFile(cfg *Config, configFileName string) error {
	if !fileExists(configFileName) {
		return nil
	}

	f, err := os.Open(configFileName)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	return nil
}
