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

// Package db keeps an append-only journal of controller transitions:
// demand edges, boiler state changes, set-point pushes, safety trips.
// Nothing in here is read back into control state; the journal exists so
// an installation can be diagnosed after the fact.
package db

import (
	_ "embed"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

// Event kinds. Subject names the zone, valve or device involved.
const (
	KindZoneDemand   = "zone_demand"
	KindBoilerState  = "boiler_state"
	KindFlowSetpoint = "flow_setpoint"
	KindSafetyTrip   = "safety_trip"
	KindControl      = "control"
)

type Event struct {
	ID      int64     `db:"id"`
	At      time.Time `db:"at"`
	Kind    string    `db:"kind"`
	Subject string    `db:"subject"`
	Detail  string    `db:"detail"`
}

type Journal struct {
	db *sqlx.DB
}

func OpenJournal(dbFile string) (*Journal, error) {
	path, err := expandHome(dbFile)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open journal `%v`", path)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrapf(err, "ping journal `%v`", path)
	}
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "create journal schema")
	}

	return &Journal{db: sqlDB}, nil
}

// Record appends one event. A nil journal swallows the write so the
// controller keeps running when the journal could not be opened.
func (j *Journal) Record(kind, subject, detail string) error {
	if j == nil || j.db == nil {
		return nil
	}
	const query = `INSERT INTO event(at, kind, subject, detail) VALUES($1, $2, $3, $4);`
	_, err := j.db.Exec(query, time.Now(), kind, subject, detail)
	return errors.Wrap(err, "journal record")
}

// Recent returns up to n newest events, newest first.
func (j *Journal) Recent(n int) ([]Event, error) {
	if j == nil || j.db == nil {
		return nil, nil
	}
	const query = `SELECT id, at, kind, subject, detail FROM event ORDER BY id DESC LIMIT $1;`
	events := make([]Event, 0, n)
	if err := j.db.Select(&events, query, n); err != nil {
		return nil, errors.Wrap(err, "journal recent")
	}
	return events, nil
}

// PruneBefore drops events older than the cutoff and reports how many went.
func (j *Journal) PruneBefore(cutoff time.Time) (int64, error) {
	if j == nil || j.db == nil {
		return 0, nil
	}
	res, err := j.db.Exec(`DELETE FROM event WHERE at < $1;`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "journal prune")
	}
	return res.RowsAffected()
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, path[2:]), nil
}
