// internal/storage/sqlite.go
package storage

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite"

	"github.com/sseevri/substation-monitor/internal/poller"
)

const yearlyRetention = 365 * 24 * time.Hour

// DB persists meter readings in two SQLite databases: a yearly archive
// and a daily database that resets at midnight after copying into the
// archive. Rows are written on a fixed log interval, not every poll.
type DB struct {
	yearly      *sql.DB
	daily       *sql.DB
	dailyPath   string
	names       []string
	logInterval time.Duration
	log         logrus.FieldLogger

	latest  map[byte]poller.OutputRecord
	lastLog time.Time
	lastDay int
}

// Open opens both databases and prepares their schemas. The daily
// database is reset on startup, matching a fresh day of data.
func Open(yearlyPath, dailyPath string, names []string, logInterval time.Duration, log logrus.FieldLogger) (*DB, error) {
	yearly, err := sql.Open("sqlite", yearlyPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open yearly db: %w", err)
	}
	daily, err := sql.Open("sqlite", dailyPath)
	if err != nil {
		_ = yearly.Close()
		return nil, fmt.Errorf("storage: open daily db: %w", err)
	}

	d := &DB{
		yearly:      yearly,
		daily:       daily,
		dailyPath:   dailyPath,
		names:       names,
		logInterval: logInterval,
		log:         log,
		latest:      make(map[byte]poller.OutputRecord),
		lastLog:     time.Now(),
		lastDay:     time.Now().Day(),
	}

	if _, err := yearly.Exec(d.createTableSQL(false)); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("storage: init yearly schema: %w", err)
	}
	if err := d.resetDaily(); err != nil {
		_ = d.Close()
		return nil, err
	}

	return d, nil
}

// Record buffers the latest reading per meter and flushes to both
// databases when the log interval has elapsed. It also handles the
// midnight rollover of the daily database.
func (d *DB) Record(rec poller.OutputRecord) error {
	d.latest[rec.MeterID] = rec
	now := rec.At

	if now.Day() != d.lastDay && now.Hour() == 0 {
		if err := d.rollover(); err != nil {
			d.log.WithError(err).Error("daily rollover failed")
		} else {
			d.lastDay = now.Day()
			d.log.Info("daily database copied to yearly and reset")
		}
	}

	if now.Sub(d.lastLog) < d.logInterval {
		return nil
	}
	d.lastLog = now

	for _, r := range d.latest {
		if err := d.insert(d.yearly, r); err != nil {
			return fmt.Errorf("storage: yearly insert: %w", err)
		}
		if err := d.insert(d.daily, r); err != nil {
			return fmt.Errorf("storage: daily insert: %w", err)
		}
	}

	if now.Day() == 1 {
		d.purgeYearly(now)
	}

	return nil
}

// Close releases both database handles.
func (d *DB) Close() error {
	var last error
	if d.daily != nil {
		if err := d.daily.Close(); err != nil {
			last = err
		}
	}
	if d.yearly != nil {
		if err := d.yearly.Close(); err != nil {
			last = err
		}
	}
	return last
}

// ---- internals ----

func (d *DB) createTableSQL(drop bool) string {
	var b strings.Builder
	if drop {
		b.WriteString("DROP TABLE IF EXISTS meter_readings;\n")
		b.WriteString("CREATE TABLE meter_readings (\n")
	} else {
		b.WriteString("CREATE TABLE IF NOT EXISTS meter_readings (\n")
	}
	b.WriteString("  DateTime TEXT, Date TEXT, Time TEXT, Meter_ID INTEGER")
	for _, name := range d.names {
		fmt.Fprintf(&b, ",\n  %q REAL", name)
	}
	b.WriteString(",\n  PRIMARY KEY (DateTime, Meter_ID)\n);\n")
	b.WriteString("CREATE INDEX IF NOT EXISTS idx_datetime ON meter_readings (DateTime);\n")
	b.WriteString("CREATE INDEX IF NOT EXISTS idx_meter_id ON meter_readings (Meter_ID);")
	return b.String()
}

func (d *DB) resetDaily() error {
	if _, err := d.daily.Exec(d.createTableSQL(true)); err != nil {
		return fmt.Errorf("storage: reset daily schema: %w", err)
	}
	return nil
}

func (d *DB) insert(db *sql.DB, rec poller.OutputRecord) error {
	cols := []string{"DateTime", "Date", "Time", "Meter_ID"}
	for _, name := range d.names {
		cols = append(cols, fmt.Sprintf("%q", name))
	}

	args := make([]interface{}, 0, len(cols))
	args = append(args, rec.Date+" "+rec.Time, rec.Date, rec.Time, rec.MeterID)
	for _, name := range d.names {
		v := rec.Readings[name]
		if v == nil {
			args = append(args, nil)
		} else {
			args = append(args, math.Round(*v*100)/100)
		}
	}

	query := fmt.Sprintf(
		"INSERT OR REPLACE INTO meter_readings (%s) VALUES (%s)",
		strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?,", len(cols)), ","),
	)
	_, err := db.Exec(query, args...)
	return err
}

// rollover copies the daily database into the yearly archive and
// resets the daily database for the new day.
func (d *DB) rollover() error {
	if _, err := d.yearly.Exec("ATTACH DATABASE ? AS daily", d.dailyPath); err != nil {
		return fmt.Errorf("attach daily: %w", err)
	}
	_, copyErr := d.yearly.Exec("INSERT OR REPLACE INTO meter_readings SELECT * FROM daily.meter_readings")
	if _, err := d.yearly.Exec("DETACH DATABASE daily"); err != nil && copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		return fmt.Errorf("copy daily to yearly: %w", copyErr)
	}
	return d.resetDaily()
}

func (d *DB) purgeYearly(now time.Time) {
	cutoff := now.Add(-yearlyRetention).Format(csvTimeLayout)
	res, err := d.yearly.Exec("DELETE FROM meter_readings WHERE DateTime < ?", cutoff)
	if err != nil {
		d.log.WithError(err).Error("yearly retention cleanup failed")
		return
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		d.log.Infof("deleted %d records older than 1 year", n)
	}
}
