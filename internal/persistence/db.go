// Package persistence records season history to SQLite and to compressed
// JSONL tick logs. It is an observer: nothing here feeds back into a season.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/farm-season/internal/engine"
)

// DB wraps a SQLite connection for season history.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seasons (
		id TEXT PRIMARY KEY,
		crop TEXT NOT NULL,
		max_weeks INTEGER NOT NULL,
		grid_rows INTEGER NOT NULL,
		grid_cols INTEGER NOT NULL,
		water REAL NOT NULL,
		fertilizer REAL NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		success INTEGER,
		failures TEXT,
		final_score REAL
	);

	CREATE TABLE IF NOT EXISTS ticks (
		season_id TEXT NOT NULL,
		week INTEGER NOT NULL,
		score REAL NOT NULL,
		health REAL NOT NULL,
		water REAL NOT NULL,
		time_bonus REAL NOT NULL,
		practice REAL NOT NULL,
		healthy INTEGER NOT NULL,
		stressed INTEGER NOT NULL,
		newly_stressed INTEGER NOT NULL,
		temperature REAL NOT NULL,
		precipitation REAL NOT NULL,
		extreme TEXT,
		PRIMARY KEY (season_id, week)
	);

	CREATE TABLE IF NOT EXISTS interventions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		season_id TEXT NOT NULL,
		week INTEGER NOT NULL,
		tool TEXT NOT NULL,
		zones INTEGER NOT NULL,
		cost REAL NOT NULL,
		remaining REAL NOT NULL,
		practice_delta REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		season_id TEXT NOT NULL,
		week INTEGER NOT NULL,
		objective TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_interventions_season ON interventions(season_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_season ON notifications(season_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SeasonRow is one stored season.
type SeasonRow struct {
	ID         string          `db:"id" json:"id"`
	Crop       string          `db:"crop" json:"crop"`
	MaxWeeks   int             `db:"max_weeks" json:"max_weeks"`
	Rows       int             `db:"grid_rows" json:"rows"`
	Cols       int             `db:"grid_cols" json:"cols"`
	Water      float64         `db:"water" json:"water"`
	Fertilizer float64         `db:"fertilizer" json:"fertilizer"`
	StartedAt  string          `db:"started_at" json:"started_at"`
	EndedAt    sql.NullString  `db:"ended_at" json:"-"`
	Success    sql.NullBool    `db:"success" json:"-"`
	Failures   sql.NullString  `db:"failures" json:"-"`
	FinalScore sql.NullFloat64 `db:"final_score" json:"-"`
}

// TickRow is one stored week.
type TickRow struct {
	SeasonID      string         `db:"season_id" json:"season_id"`
	Week          int            `db:"week" json:"week"`
	Score         float64        `db:"score" json:"score"`
	Health        float64        `db:"health" json:"health"`
	Water         float64        `db:"water" json:"water"`
	TimeBonus     float64        `db:"time_bonus" json:"time_bonus"`
	Practice      float64        `db:"practice" json:"practice"`
	Healthy       int            `db:"healthy" json:"healthy"`
	Stressed      int            `db:"stressed" json:"stressed"`
	NewlyStressed int            `db:"newly_stressed" json:"newly_stressed"`
	Temperature   float64        `db:"temperature" json:"temperature_c"`
	Precipitation float64        `db:"precipitation" json:"precipitation_mm"`
	Extreme       sql.NullString `db:"extreme" json:"-"`
}

// SaveSeason inserts a season header. Saving the same id twice is a no-op.
func (db *DB) SaveSeason(info engine.SeasonInfo, startedAt time.Time) error {
	_, err := db.conn.Exec(`INSERT OR IGNORE INTO seasons
		(id, crop, max_weeks, grid_rows, grid_cols, water, fertilizer, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		info.ID, info.Crop, info.MaxWeeks, info.Rows, info.Cols,
		info.Water, info.Fertilizer, startedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert season %s: %w", info.ID, err)
	}
	return nil
}

// SaveTick writes one week's summary, replacing any earlier row.
func (db *DB) SaveTick(seasonID string, sum engine.TickSummary) error {
	var extreme sql.NullString
	if len(sum.Extremes) > 0 {
		kinds := make([]string, 0, len(sum.Extremes))
		for _, e := range sum.Extremes {
			kinds = append(kinds, e.Kind.String())
		}
		extreme = sql.NullString{String: strings.Join(kinds, ","), Valid: true}
	}
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO ticks
		(season_id, week, score, health, water, time_bonus, practice,
		 healthy, stressed, newly_stressed, temperature, precipitation, extreme)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		seasonID, sum.Week, sum.Score.Total, sum.Score.Health, sum.Score.Water,
		sum.Score.Time, sum.Score.Practice, sum.Healthy, sum.Stressed,
		len(sum.NewlyStressed), sum.Weather.TemperatureC, sum.Weather.PrecipitationMM, extreme,
	)
	if err != nil {
		return fmt.Errorf("insert tick %s/%d: %w", seasonID, sum.Week, err)
	}
	return nil
}

// SaveIntervention appends an intervention record.
func (db *DB) SaveIntervention(seasonID string, r engine.InterventionResult) error {
	_, err := db.conn.Exec(`INSERT INTO interventions
		(season_id, week, tool, zones, cost, remaining, practice_delta)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		seasonID, r.Week, r.Tool.String(), len(r.Zones), r.Cost, r.Remaining, r.PracticeDelta,
	)
	return err
}

// SaveNotification appends an objective notification.
func (db *DB) SaveNotification(seasonID string, n engine.Notification) error {
	_, err := db.conn.Exec(`INSERT INTO notifications
		(season_id, week, objective, level, message) VALUES (?, ?, ?, ?, ?)`,
		seasonID, n.Week, n.Objective, string(n.Level), n.Message,
	)
	return err
}

// FinishSeason stores the outcome on the season row.
func (db *DB) FinishSeason(seasonID string, o engine.Outcome, endedAt time.Time) error {
	failures := make([]string, 0, len(o.Failures))
	for _, f := range o.Failures {
		failures = append(failures, string(f))
	}
	res, err := db.conn.Exec(`UPDATE seasons
		SET ended_at = ?, success = ?, failures = ?, final_score = ?
		WHERE id = ?`,
		endedAt.UTC().Format(time.RFC3339), o.Success, strings.Join(failures, ","), o.Score, seasonID,
	)
	if err != nil {
		return fmt.Errorf("finish season %s: %w", seasonID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish season %s: %w", seasonID, sql.ErrNoRows)
	}
	slog.Info("season recorded", "season", seasonID, "success", o.Success, "score", o.Score)
	return nil
}

// Season returns one stored season.
func (db *DB) Season(id string) (SeasonRow, error) {
	var row SeasonRow
	err := db.conn.Get(&row, "SELECT * FROM seasons WHERE id = ?", id)
	return row, err
}

// RecentSeasons returns the newest seasons first.
func (db *DB) RecentSeasons(limit int) ([]SeasonRow, error) {
	var rows []SeasonRow
	err := db.conn.Select(&rows, "SELECT * FROM seasons ORDER BY started_at DESC, rowid DESC LIMIT ?", limit)
	return rows, err
}

// TickHistory returns a season's weeks in order.
func (db *DB) TickHistory(seasonID string) ([]TickRow, error) {
	var rows []TickRow
	err := db.conn.Select(&rows, "SELECT * FROM ticks WHERE season_id = ? ORDER BY week", seasonID)
	return rows, err
}

// InterventionCount returns how many batches a season recorded.
func (db *DB) InterventionCount(seasonID string) (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM interventions WHERE season_id = ?", seasonID)
	return n, err
}

// Notifications returns a season's notifications in order.
func (db *DB) Notifications(seasonID string) ([]engine.Notification, error) {
	var rows []struct {
		Week      int    `db:"week"`
		Objective string `db:"objective"`
		Level     string `db:"level"`
		Message   string `db:"message"`
	}
	err := db.conn.Select(&rows,
		"SELECT week, objective, level, message FROM notifications WHERE season_id = ? ORDER BY id", seasonID)
	if err != nil {
		return nil, err
	}
	out := make([]engine.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, engine.Notification{
			Objective: r.Objective,
			Week:      r.Week,
			Level:     engine.NotificationLevel(r.Level),
			Message:   r.Message,
		})
	}
	return out, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. Missing keys return "" and no error.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}
