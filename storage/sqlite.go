package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"outlier_scout/models"
)

// SQLiteStore keeps local run history: one row per batch and its log lines.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scout_runs (
		id INTEGER PRIMARY KEY,
		run_uuid TEXT NOT NULL,
		trigger TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		channels_total INTEGER DEFAULT 0,
		channels_failed INTEGER DEFAULT 0,
		outliers_found INTEGER DEFAULT 0,
		outliers_saved INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS scout_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		channel_url TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON scout_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON scout_logs(run_id, timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScoutRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO scout_runs (run_uuid, trigger, started_at, status, channels_total)
		VALUES (?, ?, ?, ?, ?)`,
		run.RunUUID, run.Trigger, run.StartedAt, run.Status, run.ChannelsTotal)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) UpdateRun(run *models.ScoutRun) error {
	_, err := s.db.Exec(`
		UPDATE scout_runs SET
			finished_at = ?, status = ?, channels_failed = ?,
			outliers_found = ?, outliers_saved = ?, errors_count = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ChannelsFailed,
		run.OutliersFound, run.OutliersSaved, run.ErrorsCount, run.ID)
	return err
}

func (s *SQLiteStore) RecentRuns(limit int) ([]models.ScoutRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_uuid, trigger, started_at, finished_at, status, channels_total,
			channels_failed, outliers_found, outliers_saved, errors_count
		FROM scout_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScoutRun
	for rows.Next() {
		var r models.ScoutRun
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.RunUUID, &r.Trigger, &r.StartedAt, &finished, &r.Status,
			&r.ChannelsTotal, &r.ChannelsFailed, &r.OutliersFound, &r.OutliersSaved, &r.ErrorsCount); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, channelURL string) error {
	_, err := s.db.Exec(`
		INSERT INTO scout_logs (run_id, timestamp, level, message, channel_url)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, channelURL)
	return err
}

func (s *SQLiteStore) RunLogs(runID int64) ([]models.ScoutLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, COALESCE(channel_url, '')
		FROM scout_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.ScoutLog
	for rows.Next() {
		var l models.ScoutLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.ChannelURL); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
